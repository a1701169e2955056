// Package arith implements the binary arithmetic decoder of ITU-T T.81
// Annex D: a 16-bit interval register A, a code register C with deferred
// renormalization, and the Table D.3 probability estimation state machine.
// Each coding context is a single statistics byte holding the MPS sense in
// bit 7 and the state index in the low bits.
package arith

import (
	"github.com/cocosip/go-jpeg-codec/jpeg/common"
)

// Decoder decodes one binary decision at a time from an entropy-coded
// segment. Byte input goes through the reader's stuffing-aware path: a
// marker ends the segment and zero bytes are synthesized from then on.
type Decoder struct {
	r  *common.Reader
	c  int64 // code register; fresh low bits counted by ct
	a  int64 // interval size, normalized to [0x8000, 0xFFFF]
	ct int   // fresh bits in c not yet consumed by renormalization
}

// NewDecoder creates a decoder over the reader's entropy-coded segment.
// Reset must be called before the first decision.
func NewDecoder(r *common.Reader) *Decoder {
	return &Decoder{r: r}
}

// Reset primes the registers from the byte stream, at scan start and after
// every restart marker
func (d *Decoder) Reset() {
	b0 := int64(d.r.ReadStuffedByte())
	b1 := int64(d.r.ReadStuffedByte())
	d.c = b0<<8 | b1
	d.a = 0x10000
	d.ct = 0
}

// Decode decodes one decision using the statistics byte st.
// Bit 7 of *st is the current MPS; the low bits index the state table.
func (d *Decoder) Decode(st *byte) int {
	// Deferred renormalization from the previous decision, feeding bytes
	// as the fresh-bit count drains (T.81 D.2.6)
	for d.a < 0x8000 {
		d.ct--
		if d.ct < 0 {
			d.c = d.c<<8 | int64(d.r.ReadStuffedByte())
			d.ct += 8
		}
		d.a <<= 1
	}

	sv := int(*st)
	s := &stateTable[sv&0x7F]
	qe := int64(s.qe)

	// Decode and estimation per T.81 D.2.4 and D.2.5. The MPS subinterval
	// sits at the bottom; the conditional exchange hands the larger
	// subinterval to the MPS whenever A dips below Qe.
	d.a -= qe
	aligned := d.a << uint(d.ct)
	if d.c >= aligned {
		d.c -= aligned
		if d.a < qe {
			*st = byte(sv&0x80) | s.nmps
		} else {
			*st = lpsNext(sv, s)
			sv ^= 0x80
		}
		d.a = qe
	} else if d.a < 0x8000 {
		if d.a < qe {
			*st = lpsNext(sv, s)
			sv ^= 0x80
		} else {
			*st = byte(sv&0x80) | s.nmps
		}
	}

	return sv >> 7
}

// lpsNext computes the statistics byte after an LPS renormalization,
// flipping the MPS sense when the state's switch flag is set
func lpsNext(sv int, s *state) byte {
	mps := byte(sv & 0x80)
	if s.switch_ {
		mps ^= 0x80
	}
	return mps | s.nlps
}
