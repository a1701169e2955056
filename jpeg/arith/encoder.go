package arith

// Encoder is the encoding dual of Decoder: the same interval subdivision,
// conditional exchange and Table D.3 estimation, with carry propagation
// into already-emitted bytes. It exists so arithmetic streams can be
// produced for transcoding and for the decoder equivalence tests; the
// public codecs only decode arithmetic scans.
type Encoder struct {
	a   int64
	c   int64
	ct  int
	out []byte
}

// NewEncoder creates an encoder with freshly primed registers
func NewEncoder() *Encoder {
	e := &Encoder{}
	e.Reset()
	return e
}

// Reset re-primes the registers, dropping nothing already emitted
func (e *Encoder) Reset() {
	e.a = 0x10000
	e.c = 0
	e.ct = 11 // spacer bits keep the first carry inside the register
}

// Encode codes one decision through the statistics byte st
func (e *Encoder) Encode(st *byte, bit int) {
	sv := int(*st)
	s := &stateTable[sv&0x7F]
	qe := int64(s.qe)
	mps := sv >> 7

	temp := e.a - qe
	upper := false
	if temp >= 0x8000 {
		if bit == mps {
			e.a = temp
			return
		}
		upper = true
		e.a = qe
		*st = lpsNext(sv, s)
	} else if temp < qe {
		// Conditional exchange: the larger upper subinterval is the MPS
		if bit == mps {
			upper = true
			e.a = qe
			*st = byte(sv&0x80) | s.nmps
		} else {
			e.a = temp
			*st = lpsNext(sv, s)
		}
	} else {
		if bit == mps {
			e.a = temp
			*st = byte(sv&0x80) | s.nmps
		} else {
			upper = true
			e.a = qe
			*st = lpsNext(sv, s)
		}
	}
	if upper {
		e.c += temp
	}

	for e.a < 0x8000 {
		e.a <<= 1
		e.c <<= 1
		e.ct--
		if e.ct == 0 {
			e.byteOut()
		}
	}
}

// byteOut extracts the next finished byte from the code register,
// propagating a pending carry into the emitted stream
func (e *Encoder) byteOut() {
	temp := e.c >> 19
	if temp > 0xFF {
		// Carry walks back through the emitted bytes
		for i := len(e.out) - 1; i >= 0; i-- {
			e.out[i]++
			if e.out[i] != 0 {
				break
			}
		}
		temp &= 0xFF
	}
	e.out = append(e.out, byte(temp))
	e.c &= 0x7FFFF
	e.ct = 8
}

// Flush pushes the remaining code bits out. The decoder synthesizes zero
// bytes past the end of the segment, so the base of the final interval is
// a valid code value.
func (e *Encoder) Flush() {
	for i := 0; i < 4; i++ {
		e.c <<= uint(e.ct)
		e.byteOut()
	}
}

// Bytes returns the entropy-coded segment with 0xFF byte stuffing applied
func (e *Encoder) Bytes() []byte {
	stuffed := make([]byte, 0, len(e.out)+8)
	for _, b := range e.out {
		stuffed = append(stuffed, b)
		if b == 0xFF {
			stuffed = append(stuffed, 0x00)
		}
	}
	return stuffed
}

// RawLen reports how many unstuffed bytes have been emitted
func (e *Encoder) RawLen() int {
	return len(e.out)
}
