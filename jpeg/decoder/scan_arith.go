package decoder

import (
	"github.com/cocosip/go-jpeg-codec/jpeg/arith"
	"github.com/cocosip/go-jpeg-codec/jpeg/common"
)

// Statistics area sizes per T.81 Table F.4 and F.6
const (
	dcStatBins = 64
	acStatBins = 256
)

// arithScan decodes sequential and progressive arithmetic-coded scans.
// Sequential scans are the Ss=0, Se=63, Ah=Al=0 special case of the same
// band logic. Context selection follows T.81 F.1.4.4: DC contexts depend on
// the classification of the previous DC difference, AC contexts on the
// zig-zag index and the Kx conditioning threshold.
type arithScan struct {
	d    *Decoder
	r    *common.Reader
	scan *common.ScanHeader
	ar   *arith.Decoder

	dcSel []int
	acSel []int
	dcL   []int
	dcU   []int
	acKx  []int

	dcStats  [4][]byte
	acStats  [4][]byte
	fixedBin byte

	dcContext []int
	lastDC    []int
	predIx    map[int]int
}

func newArithScan(d *Decoder, r *common.Reader, scan *common.ScanHeader, comps []int) (*arithScan, error) {
	s := &arithScan{
		d:         d,
		r:         r,
		scan:      scan,
		dcSel:     make([]int, len(comps)),
		acSel:     make([]int, len(comps)),
		dcL:       make([]int, len(comps)),
		dcU:       make([]int, len(comps)),
		acKx:      make([]int, len(comps)),
		dcContext: make([]int, len(comps)),
		lastDC:    make([]int, len(comps)),
		predIx:    make(map[int]int, len(comps)),
	}
	for i, ci := range comps {
		sc := scan.Components[i]
		s.dcSel[i] = sc.DCSelector
		s.acSel[i] = sc.ACSelector
		s.dcL[i] = d.dcCond[sc.DCSelector].L
		s.dcU[i] = d.dcCond[sc.DCSelector].U
		s.acKx[i] = d.acCond[sc.ACSelector].Kx
		if s.dcStats[sc.DCSelector] == nil {
			s.dcStats[sc.DCSelector] = make([]byte, dcStatBins)
		}
		if s.acStats[sc.ACSelector] == nil {
			s.acStats[sc.ACSelector] = make([]byte, acStatBins)
		}
		s.predIx[ci] = i
	}
	s.ar = arith.NewDecoder(r)
	return s, nil
}

// reset clears every statistics bin, the DC conditioning state, and
// re-primes the coder registers
func (s *arithScan) reset() {
	for _, st := range s.dcStats {
		for i := range st {
			st[i] = 0
		}
	}
	for _, st := range s.acStats {
		for i := range st {
			st[i] = 0
		}
	}
	s.fixedBin = arith.FixedBin
	for i := range s.dcContext {
		s.dcContext[i] = 0
		s.lastDC[i] = 0
	}
	s.ar.Reset()
}

func (s *arithScan) decodeUnit(ci int, b *common.Block) error {
	i := s.predIx[ci]
	if s.scan.Ss == 0 {
		if s.scan.Ah == 0 {
			if err := s.decodeDC(i, b); err != nil {
				return err
			}
		} else if s.ar.Decode(&s.fixedBin) != 0 {
			b[0] |= 1 << uint(s.scan.Al)
		}
	}
	if s.scan.Se > 0 {
		if s.scan.Ah == 0 {
			return s.decodeAC(i, b)
		}
		return s.refineAC(i, b)
	}
	return nil
}

// decodeDC implements T.81 Figures F.19-F.24 for one DC difference
func (s *arithScan) decodeDC(i int, b *common.Block) error {
	st := s.dcStats[s.dcSel[i]]
	base := s.dcContext[i]

	if s.ar.Decode(&st[base]) == 0 {
		s.dcContext[i] = 0
	} else {
		sign := s.ar.Decode(&st[base+1])
		x := base + 2 + sign
		m := s.ar.Decode(&st[x])
		if m != 0 {
			x = 20
			for s.ar.Decode(&st[x]) != 0 {
				m <<= 1
				if m == 0x8000 {
					return common.ErrInvalidData
				}
				x++
			}
		}

		// Conditioning category for the next difference
		if m < (1<<uint(s.dcL[i]))>>1 {
			s.dcContext[i] = 0
		} else if m > (1<<uint(s.dcU[i]))>>1 {
			s.dcContext[i] = 12 + sign*4
		} else {
			s.dcContext[i] = 4 + sign*4
		}

		v := m
		x += 14
		for mm := m >> 1; mm > 0; mm >>= 1 {
			if s.ar.Decode(&st[x]) != 0 {
				v |= mm
			}
		}
		v++
		if sign != 0 {
			v = -v
		}
		s.lastDC[i] += v
	}

	b[0] = int16(s.lastDC[i] << uint(s.scan.Al))
	return nil
}

// decodeAC implements T.81 Figure F.20 over the scan's band
func (s *arithScan) decodeAC(i int, b *common.Block) error {
	st := s.acStats[s.acSel[i]]
	kmin := s.scan.Ss
	if kmin < 1 {
		kmin = 1
	}
	for k := kmin; k <= s.scan.Se; k++ {
		x := 3 * (k - 1)
		if s.ar.Decode(&st[x]) != 0 {
			break // end of block
		}
		for s.ar.Decode(&st[x+1]) == 0 {
			x += 3
			k++
			if k > s.scan.Se {
				return common.ErrInvalidData
			}
		}
		sign := s.ar.Decode(&s.fixedBin)
		x += 2
		m := s.ar.Decode(&st[x])
		if m != 0 {
			if s.ar.Decode(&st[x]) != 0 {
				m <<= 1
				if k <= s.acKx[i] {
					x = 189
				} else {
					x = 217
				}
				for s.ar.Decode(&st[x]) != 0 {
					m <<= 1
					if m == 0x8000 {
						return common.ErrInvalidData
					}
					x++
				}
			}
		}

		v := m
		x += 14
		for mm := m >> 1; mm > 0; mm >>= 1 {
			if s.ar.Decode(&st[x]) != 0 {
				v |= mm
			}
		}
		v++
		if sign != 0 {
			v = -v
		}
		b[common.ZigZag[k]] = int16(v << uint(s.scan.Al))
	}
	return nil
}

// refineAC implements the correction-bit pass of T.81 G.2.2
func (s *arithScan) refineAC(i int, b *common.Block) error {
	st := s.acStats[s.acSel[i]]
	p1 := int16(1) << uint(s.scan.Al)
	m1 := int16(-1) << uint(s.scan.Al)

	// End of band established by previous scans
	kex := s.scan.Se
	for ; kex >= 1; kex-- {
		if b[common.ZigZag[kex]] != 0 {
			break
		}
	}

	for k := s.scan.Ss; k <= s.scan.Se; k++ {
		x := 3 * (k - 1)
		if k > kex {
			if s.ar.Decode(&st[x]) != 0 {
				break // end of block
			}
		}
		for {
			u := common.ZigZag[k]
			if b[u] != 0 {
				if s.ar.Decode(&st[x+2]) != 0 {
					if b[u] >= 0 {
						b[u] += p1
					} else {
						b[u] += m1
					}
				}
				break
			}
			if s.ar.Decode(&st[x+1]) != 0 {
				if s.ar.Decode(&s.fixedBin) != 0 {
					b[u] = m1
				} else {
					b[u] = p1
				}
				break
			}
			x += 3
			k++
			if k > s.scan.Se {
				return common.ErrInvalidData
			}
		}
	}
	return nil
}
