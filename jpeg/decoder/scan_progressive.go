package decoder

import (
	"github.com/cocosip/go-jpeg-codec/jpeg/common"
)

// progressiveScan decodes one spectral band of a progressive Huffman frame.
// First scans (Ah == 0) establish coefficients at bit position Al; refinement
// scans (Ah > 0) add the next lower bit. AC end-of-band runs span blocks.
type progressiveScan struct {
	r    *common.Reader
	scan *common.ScanHeader

	dcTabs []*common.HuffmanTable
	acTabs []*common.HuffmanTable
	pred   []int
	predIx map[int]int

	eobRun int
}

func newProgressiveScan(d *Decoder, r *common.Reader, scan *common.ScanHeader, comps []int) (*progressiveScan, error) {
	if err := validateProgressiveBand(scan, len(comps)); err != nil {
		return nil, err
	}
	s := &progressiveScan{
		r:      r,
		scan:   scan,
		dcTabs: make([]*common.HuffmanTable, len(comps)),
		acTabs: make([]*common.HuffmanTable, len(comps)),
		pred:   make([]int, len(comps)),
		predIx: make(map[int]int, len(comps)),
	}
	for i, ci := range comps {
		sc := scan.Components[i]
		if scan.Ss == 0 {
			if scan.Ah == 0 {
				s.dcTabs[i] = d.dcHuff[sc.DCSelector]
				if s.dcTabs[i] == nil {
					return nil, common.ErrInvalidDHT
				}
			}
		} else {
			s.acTabs[i] = d.acHuff[sc.ACSelector]
			if s.acTabs[i] == nil {
				return nil, common.ErrInvalidDHT
			}
		}
		s.predIx[ci] = i
	}
	return s, nil
}

func (s *progressiveScan) reset() {
	for i := range s.pred {
		s.pred[i] = 0
	}
	s.eobRun = 0
}

func (s *progressiveScan) decodeUnit(ci int, b *common.Block) error {
	i := s.predIx[ci]
	if s.scan.Ss == 0 {
		if s.scan.Ah == 0 {
			return s.decodeDCFirst(i, b)
		}
		return s.refineDC(b)
	}
	if s.scan.Ah == 0 {
		return s.decodeACFirst(i, b)
	}
	return s.refineAC(i, b)
}

func (s *progressiveScan) decodeDCFirst(i int, b *common.Block) error {
	t, err := s.dcTabs[i].DecodeSymbol(s.r)
	if err != nil {
		return err
	}
	if t > 15 {
		return common.ErrInvalidData
	}
	diff, err := common.ReceiveExtend(s.r, int(t))
	if err != nil {
		return err
	}
	s.pred[i] += diff
	b[0] = int16(s.pred[i] << uint(s.scan.Al))
	return nil
}

func (s *progressiveScan) refineDC(b *common.Block) error {
	bit, err := s.r.ReadBits(1)
	if err != nil {
		return err
	}
	if bit != 0 {
		b[0] |= 1 << uint(s.scan.Al)
	}
	return nil
}

func (s *progressiveScan) decodeACFirst(i int, b *common.Block) error {
	if s.eobRun > 0 {
		s.eobRun--
		return nil
	}
	ac := s.acTabs[i]
	k := s.scan.Ss
	for k <= s.scan.Se {
		rs, err := ac.DecodeSymbol(s.r)
		if err != nil {
			return err
		}
		run := int(rs >> 4)
		size := int(rs & 0x0F)

		if size == 0 {
			if run != 15 {
				s.eobRun = 1 << uint(run)
				if run != 0 {
					bits, err := s.r.ReadBits(run)
					if err != nil {
						return err
					}
					s.eobRun += int(bits)
				}
				s.eobRun--
				return nil
			}
			k += 16
			continue
		}

		k += run
		if k > s.scan.Se {
			return common.ErrInvalidData
		}
		v, err := common.ReceiveExtend(s.r, size)
		if err != nil {
			return err
		}
		b[common.ZigZag[k]] = int16(v << uint(s.scan.Al))
		k++
	}
	return nil
}

func (s *progressiveScan) refineAC(i int, b *common.Block) error {
	delta := int16(1) << uint(s.scan.Al)
	ac := s.acTabs[i]
	k := s.scan.Ss

	if s.eobRun == 0 {
		for k = s.scan.Ss; k <= s.scan.Se; k++ {
			var newVal int16
			rs, err := ac.DecodeSymbol(s.r)
			if err != nil {
				return err
			}
			run := int(rs >> 4)
			size := int(rs & 0x0F)

			switch size {
			case 0:
				if run != 15 {
					// The run includes this block; the tail below consumes
					// one count while refining the rest of the band
					s.eobRun = 1 << uint(run)
					if run != 0 {
						bits, err := s.r.ReadBits(run)
						if err != nil {
							return err
						}
						s.eobRun += int(bits)
					}
					break
				}
				// ZRL: run over 16 zero-history positions
			case 1:
				bit, err := s.r.ReadBits(1)
				if err != nil {
					return err
				}
				if bit != 0 {
					newVal = delta
				} else {
					newVal = -delta
				}
			default:
				return common.ErrInvalidData
			}

			if size == 0 && run != 15 {
				break
			}

			k, err = s.refineRun(b, k, run, delta)
			if err != nil {
				return err
			}
			if k > s.scan.Se {
				return common.ErrInvalidData
			}
			if newVal != 0 {
				b[common.ZigZag[k]] = newVal
			}
		}
	}

	if s.eobRun > 0 {
		s.eobRun--
		if _, err := s.refineRun(b, k, -1, delta); err != nil {
			return err
		}
	}
	return nil
}

// refineRun advances through the band refining coefficients that were
// already nonzero and counting down nz zero-history positions. An nz of -1
// refines through the end of the band.
func (s *progressiveScan) refineRun(b *common.Block, k, nz int, delta int16) (int, error) {
	for ; k <= s.scan.Se; k++ {
		u := common.ZigZag[k]
		if b[u] == 0 {
			if nz == 0 {
				break
			}
			nz--
			continue
		}
		bit, err := s.r.ReadBits(1)
		if err != nil {
			return k, err
		}
		if bit == 0 {
			continue
		}
		if b[u]&delta == 0 {
			if b[u] >= 0 {
				b[u] += delta
			} else {
				b[u] -= delta
			}
		}
	}
	return k, nil
}
