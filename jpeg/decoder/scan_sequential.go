package decoder

import (
	"github.com/cocosip/go-jpeg-codec/jpeg/common"
)

// sequentialScan decodes baseline and extended sequential Huffman scans
type sequentialScan struct {
	r      *common.Reader
	dcTabs []*common.HuffmanTable // per scan component
	acTabs []*common.HuffmanTable
	pred   []int // DC predictor per frame component
	predIx map[int]int
}

func newSequentialScan(d *Decoder, r *common.Reader, scan *common.ScanHeader, comps []int) (*sequentialScan, error) {
	s := &sequentialScan{
		r:      r,
		dcTabs: make([]*common.HuffmanTable, len(comps)),
		acTabs: make([]*common.HuffmanTable, len(comps)),
		pred:   make([]int, len(comps)),
		predIx: make(map[int]int, len(comps)),
	}
	for i, ci := range comps {
		sc := scan.Components[i]
		s.dcTabs[i] = d.dcHuff[sc.DCSelector]
		s.acTabs[i] = d.acHuff[sc.ACSelector]
		if s.dcTabs[i] == nil || s.acTabs[i] == nil {
			return nil, common.ErrInvalidDHT
		}
		s.predIx[ci] = i
	}
	return s, nil
}

func (s *sequentialScan) reset() {
	for i := range s.pred {
		s.pred[i] = 0
	}
}

func (s *sequentialScan) decodeUnit(ci int, b *common.Block) error {
	i := s.predIx[ci]
	b.Zero()

	// DC: category, magnitude bits, accumulate into the predictor
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
	b[0] = int16(s.pred[i])

	// AC: run/size pairs with EOB and ZRL
	ac := s.acTabs[i]
	k := 1
	for k < 64 {
		rs, err := ac.DecodeSymbol(s.r)
		if err != nil {
			return err
		}
		run := int(rs >> 4)
		size := int(rs & 0x0F)

		if size == 0 {
			if run == 15 {
				k += 16 // ZRL
				continue
			}
			break // EOB
		}

		k += run
		if k > 63 {
			return common.ErrInvalidData
		}
		v, err := common.ReceiveExtend(s.r, size)
		if err != nil {
			return err
		}
		b[common.ZigZag[k]] = int16(v)
		k++
	}

	return nil
}
