package encoder

import (
	"github.com/cocosip/go-jpeg-codec/jpeg/common"
)

// buildOptimalTables runs the statistics gather pass over the quantized
// blocks and builds canonical tables for every unset Huffman slot. The walk
// mirrors the emission pass exactly, restart resets included, so the
// histograms match the symbols that will be written.
func (e *encoder) buildOptimalTables() error {
	var dcFreq [4]*common.FrequencyTable
	var acFreq [4]*common.FrequencyTable
	for _, c := range e.cfg.Components {
		if e.dcTables[c.DCSelector] == nil && dcFreq[c.DCSelector] == nil {
			dcFreq[c.DCSelector] = common.NewFrequencyTable()
		}
		if e.acTables[c.ACSelector] == nil && acFreq[c.ACSelector] == nil {
			acFreq[c.ACSelector] = common.NewFrequencyTable()
		}
	}

	err := e.forEachUnit(
		func(ci int, b *common.Block) error {
			c := &e.cfg.Components[ci]
			df := dcFreq[c.DCSelector]
			af := acFreq[c.ACSelector]
			return e.blockSymbols(ci, b,
				func(cat int, bits uint32) error {
					if df != nil {
						df.Add(byte(cat))
					}
					return nil
				},
				func(sym byte, size int, bits uint32) error {
					if af != nil {
						af.Add(sym)
					}
					return nil
				})
		},
		func(n int) error { return nil })
	if err != nil {
		return err
	}

	for sel, f := range dcFreq {
		if f == nil {
			continue
		}
		t, err := f.Build()
		if err != nil {
			return err
		}
		t.Class = 0
		t.ID = sel
		e.dcTables[sel] = t
	}
	for sel, f := range acFreq {
		if f == nil {
			continue
		}
		t, err := f.Build()
		if err != nil {
			return err
		}
		t.Class = 1
		t.ID = sel
		e.acTables[sel] = t
	}
	return nil
}
