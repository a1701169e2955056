package decoder

import (
	"github.com/cocosip/go-jpeg-codec/jpeg/common"
)

// losslessState holds the reconstructed sample planes of a lossless frame.
// Planes are padded to the MCU grid; interleaved scans decode the padding
// samples too, and writeBlocks crops them away.
type losslessState struct {
	frame   *common.FrameHeader
	planes  [][]int32
	planeW  []int
	planeH  []int
	actualW []int
	actualH []int
	pt      int
}

func newLosslessState(frame *common.FrameHeader, hmax, vmax int) *losslessState {
	n := len(frame.Components)
	ls := &losslessState{
		frame:   frame,
		planes:  make([][]int32, n),
		planeW:  make([]int, n),
		planeH:  make([]int, n),
		actualW: make([]int, n),
		actualH: make([]int, n),
	}
	mcusX := common.DivCeil(frame.Width, hmax)
	mcusY := common.DivCeil(frame.Height, vmax)
	for i, c := range frame.Components {
		ls.actualW[i] = common.DivCeil(frame.Width*c.H, hmax)
		ls.actualH[i] = common.DivCeil(frame.Height*c.V, vmax)
		ls.planeW[i] = mcusX * c.H
		ls.planeH[i] = mcusY * c.V
		ls.planes[i] = make([]int32, ls.planeW[i]*ls.planeH[i])
	}
	return ls
}

// writeBlocks assembles the sample planes into 8x8 blocks for the sink,
// applying the scan's point transform
func (ls *losslessState) writeBlocks(sink Sink) {
	var b common.Block
	for ci := range ls.planes {
		w := ls.actualW[ci]
		h := ls.actualH[ci]
		stride := ls.planeW[ci]
		for by := 0; by < common.DivCeil(h, 8); by++ {
			for bx := 0; bx < common.DivCeil(w, 8); bx++ {
				b.Zero()
				for row := 0; row < 8; row++ {
					y := by*8 + row
					if y >= h {
						break
					}
					for col := 0; col < 8; col++ {
						x := bx*8 + col
						if x >= w {
							break
						}
						b[row*8+col] = int16(ls.planes[ci][y*stride+x] << uint(ls.pt))
					}
				}
				sink.WriteBlock(&b, ci, bx*8, by*8)
			}
		}
	}
}

// losslessScan decodes one lossless Huffman scan. The scan's Ss field
// selects the predictor (1-7) and Al is the point transform.
type losslessScan struct {
	d     *Decoder
	r     *common.Reader
	scan  *common.ScanHeader
	comps []int

	dcTabs []*common.HuffmanTable

	// Prediction resets at scan start and after each restart marker: the
	// next sample of each component takes the default prediction and the
	// rest of its row falls back to the horizontal predictor.
	fresh    []bool
	freshRow []int

	restartIndex int
}

func newLosslessScan(d *Decoder, r *common.Reader, scan *common.ScanHeader, comps []int) *losslessScan {
	return &losslessScan{
		d:        d,
		r:        r,
		scan:     scan,
		comps:    comps,
		dcTabs:   make([]*common.HuffmanTable, len(comps)),
		fresh:    make([]bool, len(comps)),
		freshRow: make([]int, len(comps)),
	}
}

func (ls *losslessScan) run() (uint16, error) {
	if ls.scan.Ss < 1 || ls.scan.Ss > 7 {
		return 0, offsetError(ls.r, common.ErrInvalidPredictor)
	}
	state := ls.d.lossless
	state.pt = ls.scan.Al

	for i := range ls.comps {
		t := ls.d.dcHuff[ls.scan.Components[i].DCSelector]
		if t == nil {
			return 0, offsetError(ls.r, common.ErrInvalidDHT)
		}
		ls.dcTabs[i] = t
	}

	ls.r.BeginBits()
	ls.reset()

	hmax, vmax := ls.d.frame.MaxSampling()
	var m uint16
	var err error
	if len(ls.comps) == 1 {
		m, err = ls.runNonInterleaved()
	} else {
		m, err = ls.runInterleaved(hmax, vmax)
	}
	if err != nil {
		return 0, err
	}
	ls.r.EndBits()
	if m == 0 {
		if err := ls.r.SkipToMarker(); err != nil {
			return 0, err
		}
	}
	return m, nil
}

func (ls *losslessScan) reset() {
	for i := range ls.fresh {
		ls.fresh[i] = true
		ls.freshRow[i] = -1
	}
}

func (ls *losslessScan) runNonInterleaved() (uint16, error) {
	state := ls.d.lossless
	ci := ls.comps[0]
	w := state.actualW[ci]
	h := state.actualH[ci]
	total := w * h
	count := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if err := ls.decodeSample(0, ci, x, y); err != nil {
				return 0, err
			}
			count++
			if m, err := ls.maybeRestart(count, total); m != 0 || err != nil {
				return m, err
			}
		}
	}
	return 0, nil
}

func (ls *losslessScan) runInterleaved(hmax, vmax int) (uint16, error) {
	mcusX := common.DivCeil(ls.d.frame.Width, hmax)
	mcusY := common.DivCeil(ls.d.frame.Height, vmax)
	total := mcusX * mcusY
	count := 0
	for my := 0; my < mcusY; my++ {
		for mx := 0; mx < mcusX; mx++ {
			for i, ci := range ls.comps {
				fc := ls.d.comps[ci].comp
				for v := 0; v < fc.V; v++ {
					for h := 0; h < fc.H; h++ {
						if err := ls.decodeSample(i, ci, mx*fc.H+h, my*fc.V+v); err != nil {
							return 0, err
						}
					}
				}
			}
			count++
			if m, err := ls.maybeRestart(count, total); m != 0 || err != nil {
				return m, err
			}
		}
	}
	return 0, nil
}

func (ls *losslessScan) maybeRestart(count, total int) (uint16, error) {
	ri := ls.d.restartInterval
	if ri == 0 || count%ri != 0 || count == total {
		return 0, nil
	}
	ls.r.EndBits()
	if err := ls.r.SkipToMarker(); err != nil {
		return 0, err
	}
	marker, err := ls.r.ReadMarker()
	if err != nil {
		return 0, err
	}
	if marker == common.MarkerEOI {
		return common.MarkerEOI, nil
	}
	if !common.IsRST(marker) || int(marker-common.MarkerRST0) != ls.restartIndex {
		return 0, offsetError(ls.r, common.ErrInvalidRestart)
	}
	ls.restartIndex = (ls.restartIndex + 1) & 7
	ls.r.BeginBits()
	ls.reset()
	return 0, nil
}

func (ls *losslessScan) decodeSample(i, ci, x, y int) error {
	state := ls.d.lossless
	plane := state.planes[ci]
	stride := state.planeW[ci]

	s, err := ls.dcTabs[i].DecodeSymbol(ls.r)
	if err != nil {
		return err
	}
	var diff int
	if s == 16 {
		// Special category: difference of exactly 32768, no appended bits
		diff = 32768
	} else if s > 16 {
		return common.ErrInvalidData
	} else {
		diff, err = common.ReceiveExtend(ls.r, int(s))
		if err != nil {
			return err
		}
	}

	pred := ls.predict(i, ci, x, y)
	plane[y*stride+x] = int32(uint16(pred + int32(diff)))

	if ls.fresh[i] {
		ls.fresh[i] = false
		ls.freshRow[i] = y
	}
	return nil
}

// predict selects the prediction for the sample at (x, y) per T.81 H.2:
// the first sample of the scan (and of each restart interval) takes the
// mid-range default, the remainder of that row and the first row use the
// horizontal predictor, the first column the vertical one, and everything
// else the predictor chosen by the scan header.
func (ls *losslessScan) predict(i, ci, x, y int) int32 {
	state := ls.d.lossless
	plane := state.planes[ci]
	stride := state.planeW[ci]
	precision := ls.d.frame.Precision

	if ls.fresh[i] {
		return 1 << uint(precision-ls.scan.Al-1)
	}
	if y == 0 || y == ls.freshRow[i] {
		return plane[y*stride+x-1] // Ra
	}
	if x == 0 {
		return plane[(y-1)*stride+x] // Rb
	}

	ra := plane[y*stride+x-1]
	rb := plane[(y-1)*stride+x]
	rc := plane[(y-1)*stride+x-1]
	switch ls.scan.Ss {
	case 1:
		return ra
	case 2:
		return rb
	case 3:
		return rc
	case 4:
		return ra + rb - rc
	case 5:
		return ra + ((rb - rc) >> 1)
	case 6:
		return rb + ((ra - rc) >> 1)
	case 7:
		return (ra + rb) >> 1
	}
	return ra
}
