// Package optimizer re-emits an existing baseline JPEG with freshly built
// optimal Huffman codebooks. The coefficient stream round-trips in its
// quantized form: no dequantization, no inverse DCT, so the output decodes
// to the exact same samples.
package optimizer

import (
	"bytes"

	"github.com/cocosip/go-jpeg-codec/jpeg/common"
	"github.com/cocosip/go-jpeg-codec/jpeg/decoder"
)

// jfifHeader is the bare APP0 emitted when application segments are
// stripped, so the output remains a well-formed JFIF file
var jfifHeader = []byte{
	0x4A, 0x46, 0x49, 0x46, 0x00, // "JFIF\0"
	0x01, 0x01, // v1.01
	0x00, 0x00, 0x01, 0x00, 0x01, // aspect ratio 1:1
	0x00, 0x00, // no thumbnail
}

// rawSegment is an application or comment segment carried through verbatim
type rawSegment struct {
	marker  uint16
	payload []byte
}

// Optimize re-encodes a baseline JPEG with optimal Huffman tables.
// With strip set, application and comment segments are replaced by a bare
// JFIF APP0.
func Optimize(data []byte, strip bool) ([]byte, error) {
	ci, err := decoder.DecodeCoefficients(data)
	if err != nil {
		return nil, err
	}
	if ci.Frame.Marker != common.MarkerSOF0 && ci.Frame.Marker != common.MarkerSOF1 {
		return nil, common.ErrUnsupportedFormat
	}

	var segments []rawSegment
	if !strip {
		segments, err = collectMetadata(data)
		if err != nil {
			return nil, err
		}
	}

	o := &optimizer{ci: ci}
	return o.emit(segments, strip)
}

// collectMetadata gathers APPn and COM segments in stream order
func collectMetadata(data []byte) ([]rawSegment, error) {
	r := common.NewReader(data)
	marker, err := r.ReadMarker()
	if err != nil {
		return nil, err
	}
	if marker != common.MarkerSOI {
		return nil, common.ErrInvalidSOI
	}

	var segments []rawSegment
	for {
		marker, err := r.ReadMarker()
		if err != nil {
			return nil, err
		}
		switch {
		case common.IsAPP(marker) || marker == common.MarkerCOM:
			payload, err := r.ReadSegment()
			if err != nil {
				return nil, err
			}
			segments = append(segments, rawSegment{marker: marker, payload: payload})

		case marker == common.MarkerSOS, marker == common.MarkerEOI:
			// Metadata segments precede the first scan
			return segments, nil

		default:
			if common.HasLength(marker) {
				if _, err := r.ReadSegment(); err != nil {
					return nil, err
				}
			}
		}
	}
}

type optimizer struct {
	ci *decoder.CoefficientImage

	dcTab   [2]*common.HuffmanTable
	acTab   [2]*common.HuffmanTable
	codesDC [2][]common.HuffmanCode
	codesAC [2][]common.HuffmanCode
	pred    []int
}

// selector maps component index to the luminance/chrominance table pair
func (o *optimizer) selector(ci int) int {
	if ci == 0 {
		return 0
	}
	if len(o.ci.Frame.Components) == 1 {
		return 0
	}
	return 1
}

func (o *optimizer) emit(segments []rawSegment, strip bool) ([]byte, error) {
	frame := o.ci.Frame
	o.pred = make([]int, len(frame.Components))

	// Statistics pass
	dcFreq := [2]*common.FrequencyTable{common.NewFrequencyTable(), common.NewFrequencyTable()}
	acFreq := [2]*common.FrequencyTable{common.NewFrequencyTable(), common.NewFrequencyTable()}
	err := o.forEachUnit(
		func(ci int, b *common.Block) error {
			sel := o.selector(ci)
			return o.blockSymbols(ci, b,
				func(cat int, bits uint32) error {
					dcFreq[sel].Add(byte(cat))
					return nil
				},
				func(sym byte, size int, bits uint32) error {
					acFreq[sel].Add(sym)
					return nil
				})
		},
		func(n int) error { return nil })
	if err != nil {
		return nil, err
	}

	for sel := 0; sel < 2; sel++ {
		if dcFreq[sel].Empty() {
			continue
		}
		if o.dcTab[sel], err = dcFreq[sel].Build(); err != nil {
			return nil, err
		}
		o.dcTab[sel].Class = 0
		o.dcTab[sel].ID = sel
		if o.acTab[sel], err = acFreq[sel].Build(); err != nil {
			return nil, err
		}
		o.acTab[sel].Class = 1
		o.acTab[sel].ID = sel
		o.codesDC[sel] = common.BuildHuffmanCodes(o.dcTab[sel])
		o.codesAC[sel] = common.BuildHuffmanCodes(o.acTab[sel])
	}

	// Emission pass
	var buf bytes.Buffer
	w := common.NewWriter(&buf)
	if err := w.WriteMarker(common.MarkerSOI); err != nil {
		return nil, err
	}
	if strip {
		if err := w.WriteSegment(common.MarkerAPP0, jfifHeader); err != nil {
			return nil, err
		}
	} else {
		for _, seg := range segments {
			if err := w.WriteSegment(seg.marker, seg.payload); err != nil {
				return nil, err
			}
		}
	}

	var quants []*common.QuantizationTable
	seenQ := [4]bool{}
	for _, c := range frame.Components {
		if !seenQ[c.QuantSelector] {
			seenQ[c.QuantSelector] = true
			q := o.ci.Quant[c.QuantSelector]
			if q == nil {
				return nil, common.ErrInvalidDQT
			}
			quants = append(quants, q)
		}
	}
	if err := common.WriteDQTSegment(w, quants); err != nil {
		return nil, err
	}

	// Components are renumbered onto the optimized table pair, so the frame
	// header is re-serialized as-is while the scan header carries the new
	// selectors
	if err := frame.Serialize(w); err != nil {
		return nil, err
	}

	var huffs []*common.HuffmanTable
	for sel := 0; sel < 2; sel++ {
		if o.dcTab[sel] != nil {
			huffs = append(huffs, o.dcTab[sel], o.acTab[sel])
		}
	}
	if err := common.WriteDHTSegment(w, huffs); err != nil {
		return nil, err
	}

	if o.ci.RestartInterval > 0 {
		if err := common.WriteDRISegment(w, o.ci.RestartInterval); err != nil {
			return nil, err
		}
	}

	scan := &common.ScanHeader{
		Components: make([]common.ScanComponent, len(frame.Components)),
		Ss:         0, Se: 63, Ah: 0, Al: 0,
	}
	for i, c := range frame.Components {
		sel := o.selector(i)
		scan.Components[i] = common.ScanComponent{
			Selector:   c.ID,
			DCSelector: sel,
			ACSelector: sel,
		}
	}
	if err := scan.Serialize(w); err != nil {
		return nil, err
	}

	for i := range o.pred {
		o.pred[i] = 0
	}
	w.BeginBits()
	err = o.forEachUnit(
		func(ci int, b *common.Block) error {
			sel := o.selector(ci)
			return o.blockSymbols(ci, b,
				func(cat int, bits uint32) error {
					if err := w.WriteCode(o.codesDC[sel][cat]); err != nil {
						return err
					}
					return w.WriteBits(bits, cat)
				},
				func(sym byte, size int, bits uint32) error {
					if err := w.WriteCode(o.codesAC[sel][sym]); err != nil {
						return err
					}
					return w.WriteBits(bits, size)
				})
		},
		func(n int) error { return w.WriteRestart(n) })
	if err != nil {
		return nil, err
	}
	if err := w.EndBits(); err != nil {
		return nil, err
	}
	if err := w.WriteMarker(common.MarkerEOI); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// forEachUnit walks the single interleaved scan in emission order with
// restart-boundary predictor resets
func (o *optimizer) forEachUnit(fn func(ci int, b *common.Block) error, atRestart func(n int) error) error {
	frame := o.ci.Frame
	store := o.ci.Store
	for i := range o.pred {
		o.pred[i] = 0
	}
	ri := o.ci.RestartInterval
	restartCount := 0

	if len(frame.Components) == 1 {
		dims := store.Dims(0)
		total := dims.WidthInBlocks * dims.HeightInBlocks
		n := 0
		for by := 0; by < dims.HeightInBlocks; by++ {
			for bx := 0; bx < dims.WidthInBlocks; bx++ {
				if err := fn(0, store.Get(0, bx, by)); err != nil {
					return err
				}
				n++
				if ri > 0 && n%ri == 0 && n < total {
					if err := atRestart(restartCount); err != nil {
						return err
					}
					restartCount = (restartCount + 1) & 7
					for i := range o.pred {
						o.pred[i] = 0
					}
				}
			}
		}
		return nil
	}

	hmax, vmax := frame.MaxSampling()
	mcusX := common.DivCeil(frame.Width, 8*hmax)
	mcusY := common.DivCeil(frame.Height, 8*vmax)
	total := mcusX * mcusY
	n := 0
	for my := 0; my < mcusY; my++ {
		for mx := 0; mx < mcusX; mx++ {
			for ci := range frame.Components {
				c := &frame.Components[ci]
				for v := 0; v < c.V; v++ {
					for h := 0; h < c.H; h++ {
						if err := fn(ci, store.Get(ci, mx*c.H+h, my*c.V+v)); err != nil {
							return err
						}
					}
				}
			}
			n++
			if ri > 0 && n%ri == 0 && n < total {
				if err := atRestart(restartCount); err != nil {
					return err
				}
				restartCount = (restartCount + 1) & 7
				for i := range o.pred {
					o.pred[i] = 0
				}
			}
		}
	}
	return nil
}

// blockSymbols is the sequential run-length traversal shared by the
// statistics and emission passes
func (o *optimizer) blockSymbols(ci int, b *common.Block,
	dc func(cat int, bits uint32) error,
	ac func(sym byte, size int, bits uint32) error) error {

	diff := int(b[0]) - o.pred[ci]
	o.pred[ci] = int(b[0])
	cat, bits := common.EncodeCategory(diff)
	if err := dc(cat, bits); err != nil {
		return err
	}

	run := 0
	for k := 1; k < 64; k++ {
		v := int(b[common.ZigZag[k]])
		if v == 0 {
			run++
			continue
		}
		for run >= 16 {
			if err := ac(0xF0, 0, 0); err != nil {
				return err
			}
			run -= 16
		}
		cat, bits := common.EncodeCategory(v)
		if err := ac(byte(run<<4|cat), cat, bits); err != nil {
			return err
		}
		run = 0
	}
	if run > 0 {
		return ac(0x00, 0, 0)
	}
	return nil
}
