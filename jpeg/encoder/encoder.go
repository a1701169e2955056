// Package encoder produces baseline (SOF0) Huffman-coded JPEG streams from
// planar block sources. Coefficients are quantized into a block store
// first, so the optional statistics pass and the emission pass walk the
// same data.
package encoder

import (
	"bytes"
	"io"
	"math"

	"github.com/cocosip/go-jpeg-codec/jpeg/common"
)

// Source supplies full-resolution sample blocks. ReadBlock fills b with the
// 8x8 tile of component comp whose top-left pixel is (8x, 8y); tiles beyond
// the image edge must be padded by the source.
type Source interface {
	Width() int
	Height() int
	ReadBlock(b *common.Block, comp, x, y int)
}

// ComponentSpec configures one frame component
type ComponentSpec struct {
	ID            byte
	H, V          int
	QuantSelector int
	DCSelector    int
	ACSelector    int
}

// Config collects everything the encoder needs besides the samples.
// A nil Huffman table slot referenced by a component is supplied by the
// optimal-Huffman statistics pass; OptimizeHuffman forces that pass for
// every referenced slot.
type Config struct {
	Components      []ComponentSpec
	QuantTables     [4]*common.QuantizationTable
	DCTables        [4]*common.HuffmanTable
	ACTables        [4]*common.HuffmanTable
	RestartInterval int
	OptimizeHuffman bool
}

type encoder struct {
	cfg   *Config
	src   Source
	frame *common.FrameHeader
	store *common.BlockStore

	hmax, vmax   int
	mcusX, mcusY int

	dcTables [4]*common.HuffmanTable
	acTables [4]*common.HuffmanTable
	dcCodes  [4][]common.HuffmanCode
	acCodes  [4][]common.HuffmanCode

	pred []int
}

// EncodeBytes encodes the source into a new byte slice
func EncodeBytes(src Source, cfg *Config) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(src, cfg, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode encodes the source as a baseline JPEG into w
func Encode(src Source, cfg *Config, w io.Writer) error {
	e := &encoder{cfg: cfg, src: src}
	if err := e.validate(); err != nil {
		return err
	}
	e.layout()
	if err := e.gather(); err != nil {
		return err
	}
	if err := e.resolveTables(); err != nil {
		return err
	}
	return e.emit(common.NewWriter(w))
}

func (e *encoder) validate() error {
	cfg := e.cfg
	if e.src == nil || e.src.Width() <= 0 || e.src.Height() <= 0 {
		return common.ErrInvalidDimensions
	}
	if e.src.Width() > 0xFFFF || e.src.Height() > 0xFFFF {
		return common.ErrInvalidDimensions
	}
	if len(cfg.Components) < 1 || len(cfg.Components) > 4 {
		return common.ErrInvalidComponents
	}
	sampleSum := 0
	for i, c := range cfg.Components {
		if c.H < 1 || c.H > 4 || c.V < 1 || c.V > 4 {
			return common.ErrInvalidComponents
		}
		if c.QuantSelector < 0 || c.QuantSelector > 3 ||
			c.DCSelector < 0 || c.DCSelector > 3 ||
			c.ACSelector < 0 || c.ACSelector > 3 {
			return common.ErrInvalidComponents
		}
		if cfg.QuantTables[c.QuantSelector] == nil {
			return common.ErrInvalidDQT
		}
		for j := 0; j < i; j++ {
			if cfg.Components[j].ID == c.ID {
				return common.ErrInvalidComponents
			}
		}
		sampleSum += c.H * c.V
	}
	if len(cfg.Components) > 1 && sampleSum > 10 {
		return common.ErrInvalidComponents
	}
	return nil
}

func (e *encoder) layout() {
	cfg := e.cfg
	e.frame = &common.FrameHeader{
		Marker:     common.MarkerSOF0,
		Precision:  8,
		Width:      e.src.Width(),
		Height:     e.src.Height(),
		Components: make([]common.FrameComponent, len(cfg.Components)),
	}
	for i, c := range cfg.Components {
		e.frame.Components[i] = common.FrameComponent{
			ID: c.ID, H: c.H, V: c.V, QuantSelector: c.QuantSelector,
		}
	}
	e.hmax, e.vmax = e.frame.MaxSampling()
	e.mcusX = common.DivCeil(e.frame.Width, 8*e.hmax)
	e.mcusY = common.DivCeil(e.frame.Height, 8*e.vmax)

	dims := make([]common.BlockDims, len(cfg.Components))
	for i, c := range cfg.Components {
		dims[i] = common.BlockDims{
			WidthInBlocks:  common.DivCeil(e.frame.Width*c.H, 8*e.hmax),
			HeightInBlocks: common.DivCeil(e.frame.Height*c.V, 8*e.vmax),
			StoreWidth:     e.mcusX * c.H,
			StoreHeight:    e.mcusY * c.V,
		}
	}
	e.store = common.NewBlockStore(dims)
	e.pred = make([]int, len(cfg.Components))
}

// gather reads, sub-samples, transforms and quantizes every block of the
// frame into the store
func (e *encoder) gather() error {
	var sample common.Block
	var coef [common.BlockSize]float32

	for ci, c := range e.cfg.Components {
		ratioH := e.hmax / c.H
		ratioV := e.vmax / c.V
		if ratioH*c.H != e.hmax || ratioV*c.V != e.vmax {
			// Box-filter averaging needs integer sampling ratios
			return common.ErrInvalidComponents
		}
		q := e.cfg.QuantTables[c.QuantSelector]
		dims := e.store.Dims(ci)
		for by := 0; by < dims.StoreHeight; by++ {
			for bx := 0; bx < dims.StoreWidth; bx++ {
				e.readSubsampled(&sample, ci, bx, by, ratioH, ratioV)
				common.LevelShift(&sample, 8)
				common.ForwardDCT(&sample, &coef)

				out := e.store.Get(ci, bx, by)
				for i := 0; i < common.BlockSize; i++ {
					qv := q.Values[i]
					if qv == 0 {
						qv = 1
					}
					out[i] = int16(math.Round(float64(coef[i]) / float64(qv)))
				}
			}
		}
	}
	return nil
}

// readSubsampled fills b with one component block, box-filter averaging
// ratioH x ratioV full-resolution source blocks
func (e *encoder) readSubsampled(b *common.Block, ci, bx, by, ratioH, ratioV int) {
	if ratioH == 1 && ratioV == 1 {
		e.src.ReadBlock(b, ci, bx, by)
		return
	}

	var acc [common.BlockSize]int32
	var tmp common.Block
	for j := 0; j < ratioV; j++ {
		for i := 0; i < ratioH; i++ {
			e.src.ReadBlock(&tmp, ci, bx*ratioH+i, by*ratioV+j)
			for row := 0; row < 8; row++ {
				tr := (j*8 + row) / ratioV
				for col := 0; col < 8; col++ {
					tc := (i*8 + col) / ratioH
					acc[tr*8+tc] += int32(tmp[row*8+col])
				}
			}
		}
	}

	shift := uint(0)
	for 1<<shift < ratioH*ratioV {
		shift++
	}
	half := int32(0)
	if shift > 0 {
		half = 1 << (shift - 1)
	}
	for i := range b {
		b[i] = int16((acc[i] + half) >> shift)
	}
}

// resolveTables picks the Huffman tables for every referenced selector,
// running the statistics pass for slots the caller left unset
func (e *encoder) resolveTables() error {
	needStats := false
	for _, c := range e.cfg.Components {
		e.dcTables[c.DCSelector] = e.cfg.DCTables[c.DCSelector]
		e.acTables[c.ACSelector] = e.cfg.ACTables[c.ACSelector]
		if e.cfg.OptimizeHuffman {
			e.dcTables[c.DCSelector] = nil
			e.acTables[c.ACSelector] = nil
		}
		if e.dcTables[c.DCSelector] == nil || e.acTables[c.ACSelector] == nil {
			needStats = true
		}
	}
	if needStats {
		if err := e.buildOptimalTables(); err != nil {
			return err
		}
	}
	for _, c := range e.cfg.Components {
		if e.dcCodes[c.DCSelector] == nil {
			e.dcCodes[c.DCSelector] = common.BuildHuffmanCodes(e.dcTables[c.DCSelector])
		}
		if e.acCodes[c.ACSelector] == nil {
			e.acCodes[c.ACSelector] = common.BuildHuffmanCodes(e.acTables[c.ACSelector])
		}
	}
	return nil
}

// forEachUnit walks the scan's data units in emission order, resetting DC
// predictors at restart boundaries, and hands each block to fn
func (e *encoder) forEachUnit(fn func(ci int, b *common.Block) error, atRestart func(n int) error) error {
	for i := range e.pred {
		e.pred[i] = 0
	}
	interleaved := len(e.cfg.Components) > 1
	ri := e.cfg.RestartInterval
	restartCount := 0

	if !interleaved {
		dims := e.store.Dims(0)
		total := dims.WidthInBlocks * dims.HeightInBlocks
		n := 0
		for by := 0; by < dims.HeightInBlocks; by++ {
			for bx := 0; bx < dims.WidthInBlocks; bx++ {
				if err := fn(0, e.store.Get(0, bx, by)); err != nil {
					return err
				}
				n++
				if ri > 0 && n%ri == 0 && n < total {
					if err := atRestart(restartCount); err != nil {
						return err
					}
					restartCount = (restartCount + 1) & 7
					for i := range e.pred {
						e.pred[i] = 0
					}
				}
			}
		}
		return nil
	}

	total := e.mcusX * e.mcusY
	n := 0
	for my := 0; my < e.mcusY; my++ {
		for mx := 0; mx < e.mcusX; mx++ {
			for ci, c := range e.cfg.Components {
				for v := 0; v < c.V; v++ {
					for h := 0; h < c.H; h++ {
						if err := fn(ci, e.store.Get(ci, mx*c.H+h, my*c.V+v)); err != nil {
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
				for i := range e.pred {
					e.pred[i] = 0
				}
			}
		}
	}
	return nil
}

// blockSymbols runs the run-length traversal of one block, reporting the DC
// category and the AC run/size symbols with their appended bits
func (e *encoder) blockSymbols(ci int, b *common.Block,
	dc func(cat int, bits uint32) error,
	ac func(sym byte, size int, bits uint32) error) error {

	diff := int(b[0]) - e.pred[ci]
	e.pred[ci] = int(b[0])
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

// emit writes the complete marker sequence and the entropy-coded scan
func (e *encoder) emit(w *common.Writer) error {
	if err := w.WriteMarker(common.MarkerSOI); err != nil {
		return err
	}

	// DQT: each referenced table once
	var quants []*common.QuantizationTable
	seenQ := [4]bool{}
	for _, c := range e.cfg.Components {
		if !seenQ[c.QuantSelector] {
			seenQ[c.QuantSelector] = true
			q := *e.cfg.QuantTables[c.QuantSelector]
			q.ID = c.QuantSelector
			quants = append(quants, &q)
		}
	}
	if err := common.WriteDQTSegment(w, quants); err != nil {
		return err
	}

	if err := e.frame.Serialize(w); err != nil {
		return err
	}

	// DHT: each referenced table once
	var huffs []*common.HuffmanTable
	seenDC := [4]bool{}
	seenAC := [4]bool{}
	for _, c := range e.cfg.Components {
		if !seenDC[c.DCSelector] {
			seenDC[c.DCSelector] = true
			t := *e.dcTables[c.DCSelector]
			t.Class = 0
			t.ID = c.DCSelector
			huffs = append(huffs, &t)
		}
		if !seenAC[c.ACSelector] {
			seenAC[c.ACSelector] = true
			t := *e.acTables[c.ACSelector]
			t.Class = 1
			t.ID = c.ACSelector
			huffs = append(huffs, &t)
		}
	}
	if err := common.WriteDHTSegment(w, huffs); err != nil {
		return err
	}

	if e.cfg.RestartInterval > 0 {
		if err := common.WriteDRISegment(w, e.cfg.RestartInterval); err != nil {
			return err
		}
	}

	scan := &common.ScanHeader{
		Components: make([]common.ScanComponent, len(e.cfg.Components)),
		Ss:         0, Se: 63, Ah: 0, Al: 0,
	}
	for i, c := range e.cfg.Components {
		scan.Components[i] = common.ScanComponent{
			Selector:   c.ID,
			DCSelector: c.DCSelector,
			ACSelector: c.ACSelector,
		}
	}
	if err := scan.Serialize(w); err != nil {
		return err
	}

	w.BeginBits()
	err := e.forEachUnit(
		func(ci int, b *common.Block) error {
			c := &e.cfg.Components[ci]
			dcCodes := e.dcCodes[c.DCSelector]
			acCodes := e.acCodes[c.ACSelector]
			return e.blockSymbols(ci, b,
				func(cat int, bits uint32) error {
					if err := w.WriteCode(dcCodes[cat]); err != nil {
						return err
					}
					return w.WriteBits(bits, cat)
				},
				func(sym byte, size int, bits uint32) error {
					if err := w.WriteCode(acCodes[sym]); err != nil {
						return err
					}
					return w.WriteBits(bits, size)
				})
		},
		func(n int) error {
			return w.WriteRestart(n)
		})
	if err != nil {
		return err
	}
	if err := w.EndBits(); err != nil {
		return err
	}

	return w.WriteMarker(common.MarkerEOI)
}
