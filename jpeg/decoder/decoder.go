package decoder

import (
	"fmt"

	"github.com/cocosip/go-jpeg-codec/jpeg/common"
)

// Decoder decodes one JPEG stream. A Decoder value is owned by a single
// caller; independent images use independent decoders.
type Decoder struct {
	quant  [4]*common.QuantizationTable
	dcHuff [4]*common.HuffmanTable
	acHuff [4]*common.HuffmanTable
	dcCond [4]common.ArithConditioning
	acCond [4]common.ArithConditioning

	restartInterval int

	frame    *common.FrameHeader
	comps    []frameComp
	store    *common.BlockStore
	lossless *losslessState
	sink     Sink

	// keepCoefficients suppresses the final dequantize/IDCT pass and keeps
	// the block store alive for transcoders
	keepCoefficients bool
}

// frameComp is per-component layout derived from the frame header
type frameComp struct {
	comp *common.FrameComponent
	dims common.BlockDims
}

// NewDecoder creates a decoder with default arithmetic conditioning
func NewDecoder() *Decoder {
	d := &Decoder{}
	for i := 0; i < 4; i++ {
		d.dcCond[i] = common.ArithConditioning{
			Class: 0, ID: i,
			L: common.DefaultArithDCLow, U: common.DefaultArithDCHigh,
		}
		d.acCond[i] = common.ArithConditioning{
			Class: 1, ID: i,
			Kx: common.DefaultArithACKx,
		}
	}
	return d
}

// Decode decodes a complete JPEG stream into the sink
func Decode(data []byte, sink Sink) error {
	return NewDecoder().Decode(data, sink)
}

// CoefficientImage is the still-quantized form of a decoded frame, used by
// optimizing transcoders
type CoefficientImage struct {
	Frame           *common.FrameHeader
	Quant           [4]*common.QuantizationTable
	RestartInterval int
	Store           *common.BlockStore
}

// DecodeCoefficients decodes a DCT-based JPEG stream into its quantized
// coefficient blocks, skipping dequantization and the inverse DCT
func DecodeCoefficients(data []byte) (*CoefficientImage, error) {
	d := NewDecoder()
	d.keepCoefficients = true
	if err := d.run(data); err != nil {
		return nil, err
	}
	if d.frame == nil || d.store == nil {
		return nil, common.ErrInvalidSOF
	}
	return &CoefficientImage{
		Frame:           d.frame,
		Quant:           d.quant,
		RestartInterval: d.restartInterval,
		Store:           d.store,
	}, nil
}

// Decode decodes a complete JPEG stream into the sink
func (d *Decoder) Decode(data []byte, sink Sink) error {
	if sink == nil {
		return common.ErrInvalidOperation
	}
	d.sink = sink
	return d.run(data)
}

func (d *Decoder) run(data []byte) error {
	r := common.NewReader(data)

	marker, err := r.ReadMarker()
	if err != nil {
		return err
	}
	if marker != common.MarkerSOI {
		return common.ErrInvalidSOI
	}

	for {
		marker, err := r.ReadMarker()
		if err != nil {
			return err
		}

		switch {
		case marker == common.MarkerSOF0 || marker == common.MarkerSOF1 ||
			marker == common.MarkerSOF2 || marker == common.MarkerSOF3 ||
			marker == common.MarkerSOF9 || marker == common.MarkerSOF10:
			if err := d.parseFrame(r, marker); err != nil {
				return err
			}

		case common.IsSOF(marker):
			return fmt.Errorf("%w: marker 0x%04X", common.ErrUnsupportedFormat, marker)

		case marker == common.MarkerDQT:
			if err := d.parseDQT(r); err != nil {
				return err
			}

		case marker == common.MarkerDHT:
			if err := d.parseDHT(r); err != nil {
				return err
			}

		case marker == common.MarkerDAC:
			if err := d.parseDAC(r); err != nil {
				return err
			}

		case marker == common.MarkerDRI:
			seg, err := r.ReadSegment()
			if err != nil {
				return err
			}
			ri, err := common.ParseDRI(seg)
			if err != nil {
				return offsetError(r, err)
			}
			d.restartInterval = ri

		case marker == common.MarkerSOS:
			consumed, err := d.runScan(r)
			if err != nil {
				return err
			}
			if consumed == common.MarkerEOI {
				return d.finish()
			}

		case marker == common.MarkerEOI:
			return d.finish()

		default:
			if common.IsRST(marker) {
				return offsetError(r, common.ErrInvalidMarker)
			}
			// APPn, COM, DNL and anything unknown: accepted by length-skip
			if common.HasLength(marker) {
				if _, err := r.ReadSegment(); err != nil {
					return err
				}
			}
		}
	}
}

func offsetError(r *common.Reader, err error) error {
	return fmt.Errorf("offset %d: %w", r.Pos(), err)
}

func (d *Decoder) parseFrame(r *common.Reader, marker uint16) error {
	if d.frame != nil {
		return offsetError(r, common.ErrInvalidData)
	}
	seg, err := r.ReadSegment()
	if err != nil {
		return err
	}
	frame, err := common.ParseFrameHeader(marker, seg)
	if err != nil {
		return offsetError(r, err)
	}
	if frame.Height <= 0 {
		// Deferred height via DNL is not supported
		return offsetError(r, common.ErrInvalidDimensions)
	}
	switch marker {
	case common.MarkerSOF0:
		if frame.Precision != 8 {
			return offsetError(r, common.ErrInvalidPrecision)
		}
	case common.MarkerSOF1, common.MarkerSOF2, common.MarkerSOF9, common.MarkerSOF10:
		if frame.Precision != 8 && frame.Precision != 12 {
			return offsetError(r, common.ErrInvalidPrecision)
		}
	}
	d.frame = frame
	if d.sink != nil {
		d.sink.Begin(frame)
	}

	hmax, vmax := frame.MaxSampling()
	d.comps = make([]frameComp, len(frame.Components))
	dims := make([]common.BlockDims, len(frame.Components))
	mcusX := common.DivCeil(frame.Width, 8*hmax)
	mcusY := common.DivCeil(frame.Height, 8*vmax)
	for i := range frame.Components {
		c := &frame.Components[i]
		dm := common.BlockDims{
			WidthInBlocks:  common.DivCeil(frame.Width*c.H, 8*hmax),
			HeightInBlocks: common.DivCeil(frame.Height*c.V, 8*vmax),
			StoreWidth:     mcusX * c.H,
			StoreHeight:    mcusY * c.V,
		}
		d.comps[i] = frameComp{comp: c, dims: dm}
		dims[i] = dm
	}

	if marker == common.MarkerSOF3 {
		d.lossless = newLosslessState(frame, hmax, vmax)
	} else {
		d.store = common.NewBlockStore(dims)
	}
	return nil
}

func (d *Decoder) parseDQT(r *common.Reader) error {
	seg, err := r.ReadSegment()
	if err != nil {
		return err
	}
	tables, err := common.ParseDQT(seg)
	if err != nil {
		return offsetError(r, err)
	}
	for _, t := range tables {
		d.quant[t.ID] = t
	}
	return nil
}

func (d *Decoder) parseDHT(r *common.Reader) error {
	seg, err := r.ReadSegment()
	if err != nil {
		return err
	}
	tables, err := common.ParseDHT(seg)
	if err != nil {
		return offsetError(r, err)
	}
	for _, t := range tables {
		if t.Class == 0 {
			d.dcHuff[t.ID] = t
		} else {
			d.acHuff[t.ID] = t
		}
	}
	return nil
}

func (d *Decoder) parseDAC(r *common.Reader) error {
	seg, err := r.ReadSegment()
	if err != nil {
		return err
	}
	conds, err := common.ParseDAC(seg)
	if err != nil {
		return offsetError(r, err)
	}
	for _, c := range conds {
		if c.Class == 0 {
			d.dcCond[c.ID] = c
		} else {
			d.acCond[c.ID] = c
		}
	}
	return nil
}

// runScan parses the scan header, constructs the scan decoder matching the
// frame type, and drives it over the entropy-coded segment. It returns
// MarkerEOI when the scan consumed the EOI marker at a restart boundary.
func (d *Decoder) runScan(r *common.Reader) (uint16, error) {
	if d.frame == nil {
		return 0, offsetError(r, common.ErrInvalidSOS)
	}
	seg, err := r.ReadSegment()
	if err != nil {
		return 0, err
	}
	scan, err := common.ParseScanHeader(seg)
	if err != nil {
		return 0, offsetError(r, err)
	}

	comps := make([]int, len(scan.Components))
	sampleSum := 0
	for i, sc := range scan.Components {
		ci, fc := d.frame.ComponentByID(sc.Selector)
		if fc == nil {
			return 0, offsetError(r, common.ErrInvalidSOS)
		}
		comps[i] = ci
		sampleSum += fc.H * fc.V
	}
	if len(scan.Components) > 1 && sampleSum > 10 {
		return 0, offsetError(r, common.ErrInvalidSOS)
	}

	if d.frame.Marker == common.MarkerSOF3 {
		ls := newLosslessScan(d, r, scan, comps)
		return ls.run()
	}

	var sd scanDecoder
	switch d.frame.Marker {
	case common.MarkerSOF0, common.MarkerSOF1:
		if scan.Ss != 0 || scan.Se != 63 || scan.Ah != 0 || scan.Al != 0 {
			return 0, offsetError(r, common.ErrInvalidSOS)
		}
		sd, err = newSequentialScan(d, r, scan, comps)
	case common.MarkerSOF2:
		sd, err = newProgressiveScan(d, r, scan, comps)
	case common.MarkerSOF9:
		if scan.Ss != 0 || scan.Se != 63 || scan.Ah != 0 || scan.Al != 0 {
			return 0, offsetError(r, common.ErrInvalidSOS)
		}
		sd, err = newArithScan(d, r, scan, comps)
	case common.MarkerSOF10:
		if err := validateProgressiveBand(scan, len(comps)); err != nil {
			return 0, offsetError(r, err)
		}
		sd, err = newArithScan(d, r, scan, comps)
	default:
		return 0, fmt.Errorf("%w: marker 0x%04X", common.ErrUnsupportedFormat, d.frame.Marker)
	}
	if err != nil {
		return 0, offsetError(r, err)
	}

	drv := &scanDriver{
		d:               d,
		r:               r,
		scan:            scan,
		comps:           comps,
		sd:              sd,
		restartInterval: d.restartInterval,
	}
	return drv.run()
}

// validateProgressiveBand checks the spectral band and successive
// approximation constraints shared by the progressive decoders
func validateProgressiveBand(scan *common.ScanHeader, ncomps int) error {
	if scan.Ss == 0 {
		if scan.Se != 0 {
			return common.ErrInvalidSOS
		}
	} else {
		if scan.Se < scan.Ss || scan.Se > 63 {
			return common.ErrInvalidSOS
		}
		if ncomps != 1 {
			// AC scans are never interleaved
			return common.ErrInvalidSOS
		}
	}
	if scan.Ah != 0 && scan.Ah != scan.Al+1 {
		return common.ErrInvalidSOS
	}
	return nil
}

// finish runs the coefficient transform pass and releases the block cache
func (d *Decoder) finish() error {
	if d.frame == nil {
		return common.ErrInvalidEOI
	}
	if d.keepCoefficients {
		if d.lossless != nil {
			return common.ErrUnsupportedFormat
		}
		return nil
	}
	if d.lossless != nil {
		d.lossless.writeBlocks(d.sink)
		d.lossless = nil
		return nil
	}

	var deq [common.BlockSize]float32
	var out common.Block
	for ci := range d.comps {
		fc := &d.comps[ci]
		q := d.quant[fc.comp.QuantSelector]
		if q == nil {
			return common.ErrInvalidDQT
		}
		for by := 0; by < fc.dims.HeightInBlocks; by++ {
			for bx := 0; bx < fc.dims.WidthInBlocks; bx++ {
				b := d.store.Get(ci, bx, by)
				for i := 0; i < common.BlockSize; i++ {
					deq[i] = float32(int32(b[i]) * int32(q.Values[i]))
				}
				common.InverseDCT(&deq, &out, d.frame.Precision)
				d.sink.WriteBlock(&out, ci, bx*8, by*8)
			}
		}
	}
	d.store = nil
	return nil
}
