package decoder

import (
	"github.com/cocosip/go-jpeg-codec/jpeg/common"
)

// ImageInfo is the result of identifying a JPEG stream without decoding it
type ImageInfo struct {
	Width      int
	Height     int
	Components int
	Precision  int

	Progressive bool
	Arithmetic  bool
	Lossless    bool

	// EstimatedQuality is the IJG-style quality estimate derived from the
	// quantization tables, 0 when tables were not loaded or not present
	EstimatedQuality int
}

// Identify scans a JPEG stream up to and including EOI, recording the frame
// parameters without decoding any scan. Quantization tables are loaded only
// when loadQuant is set (they fund the quality estimate). The returned
// count is the number of bytes consumed, i.e. the offset of the byte
// following EOI.
func Identify(data []byte, loadQuant bool) (*ImageInfo, int, error) {
	r := common.NewReader(data)

	marker, err := r.ReadMarker()
	if err != nil {
		return nil, 0, err
	}
	if marker != common.MarkerSOI {
		return nil, 0, common.ErrInvalidSOI
	}

	var info *ImageInfo
	var frame *common.FrameHeader
	var quant [4]*common.QuantizationTable

	pending := uint16(0)
	for {
		var marker uint16
		if pending != 0 {
			marker, pending = pending, 0
		} else {
			marker, err = r.ReadMarker()
			if err != nil {
				return nil, 0, err
			}
		}

		switch {
		case common.IsSOF(marker):
			if info != nil {
				return nil, 0, offsetError(r, common.ErrInvalidData)
			}
			seg, err := r.ReadSegment()
			if err != nil {
				return nil, 0, err
			}
			frame, err = common.ParseFrameHeader(marker, seg)
			if err != nil {
				return nil, 0, offsetError(r, err)
			}
			info = &ImageInfo{
				Width:       frame.Width,
				Height:      frame.Height,
				Components:  len(frame.Components),
				Precision:   frame.Precision,
				Progressive: marker == common.MarkerSOF2 || marker == common.MarkerSOF10,
				Arithmetic:  marker >= common.MarkerSOF9 && marker <= common.MarkerSOF11,
				Lossless:    marker == common.MarkerSOF3 || marker == common.MarkerSOF11,
			}

		case marker == common.MarkerDQT:
			seg, err := r.ReadSegment()
			if err != nil {
				return nil, 0, err
			}
			if loadQuant {
				tables, err := common.ParseDQT(seg)
				if err != nil {
					return nil, 0, offsetError(r, err)
				}
				for _, t := range tables {
					quant[t.ID] = t
				}
			}

		case marker == common.MarkerSOS:
			if _, err := r.ReadSegment(); err != nil {
				return nil, 0, err
			}
			// Skip the entropy-coded segment, restart markers included
			for {
				if err := r.SkipToMarker(); err != nil {
					return nil, 0, err
				}
				m, err := r.ReadMarker()
				if err != nil {
					return nil, 0, err
				}
				if common.IsRST(m) {
					continue
				}
				pending = m
				break
			}

		case marker == common.MarkerEOI:
			if info == nil {
				return nil, 0, common.ErrInvalidSOF
			}
			if loadQuant {
				info.EstimatedQuality = estimateFrameQuality(frame, quant)
			}
			return info, r.Pos(), nil

		default:
			if common.IsRST(marker) {
				return nil, 0, offsetError(r, common.ErrInvalidMarker)
			}
			if common.HasLength(marker) {
				if _, err := r.ReadSegment(); err != nil {
					return nil, 0, err
				}
			}
		}
	}
}

// estimateFrameQuality maps the frame's component table selectors onto the
// luminance/chrominance quality estimate
func estimateFrameQuality(frame *common.FrameHeader, quant [4]*common.QuantizationTable) int {
	if frame == nil {
		return 0
	}
	lum := quant[frame.Components[0].QuantSelector]
	var chroma *common.QuantizationTable
	if len(frame.Components) > 1 {
		c := quant[frame.Components[1].QuantSelector]
		if c != lum {
			chroma = c
		}
	}
	if lum == nil {
		return 0
	}
	return common.EstimateQuality(lum, chroma)
}
