package baseline

import (
	"github.com/cocosip/go-jpeg-codec/codec"
	"github.com/cocosip/go-jpeg-codec/jpeg/common"
	"github.com/cocosip/go-jpeg-codec/jpeg/decoder"
	"github.com/cocosip/go-jpeg-codec/jpeg/encoder"
)

// Codec implements the codec.Codec interface for JPEG Baseline (SOF0).
// Three-component input is treated as already color-converted planar YCbCr
// samples, interleaved per pixel; the codec performs no color conversion.
type Codec struct{}

// NewCodec creates a new JPEG Baseline codec
func NewCodec() *Codec {
	return &Codec{}
}

// Encode encodes pixel data using JPEG Baseline
func (c *Codec) Encode(params codec.EncodeParams) ([]byte, error) {
	quality := 85
	optimize := false
	if params.Options != nil {
		if opts, ok := params.Options.(*Options); ok {
			if err := opts.Validate(); err != nil {
				return nil, err
			}
			quality = opts.Quality
			optimize = opts.OptimizeHuffman
		}
	}
	if quality < 1 || quality > 100 {
		return nil, codec.ErrInvalidQuality
	}
	if params.BitDepth != 0 && params.BitDepth != 8 {
		return nil, common.ErrInvalidPrecision
	}
	if params.Width <= 0 || params.Height <= 0 {
		return nil, common.ErrInvalidDimensions
	}

	var cfg *encoder.Config
	switch params.Components {
	case 1:
		cfg = encoder.GrayscaleConfig(quality)
	case 3:
		cfg = encoder.YCbCrConfig(quality, 2, 2)
	default:
		return nil, common.ErrInvalidComponents
	}
	cfg.OptimizeHuffman = optimize

	src, err := interleavedSource(params)
	if err != nil {
		return nil, err
	}
	return encoder.EncodeBytes(src, cfg)
}

// interleavedSource splits interleaved pixel data into the planar source
// the encoder consumes
func interleavedSource(params codec.EncodeParams) (*encoder.PlanarSource, error) {
	n := params.Components
	if len(params.PixelData) < params.Width*params.Height*n {
		return nil, common.ErrBufferTooSmall
	}
	planes := make([][]byte, n)
	for i := range planes {
		planes[i] = make([]byte, params.Width*params.Height)
	}
	for p := 0; p < params.Width*params.Height; p++ {
		for i := 0; i < n; i++ {
			planes[i][p] = params.PixelData[p*n+i]
		}
	}
	return encoder.NewPlanarSource(params.Width, params.Height, planes...), nil
}

// Decode decodes JPEG Baseline data
func (c *Codec) Decode(data []byte) (*codec.DecodeResult, error) {
	sink := decoder.NewSampleBuffer()
	if err := decoder.Decode(data, sink); err != nil {
		return nil, err
	}
	frame := sink.Frame()
	return &codec.DecodeResult{
		PixelData:  sink.Interleaved(),
		Width:      frame.Width,
		Height:     frame.Height,
		Components: len(frame.Components),
		BitDepth:   frame.Precision,
	}, nil
}

// UID returns the DICOM Transfer Syntax UID for JPEG Baseline
func (c *Codec) UID() string {
	return "1.2.840.10008.1.2.4.50"
}

// Name returns the human-readable name
func (c *Codec) Name() string {
	return "jpeg-baseline"
}

// Options contains encoding options for JPEG Baseline
type Options struct {
	codec.BaseOptions
}

// Validate validates the options
func (o *Options) Validate() error {
	return o.BaseOptions.Validate()
}

// Register registers this codec with the global registry
func init() {
	codec.Register(NewCodec())
}
