// Package arithmetic registers the decode-only codec for sequential and
// progressive arithmetic-coded JPEG (SOF9, SOF10).
package arithmetic

import (
	"github.com/cocosip/go-jpeg-codec/codec"
	"github.com/cocosip/go-jpeg-codec/jpeg/common"
	"github.com/cocosip/go-jpeg-codec/jpeg/decoder"
)

// Codec implements codec.Codec for arithmetic-coded JPEG, decode only
type Codec struct{}

// NewCodec creates a new arithmetic JPEG codec
func NewCodec() *Codec {
	return &Codec{}
}

// Encode is not supported for arithmetic-coded JPEG
func (c *Codec) Encode(params codec.EncodeParams) ([]byte, error) {
	return nil, codec.ErrEncodeNotSupported
}

// Decode decodes arithmetic-coded JPEG data
func (c *Codec) Decode(data []byte) (*codec.DecodeResult, error) {
	info, _, err := decoder.Identify(data, false)
	if err != nil {
		return nil, err
	}
	if !info.Arithmetic || info.Lossless {
		return nil, common.ErrUnsupportedFormat
	}

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

// UID returns the identifier for the arithmetic JPEG codec. Arithmetic
// coding never received a DICOM transfer syntax, so the ISO standard number
// stands in.
func (c *Codec) UID() string {
	return "iso.10918.1.arithmetic"
}

// Name returns the human-readable name
func (c *Codec) Name() string {
	return "jpeg-arithmetic"
}

func init() {
	codec.Register(NewCodec())
}
