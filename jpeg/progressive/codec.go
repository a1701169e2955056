// Package progressive registers the decode-only codec for progressive
// Huffman JPEG (SOF2). Encoding progressive scans is not supported.
package progressive

import (
	"github.com/cocosip/go-jpeg-codec/codec"
	"github.com/cocosip/go-jpeg-codec/jpeg/common"
	"github.com/cocosip/go-jpeg-codec/jpeg/decoder"
)

// Codec implements codec.Codec for JPEG Progressive (SOF2), decode only
type Codec struct{}

// NewCodec creates a new JPEG Progressive codec
func NewCodec() *Codec {
	return &Codec{}
}

// Encode is not supported for progressive JPEG
func (c *Codec) Encode(params codec.EncodeParams) ([]byte, error) {
	return nil, codec.ErrEncodeNotSupported
}

// Decode decodes progressive JPEG data
func (c *Codec) Decode(data []byte) (*codec.DecodeResult, error) {
	info, _, err := decoder.Identify(data, false)
	if err != nil {
		return nil, err
	}
	if !info.Progressive || info.Arithmetic {
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

// UID returns the (retired) DICOM Transfer Syntax UID for progressive JPEG
func (c *Codec) UID() string {
	return "1.2.840.10008.1.2.4.55"
}

// Name returns the human-readable name
func (c *Codec) Name() string {
	return "jpeg-progressive"
}

func init() {
	codec.Register(NewCodec())
}
