// Package lossless registers the decode-only codec for lossless Huffman
// JPEG (SOF3, process 14). Encoding lossless scans is not supported.
package lossless

import (
	"github.com/cocosip/go-jpeg-codec/codec"
	"github.com/cocosip/go-jpeg-codec/jpeg/common"
	"github.com/cocosip/go-jpeg-codec/jpeg/decoder"
)

// Codec implements codec.Codec for JPEG Lossless (SOF3), decode only
type Codec struct{}

// NewCodec creates a new JPEG Lossless codec
func NewCodec() *Codec {
	return &Codec{}
}

// Encode is not supported for lossless JPEG
func (c *Codec) Encode(params codec.EncodeParams) ([]byte, error) {
	return nil, codec.ErrEncodeNotSupported
}

// Decode decodes lossless JPEG data. Samples above 8 bits are returned in
// little-endian byte pairs.
func (c *Codec) Decode(data []byte) (*codec.DecodeResult, error) {
	info, _, err := decoder.Identify(data, false)
	if err != nil {
		return nil, err
	}
	if !info.Lossless || info.Arithmetic {
		return nil, common.ErrUnsupportedFormat
	}

	sink := decoder.NewSampleBuffer()
	if err := decoder.Decode(data, sink); err != nil {
		return nil, err
	}
	frame := sink.Frame()

	var pixelData []byte
	if frame.Precision > 8 {
		samples := sink.Interleaved16()
		pixelData = make([]byte, len(samples)*2)
		for i, s := range samples {
			pixelData[i*2] = byte(s)
			pixelData[i*2+1] = byte(s >> 8)
		}
	} else {
		pixelData = sink.Interleaved()
	}

	return &codec.DecodeResult{
		PixelData:  pixelData,
		Width:      frame.Width,
		Height:     frame.Height,
		Components: len(frame.Components),
		BitDepth:   frame.Precision,
	}, nil
}

// UID returns the DICOM Transfer Syntax UID for JPEG Lossless Process 14
func (c *Codec) UID() string {
	return "1.2.840.10008.1.2.4.57"
}

// Name returns the human-readable name
func (c *Codec) Name() string {
	return "jpeg-lossless"
}

func init() {
	codec.Register(NewCodec())
}
