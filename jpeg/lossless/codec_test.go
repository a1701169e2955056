package lossless

import (
	"testing"

	"github.com/cocosip/go-jpeg-codec/codec"
	"github.com/cocosip/go-jpeg-codec/jpeg/encoder"
)

func TestEncodeNotSupported(t *testing.T) {
	if _, err := NewCodec().Encode(codec.EncodeParams{}); err != codec.ErrEncodeNotSupported {
		t.Errorf("Encode error = %v, want ErrEncodeNotSupported", err)
	}
}

func TestDecodeRejectsBaseline(t *testing.T) {
	const w, h = 16, 16
	plane := make([]byte, w*h)
	data, err := encoder.EncodeBytes(encoder.NewPlanarSource(w, h, plane), encoder.GrayscaleConfig(80))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewCodec().Decode(data); err == nil {
		t.Error("baseline input must be rejected by the lossless codec")
	}
}

func TestRegistered(t *testing.T) {
	if _, err := codec.Get("1.2.840.10008.1.2.4.57"); err != nil {
		t.Fatalf("codec not registered by UID: %v", err)
	}
}
