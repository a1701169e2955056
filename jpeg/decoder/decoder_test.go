package decoder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cocosip/go-jpeg-codec/jpeg/encoder"
)

func grayPlane(w, h int, value byte) []byte {
	p := make([]byte, w*h)
	for i := range p {
		p[i] = value
	}
	return p
}

func gradientPlane(w, h int) []byte {
	p := make([]byte, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			p[y*w+x] = byte((x + y) % 256)
		}
	}
	return p
}

func decodeToSink(t *testing.T, data []byte) *SampleBuffer {
	t.Helper()
	sink := NewSampleBuffer()
	require.NoError(t, Decode(data, sink))
	return sink
}

// Baseline encode/decode of a uniform gray image must reproduce the input
// within +-2 for every size and chroma layout.
func TestUniformGrayRoundTrip(t *testing.T) {
	sizes := []int{1, 7, 8, 9, 16, 64, 127, 128, 129}
	layouts := []struct {
		name   string
		sh, sv int
		gray   bool
	}{
		{"gray", 1, 1, true},
		{"4:4:4", 1, 1, false},
		{"4:2:2", 2, 1, false},
		{"4:2:0", 2, 2, false},
	}
	const value = 200

	for _, layout := range layouts {
		for _, w := range sizes {
			for _, h := range sizes {
				var cfg *encoder.Config
				var src *encoder.PlanarSource
				if layout.gray {
					cfg = encoder.GrayscaleConfig(90)
					src = encoder.NewPlanarSource(w, h, grayPlane(w, h, value))
				} else {
					cfg = encoder.YCbCrConfig(90, layout.sh, layout.sv)
					src = encoder.NewPlanarSource(w, h,
						grayPlane(w, h, value), grayPlane(w, h, value), grayPlane(w, h, value))
				}

				data, err := encoder.EncodeBytes(src, cfg)
				require.NoError(t, err, "%s %dx%d", layout.name, w, h)

				sink := decodeToSink(t, data)
				frame := sink.Frame()
				require.Equal(t, w, frame.Width)
				require.Equal(t, h, frame.Height)

				for ci := range frame.Components {
					for _, s := range sink.Plane(ci) {
						if int(s) < value-2 || int(s) > value+2 {
							t.Fatalf("%s %dx%d comp %d: sample %d out of range", layout.name, w, h, ci, s)
						}
					}
				}
			}
		}
	}
}

func TestGradientRoundTrip(t *testing.T) {
	const w, h = 64, 64
	src := encoder.NewPlanarSource(w, h, gradientPlane(w, h))
	data, err := encoder.EncodeBytes(src, encoder.GrayscaleConfig(85))
	require.NoError(t, err)

	sink := decodeToSink(t, data)
	plane := sink.Plane(0)
	grad := gradientPlane(w, h)

	maxErr := 0
	for i := range grad {
		diff := int(plane[i]) - int(grad[i])
		if diff < 0 {
			diff = -diff
		}
		if diff > maxErr {
			maxErr = diff
		}
	}
	t.Logf("max sample error: %d", maxErr)
	assert.LessOrEqual(t, maxErr, 50, "lossy error out of bounds")
}

// Restart markers must not change the decoded samples.
func TestRestartIntervalRoundTrip(t *testing.T) {
	const w, h = 48, 48

	build := func(gray bool, ri int) []byte {
		var cfg *encoder.Config
		var src *encoder.PlanarSource
		if gray {
			cfg = encoder.GrayscaleConfig(75)
			src = encoder.NewPlanarSource(w, h, gradientPlane(w, h))
		} else {
			cfg = encoder.YCbCrConfig(75, 2, 2)
			src = encoder.NewPlanarSource(w, h,
				gradientPlane(w, h), grayPlane(w, h, 100), grayPlane(w, h, 160))
		}
		cfg.RestartInterval = ri
		data, err := encoder.EncodeBytes(src, cfg)
		require.NoError(t, err)
		return data
	}

	for _, gray := range []bool{true, false} {
		reference := decodeToSink(t, build(gray, 0)).Interleaved()
		for _, ri := range []int{1, 7, 64} {
			got := decodeToSink(t, build(gray, ri)).Interleaved()
			require.Equal(t, reference, got, "gray=%v ri=%d", gray, ri)
		}
	}
}

// Optimal Huffman tables must decode to the same samples as the standard
// tables.
func TestOptimizedHuffmanRoundTrip(t *testing.T) {
	const w, h = 40, 56
	plane := gradientPlane(w, h)

	cfg := encoder.GrayscaleConfig(80)
	standard, err := encoder.EncodeBytes(encoder.NewPlanarSource(w, h, plane), cfg)
	require.NoError(t, err)

	cfg = encoder.GrayscaleConfig(80)
	cfg.OptimizeHuffman = true
	optimized, err := encoder.EncodeBytes(encoder.NewPlanarSource(w, h, plane), cfg)
	require.NoError(t, err)

	assert.LessOrEqual(t, len(optimized), len(standard))
	require.Equal(t,
		decodeToSink(t, standard).Interleaved(),
		decodeToSink(t, optimized).Interleaved())
}

// Unset Huffman table slots are supplied by the statistics pass.
func TestUnsetTablesTriggerOptimalPass(t *testing.T) {
	const w, h = 24, 24
	cfg := encoder.GrayscaleConfig(80)
	cfg.DCTables[0] = nil
	cfg.ACTables[0] = nil

	data, err := encoder.EncodeBytes(encoder.NewPlanarSource(w, h, gradientPlane(w, h)), cfg)
	require.NoError(t, err)
	decodeToSink(t, data)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, _, err := Identify([]byte{0x00, 0x01, 0x02}, false)
	assert.Error(t, err)

	err = Decode([]byte{0xFF, 0xD8, 0xFF, 0xD9}, NewSampleBuffer())
	assert.Error(t, err, "EOI without a frame must fail")

	err = Decode(nil, nil)
	assert.Error(t, err, "nil sink is an API misuse")
}

func TestTruncatedStream(t *testing.T) {
	const w, h = 32, 32
	data, err := encoder.EncodeBytes(
		encoder.NewPlanarSource(w, h, gradientPlane(w, h)), encoder.GrayscaleConfig(75))
	require.NoError(t, err)

	for _, cut := range []int{2, 10, 20, len(data) / 2} {
		err := Decode(data[:cut], NewSampleBuffer())
		assert.Error(t, err, "cut at %d", cut)
	}
}
