package decoder

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cocosip/go-jpeg-codec/jpeg/common"
)

// losslessBuilder hand-encodes SOF3 streams the way the scan decoder reads
// them, so round trips prove the predictor and entropy paths
type losslessBuilder struct {
	t         *testing.T
	buf       bytes.Buffer
	w         *common.Writer
	precision int
	predictor int
	pt        int
	table     *common.HuffmanTable
	codes     []common.HuffmanCode
}

// losslessTable covers difference categories 0-16 with flat 5-bit codes
func losslessTable(t *testing.T) *common.HuffmanTable {
	tab := &common.HuffmanTable{Class: 0, ID: 0}
	tab.Bits[4] = 17 // 17 codes of length 5
	for s := 0; s <= 16; s++ {
		tab.Values = append(tab.Values, byte(s))
	}
	require.NoError(t, tab.Build())
	return tab
}

func newLosslessBuilder(t *testing.T, width, height, precision, predictor, pt int, ncomps int) *losslessBuilder {
	b := &losslessBuilder{
		t:         t,
		precision: precision,
		predictor: predictor,
		pt:        pt,
		table:     losslessTable(t),
	}
	b.codes = common.BuildHuffmanCodes(b.table)
	b.w = common.NewWriter(&b.buf)

	require.NoError(t, b.w.WriteMarker(common.MarkerSOI))
	require.NoError(t, common.WriteDHTSegment(b.w, []*common.HuffmanTable{b.table}))

	frame := &common.FrameHeader{
		Marker:    common.MarkerSOF3,
		Precision: precision,
		Width:     width,
		Height:    height,
	}
	for c := 0; c < ncomps; c++ {
		frame.Components = append(frame.Components, common.FrameComponent{
			ID: byte(c + 1), H: 1, V: 1,
		})
	}
	require.NoError(t, frame.Serialize(b.w))

	scan := &common.ScanHeader{Ss: predictor, Se: 0, Ah: 0, Al: pt}
	for c := 0; c < ncomps; c++ {
		scan.Components = append(scan.Components, common.ScanComponent{Selector: byte(c + 1)})
	}
	require.NoError(t, scan.Serialize(b.w))
	b.w.BeginBits()
	return b
}

func (b *losslessBuilder) writeDiff(diff int) {
	if diff == -32768 {
		// Category 16 carries no appended bits
		require.NoError(b.t, b.w.WriteCode(b.codes[16]))
		return
	}
	cat, bits := common.EncodeCategory(diff)
	require.NoError(b.t, b.w.WriteCode(b.codes[cat]))
	require.NoError(b.t, b.w.WriteBits(bits, cat))
}

// encodePlanes encodes 1x1-sampled planes (interleaved when multiple) with
// the builder's predictor and point transform
func (b *losslessBuilder) encodePlanes(width, height int, planes [][]uint16) []byte {
	shifted := make([][]int32, len(planes))
	for i, p := range planes {
		shifted[i] = make([]int32, len(p))
		for j, v := range p {
			shifted[i][j] = int32(v >> uint(b.pt))
		}
	}

	predictAt := func(p []int32, x, y int) int32 {
		if x == 0 && y == 0 {
			return 1 << uint(b.precision-b.pt-1)
		}
		if y == 0 {
			return p[x-1]
		}
		if x == 0 {
			return p[(y-1)*width]
		}
		ra := p[y*width+x-1]
		rb := p[(y-1)*width+x]
		rc := p[(y-1)*width+x-1]
		switch b.predictor {
		case 1:
			return ra
		case 2:
			return rb
		case 3:
			return rc
		case 4:
			return ra + rb - rc
		case 5:
			return ra + ((rb - rc) >> 1)
		case 6:
			return rb + ((ra - rc) >> 1)
		case 7:
			return (ra + rb) >> 1
		}
		return ra
	}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			for i := range shifted {
				pred := predictAt(shifted[i], x, y)
				diff := int(int16(uint16(shifted[i][y*width+x]) - uint16(pred)))
				b.writeDiff(diff)
			}
		}
	}

	require.NoError(b.t, b.w.EndBits())
	require.NoError(b.t, b.w.WriteMarker(common.MarkerEOI))
	return b.buf.Bytes()
}

func TestLosslessPredictors(t *testing.T) {
	const w, h = 23, 17
	rng := rand.New(rand.NewSource(11))
	plane := make([]uint16, w*h)
	for i := range plane {
		plane[i] = uint16(rng.Intn(256))
	}

	for predictor := 1; predictor <= 7; predictor++ {
		b := newLosslessBuilder(t, w, h, 8, predictor, 0, 1)
		data := b.encodePlanes(w, h, [][]uint16{plane})

		sink := decodeToSink(t, data)
		require.Equal(t, plane, sink.Plane(0), "predictor %d", predictor)
	}
}

func TestLosslessInterleaved(t *testing.T) {
	const w, h = 12, 9
	rng := rand.New(rand.NewSource(5))
	planes := make([][]uint16, 3)
	for i := range planes {
		planes[i] = make([]uint16, w*h)
		for j := range planes[i] {
			planes[i][j] = uint16(rng.Intn(256))
		}
	}

	b := newLosslessBuilder(t, w, h, 8, 4, 0, 3)
	data := b.encodePlanes(w, h, planes)

	sink := decodeToSink(t, data)
	for i := range planes {
		require.Equal(t, planes[i], sink.Plane(i), "component %d", i)
	}
}

func TestLosslessPointTransform(t *testing.T) {
	const w, h = 16, 16
	plane := make([]uint16, w*h)
	for i := range plane {
		plane[i] = uint16((i * 7) % 256)
	}

	b := newLosslessBuilder(t, w, h, 8, 1, 2, 1)
	data := b.encodePlanes(w, h, [][]uint16{plane})

	sink := decodeToSink(t, data)
	got := sink.Plane(0)
	for i := range plane {
		want := (plane[i] >> 2) << 2
		require.Equal(t, want, got[i], "sample %d", i)
	}
}

func TestLossless16Bit(t *testing.T) {
	const w, h = 11, 13
	rng := rand.New(rand.NewSource(21))
	plane := make([]uint16, w*h)
	for i := range plane {
		plane[i] = uint16(rng.Intn(1 << 16))
	}

	b := newLosslessBuilder(t, w, h, 16, 1, 0, 1)
	data := b.encodePlanes(w, h, [][]uint16{plane})

	sink := decodeToSink(t, data)
	require.Equal(t, plane, sink.Plane(0))
}

func TestLosslessRejectsBadPredictor(t *testing.T) {
	const w, h = 8, 8
	plane := make([]uint16, w*h)
	b := newLosslessBuilder(t, w, h, 8, 0, 0, 1)
	data := b.encodePlanes(w, h, [][]uint16{plane})
	require.Error(t, Decode(data, NewSampleBuffer()))
}
