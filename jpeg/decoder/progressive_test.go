package decoder

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cocosip/go-jpeg-codec/jpeg/common"
	"github.com/cocosip/go-jpeg-codec/jpeg/encoder"
)

// progressiveBuilder re-emits a single-component coefficient image as a
// progressive (SOF2) stream, scan by scan
type progressiveBuilder struct {
	t   *testing.T
	ci  *CoefficientImage
	buf bytes.Buffer
	w   *common.Writer

	dcCodes []common.HuffmanCode
	acCodes []common.HuffmanCode
}

func newProgressiveBuilder(t *testing.T, ci *CoefficientImage) *progressiveBuilder {
	require.Len(t, ci.Frame.Components, 1, "builder handles single-component frames")
	b := &progressiveBuilder{t: t, ci: ci}
	b.w = common.NewWriter(&b.buf)
	b.dcCodes = common.BuildHuffmanCodes(common.StandardHuffmanTable(0, 0))
	b.acCodes = common.BuildHuffmanCodes(common.StandardHuffmanTable(1, 0))

	require.NoError(t, b.w.WriteMarker(common.MarkerSOI))
	require.NoError(t, common.WriteDQTSegment(b.w, []*common.QuantizationTable{ci.Quant[0]}))

	frame := *ci.Frame
	frame.Marker = common.MarkerSOF2
	require.NoError(t, frame.Serialize(b.w))
	require.NoError(t, common.WriteDHTSegment(b.w, []*common.HuffmanTable{
		common.StandardHuffmanTable(0, 0),
		common.StandardHuffmanTable(1, 0),
	}))
	return b
}

func (b *progressiveBuilder) forEachBlock(fn func(blk *common.Block)) {
	dims := b.ci.Store.Dims(0)
	for by := 0; by < dims.HeightInBlocks; by++ {
		for bx := 0; bx < dims.WidthInBlocks; bx++ {
			fn(b.ci.Store.Get(0, bx, by))
		}
	}
}

func (b *progressiveBuilder) startScan(ss, se, ah, al int) {
	scan := &common.ScanHeader{
		Components: []common.ScanComponent{{Selector: b.ci.Frame.Components[0].ID}},
		Ss:         ss, Se: se, Ah: ah, Al: al,
	}
	require.NoError(b.t, scan.Serialize(b.w))
	b.w.BeginBits()
}

func (b *progressiveBuilder) dcFirstScan(al int) {
	b.startScan(0, 0, 0, al)
	pred := 0
	b.forEachBlock(func(blk *common.Block) {
		dc := int(blk[0]) >> uint(al)
		diff := dc - pred
		pred = dc
		cat, bits := common.EncodeCategory(diff)
		require.NoError(b.t, b.w.WriteCode(b.dcCodes[cat]))
		require.NoError(b.t, b.w.WriteBits(bits, cat))
	})
	require.NoError(b.t, b.w.EndBits())
}

func (b *progressiveBuilder) dcRefineScan(al int) {
	b.startScan(0, 0, al+1, al)
	b.forEachBlock(func(blk *common.Block) {
		bit := uint32(int(blk[0])>>uint(al)) & 1
		require.NoError(b.t, b.w.WriteBits(bit, 1))
	})
	require.NoError(b.t, b.w.EndBits())
}

func (b *progressiveBuilder) acFirstScan() {
	b.startScan(1, 63, 0, 0)
	b.forEachBlock(func(blk *common.Block) {
		run := 0
		for k := 1; k <= 63; k++ {
			v := int(blk[common.ZigZag[k]])
			if v == 0 {
				run++
				continue
			}
			for run >= 16 {
				require.NoError(b.t, b.w.WriteCode(b.acCodes[0xF0]))
				run -= 16
			}
			cat, bits := common.EncodeCategory(v)
			require.NoError(b.t, b.w.WriteCode(b.acCodes[byte(run<<4|cat)]))
			require.NoError(b.t, b.w.WriteBits(bits, cat))
			run = 0
		}
		if run > 0 {
			// EOB: an end-of-band run covering exactly this block
			require.NoError(b.t, b.w.WriteCode(b.acCodes[0x00]))
		}
	})
	require.NoError(b.t, b.w.EndBits())
}

func (b *progressiveBuilder) finish() []byte {
	require.NoError(b.t, b.w.WriteMarker(common.MarkerEOI))
	return b.buf.Bytes()
}

func sequentialFixture(t *testing.T, w, h, quality int) ([]byte, *CoefficientImage) {
	src := encoder.NewPlanarSource(w, h, gradientPlane(w, h))
	data, err := encoder.EncodeBytes(src, encoder.GrayscaleConfig(quality))
	require.NoError(t, err)
	ci, err := DecodeCoefficients(data)
	require.NoError(t, err)
	return data, ci
}

// A DC + AC scan pair must decode to the exact samples of the sequential
// stream carrying the same coefficients.
func TestProgressiveTwoScan(t *testing.T) {
	seq, ci := sequentialFixture(t, 37, 29, 85)

	b := newProgressiveBuilder(t, ci)
	b.dcFirstScan(0)
	b.acFirstScan()
	prog := b.finish()

	require.Equal(t,
		decodeToSink(t, seq).Interleaved(),
		decodeToSink(t, prog).Interleaved())
}

// Splitting the DC coefficients across a first scan and a successive
// approximation refinement must reconstruct them bit-exactly.
func TestProgressiveDCSuccessiveApproximation(t *testing.T) {
	seq, ci := sequentialFixture(t, 32, 32, 75)

	b := newProgressiveBuilder(t, ci)
	b.dcFirstScan(1)
	b.acFirstScan()
	b.dcRefineScan(0)
	prog := b.finish()

	require.Equal(t,
		decodeToSink(t, seq).Interleaved(),
		decodeToSink(t, prog).Interleaved())

	// The reconstructed coefficient store must match as well
	pc, err := DecodeCoefficients(prog)
	require.NoError(t, err)
	dims := ci.Store.Dims(0)
	for by := 0; by < dims.HeightInBlocks; by++ {
		for bx := 0; bx < dims.WidthInBlocks; bx++ {
			require.Equal(t, ci.Store.Get(0, bx, by), pc.Store.Get(0, bx, by),
				"block (%d,%d)", bx, by)
		}
	}
}

// An AC scan carrying a genuine multi-block EOB run must skip exactly the
// coded number of blocks.
func TestProgressiveEOBRun(t *testing.T) {
	const w, h = 32, 32
	// A flat image quantizes to zero AC everywhere, so one EOB run can
	// cover all 16 blocks
	src := encoder.NewPlanarSource(w, h, grayPlane(w, h, 77))
	data, err := encoder.EncodeBytes(src, encoder.GrayscaleConfig(85))
	require.NoError(t, err)
	ci, err := DecodeCoefficients(data)
	require.NoError(t, err)

	b := newProgressiveBuilder(t, ci)
	b.dcFirstScan(0)

	// The standard AC table has no EOB4 symbol, so the AC scan gets its own
	// table defining 0x40
	f := common.NewFrequencyTable()
	f.Add(0x40)
	eobTab, err := f.Build()
	require.NoError(t, err)
	eobTab.Class, eobTab.ID = 1, 0
	require.NoError(t, common.WriteDHTSegment(b.w, []*common.HuffmanTable{eobTab}))
	eobCodes := common.BuildHuffmanCodes(eobTab)

	// Hand-roll the AC scan: EOBn with run = 16 blocks (r = 4, 0 extra)
	b.startScan(1, 63, 0, 0)
	require.NoError(t, b.w.WriteCode(eobCodes[0x40]))
	require.NoError(t, b.w.WriteBits(0, 4))
	require.NoError(t, b.w.EndBits())
	prog := b.finish()

	require.Equal(t,
		decodeToSink(t, data).Interleaved(),
		decodeToSink(t, prog).Interleaved())
}

func TestProgressiveRejectsInterleavedACScan(t *testing.T) {
	const w, h = 16, 16
	src := encoder.NewPlanarSource(w, h,
		grayPlane(w, h, 10), grayPlane(w, h, 20), grayPlane(w, h, 30))
	data, err := encoder.EncodeBytes(src, encoder.YCbCrConfig(85, 1, 1))
	require.NoError(t, err)

	// Rewrite SOF0 to SOF2, leaving the interleaved sequential scan in
	// place: an AC band over multiple components must be rejected, and a
	// full-band Ss=0/Se=63 progressive scan is equally invalid
	mutated := bytes.Replace(data, []byte{0xFF, 0xC0}, []byte{0xFF, 0xC2}, 1)
	err = Decode(mutated, NewSampleBuffer())
	require.Error(t, err)
}
