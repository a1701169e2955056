package decoder

import (
	"github.com/cocosip/go-jpeg-codec/jpeg/common"
)

// Sink receives decoded blocks. Blocks arrive in natural raster order at
// component resolution; the sink decides the up-sampling policy for
// sub-sampled components.
type Sink interface {
	// Begin announces the frame about to be decoded
	Begin(frame *common.FrameHeader)

	// WriteBlock delivers one decoded 8x8 sample block of component comp.
	// x and y are sample coordinates of the block's top-left corner in the
	// component's own grid.
	WriteBlock(b *common.Block, comp, x, y int)
}

// SampleBuffer is the default sink: it collects planar component samples and
// up-samples by nearest-neighbor replication on readout.
type SampleBuffer struct {
	frame  *common.FrameHeader
	planes [][]uint16
	widths []int
	heights []int
	mask   uint16
}

// NewSampleBuffer creates an empty sample buffer sink
func NewSampleBuffer() *SampleBuffer {
	return &SampleBuffer{}
}

// Begin implements Sink
func (s *SampleBuffer) Begin(frame *common.FrameHeader) {
	s.frame = frame
	hmax, vmax := frame.MaxSampling()
	n := len(frame.Components)
	s.planes = make([][]uint16, n)
	s.widths = make([]int, n)
	s.heights = make([]int, n)
	s.mask = uint16((1 << uint(frame.Precision)) - 1)
	for i, c := range frame.Components {
		s.widths[i] = common.DivCeil(frame.Width*c.H, hmax)
		s.heights[i] = common.DivCeil(frame.Height*c.V, vmax)
		s.planes[i] = make([]uint16, s.widths[i]*s.heights[i])
	}
}

// WriteBlock implements Sink
func (s *SampleBuffer) WriteBlock(b *common.Block, comp, x, y int) {
	w := s.widths[comp]
	h := s.heights[comp]
	plane := s.planes[comp]
	for row := 0; row < 8; row++ {
		sy := y + row
		if sy >= h {
			break
		}
		for col := 0; col < 8; col++ {
			sx := x + col
			if sx >= w {
				break
			}
			plane[sy*w+sx] = uint16(b[row*8+col]) & s.mask
		}
	}
}

// Frame returns the frame header seen by Begin
func (s *SampleBuffer) Frame() *common.FrameHeader {
	return s.frame
}

// PlaneSize returns the dimensions of component comp's plane
func (s *SampleBuffer) PlaneSize(comp int) (w, h int) {
	return s.widths[comp], s.heights[comp]
}

// Plane returns component comp's samples at component resolution
func (s *SampleBuffer) Plane(comp int) []uint16 {
	return s.planes[comp]
}

// At returns the sample of component comp at full-resolution coordinates,
// replicating sub-sampled components nearest-neighbor
func (s *SampleBuffer) At(comp, x, y int) int {
	hmax, vmax := s.frame.MaxSampling()
	c := s.frame.Components[comp]
	sx := x * c.H / hmax
	sy := y * c.V / vmax
	if sx >= s.widths[comp] {
		sx = s.widths[comp] - 1
	}
	if sy >= s.heights[comp] {
		sy = s.heights[comp] - 1
	}
	return int(s.planes[comp][sy*s.widths[comp]+sx])
}

// Interleaved returns full-resolution samples, component-interleaved, one
// byte per sample. Precisions above 8 are truncated to their top 8 bits.
func (s *SampleBuffer) Interleaved() []byte {
	n := len(s.frame.Components)
	out := make([]byte, s.frame.Width*s.frame.Height*n)
	shift := uint(0)
	if s.frame.Precision > 8 {
		shift = uint(s.frame.Precision - 8)
	}
	for y := 0; y < s.frame.Height; y++ {
		for x := 0; x < s.frame.Width; x++ {
			for c := 0; c < n; c++ {
				out[(y*s.frame.Width+x)*n+c] = byte(s.At(c, x, y) >> shift)
			}
		}
	}
	return out
}

// Interleaved16 returns full-resolution samples, component-interleaved, at
// the frame's native precision
func (s *SampleBuffer) Interleaved16() []uint16 {
	n := len(s.frame.Components)
	out := make([]uint16, s.frame.Width*s.frame.Height*n)
	for y := 0; y < s.frame.Height; y++ {
		for x := 0; x < s.frame.Width; x++ {
			for c := 0; c < n; c++ {
				out[(y*s.frame.Width+x)*n+c] = uint16(s.At(c, x, y))
			}
		}
	}
	return out
}
