package encoder

import (
	"github.com/cocosip/go-jpeg-codec/jpeg/common"
)

// PlanarSource serves 8-bit planar sample data as full-resolution blocks,
// replicating edge pixels into tiles that overhang the image
type PlanarSource struct {
	width  int
	height int
	planes [][]byte
}

// NewPlanarSource wraps one plane per component, each width*height bytes
func NewPlanarSource(width, height int, planes ...[]byte) *PlanarSource {
	return &PlanarSource{width: width, height: height, planes: planes}
}

// Width implements Source
func (s *PlanarSource) Width() int { return s.width }

// Height implements Source
func (s *PlanarSource) Height() int { return s.height }

// ReadBlock implements Source
func (s *PlanarSource) ReadBlock(b *common.Block, comp, x, y int) {
	plane := s.planes[comp]
	for row := 0; row < 8; row++ {
		sy := common.Clamp(y*8+row, 0, s.height-1)
		for col := 0; col < 8; col++ {
			sx := common.Clamp(x*8+col, 0, s.width-1)
			b[row*8+col] = int16(plane[sy*s.width+sx])
		}
	}
}
