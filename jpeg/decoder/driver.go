package decoder

import (
	"github.com/cocosip/go-jpeg-codec/jpeg/common"
)

// scanDecoder decodes one 8x8 data unit at a time. reset is called at scan
// start and after every restart marker; it clears DC predictors, EOB runs
// and, for arithmetic scans, re-primes the coder.
type scanDecoder interface {
	reset()
	decodeUnit(ci int, b *common.Block) error
}

// scanDriver walks the MCU grid of one scan, fetching target blocks from
// the coefficient store and handling restart intervals
type scanDriver struct {
	d               *Decoder
	r               *common.Reader
	scan            *common.ScanHeader
	comps           []int
	sd              scanDecoder
	restartInterval int

	restartIndex int
}

// run executes the scan. The returned marker is MarkerEOI when the stream
// ended cleanly at a restart boundary, 0 otherwise.
func (s *scanDriver) run() (uint16, error) {
	s.r.BeginBits()
	s.sd.reset()

	var m uint16
	var err error
	if len(s.comps) == 1 {
		m, err = s.runNonInterleaved()
	} else {
		m, err = s.runInterleaved()
	}
	if err != nil {
		return 0, err
	}
	s.r.EndBits()
	if m == 0 {
		if err := s.r.SkipToMarker(); err != nil {
			return 0, err
		}
	}
	return m, nil
}

func (s *scanDriver) runNonInterleaved() (uint16, error) {
	ci := s.comps[0]
	dims := s.d.comps[ci].dims
	total := dims.WidthInBlocks * dims.HeightInBlocks
	count := 0
	for by := 0; by < dims.HeightInBlocks; by++ {
		for bx := 0; bx < dims.WidthInBlocks; bx++ {
			if err := s.sd.decodeUnit(ci, s.d.store.Get(ci, bx, by)); err != nil {
				return 0, err
			}
			count++
			if m, err := s.maybeRestart(count, total); m != 0 || err != nil {
				return m, err
			}
		}
	}
	return 0, nil
}

func (s *scanDriver) runInterleaved() (uint16, error) {
	hmax, vmax := s.d.frame.MaxSampling()
	mcusX := common.DivCeil(s.d.frame.Width, 8*hmax)
	mcusY := common.DivCeil(s.d.frame.Height, 8*vmax)
	total := mcusX * mcusY
	count := 0
	for my := 0; my < mcusY; my++ {
		for mx := 0; mx < mcusX; mx++ {
			for _, ci := range s.comps {
				fc := s.d.comps[ci].comp
				for v := 0; v < fc.V; v++ {
					for h := 0; h < fc.H; h++ {
						bx := mx*fc.H + h
						by := my*fc.V + v
						if err := s.sd.decodeUnit(ci, s.d.store.Get(ci, bx, by)); err != nil {
							return 0, err
						}
					}
				}
			}
			count++
			if m, err := s.maybeRestart(count, total); m != 0 || err != nil {
				return m, err
			}
		}
	}
	return 0, nil
}

// maybeRestart consumes a restart marker after every restartInterval MCUs.
// An EOI at the boundary ends the scan cleanly and is reported upward.
func (s *scanDriver) maybeRestart(count, total int) (uint16, error) {
	if s.restartInterval == 0 || count%s.restartInterval != 0 || count == total {
		return 0, nil
	}
	s.r.EndBits()
	if err := s.r.SkipToMarker(); err != nil {
		return 0, err
	}
	marker, err := s.r.ReadMarker()
	if err != nil {
		return 0, err
	}
	if marker == common.MarkerEOI {
		return common.MarkerEOI, nil
	}
	if !common.IsRST(marker) || int(marker-common.MarkerRST0) != s.restartIndex {
		return 0, offsetError(s.r, common.ErrInvalidRestart)
	}
	s.restartIndex = (s.restartIndex + 1) & 7
	s.r.BeginBits()
	s.sd.reset()
	return 0, nil
}
