package encoder

import (
	"github.com/cocosip/go-jpeg-codec/jpeg/common"
)

// GrayscaleConfig builds a single-component configuration with the standard
// luminance tables scaled to the given quality
func GrayscaleConfig(quality int) *Config {
	cfg := &Config{
		Components: []ComponentSpec{
			{ID: 1, H: 1, V: 1, QuantSelector: 0, DCSelector: 0, ACSelector: 0},
		},
	}
	cfg.QuantTables[0] = common.ScaleQuantTable(&common.DefaultLuminanceQuantTable, quality)
	cfg.DCTables[0] = common.StandardHuffmanTable(0, 0)
	cfg.ACTables[0] = common.StandardHuffmanTable(1, 0)
	return cfg
}

// YCbCrConfig builds a three-component configuration. sampleH and sampleV
// are the luma sampling factors: 1,1 gives 4:4:4, 2,1 gives 4:2:2 and
// 2,2 gives 4:2:0.
func YCbCrConfig(quality, sampleH, sampleV int) *Config {
	cfg := &Config{
		Components: []ComponentSpec{
			{ID: 1, H: sampleH, V: sampleV, QuantSelector: 0, DCSelector: 0, ACSelector: 0},
			{ID: 2, H: 1, V: 1, QuantSelector: 1, DCSelector: 1, ACSelector: 1},
			{ID: 3, H: 1, V: 1, QuantSelector: 1, DCSelector: 1, ACSelector: 1},
		},
	}
	cfg.QuantTables[0] = common.ScaleQuantTable(&common.DefaultLuminanceQuantTable, quality)
	cfg.QuantTables[1] = common.ScaleQuantTable(&common.DefaultChrominanceQuantTable, quality)
	cfg.DCTables[0] = common.StandardHuffmanTable(0, 0)
	cfg.ACTables[0] = common.StandardHuffmanTable(1, 0)
	cfg.DCTables[1] = common.StandardHuffmanTable(0, 1)
	cfg.ACTables[1] = common.StandardHuffmanTable(1, 1)
	return cfg
}
