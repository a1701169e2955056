package common

import "math"

// Separable floating-point 8x8 DCT pair. Basis tables are built once at
// startup; the transform runs rows then columns on float32 blocks.

var (
	// cosBasis[x][u] = cos((2x+1) * u * pi / 16)
	cosBasis [8][8]float32
	// normCoef[u] = C(u)/2 with C(0) = 1/sqrt(2), C(u) = 1 otherwise
	normCoef [8]float32
)

func init() {
	for x := 0; x < 8; x++ {
		for u := 0; u < 8; u++ {
			cosBasis[x][u] = float32(math.Cos(float64(2*x+1) * float64(u) * math.Pi / 16))
		}
	}
	for u := 0; u < 8; u++ {
		normCoef[u] = 0.5
	}
	normCoef[0] = float32(0.5 / math.Sqrt2)
}

// ForwardDCT transforms a level-shifted sample block into DCT coefficients.
// Input values are expected to already carry the -(1 << (precision-1))
// level shift.
func ForwardDCT(in *Block, out *[BlockSize]float32) {
	var tmp [BlockSize]float32

	// Rows
	for y := 0; y < 8; y++ {
		row := y * 8
		for u := 0; u < 8; u++ {
			var sum float32
			for x := 0; x < 8; x++ {
				sum += float32(in[row+x]) * cosBasis[x][u]
			}
			tmp[row+u] = sum * normCoef[u]
		}
	}

	// Columns
	for u := 0; u < 8; u++ {
		for v := 0; v < 8; v++ {
			var sum float32
			for y := 0; y < 8; y++ {
				sum += tmp[y*8+u] * cosBasis[y][v]
			}
			out[v*8+u] = sum * normCoef[v]
		}
	}
}

// InverseDCT transforms dequantized coefficients back into samples, applies
// the +(1 << (precision-1)) level shift, and clamps to the sample range of
// the given precision.
func InverseDCT(in *[BlockSize]float32, out *Block, precision int) {
	var tmp [BlockSize]float32

	// Columns
	for u := 0; u < 8; u++ {
		for y := 0; y < 8; y++ {
			var sum float32
			for v := 0; v < 8; v++ {
				sum += normCoef[v] * float32(in[v*8+u]) * cosBasis[y][v]
			}
			tmp[y*8+u] = sum
		}
	}

	// Rows
	shift := 1 << uint(precision-1)
	maxVal := (1 << uint(precision)) - 1
	for y := 0; y < 8; y++ {
		row := y * 8
		for x := 0; x < 8; x++ {
			var sum float32
			for u := 0; u < 8; u++ {
				sum += normCoef[u] * tmp[row+u] * cosBasis[x][u]
			}
			v := int(math.Round(float64(sum))) + shift
			out[row+x] = int16(Clamp(v, 0, maxVal))
		}
	}
}

// LevelShift subtracts the mid-point of the sample range in place, preparing
// an encoder input block for the forward DCT
func LevelShift(b *Block, precision int) {
	shift := int16(1 << uint(precision-1))
	for i := range b {
		b[i] -= shift
	}
}
