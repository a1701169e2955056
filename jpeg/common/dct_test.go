package common

import (
	"math/rand"
	"testing"
)

func TestForwardDCTFlatBlock(t *testing.T) {
	var in Block
	for i := range in {
		in[i] = 130
	}
	LevelShift(&in, 8) // all samples become +2

	var coef [BlockSize]float32
	ForwardDCT(&in, &coef)

	// DC of a flat block is 8x the sample value; every AC term vanishes
	if coef[0] < 15.9 || coef[0] > 16.1 {
		t.Errorf("DC = %f, want 16", coef[0])
	}
	for i := 1; i < BlockSize; i++ {
		if coef[i] > 0.01 || coef[i] < -0.01 {
			t.Errorf("AC[%d] = %f, want 0", i, coef[i])
		}
	}
}

func TestDCTRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 50; trial++ {
		var in Block
		for i := range in {
			in[i] = int16(rng.Intn(256))
		}
		orig := in

		LevelShift(&in, 8)
		var coef [BlockSize]float32
		ForwardDCT(&in, &coef)

		var out Block
		InverseDCT(&coef, &out, 8)

		for i := range out {
			diff := int(out[i]) - int(orig[i])
			if diff < -1 || diff > 1 {
				t.Fatalf("trial %d: sample %d: got %d, want %d", trial, i, out[i], orig[i])
			}
		}
	}
}

func TestInverseDCTClamps(t *testing.T) {
	var coef [BlockSize]float32
	coef[0] = 10000 // way past the sample range
	var out Block
	InverseDCT(&coef, &out, 8)
	for i, v := range out {
		if v != 255 {
			t.Fatalf("sample %d = %d, want clamped 255", i, v)
		}
	}

	coef[0] = -10000
	InverseDCT(&coef, &out, 8)
	for i, v := range out {
		if v != 0 {
			t.Fatalf("sample %d = %d, want clamped 0", i, v)
		}
	}
}

func TestInverseDCT12Bit(t *testing.T) {
	var in Block
	for i := range in {
		in[i] = 3000
	}
	orig := in
	LevelShift(&in, 12)

	var coef [BlockSize]float32
	ForwardDCT(&in, &coef)
	var out Block
	InverseDCT(&coef, &out, 12)

	for i := range out {
		diff := int(out[i]) - int(orig[i])
		if diff < -1 || diff > 1 {
			t.Fatalf("sample %d: got %d, want %d", i, out[i], orig[i])
		}
	}
}

func TestZigZagInverse(t *testing.T) {
	seen := [64]bool{}
	for k, n := range ZigZag {
		if n < 0 || n > 63 || seen[n] {
			t.Fatalf("ZigZag[%d] = %d invalid", k, n)
		}
		seen[n] = true
		if UnZigZag[n] != k {
			t.Errorf("UnZigZag[%d] = %d, want %d", n, UnZigZag[n], k)
		}
	}
	// First few entries of the canonical order
	want := []int{0, 1, 8, 16, 9, 2}
	for i, w := range want {
		if ZigZag[i] != w {
			t.Errorf("ZigZag[%d] = %d, want %d", i, ZigZag[i], w)
		}
	}
}
