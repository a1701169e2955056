package common

import (
	"bytes"
	"math/rand"
	"testing"
)

// roundTripSymbols writes a symbol sequence with the table's canonical codes
// and decodes it back through the lookup tables
func roundTripSymbols(t *testing.T, table *HuffmanTable, symbols []byte) {
	t.Helper()
	codes := BuildHuffmanCodes(table)

	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.BeginBits()
	for _, sym := range symbols {
		c := codes[sym]
		if c.Len == 0 {
			t.Fatalf("symbol 0x%02X has no code", sym)
		}
		if err := w.WriteBits(uint32(c.Code), c.Len); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.EndBits(); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteMarker(MarkerEOI); err != nil {
		t.Fatal(err)
	}

	r := NewReader(buf.Bytes())
	r.BeginBits()
	for i, want := range symbols {
		got, err := table.DecodeSymbol(r)
		if err != nil {
			t.Fatalf("DecodeSymbol #%d: %v", i, err)
		}
		if got != want {
			t.Fatalf("DecodeSymbol #%d = 0x%02X, want 0x%02X", i, got, want)
		}
	}
}

func TestStandardTableRoundTrip(t *testing.T) {
	table := StandardHuffmanTable(1, 0)
	if table == nil {
		t.Fatal("no standard AC luminance table")
	}

	symbols := make([]byte, 0, len(table.Values)*3)
	for rep := 0; rep < 3; rep++ {
		symbols = append(symbols, table.Values...)
	}
	roundTripSymbols(t, table, symbols)
}

func TestOptimalTableRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	tests := []struct {
		name    string
		prepare func(f *FrequencyTable) []byte
	}{
		{
			"two symbols",
			func(f *FrequencyTable) []byte {
				var syms []byte
				for i := 0; i < 100; i++ {
					f.Add(0x00)
					syms = append(syms, 0x00)
				}
				f.Add(0x01)
				return append(syms, 0x01)
			},
		},
		{
			"single symbol",
			func(f *FrequencyTable) []byte {
				f.Add(0x42)
				return []byte{0x42, 0x42}
			},
		},
		{
			"geometric skew",
			func(f *FrequencyTable) []byte {
				var syms []byte
				count := 1 << 16
				for s := 0; s < 32 && count > 0; s++ {
					for i := 0; i < count; i++ {
						f.Add(byte(s))
					}
					syms = append(syms, byte(s))
					count /= 2
				}
				return syms
			},
		},
		{
			"uniform wide",
			func(f *FrequencyTable) []byte {
				var syms []byte
				for s := 0; s < 256; s++ {
					n := 1 + rng.Intn(20)
					for i := 0; i < n; i++ {
						f.Add(byte(s))
					}
					syms = append(syms, byte(s))
				}
				return syms
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFrequencyTable()
			syms := tt.prepare(f)
			table, err := f.Build()
			if err != nil {
				t.Fatalf("Build: %v", err)
			}

			// No code may exceed 16 bits and the Kraft sum must not overflow
			kraft := 0
			for l := 1; l <= 16; l++ {
				kraft += table.Bits[l-1] << uint(16-l)
			}
			if kraft > 1<<16 {
				t.Fatalf("code lengths overfill the code space: %d", kraft)
			}

			// The all-ones 16-bit code is reserved by the sentinel
			codes := BuildHuffmanCodes(table)
			for sym, c := range codes {
				if c.Len == 16 && c.Code == 0xFFFF {
					t.Errorf("symbol 0x%02X got the reserved all-ones code", sym)
				}
			}

			// Wire-format round trip: serialize as a DHT segment, parse it
			// back, and decode what the encoder emits
			var buf bytes.Buffer
			w := NewWriter(&buf)
			table.Class = 1
			table.ID = 0
			if err := WriteDHTSegment(w, []*HuffmanTable{table}); err != nil {
				t.Fatal(err)
			}
			r := NewReader(buf.Bytes())
			marker, err := r.ReadMarker()
			if err != nil || marker != MarkerDHT {
				t.Fatalf("marker = 0x%04X, %v", marker, err)
			}
			payload, err := r.ReadSegment()
			if err != nil {
				t.Fatal(err)
			}
			parsed, err := ParseDHT(payload)
			if err != nil {
				t.Fatalf("ParseDHT: %v", err)
			}
			if len(parsed) != 1 {
				t.Fatalf("parsed %d tables", len(parsed))
			}

			roundTripSymbols(t, parsed[0], syms)
		})
	}
}

func TestReceiveExtend(t *testing.T) {
	// Sign extension per F.12: values below the half-range are negative
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.BeginBits()

	cases := []struct {
		val int
	}{
		{1}, {-1}, {3}, {-3}, {127}, {-127}, {255}, {-255}, {1023}, {-1023},
	}
	for _, c := range cases {
		cat, bits := EncodeCategory(c.val)
		if err := w.WriteBits(bits, cat); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.EndBits(); err != nil {
		t.Fatal(err)
	}
	w.WriteMarker(MarkerEOI)

	r := NewReader(buf.Bytes())
	r.BeginBits()
	for _, c := range cases {
		cat, _ := EncodeCategory(c.val)
		got, err := ReceiveExtend(r, cat)
		if err != nil {
			t.Fatal(err)
		}
		if got != c.val {
			t.Errorf("ReceiveExtend(cat %d) = %d, want %d", cat, got, c.val)
		}
	}
}

func TestParseDHTRejectsOversized(t *testing.T) {
	payload := make([]byte, 1+16)
	payload[0] = 0x00
	// 255 codes of length 1 cannot exist
	payload[1] = 255
	payload[2] = 255
	for i := 0; i < 510; i++ {
		payload = append(payload, byte(i))
	}
	if _, err := ParseDHT(payload); err == nil {
		t.Error("expected rejection of over-filled code space")
	}
}
