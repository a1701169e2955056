package common

// HuffmanCode is one assigned canonical code
type HuffmanCode struct {
	Code uint16 // The Huffman code, right-aligned
	Len  int    // Code length in bits, 0 when the symbol has no code
}

// BuildHuffmanCodes assigns canonical codes to every symbol of a table.
// The returned slice is indexed by symbol value.
func BuildHuffmanCodes(table *HuffmanTable) []HuffmanCode {
	codes := make([]HuffmanCode, 256)

	code := uint16(0)
	p := 0
	for l := 1; l <= 16; l++ {
		for i := 0; i < table.Bits[l-1]; i++ {
			if p < len(table.Values) {
				codes[table.Values[p]] = HuffmanCode{Code: code, Len: l}
				code++
				p++
			}
		}
		code <<= 1
	}

	return codes
}

// EncodeCategory computes the magnitude category for a coefficient and the
// appended bits: the value itself for non-negatives, the ones-complement for
// negatives
func EncodeCategory(val int) (cat int, bits uint32) {
	if val == 0 {
		return 0, 0
	}

	absVal := val
	if absVal < 0 {
		absVal = -absVal
	}

	cat = 1
	for 1<<uint(cat) <= absVal {
		cat++
	}

	if val > 0 {
		bits = uint32(val)
	} else {
		bits = uint32(1<<uint(cat) + val - 1)
	}
	return cat, bits
}

// WriteCode emits one assigned code to the bit stream
func (w *Writer) WriteCode(c HuffmanCode) error {
	if c.Len == 0 {
		return ErrHuffmanDecode
	}
	return w.WriteBits(uint32(c.Code), c.Len)
}
