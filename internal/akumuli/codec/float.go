package codec

import (
	"encoding/binary"
	"fmt"
	"math"
)

// EncodeValueColumn implements the value column's 4-bit exponent-prefix
// predictor (spec §4.4): each value is XORed against the previous value's
// bit pattern, the number of leading all-zero bytes of that XOR (0-8) is
// written as a one-byte nibble, followed by only the remaining non-zero
// suffix bytes. A run of identical values costs one byte each after the
// first. The predictor for the first value is 0.
func EncodeValueColumn(buf []byte, values []float64) []byte {
	var prev uint64
	var tmp [8]byte
	for _, v := range values {
		bits := math.Float64bits(v)
		xor := bits ^ prev
		nz := leadingZeroBytes(xor)
		buf = append(buf, byte(nz))
		suffix := 8 - nz
		binary.BigEndian.PutUint64(tmp[:], xor)
		buf = append(buf, tmp[8-suffix:]...)
		prev = bits
	}
	return buf
}

// DecodeValueColumn is the exact inverse of EncodeValueColumn.
func DecodeValueColumn(data []byte, n int) ([]float64, int, error) {
	out := make([]float64, n)
	var prev uint64
	var tmp [8]byte
	offset := 0
	for i := 0; i < n; i++ {
		if offset >= len(data) {
			return nil, 0, fmt.Errorf("codec: truncated value column at element %d", i)
		}
		nz := int(data[offset])
		offset++
		if nz < 0 || nz > 8 {
			return nil, 0, fmt.Errorf("codec: invalid exponent-prefix nibble %d", nz)
		}
		suffix := 8 - nz
		if offset+suffix > len(data) {
			return nil, 0, fmt.Errorf("codec: truncated value suffix at element %d", i)
		}
		for j := 0; j < 8-suffix; j++ {
			tmp[j] = 0
		}
		copy(tmp[8-suffix:], data[offset:offset+suffix])
		offset += suffix

		xor := binary.BigEndian.Uint64(tmp[:])
		bits := xor ^ prev
		out[i] = math.Float64frombits(bits)
		prev = bits
	}
	return out, offset, nil
}

func leadingZeroBytes(x uint64) int {
	if x == 0 {
		return 8
	}
	n := 0
	for i := 0; i < 8; i++ {
		if (x>>(56-8*i))&0xff != 0 {
			break
		}
		n++
	}
	return n
}
