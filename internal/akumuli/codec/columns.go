package codec

import "fmt"

// EncodeDeltaZigZagRLEColumn implements the Delta → ZigZag → RLE → Base-128
// pipeline used for both the timestamps and offsets columns (spec §4.4).
// The first element's "previous" value is 0, so it is encoded as its own
// zigzagged value.
func EncodeDeltaZigZagRLEColumn(buf []byte, values []uint64) []byte {
	zz := make([]uint64, len(values))
	var prev int64
	for i, v := range values {
		d := int64(v) - prev
		zz[i] = ZigZagEncode(d)
		prev = int64(v)
	}
	return RLEEncodeUint64(buf, zz)
}

// DecodeDeltaZigZagRLEColumn is the exact inverse of
// EncodeDeltaZigZagRLEColumn, returning n values and the bytes consumed.
func DecodeDeltaZigZagRLEColumn(data []byte, n int) ([]uint64, int, error) {
	zz, consumed, err := RLEDecodeUint64(data, n)
	if err != nil {
		return nil, 0, err
	}
	out := make([]uint64, n)
	var prev int64
	for i, z := range zz {
		prev += ZigZagDecode(z)
		out[i] = uint64(prev)
	}
	return out, consumed, nil
}

// EncodeTimestampColumn / DecodeTimestampColumn are named aliases for
// readability at call sites; the pipeline is identical to the offsets
// column (spec §4.4 table).
func EncodeTimestampColumn(buf []byte, values []uint64) []byte {
	return EncodeDeltaZigZagRLEColumn(buf, values)
}

func DecodeTimestampColumn(data []byte, n int) ([]uint64, int, error) {
	return DecodeDeltaZigZagRLEColumn(data, n)
}

func EncodeOffsetColumn(buf []byte, values []uint32) []byte {
	widened := make([]uint64, len(values))
	for i, v := range values {
		widened[i] = uint64(v)
	}
	return EncodeDeltaZigZagRLEColumn(buf, widened)
}

func DecodeOffsetColumn(data []byte, n int) ([]uint32, int, error) {
	wide, consumed, err := DecodeDeltaZigZagRLEColumn(data, n)
	if err != nil {
		return nil, 0, err
	}
	out := make([]uint32, n)
	for i, v := range wide {
		out[i] = uint32(v)
	}
	return out, consumed, nil
}

// EncodeParamIDColumn is a plain Base-128 varint stream, no delta or RLE
// (spec §4.4 table: paramids get varint only — ids are not expected to
// repeat or trend the way timestamps and offsets do).
func EncodeParamIDColumn(buf []byte, values []uint64) []byte {
	for _, v := range values {
		buf = AppendVarint(buf, v)
	}
	return buf
}

func DecodeParamIDColumn(data []byte, n int) ([]uint64, int, error) {
	out := make([]uint64, n)
	offset := 0
	for i := 0; i < n; i++ {
		v, c := ReadVarint(data[offset:])
		if c == 0 {
			return nil, 0, fmt.Errorf("codec: truncated paramid column at element %d", i)
		}
		out[i] = v
		offset += c
	}
	return out, offset, nil
}

// EncodeLengthColumn implements the RLE → Base-128 pipeline for blob
// entry lengths (spec §4.4 table). Present only in blob chunks.
func EncodeLengthColumn(buf []byte, values []uint32) []byte {
	widened := make([]uint64, len(values))
	for i, v := range values {
		widened[i] = uint64(v)
	}
	return RLEEncodeUint64(buf, widened)
}

func DecodeLengthColumn(data []byte, n int) ([]uint32, int, error) {
	wide, consumed, err := RLEDecodeUint64(data, n)
	if err != nil {
		return nil, 0, err
	}
	out := make([]uint32, n)
	for i, v := range wide {
		out[i] = uint32(v)
	}
	return out, consumed, nil
}
