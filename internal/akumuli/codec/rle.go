package codec

import "fmt"

// RLEEncodeUint64 run-length encodes values as (count, value) varint pairs,
// per spec §4.4. A final pair is always flushed on close; a count of 0 is
// illegal and never produced here.
func RLEEncodeUint64(buf []byte, values []uint64) []byte {
	if len(values) == 0 {
		return buf
	}
	run := values[0]
	count := uint64(1)
	for _, v := range values[1:] {
		if v == run {
			count++
			continue
		}
		buf = AppendVarint(buf, count)
		buf = AppendVarint(buf, run)
		run = v
		count = 1
	}
	buf = AppendVarint(buf, count)
	buf = AppendVarint(buf, run)
	return buf
}

// RLEDecodeUint64 decodes exactly n values previously produced by
// RLEEncodeUint64, returning the values and the number of bytes consumed.
func RLEDecodeUint64(data []byte, n int) ([]uint64, int, error) {
	out := make([]uint64, 0, n)
	offset := 0
	for len(out) < n {
		count, cn := ReadVarint(data[offset:])
		if cn == 0 {
			return nil, 0, fmt.Errorf("codec: truncated RLE count at byte %d", offset)
		}
		offset += cn
		if count == 0 {
			return nil, 0, fmt.Errorf("codec: illegal zero-length RLE run at byte %d", offset)
		}
		value, vn := ReadVarint(data[offset:])
		if vn == 0 {
			return nil, 0, fmt.Errorf("codec: truncated RLE value at byte %d", offset)
		}
		offset += vn
		for i := uint64(0); i < count && len(out) < n; i++ {
			out = append(out, value)
		}
		// A run that overshoots n only happens on corrupt input: the
		// encoder never splits a run across the requested element count.
		if uint64(len(out)) > uint64(n) {
			return nil, 0, fmt.Errorf("codec: RLE run overshoots requested length")
		}
	}
	return out, offset, nil
}
