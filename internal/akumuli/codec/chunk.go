package codec

import (
	"fmt"
	"sort"

	"github.com/embeddb/akumuli/internal/akumuli"
)

// Chunk is the decoded form of one compressed column-store unit (spec §3,
// §6). Lengths/Offsets are nil for the float-only case and populated only
// for blob payloads (spec §4.4 table) — this implementation's samples are
// always plain (paramid, timestamp, value) tuples, so callers that never
// deal in blobs simply leave them nil.
type Chunk struct {
	Samples []akumuli.Sample
	Lengths []uint32
	Offsets []uint32
}

// ConvertFromTimeOrder reorders samples already in time order
// ((timestamp, paramid) ascending) into chunk order ((paramid, timestamp)
// ascending), per spec §4.4. It is length- and value-preserving (T4):
// both orderings are total orders over the same tuple, so sorting by one
// after data already sorted by the other is an exact, invertible
// permutation of the input multiset.
func ConvertFromTimeOrder(samples []akumuli.Sample) []akumuli.Sample {
	out := make([]akumuli.Sample, len(samples))
	copy(out, samples)
	sort.SliceStable(out, func(i, j int) bool {
		return akumuli.LessChunkOrder(out[i], out[j])
	})
	return out
}

// ConvertFromChunkOrder is the inverse of ConvertFromTimeOrder: it
// restores time order from chunk-ordered data (spec §4.2 scan_compressed_
// entries: "columns are time-ordered within a chunk after
// convert_from_chunk_order is applied on read").
func ConvertFromChunkOrder(samples []akumuli.Sample) []akumuli.Sample {
	out := make([]akumuli.Sample, len(samples))
	copy(out, samples)
	sort.SliceStable(out, func(i, j int) bool {
		return akumuli.LessTimeOrder(out[i], out[j])
	})
	return out
}

// Encode writes a chunk's five (or, for float-only chunks, three) column
// streams concatenated in the fixed order of spec §4.4: timestamps,
// paramids, lengths, offsets (blob mode only), values.
//
// Lengths and Offsets, when present, are parallel to Samples by index, so
// the chunk-order permutation computed for Samples is applied to them too
// rather than re-derived from ConvertFromTimeOrder's sample-only sort.
func (c Chunk) Encode() []byte {
	n := len(c.Samples)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		return akumuli.LessChunkOrder(c.Samples[idx[i]], c.Samples[idx[j]])
	})

	timestamps := make([]uint64, n)
	paramids := make([]uint64, n)
	values := make([]float64, n)
	var lengths, offsets []uint32
	if c.Lengths != nil {
		lengths = make([]uint32, n)
		offsets = make([]uint32, n)
	}
	for pos, src := range idx {
		s := c.Samples[src]
		timestamps[pos] = s.Timestamp
		paramids[pos] = s.ParamID
		values[pos] = s.Value
		if c.Lengths != nil {
			lengths[pos] = c.Lengths[src]
			offsets[pos] = c.Offsets[src]
		}
	}

	var buf []byte
	buf = EncodeTimestampColumn(buf, timestamps)
	buf = EncodeParamIDColumn(buf, paramids)
	if c.Lengths != nil {
		buf = EncodeLengthColumn(buf, lengths)
		buf = EncodeOffsetColumn(buf, offsets)
	}
	buf = EncodeValueColumn(buf, values)
	return buf
}

// Decode is the exact inverse of Encode for a chunk known to contain n
// elements and, if hasBlobs is true, length/offset columns. The decoded
// samples come back in time order (see ConvertFromChunkOrder).
func Decode(data []byte, n int, hasBlobs bool) (Chunk, error) {
	offset := 0

	timestamps, c, err := DecodeTimestampColumn(data[offset:], n)
	if err != nil {
		return Chunk{}, fmt.Errorf("decoding timestamps: %w", err)
	}
	offset += c

	paramids, c, err := DecodeParamIDColumn(data[offset:], n)
	if err != nil {
		return Chunk{}, fmt.Errorf("decoding paramids: %w", err)
	}
	offset += c

	var lengths, offsets32 []uint32
	if hasBlobs {
		lengths, c, err = DecodeLengthColumn(data[offset:], n)
		if err != nil {
			return Chunk{}, fmt.Errorf("decoding lengths: %w", err)
		}
		offset += c

		offsets32, c, err = DecodeOffsetColumn(data[offset:], n)
		if err != nil {
			return Chunk{}, fmt.Errorf("decoding offsets: %w", err)
		}
		offset += c
	}

	values, c, err := DecodeValueColumn(data[offset:], n)
	if err != nil {
		return Chunk{}, fmt.Errorf("decoding values: %w", err)
	}
	offset += c

	chunkOrdered := make([]akumuli.Sample, n)
	for i := 0; i < n; i++ {
		chunkOrdered[i] = akumuli.Sample{ParamID: paramids[i], Timestamp: timestamps[i], Value: values[i]}
	}

	// Restore time order. Lengths/Offsets are parallel to chunkOrdered by
	// index, so the same permutation is applied to them rather than
	// re-derived from a sample-only sort.
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		return akumuli.LessTimeOrder(chunkOrdered[idx[i]], chunkOrdered[idx[j]])
	})

	samples := make([]akumuli.Sample, n)
	var outLengths, outOffsets []uint32
	if hasBlobs {
		outLengths = make([]uint32, n)
		outOffsets = make([]uint32, n)
	}
	for pos, src := range idx {
		samples[pos] = chunkOrdered[src]
		if hasBlobs {
			outLengths[pos] = lengths[src]
			outOffsets[pos] = offsets32[src]
		}
	}

	return Chunk{
		Samples: samples,
		Lengths: outLengths,
		Offsets: outOffsets,
	}, nil
}
