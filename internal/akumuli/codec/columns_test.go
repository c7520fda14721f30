package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeltaZigZagRLEColumnRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		values []uint64
	}{
		{"empty", []uint64{}},
		{"monotonic", []uint64{100, 200, 300, 400}},
		{"flat", []uint64{5, 5, 5, 5, 5}},
		{"decreasing", []uint64{1000, 900, 800, 700}},
		{"single", []uint64{42}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := EncodeDeltaZigZagRLEColumn(nil, tt.values)
			decoded, consumed, err := DecodeDeltaZigZagRLEColumn(encoded, len(tt.values))
			assert.NoError(t, err)
			assert.Equal(t, tt.values, decoded)
			assert.Equal(t, len(encoded), consumed)
		})
	}
}

func TestTimestampColumnRoundTrip(t *testing.T) {
	timestamps := []uint64{1000, 1010, 1025, 1025, 2000}
	encoded := EncodeTimestampColumn(nil, timestamps)
	decoded, consumed, err := DecodeTimestampColumn(encoded, len(timestamps))
	assert.NoError(t, err)
	assert.Equal(t, timestamps, decoded)
	assert.Equal(t, len(encoded), consumed)
}

func TestOffsetColumnRoundTrip(t *testing.T) {
	offsets := []uint32{0, 64, 128, 128, 4096}
	encoded := EncodeOffsetColumn(nil, offsets)
	decoded, consumed, err := DecodeOffsetColumn(encoded, len(offsets))
	assert.NoError(t, err)
	assert.Equal(t, offsets, decoded)
	assert.Equal(t, len(encoded), consumed)
}

func TestParamIDColumnRoundTrip(t *testing.T) {
	ids := []uint64{1, 1, 1, 2, 2, 3, 1 << 50}
	encoded := EncodeParamIDColumn(nil, ids)
	decoded, consumed, err := DecodeParamIDColumn(encoded, len(ids))
	assert.NoError(t, err)
	assert.Equal(t, ids, decoded)
	assert.Equal(t, len(encoded), consumed)
}

func TestParamIDColumnIsPlainVarintNoRLE(t *testing.T) {
	// Paramids get no RLE: a run of 3 identical ids costs 3 separate
	// varints, not a (count, value) pair.
	ids := []uint64{9, 9, 9}
	encoded := EncodeParamIDColumn(nil, ids)
	single := AppendVarint(nil, 9)
	assert.Equal(t, len(single)*3, len(encoded))
}

func TestLengthColumnRoundTrip(t *testing.T) {
	lengths := []uint32{16, 16, 16, 32, 8}
	encoded := EncodeLengthColumn(nil, lengths)
	decoded, consumed, err := DecodeLengthColumn(encoded, len(lengths))
	assert.NoError(t, err)
	assert.Equal(t, lengths, decoded)
	assert.Equal(t, len(encoded), consumed)
}
