package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppendReadVarintRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 127, 128, 300, 16383, 16384, 1 << 40, ^uint64(0)}
	for _, v := range values {
		buf := AppendVarint(nil, v)
		got, n := ReadVarint(buf)
		assert.Equal(t, v, got)
		assert.Equal(t, len(buf), n)
	}
}

func TestReadVarintTruncated(t *testing.T) {
	// A continuation byte (MSB set) with nothing following it is not a
	// complete varint.
	_, n := ReadVarint([]byte{0x80})
	assert.Equal(t, 0, n)
}
