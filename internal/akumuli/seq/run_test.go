package seq

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/embeddb/akumuli/internal/akumuli"
)

func sample(ts uint64) akumuli.Sample { return akumuli.Sample{ParamID: 1, Timestamp: ts, Value: float64(ts)} }

func TestSortedRunPartitionAt(t *testing.T) {
	r := NewSortedRun(sample(10))
	r.Append(sample(20))
	r.Append(sample(30))
	r.Append(sample(40))

	before, after := r.PartitionAt(30)
	assert.Equal(t, []akumuli.Sample{sample(10), sample(20)}, before.samples)
	assert.Equal(t, []akumuli.Sample{sample(30), sample(40)}, after.samples)
	// Receiver untouched.
	assert.Equal(t, 4, r.Len())
}

func TestSortedRunSearchRange(t *testing.T) {
	r := NewSortedRun(sample(10))
	for _, ts := range []uint64{20, 30, 40, 50} {
		r.Append(sample(ts))
	}

	got := r.SearchRange(20, 40)
	assert.Equal(t, []akumuli.Sample{sample(20), sample(30), sample(40)}, got)

	assert.Empty(t, r.SearchRange(1000, 2000))
	assert.Empty(t, r.SearchRange(40, 10))
}

func TestSortedRunBack(t *testing.T) {
	r := NewSortedRun(sample(1))
	assert.Equal(t, sample(1), r.Back())
	r.Append(sample(2))
	assert.Equal(t, sample(2), r.Back())
}
