package codec

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValueColumnRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
	}{
		{"empty", []float64{}},
		{"single", []float64{3.14159}},
		{"constant run", []float64{1.0, 1.0, 1.0, 1.0}},
		{"slow drift", []float64{20.0, 20.1, 20.2, 20.15, 20.3}},
		{"mixed signs", []float64{-5.5, 0, 5.5, -100.25}},
		{"special values", []float64{0, math.Inf(1), math.Inf(-1), math.NaN()}},
		{"extremes", []float64{math.MaxFloat64, math.SmallestNonzeroFloat64}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := EncodeValueColumn(nil, tt.values)
			decoded, consumed, err := DecodeValueColumn(encoded, len(tt.values))
			assert.NoError(t, err)
			assert.Equal(t, len(encoded), consumed)
			for i := range tt.values {
				if math.IsNaN(tt.values[i]) {
					assert.True(t, math.IsNaN(decoded[i]))
					continue
				}
				assert.Equal(t, math.Float64bits(tt.values[i]), math.Float64bits(decoded[i]))
			}
		})
	}
}

func TestValueColumnConstantRunIsCheap(t *testing.T) {
	values := make([]float64, 1000)
	for i := range values {
		values[i] = 42.5
	}
	encoded := EncodeValueColumn(nil, values)
	// First value costs a control byte plus up to 8 suffix bytes; every
	// repeat of an identical value XORs to zero and costs one byte (the
	// nz=8 control byte, no suffix).
	assert.LessOrEqual(t, len(encoded), 9+999)
}

func TestValueColumnTruncatedInput(t *testing.T) {
	_, _, err := DecodeValueColumn([]byte{}, 1)
	assert.Error(t, err)
}

func TestLeadingZeroBytes(t *testing.T) {
	assert.Equal(t, 8, leadingZeroBytes(0))
	assert.Equal(t, 7, leadingZeroBytes(1))
	assert.Equal(t, 0, leadingZeroBytes(^uint64(0)))
}
