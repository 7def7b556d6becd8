package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumberScan(t *testing.T) {
	tests := []struct {
		name  string
		src   any
		valid bool
		want  float64
	}{
		{"null", nil, false, 0},
		{"int", int64(7), true, 7},
		{"float", 4.5, true, 4.5},
		{"decimal bytes", []byte("19.99"), true, 19.99},
		{"padded string", " 12 ", true, 12},
		{"junk string", "n/a", false, 0},
		{"empty bytes", []byte(""), false, 0},
		{"nan", math.NaN(), false, 0},
		{"inf", math.Inf(1), false, 0},
		{"true", true, true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var n Number
			require.NoError(t, n.Scan(tt.src))
			assert.Equal(t, tt.valid, n.Valid)
			assert.InDelta(t, tt.want, n.Float64(), 1e-9)
		})
	}
}

func TestNumberScanResetsPreviousValue(t *testing.T) {
	n := NewNumber(3)
	require.NoError(t, n.Scan(nil))
	assert.False(t, n.Valid)
	assert.Zero(t, n.Int64())
}

func TestNumberInt64Truncates(t *testing.T) {
	var n Number
	require.NoError(t, n.Scan([]byte("42.00")))
	assert.Equal(t, int64(42), n.Int64())

	// zero is a legitimate value, not a missing one
	require.NoError(t, n.Scan(int64(0)))
	assert.True(t, n.Valid)
	assert.Zero(t, n.Float64())
}
