package outcome

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCounts_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cn, cc  int
		tn, tc  int
		wantErr bool
	}{
		{"valid", 1000, 50, 1000, 60, false},
		{"zero-conversions", 10, 0, 10, 0, false},
		{"all-converted", 10, 10, 10, 10, false},
		{"zero-control-n", 0, 0, 10, 1, true},
		{"negative-treatment-n", 10, 1, -5, 0, true},
		{"control-conversions-exceed-n", 10, 11, 10, 1, true},
		{"treatment-conversions-exceed-n", 10, 1, 10, 11, true},
		{"negative-conversions", 10, -1, 10, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCounts(tt.cn, tt.cc, tt.tn, tt.tc)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidCounts)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCounts_DerivedRates(t *testing.T) {
	c, err := NewCounts(1000, 50, 1000, 60)
	require.NoError(t, err)

	assert.InDelta(t, 0.05, c.ControlRate(), 1e-12)
	assert.InDelta(t, 0.06, c.TreatmentRate(), 1e-12)
	assert.InDelta(t, 0.01, c.AbsoluteLift(), 1e-12)
	assert.InDelta(t, 0.20, c.RelativeLift(), 1e-12)
}

func TestCounts_RelativeLiftZeroControlRate(t *testing.T) {
	c, err := NewCounts(100, 0, 100, 7)
	require.NoError(t, err)
	assert.Equal(t, 0.0, c.RelativeLift())
}

func TestCounts_Table(t *testing.T) {
	c, err := NewCounts(50, 3, 50, 10)
	require.NoError(t, err)

	tb := c.Table()
	assert.Equal(t, 3, tb.A)
	assert.Equal(t, 47, tb.B)
	assert.Equal(t, 10, tb.C)
	assert.Equal(t, 40, tb.D)
}

func TestCounts_ExpectedCells(t *testing.T) {
	c, err := NewCounts(50, 3, 50, 10)
	require.NoError(t, err)

	exp := c.ExpectedCells()
	// 13 conversions over 100 subjects split evenly across rows of 50.
	assert.InDelta(t, 6.5, exp[0][0], 1e-12)
	assert.InDelta(t, 43.5, exp[0][1], 1e-12)
	assert.InDelta(t, 6.5, exp[1][0], 1e-12)
	assert.InDelta(t, 43.5, exp[1][1], 1e-12)
	assert.InDelta(t, 6.5, c.MinExpectedCell(), 1e-12)
}

func TestCounts_MinArmSize(t *testing.T) {
	c, err := NewCounts(40, 3, 90, 10)
	require.NoError(t, err)
	assert.Equal(t, 40, c.MinArmSize())
}
