package design

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAllocation(t *testing.T) {
	tests := []struct {
		name      string
		control   float64
		treatment float64
		wantErr   bool
	}{
		{"even", 0.5, 0.5, false},
		{"uneven", 0.7, 0.3, false},
		{"tiny-rounding", 0.5000001, 0.4999999, false},
		{"sum-too-high", 0.6, 0.5, true},
		{"sum-too-low", 0.4, 0.5, true},
		{"zero-control", 0, 1, true},
		{"negative", -0.2, 1.2, true},
		{"one-control", 1, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := NewAllocation(tt.control, tt.treatment)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidAllocation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.control, a.Control)
			assert.Equal(t, tt.treatment, a.Treatment)
		})
	}
}

func TestNewParameters_Ranges(t *testing.T) {
	alloc := EvenAllocation()
	tests := []struct {
		name     string
		baseline float64
		lift     float64
		alpha    float64
		power    float64
		traffic  int
		wantErr  bool
	}{
		{"valid", 0.05, 0.15, 0.05, 0.80, 10000, false},
		{"negative-lift", 0.10, -0.2, 0.05, 0.80, 10000, false},
		{"baseline-too-low", 0.0005, 0.15, 0.05, 0.80, 10000, true},
		{"baseline-too-high", 1.5, 0.15, 0.05, 0.80, 10000, true},
		{"lift-too-high", 0.05, 1.5, 0.05, 0.80, 10000, true},
		{"alpha-too-low", 0.05, 0.15, 0.005, 0.80, 10000, true},
		{"alpha-too-high", 0.05, 0.15, 0.2, 0.80, 10000, true},
		{"power-too-low", 0.05, 0.15, 0.05, 0.5, 10000, true},
		{"power-too-high", 0.05, 0.15, 0.05, 0.99, 10000, true},
		{"traffic-too-low", 0.05, 0.15, 0.05, 0.80, 999, true},
		{"treatment-rate-at-one", 1.0, 0.0, 0.05, 0.80, 10000, true},
		{"treatment-rate-zero", 0.5, -1.0, 0.05, 0.80, 10000, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewParameters(tt.baseline, tt.lift, tt.alpha, tt.power, alloc, tt.traffic)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidParameters)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTreatmentRate(t *testing.T) {
	p, err := NewParameters(0.05, 0.15, 0.05, 0.80, EvenAllocation(), 10000)
	require.NoError(t, err)
	assert.InDelta(t, 0.0575, p.TreatmentRate(), 1e-12)
}

func mustParams(t *testing.T, baseline, lift, alpha, power float64, traffic int) Parameters {
	t.Helper()
	p, err := NewParameters(baseline, lift, alpha, power, EvenAllocation(), traffic)
	require.NoError(t, err)
	return p
}

func TestComputeSampleSize_WorkedExample(t *testing.T) {
	// baseline 5%, +15% relative lift, alpha 0.05, power 0.80.
	p := mustParams(t, 0.05, 0.15, 0.05, 0.80, 10000)

	res, err := ComputeSampleSize(p)
	require.NoError(t, err)

	assert.Equal(t, 14190, res.PerArm)
	assert.GreaterOrEqual(t, res.PerArm, 13000)
	assert.LessOrEqual(t, res.PerArm, 15000)
	assert.Equal(t, 2*res.PerArm, res.Total)
	// 5000 control users/day -> ceil(14190/5000) = 3 days.
	assert.Equal(t, 3, res.DaysRequired)
	// Rounding n up can only push power above the request.
	assert.GreaterOrEqual(t, res.AchievedPower, 0.80-1e-9)
	assert.LessOrEqual(t, res.AchievedPower, 1.0)
}

func TestComputeSampleSize_Deterministic(t *testing.T) {
	p := mustParams(t, 0.12, 0.10, 0.05, 0.85, 20000)
	first, err := ComputeSampleSize(p)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := ComputeSampleSize(p)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestComputeSampleSize_Monotonicity(t *testing.T) {
	t.Run("larger-lift-needs-fewer", func(t *testing.T) {
		small, err := ComputeSampleSize(mustParams(t, 0.05, 0.10, 0.05, 0.80, 10000))
		require.NoError(t, err)
		large, err := ComputeSampleSize(mustParams(t, 0.05, 0.30, 0.05, 0.80, 10000))
		require.NoError(t, err)
		assert.Less(t, large.PerArm, small.PerArm)
	})

	t.Run("more-power-needs-more", func(t *testing.T) {
		low, err := ComputeSampleSize(mustParams(t, 0.05, 0.15, 0.05, 0.70, 10000))
		require.NoError(t, err)
		high, err := ComputeSampleSize(mustParams(t, 0.05, 0.15, 0.05, 0.95, 10000))
		require.NoError(t, err)
		assert.Greater(t, high.PerArm, low.PerArm)
	})

	t.Run("stricter-alpha-needs-more", func(t *testing.T) {
		loose, err := ComputeSampleSize(mustParams(t, 0.05, 0.15, 0.10, 0.80, 10000))
		require.NoError(t, err)
		strict, err := ComputeSampleSize(mustParams(t, 0.05, 0.15, 0.01, 0.80, 10000))
		require.NoError(t, err)
		assert.Greater(t, strict.PerArm, loose.PerArm)
	})
}

func TestComputeSampleSize_DaysGatedByControlArm(t *testing.T) {
	alloc, err := NewAllocation(0.2, 0.8)
	require.NoError(t, err)
	p, err := NewParameters(0.05, 0.15, 0.05, 0.80, alloc, 10000)
	require.NoError(t, err)

	res, err := ComputeSampleSize(p)
	require.NoError(t, err)
	// Only 2000 control users/day: ceil(14190/2000) = 8.
	assert.Equal(t, 8, res.DaysRequired)
}

func TestComputeSampleSize_InvalidDesign(t *testing.T) {
	// Hand-built parameters that bypass NewParameters: derived treatment
	// rate of 1.2 must be rejected before any formula runs.
	p := Parameters{
		BaselineRate:  0.8,
		TargetLiftPct: 0.5,
		Alpha:         0.05,
		Power:         0.8,
		Allocation:    EvenAllocation(),
		DailyTraffic:  10000,
	}
	_, err := ComputeSampleSize(p)
	assert.ErrorIs(t, err, ErrInvalidDesign)

	p.TargetLiftPct = 0
	_, err = ComputeSampleSize(p)
	assert.ErrorIs(t, err, ErrInvalidDesign)
}
