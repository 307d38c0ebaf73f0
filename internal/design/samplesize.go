package design

import (
	"fmt"
	"math"

	"github.com/liftlab/liftgate/internal/stats"
)

// #region result

// SampleSizeResult is the recruitment plan derived from a design.
type SampleSizeResult struct {
	PerArm        int     `json:"per_arm"`
	Total         int     `json:"total"`
	DaysRequired  int     `json:"days_required"`
	AchievedPower float64 `json:"achieved_power"`
}

// #endregion result

// #region compute

// ComputeSampleSize sizes a two-proportion experiment with the standard
// two-proportion z formula:
//
//	n = ceil( (zα+zβ)² · (p1(1-p1)+p2(1-p2)) / (p2-p1)² )
//
// Duration is gated by the control arm's share of daily traffic. Achieved
// power is re-derived from the rounded-up n, so it can exceed the requested
// power but never undershoots it beyond rounding slack.
func ComputeSampleSize(p Parameters) (SampleSizeResult, error) {
	p1 := p.BaselineRate
	p2 := p.TreatmentRate()
	if p2 <= 0 || p2 >= 1 {
		return SampleSizeResult{}, fmt.Errorf("%w: derived treatment rate %v not in (0,1)", ErrInvalidDesign, p2)
	}
	if p2 == p1 {
		return SampleSizeResult{}, fmt.Errorf("%w: zero target lift yields an unbounded sample size", ErrInvalidDesign)
	}

	zAlpha, err := stats.ZScore(p.Alpha, stats.TwoTailed)
	if err != nil {
		return SampleSizeResult{}, err
	}
	zBeta, err := stats.ZScore(1-p.Power, stats.OneTailed)
	if err != nil {
		return SampleSizeResult{}, err
	}

	variance := p1*(1-p1) + p2*(1-p2)
	diff := p2 - p1
	perArm := int(math.Ceil((zAlpha + zBeta) * (zAlpha + zBeta) * variance / (diff * diff)))
	if perArm < 1 {
		perArm = 1
	}

	controlPerDay := float64(p.DailyTraffic) * p.Allocation.Control
	days := int(math.Ceil(float64(perArm) / controlPerDay))
	if days < 1 {
		days = 1
	}

	return SampleSizeResult{
		PerArm:        perArm,
		Total:         2 * perArm,
		DaysRequired:  days,
		AchievedPower: achievedPower(p1, p2, perArm, zAlpha),
	}, nil
}

// achievedPower evaluates the power formula at the integer per-arm n.
func achievedPower(p1, p2 float64, n int, zAlpha float64) float64 {
	se := math.Sqrt(p1*(1-p1)/float64(n) + p2*(1-p2)/float64(n))
	if se == 0 {
		return 0
	}
	zEffect := math.Abs(p2-p1) / se
	power := 1 - stats.NormalCDF(zAlpha-zEffect)
	return clamp01(power)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// #endregion compute
