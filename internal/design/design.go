// Package design holds the validated inputs of an experiment plan and the
// sample-size calculator that turns them into a recruitment plan.
//
// Allocation and DesignParameters are value objects: every invariant is
// enforced at construction and nothing mutates them afterwards.
package design

import (
	"errors"
	"fmt"
	"math"
)

// #region errors

var (
	// ErrInvalidAllocation reports allocation fractions that are out of range
	// or do not sum to one.
	ErrInvalidAllocation = errors.New("invalid allocation")
	// ErrInvalidParameters reports a design field outside its allowed range.
	ErrInvalidParameters = errors.New("invalid design parameters")
	// ErrInvalidDesign reports a design whose derived treatment rate escapes
	// (0,1); raised before any sample-size formula is evaluated.
	ErrInvalidDesign = errors.New("invalid design")
)

// #endregion errors

// allocationSumTolerance bounds the float error allowed when checking that
// the two traffic fractions sum to 1.
const allocationSumTolerance = 1e-6

// #region allocation

// Allocation is the traffic split between the two arms.
type Allocation struct {
	Control   float64 `json:"control"`
	Treatment float64 `json:"treatment"`
}

// NewAllocation validates that both fractions lie in (0,1) and sum to 1.
func NewAllocation(control, treatment float64) (Allocation, error) {
	if control <= 0 || control >= 1 {
		return Allocation{}, fmt.Errorf("%w: control fraction %v not in (0,1)", ErrInvalidAllocation, control)
	}
	if treatment <= 0 || treatment >= 1 {
		return Allocation{}, fmt.Errorf("%w: treatment fraction %v not in (0,1)", ErrInvalidAllocation, treatment)
	}
	if math.Abs(control+treatment-1) > allocationSumTolerance {
		return Allocation{}, fmt.Errorf("%w: fractions sum to %v, want 1", ErrInvalidAllocation, control+treatment)
	}
	return Allocation{Control: control, Treatment: treatment}, nil
}

// EvenAllocation returns the 50/50 split.
func EvenAllocation() Allocation {
	return Allocation{Control: 0.5, Treatment: 0.5}
}

// #endregion allocation

// #region parameters

// Parameters describes the experiment to be sized. TargetLiftPct is a
// relative lift applied to the baseline rate; all rates and levels are
// fractional, never pre-multiplied by 100.
type Parameters struct {
	BaselineRate  float64    `json:"baseline_rate"`
	TargetLiftPct float64    `json:"target_lift_pct"`
	Alpha         float64    `json:"alpha"`
	Power         float64    `json:"power"`
	Allocation    Allocation `json:"allocation"`
	DailyTraffic  int        `json:"daily_traffic"`
}

// NewParameters validates every field range and the derived treatment rate.
func NewParameters(baselineRate, targetLiftPct, alpha, power float64, alloc Allocation, dailyTraffic int) (Parameters, error) {
	if baselineRate < 0.001 || baselineRate > 1.0 {
		return Parameters{}, fmt.Errorf("%w: baseline rate %v not in [0.001,1.0]", ErrInvalidParameters, baselineRate)
	}
	if targetLiftPct < -1 || targetLiftPct > 1 {
		return Parameters{}, fmt.Errorf("%w: target lift %v not in [-1,1]", ErrInvalidParameters, targetLiftPct)
	}
	if alpha < 0.01 || alpha > 0.1 {
		return Parameters{}, fmt.Errorf("%w: alpha %v not in [0.01,0.1]", ErrInvalidParameters, alpha)
	}
	if power < 0.7 || power > 0.95 {
		return Parameters{}, fmt.Errorf("%w: power %v not in [0.7,0.95]", ErrInvalidParameters, power)
	}
	if alloc == (Allocation{}) {
		return Parameters{}, fmt.Errorf("%w: allocation not constructed via NewAllocation", ErrInvalidParameters)
	}
	if dailyTraffic < 1000 {
		return Parameters{}, fmt.Errorf("%w: daily traffic %d below minimum 1000", ErrInvalidParameters, dailyTraffic)
	}

	p := Parameters{
		BaselineRate:  baselineRate,
		TargetLiftPct: targetLiftPct,
		Alpha:         alpha,
		Power:         power,
		Allocation:    alloc,
		DailyTraffic:  dailyTraffic,
	}
	if tr := p.TreatmentRate(); tr <= 0 || tr >= 1 {
		return Parameters{}, fmt.Errorf("%w: derived treatment rate %v not in (0,1)", ErrInvalidParameters, tr)
	}
	return p, nil
}

// TreatmentRate is the baseline rate with the target lift applied.
func (p Parameters) TreatmentRate() float64 {
	return p.BaselineRate * (1 + p.TargetLiftPct)
}

// #endregion parameters
