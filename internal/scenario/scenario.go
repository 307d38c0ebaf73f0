// Package scenario produces experiment designs from an outside source, either
// a fixed catalog or a language model, and clamps whatever comes back to the
// ranges the design layer accepts.
package scenario

import (
	"errors"
	"fmt"

	"github.com/liftlab/liftgate/internal/design"
)

// ErrNoScenario reports a source that has nothing to propose.
var ErrNoScenario = errors.New("no scenario available")

// #region scenario
// Scenario is a proposed experiment before validation.
type Scenario struct {
	Name          string  `json:"name" yaml:"name"`
	Hypothesis    string  `json:"hypothesis" yaml:"hypothesis"`
	BaselineRate  float64 `json:"baseline_rate" yaml:"baseline_rate"`
	TargetLiftPct float64 `json:"target_lift_pct" yaml:"target_lift_pct"`
	Alpha         float64 `json:"alpha" yaml:"alpha"`
	Power         float64 `json:"power" yaml:"power"`
	DailyTraffic  int     `json:"daily_traffic" yaml:"daily_traffic"`
	ControlShare  float64 `json:"control_share" yaml:"control_share"`
}

// #endregion scenario

// #region bounds
// Bounds are the guardrails applied to proposed scenarios before they reach
// the design layer. Zero-valued fields in a proposal fall back to the bound's
// default.
type Bounds struct {
	MinBaselineRate float64
	MaxBaselineRate float64
	MaxAbsLiftPct   float64
	DefaultAlpha    float64
	DefaultPower    float64
	MinDailyTraffic int
}

// DefaultBounds mirror the ranges the design layer enforces.
func DefaultBounds() Bounds {
	return Bounds{
		MinBaselineRate: 0.001,
		MaxBaselineRate: 0.5,
		MaxAbsLiftPct:   0.5,
		DefaultAlpha:    0.05,
		DefaultPower:    0.8,
		MinDailyTraffic: 1000,
	}
}

// Clamp forces a proposal inside the guardrails, filling defaults for fields
// the source left unset.
func (b Bounds) Clamp(s Scenario) Scenario {
	if s.BaselineRate < b.MinBaselineRate {
		s.BaselineRate = b.MinBaselineRate
	}
	if s.BaselineRate > b.MaxBaselineRate {
		s.BaselineRate = b.MaxBaselineRate
	}
	if s.TargetLiftPct > b.MaxAbsLiftPct {
		s.TargetLiftPct = b.MaxAbsLiftPct
	}
	if s.TargetLiftPct < -b.MaxAbsLiftPct {
		s.TargetLiftPct = -b.MaxAbsLiftPct
	}
	if s.Alpha == 0 {
		s.Alpha = b.DefaultAlpha
	}
	if s.Power == 0 {
		s.Power = b.DefaultPower
	}
	if s.DailyTraffic < b.MinDailyTraffic {
		s.DailyTraffic = b.MinDailyTraffic
	}
	if s.ControlShare <= 0 || s.ControlShare >= 1 {
		s.ControlShare = 0.5
	}
	return s
}

// #endregion bounds

// #region to-design
// ToDesign converts a scenario into validated design parameters.
func (s Scenario) ToDesign() (design.Parameters, error) {
	alloc, err := design.NewAllocation(s.ControlShare, 1-s.ControlShare)
	if err != nil {
		return design.Parameters{}, fmt.Errorf("scenario %q: %w", s.Name, err)
	}
	params, err := design.NewParameters(s.BaselineRate, s.TargetLiftPct, s.Alpha, s.Power, alloc, s.DailyTraffic)
	if err != nil {
		return design.Parameters{}, fmt.Errorf("scenario %q: %w", s.Name, err)
	}
	return params, nil
}

// #endregion to-design
