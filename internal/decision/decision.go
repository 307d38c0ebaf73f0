// Package decision turns an analysis result and a business target into a
// rollout verdict.
package decision

import (
	"fmt"

	"github.com/liftlab/liftgate/internal/engine"
)

// #region decision-type
// Decision enumerates the rollout verdicts.
type Decision string

const (
	ProceedWithConfidence Decision = "proceed_with_confidence"
	ProceedWithCaution    Decision = "proceed_with_caution"
	DoNotProceed          Decision = "do_not_proceed"
)

// #endregion decision-type

// #region outcome
// Outcome is the verdict plus a human-readable justification.
type Outcome struct {
	Decision Decision `json:"decision"`
	Reason   string   `json:"reason"`
	Target   float64  `json:"target"`
}

// #endregion outcome

// #region evaluate

// Rollout maps a confidence interval on the absolute rate difference against
// the minimum lift the business needs. The interval is the sole input: the
// upper bound ruling out the target rejects, the lower bound clearing it
// confirms, anything in between is inconclusive.
func Rollout(ci engine.ConfidenceInterval, target float64) Decision {
	switch {
	case ci.Upper < target:
		return DoNotProceed
	case ci.Lower >= target:
		return ProceedWithConfidence
	default:
		return ProceedWithCaution
	}
}

// Evaluate produces the full outcome with the reasoning spelled out.
func Evaluate(ci engine.ConfidenceInterval, target float64) Outcome {
	d := Rollout(ci, target)

	var reason string
	switch d {
	case DoNotProceed:
		reason = fmt.Sprintf("interval upper bound %.4f is below the target lift %.4f, the effect is too small even in the best case", ci.Upper, target)
	case ProceedWithConfidence:
		reason = fmt.Sprintf("interval lower bound %.4f clears the target lift %.4f, the effect exceeds the target even in the worst case", ci.Lower, target)
	default:
		reason = fmt.Sprintf("interval [%.4f, %.4f] straddles the target lift %.4f, the data cannot rule the target in or out", ci.Lower, ci.Upper, target)
	}

	return Outcome{Decision: d, Reason: reason, Target: target}
}

// ForResult evaluates the rollout verdict for a completed analysis.
func ForResult(res engine.AnalysisResult, target float64) Outcome {
	return Evaluate(res.ConfidenceInterval, target)
}

// #endregion evaluate
