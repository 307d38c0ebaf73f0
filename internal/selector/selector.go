// Package selector decides which hypothesis test is statistically
// appropriate for a set of observed outcome counts. The choice is a pure
// decision table over the contingency table's expected cells and arm sizes;
// no randomness, no model state.
package selector

import (
	"fmt"

	"github.com/liftlab/liftgate/internal/outcome"
)

// #region test-kind

// TestKind identifies one of the supported hypothesis tests.
type TestKind string

const (
	ZTest       TestKind = "z_test"
	ChiSquare   TestKind = "chi_square"
	FisherExact TestKind = "fisher_exact"
)

// #endregion test-kind

// #region thresholds

const (
	// minExpectedCellCount is the classic chi-square adequacy rule: every
	// expected cell must reach 5 before the asymptotic distribution is
	// trusted.
	minExpectedCellCount = 5.0
	// minArmForNormal is the arm size below which the normal approximation
	// of the z-test is not trusted.
	minArmForNormal = 30
	// minArmAdequate is the floor below which any asymptotic conclusion is
	// flagged as drawn from an inadequate sample.
	minArmAdequate = 10
)

// #endregion thresholds

// #region selection

// Selection is the outcome of the test-selection decision table.
type Selection struct {
	ChosenTest           TestKind   `json:"chosen_test"`
	Reasoning            string     `json:"reasoning"`
	SampleSizeAdequate   bool       `json:"sample_size_adequate"`
	AssumptionsMet       bool       `json:"assumptions_met"`
	Alternatives         []TestKind `json:"alternatives"`
	MinExpectedCellCount float64    `json:"min_expected_cell_count"`
}

// #endregion selection

// #region select

// SelectTest applies the decision table. Branch order is authoritative: the
// small-expected-cell check always wins over the arm-size check.
func SelectTest(c outcome.Counts) Selection {
	minExpected := c.MinExpectedCell()
	minArm := c.MinArmSize()

	// Sparse table: the chi-square approximation breaks down, use the exact
	// test. The exact test itself carries no distributional assumption.
	if minExpected < minExpectedCellCount {
		return Selection{
			ChosenTest: FisherExact,
			Reasoning: fmt.Sprintf(
				"chi-square expected cell count assumption violated: minimum expected cell %.2f is below %.0f; Fisher's exact test makes no distributional assumption",
				minExpected, minExpectedCellCount),
			SampleSizeAdequate:   minArm >= minArmAdequate,
			AssumptionsMet:       true,
			Alternatives:         []TestKind{ChiSquare, ZTest},
			MinExpectedCellCount: minExpected,
		}
	}

	// Moderate samples: cells are adequate but arms are too small for the
	// normal approximation of the z-test.
	if minArm < minArmForNormal {
		return Selection{
			ChosenTest: ChiSquare,
			Reasoning: fmt.Sprintf(
				"smaller arm has %d subjects, below the %d needed for the normal approximation; chi-square handles moderate samples with adequate expected cells (minimum %.2f)",
				minArm, minArmForNormal, minExpected),
			SampleSizeAdequate:   minArm >= minArmAdequate,
			AssumptionsMet:       minExpected >= minExpectedCellCount,
			Alternatives:         []TestKind{FisherExact, ZTest},
			MinExpectedCellCount: minExpected,
		}
	}

	// Large samples: two-proportion z-test. The rule-of-thumb checks inform
	// AssumptionsMet but never change the choice at this branch.
	assumptionsMet := normalApproxHolds(c)
	reason := fmt.Sprintf(
		"both arms have at least %d subjects and every expected cell reaches %.0f (minimum %.2f); two-proportion z-test is appropriate",
		minArmForNormal, minExpectedCellCount, minExpected)
	if !assumptionsMet {
		reason += "; note: the np>=5 rule of thumb fails for at least one arm"
	}

	return Selection{
		ChosenTest:           ZTest,
		Reasoning:            reason,
		SampleSizeAdequate:   minArm >= minArmAdequate,
		AssumptionsMet:       assumptionsMet,
		Alternatives:         []TestKind{ChiSquare},
		MinExpectedCellCount: minExpected,
	}
}

// normalApproxHolds checks n·p >= 5 and n·(1-p) >= 5 for each arm.
func normalApproxHolds(c outcome.Counts) bool {
	checks := []struct {
		n int
		p float64
	}{
		{c.ControlN, c.ControlRate()},
		{c.TreatmentN, c.TreatmentRate()},
	}
	for _, ch := range checks {
		np := float64(ch.n) * ch.p
		nq := float64(ch.n) * (1 - ch.p)
		if np < 5 || nq < 5 {
			return false
		}
	}
	return true
}

// #endregion select
