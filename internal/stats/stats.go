// Package stats provides the numeric primitives shared by the sample-size
// calculator and the hypothesis-test engine: standard normal CDF and critical
// values, the chi-square survival function, and the exact hypergeometric
// two-tailed p-value used by Fisher's test.
//
// Every function here is pure and re-entrant; concurrent callers need no
// coordination.
package stats

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/stat/distuv"
)

// #region tail

// Tail selects between one-tailed and two-tailed critical values.
type Tail string

const (
	OneTailed Tail = "one_tailed"
	TwoTailed Tail = "two_tailed"
)

// #endregion tail

// #region errors

var (
	// ErrInvalidAlpha reports a significance level outside (0,1).
	ErrInvalidAlpha = errors.New("alpha must be in (0,1)")
	// ErrInvalidTail reports an unknown tail selector.
	ErrInvalidTail = errors.New("tail must be one_tailed or two_tailed")
	// ErrInvalidDF reports a non-positive degrees-of-freedom value.
	ErrInvalidDF = errors.New("degrees of freedom must be >= 1")
)

// #endregion errors

var stdNormal = distuv.Normal{Mu: 0, Sigma: 1}

// #region normal

// NormalCDF returns P(Z <= z) for a standard normal Z.
func NormalCDF(z float64) float64 {
	return stdNormal.CDF(z)
}

// ZScore returns the critical value for significance level alpha.
// Two-tailed: the z such that P(|Z| > z) = alpha (1.96 at alpha=0.05).
// One-tailed: the z such that P(Z > z) = alpha (1.645 at alpha=0.05).
func ZScore(alpha float64, tail Tail) (float64, error) {
	if alpha <= 0 || alpha >= 1 {
		return 0, fmt.Errorf("%w: got %v", ErrInvalidAlpha, alpha)
	}
	switch tail {
	case TwoTailed:
		return stdNormal.Quantile(1 - alpha/2), nil
	case OneTailed:
		return stdNormal.Quantile(1 - alpha), nil
	default:
		return 0, fmt.Errorf("%w: got %q", ErrInvalidTail, tail)
	}
}

// #endregion normal

// #region chi-square

// ChiSquareSurvival returns P(X > x) for a chi-square variable with df
// degrees of freedom. df is a real parameter of the distribution, not a
// fixed constant.
func ChiSquareSurvival(x float64, df int) (float64, error) {
	if df < 1 {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidDF, df)
	}
	if x <= 0 {
		return 1, nil
	}
	return distuv.ChiSquared{K: float64(df)}.Survival(x), nil
}

// #endregion chi-square
