package stats

import (
	"math"

	"gonum.org/v1/gonum/stat/combin"
)

// #region table

// Table2x2 is a contingency table of raw counts:
//
//	          success  failure
//	control      A        B
//	treatment    C        D
type Table2x2 struct {
	A, B, C, D int
}

// #endregion table

// relTieTolerance matches the relative tolerance reference implementations
// use when deciding whether a table is "at least as extreme" as the observed
// one. Without it, float rounding drops tables that tie the observed
// probability.
const relTieTolerance = 1e-7

// #region fisher

// FisherExact computes the sample odds ratio and the exact two-sided p-value
// for a 2x2 table, summing hypergeometric probabilities of every table with
// the same margins whose probability does not exceed the observed one.
//
// All work happens in log space via log-binomial coefficients, so the
// function stays numerically stable for cell counts in the thousands. It
// never substitutes an approximate test at large n.
func FisherExact(t Table2x2) (oddsRatio, pValue float64) {
	row1 := t.A + t.B
	row2 := t.C + t.D
	col1 := t.A + t.C
	total := row1 + row2

	oddsRatio = sampleOddsRatio(t)
	if total == 0 {
		return oddsRatio, 1
	}

	// Support of A given fixed margins.
	lo := 0
	if col1-row2 > 0 {
		lo = col1 - row2
	}
	hi := row1
	if col1 < hi {
		hi = col1
	}

	logDenom := combin.LogGeneralizedBinomial(float64(total), float64(col1))
	logObs := hypergeomLogProb(t.A, row1, row2, col1) - logDenom
	pObs := math.Exp(logObs)

	sum := 0.0
	for a := lo; a <= hi; a++ {
		p := math.Exp(hypergeomLogProb(a, row1, row2, col1) - logDenom)
		if p <= pObs*(1+relTieTolerance) {
			sum += p
		}
	}
	if sum > 1 {
		sum = 1
	}
	return oddsRatio, sum
}

// hypergeomLogProb returns log C(row1,a) + log C(row2,col1-a); the caller
// subtracts log C(total,col1).
func hypergeomLogProb(a, row1, row2, col1 int) float64 {
	return combin.LogGeneralizedBinomial(float64(row1), float64(a)) +
		combin.LogGeneralizedBinomial(float64(row2), float64(col1-a))
}

func sampleOddsRatio(t Table2x2) float64 {
	if t.B == 0 || t.C == 0 {
		if t.A == 0 || t.D == 0 {
			return math.NaN()
		}
		return math.Inf(1)
	}
	return float64(t.A) * float64(t.D) / (float64(t.B) * float64(t.C))
}

// #endregion fisher
