// Package engine runs the two-proportion hypothesis tests and derives the
// shared decision metrics from their results.
//
// The three tests are interchangeable strategies producing only a statistic
// and a p-value; confidence interval, effect size, achieved power, and the
// recommendation live in exactly one post-processing pipeline so every test
// reports them identically.
package engine

import (
	"fmt"
	"math"

	"github.com/liftlab/liftgate/internal/outcome"
	"github.com/liftlab/liftgate/internal/selector"
	"github.com/liftlab/liftgate/internal/stats"
)

// #region strategies

// statFn computes the raw test statistic and two-sided p-value for a set of
// outcome counts. Each must be pure.
type statFn func(c outcome.Counts) (statistic, pValue float64)

var testStrategies = map[selector.TestKind]statFn{
	selector.ZTest:       zTestStat,
	selector.ChiSquare:   chiSquareStat,
	selector.FisherExact: fisherExactStat,
}

// #endregion strategies

// #region analyze

// Analyze runs the requested hypothesis test on the observed counts at
// significance level alpha. testType Auto consults the selector first and
// records its Selection on the result; explicit test types leave Selection
// nil. direction applies to the p-value of the z-test and to the achieved
// power computation.
func Analyze(c outcome.Counts, alpha float64, testType TestType, direction stats.Tail) (AnalysisResult, error) {
	if alpha <= 0 || alpha >= 1 {
		return AnalysisResult{}, fmt.Errorf("%w: alpha %v not in (0,1)", stats.ErrInvalidAlpha, alpha)
	}
	if direction != stats.OneTailed && direction != stats.TwoTailed {
		return AnalysisResult{}, fmt.Errorf("%w: %q", stats.ErrInvalidTail, direction)
	}

	var sel *selector.Selection
	kind := selector.TestKind(testType)
	if testType == Auto {
		s := selector.SelectTest(c)
		sel = &s
		kind = s.ChosenTest
	}

	run, ok := testStrategies[kind]
	if !ok {
		return AnalysisResult{}, fmt.Errorf("%w: %q", ErrUnsupportedTest, testType)
	}

	statistic, pValue := run(c)
	if direction == stats.OneTailed && kind == selector.ZTest {
		pValue /= 2
	}
	pValue = clamp01(pValue)

	res := postProcess(c, alpha, direction, statistic, pValue)
	res.TestUsed = kind
	res.Selection = sel
	return res, nil
}

// #endregion analyze

// #region z-test

// zTestStat computes the pooled two-proportion z statistic and its two-sided
// p-value. A zero standard error (identical degenerate arms) yields a zero
// statistic instead of a division by zero.
func zTestStat(c outcome.Counts) (float64, float64) {
	n1 := float64(c.ControlN)
	n2 := float64(c.TreatmentN)
	pooled := float64(c.ControlConversions+c.TreatmentConversions) / (n1 + n2)

	se := math.Sqrt(pooled * (1 - pooled) * (1/n1 + 1/n2))
	z := 0.0
	if se > 0 {
		z = (c.TreatmentRate() - c.ControlRate()) / se
	}
	p := 2 * (1 - stats.NormalCDF(math.Abs(z)))
	return z, clamp01(p)
}

// #endregion z-test

// #region chi-square

// chiSquareStat computes the 2x2 chi-square statistic over cells with
// non-zero expectation and its survival p-value at one degree of freedom.
func chiSquareStat(c outcome.Counts) (float64, float64) {
	t := c.Table()
	observed := [2][2]float64{
		{float64(t.A), float64(t.B)},
		{float64(t.C), float64(t.D)},
	}
	expected := c.ExpectedCells()

	chi2 := 0.0
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			if expected[i][j] > 0 {
				d := observed[i][j] - expected[i][j]
				chi2 += d * d / expected[i][j]
			}
		}
	}

	p, err := stats.ChiSquareSurvival(chi2, 1)
	if err != nil {
		// df is the constant 1 here; survival cannot fail.
		p = 1
	}
	return chi2, p
}

// #endregion chi-square

// #region fisher

// fisherExactStat reports the sample odds ratio as the statistic and the
// exact two-sided hypergeometric p-value. Exact at any n.
func fisherExactStat(c outcome.Counts) (float64, float64) {
	or, p := stats.FisherExact(c.Table())
	if math.IsNaN(or) || math.IsInf(or, 0) {
		or = 0
	}
	return or, p
}

// #endregion fisher

// #region post-processing

// postProcess derives the decision metrics every test shares: the unclamped
// Wald interval on the rate difference, Cohen's h, post-hoc achieved power,
// and the recommendation text.
func postProcess(c outcome.Counts, alpha float64, direction stats.Tail, statistic, pValue float64) AnalysisResult {
	p1 := c.ControlRate()
	p2 := c.TreatmentRate()
	diff := p2 - p1

	zCrit, _ := stats.ZScore(alpha, stats.TwoTailed)
	se := math.Sqrt(p1*(1-p1)/float64(c.ControlN) + p2*(1-p2)/float64(c.TreatmentN))
	ci := ConfidenceInterval{Lower: diff - zCrit*se, Upper: diff + zCrit*se}

	significant := pValue < alpha
	effectSize := cohensH(p1, p2)
	power := achievedPower(c, alpha, direction)

	return AnalysisResult{
		TestStatistic:      statistic,
		PValue:             pValue,
		ConfidenceInterval: ci,
		ConfidenceLevel:    1 - alpha,
		Significant:        significant,
		EffectSize:         effectSize,
		AchievedPower:      power,
		Recommendation:     recommend(significant, effectSize, power, pValue),
	}
}

// cohensH is the arcsine-based effect size for two proportions.
func cohensH(p1, p2 float64) float64 {
	return 2*math.Asin(math.Sqrt(p2)) - 2*math.Asin(math.Sqrt(p1))
}

// achievedPower estimates post-hoc power from the observed rates and the
// average arm size. Observed rates are noisy, so this is itself an estimate,
// not an exact quantity.
func achievedPower(c outcome.Counts, alpha float64, direction stats.Tail) float64 {
	p1 := c.ControlRate()
	p2 := c.TreatmentRate()
	n := (float64(c.ControlN) + float64(c.TreatmentN)) / 2

	zCrit, err := stats.ZScore(alpha, direction)
	if err != nil {
		return 0
	}

	se := math.Sqrt(p1*(1-p1)/n + p2*(1-p2)/n)
	zEffect := 0.0
	if se > 0 {
		zEffect = math.Abs(p2-p1) / se
	}
	return clamp01(1 - stats.NormalCDF(zCrit-zEffect))
}

// recommend maps the shared metrics onto a rollout recommendation. Branch
// order mirrors the strength of the evidence. Thresholds apply to signed
// Cohen's h, so only positive lifts reach the rollout branches; a significant
// harmful effect lands in the evaluate branch.
func recommend(significant bool, effectSize, power, pValue float64) string {
	switch {
	case significant && effectSize > 0.2:
		return RecommendStrongRollout
	case significant && effectSize > 0.1:
		return RecommendGradualRollout
	case significant:
		return RecommendEvaluateImpact
	case power < 0.8:
		return RecommendExtendSample
	case pValue < 0.1:
		return RecommendConsiderExtend
	default:
		return RecommendNoDifference
	}
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

// #endregion post-processing
