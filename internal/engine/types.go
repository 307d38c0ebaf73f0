package engine

import (
	"errors"

	"github.com/liftlab/liftgate/internal/selector"
)

// #region errors

// ErrUnsupportedTest reports a test type the engine does not implement.
// Raised at the Analyze entry point, never inside a test strategy.
var ErrUnsupportedTest = errors.New("unsupported test type")

// #endregion errors

// #region test-type

// TestType selects which hypothesis test Analyze runs. Auto defers the
// choice to the selector decision table.
type TestType string

const (
	Auto        TestType = "auto"
	ZTest       TestType = TestType(selector.ZTest)
	ChiSquare   TestType = TestType(selector.ChiSquare)
	FisherExact TestType = TestType(selector.FisherExact)
)

// #endregion test-type

// #region confidence-interval

// ConfidenceInterval is an unclamped interval on the rate difference; it may
// be negative or exceed the natural bounds of a proportion.
type ConfidenceInterval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// #endregion confidence-interval

// #region recommendations

// Recommendation strings produced by the deterministic classifier.
const (
	RecommendStrongRollout  = "strong evidence, recommend rollout"
	RecommendGradualRollout = "moderate evidence, gradual rollout"
	RecommendEvaluateImpact = "small but significant, evaluate business impact"
	RecommendExtendSample   = "underpowered, extend sample"
	RecommendConsiderExtend = "marginal, consider extending"
	RecommendNoDifference   = "no significant difference"
)

// #endregion recommendations

// #region analysis-result

// AnalysisResult is the full output of one hypothesis test run plus the
// shared decision metrics derived from it. Produced once per Analyze call,
// never mutated.
type AnalysisResult struct {
	TestStatistic      float64             `json:"test_statistic"`
	PValue             float64             `json:"p_value"`
	ConfidenceInterval ConfidenceInterval  `json:"confidence_interval"`
	ConfidenceLevel    float64             `json:"confidence_level"`
	Significant        bool                `json:"significant"`
	EffectSize         float64             `json:"effect_size"`
	AchievedPower      float64             `json:"achieved_power"`
	Recommendation     string              `json:"recommendation"`
	TestUsed           selector.TestKind   `json:"test_used"`
	Selection          *selector.Selection `json:"selection,omitempty"` // set only when TestType was Auto
}

// #endregion analysis-result
