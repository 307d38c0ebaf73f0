package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liftlab/liftgate/internal/scenario"
	"github.com/liftlab/liftgate/internal/store"
)

func newTestServer(t *testing.T) *gin.Engine {
	t.Helper()
	st, err := store.NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	src := scenario.NewStaticSource([]scenario.Scenario{
		{
			Name:          "signup-cta",
			Hypothesis:    "a shorter CTA lifts signups",
			BaselineRate:  0.05,
			TargetLiftPct: 0.15,
			Alpha:         0.05,
			Power:         0.8,
			DailyTraffic:  10000,
			ControlShare:  0.5,
		},
	}, scenario.DefaultBounds())

	s := New(Options{Store: st, Source: src, TargetLift: 0.005, Log: zerolog.Nop()})
	return s.Router()
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, into interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), into))
}

func TestHealthz(t *testing.T) {
	r := newTestServer(t)
	w := doJSON(t, r, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSampleSizeEndpoint(t *testing.T) {
	r := newTestServer(t)

	w := doJSON(t, r, http.MethodPost, "/v1/sample-size", gin.H{
		"baseline_rate":   0.05,
		"target_lift_pct": 0.15,
		"alpha":           0.05,
		"power":           0.8,
		"daily_traffic":   10000,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res struct {
		PerArm       int `json:"per_arm"`
		Total        int `json:"total"`
		DaysRequired int `json:"days_required"`
	}
	decode(t, w, &res)
	assert.Equal(t, 14190, res.PerArm)
	assert.Equal(t, 28380, res.Total)
	assert.Equal(t, 3, res.DaysRequired)
}

func TestSampleSizeRejectsBadDesign(t *testing.T) {
	r := newTestServer(t)

	w := doJSON(t, r, http.MethodPost, "/v1/sample-size", gin.H{
		"baseline_rate":   0.05,
		"target_lift_pct": 0.15,
		"alpha":           0.5,
		"power":           0.8,
		"daily_traffic":   10000,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Missing required fields fail binding.
	w = doJSON(t, r, http.MethodPost, "/v1/sample-size", gin.H{"baseline_rate": 0.05})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSelectTestEndpoint(t *testing.T) {
	r := newTestServer(t)

	w := doJSON(t, r, http.MethodPost, "/v1/select-test", gin.H{
		"control_n":             20,
		"control_conversions":   2,
		"treatment_n":           20,
		"treatment_conversions": 5,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var sel struct {
		ChosenTest string `json:"chosen_test"`
	}
	decode(t, w, &sel)
	assert.Equal(t, "fisher_exact", sel.ChosenTest)
}

func TestAnalyzeEndpoint(t *testing.T) {
	r := newTestServer(t)

	w := doJSON(t, r, http.MethodPost, "/v1/analyze", gin.H{
		"control_n":             1000,
		"control_conversions":   50,
		"treatment_n":           1000,
		"treatment_conversions": 60,
		"alpha":                 0.05,
		"test_type":             "z_test",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res struct {
		PValue         float64 `json:"p_value"`
		TestUsed       string  `json:"test_used"`
		Significant    bool    `json:"significant"`
		Recommendation string  `json:"recommendation"`
	}
	decode(t, w, &res)
	assert.InDelta(t, 0.3266832512412057, res.PValue, 1e-9)
	assert.Equal(t, "z_test", res.TestUsed)
	assert.False(t, res.Significant)
	assert.Equal(t, "underpowered, extend sample", res.Recommendation)
}

func TestAnalyzeUnsupportedTest(t *testing.T) {
	r := newTestServer(t)

	w := doJSON(t, r, http.MethodPost, "/v1/analyze", gin.H{
		"control_n":             100,
		"control_conversions":   5,
		"treatment_n":           100,
		"treatment_conversions": 8,
		"alpha":                 0.05,
		"test_type":             "mann_whitney",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDecisionEndpoint(t *testing.T) {
	r := newTestServer(t)

	w := doJSON(t, r, http.MethodPost, "/v1/decision", gin.H{
		"control_n":             1000,
		"control_conversions":   50,
		"treatment_n":           1000,
		"treatment_conversions": 60,
		"alpha":                 0.05,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res struct {
		Verdict struct {
			Decision string  `json:"decision"`
			Target   float64 `json:"target"`
		} `json:"verdict"`
	}
	decode(t, w, &res)
	// The 95% interval straddles the default 0.5% target.
	assert.Equal(t, "proceed_with_caution", res.Verdict.Decision)
	assert.Equal(t, 0.005, res.Verdict.Target)
}

func TestDecisionEndpointExplicitTarget(t *testing.T) {
	r := newTestServer(t)

	w := doJSON(t, r, http.MethodPost, "/v1/decision", gin.H{
		"control_n":             1000,
		"control_conversions":   50,
		"treatment_n":           1000,
		"treatment_conversions": 60,
		"alpha":                 0.05,
		"target_lift":           0.05,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var res struct {
		Verdict struct {
			Decision string `json:"decision"`
		} `json:"verdict"`
	}
	decode(t, w, &res)
	// The interval tops out below a 5-point target.
	assert.Equal(t, "do_not_proceed", res.Verdict.Decision)
}

func TestExperimentLifecycle(t *testing.T) {
	r := newTestServer(t)

	w := doJSON(t, r, http.MethodPost, "/v1/experiments", gin.H{
		"name":            "signup-cta",
		"baseline_rate":   0.05,
		"target_lift_pct": 0.15,
		"alpha":           0.05,
		"power":           0.8,
		"daily_traffic":   10000,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var exp struct {
		ID         string `json:"id"`
		Status     string `json:"status"`
		SampleSize struct {
			PerArm int `json:"per_arm"`
		} `json:"sample_size"`
	}
	decode(t, w, &exp)
	require.NotEmpty(t, exp.ID)
	assert.Equal(t, "draft", exp.Status)
	assert.Equal(t, 14190, exp.SampleSize.PerArm)

	w = doJSON(t, r, http.MethodPost, "/v1/experiments/"+exp.ID+"/status", gin.H{"status": "running"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, r, http.MethodPost, "/v1/experiments/"+exp.ID+"/observations", gin.H{
		"control_n":             1000,
		"control_conversions":   50,
		"treatment_n":           1000,
		"treatment_conversions": 60,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = doJSON(t, r, http.MethodPost, "/v1/experiments/"+exp.ID+"/analyze", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var rec struct {
		Result struct {
			TestUsed string `json:"test_used"`
		} `json:"result"`
		Verdict struct {
			Decision string `json:"decision"`
		} `json:"verdict"`
	}
	decode(t, w, &rec)
	assert.Equal(t, "z_test", rec.Result.TestUsed)
	assert.Equal(t, "proceed_with_caution", rec.Verdict.Decision)

	w = doJSON(t, r, http.MethodGet, "/v1/experiments/"+exp.ID+"/audit", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var trail struct {
		Entries []struct {
			Decision string `json:"decision"`
		} `json:"entries"`
	}
	decode(t, w, &trail)
	require.Len(t, trail.Entries, 1)
	assert.Equal(t, "proceed_with_caution", trail.Entries[0].Decision)

	w = doJSON(t, r, http.MethodGet, "/v1/experiments", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestExperimentNotFound(t *testing.T) {
	r := newTestServer(t)

	w := doJSON(t, r, http.MethodGet, "/v1/experiments/nonexistent-id", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, http.MethodPost, "/v1/experiments/nonexistent-id/analyze", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAnalyzeExperimentWithoutObservations(t *testing.T) {
	r := newTestServer(t)

	w := doJSON(t, r, http.MethodPost, "/v1/experiments", gin.H{
		"name":            "empty",
		"baseline_rate":   0.05,
		"target_lift_pct": 0.15,
		"alpha":           0.05,
		"power":           0.8,
		"daily_traffic":   10000,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var exp struct {
		ID string `json:"id"`
	}
	decode(t, w, &exp)

	w = doJSON(t, r, http.MethodPost, "/v1/experiments/"+exp.ID+"/analyze", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProposeScenario(t *testing.T) {
	r := newTestServer(t)

	w := doJSON(t, r, http.MethodPost, "/v1/scenarios/propose", gin.H{"brief": "improve signups"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res struct {
		Scenario struct {
			Name string `json:"name"`
		} `json:"scenario"`
		SampleSize struct {
			PerArm int `json:"per_arm"`
		} `json:"sample_size"`
	}
	decode(t, w, &res)
	assert.Equal(t, "signup-cta", res.Scenario.Name)
	assert.Equal(t, 14190, res.SampleSize.PerArm)
}

func TestProposeScenarioWithoutSource(t *testing.T) {
	st, err := store.NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	r := New(Options{Store: st, Log: zerolog.Nop()}).Router()

	w := doJSON(t, r, http.MethodPost, "/v1/scenarios/propose", gin.H{"brief": "anything"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
