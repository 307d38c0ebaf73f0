package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/liftlab/liftgate/internal/decision"
	"github.com/liftlab/liftgate/internal/design"
	"github.com/liftlab/liftgate/internal/engine"
	"github.com/liftlab/liftgate/internal/outcome"
	"github.com/liftlab/liftgate/internal/selector"
	"github.com/liftlab/liftgate/internal/stats"
	"github.com/liftlab/liftgate/internal/store"
)

// #region requests

// DesignRequest carries the inputs of the sample-size calculator.
type DesignRequest struct {
	BaselineRate  float64 `json:"baseline_rate" binding:"required,rate"`
	TargetLiftPct float64 `json:"target_lift_pct" binding:"required"`
	Alpha         float64 `json:"alpha" binding:"required,rate"`
	Power         float64 `json:"power" binding:"required,rate"`
	ControlShare  float64 `json:"control_share"`
	DailyTraffic  int     `json:"daily_traffic" binding:"required"`
}

// CountsRequest carries the observed counts of both arms.
type CountsRequest struct {
	ControlN             int `json:"control_n" binding:"required"`
	ControlConversions   int `json:"control_conversions" binding:"min=0"`
	TreatmentN           int `json:"treatment_n" binding:"required"`
	TreatmentConversions int `json:"treatment_conversions" binding:"min=0"`
}

// AnalyzeRequest extends the counts with test configuration.
type AnalyzeRequest struct {
	CountsRequest
	Alpha     float64 `json:"alpha" binding:"required,rate"`
	TestType  string  `json:"test_type"`
	Direction string  `json:"direction"`
}

// DecisionRequest asks for a rollout verdict, either from an explicit
// interval or from counts to analyze first.
type DecisionRequest struct {
	AnalyzeRequest
	TargetLift *float64 `json:"target_lift"`
}

// CreateExperimentRequest registers a named design.
type CreateExperimentRequest struct {
	Name string `json:"name" binding:"required"`
	DesignRequest
}

// StatusRequest moves an experiment to a new lifecycle state.
type StatusRequest struct {
	Status string `json:"status" binding:"required,oneof=draft running completed archived"`
}

// ProposeRequest asks the scenario source for a design.
type ProposeRequest struct {
	Brief string `json:"brief" binding:"required"`
}

// #endregion requests

// #region helpers

func (r DesignRequest) toParams() (design.Parameters, error) {
	share := r.ControlShare
	if share == 0 {
		share = 0.5
	}
	alloc, err := design.NewAllocation(share, 1-share)
	if err != nil {
		return design.Parameters{}, err
	}
	return design.NewParameters(r.BaselineRate, r.TargetLiftPct, r.Alpha, r.Power, alloc, r.DailyTraffic)
}

func (r CountsRequest) toCounts() (outcome.Counts, error) {
	return outcome.NewCounts(r.ControlN, r.ControlConversions, r.TreatmentN, r.TreatmentConversions)
}

func (r AnalyzeRequest) testType() engine.TestType {
	if r.TestType == "" {
		return engine.Auto
	}
	return engine.TestType(r.TestType)
}

func (r AnalyzeRequest) direction() stats.Tail {
	if r.Direction == "" {
		return stats.TwoTailed
	}
	return stats.Tail(r.Direction)
}

// writeError maps domain errors onto HTTP statuses.
func (s *Server) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, design.ErrInvalidAllocation),
		errors.Is(err, design.ErrInvalidParameters),
		errors.Is(err, design.ErrInvalidDesign),
		errors.Is(err, outcome.ErrInvalidCounts),
		errors.Is(err, stats.ErrInvalidAlpha),
		errors.Is(err, stats.ErrInvalidTail),
		errors.Is(err, engine.ErrUnsupportedTest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		s.log.Error().Err(err).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// #endregion helpers

// #region stateless-handlers

func (s *Server) handleSampleSize(c *gin.Context) {
	var req DesignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	params, err := req.toParams()
	if err != nil {
		s.writeError(c, err)
		return
	}
	res, err := design.ComputeSampleSize(params)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleSelectTest(c *gin.Context) {
	var req CountsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	counts, err := req.toCounts()
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, selector.SelectTest(counts))
}

func (s *Server) handleAnalyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	counts, err := req.toCounts()
	if err != nil {
		s.writeError(c, err)
		return
	}
	res, err := engine.Analyze(counts, req.Alpha, req.testType(), req.direction())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleDecision(c *gin.Context) {
	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	counts, err := req.toCounts()
	if err != nil {
		s.writeError(c, err)
		return
	}
	res, err := engine.Analyze(counts, req.Alpha, req.testType(), req.direction())
	if err != nil {
		s.writeError(c, err)
		return
	}
	target := s.targetLift
	if req.TargetLift != nil {
		target = *req.TargetLift
	}
	c.JSON(http.StatusOK, gin.H{
		"analysis": res,
		"verdict":  decision.ForResult(res, target),
	})
}

// #endregion stateless-handlers

// #region registry-handlers

func (s *Server) handleCreateExperiment(c *gin.Context) {
	var req CreateExperimentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	params, err := req.toParams()
	if err != nil {
		s.writeError(c, err)
		return
	}
	size, err := design.ComputeSampleSize(params)
	if err != nil {
		s.writeError(c, err)
		return
	}
	exp, err := s.store.CreateExperiment(req.Name, params, size)
	if err != nil {
		s.writeError(c, err)
		return
	}
	s.log.Info().Str("experiment", exp.ID).Str("name", exp.Name).Msg("experiment created")
	c.JSON(http.StatusCreated, exp)
}

func (s *Server) handleListExperiments(c *gin.Context) {
	exps, err := s.store.ListExperiments(100)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"experiments": exps})
}

func (s *Server) handleGetExperiment(c *gin.Context) {
	exp, err := s.store.GetExperiment(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, exp)
}

func (s *Server) handleSetStatus(c *gin.Context) {
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.store.SetStatus(c.Param("id"), store.Status(req.Status)); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": req.Status})
}

func (s *Server) handleRecordObservation(c *gin.Context) {
	var req CountsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	counts, err := req.toCounts()
	if err != nil {
		s.writeError(c, err)
		return
	}
	obs, err := s.store.RecordObservation(c.Param("id"), counts)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, obs)
}

// handleAnalyzeExperiment analyzes the latest observation of an experiment at
// its registered alpha and persists the result with its rollout verdict.
func (s *Server) handleAnalyzeExperiment(c *gin.Context) {
	id := c.Param("id")
	exp, err := s.store.GetExperiment(id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	obs, err := s.store.LatestObservation(id)
	if err != nil {
		s.writeError(c, err)
		return
	}

	res, err := engine.Analyze(obs.Counts, exp.Params.Alpha, engine.Auto, stats.TwoTailed)
	if err != nil {
		s.writeError(c, err)
		return
	}
	verdict := decision.ForResult(res, s.targetLift)

	rec, err := s.store.SaveAnalysis(store.AnalysisRecord{
		ExperimentID:  id,
		ObservationID: obs.ID,
		Result:        res,
		Verdict:       verdict,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	s.log.Info().
		Str("experiment", id).
		Str("test", string(res.TestUsed)).
		Str("decision", string(verdict.Decision)).
		Msg("analysis persisted")
	c.JSON(http.StatusOK, rec)
}

func (s *Server) handleAuditTrail(c *gin.Context) {
	id := c.Param("id")
	if _, err := s.store.GetExperiment(id); err != nil {
		s.writeError(c, err)
		return
	}
	trail, err := s.store.AuditTrail(id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": trail})
}

// #endregion registry-handlers

// #region scenario-handlers

func (s *Server) handleProposeScenario(c *gin.Context) {
	if s.source == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no scenario source configured"})
		return
	}
	var req ProposeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sc, err := s.source.Propose(c.Request.Context(), req.Brief)
	if err != nil {
		s.writeError(c, err)
		return
	}
	params, err := sc.ToDesign()
	if err != nil {
		s.writeError(c, err)
		return
	}
	size, err := design.ComputeSampleSize(params)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"scenario":    sc,
		"params":      params,
		"sample_size": size,
	})
}

// #endregion scenario-handlers
