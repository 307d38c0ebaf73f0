package store

import (
	"errors"
	"time"

	"github.com/liftlab/liftgate/internal/decision"
	"github.com/liftlab/liftgate/internal/design"
	"github.com/liftlab/liftgate/internal/engine"
	"github.com/liftlab/liftgate/internal/outcome"
)

// ErrNotFound reports a lookup for an experiment or record that does not
// exist.
var ErrNotFound = errors.New("not found")

// #region status
// Status tracks an experiment through its lifecycle.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusArchived  Status = "archived"
)

// ValidStatus reports whether s is one of the lifecycle states.
func ValidStatus(s Status) bool {
	switch s {
	case StatusDraft, StatusRunning, StatusCompleted, StatusArchived:
		return true
	}
	return false
}

// #endregion status

// #region experiment
// Experiment is a registered design plus its recruitment plan.
type Experiment struct {
	ID         string                  `json:"id"`
	Name       string                  `json:"name"`
	Params     design.Parameters       `json:"params"`
	SampleSize design.SampleSizeResult `json:"sample_size"`
	Status     Status                  `json:"status"`
	CreatedAt  time.Time               `json:"created_at"`
	UpdatedAt  time.Time               `json:"updated_at"`
}

// #endregion experiment

// #region observation
// Observation is one recorded snapshot of an experiment's counts.
type Observation struct {
	ID           int64          `json:"id"`
	ExperimentID string         `json:"experiment_id"`
	Counts       outcome.Counts `json:"counts"`
	RecordedAt   time.Time      `json:"recorded_at"`
}

// #endregion observation

// #region analysis-record
// AnalysisRecord is a persisted analysis run against one observation,
// including the rollout verdict derived from it.
type AnalysisRecord struct {
	ID            string                `json:"id"`
	ExperimentID  string                `json:"experiment_id"`
	ObservationID int64                 `json:"observation_id"`
	Result        engine.AnalysisResult `json:"result"`
	Verdict       decision.Outcome      `json:"verdict"`
	CreatedAt     time.Time             `json:"created_at"`
}

// #endregion analysis-record

// #region audit-entry
// AuditEntry is one row of the append-only analysis audit trail.
type AuditEntry struct {
	ExperimentID string    `json:"experiment_id"`
	AnalysisID   string    `json:"analysis_id"`
	TestUsed     string    `json:"test_used"`
	Decision     string    `json:"decision"`
	Reason       string    `json:"reason"`
	CreatedAt    time.Time `json:"created_at"`
}

// #endregion audit-entry
