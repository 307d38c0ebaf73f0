// Package store persists experiments, their observed counts, and every
// analysis run against them in SQLite.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/liftlab/liftgate/internal/design"
	"github.com/liftlab/liftgate/internal/outcome"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS experiments (
	experiment_id  TEXT PRIMARY KEY,
	name           TEXT NOT NULL,
	params_json    TEXT NOT NULL,
	size_json      TEXT NOT NULL,
	status         TEXT NOT NULL,
	created_at     TEXT NOT NULL,
	updated_at     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS observations (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	experiment_id  TEXT NOT NULL,
	counts_json    TEXT NOT NULL,
	recorded_at    TEXT NOT NULL,
	FOREIGN KEY (experiment_id) REFERENCES experiments(experiment_id)
);

CREATE TABLE IF NOT EXISTS analyses (
	analysis_id    TEXT PRIMARY KEY,
	experiment_id  TEXT NOT NULL,
	observation_id INTEGER NOT NULL,
	result_json    TEXT NOT NULL,
	verdict_json   TEXT NOT NULL,
	created_at     TEXT NOT NULL,
	FOREIGN KEY (experiment_id) REFERENCES experiments(experiment_id),
	FOREIGN KEY (observation_id) REFERENCES observations(id)
);

CREATE TABLE IF NOT EXISTS analysis_log (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	experiment_id  TEXT NOT NULL,
	analysis_id    TEXT NOT NULL,
	test_used      TEXT NOT NULL,
	decision       TEXT NOT NULL,
	reason         TEXT,
	created_at     TEXT NOT NULL,
	FOREIGN KEY (experiment_id) REFERENCES experiments(experiment_id),
	FOREIGN KEY (analysis_id) REFERENCES analyses(analysis_id)
);
`

// #endregion schema

// #region store-struct
// Store manages the experiment registry in SQLite.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStoreWithDB wraps an already-open database. The caller owns the schema
// and the connection lifecycle.
func NewStoreWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// #endregion close

// #region create-experiment
// CreateExperiment registers a new experiment in draft status.
func (s *Store) CreateExperiment(name string, params design.Parameters, size design.SampleSizeResult) (Experiment, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	exp := Experiment{
		ID:         id,
		Name:       name,
		Params:     params,
		SampleSize: size,
		Status:     StatusDraft,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return Experiment{}, fmt.Errorf("marshal params: %w", err)
	}
	sizeJSON, err := json.Marshal(size)
	if err != nil {
		return Experiment{}, fmt.Errorf("marshal size: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO experiments (experiment_id, name, params_json, size_json, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, name, string(paramsJSON), string(sizeJSON), string(StatusDraft),
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Experiment{}, fmt.Errorf("insert experiment: %w", err)
	}
	return exp, nil
}

// #endregion create-experiment

// #region get-experiment
// GetExperiment retrieves an experiment by ID.
func (s *Store) GetExperiment(id string) (Experiment, error) {
	var exp Experiment
	var paramsJSON, sizeJSON, status, createdStr, updatedStr string

	err := s.db.QueryRow(
		`SELECT experiment_id, name, params_json, size_json, status, created_at, updated_at
		 FROM experiments WHERE experiment_id = ?`, id,
	).Scan(&exp.ID, &exp.Name, &paramsJSON, &sizeJSON, &status, &createdStr, &updatedStr)
	if errors.Is(err, sql.ErrNoRows) {
		return Experiment{}, fmt.Errorf("experiment %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Experiment{}, fmt.Errorf("get experiment %s: %w", id, err)
	}

	if err := json.Unmarshal([]byte(paramsJSON), &exp.Params); err != nil {
		return Experiment{}, fmt.Errorf("unmarshal params: %w", err)
	}
	if err := json.Unmarshal([]byte(sizeJSON), &exp.SampleSize); err != nil {
		return Experiment{}, fmt.Errorf("unmarshal size: %w", err)
	}
	exp.Status = Status(status)
	exp.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	exp.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedStr)
	return exp, nil
}

// #endregion get-experiment

// #region list-experiments
// ListExperiments returns the most recently created experiments.
func (s *Store) ListExperiments(limit int) ([]Experiment, error) {
	rows, err := s.db.Query(
		`SELECT experiment_id FROM experiments ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list experiments: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var exps []Experiment
	for _, id := range ids {
		exp, err := s.GetExperiment(id)
		if err != nil {
			return nil, err
		}
		exps = append(exps, exp)
	}
	return exps, nil
}

// #endregion list-experiments

// #region set-status
// SetStatus moves an experiment to a new lifecycle state.
func (s *Store) SetStatus(id string, status Status) error {
	if !ValidStatus(status) {
		return fmt.Errorf("invalid status %q", status)
	}
	res, err := s.db.Exec(
		`UPDATE experiments SET status = ?, updated_at = ? WHERE experiment_id = ?`,
		string(status), time.Now().UTC().Format(time.RFC3339Nano), id,
	)
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("experiment %s: %w", id, ErrNotFound)
	}
	return nil
}

// #endregion set-status

// #region record-observation
// RecordObservation appends a counts snapshot for an experiment.
func (s *Store) RecordObservation(experimentID string, c outcome.Counts) (Observation, error) {
	if _, err := s.GetExperiment(experimentID); err != nil {
		return Observation{}, err
	}

	now := time.Now().UTC()
	countsJSON, err := json.Marshal(c)
	if err != nil {
		return Observation{}, fmt.Errorf("marshal counts: %w", err)
	}

	res, err := s.db.Exec(
		`INSERT INTO observations (experiment_id, counts_json, recorded_at) VALUES (?, ?, ?)`,
		experimentID, string(countsJSON), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Observation{}, fmt.Errorf("insert observation: %w", err)
	}
	obsID, err := res.LastInsertId()
	if err != nil {
		return Observation{}, fmt.Errorf("last insert id: %w", err)
	}

	return Observation{ID: obsID, ExperimentID: experimentID, Counts: c, RecordedAt: now}, nil
}

// #endregion record-observation

// #region latest-observation
// LatestObservation returns the most recent counts snapshot for an experiment.
func (s *Store) LatestObservation(experimentID string) (Observation, error) {
	var obs Observation
	var countsJSON, recordedStr string

	err := s.db.QueryRow(
		`SELECT id, experiment_id, counts_json, recorded_at FROM observations
		 WHERE experiment_id = ? ORDER BY id DESC LIMIT 1`, experimentID,
	).Scan(&obs.ID, &obs.ExperimentID, &countsJSON, &recordedStr)
	if errors.Is(err, sql.ErrNoRows) {
		return Observation{}, fmt.Errorf("observations for %s: %w", experimentID, ErrNotFound)
	}
	if err != nil {
		return Observation{}, fmt.Errorf("latest observation: %w", err)
	}

	if err := json.Unmarshal([]byte(countsJSON), &obs.Counts); err != nil {
		return Observation{}, fmt.Errorf("unmarshal counts: %w", err)
	}
	obs.RecordedAt, _ = time.Parse(time.RFC3339Nano, recordedStr)
	return obs, nil
}

// #endregion latest-observation

// #region save-analysis
// SaveAnalysis persists an analysis record and its audit entry atomically.
func (s *Store) SaveAnalysis(rec AnalysisRecord) (AnalysisRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	resultJSON, err := json.Marshal(rec.Result)
	if err != nil {
		return AnalysisRecord{}, fmt.Errorf("marshal result: %w", err)
	}
	verdictJSON, err := json.Marshal(rec.Verdict)
	if err != nil {
		return AnalysisRecord{}, fmt.Errorf("marshal verdict: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return AnalysisRecord{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO analyses (analysis_id, experiment_id, observation_id, result_json, verdict_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ExperimentID, rec.ObservationID, string(resultJSON), string(verdictJSON),
		rec.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return AnalysisRecord{}, fmt.Errorf("insert analysis: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO analysis_log (experiment_id, analysis_id, test_used, decision, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ExperimentID, rec.ID, string(rec.Result.TestUsed), string(rec.Verdict.Decision),
		nullIfEmpty(rec.Verdict.Reason), rec.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return AnalysisRecord{}, fmt.Errorf("log analysis: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return AnalysisRecord{}, fmt.Errorf("commit: %w", err)
	}
	return rec, nil
}

// #endregion save-analysis

// #region list-analyses
// ListAnalyses returns the analyses for an experiment, newest first.
func (s *Store) ListAnalyses(experimentID string, limit int) ([]AnalysisRecord, error) {
	rows, err := s.db.Query(
		`SELECT analysis_id, experiment_id, observation_id, result_json, verdict_json, created_at
		 FROM analyses WHERE experiment_id = ? ORDER BY created_at DESC LIMIT ?`,
		experimentID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()

	var records []AnalysisRecord
	for rows.Next() {
		var rec AnalysisRecord
		var resultJSON, verdictJSON, createdStr string

		if err := rows.Scan(&rec.ID, &rec.ExperimentID, &rec.ObservationID, &resultJSON, &verdictJSON, &createdStr); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if err := json.Unmarshal([]byte(resultJSON), &rec.Result); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
		if err := json.Unmarshal([]byte(verdictJSON), &rec.Verdict); err != nil {
			return nil, fmt.Errorf("unmarshal verdict: %w", err)
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// #endregion list-analyses

// #region audit-trail
// AuditTrail returns the append-only analysis log for an experiment, oldest
// first.
func (s *Store) AuditTrail(experimentID string) ([]AuditEntry, error) {
	rows, err := s.db.Query(
		`SELECT experiment_id, analysis_id, test_used, decision, reason, created_at
		 FROM analysis_log WHERE experiment_id = ? ORDER BY id ASC`, experimentID,
	)
	if err != nil {
		return nil, fmt.Errorf("audit trail: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		var reason sql.NullString
		var createdStr string

		if err := rows.Scan(&e.ExperimentID, &e.AnalysisID, &e.TestUsed, &e.Decision, &reason, &createdStr); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if reason.Valid {
			e.Reason = reason.String
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// #endregion audit-trail

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
