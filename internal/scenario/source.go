package scenario

import (
	"context"
	"sync"
)

// #region source
// Source proposes experiment scenarios for a free-form brief.
type Source interface {
	Propose(ctx context.Context, brief string) (Scenario, error)
}

// #endregion source

// #region static-source
// StaticSource cycles through a fixed catalog of scenarios. Safe for
// concurrent use.
type StaticSource struct {
	mu        sync.Mutex
	scenarios []Scenario
	next      int
	bounds    Bounds
}

// NewStaticSource builds a source over a fixed catalog.
func NewStaticSource(scenarios []Scenario, bounds Bounds) *StaticSource {
	return &StaticSource{scenarios: scenarios, bounds: bounds}
}

// Propose returns the next catalog entry, clamped. The brief is ignored.
func (s *StaticSource) Propose(_ context.Context, _ string) (Scenario, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.scenarios) == 0 {
		return Scenario{}, ErrNoScenario
	}
	sc := s.scenarios[s.next%len(s.scenarios)]
	s.next++
	return s.bounds.Clamp(sc), nil
}

// #endregion static-source
