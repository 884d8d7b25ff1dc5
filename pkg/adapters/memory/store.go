package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/aretw0/quorum/pkg/domain"
)

// Store implements ports.TraceStore and ports.AssessmentRecorder in memory.
// Safe for concurrent use.
type Store struct {
	mu          sync.RWMutex
	traces      map[string]*domain.ExecutionResult
	assessments []domain.AssessmentRecord
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		traces: make(map[string]*domain.ExecutionResult),
	}
}

// SaveTrace keeps a copy of the result.
func (s *Store) SaveTrace(ctx context.Context, result *domain.ExecutionResult) error {
	copied := cloneResult(result)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.traces[result.InstanceID] = copied
	return nil
}

// LoadTrace returns a copy so callers cannot mutate the stored result.
func (s *Store) LoadTrace(ctx context.Context, instanceID string) (*domain.ExecutionResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res, ok := s.traces[instanceID]
	if !ok {
		return nil, domain.ErrTraceNotFound
	}
	return cloneResult(res), nil
}

// ListTraces returns the stored instance ids, sorted.
func (s *Store) ListTraces(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.traces))
	for id := range s.traces {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// RecordAssessment appends to the history.
func (s *Store) RecordAssessment(ctx context.Context, rec domain.AssessmentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assessments = append(s.assessments, rec)
	return nil
}

// ListAssessments returns the history of one instance, or all of it.
func (s *Store) ListAssessments(ctx context.Context, instanceID string) ([]domain.AssessmentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.AssessmentRecord, 0)
	for _, rec := range s.assessments {
		if instanceID == "" || rec.InstanceID == instanceID {
			out = append(out, rec)
		}
	}
	return out, nil
}

// cloneResult copies the parts of a result a caller could mutate.
// Trace entry maps are written once by the engine and shared.
func cloneResult(r *domain.ExecutionResult) *domain.ExecutionResult {
	out := *r
	out.Trace = slices.Clone(r.Trace)
	if r.Context != nil {
		out.Context = r.Context.Clone()
	}
	if r.Error != nil {
		f := *r.Error
		out.Error = &f
	}
	return &out
}
