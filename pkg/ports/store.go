package ports

import (
	"context"

	"github.com/aretw0/quorum/pkg/domain"
)

// TraceStore persists terminal run results.
// Results are written once, when the run reaches Completed or Failed.
type TraceStore interface {
	// SaveTrace persists the result under its instance id.
	SaveTrace(ctx context.Context, result *domain.ExecutionResult) error

	// LoadTrace retrieves the result for an instance id.
	// Returns domain.ErrTraceNotFound if the instance is unknown.
	LoadTrace(ctx context.Context, instanceID string) (*domain.ExecutionResult, error)

	// ListTraces returns the instance ids of all stored results.
	ListTraces(ctx context.Context) ([]string, error)
}

// AssessmentRecorder keeps the history of oracle verdicts.
type AssessmentRecorder interface {
	RecordAssessment(ctx context.Context, rec domain.AssessmentRecord) error

	// ListAssessments returns the records of one instance, or of every instance
	// when instanceID is empty, in recording order.
	ListAssessments(ctx context.Context, instanceID string) ([]domain.AssessmentRecord, error)
}
