package ports

import (
	"context"

	"github.com/aretw0/quorum/pkg/domain"
)

// RiskRequest is what a risk_eval node hands to the oracle.
type RiskRequest struct {
	InstanceID string
	FlowID     string
	NodeID     string

	// Provider is the node's llm_provider. Empty selects the oracle's default.
	Provider string

	// Fields holds the declared fields present in the context.
	Fields map[string]any
}

// RiskOracle is the engine's only network-shaped dependency.
// Implementations may block; they must honour ctx cancellation and deadlines.
// The engine wraps any returned error in a domain.RiskEvaluationError.
type RiskOracle interface {
	Evaluate(ctx context.Context, req RiskRequest) (domain.RiskAssessment, error)
}

// OracleFunc adapts a function to RiskOracle.
type OracleFunc func(ctx context.Context, req RiskRequest) (domain.RiskAssessment, error)

func (f OracleFunc) Evaluate(ctx context.Context, req RiskRequest) (domain.RiskAssessment, error) {
	return f(ctx, req)
}
