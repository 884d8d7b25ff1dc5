package ports

import (
	"context"

	"github.com/aretw0/quorum/pkg/flow"
)

// FlowRef identifies a stored flow document.
type FlowRef struct {
	FlowID  string `json:"flow_id"`
	Version string `json:"version"`
}

// GraphSource loads flow documents.
type GraphSource interface {
	// LoadGraph returns the raw document and its format.
	// Returns domain.ErrFlowNotFound if no such flow exists.
	LoadGraph(ctx context.Context, flowID, version string) ([]byte, flow.Format, error)
}

// GraphSink stores flow documents. Callers validate before saving.
type GraphSink interface {
	SaveGraph(ctx context.Context, flowID, version string, data []byte, format flow.Format) error
}

// FlowLister enumerates stored flows.
type FlowLister interface {
	ListFlows(ctx context.Context) ([]FlowRef, error)
}

// FlowRepository is the full flow storage capability.
type FlowRepository interface {
	GraphSource
	GraphSink
	FlowLister
}
