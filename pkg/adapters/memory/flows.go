package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/aretw0/quorum/pkg/domain"
	"github.com/aretw0/quorum/pkg/flow"
	"github.com/aretw0/quorum/pkg/ports"
)

type document struct {
	data   []byte
	format flow.Format
}

// Flows implements ports.FlowRepository using an in-memory map.
type Flows struct {
	mu   sync.RWMutex
	docs map[ports.FlowRef]document
}

// NewFlows creates an empty repository.
func NewFlows() *Flows {
	return &Flows{docs: make(map[ports.FlowRef]document)}
}

// NewFromGraphs creates a repository holding the JSON form of each graph.
// This handles serialization automatically, improving DX for tests.
func NewFromGraphs(graphs ...*flow.Graph) (*Flows, error) {
	f := NewFlows()
	for _, g := range graphs {
		data, err := flow.Marshal(g.Document(), flow.FormatJSON)
		if err != nil {
			return nil, err
		}
		f.docs[ports.FlowRef{FlowID: g.FlowID(), Version: g.Version()}] = document{data: data, format: flow.FormatJSON}
	}
	return f, nil
}

// SaveGraph stores a copy of the document, replacing any previous one.
func (f *Flows) SaveGraph(ctx context.Context, flowID, version string, data []byte, format flow.Format) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[ports.FlowRef{FlowID: flowID, Version: version}] = document{data: slices.Clone(data), format: format}
	return nil
}

// LoadGraph returns the stored document.
func (f *Flows) LoadGraph(ctx context.Context, flowID, version string) ([]byte, flow.Format, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	doc, ok := f.docs[ports.FlowRef{FlowID: flowID, Version: version}]
	if !ok {
		return nil, "", domain.ErrFlowNotFound
	}
	return slices.Clone(doc.data), doc.format, nil
}

// ListFlows returns all stored refs in deterministic order.
func (f *Flows) ListFlows(ctx context.Context) ([]ports.FlowRef, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	refs := make([]ports.FlowRef, 0, len(f.docs))
	for ref := range f.docs {
		refs = append(refs, ref)
	}
	slices.SortFunc(refs, func(a, b ports.FlowRef) int {
		if c := strings.Compare(a.FlowID, b.FlowID); c != 0 {
			return c
		}
		return strings.Compare(a.Version, b.Version)
	})
	return refs, nil
}
