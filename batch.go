package quorum

import (
	"context"

	"github.com/aretw0/quorum/pkg/domain"
	"github.com/aretw0/quorum/pkg/flow"
	"golang.org/x/sync/errgroup"
)

// BatchItem is one instance to run in a batch.
type BatchItem struct {
	InstanceID string         `json:"instance_id,omitempty"`
	Fields     map[string]any `json:"context"`
}

// BatchResult pairs an item with its outcome. Err is set only for
// bookkeeping failures; failed runs are reported through Result.
type BatchResult struct {
	Result *domain.ExecutionResult `json:"result,omitempty"`
	Err    error                   `json:"-"`
}

// RunBatch runs every item against g with at most parallel runs in flight.
// Results are returned in item order. One item's failure never stops the others.
func (e *Engine) RunBatch(ctx context.Context, g *flow.Graph, items []BatchItem, parallel int) []BatchResult {
	results := make([]BatchResult, len(items))
	if parallel < 1 {
		parallel = 1
	}

	var eg errgroup.Group
	eg.SetLimit(parallel)
	for i, item := range items {
		eg.Go(func() error {
			res, err := e.Run(ctx, g, item.InstanceID, item.Fields)
			results[i] = BatchResult{Result: res, Err: err}
			return nil
		})
	}
	_ = eg.Wait()

	e.logger.Info("batch finished", "flow", g.Ref(), "items", len(items), "parallel", parallel)
	return results
}
