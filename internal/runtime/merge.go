package runtime

import (
	"context"
	"errors"
	"reflect"
	"slices"

	"github.com/aretw0/quorum/pkg/domain"
	"github.com/aretw0/quorum/pkg/flow"
	"golang.org/x/sync/errgroup"
)

// fork runs the lanes of a merge node concurrently and joins their writes
// into the walker's context. Lane trace entries are appended in path order
// so the trace does not depend on scheduling.
func (w *walker) fork(ctx context.Context, n *flow.Node, c flow.MergeConfig) error {
	outer := append(slices.Clone(w.outer), w.visited)
	lanes := make([]*walker, len(c.Paths))
	for i, p := range c.Paths {
		lw := newWalker(w.engine, w.graph, w.ectx.Clone(), p)
		lw.outer = outer
		lanes[i] = lw
	}
	errs := make([]error, len(lanes))

	var g *errgroup.Group
	gctx := ctx
	if c.BestEffort {
		// Independent lanes: one failure must not cancel the others.
		g = &errgroup.Group{}
	} else {
		g, gctx = errgroup.WithContext(ctx)
	}
	for i, lw := range lanes {
		g.Go(func() error {
			_, err := lw.walk(gctx, c.Paths[i], n.Next)
			errs[i] = err
			if c.BestEffort {
				return nil
			}
			return err
		})
	}
	_ = g.Wait()

	for _, lw := range lanes {
		w.trace = append(w.trace, lw.trace...)
	}

	if err := ctx.Err(); err != nil {
		return &domain.CancelledError{NodeID: n.ID, Err: err}
	}

	log := w.engine.logger
	ok := make([]bool, len(lanes))
	failed := 0
	for i, err := range errs {
		if err == nil {
			ok[i] = true
			continue
		}
		failed++
		if c.BestEffort {
			log.WarnContext(ctx, "merge lane failed, continuing without it",
				"instance_id", w.ectx.InstanceID,
				"merge", n.ID,
				"path", c.Paths[i],
				"error", err,
			)
		}
	}

	if failed > 0 && (!c.BestEffort || failed == len(lanes)) {
		i := firstCause(errs)
		return &domain.MergeFailedError{NodeID: n.ID, Path: c.Paths[i], Err: errs[i]}
	}

	return w.join(n, c, lanes, ok)
}

// firstCause picks the failure to report: the first lane, in path order,
// that failed on its own rather than because a sibling cancelled it.
func firstCause(errs []error) int {
	first := -1
	for i, err := range errs {
		if err == nil {
			continue
		}
		if first < 0 {
			first = i
		}
		var ce *domain.CancelledError
		if !errors.As(err, &ce) {
			return i
		}
	}
	return first
}

// join folds the writes of the successful lanes into the walker's context.
// Two lanes writing different values to the same field is a conflict.
func (w *walker) join(n *flow.Node, c flow.MergeConfig, lanes []*walker, ok []bool) error {
	combined := &domain.ContextDelta{Fields: map[string]any{}}
	writer := map[string]string{}
	var riskWriter string

	for i, lw := range lanes {
		if !ok[i] {
			continue
		}
		path := c.Paths[i]
		d := domain.Diff(w.ectx, lw.ectx)
		if d == nil {
			continue
		}
		keys := make([]string, 0, len(d.Fields))
		for k := range d.Fields {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			v := d.Fields[k]
			if prev, taken := writer[k]; taken {
				if !reflect.DeepEqual(combined.Fields[k], v) {
					return &domain.MergeConflictError{NodeID: n.ID, Field: k, Paths: [2]string{prev, path}}
				}
				continue
			}
			writer[k] = path
			combined.Fields[k] = v
		}
		if d.Risk != nil {
			if combined.Risk != nil && *combined.Risk != *d.Risk {
				return &domain.MergeConflictError{NodeID: n.ID, Field: domain.RiskField, Paths: [2]string{riskWriter, path}}
			}
			if combined.Risk == nil {
				r := *d.Risk
				combined.Risk = &r
				riskWriter = path
			}
		}
	}

	for _, lw := range lanes {
		ids := make([]string, 0, len(lw.visited))
		for id := range lw.visited {
			ids = append(ids, id)
		}
		slices.Sort(ids)
		for _, id := range ids {
			if w.visited[id] {
				return &domain.CycleDetectedError{NodeID: id}
			}
			w.visited[id] = true
		}
	}

	w.ectx.Apply(combined)
	return nil
}
