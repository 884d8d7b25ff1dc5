package runtime

import (
	"context"
	"fmt"

	"github.com/aretw0/quorum/pkg/domain"
	"github.com/aretw0/quorum/pkg/flow"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// walker follows one line of execution: the main walk of a run, or one merge lane.
// A walker is only ever touched by a single goroutine.
type walker struct {
	engine *Engine
	graph  *flow.Graph
	ectx   *domain.ExecutionContext

	visited map[string]bool
	// outer holds the visited sets of the enclosing walks. They are frozen
	// while this walker runs because their owners block on the join.
	outer []map[string]bool

	trace []domain.TraceEntry
	lane  string
}

func newWalker(e *Engine, g *flow.Graph, ectx *domain.ExecutionContext, lane string) *walker {
	return &walker{
		engine:  e,
		graph:   g,
		ectx:    ectx,
		visited: make(map[string]bool, g.Len()),
		lane:    lane,
	}
}

func (w *walker) seen(id string) bool {
	if w.visited[id] {
		return true
	}
	for _, set := range w.outer {
		if set[id] {
			return true
		}
	}
	return false
}

// walk visits nodes starting at id until it reaches an end node, or stop
// when stop is non-empty. It returns the id of the node it stopped at.
func (w *walker) walk(ctx context.Context, id, stop string) (string, error) {
	for {
		if stop != "" && id == stop {
			return id, nil
		}
		if err := ctx.Err(); err != nil {
			return "", &domain.CancelledError{NodeID: id, Err: err}
		}

		n, err := w.graph.NodeByID(id)
		if err != nil {
			return "", err
		}

		if w.seen(id) {
			cerr := &domain.CycleDetectedError{NodeID: id}
			w.trace = append(w.trace, domain.TraceEntry{
				NodeID:    id,
				NodeType:  n.Type,
				Timestamp: w.engine.now(),
				Path:      w.lane,
				Error:     cerr.Error(),
				ErrorKind: domain.KindCycleDetected,
			})
			return "", cerr
		}
		w.visited[id] = true

		next, terminal, err := w.step(ctx, n)
		if err != nil {
			return "", err
		}
		if terminal {
			if stop != "" {
				return "", fmt.Errorf("lane %q reached end node %q before joining at %q", w.lane, id, stop)
			}
			return id, nil
		}
		id = next
	}
}

// step executes a single node and records its trace entry. The entry is
// reserved before the handler runs so a merge entry precedes its lanes.
func (w *walker) step(ctx context.Context, n *flow.Node) (string, bool, error) {
	e := w.engine
	idx := len(w.trace)
	w.trace = append(w.trace, domain.TraceEntry{
		NodeID:    n.ID,
		NodeType:  n.Type,
		Timestamp: e.now(),
		Path:      w.lane,
	})

	ctx, span := e.tracer.Start(ctx, "quorum.node", trace.WithAttributes(
		attribute.String("quorum.node_id", n.ID),
		attribute.String("quorum.node_type", string(n.Type)),
		attribute.String("quorum.path", w.lane),
	))
	defer span.End()

	ev := &domain.NodeEvent{
		EventBase: domain.EventBase{InstanceID: w.ectx.InstanceID, FlowID: w.ectx.FlowID},
		NodeID:    n.ID,
		NodeType:  n.Type,
		Path:      w.lane,
	}
	if e.hooks.OnNodeEnter != nil {
		ev.Type, ev.Timestamp = domain.EventNodeEnter, e.now()
		e.hooks.OnNodeEnter(ctx, ev)
	}

	before := w.ectx.Clone()
	d := &dispatch{ctx: ctx, w: w}
	err := n.Accept(d)

	entry := &w.trace[idx]
	entry.ContextIn = d.in
	if err != nil {
		entry.Error = err.Error()
		entry.ErrorKind = domain.KindOf(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(entry.ErrorKind))
		e.logger.WarnContext(ctx, "node failed",
			"instance_id", w.ectx.InstanceID,
			"node_id", n.ID,
			"path", w.lane,
			"error", err,
		)
	} else {
		entry.ContextOut = domain.Diff(before, w.ectx)
		e.logger.DebugContext(ctx, "node done",
			"instance_id", w.ectx.InstanceID,
			"node_id", n.ID,
			"type", n.Type,
			"path", w.lane,
			"next", d.next,
		)
	}

	if e.hooks.OnNodeLeave != nil {
		leave := *ev
		leave.Type, leave.Timestamp, leave.Err = domain.EventNodeLeave, e.now(), err
		e.hooks.OnNodeLeave(ctx, &leave)
	}
	return d.next, d.terminal, err
}
