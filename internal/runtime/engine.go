// Package runtime walks validated flows.
//
// A run starts at the graph's start node and visits one node at a time until
// it reaches an end node or a handler fails. Merge nodes are the only place
// where work happens concurrently: each lane walks on a private copy of the
// context and the lanes' writes are combined at the join.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/quorum/internal/logging"
	"github.com/aretw0/quorum/pkg/domain"
	"github.com/aretw0/quorum/pkg/flow"
	"github.com/aretw0/quorum/pkg/ports"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/aretw0/quorum/internal/runtime"

// Engine executes runs. It holds no per-run state and is safe for concurrent use.
type Engine struct {
	oracle        ports.RiskOracle
	recorder      ports.AssessmentRecorder
	logger        *slog.Logger
	hooks         domain.LifecycleHooks
	tracer        trace.Tracer
	oracleTimeout time.Duration
	now           func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability callbacks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithOracleTimeout bounds every oracle call. Zero means the caller's context is the only bound.
func WithOracleTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.oracleTimeout = d
	}
}

// WithAssessmentRecorder records every oracle verdict.
func WithAssessmentRecorder(r ports.AssessmentRecorder) Option {
	return func(e *Engine) {
		e.recorder = r
	}
}

// WithTracer overrides the OpenTelemetry tracer. Defaults to the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

// WithClock overrides the time source used for trace timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine creates an engine backed by the given oracle.
func NewEngine(oracle ports.RiskOracle, opts ...Option) *Engine {
	e := &Engine{
		oracle: oracle,
		logger: logging.NewNop(),
		tracer: otel.Tracer(tracerName),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run drives one instance of the graph from its start node to an end node.
// It never returns nil: failures are reported through the result's status,
// error and the trace recorded up to the failing node.
func (e *Engine) Run(ctx context.Context, g *flow.Graph, instanceID string, fields map[string]any) *domain.ExecutionResult {
	ctx, span := e.tracer.Start(ctx, "quorum.run", trace.WithAttributes(
		attribute.String("quorum.instance_id", instanceID),
		attribute.String("quorum.flow", g.Ref()),
	))
	defer span.End()

	res := &domain.ExecutionResult{
		InstanceID:  instanceID,
		FlowID:      g.FlowID(),
		FlowVersion: g.Version(),
		Status:      domain.StatusRunning,
		StartedAt:   e.now(),
	}
	base := domain.EventBase{InstanceID: instanceID, FlowID: g.FlowID()}

	if e.hooks.OnRunStart != nil {
		ev := &domain.RunEvent{EventBase: base, Status: domain.StatusRunning}
		ev.Type, ev.Timestamp = domain.EventRunStart, res.StartedAt
		e.hooks.OnRunStart(ctx, ev)
	}
	e.logger.InfoContext(ctx, "run started", "instance_id", instanceID, "flow", g.Ref())

	ectx := domain.NewExecutionContext(instanceID, g.FlowID(), fields)
	w := newWalker(e, g, ectx, "")

	var final string
	err := domain.ValidateFields(fields)
	if err != nil {
		err = fmt.Errorf("invalid initial context: %w", err)
	} else {
		final, err = w.walk(ctx, g.StartNodeID(), "")
	}

	res.Trace = w.trace
	res.Context = ectx
	res.FinishedAt = e.now()

	if err != nil {
		res.Fail(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(res.Error.Kind))
		e.logger.ErrorContext(ctx, "run failed",
			"instance_id", instanceID,
			"kind", res.Error.Kind,
			"node_id", res.Error.NodeID,
			"error", err,
		)
	} else {
		res.Status = domain.StatusCompleted
		res.FinalNodeID = final
		span.SetStatus(codes.Ok, "")
		e.logger.InfoContext(ctx, "run completed",
			"instance_id", instanceID,
			"final_node", final,
			"visited", len(res.Trace),
		)
	}

	if e.hooks.OnRunFinish != nil {
		ev := &domain.RunEvent{EventBase: base, Status: res.Status, Duration: res.FinishedAt.Sub(res.StartedAt)}
		ev.Type, ev.Timestamp = domain.EventRunFinish, res.FinishedAt
		if res.Error != nil {
			ev.Kind = res.Error.Kind
		}
		e.hooks.OnRunFinish(ctx, ev)
	}
	return res
}
