package quorum

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/quorum/internal/logging"
	"github.com/aretw0/quorum/internal/runtime"
	"github.com/aretw0/quorum/pkg/adapters/memory"
	"github.com/aretw0/quorum/pkg/domain"
	"github.com/aretw0/quorum/pkg/flow"
	"github.com/aretw0/quorum/pkg/instance"
	"github.com/aretw0/quorum/pkg/oracle"
	"github.com/aretw0/quorum/pkg/ports"
	"github.com/google/uuid"
)

// Engine is the high-level entry point for the library.
// It combines the runtime with flow storage, trace persistence and the
// per-instance run guard.
type Engine struct {
	runtime   *runtime.Engine
	instances *instance.Manager

	oracle        ports.RiskOracle
	flows         ports.FlowRepository
	traces        ports.TraceStore
	recorder      ports.AssessmentRecorder
	locker        ports.DistributedLocker
	hooks         domain.LifecycleHooks
	logger        *slog.Logger
	oracleTimeout time.Duration

	// graphs caches loaded graphs by flow ref.
	graphs sync.Map
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithOracle sets the risk oracle used by risk_eval nodes.
// Defaults to the offline heuristic oracle.
func WithOracle(o ports.RiskOracle) Option {
	return func(e *Engine) {
		e.oracle = o
	}
}

// WithFlowRepository sets where flow documents are stored.
func WithFlowRepository(repo ports.FlowRepository) Option {
	return func(e *Engine) {
		e.flows = repo
	}
}

// WithTraceStore sets where run results are persisted.
func WithTraceStore(store ports.TraceStore) Option {
	return func(e *Engine) {
		e.traces = store
	}
}

// WithAssessmentRecorder sets where oracle verdicts are recorded.
func WithAssessmentRecorder(rec ports.AssessmentRecorder) Option {
	return func(e *Engine) {
		e.recorder = rec
	}
}

// WithLocker serializes runs of the same instance id across processes.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(e *Engine) {
		e.locker = locker
	}
}

// WithLifecycleHooks registers observability callbacks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithOracleTimeout bounds every oracle call.
func WithOracleTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.oracleTimeout = d
	}
}

// New creates an Engine. Anything not configured lives in memory.
func New(opts ...Option) *Engine {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = logging.NewNop()
	}
	if e.oracle == nil {
		e.oracle = oracle.NewHeuristic()
	}
	if e.flows == nil {
		e.flows = memory.NewFlows()
	}
	if e.traces == nil || e.recorder == nil {
		store := memory.NewStore()
		if e.traces == nil {
			e.traces = store
		}
		if e.recorder == nil {
			e.recorder = store
		}
	}

	e.runtime = runtime.NewEngine(e.oracle,
		runtime.WithLogger(e.logger),
		runtime.WithLifecycleHooks(e.hooks),
		runtime.WithOracleTimeout(e.oracleTimeout),
		runtime.WithAssessmentRecorder(e.recorder),
	)

	managerOpts := []instance.Option{instance.WithLogger(e.logger)}
	if e.locker != nil {
		managerOpts = append(managerOpts, instance.WithLocker(e.locker))
	}
	e.instances = instance.NewManager(e.traces, managerOpts...)
	return e
}

// Run executes one instance of g and persists its result.
// An empty instanceID is replaced by a generated one.
//
// A failed run is reported through the result; the error return is reserved
// for bookkeeping failures such as domain.ErrInstanceExists or a store error.
// When the trace could not be saved, the result is still returned.
func (e *Engine) Run(ctx context.Context, g *flow.Graph, instanceID string, fields map[string]any) (*domain.ExecutionResult, error) {
	if g == nil {
		return nil, errors.New("graph is nil")
	}
	if instanceID == "" {
		instanceID = uuid.NewString()
	}
	return e.instances.Execute(ctx, instanceID, func(ctx context.Context) *domain.ExecutionResult {
		return e.runtime.Run(ctx, g, instanceID, fields)
	})
}

// RunFlow executes a stored flow.
func (e *Engine) RunFlow(ctx context.Context, flowID, version, instanceID string, fields map[string]any) (*domain.ExecutionResult, error) {
	g, err := e.Graph(ctx, flowID, version)
	if err != nil {
		return nil, err
	}
	return e.Run(ctx, g, instanceID, fields)
}

// Graph returns the validated graph of a stored flow.
func (e *Engine) Graph(ctx context.Context, flowID, version string) (*flow.Graph, error) {
	ref := flow.Ref(flowID, version)
	if cached, ok := e.graphs.Load(ref); ok {
		return cached.(*flow.Graph), nil
	}

	data, format, err := e.flows.LoadGraph(ctx, flowID, version)
	if err != nil {
		return nil, err
	}
	g, err := flow.LoadBytes(data, format)
	if err != nil {
		return nil, err
	}
	e.graphs.Store(ref, g)
	return g, nil
}

// SaveFlow validates a document and stores it under its own flow id and version.
// Nothing is stored when validation fails; the error is a *domain.GraphValidationError.
func (e *Engine) SaveFlow(ctx context.Context, data []byte, format flow.Format) (*flow.Graph, error) {
	g, err := flow.LoadBytes(data, format)
	if err != nil {
		return nil, err
	}
	if err := e.flows.SaveGraph(ctx, g.FlowID(), g.Version(), data, format); err != nil {
		return nil, fmt.Errorf("failed to save flow %s: %w", g.Ref(), err)
	}
	e.graphs.Store(g.Ref(), g)
	e.logger.Info("flow saved", "flow", g.Ref(), "nodes", g.Len())
	return g, nil
}

// LoadFlow returns a stored document as it was saved.
func (e *Engine) LoadFlow(ctx context.Context, flowID, version string) ([]byte, flow.Format, error) {
	return e.flows.LoadGraph(ctx, flowID, version)
}

// ListFlows returns the refs of every stored flow.
func (e *Engine) ListFlows(ctx context.Context) ([]ports.FlowRef, error) {
	return e.flows.ListFlows(ctx)
}

// GetTrace returns the persisted result of an instance.
func (e *Engine) GetTrace(ctx context.Context, instanceID string) (*domain.ExecutionResult, error) {
	return e.instances.Load(ctx, instanceID)
}

// ListTraces returns the ids of every persisted instance.
func (e *Engine) ListTraces(ctx context.Context) ([]string, error) {
	return e.instances.List(ctx)
}

// Assessments returns the oracle verdicts recorded for an instance,
// or for every instance when instanceID is empty.
func (e *Engine) Assessments(ctx context.Context, instanceID string) ([]domain.AssessmentRecord, error) {
	return e.recorder.ListAssessments(ctx, instanceID)
}

// Oracle returns the configured risk oracle.
func (e *Engine) Oracle() ports.RiskOracle {
	return e.oracle
}
