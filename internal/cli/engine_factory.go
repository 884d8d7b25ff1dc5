package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aretw0/quorum"
	"github.com/aretw0/quorum/internal/config"
	"github.com/aretw0/quorum/pkg/adapters/file"
	"github.com/aretw0/quorum/pkg/adapters/llm"
	"github.com/aretw0/quorum/pkg/adapters/memory"
	"github.com/aretw0/quorum/pkg/adapters/redis"
	"github.com/aretw0/quorum/pkg/adapters/sqlite"
	"github.com/aretw0/quorum/pkg/domain"
	"github.com/aretw0/quorum/pkg/flow"
	"github.com/aretw0/quorum/pkg/observability"
	"github.com/aretw0/quorum/pkg/oracle"
	"github.com/aretw0/quorum/pkg/persistence/middleware"
	"github.com/aretw0/quorum/pkg/ports"
)

// CloseFunc releases what BuildEngine opened.
type CloseFunc func() error

func noClose() error { return nil }

// BuildEngine wires a quorum engine from cfg: the storage backend, the risk
// oracle and the logging hooks. Extra hooks run after the logging ones.
// The caller must call the returned CloseFunc when done.
func BuildEngine(ctx context.Context, cfg *config.Config, logger *slog.Logger, hooks ...domain.LifecycleHooks) (*quorum.Engine, CloseFunc, error) {
	engineOpts := []quorum.Option{
		quorum.WithLogger(logger),
		quorum.WithLifecycleHooks(domain.Chain(append([]domain.LifecycleHooks{observability.LogHooks(logger)}, hooks...)...)),
		quorum.WithOracleTimeout(cfg.Oracle.Timeout),
	}

	b, err := openBackend(cfg)
	if err != nil {
		return nil, nil, err
	}
	closer := b.close

	traces, err := protectTraces(b.traces, cfg.Security)
	if err != nil {
		_ = closer()
		return nil, nil, err
	}
	engineOpts = append(engineOpts,
		quorum.WithTraceStore(traces),
		quorum.WithAssessmentRecorder(b.recorder),
		quorum.WithFlowRepository(b.flows),
	)
	if b.locker != nil {
		engineOpts = append(engineOpts, quorum.WithLocker(b.locker))
	}

	o, err := BuildOracle(ctx, cfg.Oracle, logger)
	if err != nil {
		_ = closer()
		return nil, nil, err
	}
	engineOpts = append(engineOpts, quorum.WithOracle(o))

	engine := quorum.New(engineOpts...)

	if cfg.FlowsDir != "" {
		if _, err := ImportFlows(ctx, engine, cfg.FlowsDir); err != nil {
			_ = closer()
			return nil, nil, err
		}
	}

	logger.Debug("engine ready", "store", cfg.Store, "oracle", cfg.Oracle.Provider)
	return engine, closer, nil
}

type fullStore interface {
	ports.TraceStore
	ports.AssessmentRecorder
	ports.FlowRepository
}

type backend struct {
	traces   ports.TraceStore
	recorder ports.AssessmentRecorder
	flows    ports.FlowRepository
	locker   ports.DistributedLocker
	close    CloseFunc
}

func newBackend(s fullStore, closer CloseFunc) *backend {
	return &backend{traces: s, recorder: s, flows: s, close: closer}
}

// openBackend opens the configured store. Every backend serves flows,
// traces and assessments; redis additionally serializes instances across
// processes.
func openBackend(cfg *config.Config) (*backend, error) {
	switch cfg.Store {
	case config.StoreMemory, "":
		store := memory.NewStore()
		return &backend{traces: store, recorder: store, flows: memory.NewFlows(), close: noClose}, nil

	case config.StoreFile:
		return newBackend(file.New(cfg.Dir), noClose), nil

	case config.StoreSQLite:
		path := cfg.SQLitePath()
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("error creating sqlite directory: %w", err)
			}
		}
		store, err := sqlite.Open(path)
		if err != nil {
			return nil, err
		}
		return newBackend(store, store.Close), nil

	case config.StoreRedis:
		rc := cfg.Redis
		store := redis.New(rc.Addr, rc.Password, rc.DB, redis.WithTTL(rc.TTL), redis.WithPrefix(rc.Prefix))
		b := newBackend(store, store.Close)
		b.locker = redis.NewLocker(store.Client(), rc.Prefix)
		return b, nil
	}
	return nil, fmt.Errorf("unknown store %q", cfg.Store)
}

// protectTraces masks PII fields and then encrypts, as configured.
func protectTraces(store ports.TraceStore, sec config.SecurityConfig) (ports.TraceStore, error) {
	var mws []middleware.Middleware
	if len(sec.PIIFieldsRegex) > 0 {
		mws = append(mws, middleware.NewPIIMiddleware(sec.PIIFieldsRegex))
	}
	active, fallback, err := sec.Keys()
	if err != nil {
		return nil, err
	}
	if active != nil {
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
			ActiveKey:    active,
			FallbackKeys: fallback,
		}))
	}
	return middleware.Chain(store, mws...), nil
}

// BuildOracle returns the heuristic oracle, or a registry holding the
// configured LLM provider wrapped in retries. The heuristic stays registered
// so flows can still pick it per node with llm_provider.
func BuildOracle(ctx context.Context, cfg config.OracleConfig, logger *slog.Logger) (ports.RiskOracle, error) {
	if cfg.Provider == "" || cfg.Provider == oracle.HeuristicProvider {
		return oracle.NewHeuristic(), nil
	}

	reg := oracle.NewRegistry(cfg.Provider)
	reg.Register(oracle.HeuristicProvider, oracle.NewHeuristic())
	err := llm.Register(ctx, reg, logger, llm.Config{
		Provider: cfg.Provider,
		Model:    cfg.Model,
		BaseURL:  cfg.BaseURL,
		APIKey:   cfg.APIKey,
	})
	if err != nil {
		return nil, err
	}
	return oracle.WithRetry(reg, cfg.Retries, oracle.RetryLogger(logger)), nil
}

// ImportFlows validates and stores every flow document found directly in dir.
// It stops at the first invalid document.
func ImportFlows(ctx context.Context, engine *quorum.Engine, dir string) ([]*flow.Graph, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("error reading flows directory: %w", err)
	}

	var graphs []*flow.Graph
	for _, entry := range entries {
		if entry.IsDir() || !isFlowFile(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return graphs, err
		}
		g, err := engine.SaveFlow(ctx, data, flow.FormatFromPath(path))
		if err != nil {
			return graphs, fmt.Errorf("%s: %w", entry.Name(), err)
		}
		graphs = append(graphs, g)
	}
	return graphs, nil
}

func isFlowFile(name string) bool {
	switch filepath.Ext(name) {
	case ".json", ".yaml", ".yml", ".hcl":
		return true
	}
	return false
}
