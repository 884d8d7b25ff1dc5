package cli

import (
	"bytes"
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/quorum/internal/config"
	"github.com/aretw0/quorum/internal/logging"
	"github.com/aretw0/quorum/pkg/domain"
	"github.com/aretw0/quorum/pkg/oracle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "..", "pkg", "flow", "testdata", name))
	require.NoError(t, err)
	return data
}

func flowsDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "expense.yaml"), fixture(t, "expense.yaml"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("not a flow"), 0o644))
	return dir
}

func baseConfig(store string) *config.Config {
	return &config.Config{
		LogLevel: "debug",
		Store:    store,
		Oracle:   config.OracleConfig{Provider: oracle.HeuristicProvider},
	}
}

func TestBuildEngine_Stores(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		name  string
		setup func(t *testing.T, cfg *config.Config)
	}{
		{"memory", func(t *testing.T, cfg *config.Config) {}},
		{"file", func(t *testing.T, cfg *config.Config) { cfg.Dir = t.TempDir() }},
		{"sqlite", func(t *testing.T, cfg *config.Config) { cfg.Dir = filepath.Join(t.TempDir(), "nested") }},
		{"redis", func(t *testing.T, cfg *config.Config) {
			cfg.Redis = config.RedisConfig{Addr: mr.Addr(), Prefix: "test:"}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig(tt.name)
			cfg.FlowsDir = flowsDir(t)
			tt.setup(t, cfg)

			ctx := context.Background()
			engine, closeFn, err := BuildEngine(ctx, cfg, logging.NewNop())
			require.NoError(t, err)
			defer func() { assert.NoError(t, closeFn()) }()

			refs, err := engine.ListFlows(ctx)
			require.NoError(t, err)
			require.Len(t, refs, 1)
			assert.Equal(t, "expense", refs[0].FlowID)

			res, err := engine.RunFlow(ctx, "expense", "1", "cli-"+tt.name, map[string]any{"amount": int64(500)})
			require.NoError(t, err)
			assert.Equal(t, domain.StatusCompleted, res.Status)

			stored, err := engine.GetTrace(ctx, "cli-"+tt.name)
			require.NoError(t, err)
			assert.Equal(t, res.Visited(), stored.Visited())
		})
	}
}

func TestBuildEngine_ExtraHooksRun(t *testing.T) {
	var finished []domain.Status
	hooks := domain.LifecycleHooks{
		OnRunFinish: func(ctx context.Context, e *domain.RunEvent) {
			finished = append(finished, e.Status)
		},
	}

	cfg := baseConfig(config.StoreMemory)
	cfg.FlowsDir = flowsDir(t)
	engine, closeFn, err := BuildEngine(context.Background(), cfg, logging.NewNop(), hooks)
	require.NoError(t, err)
	defer closeFn()

	_, err = engine.RunFlow(context.Background(), "expense", "1", "h-1", map[string]any{"amount": 1})
	require.NoError(t, err)
	assert.Equal(t, []domain.Status{domain.StatusCompleted}, finished)
}

func TestBuildEngine_InvalidFlowInDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte(`{"flow_id":"bad","version":"1","nodes":[]}`), 0o644))

	cfg := baseConfig(config.StoreMemory)
	cfg.FlowsDir = dir
	_, _, err := BuildEngine(context.Background(), cfg, logging.NewNop())

	var verr *domain.GraphValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, err.Error(), "bad.json")
}

func TestBuildEngine_UnknownStore(t *testing.T) {
	_, _, err := BuildEngine(context.Background(), baseConfig("etcd"), logging.NewNop())
	assert.ErrorContains(t, err, "unknown store")
}

func TestBuildOracle(t *testing.T) {
	ctx := context.Background()

	o, err := BuildOracle(ctx, config.OracleConfig{Provider: "heuristic"}, logging.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &oracle.Heuristic{}, o)

	o, err = BuildOracle(ctx, config.OracleConfig{}, logging.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &oracle.Heuristic{}, o)

	_, err = BuildOracle(ctx, config.OracleConfig{Provider: "bogus"}, logging.NewNop())
	assert.ErrorContains(t, err, "unknown llm provider")
}

func TestBuildEngine_ProtectedTraces(t *testing.T) {
	dir := t.TempDir()
	cfg := baseConfig(config.StoreFile)
	cfg.Dir = dir
	cfg.FlowsDir = flowsDir(t)
	cfg.Security = config.SecurityConfig{
		EncryptionKey:  base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{9}, 32)),
		PIIFieldsRegex: []string{"^iban$"},
	}

	ctx := context.Background()
	engine, closeFn, err := BuildEngine(ctx, cfg, logging.NewNop())
	require.NoError(t, err)
	defer closeFn()

	_, err = engine.RunFlow(ctx, "expense", "1", "sealed", map[string]any{"amount": 10, "iban": "DE89370400440532013000"})
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(dir, "traces", "sealed.json"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "DE89")
	assert.NotContains(t, string(raw), "auto_approve")

	res, err := engine.GetTrace(ctx, "sealed")
	require.NoError(t, err)
	assert.Equal(t, "***", res.Context.Fields["iban"])
	assert.Contains(t, res.Visited(), "auto_approve")
}
