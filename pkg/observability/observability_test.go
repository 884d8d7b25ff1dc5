package observability_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/aretw0/quorum"
	"github.com/aretw0/quorum/pkg/domain"
	"github.com/aretw0/quorum/pkg/dsl"
	"github.com/aretw0/quorum/pkg/observability"
	"github.com/aretw0/quorum/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func riskFlow(t *testing.T) *dsl.Builder {
	t.Helper()
	b := dsl.New("obs", "1")
	b.Add("start").Start().Go("risk")
	b.Add("risk").RiskEval("amount").Provider("stub").Go("end")
	b.Add("end").End()
	return b
}

func TestMetrics_CountRunsAndNodes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := observability.NewMetrics(reg)
	require.NoError(t, err)

	calls := 0
	oracle := ports.OracleFunc(func(ctx context.Context, req ports.RiskRequest) (domain.RiskAssessment, error) {
		calls++
		if calls == 2 {
			return domain.RiskAssessment{}, errors.New("down")
		}
		return domain.RiskAssessment{Level: domain.RiskLow}, nil
	})
	engine := quorum.New(quorum.WithOracle(oracle), quorum.WithLifecycleHooks(m.Hooks()))
	g := riskFlow(t).MustBuild()

	ctx := context.Background()
	_, err = engine.Run(ctx, g, "ok", map[string]any{"amount": 1})
	require.NoError(t, err)
	_, err = engine.Run(ctx, g, "bad", map[string]any{"amount": 1})
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsCounter().WithLabelValues("obs", "completed", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsCounter().WithLabelValues("obs", "failed", string(domain.KindRiskEvaluation))))

	count, err := testutil.GatherAndCount(reg, "quorum_node_visits_total")
	require.NoError(t, err)
	assert.Equal(t, 3, count, "start, risk_eval and end series")

	assert.Equal(t, 1, testutil.CollectAndCount(m.OracleErrorsCounter()))
}

func TestMetrics_DoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := observability.NewMetrics(reg)
	require.NoError(t, err)
	_, err = observability.NewMetrics(reg)
	assert.Error(t, err)
}

func TestLogHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	engine := quorum.New(quorum.WithLifecycleHooks(observability.LogHooks(logger)))

	_, err := engine.Run(context.Background(), riskFlow(t).MustBuild(), "logged", map[string]any{"amount": 1})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "enter node")
	assert.Contains(t, out, "node_id=risk")
	assert.Contains(t, out, "oracle return")
	assert.Contains(t, out, "level=low")
}
