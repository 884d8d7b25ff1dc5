package observability

import (
	"context"

	"github.com/aretw0/quorum/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors fed by the lifecycle hooks.
type Metrics struct {
	runs          *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	nodeVisits    *prometheus.CounterVec
	oracleLatency *prometheus.HistogramVec
	oracleErrors  *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quorum_runs_total",
				Help: "Finished runs by flow, status and error kind",
			},
			[]string{"flow_id", "status", "kind"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quorum_run_duration_seconds",
				Help:    "Wall time of a run",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"flow_id"},
		),
		nodeVisits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quorum_node_visits_total",
				Help: "Total number of node visits",
			},
			[]string{"flow_id", "node_type"},
		),
		oracleLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quorum_oracle_duration_seconds",
				Help:    "Duration of risk oracle calls",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"provider"},
		),
		oracleErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quorum_oracle_errors_total",
				Help: "Risk oracle calls that failed",
			},
			[]string{"provider"},
		),
	}
	for _, c := range []prometheus.Collector{m.runs, m.runDuration, m.nodeVisits, m.oracleLatency, m.oracleErrors} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Hooks returns lifecycle hooks that update the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnRunFinish: func(ctx context.Context, e *domain.RunEvent) {
			m.runs.WithLabelValues(e.FlowID, string(e.Status), string(e.Kind)).Inc()
			m.runDuration.WithLabelValues(e.FlowID).Observe(e.Duration.Seconds())
		},
		OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) {
			m.nodeVisits.WithLabelValues(e.FlowID, string(e.NodeType)).Inc()
		},
		OnOracleReturn: func(ctx context.Context, e *domain.OracleEvent) {
			m.oracleLatency.WithLabelValues(e.Provider).Observe(e.Duration.Seconds())
			if e.Err != nil {
				m.oracleErrors.WithLabelValues(e.Provider).Inc()
			}
		},
	}
}

// RunsCounter exposes quorum_runs_total.
func (m *Metrics) RunsCounter() *prometheus.CounterVec { return m.runs }

// OracleErrorsCounter exposes quorum_oracle_errors_total.
func (m *Metrics) OracleErrorsCounter() *prometheus.CounterVec { return m.oracleErrors }
