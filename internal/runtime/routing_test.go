package runtime_test

import (
	"testing"

	"github.com/aretw0/quorum/internal/runtime"
	"github.com/aretw0/quorum/pkg/domain"
	"github.com/aretw0/quorum/pkg/dsl"
	"github.com/aretw0/quorum/pkg/flow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoute(t *testing.T) {
	b := dsl.New("routing", "1")
	b.Add("start").Start().Go("route")
	b.Add("route").
		Branch("risk >= 'medium'", "review").
		Branch("amount < 100", "fast").
		Branch("vip == true", "fast")
	b.Add("review").Approve("manager").Go("end")
	b.Add("fast").Approve("system").Go("end")
	b.Add("end").End()
	g := b.MustBuild()

	n, err := g.NodeByID("route")
	require.NoError(t, err)
	cfg := n.Config.(flow.BranchConfig)

	tests := []struct {
		name    string
		fields  map[string]any
		risk    domain.RiskLevel
		want    string
		wantErr bool
	}{
		{name: "first match wins", fields: map[string]any{"amount": 10}, risk: domain.RiskHigh, want: "review"},
		{name: "falls through to amount", fields: map[string]any{"amount": 10}, risk: domain.RiskLow, want: "fast"},
		{name: "no risk yet", fields: map[string]any{"amount": 10}, want: "fast"},
		{name: "bool branch", fields: map[string]any{"amount": 500, "vip": true}, want: "fast"},
		{name: "type mismatch is false", fields: map[string]any{"amount": "cheap"}, wantErr: true},
		{name: "nothing matches", fields: map[string]any{"amount": 500}, risk: domain.RiskLow, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ectx := domain.NewExecutionContext("i", "routing", tt.fields)
			if tt.risk != "" {
				ectx.Risk = &domain.RiskAssessment{Level: tt.risk}
			}
			got, in, err := runtime.Route(n, cfg, ectx)
			if tt.wantErr {
				var ub *domain.UnroutableBranchError
				require.ErrorAs(t, err, &ub)
				assert.Len(t, ub.Conditions, 3)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.NotEmpty(t, in)
		})
	}
}
