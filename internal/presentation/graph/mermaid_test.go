package graph_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/aretw0/quorum/internal/presentation/graph"
	"github.com/aretw0/quorum/pkg/domain"
	"github.com/aretw0/quorum/pkg/dsl"
	"github.com/aretw0/quorum/pkg/flow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixture(t *testing.T, name string) *flow.Graph {
	t.Helper()
	g, err := flow.LoadFile(filepath.Join("..", "..", "..", "pkg", "flow", "testdata", name))
	require.NoError(t, err)
	return g
}

func TestGenerateMermaid(t *testing.T) {
	tests := []struct {
		name     string
		fixture  string
		contains []string
	}{
		{
			name:    "Node Shapes",
			fixture: "expense.json",
			contains: []string{
				`start(("Submit"))`,
				`risk_eval_1{{"AI risk assessment"}}`,
				`branch_1{"Route by risk"}`,
				`cfo_approve[/"CFO sign-off <br/> cfo"/]`,
				`end((("Done")))`,
			},
		},
		{
			name:    "Branch Conditions",
			fixture: "expense.json",
			contains: []string{
				`branch_1 -- "risk == 'high'" --> cfo_approve`,
				`risk_eval_1 --> branch_1`,
			},
		},
		{
			name:    "Merge Lanes",
			fixture: "countersign.json",
			contains: []string{
				`sign[["Finance and manager countersign"]]`,
				`sign -.-> finance_risk`,
				`sign -.-> manager_approve`,
				`sign == join ==> end`,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := graph.GenerateMermaid(fixture(t, tt.fixture), nil)
			assert.True(t, strings.HasPrefix(got, "graph TD\n"))
			for _, want := range tt.contains {
				assert.Contains(t, got, want)
			}
			assert.NotContains(t, got, "classDef")
		})
	}
}

func TestGenerateMermaid_IDSanitization(t *testing.T) {
	b := dsl.New("ids", "1")
	b.Add("start").Start().Go("team-lead.sign")
	b.Add("team-lead.sign").Approve("lead").Go("end")
	b.Add("end").End()

	got := graph.GenerateMermaid(b.MustBuild(), nil)
	assert.Contains(t, got, `team_lead_sign[/"team-lead.sign <br/> lead"/]`)
	assert.Contains(t, got, "start --> team_lead_sign")
}

func TestGenerateMermaid_Overlay(t *testing.T) {
	g := fixture(t, "expense.json")

	completed := &domain.ExecutionResult{
		Status:      domain.StatusCompleted,
		FinalNodeID: "end",
		Trace: []domain.TraceEntry{
			{NodeID: "start"}, {NodeID: "risk_eval_1"}, {NodeID: "branch_1"}, {NodeID: "auto_approve"}, {NodeID: "end"},
		},
	}
	got := graph.GenerateMermaid(g, graph.OverlayFromResult(completed))
	assert.Contains(t, got, "class auto_approve visited;")
	assert.Contains(t, got, "class end final;")
	assert.NotContains(t, got, "class cfo_approve")

	failed := &domain.ExecutionResult{Trace: []domain.TraceEntry{{NodeID: "start"}, {NodeID: "risk_eval_1"}}}
	failed.Fail(&domain.RiskEvaluationError{NodeID: "risk_eval_1"})
	got = graph.GenerateMermaid(g, graph.OverlayFromResult(failed))
	assert.Contains(t, got, "class start visited;")
	assert.Contains(t, got, "class risk_eval_1 failed;")
	assert.NotContains(t, got, "class risk_eval_1 visited;")
}
