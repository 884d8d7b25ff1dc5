package flow_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/quorum/pkg/domain"
	"github.com/aretw0/quorum/pkg/dsl"
	"github.com/aretw0/quorum/pkg/flow"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return data
}

func requireViolation(t *testing.T, err error, code string) *domain.GraphValidationError {
	t.Helper()
	require.Error(t, err)
	var gve *domain.GraphValidationError
	require.True(t, errors.As(err, &gve), "expected GraphValidationError, got %T: %v", err, err)
	assert.True(t, gve.Has(code), "expected violation %q in %v", code, gve.Violations)
	return gve
}

func TestLoad_Formats(t *testing.T) {
	for _, name := range []string{"expense.json", "expense.yaml", "expense.hcl"} {
		t.Run(name, func(t *testing.T) {
			g, err := flow.LoadBytes(readFixture(t, name), flow.FormatFromPath(name))
			require.NoError(t, err)

			assert.Equal(t, "expense", g.FlowID())
			assert.Equal(t, "1", g.Version())
			assert.Equal(t, "start", g.StartNodeID())
			assert.Equal(t, 7, g.Len())

			n, err := g.NodeByID("risk_eval_1")
			require.NoError(t, err)
			assert.Equal(t, domain.NodeTypeRiskEval, n.Type)
			assert.Equal(t, flow.RiskEvalConfig{
				Fields:   []string{"amount", "urgency", "applicant_history"},
				Provider: "deepseek",
			}, n.Config)

			edges, err := g.Outgoing("branch_1")
			require.NoError(t, err)
			require.Len(t, edges, 3)
			assert.Equal(t, "cfo_approve", edges[0].Target)
			assert.Equal(t, "risk == 'high'", edges[0].Condition.String())
			assert.Equal(t, "auto_approve", edges[2].Target)
		})
	}
}

func TestLoad_AllFormatsAgree(t *testing.T) {
	var docs []*flow.Document
	for _, name := range []string{"expense.json", "expense.yaml", "expense.hcl"} {
		g, err := flow.LoadBytes(readFixture(t, name), flow.FormatFromPath(name))
		require.NoError(t, err)
		docs = append(docs, g.Document())
	}
	assert.Empty(t, cmp.Diff(docs[0], docs[1]))
	assert.Empty(t, cmp.Diff(docs[0], docs[2]))
}

func TestRoundTrip(t *testing.T) {
	for _, format := range []flow.Format{flow.FormatJSON, flow.FormatYAML, flow.FormatHCL} {
		t.Run(string(format), func(t *testing.T) {
			for _, fixture := range []string{"expense.json", "countersign.json"} {
				g, err := flow.LoadBytes(readFixture(t, fixture), flow.FormatJSON)
				require.NoError(t, err)

				data, err := flow.Marshal(g.Document(), format)
				require.NoError(t, err)

				again, err := flow.LoadBytes(data, format)
				require.NoError(t, err, string(data))

				if diff := cmp.Diff(g.Document(), again.Document()); diff != "" {
					t.Errorf("round trip through %s mismatch (-want +got):\n%s", format, diff)
				}
			}
		})
	}
}

func TestRoundTrip_PreservesEdges(t *testing.T) {
	g, err := flow.LoadBytes(readFixture(t, "countersign.json"), flow.FormatJSON)
	require.NoError(t, err)

	data, err := flow.Marshal(g.Document(), flow.FormatJSON)
	require.NoError(t, err)
	again, err := flow.LoadBytes(data, flow.FormatJSON)
	require.NoError(t, err)

	for _, n := range g.Nodes() {
		want, err := g.Outgoing(n.ID)
		require.NoError(t, err)
		got, err := again.Outgoing(n.ID)
		require.NoError(t, err)
		require.Len(t, got, len(want), n.ID)
		for i := range want {
			assert.Equal(t, want[i].Kind, got[i].Kind)
			assert.Equal(t, want[i].Target, got[i].Target)
			if want[i].Condition != nil {
				assert.Equal(t, want[i].Condition.String(), got[i].Condition.String())
			}
		}
	}
}

func TestOutgoing_Merge(t *testing.T) {
	g, err := flow.LoadBytes(readFixture(t, "countersign.json"), flow.FormatJSON)
	require.NoError(t, err)

	edges, err := g.Outgoing("sign")
	require.NoError(t, err)
	assert.Equal(t, []flow.Edge{
		{Kind: flow.EdgeFork, Target: "finance_risk"},
		{Kind: flow.EdgeFork, Target: "manager_approve"},
		{Kind: flow.EdgeNext, Target: "end"},
	}, edges)

	edges, err = g.Outgoing("end")
	require.NoError(t, err)
	assert.Empty(t, edges)
}

func TestNodeByID_NotFound(t *testing.T) {
	g, err := flow.LoadBytes(readFixture(t, "expense.json"), flow.FormatJSON)
	require.NoError(t, err)

	_, err = g.NodeByID("ghost")
	var nf *domain.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "ghost", nf.NodeID)

	_, err = g.Outgoing("ghost")
	assert.True(t, errors.As(err, &nf))
}

func TestNodeByID_ReturnsCopy(t *testing.T) {
	g, err := flow.LoadBytes(readFixture(t, "expense.json"), flow.FormatJSON)
	require.NoError(t, err)

	start, err := g.NodeByID("start")
	require.NoError(t, err)
	start.Next = "end"

	route, err := g.NodeByID("branch_1")
	require.NoError(t, err)
	bc := route.Config.(flow.BranchConfig)
	bc.Branches[0].Next = "end"
	bc.Branches[0].Condition.Field = "amount"

	risk, err := g.NodeByID("risk_eval_1")
	require.NoError(t, err)
	risk.Config.(flow.RiskEvalConfig).Fields[0] = "tampered"

	for _, n := range g.Nodes() {
		n.Name = "renamed"
	}

	again, err := g.NodeByID("start")
	require.NoError(t, err)
	assert.Equal(t, "risk_eval_1", again.Next)
	assert.NotEqual(t, "renamed", again.Name)

	route, err = g.NodeByID("branch_1")
	require.NoError(t, err)
	first := route.Config.(flow.BranchConfig).Branches[0]
	assert.Equal(t, "cfo_approve", first.Next)
	assert.Equal(t, "risk", first.Condition.Field)

	risk, err = g.NodeByID("risk_eval_1")
	require.NoError(t, err)
	assert.Equal(t, "amount", risk.Config.(flow.RiskEvalConfig).Fields[0])
}

func TestParse_TrailingContent(t *testing.T) {
	_, err := flow.Parse(append(readFixture(t, "expense.json"), []byte(` {"garbage":true}`)...), flow.FormatJSON)
	assert.ErrorContains(t, err, "unexpected content")

	_, err = flow.Parse(append(readFixture(t, "expense.yaml"), []byte("---\nflow_id: other\n")...), flow.FormatYAML)
	assert.ErrorContains(t, err, "unexpected content")

	_, err = flow.Parse(append(readFixture(t, "expense.json"), '\n'), flow.FormatJSON)
	assert.NoError(t, err)
}

// A dangling next is rejected before any run is attempted.
func TestLoad_DanglingNext(t *testing.T) {
	doc := &flow.Document{
		FlowID: "broken",
		Nodes: []flow.NodeDocument{
			{ID: "start", Type: "start", Next: "approve"},
			{ID: "approve", Type: "approve", Approver: "boss", Next: "nowhere"},
			{ID: "end", Type: "end"},
		},
	}
	g, err := flow.Load(doc)
	assert.Nil(t, g)
	gve := requireViolation(t, err, flow.CodeDanglingReference)
	assert.Equal(t, "approve", gve.Violations[0].NodeID)
}

func TestLoad_Violations(t *testing.T) {
	tests := []struct {
		name  string
		build func(b *dsl.Builder)
		code  string
	}{
		{
			name: "missing start",
			build: func(b *dsl.Builder) {
				b.Add("a").Approve("x").Go("end")
				b.Add("end").End()
			},
			code: flow.CodeMissingStart,
		},
		{
			name: "duplicate start",
			build: func(b *dsl.Builder) {
				b.Add("s1").Start().Go("end")
				b.Add("s2").Start().Go("end")
				b.Add("end").End()
			},
			code: flow.CodeDuplicateStart,
		},
		{
			name: "cycle",
			build: func(b *dsl.Builder) {
				b.Add("start").Start().Go("a")
				b.Add("a").Approve("x").Go("b")
				b.Add("b").Approve("y").Go("a")
			},
			code: flow.CodeCycle,
		},
		{
			name: "cycle through branch",
			build: func(b *dsl.Builder) {
				b.Add("start").Start().Go("risk")
				b.Add("risk").RiskEval("amount").Go("route")
				b.Add("route").Branch("risk == 'high'", "risk").Branch("risk == 'low'", "end")
				b.Add("end").End()
			},
			code: flow.CodeCycle,
		},
		{
			name: "unknown type",
			build: func(b *dsl.Builder) {
				b.Add("start").Start().Go("x")
				b.Add("x").Go("end").Build()
				b.Add("end").End()
			},
			code: flow.CodeMalformedNode,
		},
		{
			name: "next and branches",
			build: func(b *dsl.Builder) {
				b.Add("start").Start().Go("route")
				b.Add("route").Branch("amount > 1", "end").Go("end")
				b.Add("end").End()
			},
			code: flow.CodeMalformedNode,
		},
		{
			name: "end with next",
			build: func(b *dsl.Builder) {
				b.Add("start").Start().Go("end")
				b.Add("end").End().Go("start")
			},
			code: flow.CodeMalformedNode,
		},
		{
			name: "approve without approver",
			build: func(b *dsl.Builder) {
				b.Add("start").Start().Go("a")
				b.Add("a").Approve("").Go("end")
				b.Add("end").End()
			},
			code: flow.CodeMalformedNode,
		},
		{
			name: "risk_eval without fields",
			build: func(b *dsl.Builder) {
				b.Add("start").Start().Go("risk")
				b.Add("risk").RiskEval().Go("end")
				b.Add("end").End()
			},
			code: flow.CodeMissingFields,
		},
		{
			name: "risk_eval without next",
			build: func(b *dsl.Builder) {
				b.Add("start").Start().Go("risk")
				b.Add("risk").RiskEval("amount")
				b.Add("end").End()
			},
			code: flow.CodeMalformedNode,
		},
		{
			name: "unknown params key",
			build: func(b *dsl.Builder) {
				b.Add("start").Start().Go("risk")
				b.Add("risk").RiskEval("amount").Set("temperature", 0.2).Go("end")
				b.Add("end").End()
			},
			code: flow.CodeMalformedNode,
		},
		{
			name: "params on approve",
			build: func(b *dsl.Builder) {
				b.Add("start").Start().Go("a")
				b.Add("a").Approve("x").Set("fields", []string{"amount"}).Go("end")
				b.Add("end").End()
			},
			code: flow.CodeMalformedNode,
		},
		{
			name: "malformed condition",
			build: func(b *dsl.Builder) {
				b.Add("start").Start().Go("route")
				b.Add("route").Branch("__import__('os') == 1", "end")
				b.Add("end").End()
			},
			code: flow.CodeMalformedCondition,
		},
		{
			name: "merge lanes overlap",
			build: func(b *dsl.Builder) {
				b.Add("start").Start().Go("m")
				b.Add("m").Merge("a", "b").Go("end")
				b.Add("a").Approve("x").Go("shared")
				b.Add("b").Approve("y").Go("shared")
				b.Add("shared").Approve("z").Go("end")
				b.Add("end").End()
			},
			code: flow.CodeMergeOverlap,
		},
		{
			name: "merge lane escapes to end",
			build: func(b *dsl.Builder) {
				b.Add("start").Start().Go("m")
				b.Add("m").Merge("a", "b").Go("after")
				b.Add("a").Approve("x").Go("after")
				b.Add("b").Approve("y").Go("end")
				b.Add("after").Approve("z").Go("end")
				b.Add("end").End()
			},
			code: flow.CodeMergeEscape,
		},
		{
			name: "merge without paths",
			build: func(b *dsl.Builder) {
				b.Add("start").Start().Go("m")
				b.Add("m").Merge().Go("end")
				b.Add("end").End()
			},
			code: flow.CodeMalformedNode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := dsl.New("f", "1")
			tt.build(b)
			g, err := flow.Load(b.Document())
			assert.Nil(t, g)
			requireViolation(t, err, tt.code)
		})
	}
}

func TestLoad_DuplicateID(t *testing.T) {
	doc := &flow.Document{
		FlowID: "dup",
		Nodes: []flow.NodeDocument{
			{ID: "start", Type: "start", Next: "end"},
			{ID: "end", Type: "end"},
			{ID: "end", Type: "end"},
		},
	}
	_, err := flow.Load(doc)
	requireViolation(t, err, flow.CodeDuplicateID)
}

func TestLoad_EmptyBranch(t *testing.T) {
	doc := &flow.Document{
		FlowID: "empty",
		Nodes: []flow.NodeDocument{
			{ID: "start", Type: "start", Next: "route"},
			{ID: "route", Type: "branch"},
		},
	}
	_, err := flow.Load(doc)
	requireViolation(t, err, flow.CodeEmptyBranch)
}

func TestLoad_CollectsEveryViolation(t *testing.T) {
	doc := &flow.Document{
		Nodes: []flow.NodeDocument{
			{ID: "a", Type: "approve", Next: "ghost"},
			{ID: "b", Type: "teleport"},
		},
	}
	_, err := flow.Load(doc)
	gve := requireViolation(t, err, flow.CodeMissingStart)
	assert.True(t, gve.Has(flow.CodeMalformedFlow))
	assert.True(t, gve.Has(flow.CodeDanglingReference))
	assert.True(t, gve.Has(flow.CodeMalformedNode))
}

func TestParse_StrictDecoding(t *testing.T) {
	tests := []struct {
		name   string
		format flow.Format
		data   string
	}{
		{"json unknown node key", flow.FormatJSON, `{"flow_id":"f","nodes":[{"id":"start","type":"start","next":"end","color":"red"}]}`},
		{"json unknown top-level key", flow.FormatJSON, `{"flow_id":"f","owner":"me","nodes":[]}`},
		{"yaml unknown key", flow.FormatYAML, "flow_id: f\nnodes:\n  - id: start\n    type: start\n    color: red\n"},
		{"hcl unknown attribute", flow.FormatHCL, "flow_id = \"f\"\nnode \"start\" {\n  type = \"start\"\n  color = \"red\"\n}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := flow.Parse([]byte(tt.data), tt.format)
			assert.Error(t, err)

			_, err = flow.LoadBytes([]byte(tt.data), tt.format)
			requireViolation(t, err, flow.CodeMalformedFlow)
		})
	}
}

func TestLoad_NestedMerge(t *testing.T) {
	b := dsl.New("nested", "1")
	b.Add("start").Start().Go("outer")
	b.Add("outer").Merge("inner", "legal").Go("end")
	b.Add("inner").Merge("finance", "manager").Go("controller")
	b.Add("finance").Approve("finance").Go("controller")
	b.Add("manager").Approve("manager").Go("controller")
	b.Add("controller").Approve("controller").Go("end")
	b.Add("legal").Approve("legal").Go("end")
	b.Add("end").End()

	_, err := b.Build()
	require.NoError(t, err)
}

func TestGraph_ConcurrentReads(t *testing.T) {
	g, err := flow.LoadBytes(readFixture(t, "expense.json"), flow.FormatJSON)
	require.NoError(t, err)

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for _, n := range g.Nodes() {
				_, _ = g.Outgoing(n.ID)
			}
			_ = g.Document()
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}
