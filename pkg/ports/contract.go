package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/quorum/pkg/domain"
	"github.com/aretw0/quorum/pkg/flow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult(instanceID string) *domain.ExecutionResult {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &domain.ExecutionResult{
		InstanceID:  instanceID,
		FlowID:      "expense",
		FlowVersion: "1",
		Status:      domain.StatusCompleted,
		FinalNodeID: "end",
		StartedAt:   now,
		FinishedAt:  now.Add(time.Second),
		Trace: []domain.TraceEntry{
			{NodeID: "start", NodeType: domain.NodeTypeStart, Timestamp: now},
			{
				NodeID:    "risk",
				NodeType:  domain.NodeTypeRiskEval,
				Timestamp: now,
				ContextIn: map[string]any{"amount": 1200},
				ContextOut: &domain.ContextDelta{
					Risk: &domain.RiskAssessment{Level: domain.RiskHigh, RecommendedPath: "cfo"},
				},
			},
			{NodeID: "end", NodeType: domain.NodeTypeEnd, Timestamp: now},
		},
	}
}

// RunTraceStoreContract runs a suite of tests to verify that a TraceStore implementation
// adheres to the defined interface contract.
func RunTraceStoreContract(t *testing.T, store TraceStore) {
	ctx := context.Background()
	instanceID := "contract-test-instance-" + time.Now().Format("20060102150405.000000000")

	t.Run("Save and Load", func(t *testing.T) {
		// 1. Create a result
		result := sampleResult(instanceID)

		// 2. Save
		err := store.SaveTrace(ctx, result)
		require.NoError(t, err, "SaveTrace should not return error")

		// 3. Load
		loaded, err := store.LoadTrace(ctx, instanceID)
		require.NoError(t, err, "LoadTrace should not return error")
		assert.Equal(t, result.InstanceID, loaded.InstanceID)
		assert.Equal(t, result.FlowID, loaded.FlowID)
		assert.Equal(t, domain.StatusCompleted, loaded.Status)
		assert.Equal(t, "end", loaded.FinalNodeID)
		assert.Equal(t, []string{"start", "risk", "end"}, loaded.Visited())
		require.NotNil(t, loaded.Trace[1].ContextOut)
		assert.Equal(t, domain.RiskHigh, loaded.Trace[1].ContextOut.Risk.Level)
		// JSON persistence turns ints into float64; only check presence.
		assert.NotNil(t, loaded.Trace[1].ContextIn["amount"])
		assert.True(t, result.StartedAt.Equal(loaded.StartedAt))
	})

	t.Run("Failed Result Keeps Error", func(t *testing.T) {
		id := instanceID + "-failed"
		result := sampleResult(id)
		result.Trace = result.Trace[:2]
		result.Trace[1].ContextOut = nil
		result.Trace[1].ErrorKind = domain.KindRiskEvaluation
		result.Trace[1].Error = "timeout"
		result.Fail(&domain.RiskEvaluationError{NodeID: "risk", Timeout: true, Err: context.DeadlineExceeded})

		require.NoError(t, store.SaveTrace(ctx, result))

		loaded, err := store.LoadTrace(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusFailed, loaded.Status)
		require.NotNil(t, loaded.Error)
		assert.Equal(t, domain.KindRiskEvaluation, loaded.Error.Kind)
		assert.Equal(t, "risk", loaded.Error.NodeID)
		assert.True(t, loaded.Trace[1].Failed())
		assert.Error(t, loaded.Err())
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.LoadTrace(ctx, "non-existent-"+instanceID)
		assert.ErrorIs(t, err, domain.ErrTraceNotFound)
	})

	t.Run("List", func(t *testing.T) {
		id1 := instanceID + "-1"
		id2 := instanceID + "-2"
		require.NoError(t, store.SaveTrace(ctx, sampleResult(id1)))
		require.NoError(t, store.SaveTrace(ctx, sampleResult(id2)))

		ids, err := store.ListTraces(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, id1)
		assert.Contains(t, ids, id2)
	})
}

// RunAssessmentRecorderContract verifies an AssessmentRecorder implementation.
func RunAssessmentRecorderContract(t *testing.T, rec AssessmentRecorder) {
	ctx := context.Background()
	suffix := time.Now().Format("20060102150405.000000000")
	instA := "contract-a-" + suffix
	instB := "contract-b-" + suffix

	records := []domain.AssessmentRecord{
		{InstanceID: instA, FlowID: "expense", NodeID: "risk_1", Assessment: domain.RiskAssessment{Level: domain.RiskLow}},
		{InstanceID: instB, FlowID: "expense", NodeID: "risk_1", Assessment: domain.RiskAssessment{Level: domain.RiskHigh, Rationale: "amount"}},
		{InstanceID: instA, FlowID: "expense", NodeID: "risk_2", Assessment: domain.RiskAssessment{Level: domain.RiskMedium}},
	}
	for i := range records {
		records[i].RecordedAt = time.Now().UTC().Add(time.Duration(i) * time.Millisecond)
		require.NoError(t, rec.RecordAssessment(ctx, records[i]))
	}

	t.Run("Per Instance In Order", func(t *testing.T) {
		got, err := rec.ListAssessments(ctx, instA)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "risk_1", got[0].NodeID)
		assert.Equal(t, "risk_2", got[1].NodeID)
		assert.Equal(t, domain.RiskMedium, got[1].Assessment.Level)
	})

	t.Run("All Instances", func(t *testing.T) {
		got, err := rec.ListAssessments(ctx, "")
		require.NoError(t, err)
		var mine int
		for _, r := range got {
			if r.InstanceID == instA || r.InstanceID == instB {
				mine++
			}
		}
		assert.Equal(t, 3, mine)
	})

	t.Run("Unknown Instance", func(t *testing.T) {
		got, err := rec.ListAssessments(ctx, "nobody-"+suffix)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

// RunFlowRepositoryContract verifies a FlowRepository implementation.
func RunFlowRepositoryContract(t *testing.T, repo FlowRepository) {
	ctx := context.Background()
	doc := []byte(`{"flow_id":"contract","name":"c","version":"1","nodes":[{"id":"start","type":"start","next":"end"},{"id":"end","type":"end"}]}`)

	t.Run("Save and Load", func(t *testing.T) {
		require.NoError(t, repo.SaveGraph(ctx, "contract", "1", doc, flow.FormatJSON))

		data, format, err := repo.LoadGraph(ctx, "contract", "1")
		require.NoError(t, err)
		assert.Equal(t, flow.FormatJSON, format)

		g, err := flow.LoadBytes(data, format)
		require.NoError(t, err)
		assert.Equal(t, "contract", g.FlowID())
	})

	t.Run("Overwrite", func(t *testing.T) {
		updated := []byte(`{"flow_id":"contract","name":"c2","version":"1","nodes":[{"id":"start","type":"start","next":"end"},{"id":"end","type":"end"}]}`)
		require.NoError(t, repo.SaveGraph(ctx, "contract", "1", updated, flow.FormatJSON))

		data, format, err := repo.LoadGraph(ctx, "contract", "1")
		require.NoError(t, err)
		g, err := flow.LoadBytes(data, format)
		require.NoError(t, err)
		assert.Equal(t, "c2", g.Name())
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, _, err := repo.LoadGraph(ctx, "contract", "99")
		assert.ErrorIs(t, err, domain.ErrFlowNotFound)
	})

	t.Run("List", func(t *testing.T) {
		require.NoError(t, repo.SaveGraph(ctx, "contract", "2", doc, flow.FormatJSON))
		refs, err := repo.ListFlows(ctx)
		require.NoError(t, err)
		assert.Contains(t, refs, FlowRef{FlowID: "contract", Version: "1"})
		assert.Contains(t, refs, FlowRef{FlowID: "contract", Version: "2"})
	})
}
