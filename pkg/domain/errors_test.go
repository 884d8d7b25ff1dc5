package domain_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aretw0/quorum/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	oracleErr := &domain.RiskEvaluationError{NodeID: "risk", Err: errors.New("boom")}

	tests := []struct {
		name string
		err  error
		want domain.ErrorKind
	}{
		{"nil", nil, ""},
		{"validation", &domain.GraphValidationError{}, domain.KindValidation},
		{"not found", &domain.NotFoundError{NodeID: "x"}, domain.KindNotFound},
		{"risk", oracleErr, domain.KindRiskEvaluation},
		{"wrapped risk", fmt.Errorf("step: %w", oracleErr), domain.KindRiskEvaluation},
		{"unroutable", &domain.UnroutableBranchError{NodeID: "b"}, domain.KindUnroutableBranch},
		{"cycle", &domain.CycleDetectedError{NodeID: "a"}, domain.KindCycleDetected},
		{"conflict", &domain.MergeConflictError{NodeID: "m", Field: "f"}, domain.KindMergeConflict},
		{"merge failed wins over cause", &domain.MergeFailedError{NodeID: "m", Path: "p", Err: oracleErr}, domain.KindMergeFailed},
		{"cancelled", &domain.CancelledError{NodeID: "a", Err: context.Canceled}, domain.KindCancelled},
		{"bare context error", context.Canceled, domain.KindCancelled},
		{"trace not found", fmt.Errorf("load: %w", domain.ErrTraceNotFound), domain.KindNotFound},
		{"anything else", errors.New("disk on fire"), domain.KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, domain.KindOf(tt.err))
		})
	}
}

func TestNodeOf_PrefersOutermostMerge(t *testing.T) {
	err := &domain.MergeFailedError{
		NodeID: "join",
		Path:   "finance",
		Err:    &domain.RiskEvaluationError{NodeID: "finance_risk", Err: errors.New("x")},
	}
	assert.Equal(t, "join", domain.NodeOf(err))

	var re *domain.RiskEvaluationError
	assert.True(t, errors.As(err, &re))
	assert.Equal(t, "finance_risk", re.NodeID)
}

func TestGraphValidationError_Message(t *testing.T) {
	err := &domain.GraphValidationError{
		FlowID: "expense",
		Violations: []domain.Violation{
			{Code: "dangling_reference", NodeID: "approve", Message: `next "ghost" does not exist`},
			{Code: "missing_start", Message: "no start node"},
		},
	}
	assert.True(t, err.Has("missing_start"))
	assert.False(t, err.Has("cycle"))
	assert.Contains(t, err.Error(), "2 violation(s)")
	assert.Contains(t, err.Error(), `dangling_reference [approve]`)
}

func TestExecutionResult_Fail(t *testing.T) {
	res := &domain.ExecutionResult{InstanceID: "i-1", Status: domain.StatusRunning, FinalNodeID: "x"}
	res.Fail(&domain.UnroutableBranchError{NodeID: "route", Conditions: []string{"risk == 'low'"}})

	assert.Equal(t, domain.StatusFailed, res.Status)
	assert.Empty(t, res.FinalNodeID)
	assert.Equal(t, domain.KindUnroutableBranch, res.Error.Kind)
	assert.Equal(t, "route", res.Error.NodeID)

	var ub *domain.UnroutableBranchError
	assert.True(t, errors.As(res.Err(), &ub))
}

func TestParseRiskLevel(t *testing.T) {
	for in, want := range map[string]domain.RiskLevel{
		"high": domain.RiskHigh, " HIGH ": domain.RiskHigh, "高": domain.RiskHigh,
		"Medium": domain.RiskMedium, "中": domain.RiskMedium,
		"low": domain.RiskLow, "低": domain.RiskLow,
	} {
		got, err := domain.ParseRiskLevel(in)
		assert.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := domain.ParseRiskLevel("critical")
	assert.Error(t, err)
	assert.True(t, domain.RiskLow.Rank() < domain.RiskMedium.Rank())
	assert.True(t, domain.RiskMedium.Rank() < domain.RiskHigh.Rank())
}

func TestExecutionContext_Lookup(t *testing.T) {
	c := domain.NewExecutionContext("i", "f", map[string]any{"amount": 10, "risk": "shadowed"})

	_, ok := c.Lookup("risk")
	assert.False(t, ok, "risk resolves to the assessment slot, not to business fields")

	c.Risk = &domain.RiskAssessment{Level: domain.RiskMedium, RecommendedPath: "manager"}
	v, ok := c.Lookup("risk")
	assert.True(t, ok)
	assert.Equal(t, domain.RiskMedium, v)
	v, _ = c.Lookup("risk.recommended_path")
	assert.Equal(t, "manager", v)
	v, _ = c.Lookup("amount")
	assert.Equal(t, 10, v)

	clone := c.Clone()
	clone.Fields["amount"] = 20
	clone.Risk.Level = domain.RiskLow
	assert.Equal(t, 10, c.Fields["amount"])
	assert.Equal(t, domain.RiskMedium, c.Risk.Level)
}

func TestValidateFields(t *testing.T) {
	assert.NoError(t, domain.ValidateFields(map[string]any{"a": 1, "b": "x", "c": true, "d": nil, "e": 1.5}))
	assert.Error(t, domain.ValidateFields(map[string]any{"nested": map[string]any{"x": 1}}))
	assert.Error(t, domain.ValidateFields(map[string]any{"list": []int{1}}))
	assert.ErrorContains(t, domain.ValidateFields(map[string]any{"risk": "high"}), "reserved")
	assert.ErrorContains(t, domain.ValidateFields(map[string]any{"risk.level": "high"}), "reserved")
	assert.NoError(t, domain.ValidateFields(map[string]any{"risky": true}))
}
