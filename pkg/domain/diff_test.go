package domain

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func TestDiff(t *testing.T) {
	high := &RiskAssessment{Level: RiskHigh, Rationale: "large amount"}

	tests := []struct {
		name      string
		old       *ExecutionContext
		new       *ExecutionContext
		wantDelta *ContextDelta // nil means we expect no delta
	}{
		{
			name: "Initial Load (Old is Nil)",
			old:  nil,
			new: &ExecutionContext{
				InstanceID: "inst-1",
				Fields:     map[string]any{"amount": 1200},
			},
			wantDelta: &ContextDelta{
				Fields: map[string]any{"amount": 1200},
			},
		},
		{
			name: "No Changes",
			old: &ExecutionContext{
				InstanceID: "inst-1",
				Fields:     map[string]any{"amount": 1200},
			},
			new: &ExecutionContext{
				InstanceID: "inst-1",
				Fields:     map[string]any{"amount": 1200},
			},
			wantDelta: nil,
		},
		{
			name: "Field Added And Modified",
			old: &ExecutionContext{
				Fields: map[string]any{"amount": 1200, "urgency": "low"},
			},
			new: &ExecutionContext{
				Fields: map[string]any{"amount": 1200, "urgency": "high", "manager.approver": "alice"},
			},
			wantDelta: &ContextDelta{
				Fields: map[string]any{"urgency": "high", "manager.approver": "alice"},
			},
		},
		{
			name: "Risk Populated",
			old: &ExecutionContext{
				Fields: map[string]any{"amount": 1200},
			},
			new: &ExecutionContext{
				Fields: map[string]any{"amount": 1200},
				Risk:   high,
			},
			wantDelta: &ContextDelta{Risk: high},
		},
		{
			name: "Risk Unchanged",
			old: &ExecutionContext{
				Risk: high,
			},
			new: &ExecutionContext{
				Risk: &RiskAssessment{Level: RiskHigh, Rationale: "large amount"},
			},
			wantDelta: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Diff(tt.old, tt.new)

			if tt.wantDelta == nil {
				if got != nil && !got.IsEmpty() {
					t.Errorf("Expected empty/nil delta, got %+v", got)
				}
				return
			}

			if !reflect.DeepEqual(got, tt.wantDelta) {
				gotJSON, _ := json.MarshalIndent(got, "", "  ")
				wantJSON, _ := json.MarshalIndent(tt.wantDelta, "", "  ")
				t.Errorf("Diff() mismatch.\nGot:\n%s\nWant:\n%s", gotJSON, wantJSON)
			}
		})
	}
}

func TestContextDelta_JSONOmitEmpty(t *testing.T) {
	d := &ContextDelta{Fields: map[string]any{"a": 1}}
	data, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}
	if strings.Contains(string(data), "risk") {
		t.Errorf("Expected risk to be omitted, got %s", data)
	}
}
