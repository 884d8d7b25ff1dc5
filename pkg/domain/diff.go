package domain

import (
	"reflect"
)

// ContextDelta represents the changes a node (or a merge lane) made to a context.
// It is recorded in the trace and is what merge lanes hand back at the join.
type ContextDelta struct {
	// Fields contains only added or modified keys.
	Fields map[string]any `json:"fields,omitempty"`

	// Risk is set when the assessment slot changed.
	Risk *RiskAssessment `json:"risk,omitempty"`
}

// IsEmpty checks if the delta contains any actionable changes.
func (d *ContextDelta) IsEmpty() bool {
	return d == nil || (len(d.Fields) == 0 && d.Risk == nil)
}

// Diff calculates the difference between oldCtx and newCtx.
// If oldCtx is nil, it returns a delta representing the entire newCtx.
// Deleted keys are not tracked: handlers only ever add or overwrite fields.
func Diff(oldCtx, newCtx *ExecutionContext) *ContextDelta {
	if newCtx == nil {
		return nil
	}

	delta := &ContextDelta{
		Fields: diffFields(oldCtx, newCtx),
	}

	if newCtx.Risk != nil && (oldCtx == nil || !reflect.DeepEqual(oldCtx.Risk, newCtx.Risk)) {
		r := *newCtx.Risk
		delta.Risk = &r
	}

	if delta.IsEmpty() {
		return nil
	}
	return delta
}

func diffFields(old *ExecutionContext, new *ExecutionContext) map[string]any {
	delta := make(map[string]any)

	if old == nil {
		for k, v := range new.Fields {
			delta[k] = v
		}
		return nilIfEmpty(delta)
	}

	for k, newVal := range new.Fields {
		oldVal, exists := old.Fields[k]
		if !exists || !reflect.DeepEqual(oldVal, newVal) {
			delta[k] = newVal
		}
	}
	return nilIfEmpty(delta)
}

func nilIfEmpty(m map[string]any) map[string]any {
	// Return nil if delta is empty so omitempty can remove the key
	if len(m) == 0 {
		return nil
	}
	return m
}
