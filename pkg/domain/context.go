package domain

import (
	"fmt"
	"maps"
	"strings"
)

// RiskField is the reserved field name that resolves to the assessment level.
const RiskField = "risk"

// ExecutionContext is the per-run business payload.
// It is owned by exactly one run and is never shared across instances.
type ExecutionContext struct {
	InstanceID string          `json:"instance_id"`
	FlowID     string          `json:"flow_id"`
	Fields     map[string]any  `json:"fields"`
	Risk       *RiskAssessment `json:"risk,omitempty"`
}

// NewExecutionContext copies the given fields into a fresh context.
func NewExecutionContext(instanceID, flowID string, fields map[string]any) *ExecutionContext {
	c := &ExecutionContext{
		InstanceID: instanceID,
		FlowID:     flowID,
		Fields:     make(map[string]any, len(fields)),
	}
	maps.Copy(c.Fields, fields)
	return c
}

// Clone returns a deep copy. Field values are scalars so a map copy is enough.
func (c *ExecutionContext) Clone() *ExecutionContext {
	out := NewExecutionContext(c.InstanceID, c.FlowID, c.Fields)
	if c.Risk != nil {
		r := *c.Risk
		out.Risk = &r
	}
	return out
}

// Lookup resolves a field reference.
// "risk" and "risk.level" resolve to the assessment level (absent until a
// risk_eval node ran); "risk.recommended_path" and "risk.rationale" to the
// advisory strings. Everything else is looked up in Fields.
func (c *ExecutionContext) Lookup(field string) (any, bool) {
	if IsRiskField(field) {
		if c.Risk == nil {
			return nil, false
		}
		switch field {
		case RiskField, RiskField + ".level":
			return c.Risk.Level, true
		case RiskField + ".recommended_path":
			return c.Risk.RecommendedPath, true
		case RiskField + ".rationale":
			return c.Risk.Rationale, true
		default:
			return nil, false
		}
	}
	v, ok := c.Fields[field]
	return v, ok
}

// Apply merges a delta into the context.
func (c *ExecutionContext) Apply(d *ContextDelta) {
	if d == nil {
		return
	}
	if c.Fields == nil {
		c.Fields = make(map[string]any, len(d.Fields))
	}
	maps.Copy(c.Fields, d.Fields)
	if d.Risk != nil {
		r := *d.Risk
		c.Risk = &r
	}
}

// IsRiskField reports whether a field name addresses the assessment slot.
func IsRiskField(field string) bool {
	return field == RiskField || strings.HasPrefix(field, RiskField+".")
}

// ValidateFields checks that every value of an initial context is a scalar
// and that no key claims the reserved risk slot.
func ValidateFields(fields map[string]any) error {
	for k, v := range fields {
		if IsRiskField(k) {
			return fmt.Errorf("field %q: %q is reserved for the risk assessment", k, RiskField)
		}
		if !IsScalar(v) {
			return fmt.Errorf("field %q: value of type %T is not a scalar", k, v)
		}
	}
	return nil
}

// IsScalar reports whether v is a value a condition can compare against.
func IsScalar(v any) bool {
	switch v.(type) {
	case nil, string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	default:
		// json.Number and other string-backed numerics
		_, ok := v.(fmt.Stringer)
		return ok && isNumberLike(v)
	}
}

// ToFloat converts any numeric scalar to float64. Strings are not numbers.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case interface{ Float64() (float64, error) }:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func isNumberLike(v any) bool {
	type numberLike interface {
		Float64() (float64, error)
	}
	_, ok := v.(numberLike)
	return ok
}
