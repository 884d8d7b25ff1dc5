// Package condition implements the branch condition grammar.
//
// A condition has the form
//
//	field op literal
//
// where op is one of == != < <= > >= and literal is a quoted string, a number,
// true or false. Conditions are parsed once, when a flow is loaded, into a
// Condition value; evaluation never interprets strings at run time.
//
// The field names risk and risk.level address the risk assessment level. For
// those fields the literal must name a level (high, medium, low or 高, 中, 低) and
// ordering operators compare by severity.
package condition

import (
	"strconv"
	"strings"

	"github.com/aretw0/quorum/pkg/domain"
)

// Operator is a comparison operator.
type Operator int

const (
	OpEq Operator = iota + 1
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
)

func (o Operator) String() string {
	switch o {
	case OpEq:
		return "=="
	case OpNe:
		return "!="
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	default:
		return "?"
	}
}

// Ordering reports whether the operator needs an ordered operand.
func (o Operator) Ordering() bool {
	return o == OpLt || o == OpLe || o == OpGt || o == OpGe
}

// LiteralKind is the static type of a literal.
type LiteralKind int

const (
	LiteralString LiteralKind = iota + 1
	LiteralNumber
	LiteralBool
)

// Literal is the right-hand side of a condition.
type Literal struct {
	Kind LiteralKind
	Str  string
	Num  float64
	Bool bool
}

func (l Literal) String() string {
	switch l.Kind {
	case LiteralNumber:
		return strconv.FormatFloat(l.Num, 'g', -1, 64)
	case LiteralBool:
		return strconv.FormatBool(l.Bool)
	default:
		r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
		return "'" + r.Replace(l.Str) + "'"
	}
}

// Condition is a parsed `field op literal` expression.
type Condition struct {
	Field string
	Op    Operator
	Value Literal

	// level is set when Field addresses the risk level.
	level domain.RiskLevel
}

// String renders the canonical form of the condition. Parsing the canonical
// form yields an equal condition.
func (c *Condition) String() string {
	return c.Field + " " + c.Op.String() + " " + c.Value.String()
}

// IsRiskLevel reports whether the condition compares the assessment level.
func (c *Condition) IsRiskLevel() bool {
	return c.level != ""
}

// Resolver looks up field values. *domain.ExecutionContext implements it.
type Resolver interface {
	Lookup(field string) (any, bool)
}

// Eval evaluates the condition. It is a pure function of what the resolver
// returns. A missing field or a value whose type does not match the literal
// makes the condition false regardless of the operator.
func (c *Condition) Eval(r Resolver) bool {
	v, ok := r.Lookup(c.Field)
	if !ok || v == nil {
		return false
	}

	if c.IsRiskLevel() {
		level, ok := asLevel(v)
		if !ok {
			return false
		}
		return compareOrdered(level.Rank(), c.level.Rank(), c.Op)
	}

	switch c.Value.Kind {
	case LiteralNumber:
		f, ok := domain.ToFloat(v)
		if !ok {
			return false
		}
		return compareOrdered(f, c.Value.Num, c.Op)
	case LiteralString:
		s, ok := v.(string)
		if !ok {
			return false
		}
		return compareEquality(s == c.Value.Str, c.Op)
	case LiteralBool:
		b, ok := v.(bool)
		if !ok {
			return false
		}
		return compareEquality(b == c.Value.Bool, c.Op)
	}
	return false
}

func compareOrdered[T int | float64](a, b T, op Operator) bool {
	switch op {
	case OpEq:
		return a == b
	case OpNe:
		return a != b
	case OpLt:
		return a < b
	case OpLe:
		return a <= b
	case OpGt:
		return a > b
	case OpGe:
		return a >= b
	}
	return false
}

func compareEquality(equal bool, op Operator) bool {
	switch op {
	case OpEq:
		return equal
	case OpNe:
		return !equal
	}
	return false
}

func asLevel(v any) (domain.RiskLevel, bool) {
	switch t := v.(type) {
	case domain.RiskLevel:
		return t, t.Valid()
	case string:
		l, err := domain.ParseRiskLevel(t)
		return l, err == nil
	}
	return "", false
}
