package condition

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aretw0/quorum/pkg/domain"
	"github.com/viant/parsly"
)

// Parse parses a condition expression such as `risk == 'high'` or `amount >= 5000`.
func Parse(expr string) (*Condition, error) {
	cursor := parsly.NewCursor("", []byte(expr), 0)
	cond := &Condition{}

	// Match the field name
	matched := cursor.MatchAfterOptional(whitespaceToken, identifierToken)
	if matched.Code != identifierToken.Code {
		return nil, fmt.Errorf("condition %q: %w", expr, cursor.NewError(identifierToken))
	}
	cond.Field = matched.Text(cursor)

	// Match the operator
	matched = cursor.MatchAfterOptional(whitespaceToken, operatorTokens...)
	op, ok := operatorByCode[matched.Code]
	if !ok {
		return nil, fmt.Errorf("condition %q: %w", expr, cursor.NewError(operatorTokens...))
	}
	cond.Op = op

	// Match the literal
	matched = cursor.MatchAfterOptional(whitespaceToken, literalTokens...)
	switch matched.Code {
	case stringCode:
		s, err := unquote(matched.Text(cursor))
		if err != nil {
			return nil, fmt.Errorf("condition %q: %w", expr, err)
		}
		cond.Value = Literal{Kind: LiteralString, Str: s}
	case numberCode:
		f, err := strconv.ParseFloat(matched.Text(cursor), 64)
		if err != nil {
			return nil, fmt.Errorf("condition %q: invalid number: %w", expr, err)
		}
		cond.Value = Literal{Kind: LiteralNumber, Num: f}
	case trueCode:
		cond.Value = Literal{Kind: LiteralBool, Bool: true}
	case falseCode:
		cond.Value = Literal{Kind: LiteralBool, Bool: false}
	default:
		return nil, fmt.Errorf("condition %q: %w", expr, cursor.NewError(literalTokens...))
	}

	// Nothing but whitespace may follow
	cursor.MatchOne(whitespaceToken)
	if cursor.HasMore() {
		return nil, fmt.Errorf("condition %q: unexpected trailing input at offset %d", expr, cursor.Pos)
	}

	if err := check(cond); err != nil {
		return nil, fmt.Errorf("condition %q: %w", expr, err)
	}
	return cond, nil
}

// MustParse is like Parse but panics on error. Meant for tests and static tables.
func MustParse(expr string) *Condition {
	c, err := Parse(expr)
	if err != nil {
		panic(err)
	}
	return c
}

// check applies the static typing rules of the grammar.
func check(c *Condition) error {
	if c.Field == domain.RiskField || c.Field == domain.RiskField+".level" {
		if c.Value.Kind != LiteralString {
			return fmt.Errorf("%s must be compared with a risk level string", c.Field)
		}
		level, err := domain.ParseRiskLevel(c.Value.Str)
		if err != nil {
			return err
		}
		c.level = level
		c.Value.Str = string(level)
		return nil
	}
	if c.Op.Ordering() && c.Value.Kind != LiteralNumber {
		return fmt.Errorf("operator %s requires a numeric literal", c.Op)
	}
	return nil
}

func unquote(text string) (string, error) {
	if len(text) < 2 {
		return "", fmt.Errorf("malformed string literal %s", text)
	}
	body := text[1 : len(text)-1]
	if !strings.Contains(body, `\`) {
		return body, nil
	}
	var sb strings.Builder
	for i := 0; i < len(body); i++ {
		if body[i] == '\\' && i+1 < len(body) {
			i++
		}
		sb.WriteByte(body[i])
	}
	return sb.String(), nil
}
