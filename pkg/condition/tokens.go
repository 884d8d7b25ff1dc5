package condition

import (
	"github.com/viant/parsly"
	"github.com/viant/parsly/matcher"
)

// Token codes
const (
	_ = iota
	whitespaceCode
	identifierCode
	eqCode
	neCode
	leCode
	geCode
	ltCode
	gtCode
	stringCode
	numberCode
	trueCode
	falseCode
)

// Token definitions. Two-byte operators are listed before their one-byte
// prefixes so MatchAny prefers the longest operator.
var (
	whitespaceToken = parsly.NewToken(whitespaceCode, "Whitespace", matcher.NewWhiteSpace())
	identifierToken = parsly.NewToken(identifierCode, "Field", &identifierMatcher{})
	eqToken         = parsly.NewToken(eqCode, "==", matcher.NewFragment("=="))
	neToken         = parsly.NewToken(neCode, "!=", matcher.NewFragment("!="))
	leToken         = parsly.NewToken(leCode, "<=", matcher.NewFragment("<="))
	geToken         = parsly.NewToken(geCode, ">=", matcher.NewFragment(">="))
	ltToken         = parsly.NewToken(ltCode, "<", matcher.NewByte('<'))
	gtToken         = parsly.NewToken(gtCode, ">", matcher.NewByte('>'))
	stringToken     = parsly.NewToken(stringCode, "String", &quotedMatcher{})
	numberToken     = parsly.NewToken(numberCode, "Number", &numberMatcher{})
	trueToken       = parsly.NewToken(trueCode, "true", matcher.NewFragment("true"))
	falseToken      = parsly.NewToken(falseCode, "false", matcher.NewFragment("false"))

	operatorTokens = []*parsly.Token{eqToken, neToken, leToken, geToken, ltToken, gtToken}
	literalTokens  = []*parsly.Token{stringToken, numberToken, trueToken, falseToken}
)

var operatorByCode = map[int]Operator{
	eqCode: OpEq,
	neCode: OpNe,
	leCode: OpLe,
	geCode: OpGe,
	ltCode: OpLt,
	gtCode: OpGt,
}

// identifierMatcher matches dotted field names such as amount or risk.level.
// Bytes >= 0x80 are accepted so UTF-8 field names work.
type identifierMatcher struct{}

func (m *identifierMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos
	size := cursor.InputSize

	if pos >= size {
		return 0
	}

	// First character must be a letter or underscore
	if !isIdentStart(input[pos]) {
		return 0
	}

	matched := 1
	for i := pos + 1; i < size; i++ {
		c := input[i]
		if isIdentStart(c) || isDigit(c) || c == '.' {
			matched++
			continue
		}
		break
	}

	// a trailing dot is not part of a field name
	for matched > 1 && input[pos+matched-1] == '.' {
		matched--
	}
	return matched
}

// quotedMatcher matches a single or double quoted string with backslash escapes.
type quotedMatcher struct{}

func (m *quotedMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos
	size := cursor.InputSize

	if pos >= size {
		return 0
	}
	quote := input[pos]
	if quote != '\'' && quote != '"' {
		return 0
	}

	for i := pos + 1; i < size; i++ {
		switch input[i] {
		case '\\':
			i++
		case quote:
			return i - pos + 1
		}
	}
	// unterminated
	return 0
}

// numberMatcher matches an optionally signed decimal with an optional fraction and exponent.
type numberMatcher struct{}

func (m *numberMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos
	size := cursor.InputSize

	i := pos
	if i < size && (input[i] == '-' || input[i] == '+') {
		i++
	}
	digits := 0
	for i < size && isDigit(input[i]) {
		i++
		digits++
	}
	if i < size && input[i] == '.' {
		i++
		for i < size && isDigit(input[i]) {
			i++
			digits++
		}
	}
	if digits == 0 {
		return 0
	}
	if i < size && (input[i] == 'e' || input[i] == 'E') {
		j := i + 1
		if j < size && (input[j] == '-' || input[j] == '+') {
			j++
		}
		exp := 0
		for j < size && isDigit(input[j]) {
			j++
			exp++
		}
		if exp > 0 {
			i = j
		}
	}
	return i - pos
}

func isIdentStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_' || c >= 0x80
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
