// Package condition parses and evaluates the single-comparison guards that
// gate actions, e.g. `Product.Unit==oz` or `Size.Valid != "true"`.
//
// The grammar is small: one workspace key, one operator (== or
// !=) and one literal. There is no composition, no ordering operators and no
// type coercion; values compare as strings.
package condition

import (
	"fmt"
	"strings"
)

// Operator is a comparison operator.
type Operator string

const (
	Equal    Operator = "=="
	NotEqual Operator = "!="
)

// Getter reads workspace values. Absent keys read as "".
type Getter interface {
	Value(key string) string
}

// Condition is a parsed guard.
type Condition struct {
	Key     string
	Op      Operator
	Literal string
}

// ParseError reports a malformed condition expression.
type ParseError struct {
	Expr   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("condition %q: %s", e.Expr, e.Reason)
}

// Parse parses expr. An empty (or blank) expression yields a nil Condition,
// which always evaluates to true.
func Parse(expr string) (*Condition, error) {
	s := strings.TrimSpace(expr)
	if s == "" {
		return nil, nil
	}

	eq := strings.Index(s, string(Equal))
	ne := strings.Index(s, string(NotEqual))
	var (
		at int
		op Operator
	)
	switch {
	case eq < 0 && ne < 0:
		return nil, &ParseError{Expr: expr, Reason: "expected <key>==<value> or <key>!=<value>"}
	case ne < 0 || (eq >= 0 && eq < ne):
		at, op = eq, Equal
	default:
		at, op = ne, NotEqual
	}

	key := strings.TrimSpace(s[:at])
	lit := strings.TrimSpace(s[at+len(op):])
	if key == "" {
		return nil, &ParseError{Expr: expr, Reason: "missing key"}
	}
	if strings.ContainsAny(key, " \t<>=!") {
		return nil, &ParseError{Expr: expr, Reason: fmt.Sprintf("invalid key %q", key)}
	}
	if strings.Contains(lit, string(Equal)) || strings.Contains(lit, string(NotEqual)) {
		return nil, &ParseError{Expr: expr, Reason: "only a single comparison is supported"}
	}
	return &Condition{Key: key, Op: op, Literal: unquote(lit)}, nil
}

// unquote strips one pair of matching single or double quotes.
func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// Eval evaluates c against g. A nil condition is always true.
func (c *Condition) Eval(g Getter) bool {
	if c == nil {
		return true
	}
	v := g.Value(c.Key)
	if c.Op == NotEqual {
		return v != c.Literal
	}
	return v == c.Literal
}

func (c *Condition) String() string {
	if c == nil {
		return ""
	}
	return c.Key + string(c.Op) + c.Literal
}
