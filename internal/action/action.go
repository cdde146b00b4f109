// Package action implements the closed set of column actions: assign, find,
// map (mapping), switch (case), caseformat, concat, convert, split and clear.
//
// Each op is a concrete type compiled once from a config.ActionDef by
// Compile, which also checks the op's parameters. At run time an action
// reads its input from a workspace.Bag and returns an Outcome; the caller
// writes the primary output. Derived keys (.Valid, .Clean, [i], .Length,
// named captures) are written by the action itself.
package action

import (
	"strings"

	"github.com/TheStrul/Sacks-new-sub004/internal/lookup"
	"github.com/TheStrul/Sacks-new-sub004/internal/pattern"
	"github.com/TheStrul/Sacks-new-sub004/internal/workspace"
)

// Op names an action kind.
type Op string

const (
	OpAssign     Op = "assign"
	OpFind       Op = "find"
	OpMap        Op = "map"
	OpSwitch     Op = "switch"
	OpCaseFormat Op = "caseformat"
	OpConcat     Op = "concat"
	OpConvert    Op = "convert"
	OpSplit      Op = "split"
	OpClear      Op = "clear"
)

var opNames = map[string]Op{
	"assign":     OpAssign,
	"find":       OpFind,
	"map":        OpMap,
	"mapping":    OpMap,
	"switch":     OpSwitch,
	"case":       OpSwitch,
	"caseformat": OpCaseFormat,
	"concat":     OpConcat,
	"convert":    OpConvert,
	"split":      OpSplit,
	"clear":      OpClear,
}

// ParseOp resolves an authored op name (case-insensitive, aliases included).
func ParseOp(s string) (Op, bool) {
	op, ok := opNames[strings.ToLower(strings.TrimSpace(s))]
	return op, ok
}

// Outcome is the result of one action execution.
type Outcome struct {
	// Value is written to the action output when Written is set.
	Value   string
	Written bool
	// OK is false when the action failed (no match, unknown alias, parse
	// error, strict split mismatch).
	OK bool
	// Skipped is set when the action decided not to run, e.g. a convert
	// whose unit key does not hold the source unit.
	Skipped bool
}

func wrote(v string) Outcome { return Outcome{Value: v, Written: true, OK: true} }

var failed = Outcome{}

// Learner records aliases accepted by AddIfNotFound.
type Learner interface {
	Learn(table, alias string) string
}

// Env is what actions may consult besides the bag. It is shared read-only
// by every row.
type Env struct {
	Tables   lookup.Tables
	Patterns *pattern.Resolver
	// Learner is optional. Without it AddIfNotFound accepts the input as its
	// own canonical and records nothing.
	Learner Learner
}

// Action is a compiled action.
type Action interface {
	Op() Op
	Input() string
	Output() string
	Execute(b *workspace.Bag, env Env) Outcome
}

type base struct {
	op  Op
	in  string
	out string
}

func (a base) Op() Op         { return a.op }
func (a base) Input() string  { return a.in }
func (a base) Output() string { return a.out }
