// Package rules runs a column's ordered action pipeline over one cell.
package rules

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/TheStrul/Sacks-new-sub004/internal/action"
	"github.com/TheStrul/Sacks-new-sub004/internal/condition"
	"github.com/TheStrul/Sacks-new-sub004/internal/config"
	"github.com/TheStrul/Sacks-new-sub004/internal/workspace"
)

// Step is one compiled action with its guard.
type Step struct {
	Action action.Action
	Cond   *condition.Condition
	Assign bool
}

// Column is a compiled column rule.
type Column struct {
	Name  string
	Trace bool
	Steps []Step
}

// Compile builds a Column from rule. Every action is compiled even after an
// earlier one fails so all issues surface together; the Column is nil when
// any error-severity issue was found.
func Compile(rule config.ColumnRule, path string, env action.Env) (*Column, []config.Issue) {
	var issues []config.Issue
	col := &Column{Name: string(rule.Column), Trace: rule.Trace}
	bad := false

	if col.Name == "" {
		issues = append(issues, config.Issue{
			Severity: config.SeverityError,
			Path:     path + ".column",
			Message:  "column must name a header or an index",
		})
		bad = true
	}
	if len(rule.Actions) == 0 {
		issues = append(issues, config.Issue{
			Severity: config.SeverityError,
			Path:     path + ".actions",
			Message:  "column rule has no actions",
		})
		bad = true
	}

	for i, def := range rule.Actions {
		apath := fmt.Sprintf("%s.actions[%d]", path, i)

		cond, err := condition.Parse(def.Condition)
		if err != nil {
			issues = append(issues, config.Issue{
				Severity: config.SeverityError,
				Path:     apath + ".condition",
				Message:  err.Error(),
			})
			bad = true
		}

		a, aissues := action.Compile(def, apath, env)
		issues = append(issues, aissues...)
		if a == nil {
			bad = true
			continue
		}
		col.Steps = append(col.Steps, Step{Action: a, Cond: cond, Assign: def.Assign})
	}

	if bad {
		return nil, issues
	}
	return col, issues
}

// Result summarizes one column run.
type Result struct {
	Bag      *workspace.Bag
	Failures int
	Skipped  int
}

// Run seeds a fresh bag with text and executes every step in order. A failed
// action never stops the column; later steps may react to <Output>.Valid.
func (c *Column) Run(text string, env action.Env, logger *slog.Logger) Result {
	b := workspace.New(text)
	res := Result{Bag: b}
	if c.Trace && logger == nil {
		logger = slog.Default()
	}

	for i, s := range c.Steps {
		a := s.Action
		if !s.Cond.Eval(b) {
			res.Skipped++
			if c.Trace {
				c.trace(logger, i, s, b, "", false, true)
			}
			continue
		}

		input := b.Value(a.Input())
		out := a.Execute(b, env)
		if out.Written {
			if s.Assign {
				b.Assign(a.Output(), out.Value)
			} else {
				b.Set(a.Output(), out.Value)
			}
		}
		switch {
		case out.Skipped:
			res.Skipped++
		case !out.OK:
			res.Failures++
		}

		if c.Trace {
			c.trace(logger, i, s, b, input, out.OK, out.Skipped)
		}
	}
	return res
}

// trace logs at Info: Trace is enabled per column and must show under the
// default log level.
func (c *Column) trace(logger *slog.Logger, i int, s Step, b *workspace.Bag, input string, ok, skipped bool) {
	a := s.Action
	logger.LogAttrs(context.Background(), slog.LevelInfo, "action trace",
		slog.String("column", c.Name),
		slog.Int("step", i),
		slog.String("op", string(a.Op())),
		slog.String("condition", s.Cond.String()),
		slog.String("input_key", a.Input()),
		slog.String("input", input),
		slog.String("output_key", a.Output()),
		slog.String("output", b.Value(a.Output())),
		slog.Bool("ok", ok),
		slog.Bool("skipped", skipped),
	)
}
