// Package engine applies a validated source's column rules to rows and
// harvests the assigned values into flat output records.
//
// An Engine is immutable once built and safe for concurrent use; every row
// gets fresh per-column workspaces. The only shared mutable state is the
// optional lookup.Learner, which serializes its own access.
package engine

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/TheStrul/Sacks-new-sub004/internal/action"
	"github.com/TheStrul/Sacks-new-sub004/internal/config"
	"github.com/TheStrul/Sacks-new-sub004/internal/lookup"
	"github.com/TheStrul/Sacks-new-sub004/internal/pattern"
	"github.com/TheStrul/Sacks-new-sub004/internal/rules"
	"github.com/TheStrul/Sacks-new-sub004/internal/validate"
)

// Engine processes rows for one source.
type Engine struct {
	source  string
	columns []*rules.Column
	env     action.Env
	plan    *validate.Plan
	report  config.Report
	logger  *slog.Logger

	// positions maps each column rule to a cell index, or -1 when the rule
	// names a header that is not present.
	positions []int
}

// Option configures an Engine.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	learner  *lookup.Learner
	header   []string
	patterns []pattern.Option
}

// WithLogger sets the logger used for column traces.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithLearner enables recording of AddIfNotFound aliases.
func WithLearner(l *lookup.Learner) Option {
	return func(o *options) { o.learner = l }
}

// WithHeader binds column rules to cell positions by header name (exact
// match first, then case-insensitive, then as an index). Without a header,
// rules bind by zero-based index only.
func WithHeader(header []string) Option {
	return func(o *options) { o.header = header }
}

// WithPatternOptions tunes the pattern resolver (cache size, match timeout).
func WithPatternOptions(opts ...pattern.Option) Option {
	return func(o *options) { o.patterns = append(o.patterns, opts...) }
}

// New validates doc for source and builds an Engine. A document with errors
// is refused with a *validate.Error carrying the full report.
func New(doc *config.Document, source string, opts ...Option) (*Engine, error) {
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	report, plan := validate.Source(doc, source, o.patterns...)
	if !report.Valid {
		return nil, &validate.Error{Report: report}
	}

	e := &Engine{
		source:  plan.Source,
		columns: plan.Columns,
		env:     action.Env{Tables: plan.Tables, Patterns: plan.Patterns},
		plan:    plan,
		report:  report,
		logger:  o.logger.With("source", plan.Source),
	}
	if o.learner != nil {
		e.env.Learner = o.learner
	}

	e.positions = bindColumns(plan.Columns, o.header)
	return e, nil
}

// bindColumns resolves each rule to a cell index. Without a header only
// numeric identifiers bind; anything else stays unbound (-1).
func bindColumns(cols []*rules.Column, header []string) []int {
	pos := make([]int, len(cols))
	for i, c := range cols {
		if header == nil {
			pos[i] = -1
			if n, err := strconv.Atoi(c.Name); err == nil && n >= 0 {
				pos[i] = n
			}
			continue
		}
		pos[i] = headerIndex(header, c.Name)
	}
	return pos
}

func headerIndex(header []string, name string) int {
	for i, h := range header {
		if strings.TrimSpace(h) == name {
			return i
		}
	}
	k := lookup.Fold(name)
	for i, h := range header {
		if lookup.Fold(h) == k {
			return i
		}
	}
	if n, err := strconv.Atoi(name); err == nil && n >= 0 && n < len(header) {
		return n
	}
	return -1
}

// Close releases engine resources. It does not close the Learner.
func (e *Engine) Close() {
	e.plan.Close()
}

// Source returns the source name the engine runs.
func (e *Engine) Source() string { return e.source }

// Report returns the validation report, which may carry warnings.
func (e *Engine) Report() config.Report { return e.report }

// Tables returns the merged lookup tables of the source.
func (e *Engine) Tables() lookup.Tables { return e.env.Tables }

// Columns returns the column identifiers in rule order.
func (e *Engine) Columns() []string {
	out := make([]string, len(e.columns))
	for i, c := range e.columns {
		out[i] = c.Name
	}
	return out
}

// Unbound lists column rules not bound to any cell position. Process reads
// them as ""; ProcessMap binds by name and is unaffected.
func (e *Engine) Unbound() []string {
	var out []string
	for i, p := range e.positions {
		if p < 0 {
			out = append(out, e.columns[i].Name)
		}
	}
	return out
}

// Result is the outcome of one row.
type Result struct {
	Line     int
	Record   Record
	Failures int
}

// Process runs every column rule over cells. Cells beyond the row's length
// and unbound columns read as "". Later columns overwrite fields assigned
// by earlier ones.
func (e *Engine) Process(cells []string) Result {
	var res Result
	rec := make(Record)
	for i, col := range e.columns {
		text := ""
		if p := e.positions[i]; p >= 0 && p < len(cells) {
			text = cells[p]
		}
		r := col.Run(text, e.env, e.logger)
		res.Failures += r.Failures
		for k, v := range r.Bag.Harvest() {
			rec[k] = v
		}
	}
	res.Record = rec
	return res
}

// ProcessMap runs every column rule over named cells. Names match the rule
// column exactly, then case-insensitively.
func (e *Engine) ProcessMap(cells map[string]string) Result {
	folded := make(map[string]string, len(cells))
	for k, v := range cells {
		folded[lookup.Fold(k)] = v
	}
	row := make([]string, len(e.columns))
	positions := make([]int, len(e.columns))
	for i, col := range e.columns {
		positions[i] = i
		if v, ok := cells[col.Name]; ok {
			row[i] = v
		} else {
			row[i] = folded[lookup.Fold(col.Name)]
		}
	}
	// Run against a shallow copy bound to the map order.
	cp := *e
	cp.positions = positions
	return cp.Process(row)
}
