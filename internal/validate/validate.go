// Package validate checks a rule document before any row is processed and,
// for a valid source, returns the compiled plan the engine runs.
//
// Validation is aggregated: every problem in the document is reported in one
// config.Report instead of stopping at the first.
package validate

import (
	"fmt"
	"strings"

	"github.com/TheStrul/Sacks-new-sub004/internal/action"
	"github.com/TheStrul/Sacks-new-sub004/internal/config"
	"github.com/TheStrul/Sacks-new-sub004/internal/lookup"
	"github.com/TheStrul/Sacks-new-sub004/internal/pattern"
	"github.com/TheStrul/Sacks-new-sub004/internal/rules"
)

// Error is returned when a document has error-severity issues. It matches
// config.ErrInvalidConfig with errors.Is.
type Error = config.ValidationError

// Plan is the compiled form of one valid source.
type Plan struct {
	Source   string
	Tables   lookup.Tables
	Patterns *pattern.Resolver
	Columns  []*rules.Column
}

// Close releases the pattern cache.
func (p *Plan) Close() {
	if p != nil && p.Patterns != nil {
		p.Patterns.Close()
	}
}

// Source validates the named source of doc (shared lookups included) and
// compiles it. The plan is nil unless the report is valid.
func Source(doc *config.Document, name string, opts ...pattern.Option) (config.Report, *Plan) {
	if doc == nil {
		return config.NewReport([]config.Issue{{Severity: config.SeverityError, Path: "", Message: "document is nil"}}), nil
	}
	src, err := doc.Source(name)
	if err != nil {
		return config.NewReport([]config.Issue{{Severity: config.SeverityError, Path: "sources", Message: err.Error()}}), nil
	}
	idx := sourceIndex(doc, src)

	var issues []config.Issue
	issues = append(issues, tableIssues("lookups", doc.Lookups)...)
	plan, sissues := compileSource(doc, idx, opts)
	issues = append(issues, sissues...)

	report := config.NewReport(issues)
	if !report.Valid {
		plan.Close()
		return report, nil
	}
	return report, plan
}

// Document validates every source of doc.
func Document(doc *config.Document, opts ...pattern.Option) config.Report {
	if doc == nil {
		return config.NewReport([]config.Issue{{Severity: config.SeverityError, Path: "", Message: "document is nil"}})
	}
	var issues []config.Issue
	issues = append(issues, tableIssues("lookups", doc.Lookups)...)

	if len(doc.Sources) == 0 {
		issues = append(issues, config.Issue{
			Severity: config.SeverityError,
			Path:     "sources",
			Message:  "document declares no sources",
		})
	}
	seen := make(map[string]int)
	for i, s := range doc.Sources {
		k := strings.ToLower(strings.TrimSpace(s.Name))
		if k == "" {
			issues = append(issues, config.Issue{
				Severity: config.SeverityError,
				Path:     fmt.Sprintf("sources[%d].name", i),
				Message:  "source name must not be empty",
			})
		} else if prev, dup := seen[k]; dup {
			issues = append(issues, config.Issue{
				Severity: config.SeverityError,
				Path:     fmt.Sprintf("sources[%d].name", i),
				Message:  fmt.Sprintf("source %q is already declared at sources[%d]", s.Name, prev),
			})
		} else {
			seen[k] = i
		}

		plan, sissues := compileSource(doc, i, opts)
		plan.Close()
		issues = append(issues, sissues...)
	}
	return config.NewReport(issues)
}

func sourceIndex(doc *config.Document, src *config.Source) int {
	for i := range doc.Sources {
		if &doc.Sources[i] == src {
			return i
		}
	}
	return -1
}

func compileSource(doc *config.Document, i int, opts []pattern.Option) (*Plan, []config.Issue) {
	src := doc.Sources[i]
	path := fmt.Sprintf("sources[%d]", i)

	issues := tableIssues(path+".lookups", src.Lookups)

	tables := lookup.Merge(doc.Lookups, src.Lookups)
	resolver, err := pattern.NewResolver(tables, opts...)
	if err != nil {
		issues = append(issues, config.Issue{Severity: config.SeverityError, Path: path, Message: err.Error()})
		return nil, issues
	}
	plan := &Plan{Source: src.Name, Tables: tables, Patterns: resolver}
	env := action.Env{Tables: tables, Patterns: resolver}

	if len(src.Columns) == 0 {
		issues = append(issues, config.Issue{
			Severity: config.SeverityError,
			Path:     path + ".columns",
			Message:  "source has no column rules",
		})
	}

	seen := make(map[string]int)
	for j, rule := range src.Columns {
		cpath := fmt.Sprintf("%s.columns[%d]", path, j)
		if k := lookup.Fold(string(rule.Column)); k != "" {
			if prev, dup := seen[k]; dup {
				issues = append(issues, config.Issue{
					Severity: config.SeverityWarning,
					Path:     cpath + ".column",
					Message:  fmt.Sprintf("column %q already has a rule at columns[%d]; both run independently", rule.Column, prev),
				})
			} else {
				seen[k] = j
			}
		}
		col, cissues := rules.Compile(rule, cpath, env)
		issues = append(issues, cissues...)
		if col != nil {
			plan.Columns = append(plan.Columns, col)
		}
	}
	return plan, issues
}

// tableIssues reports alias conflicts (errors) and canonicals missing from
// their own aliases (warnings) for each authored table.
func tableIssues(path string, ts lookup.Tables) []config.Issue {
	var issues []config.Issue
	for _, name := range ts.Names() {
		t := ts[name]
		tpath := path + "." + name
		for _, c := range t.Conflicts() {
			issues = append(issues, config.Issue{
				Severity: config.SeverityError,
				Path:     tpath,
				Message:  c.Error(),
			})
		}
		for _, canon := range t.MissingSelfAliases() {
			issues = append(issues, config.Issue{
				Severity: config.SeverityWarning,
				Path:     tpath,
				Message:  fmt.Sprintf("canonical %q is not among its own aliases", canon),
			})
		}
	}
	return issues
}
