package config

// This file holds the shared issue/report types and the static linter for
// Pipeline values. Rule documents are validated by internal/validate, which
// reports through the same Issue type.

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidConfig is matched (errors.Is) by every error that reports
// configuration issues.
var ErrInvalidConfig = errors.New("invalid configuration")

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a configuration warning that should be surfaced
	// to users but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation/lint finding.
//
// Path is a dotted path into the config (e.g. "storage.kind",
// "sources[0].columns[2].actions[1].parameters.Pattern").
type Issue struct {
	Severity IssueSeverity `json:"severity"`
	Path     string        `json:"path"`
	Message  string        `json:"message"`
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// Report is an aggregated validation result. Valid is true when Errors is
// empty; warnings never affect it.
type Report struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}

// NewReport splits issues by severity.
func NewReport(issues []Issue) Report {
	r := Report{Errors: []Issue{}, Warnings: []Issue{}}
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			r.Errors = append(r.Errors, iss)
		} else {
			r.Warnings = append(r.Warnings, iss)
		}
	}
	r.Valid = len(r.Errors) == 0
	return r
}

// ValidationError carries a report with at least one error.
type ValidationError struct {
	Report Report
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Report.Errors))
	for _, iss := range e.Report.Errors {
		msgs = append(msgs, iss.Path+": "+iss.Message)
	}
	return fmt.Sprintf("%s: %d error(s): %s", ErrInvalidConfig, len(e.Report.Errors), strings.Join(msgs, "; "))
}

// Unwrap lets errors.Is match ErrInvalidConfig.
func (e *ValidationError) Unwrap() error { return ErrInvalidConfig }

// ValidatePipeline performs static validation / linting of a Pipeline.
//
// It does not mutate the pipeline and does not open the rule document; that
// is validated separately once loaded. Callers may decide whether to treat
// warnings as fatal.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it is used for metrics labeling and identifying runs",
		})
	}
	issues = append(issues, validateInput(p.Input)...)
	issues = append(issues, validateParser(p.Parser)...)
	issues = append(issues, validateEngine(p.Engine)...)
	issues = append(issues, validateStorage(p.Storage)...)
	issues = append(issues, validateRuntime(p.Runtime)...)

	return issues
}

func validateInput(s Input) []Issue {
	var issues []Issue

	if strings.TrimSpace(s.Kind) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "input.kind",
			Message:  "input.kind must not be empty",
		})
		return issues
	}

	switch s.Kind {
	case "file":
		if strings.TrimSpace(s.File.Path) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "input.file.path",
				Message:  "file input requires a non-empty path",
			})
		}
	case "http":
		u, err := url.Parse(strings.TrimSpace(s.HTTP.URL))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "input.http.url",
				Message:  fmt.Sprintf("http input requires an absolute http(s) url, got %q", s.HTTP.URL),
			})
		}
		if s.HTTP.TimeoutMS < 0 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "input.http.timeout_ms",
				Message:  "timeout_ms must be >= 0",
			})
		}
		if s.HTTP.MaxRetries < 0 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "input.http.max_retries",
				Message:  "max_retries must be >= 0",
			})
		}
		if s.HTTP.InsecureSkipVerify {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "input.http.insecure_skip_verify",
				Message:  "TLS certificate verification is disabled",
			})
		}
	default:
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "input.kind",
			Message:  fmt.Sprintf("unknown input kind %q; ensure a matching implementation exists", s.Kind),
		})
	}

	return issues
}

func validateParser(p Parser) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Kind) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "parser.kind",
			Message:  "parser.kind must not be empty",
		})
		return issues
	}
	if p.Kind != "csv" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "parser.kind",
			Message:  fmt.Sprintf("unsupported parser kind %q; only csv is available", p.Kind),
		})
		return issues
	}

	if !p.Options.Bool("has_header", true) && len(p.Options.StringMap("header_map")) > 0 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "parser.options.header_map",
			Message:  "header_map is ignored when has_header is false; columns are matched by index",
		})
	}
	if c := p.Options.String("comma", ","); len([]rune(c)) != 1 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "parser.options.comma",
			Message:  fmt.Sprintf("comma must be a single character, got %q", c),
		})
	}

	return issues
}

func validateEngine(e EngineConfig) []Issue {
	var issues []Issue

	if strings.TrimSpace(e.Rules) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "engine.rules",
			Message:  "engine.rules must name the rule document",
		})
	}
	if e.LearnedPath != "" && !e.Learn {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "engine.learned_path",
			Message:  "learned_path is set but learn is false; nothing will be written",
		})
	}

	return issues
}

func validateStorage(s Storage) []Issue {
	var issues []Issue

	if strings.TrimSpace(s.Kind) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.kind",
			Message:  "storage.kind must not be empty",
		})
		return issues
	}

	known := map[string]struct{}{
		"postgres": {},
		"mssql":    {},
		"mysql":    {},
		"sqlite":   {},
		"jsonl":    {},
	}
	if _, ok := known[s.Kind]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "storage.kind",
			Message:  fmt.Sprintf("unknown storage kind %q; ensure a matching backend is registered", s.Kind),
		})
	}

	db := s.DB
	if strings.TrimSpace(db.DSN) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.db.dsn",
			Message:  "storage.db.dsn must not be empty",
		})
	}
	if s.Kind != "jsonl" && strings.TrimSpace(db.Table) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.db.table",
			Message:  "storage.db.table must not be empty",
		})
	}
	if len(db.Columns) == 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.db.columns",
			Message:  "storage.db.columns must not be empty; at least one destination column is required",
		})
	}
	for col := range db.Fields {
		found := false
		for _, c := range db.Columns {
			if c == col {
				found = true
				break
			}
		}
		if !found {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "storage.db.fields." + col,
				Message:  fmt.Sprintf("field mapping for %q has no matching entry in columns", col),
			})
		}
	}

	return issues
}

func validateRuntime(r RuntimeConfig) []Issue {
	var issues []Issue

	if r.BatchSize <= 0 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "runtime.batch_size",
			Message:  fmt.Sprintf("batch_size=%d; non-positive batch sizes fall back to the default", r.BatchSize),
		})
	}
	if r.EngineWorkers < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.engine_workers",
			Message:  "engine_workers must not be negative",
		})
	}
	if r.LoaderWorkers < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.loader_workers",
			Message:  "loader_workers must not be negative",
		})
	}
	if r.ChannelBuffer < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.channel_buffer",
			Message:  "channel_buffer must not be negative",
		})
	}

	return issues
}
