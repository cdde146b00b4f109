// Command parsingengine validates rule documents and runs record
// transformation jobs: CSV rows in, engine records out to a storage backend.
//
//	parsingengine -config job.json                        run a job
//	parsingengine -config job.json -validate              print the validation report
//	parsingengine -rules rules.yaml -source S -validate   validate a rule document only
//	parsingengine -rules rules.yaml -dump-lookups         print lookup tables (grouped shape)
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/TheStrul/Sacks-new-sub004/internal/config"
	"github.com/TheStrul/Sacks-new-sub004/internal/logging"
	"github.com/TheStrul/Sacks-new-sub004/internal/lookup"
	"github.com/TheStrul/Sacks-new-sub004/internal/metrics"
	"github.com/TheStrul/Sacks-new-sub004/internal/metrics/datadog"
	"github.com/TheStrul/Sacks-new-sub004/internal/metrics/prompush"
	"github.com/TheStrul/Sacks-new-sub004/internal/pipeline"
	"github.com/TheStrul/Sacks-new-sub004/internal/validate"

	// register all backends with the storage factory.
	_ "github.com/TheStrul/Sacks-new-sub004/internal/storage/all"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type flags struct {
	cfgPath     string
	rulesPath   string
	source      string
	learnedPath string
	validate    bool
	dumpLookups bool
	format      string

	metricsBackend string
	pushGatewayURL string
	statsdAddr     string

	log logging.Config
}

func parseFlags(args []string, stderr io.Writer) (flags, error) {
	var f flags
	fs := flag.NewFlagSet("parsingengine", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&f.cfgPath, "config", "", "pipeline config JSON path")
	fs.StringVar(&f.rulesPath, "rules", "", "rule document (JSON or YAML); overrides engine.rules")
	fs.StringVar(&f.source, "source", "", "source name within the rule document; overrides engine.source")
	fs.StringVar(&f.learnedPath, "learned", "", "write aliases learned via AddIfNotFound to this file (enables learning)")
	fs.BoolVar(&f.validate, "validate", false, "validate the configuration, print the report and exit")
	fs.BoolVar(&f.dumpLookups, "dump-lookups", false, "print the lookup tables in grouped shape and exit")
	fs.StringVar(&f.format, "format", "json", "output format for -dump-lookups (json|yaml)")

	fs.StringVar(&f.metricsBackend, "metrics-backend", "", "metrics backend: pushgateway, datadog or none (env METRICS_BACKEND)")
	fs.StringVar(&f.pushGatewayURL, "pushgateway-url", "", "Pushgateway base URL (env PUSHGATEWAY_URL)")
	fs.StringVar(&f.statsdAddr, "statsd-addr", "", "DogStatsD address (env DD_DOGSTATSD_URL)")

	fs.StringVar(&f.log.Level, "log-level", "info", "log level: debug, info, warn, error")
	fs.StringVar(&f.log.Format, "log-format", "text", "log format: text or json")
	fs.StringVar(&f.log.File, "log-file", "", "write logs to this file (rotated) instead of stderr")
	fs.IntVar(&f.log.MaxSizeMB, "log-max-size", 100, "rotate the log file after this many megabytes")
	fs.IntVar(&f.log.MaxBackups, "log-max-backups", 5, "rotated log files to keep")

	if err := fs.Parse(args); err != nil {
		return f, err
	}
	if f.cfgPath == "" && f.rulesPath == "" {
		return f, errors.New("one of -config or -rules is required")
	}
	return f, nil
}

// run is main without the process exit, so tests can drive it.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	f, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, err)
		return 2
	}

	logger, closer, err := logging.New(f.log)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	defer closer.Close()
	slog.SetDefault(logger)

	p, err := resolvePipeline(f)
	if err != nil {
		logger.Error("config", "err", err)
		return 1
	}

	switch {
	case f.dumpLookups:
		return dumpLookups(p, f, stdout, logger)
	case f.validate:
		return printReport(p, f, stdout, logger)
	}

	// Pipeline checks gate a run; the rule document is checked by the engine.
	rep := config.NewReport(config.ValidatePipeline(p))
	for _, iss := range rep.Warnings {
		logger.Warn("configuration", "path", iss.Path, "msg", iss.Message)
	}
	if !rep.Valid {
		for _, iss := range rep.Errors {
			logger.Error("invalid configuration", "path", iss.Path, "msg", iss.Message)
		}
		return 1
	}

	flush := setupMetrics(f, p.Job, logger)
	defer flush()

	logger.Info("pipeline",
		"input", firstNonEmpty(p.Input.File.Path, p.Input.HTTP.URL),
		"rules", p.Engine.Rules,
		"source", p.Engine.Source,
		"storage", p.Storage.Kind,
		"table", p.Storage.DB.Table,
	)
	stats, err := pipeline.Run(ctx, p, pipeline.WithLogger(logger))
	if err != nil {
		logger.Error("run failed", "err", err, "run_id", stats.RunID)
		return 1
	}
	logger.Info("completed", "run_id", stats.RunID, "elapsed", stats.Elapsed.String(), "loaded", stats.Loaded)
	return 0
}

// resolvePipeline loads -config (when given) and applies flag overrides.
func resolvePipeline(f flags) (config.Pipeline, error) {
	var p config.Pipeline
	if f.cfgPath != "" {
		var err error
		if p, err = config.LoadPipeline(f.cfgPath); err != nil {
			return p, err
		}
	}
	if f.rulesPath != "" {
		p.Engine.Rules = f.rulesPath
	}
	if f.source != "" {
		p.Engine.Source = f.source
	}
	if f.learnedPath != "" {
		p.Engine.Learn = true
		p.Engine.LearnedPath = f.learnedPath
	}
	if p.Engine.Rules == "" {
		return p, errors.New("no rule document: set engine.rules or -rules")
	}
	return p, nil
}

// printReport validates the rule document (one source when named, else all)
// and, with -config, the pipeline. The combined report is printed as JSON.
func printReport(p config.Pipeline, f flags, stdout io.Writer, logger *slog.Logger) int {
	var issues []config.Issue
	if f.cfgPath != "" {
		issues = append(issues, config.ValidatePipeline(p)...)
	}

	doc, err := config.LoadDocument(p.Engine.Rules)
	var verr *config.ValidationError
	switch {
	case errors.As(err, &verr):
		issues = append(issues, verr.Report.Errors...)
		issues = append(issues, verr.Report.Warnings...)
	case err != nil:
		logger.Error("rules", "err", err)
		return 1
	case p.Engine.Source != "" || len(doc.Sources) == 1:
		rep, plan := validate.Source(doc, p.Engine.Source)
		plan.Close()
		issues = append(issues, rep.Errors...)
		issues = append(issues, rep.Warnings...)
	default:
		rep := validate.Document(doc)
		issues = append(issues, rep.Errors...)
		issues = append(issues, rep.Warnings...)
	}

	rep := config.NewReport(issues)
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		logger.Error("write report", "err", err)
		return 1
	}
	if !rep.Valid {
		return 1
	}
	return 0
}

// dumpLookups prints the tables a source sees (shared plus its own) or, with
// no source selected, the shared tables.
func dumpLookups(p config.Pipeline, f flags, stdout io.Writer, logger *slog.Logger) int {
	doc, err := config.LoadDocument(p.Engine.Rules)
	if err != nil {
		logger.Error("rules", "err", err)
		return 1
	}

	tables := doc.Lookups
	if p.Engine.Source != "" {
		rep, plan := validate.Source(doc, p.Engine.Source)
		if !rep.Valid {
			logger.Error("rules", "err", &validate.Error{Report: rep})
			return 1
		}
		tables = plan.Tables
		defer plan.Close()
	}
	if tables == nil {
		tables = lookup.Tables{}
	}

	format := config.FormatJSON
	if strings.EqualFold(f.format, "yaml") || strings.EqualFold(f.format, "yml") {
		format = config.FormatYAML
	}
	if err := pipeline.WriteTables(stdout, tables, format); err != nil {
		logger.Error("dump lookups", "err", err)
		return 1
	}
	return 0
}

// setupMetrics installs the selected backend and returns its flush func.
// Backend choice: flag, then METRICS_BACKEND, then none.
func setupMetrics(f flags, job string, logger *slog.Logger) func() {
	backendName := firstNonEmpty(f.metricsBackend, os.Getenv("METRICS_BACKEND"))
	if job == "" {
		job = "parsingengine"
	}

	var (
		b   metrics.Backend
		err error
	)
	switch backendName {
	case "pushgateway":
		gwURL := firstNonEmpty(f.pushGatewayURL, os.Getenv("PUSHGATEWAY_URL"), "http://localhost:9091")
		b, err = prompush.NewBackend(job, gwURL)
		logger.Info("metrics", "backend", backendName, "url", gwURL, "job", job)
	case "datadog":
		addr := firstNonEmpty(f.statsdAddr, os.Getenv("DD_DOGSTATSD_URL"), "127.0.0.1:8125")
		b, err = datadog.NewBackend(datadog.Config{
			Addr:       addr,
			Namespace:  "parsingengine.",
			GlobalTags: []string{"job:" + job},
		})
		logger.Info("metrics", "backend", backendName, "addr", addr, "job", job)
	case "", "none":
		logger.Debug("metrics disabled")
		return func() {}
	default:
		logger.Warn("unknown metrics backend; metrics disabled", "backend", backendName)
		return func() {}
	}
	if err != nil {
		logger.Warn("metrics backend init failed; using nop", "backend", backendName, "err", err)
		return func() {}
	}

	metrics.SetBackend(b)
	return func() {
		if err := metrics.Flush(); err != nil {
			logger.Warn("metrics flush", "err", err)
		}
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
