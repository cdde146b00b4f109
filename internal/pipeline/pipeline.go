// Package pipeline runs a configured job end to end: it reads CSV rows from
// the input, applies the rule engine with a pool of workers, optionally drops
// duplicate records, and loads the rest into the storage backend in batches.
//
// Stages are connected by bounded channels, so peak memory stays around
// O(batch_size + channel_buffer). The first fatal error (source, loader)
// cancels every stage; bad CSV lines and failed actions are counted and
// summarized instead.
//
//	reader (1) → engine workers (N) → collector (dedup, map) → loaders (M)
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/TheStrul/Sacks-new-sub004/internal/config"
	"github.com/TheStrul/Sacks-new-sub004/internal/datasource"
	"github.com/TheStrul/Sacks-new-sub004/internal/datasource/file"
	"github.com/TheStrul/Sacks-new-sub004/internal/datasource/httpds"
	"github.com/TheStrul/Sacks-new-sub004/internal/engine"
	"github.com/TheStrul/Sacks-new-sub004/internal/lookup"
	"github.com/TheStrul/Sacks-new-sub004/internal/metrics"
	csvparser "github.com/TheStrul/Sacks-new-sub004/internal/parser/csv"
	"github.com/TheStrul/Sacks-new-sub004/internal/storage"
)

// Number of sample messages kept per aggregated error class.
const thisMany = 3

// Function variables used as test seams.
var (
	newRepositoryFn = storage.New
	openSourceFn    = openSource
	loadDocumentFn  = config.LoadDocument
)

// Stats summarizes a run. Every CSV data line is counted once as either
// ParseErrors or Processed; Processed rows end up Empty, Duplicates or
// offered to the loader.
type Stats struct {
	RunID          string
	ParseErrors    int64
	Processed      int64
	Empty          int64
	Duplicates     int64
	Loaded         int64
	Batches        int64
	ActionFailures int64
	Unbound        []string
	Elapsed        time.Duration
}

// counters holds cross-goroutine statistics for a run.
type counters struct {
	parseErrors    atomic.Int64
	processed      atomic.Int64
	empty          atomic.Int64
	duplicates     atomic.Int64
	loaded         atomic.Int64
	batches        atomic.Int64
	actionFailures atomic.Int64
}

// runtimeConfig is the resolved concurrency and buffering for a run: config
// values win, then environment variables, then defaults.
type runtimeConfig struct {
	engineWorkers int
	loaderWorkers int
	batchSize     int
	bufferSize    int
}

func newRuntimeConfig(spec config.Pipeline) runtimeConfig {
	return runtimeConfig{
		engineWorkers: pickInt(spec.Runtime.EngineWorkers, getenvInt("ENGINE_WORKERS", runtime.NumCPU())),
		loaderWorkers: pickInt(spec.Runtime.LoaderWorkers, getenvInt("ENGINE_LOADER_WORKERS", 1)),
		batchSize:     pickInt(spec.Runtime.BatchSize, getenvInt("ENGINE_BATCH_SIZE", 1000)),
		bufferSize:    pickInt(spec.Runtime.ChannelBuffer, getenvInt("ENGINE_CH_BUFFER", 1024)),
	}
}

// Option configures Run.
type Option func(*runOptions)

type runOptions struct {
	logger *slog.Logger
	doc    *config.Document
}

// WithLogger sets the logger for the run; the default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *runOptions) { o.logger = l }
}

// WithDocument supplies an already loaded rule document instead of reading
// spec.Engine.Rules.
func WithDocument(doc *config.Document) Option {
	return func(o *runOptions) { o.doc = doc }
}

// Run executes spec. It returns the run statistics even when it fails.
func Run(ctx context.Context, spec config.Pipeline, opts ...Option) (Stats, error) {
	var o runOptions
	for _, fn := range opts {
		fn(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	start := time.Now()
	stats := Stats{RunID: uuid.NewString()}
	log := o.logger.With("job", spec.Job, "run_id", stats.RunID)

	err := run(ctx, spec, o.doc, log, &stats)
	stats.Elapsed = time.Since(start)
	metrics.RecordStep(spec.Job, "run", err, stats.Elapsed)
	return stats, err
}

func run(ctx context.Context, spec config.Pipeline, doc *config.Document, log *slog.Logger, stats *Stats) error {
	rt := newRuntimeConfig(spec)
	log.Info("stream runtime",
		"engine_workers", rt.engineWorkers,
		"loaders", rt.loaderWorkers,
		"batch", rt.batchSize,
		"buffer", rt.bufferSize,
	)

	if doc == nil {
		t0 := time.Now()
		d, err := loadDocumentFn(spec.Engine.Rules)
		metrics.RecordStep(spec.Job, "load_rules", err, time.Since(t0))
		if err != nil {
			return err
		}
		doc = d
	}

	src, err := openSourceFn(ctx, spec)
	if err != nil {
		return fmt.Errorf("source open: %w", err)
	}
	reader, err := csvparser.NewReader(src, spec.Parser.Options)
	if err != nil {
		return err
	}
	// Stream closes the source too; a second Close is harmless.
	defer reader.Close()

	var learner *lookup.Learner
	engineOpts := []engine.Option{engine.WithHeader(reader.Header()), engine.WithLogger(log)}
	if spec.Engine.Learn {
		learner = lookup.NewLearner()
		defer learner.Close()
		engineOpts = append(engineOpts, engine.WithLearner(learner))
	}

	eng, err := engine.New(doc, spec.Engine.Source, engineOpts...)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer eng.Close()
	for _, w := range eng.Report().Warnings {
		log.Warn("rules", "path", w.Path, "msg", w.Message)
	}
	if stats.Unbound = eng.Unbound(); len(stats.Unbound) > 0 {
		log.Warn("column rules without a matching input column read empty text", "columns", stats.Unbound)
	}

	repo, err := initRepository(ctx, spec)
	if err != nil {
		return err
	}
	defer repo.Close()

	if spec.Storage.DB.AutoCreateTable {
		if err := storage.EnsureTable(ctx, storageConfig(spec), repo); err != nil {
			return fmt.Errorf("apply DDL: %w", err)
		}
		log.Info("table ensured", "table", spec.Storage.DB.Table)
	}

	var c counters
	parseAgg := newErrAgg(thisMany)
	runErr := stream(ctx, spec, rt, reader, eng, repo, &c, parseAgg, log)

	stats.ParseErrors = c.parseErrors.Load()
	stats.Processed = c.processed.Load()
	stats.Empty = c.empty.Load()
	stats.Duplicates = c.duplicates.Load()
	stats.Loaded = c.loaded.Load()
	stats.Batches = c.batches.Load()
	stats.ActionFailures = c.actionFailures.Load()

	recordMetrics(spec.Job, eng.Source(), stats)
	logParseSummary(log, parseAgg)
	logGlobalSummary(log, stats)

	if runErr != nil {
		return runErr
	}
	if learner != nil && spec.Engine.LearnedPath != "" {
		if err := writeLearned(spec.Engine.LearnedPath, learner.Snapshot()); err != nil {
			return err
		}
		log.Info("learned aliases written", "path", spec.Engine.LearnedPath)
	}
	return nil
}

// stream wires the stages and blocks until all of them finish.
func stream(
	ctx context.Context,
	spec config.Pipeline,
	rt runtimeConfig,
	reader *csvparser.Reader,
	eng *engine.Engine,
	repo storage.Repository,
	c *counters,
	parseAgg *errAgg,
	log *slog.Logger,
) error {
	mapper := storage.NewMapper(spec.Storage.DB)
	columns := mapper.Columns()

	rowCh := make(chan engine.Row, rt.bufferSize)
	resCh := make(chan engine.Result, rt.bufferSize)
	loadCh := make(chan []any, rt.bufferSize)

	g, gctx := errgroup.WithContext(ctx)

	// 1) Reader.
	g.Go(func() error {
		defer close(rowCh)
		err := reader.Stream(gctx, rowCh, func(line int, err error) {
			c.parseErrors.Add(1)
			parseAgg.add(fmt.Sprintf("line=%d: %v", line, err))
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("read: %w", err)
		}
		return err
	})

	// 2) Engine workers.
	g.Go(func() error {
		defer close(resCh)
		return eng.Stream(gctx, rt.engineWorkers, rowCh, resCh)
	})

	// 3) Collector: count, drop empty and duplicate records, map to rows.
	g.Go(func() error {
		defer close(loadCh)
		var seen map[uint64]struct{}
		if spec.Engine.Dedup {
			seen = make(map[uint64]struct{})
		}
		for res := range resCh {
			c.processed.Add(1)
			if res.Failures > 0 {
				c.actionFailures.Add(int64(res.Failures))
			}
			if mapper.Empty(res.Record) {
				c.empty.Add(1)
				continue
			}
			if seen != nil {
				fp := res.Record.Fingerprint()
				if _, dup := seen[fp]; dup {
					c.duplicates.Add(1)
					log.Debug("duplicate record dropped", "line", res.Line)
					continue
				}
				seen[fp] = struct{}{}
			}
			select {
			case loadCh <- mapper.Row(res.Record):
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	// 4) Loaders.
	copyFn := func(ctx context.Context, cols []string, rows [][]any) (int64, error) {
		n, err := repo.CopyFrom(ctx, cols, rows)
		if err != nil {
			return n, fmt.Errorf("load batch of %d rows: %w", len(rows), err)
		}
		c.loaded.Add(n)
		c.batches.Add(1)
		return n, nil
	}
	for i := 0; i < rt.loaderWorkers; i++ {
		g.Go(func() error {
			_, err := storage.LoadBatches(gctx, columns, loadCh, rt.batchSize, copyFn)
			return err
		})
	}

	return g.Wait()
}

// initRepository opens the configured backend.
func initRepository(ctx context.Context, spec config.Pipeline) (storage.Repository, error) {
	repo, err := newRepositoryFn(ctx, storageConfig(spec))
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	return repo, nil
}

func storageConfig(spec config.Pipeline) storage.Config {
	return storage.Config{
		Kind:    spec.Storage.Kind,
		DSN:     spec.Storage.DB.DSN,
		Table:   spec.Storage.DB.Table,
		Columns: spec.Storage.DB.Columns,
	}
}

// newSource maps the input config to a datasource.
func newSource(in config.Input) (datasource.Source, error) {
	switch in.Kind {
	case "file":
		return file.NewLocal(in.File.Path), nil
	case "http":
		hdr := http.Header{}
		for k, v := range in.HTTP.Headers {
			hdr.Set(k, v)
		}
		return httpds.NewSource(in.HTTP.URL, httpds.Config{
			Timeout:            time.Duration(in.HTTP.TimeoutMS) * time.Millisecond,
			MaxRetries:         in.HTTP.MaxRetries,
			InsecureSkipVerify: in.HTTP.InsecureSkipVerify,
			BaseHeaders:        hdr,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported input.kind=%s", in.Kind)
	}
}

func openSource(ctx context.Context, spec config.Pipeline) (io.ReadCloser, error) {
	src, err := newSource(spec.Input)
	if err != nil {
		return nil, err
	}
	return src.Open(ctx)
}

func recordMetrics(job, source string, s *Stats) {
	metrics.RecordRow(job, metrics.KindRead, s.Processed+s.ParseErrors)
	metrics.RecordRow(job, metrics.KindParseError, s.ParseErrors)
	metrics.RecordRow(job, metrics.KindProcessed, s.Processed)
	metrics.RecordRow(job, metrics.KindEmpty, s.Empty)
	metrics.RecordRow(job, metrics.KindDuplicate, s.Duplicates)
	metrics.RecordRow(job, metrics.KindLoaded, s.Loaded)
	metrics.RecordBatches(job, s.Batches)
	metrics.RecordActionFailures(job, source, s.ActionFailures)
}

func logParseSummary(log *slog.Logger, parseAgg *errAgg) {
	count, first := parseAgg.snapshot()
	if count == 0 {
		return
	}
	log.Warn("parse errors", "count", count, "shown", len(first))
	for i, s := range first {
		log.Warn(fmt.Sprintf("  #%03d: %s", i+1, s))
	}
}

// logGlobalSummary logs the final statistics. Rows offered to the loader but
// not loaded (cancelled runs) show up as pending.
func logGlobalSummary(log *slog.Logger, s *Stats) {
	pending := s.Processed - s.Empty - s.Duplicates - s.Loaded
	log.Info("summary",
		"processed", s.Processed,
		"parse_errors", s.ParseErrors,
		"empty", s.Empty,
		"duplicates", s.Duplicates,
		"loaded", s.Loaded,
		"pending", pending,
		"batches", s.Batches,
		"action_failures", s.ActionFailures,
	)
}

// getenvInt reads an int from environment, returning def when unset/invalid.
func getenvInt(k string, def int) int {
	if s := os.Getenv(k); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return def
}

// pickInt chooses a when positive, otherwise b.
func pickInt(a, b int) int {
	if a > 0 {
		return a
	}
	return b
}

// errAgg counts messages and keeps the first few.
type errAgg struct {
	mu    sync.Mutex
	limit int
	count int
	first []string
}

func newErrAgg(limit int) *errAgg {
	return &errAgg{limit: limit}
}

func (a *errAgg) add(msg string) {
	a.mu.Lock()
	if a.count < a.limit {
		a.first = append(a.first, msg)
	}
	a.count++
	a.mu.Unlock()
}

func (a *errAgg) snapshot() (int, []string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count, append([]string(nil), a.first...)
}
