// Package jsonl implements a storage.Repository that writes one JSON object
// per row to a file or stdout. It needs no database, which makes it the
// default sink for dry runs and for piping records into other tools.
package jsonl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/TheStrul/Sacks-new-sub004/internal/storage"
)

// Stdout is the DSN that selects standard output.
const Stdout = "-"

// Repository encodes rows as JSON lines keyed by column name. Nil cells are
// written as null. Safe for concurrent CopyFrom calls.
type Repository struct {
	mu  sync.Mutex
	w   *bufio.Writer
	enc *json.Encoder
	c   io.Closer
}

// newRepository is a test hook that points to NewRepository by default.
var newRepository = NewRepository

// NewRepository opens dsn for appending ("-" is stdout).
func NewRepository(dsn string) (*Repository, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("jsonl: DSN must not be empty")
	}
	if dsn == Stdout {
		return newWriter(os.Stdout, nil), nil
	}
	f, err := os.OpenFile(dsn, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("jsonl: open %s: %w", dsn, err)
	}
	return newWriter(f, f), nil
}

func newWriter(w io.Writer, c io.Closer) *Repository {
	bw := bufio.NewWriterSize(w, 64<<10)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	return &Repository{w: bw, enc: enc, c: c}
}

// CopyFrom writes rows and flushes once per batch.
func (r *Repository) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	obj := make(map[string]any, len(columns))
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if len(row) != len(columns) {
			return n, fmt.Errorf("jsonl: row length %d != columns length %d", len(row), len(columns))
		}
		for i, c := range columns {
			obj[c] = row[i]
		}
		if err := r.enc.Encode(obj); err != nil {
			return n, fmt.Errorf("jsonl: encode: %w", err)
		}
		n++
	}
	if err := r.w.Flush(); err != nil {
		return n, fmt.Errorf("jsonl: flush: %w", err)
	}
	return n, nil
}

// Exec is a no-op; there is no schema to manage.
func (r *Repository) Exec(context.Context, string) error { return nil }

// Close flushes buffered output and closes the file.
func (r *Repository) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.w.Flush(); err != nil {
		slog.Error("jsonl: flush on close", "err", err)
	}
	if r.c != nil {
		if err := r.c.Close(); err != nil {
			slog.Error("jsonl: close", "err", err)
		}
	}
}

var _ storage.Repository = (*Repository)(nil)

func init() {
	storage.Register("jsonl", func(_ context.Context, cfg storage.Config) (storage.Repository, error) {
		return newRepository(cfg.DSN)
	})
	storage.RegisterDDL("jsonl", func(context.Context, storage.Repository, storage.Config) error { return nil })
}
