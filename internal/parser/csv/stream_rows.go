// Package csv streams CSV input into engine rows.
package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/TheStrul/Sacks-new-sub004/internal/config"
	"github.com/TheStrul/Sacks-new-sub004/internal/engine"
)

// Reader streams rows from a CSV source. The header, when present, is read
// by NewReader so callers can bind column rules before any row flows.
//
// Options (all optional):
//   - has_header (bool; default true)
//   - comma (string; first rune used; default ',')
//   - trim_space (bool; default true)
//   - lazy_quotes (bool; default false)
//   - fields_per_record (int; 0 = variable, >0 = enforce)
//   - header_map (object; source header name -> rule column name)
type Reader struct {
	src    io.ReadCloser
	cr     *csv.Reader
	header []string
	trim   bool
	first  bool
}

// NewReader wraps src. It reads the header when has_header is set; on error
// src is closed.
func NewReader(src io.ReadCloser, opt config.Options) (*Reader, error) {
	cr := csv.NewReader(src)
	cr.Comma = opt.Rune("comma", ',')
	cr.ReuseRecord = true
	cr.LazyQuotes = opt.Bool("lazy_quotes", false)
	cr.FieldsPerRecord = -1
	if n := opt.Int("fields_per_record", 0); n > 0 {
		cr.FieldsPerRecord = n
	}

	r := &Reader{src: src, cr: cr, trim: opt.Bool("trim_space", true), first: true}
	if !opt.Bool("has_header", true) {
		return r, nil
	}

	hdr, err := cr.Read()
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("read header: %w", err)
	}
	r.first = false
	hm := opt.StringMap("header_map")
	r.header = make([]string, len(hdr))
	for i, h := range StripHeaderBOM(hdr) {
		h = strings.TrimSpace(h)
		if mapped, ok := hm[h]; ok {
			h = mapped
		}
		r.header[i] = h
	}
	return r, nil
}

// Header returns the normalized header, or nil when the input has none.
func (r *Reader) Header() []string { return r.header }

// Close closes the underlying source.
func (r *Reader) Close() error { return r.src.Close() }

// Stream sends every data row to out and closes the source when done. Rows
// that fail to parse are reported to onErr with their line and skipped. It
// returns nil at EOF and ctx.Err() when cancelled. out is not closed.
func (r *Reader) Stream(ctx context.Context, out chan<- engine.Row, onErr func(line int, err error)) error {
	defer r.src.Close()

	const logEveryN = 50_000
	emitted := 0

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		rec, err := r.cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			var pe *csv.ParseError
			if !errors.As(err, &pe) {
				return fmt.Errorf("csv read: %w", err)
			}
			if onErr != nil {
				onErr(pe.StartLine, fmt.Errorf("csv read: %w", err))
			}
			continue
		}

		line, _ := r.cr.FieldPos(0)
		cells := make([]string, len(rec))
		for i, v := range rec {
			if r.trim {
				v = strings.TrimSpace(v)
			}
			cells[i] = v
		}
		if r.first {
			cells[0] = strings.TrimPrefix(cells[0], utf8BOM)
			r.first = false
		}

		select {
		case out <- engine.Row{Line: line, Cells: cells}:
			emitted++
			if emitted%logEveryN == 0 {
				slog.Debug("csv reader progress", "line", line, "emitted", emitted)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
