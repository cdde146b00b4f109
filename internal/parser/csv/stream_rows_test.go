package csv

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheStrul/Sacks-new-sub004/internal/config"
	"github.com/TheStrul/Sacks-new-sub004/internal/engine"
)

/*
fakeRC is a small helper implementing io.ReadCloser over a byte slice.
It lets tests verify that Close() is forwarded.
*/
type fakeRC struct {
	*bytes.Reader
	closed bool
}

func newFakeRC(b []byte) *fakeRC { return &fakeRC{Reader: bytes.NewReader(b)} }
func (f *fakeRC) Close() error   { f.closed = true; return nil }

/*
makeCSV builds a CSV document in-memory with the given header and rows,
using encoding/csv so quoting is correct.
*/
func makeCSV(delim rune, header []string, rows [][]string) []byte {
	var b bytes.Buffer
	w := csv.NewWriter(&b)
	w.Comma = delim
	if header != nil {
		_ = w.Write(header)
	}
	for _, r := range rows {
		_ = w.Write(r)
	}
	w.Flush()
	return b.Bytes()
}

// drain runs Stream to completion with an unbounded collector.
func drain(t *testing.T, r *Reader) ([]engine.Row, []string) {
	t.Helper()
	out := make(chan engine.Row, 64)
	var errs []string
	err := r.Stream(context.Background(), out, func(line int, err error) {
		errs = append(errs, fmt.Sprintf("%d:%v", line, err))
	})
	require.NoError(t, err)
	close(out)

	var rows []engine.Row
	for row := range out {
		rows = append(rows, row)
	}
	return rows, errs
}

/*
TestReader_HeaderNormalization covers BOM stripping on the first header cell,
header trimming, header_map remapping, and cell trimming.
*/
func TestReader_HeaderNormalization(t *testing.T) {
	header := []string{"\uFEFFDescription", " Gender ", "price"}
	src := newFakeRC(makeCSV(';', header, [][]string{{" CHANEL EDT 100ML ", "w", " "}}))

	r, err := NewReader(src, config.Options{
		"comma":      ";",
		"header_map": map[string]any{"price": "Price"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Description", "Gender", "Price"}, r.Header())

	rows, errs := drain(t, r)
	assert.Empty(t, errs)
	require.Len(t, rows, 1)
	assert.Equal(t, engine.Row{Line: 2, Cells: []string{"CHANEL EDT 100ML", "w", ""}}, rows[0])
	assert.True(t, src.closed, "Stream closes the source")
}

func TestReader_NoHeader(t *testing.T) {
	src := newFakeRC([]byte("\uFEFFv1,v2\nv3,v4\n"))
	r, err := NewReader(src, config.Options{"has_header": false, "trim_space": false})
	require.NoError(t, err)
	assert.Nil(t, r.Header())

	rows, _ := drain(t, r)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"v1", "v2"}, rows[0].Cells)
	assert.Equal(t, 1, rows[0].Line)
	assert.Equal(t, 2, rows[1].Line)
}

/*
TestReader_CellsAreNotShared verifies that emitted rows own their cells even
though the underlying csv.Reader reuses its record buffer.
*/
func TestReader_CellsAreNotShared(t *testing.T) {
	src := newFakeRC(makeCSV(',', []string{"a"}, [][]string{{"1"}, {"2"}, {"3"}}))
	r, err := NewReader(src, nil)
	require.NoError(t, err)

	rows, _ := drain(t, r)
	var got []string
	for _, row := range rows {
		got = append(got, row.Cells[0])
	}
	assert.Equal(t, []string{"1", "2", "3"}, got)
}

func TestReader_FieldCountEnforced(t *testing.T) {
	src := newFakeRC(makeCSV(',', []string{"a", "b"}, [][]string{{"x", "y", "z"}, {"ok1", "ok2"}}))
	r, err := NewReader(src, config.Options{"fields_per_record": 2})
	require.NoError(t, err)

	rows, errs := drain(t, r)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"ok1", "ok2"}, rows[0].Cells)
	assert.Equal(t, 3, rows[0].Line)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "2:")
}

/*
TestReader_ParseErrorReported verifies that a malformed quoted field is
reported via onErr while earlier rows are still emitted.
*/
func TestReader_ParseErrorReported(t *testing.T) {
	var b bytes.Buffer
	fmt.Fprintln(&b, "h1,h2")
	fmt.Fprintln(&b, "a,b")
	fmt.Fprintln(&b, "\"bad,bad")
	fmt.Fprintln(&b, "c,d")

	r, err := NewReader(newFakeRC(b.Bytes()), nil)
	require.NoError(t, err)

	rows, errs := drain(t, r)
	require.NotEmpty(t, rows)
	assert.Equal(t, []string{"a", "b"}, rows[0].Cells)
	assert.NotEmpty(t, errs)
}

func TestReader_ContextCancel(t *testing.T) {
	pr, pw := io.Pipe()
	go func() {
		if _, err := fmt.Fprintln(pw, "a"); err != nil {
			return
		}
		for {
			if _, err := fmt.Fprintln(pw, "x"); err != nil {
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()

	r, err := NewReader(pr, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err = r.Stream(ctx, make(chan engine.Row, 4), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewReader_HeaderReadError(t *testing.T) {
	src := newFakeRC(nil)
	_, err := NewReader(src, nil)
	assert.ErrorContains(t, err, "read header")
	assert.ErrorIs(t, err, io.EOF)
	assert.True(t, src.closed)
}

func TestStripHeaderBOM(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, StripHeaderBOM([]string{"\uFEFFa", "b"}))
	assert.Empty(t, StripHeaderBOM(nil))
}
