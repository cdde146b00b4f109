package storage

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feed(rows ...[]any) <-chan []any {
	in := make(chan []any, len(rows))
	for _, r := range rows {
		in <- r
	}
	close(in)
	return in
}

// TestLoadBatches_Basic verifies rows are grouped into batches and the total
// equals the sum of all successful copyFn returns.
func TestLoadBatches_Basic(t *testing.T) {
	t.Parallel()

	rows := make([][]any, 7)
	for i := range rows {
		rows[i] = []any{i, "x"}
	}

	var calls int32
	var sizes []int
	copyFn := func(_ context.Context, cols []string, batch [][]any) (int64, error) {
		atomic.AddInt32(&calls, 1)
		sizes = append(sizes, len(batch))
		assert.Equal(t, []string{"c1", "c2"}, cols)
		return int64(len(batch)), nil
	}

	total, err := LoadBatches(context.Background(), []string{"c1", "c2"}, feed(rows...), 3, copyFn)
	require.NoError(t, err)
	assert.EqualValues(t, 7, total)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
	assert.Equal(t, []int{3, 3, 1}, sizes)
}

func TestLoadBatches_Empty(t *testing.T) {
	t.Parallel()

	called := false
	total, err := LoadBatches(context.Background(), nil, feed(), 10, func(context.Context, []string, [][]any) (int64, error) {
		called = true
		return 0, nil
	})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.False(t, called, "copyFn must not run for an empty input")
}

func TestLoadBatches_BadArgs(t *testing.T) {
	t.Parallel()

	_, err := LoadBatches(context.Background(), nil, feed(), 0, func(context.Context, []string, [][]any) (int64, error) { return 0, nil })
	assert.ErrorContains(t, err, "batchSize must be > 0")

	_, err = LoadBatches(context.Background(), nil, feed(), 1, nil)
	assert.ErrorContains(t, err, "copyFn must not be nil")
}

// TestLoadBatches_ErrorPropagation ensures the first copy error is returned
// and processing stops after that batch.
func TestLoadBatches_ErrorPropagation(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("copy failed")
	var batches int
	copyFn := func(_ context.Context, _ []string, rows [][]any) (int64, error) {
		batches++
		if batches == 2 {
			return 0, wantErr
		}
		return int64(len(rows)), nil
	}

	total, err := LoadBatches(context.Background(), []string{"c"}, feed([]any{1}, []any{2}, []any{3}, []any{4}, []any{5}), 2, copyFn)
	assert.ErrorIs(t, err, wantErr)
	assert.EqualValues(t, 2, total)
	assert.Equal(t, 2, batches)
}

// TestLoadBatches_ContextCancel checks the loader exits on cancellation.
func TestLoadBatches_ContextCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Never closed: only cancellation can end the loop.
	in := make(chan []any, 1)
	in <- []any{1}

	errCh := make(chan error, 1)
	go func() {
		_, err := LoadBatches(ctx, []string{"c"}, in, 2, func(context.Context, []string, [][]any) (int64, error) {
			return 0, nil
		})
		errCh <- err
	}()

	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("LoadBatches did not return after context cancel")
	}
}
