package engine

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Row is one input row with its 1-based line number.
type Row struct {
	Line  int
	Cells []string
}

// Stream processes rows from in with workers goroutines and sends results
// to out. Output order is not preserved. It returns when in is closed and
// drained, or when ctx is cancelled. out is not closed.
func (e *Engine) Stream(ctx context.Context, workers int, in <-chan Row, out chan<- Result) error {
	if workers <= 0 {
		workers = 1
	}
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case row, ok := <-in:
					if !ok {
						return nil
					}
					res := e.Process(row.Cells)
					res.Line = row.Line
					select {
					case out <- res:
					case <-ctx.Done():
						return ctx.Err()
					}
				}
			}
		})
	}
	return g.Wait()
}
