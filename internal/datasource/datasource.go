// Package datasource defines where raw row bytes come from.
package datasource

import (
	"context"
	"io"
)

// Source opens a fresh byte stream of the input. Callers close it.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}
