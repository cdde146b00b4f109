package postgres

import (
	"context"
	"fmt"

	"github.com/TheStrul/Sacks-new-sub004/internal/ddl"
	"github.com/TheStrul/Sacks-new-sub004/internal/storage"
)

// newRepository is a test hook that points to NewRepository by default.
// Tests may replace this variable to avoid real DB connections.
var newRepository = NewRepository

// wrappedRepo delegates to *Repository and runs the close function returned
// by NewRepository on Close.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

var _ storage.Repository = (*wrappedRepo)(nil)

// Close implements storage.Repository.Close.
func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

// init registers the "postgres" backend and its DDL bootstrapper so callers
// can stay backend-agnostic:
//
//	repo, err := storage.New(ctx, storage.Config{Kind: "postgres", ...})
//	defer repo.Close()
//	if err := storage.EnsureTable(ctx, cfg, repo); err != nil { ... }
func init() {
	storage.Register("postgres", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{
			DSN:     cfg.DSN,
			Table:   cfg.Table,
			Columns: cfg.Columns,
		})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})

	storage.RegisterDDL("postgres", func(ctx context.Context, repo storage.Repository, cfg storage.Config) error {
		sql, err := ddl.BuildCreateTableSQL(ddl.TextTable(cfg.Table, cfg.Columns, "TEXT"), Dialect)
		if err != nil {
			return err
		}
		if err := repo.Exec(ctx, sql); err != nil {
			return fmt.Errorf("apply DDL: %w", err)
		}
		return nil
	})
}
