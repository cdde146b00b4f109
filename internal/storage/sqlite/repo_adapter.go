package sqlite

import (
	"context"

	"github.com/TheStrul/Sacks-new-sub004/internal/ddl"
	"github.com/TheStrul/Sacks-new-sub004/internal/storage"
)

// newRepository is a test hook that points to NewRepository by default.
var newRepository = NewRepository

// wrappedRepo adapts *Repository to storage.Repository, running the cleanup
// returned by NewRepository on Close.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

var _ storage.Repository = (*wrappedRepo)(nil)

func init() {
	storage.Register("sqlite", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
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

	storage.RegisterDDL("sqlite", func(ctx context.Context, repo storage.Repository, cfg storage.Config) error {
		sql, err := ddl.BuildCreateTableSQL(ddl.TextTable(cfg.Table, cfg.Columns, "TEXT"), Dialect)
		if err != nil {
			return err
		}
		return repo.Exec(ctx, sql)
	})
}
