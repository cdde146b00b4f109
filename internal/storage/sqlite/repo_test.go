package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheStrul/Sacks-new-sub004/internal/storage"
)

func newTempRepo(tb testing.TB, table string, cols []string) *Repository {
	tb.Helper()
	dsn := filepath.Join(tb.TempDir(), "out.db")
	r, closeFn, err := NewRepository(context.Background(), Config{DSN: dsn, Table: table, Columns: cols})
	require.NoError(tb, err)
	tb.Cleanup(closeFn)
	return r
}

func count(tb testing.TB, r *Repository, table string) int {
	tb.Helper()
	var n int
	require.NoError(tb, r.db.QueryRow(`SELECT COUNT(*) FROM `+quoteIdent(table)).Scan(&n))
	return n
}

func TestNewRepository_EmptyDSN(t *testing.T) {
	_, _, err := NewRepository(context.Background(), Config{DSN: "  "})
	assert.ErrorContains(t, err, "DSN must not be empty")
}

/*
TestEnsureTableAndCopyFrom creates the destination table through the
registered DDL bootstrapper and loads a batch including NULLs and an
identifier that needs quoting.
*/
func TestEnsureTableAndCopyFrom(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	cols := []string{"brand", "size", "group"}
	r := newTempRepo(t, "products", cols)
	cfg := storage.Config{Kind: "sqlite", Table: "products", Columns: cols}

	require.NoError(t, storage.EnsureTable(ctx, cfg, r))
	// Idempotent.
	require.NoError(t, storage.EnsureTable(ctx, cfg, r))

	n, err := r.CopyFrom(ctx, cols, [][]any{
		{"Dior", "100", "EDP"},
		{"Chanel", nil, nil},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.Equal(t, 2, count(t, r, "products"))

	var size any
	require.NoError(t, r.db.QueryRow(`SELECT size FROM products WHERE brand = 'Chanel'`).Scan(&size))
	assert.Nil(t, size)
}

func TestCopyFrom_RowLengthMismatchRollsBack(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	cols := []string{"a", "b"}
	r := newTempRepo(t, "t", cols)
	require.NoError(t, r.Exec(ctx, `CREATE TABLE t (a TEXT, b TEXT)`))

	n, err := r.CopyFrom(ctx, cols, [][]any{{"1", "2"}, {"only-one"}})
	assert.ErrorContains(t, err, "row length 1 != columns length 2")
	assert.Zero(t, n)
	assert.Equal(t, 0, count(t, r, "t"))
}

func TestCopyFrom_Edges(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := newTempRepo(t, "t", nil)

	_, err := r.CopyFrom(ctx, nil, [][]any{{"x"}})
	assert.ErrorContains(t, err, "columns must not be empty")

	n, err := r.CopyFrom(ctx, []string{"a"}, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.NoError(t, r.Exec(ctx, "   "))
	assert.ErrorContains(t, r.Exec(ctx, "NOT SQL"), "sqlite: exec")
}
