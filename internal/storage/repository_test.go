package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRepo is a minimal Repository implementation for tests.
type fakeRepo struct {
	closed bool
	execs  []string
}

func (f *fakeRepo) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	return int64(len(rows)), nil
}
func (f *fakeRepo) Close() { f.closed = true }

func (f *fakeRepo) Exec(ctx context.Context, sql string) error {
	f.execs = append(f.execs, sql)
	return nil
}

/*
TestRegisterAndNew_Success verifies that registering a backend enables New to
return the corresponding repository and that ListKinds reports it.
*/
func TestRegisterAndNew_Success(t *testing.T) {
	t.Parallel()

	kind := "fake"
	Register(kind, func(ctx context.Context, cfg Config) (Repository, error) {
		return &fakeRepo{}, nil
	})

	repo, err := New(context.Background(), Config{Kind: kind})
	require.NoError(t, err)
	require.NotNil(t, repo)
	assert.Contains(t, ListKinds(), kind)
}

func TestNew_Unsupported(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{Kind: "does-not-exist"})
	require.Error(t, err)
	assert.Equal(t, "unsupported storage.kind=does-not-exist", err.Error())
}

// TestRegister_Override verifies that re-registering a kind replaces the
// previous factory.
func TestRegister_Override(t *testing.T) {
	t.Parallel()

	kind := "override"
	calls := 0
	Register(kind, func(ctx context.Context, cfg Config) (Repository, error) {
		calls++
		return &fakeRepo{}, nil
	})
	Register(kind, func(ctx context.Context, cfg Config) (Repository, error) {
		calls += 10
		return &fakeRepo{}, nil
	})

	_, err := New(context.Background(), Config{Kind: kind})
	require.NoError(t, err)
	assert.Equal(t, 10, calls)
}

// TestListKinds_Snapshot checks that callers cannot mutate the registry
// through the returned slice.
func TestListKinds_Snapshot(t *testing.T) {
	t.Parallel()

	Register("snap", func(ctx context.Context, cfg Config) (Repository, error) { return &fakeRepo{}, nil })

	a := ListKinds()
	require.NotEmpty(t, a)
	a[0] = "mutated"
	assert.NotContains(t, ListKinds(), "mutated")
}

func TestRegister_AllowsErrors(t *testing.T) {
	t.Parallel()

	want := errors.New("boom")
	Register("errkind", func(ctx context.Context, cfg Config) (Repository, error) {
		return nil, want
	})

	_, err := New(context.Background(), Config{Kind: "errkind"})
	assert.ErrorIs(t, err, want)
}

func TestEnsureTable(t *testing.T) {
	t.Parallel()

	RegisterDDL("ddlfake", func(ctx context.Context, repo Repository, cfg Config) error {
		return repo.Exec(ctx, "CREATE "+cfg.Table)
	})

	repo := &fakeRepo{}
	require.NoError(t, EnsureTable(context.Background(), Config{Kind: "ddlfake", Table: "t"}, repo))
	assert.Equal(t, []string{"CREATE t"}, repo.execs)

	err := EnsureTable(context.Background(), Config{Kind: "nope"}, repo)
	assert.ErrorContains(t, err, `storage.kind="nope"`)
}
