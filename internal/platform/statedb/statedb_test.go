package statedb

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/yaha/internal/platform/logger"
	"github.com/phrazzld/yaha/internal/store"
)

func openTestDB(t *testing.T) (*sql.DB, string) {
	t.Helper()
	_, log, _ := logger.SetupTestLogger(t)
	path := filepath.Join(t.TempDir(), "state", "state.db")
	db, err := Open(context.Background(), DriverSQLite, "file:"+path, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, path
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "dsn", nil)
	assert.ErrorIs(t, err, store.ErrUnsupportedDriver)
}

func TestOpen_EmptySQLiteDSN(t *testing.T) {
	_, err := Open(context.Background(), DriverSQLite, "", nil)
	assert.Error(t, err)
}

func TestOpen_MigrationsAreIdempotent(t *testing.T) {
	_, path := openTestDB(t)

	db, err := Open(context.Background(), DriverSQLite, "file:"+path, nil)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	var tables int
	err = db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('source_states', 'compilations')`).Scan(&tables)
	require.NoError(t, err)
	assert.Equal(t, 2, tables)
}

func TestStateStore_LoadEmpty(t *testing.T) {
	db, _ := openTestDB(t)
	st, err := NewStateStore(db, DriverSQLite).Load(context.Background())
	require.NoError(t, err)

	assert.Empty(t, st.Sources)
	assert.True(t, st.LastCompilation.IsZero())
	assert.Zero(t, st.CompilationCount)
}

func TestStateStore_SaveLoadRoundTrip(t *testing.T) {
	db, _ := openTestDB(t)
	ss := NewStateStore(db, DriverSQLite)
	ctx := context.Background()

	now := time.Date(2025, 3, 9, 12, 30, 0, 0, time.UTC)
	st := store.NewCompilationState()
	st.LastCompilation = now
	st.CompilationCount = 7
	st.SkippedCompilations = 2
	st.Sources["alpha"] = &store.SourceState{
		Name:        "alpha",
		URL:         "https://example.com/alpha.txt",
		ContentHash: "abc123",
		LastFetched: now,
		LastChanged: now.Add(-48 * time.Hour),
		FetchCount:  10,
		ChangeCount: 3,
	}
	st.Sources["beta"] = &store.SourceState{
		Name:        "beta",
		URL:         "https://example.com/beta.txt",
		ContentHash: "def456",
	}

	require.NoError(t, ss.Save(ctx, st))

	got, err := ss.Load(ctx)
	require.NoError(t, err)

	assert.Equal(t, now, got.LastCompilation)
	assert.Equal(t, 7, got.CompilationCount)
	assert.Equal(t, 2, got.SkippedCompilations)
	require.Len(t, got.Sources, 2)
	assert.Equal(t, *st.Sources["alpha"], *got.Sources["alpha"])
	assert.True(t, got.Sources["beta"].LastChanged.IsZero(), "unknown dates stay unknown")
}

func TestStateStore_SaveReplacesSources(t *testing.T) {
	db, _ := openTestDB(t)
	ss := NewStateStore(db, DriverSQLite)
	ctx := context.Background()

	st := store.NewCompilationState()
	st.Sources["alpha"] = &store.SourceState{Name: "alpha", URL: "https://a", ContentHash: "1"}
	st.Sources["beta"] = &store.SourceState{Name: "beta", URL: "https://b", ContentHash: "2"}
	require.NoError(t, ss.Save(ctx, st))

	delete(st.Sources, "alpha")
	st.CompilationCount = 1
	require.NoError(t, ss.Save(ctx, st))

	got, err := ss.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, got.Sources, 1)
	assert.Contains(t, got.Sources, "beta")
	assert.Equal(t, 1, got.CompilationCount)
}

func TestStateStore_SaveRollsBackOnInvalidRow(t *testing.T) {
	db, _ := openTestDB(t)
	ss := NewStateStore(db, DriverSQLite)
	ctx := context.Background()

	st := store.NewCompilationState()
	st.Sources["alpha"] = &store.SourceState{Name: "alpha", URL: "https://a", ContentHash: "1"}
	st.CompilationCount = 4
	require.NoError(t, ss.Save(ctx, st))

	bad := store.NewCompilationState()
	bad.Sources["broken"] = &store.SourceState{Name: "broken", URL: "https://b", FetchCount: -1}
	bad.CompilationCount = 99
	err := ss.Save(ctx, bad)
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrInvalidEntity)

	var storeErr *store.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "source_state", storeErr.Entity)

	got, err := ss.Load(ctx)
	require.NoError(t, err)
	assert.Contains(t, got.Sources, "alpha")
	assert.Equal(t, 4, got.CompilationCount)
}

func TestStateStore_SaveNil(t *testing.T) {
	db, _ := openTestDB(t)
	err := NewStateStore(db, DriverSQLite).Save(context.Background(), nil)
	assert.ErrorIs(t, err, store.ErrInvalidEntity)
}

func TestRunInTransaction(t *testing.T) {
	db, _ := openTestDB(t)
	ctx := context.Background()

	count := func() int {
		var n int
		require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM source_states`).Scan(&n))
		return n
	}
	insert := func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO source_states (name, url, content_hash) VALUES ('x', 'u', 'h')`)
		return err
	}

	t.Run("error rolls back", func(t *testing.T) {
		boom := errors.New("boom")
		err := store.RunInTransaction(ctx, db, func(ctx context.Context, tx *sql.Tx) error {
			require.NoError(t, insert(ctx, tx))
			return boom
		})
		assert.Equal(t, boom, err)
		assert.Equal(t, 0, count())
	})

	t.Run("panic rolls back and propagates", func(t *testing.T) {
		assert.PanicsWithValue(t, "kaboom", func() {
			_ = store.RunInTransaction(ctx, db, func(ctx context.Context, tx *sql.Tx) error {
				require.NoError(t, insert(ctx, tx))
				panic("kaboom")
			})
		})
		assert.Equal(t, 0, count())
	})

	t.Run("success commits", func(t *testing.T) {
		require.NoError(t, store.RunInTransaction(ctx, db, insert))
		assert.Equal(t, 1, count())
	})

	t.Run("duplicate maps to ErrDuplicate", func(t *testing.T) {
		err := store.RunInTransaction(ctx, db, insert)
		assert.ErrorIs(t, MapError(err), store.ErrDuplicate)
	})
}

func TestMapError(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want error
	}{
		{name: "no rows", err: sql.ErrNoRows, want: store.ErrNotFound},
		{name: "pg unique", err: &pgconn.PgError{Code: "23505"}, want: store.ErrDuplicate},
		{name: "pg check", err: &pgconn.PgError{Code: "23514", ConstraintName: "c"}, want: store.ErrInvalidEntity},
		{name: "pg not null", err: &pgconn.PgError{Code: "23502", ColumnName: "url"}, want: store.ErrInvalidEntity},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, MapError(tc.err), tc.want)
		})
	}

	assert.NoError(t, MapError(nil))
	other := errors.New("other")
	assert.Equal(t, other, MapError(other))
}

func TestRebind(t *testing.T) {
	q := `INSERT INTO t (a, b) VALUES (?, ?)`
	assert.Equal(t, `INSERT INTO t (a, b) VALUES ($1, $2)`, rebind(DriverPostgres, q))
	assert.Equal(t, q, rebind(DriverSQLite, q))
	assert.Equal(t, `SELECT 1`, rebind(DriverPostgres, `SELECT 1`))
}
