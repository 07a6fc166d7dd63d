package statedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/phrazzld/yaha/internal/store"
)

// StateStore implements store.StateStore over a migrated state database.
type StateStore struct {
	db     *sql.DB
	driver string
}

var _ store.StateStore = (*StateStore)(nil)

// NewStateStore returns a StateStore using db, which must have been opened
// (and migrated) for driver.
func NewStateStore(db *sql.DB, driver string) *StateStore {
	return &StateStore{db: db, driver: driver}
}

// Load reads the complete compilation state. An empty database yields an
// empty state.
func (s *StateStore) Load(ctx context.Context) (*store.CompilationState, error) {
	return s.load(ctx, s.db)
}

func (s *StateStore) load(ctx context.Context, q store.DBTX) (*store.CompilationState, error) {
	st := store.NewCompilationState()

	var lastMs int64
	err := q.QueryRowContext(ctx, rebind(s.driver,
		`SELECT last_compilation_ms, compilation_count, skipped_compilations
		 FROM compilations WHERE id = ?`), 1).
		Scan(&lastMs, &st.CompilationCount, &st.SkippedCompilations)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, store.NewStoreError("compilation", "load", "query failed", MapError(err))
	default:
		st.LastCompilation = fromMillis(lastMs)
	}

	rows, err := q.QueryContext(ctx,
		`SELECT name, url, content_hash, last_fetched_ms, last_changed_ms, fetch_count, change_count
		 FROM source_states`)
	if err != nil {
		return nil, store.NewStoreError("source_state", "load", "query failed", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			src                  store.SourceState
			fetchedMs, changedMs int64
		)
		if err := rows.Scan(&src.Name, &src.URL, &src.ContentHash, &fetchedMs, &changedMs,
			&src.FetchCount, &src.ChangeCount); err != nil {
			return nil, store.NewStoreError("source_state", "load", "scan failed", err)
		}
		src.LastFetched = fromMillis(fetchedMs)
		src.LastChanged = fromMillis(changedMs)
		st.Sources[src.Name] = &src
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("source_state", "load", "iteration failed", MapError(err))
	}
	return st, nil
}

// Save replaces the stored state with st in one transaction.
func (s *StateStore) Save(ctx context.Context, st *store.CompilationState) error {
	if st == nil {
		return store.NewStoreError("compilation", "save", "nil state", store.ErrInvalidEntity)
	}

	return store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		return s.replace(ctx, tx, st)
	})
}

// replace overwrites every stored row with st. q should be a transaction.
func (s *StateStore) replace(ctx context.Context, q store.DBTX, st *store.CompilationState) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM source_states`); err != nil {
		return store.NewStoreError("source_state", "save", "clear failed", MapError(err))
	}

	insert, err := q.PrepareContext(ctx, rebind(s.driver,
		`INSERT INTO source_states
		   (name, url, content_hash, last_fetched_ms, last_changed_ms, fetch_count, change_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return store.NewStoreError("source_state", "save", "prepare failed", MapError(err))
	}
	defer func() { _ = insert.Close() }()

	for name, src := range st.Sources {
		if src == nil {
			continue
		}
		if _, err := insert.ExecContext(ctx,
			name, src.URL, src.ContentHash,
			toMillis(src.LastFetched), toMillis(src.LastChanged),
			src.FetchCount, src.ChangeCount,
		); err != nil {
			return store.NewStoreError("source_state", "save", fmt.Sprintf("insert %s failed", name), MapError(err))
		}
	}

	if _, err := q.ExecContext(ctx, rebind(s.driver,
		`INSERT INTO compilations (id, last_compilation_ms, compilation_count, skipped_compilations)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   last_compilation_ms = excluded.last_compilation_ms,
		   compilation_count = excluded.compilation_count,
		   skipped_compilations = excluded.skipped_compilations`),
		1, toMillis(st.LastCompilation), st.CompilationCount, st.SkippedCompilations,
	); err != nil {
		return store.NewStoreError("compilation", "save", "upsert failed", MapError(err))
	}
	return nil
}

// toMillis stores the zero time as 0 so that "unknown" survives a round trip.
func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
