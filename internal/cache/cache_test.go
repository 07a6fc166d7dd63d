package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutGet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openTestStore(t)
	fetched := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)
	body := []byte("0.0.0.0 ads.example.com\n0.0.0.0 t.example.com\n")

	require.NoError(t, s.Put(ctx, Entry{Name: "one", URL: "https://one.example", Hash: "abc", FetchedAt: fetched}, body))

	entry, got, err := s.Get(ctx, "one")
	require.NoError(t, err)
	assert.Equal(t, body, got)
	assert.Equal(t, "https://one.example", entry.URL)
	assert.Equal(t, "abc", entry.Hash)
	assert.Equal(t, len(body), entry.Size)
	assert.True(t, fetched.Equal(entry.FetchedAt))

	require.NoError(t, s.Put(ctx, Entry{Name: "one", Hash: "def"}, []byte("x.example.com\n")))
	entry, got, err = s.Get(ctx, "one")
	require.NoError(t, err)
	assert.Equal(t, "def", entry.Hash)
	assert.Equal(t, "x.example.com\n", string(got))
}

func TestGetMissing(t *testing.T) {
	t.Parallel()

	_, _, err := openTestStore(t).Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMissingDeleteAndStats(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.Put(ctx, Entry{Name: "a"}, []byte("1234")))
	require.NoError(t, s.Put(ctx, Entry{Name: "b"}, []byte("123456")))

	missing, err := s.Missing(ctx, []string{"a", "c", "b", "d"})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "d"}, missing)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Sources: 2, Bytes: 10}, st)

	require.NoError(t, s.Delete(ctx, "a"))
	require.NoError(t, s.Delete(ctx, "a"))
	st, err = s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Sources: 1, Bytes: 6}, st)
}

func TestPutValidation(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	assert.Error(t, s.Put(context.Background(), Entry{Name: " "}, nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Put(ctx, Entry{Name: "a"}, nil), context.Canceled)
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	_, err := Open("")
	assert.Error(t, err)
}
