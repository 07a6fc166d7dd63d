package extsort

import (
	"bufio"
	"bytes"
	"fmt"
	"math/rand/v2"
	"os"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/yaha/internal/domain"
)

func drain(t *testing.T, it *Iterator) []domain.DomainRecord {
	t.Helper()
	var out []domain.DomainRecord
	for it.Next() {
		out = append(out, it.Record())
	}
	require.NoError(t, it.Err())
	return out
}

func randomRecords(n int, seed uint64) []domain.DomainRecord {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	recs := make([]domain.DomainRecord, n)
	for i := range recs {
		src := rng.IntN(7)
		recs[i] = domain.DomainRecord{
			Domain:   fmt.Sprintf("d%04d.example.com", rng.IntN(n/2+1)),
			Source:   domain.SourceID(src),
			Category: domain.Category(src % 2),
		}
	}
	return recs
}

func TestSorterSpillsAndMerges(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		records   int
		threshold int
		wantRuns  int
	}{
		{name: "in memory only", records: 50, threshold: 1000, wantRuns: 0},
		{name: "exact multiple", records: 300, threshold: 100, wantRuns: 3},
		{name: "with remainder", records: 305, threshold: 100, wantRuns: 3},
		{name: "one record per run", records: 20, threshold: 1, wantRuns: 20},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			tmp := t.TempDir()
			in := randomRecords(tc.records, uint64(tc.records))
			s := New(Config{MaxRecords: tc.threshold, TempDir: tmp})
			for _, r := range in {
				require.NoError(t, s.Add(r))
			}
			assert.Equal(t, tc.wantRuns, s.Runs())
			assert.Equal(t, tc.records, s.Len())

			it, err := s.Finish()
			require.NoError(t, err)
			got := drain(t, it)
			require.NoError(t, it.Close())

			want := slices.Clone(in)
			slices.SortStableFunc(want, compareRecords)
			assert.Equal(t, want, got)

			entries, err := os.ReadDir(tmp)
			require.NoError(t, err)
			assert.Empty(t, entries, "spill directory must be removed")
		})
	}
}

func TestSorterEmpty(t *testing.T) {
	t.Parallel()

	s := New(Config{TempDir: t.TempDir()})
	it, err := s.Finish()
	require.NoError(t, err)
	assert.False(t, it.Next())
	require.NoError(t, it.Err())
	require.NoError(t, it.Close())
	require.NoError(t, it.Close())
}

func TestSorterRejectsAddAfterFinish(t *testing.T) {
	t.Parallel()

	s := New(Config{TempDir: t.TempDir()})
	it, err := s.Finish()
	require.NoError(t, err)
	defer func() { _ = it.Close() }()

	assert.ErrorIs(t, s.Add(domain.DomainRecord{Domain: "a.com"}), ErrFinished)
	_, err = s.Finish()
	assert.ErrorIs(t, err, ErrFinished)
}

func TestSorterCloseRemovesRuns(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()
	s := New(Config{MaxRecords: 2, TempDir: tmp})
	for _, r := range randomRecords(10, 1) {
		require.NoError(t, s.Add(r))
	}
	require.Equal(t, 5, s.Runs())

	require.NoError(t, s.Close())
	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestIteratorCloseMidway(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()
	s := New(Config{MaxRecords: 3, TempDir: tmp})
	for _, r := range randomRecords(12, 2) {
		require.NoError(t, s.Add(r))
	}
	it, err := s.Finish()
	require.NoError(t, err)
	require.True(t, it.Next())
	require.NoError(t, it.Close())
	assert.False(t, it.Next())

	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCodecRoundTripAndCorruption(t *testing.T) {
	t.Parallel()

	rec := domain.DomainRecord{Domain: "example.co.uk", Source: 300, Category: domain.CategoryRestricted}
	buf := appendRecord(nil, rec)

	got, err := readRecord(bufio.NewReader(bytes.NewReader(buf)))
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	_, err = readRecord(bufio.NewReader(bytes.NewReader(buf[:len(buf)-1])))
	assert.ErrorIs(t, err, errCorruptRun)

	_, err = readRecord(bufio.NewReader(bytes.NewReader([]byte{0})))
	assert.ErrorIs(t, err, errCorruptRun)
}
