package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/yaha/internal/domain"
	"github.com/phrazzld/yaha/internal/pipeline"
)

func testResult() *pipeline.Result {
	return &pipeline.Result{
		GeneralCount:    10,
		RestrictedCount: 15,
		Records:         40,
		Runs:            3,
		Stats: map[string]domain.ContributionStat{
			"ads":   {Total: 10, Unique: 4, GeneralUnique: 4},
			"adult": {Total: 6, Unique: 5},
		},
		Diagnostics: pipeline.Diagnostics{
			RejectedBySource: map[string]int{"ads": 2},
			Duplicates:       map[string]int{"adult": 7},
			WhitelistedCount: 1,
			ParseFailures:    map[string]error{"broken": errors.New("unknown format")},
		},
	}
}

func category(name string) string {
	if name == "adult" {
		return "restricted"
	}
	return "general"
}

func TestObserveResult(t *testing.T) {
	m := New()
	m.ObserveResult(testResult(), category, time.Now())

	assert.Equal(t, 40.0, testutil.ToFloat64(m.RecordsIngested))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SpilledRuns))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DomainsWhitelisted))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RecordsRejected.WithLabelValues("ads")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.Duplicates.WithLabelValues("adult")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ParseFailures.WithLabelValues("broken")))
	assert.Equal(t, 15.0, testutil.ToFloat64(m.OutputDomains.WithLabelValues("restricted")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.SourceUnique.WithLabelValues("adult", "restricted")))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.SourceDomains.WithLabelValues("ads", "general")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.CompileDuration))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.CompileSkipped))
}

func TestRegistriesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.ObserveFetchFailure("ads")

	assert.Equal(t, 1.0, testutil.ToFloat64(a.FetchFailures.WithLabelValues("ads")))
	assert.Equal(t, 0, testutil.CollectAndCount(b.FetchFailures))
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.ObserveSkipped()
	m.MarkCompile(time.Unix(1700000000, 0))

	path := filepath.Join(t.TempDir(), "yaha.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "yaha_compile_skipped 1")
	assert.True(t, strings.Contains(text, "\nyaha_last_compile_timestamp_seconds "))
}

func TestWriteTextfile_BadPath(t *testing.T) {
	err := New().WriteTextfile(filepath.Join(t.TempDir(), "missing", "dir", "x.prom"))
	assert.Error(t, err)
}
