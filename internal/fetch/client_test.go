package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/yaha/internal/domain"
)

func testOptions() Options {
	return Options{
		Timeout:        time.Second,
		Retries:        2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		UserAgent:      "yaha-test",
		MaxBytes:       1 << 10,
	}
}

func newTestClient(opts Options) (*Client, *[]time.Duration) {
	c := NewClient(opts, nil)
	var waits []time.Duration
	c.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return ctx.Err()
	}
	c.now = func() time.Time { return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC) }
	return c, &waits
}

func TestFetchSuccess(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "yaha-test", r.UserAgent())
		_, _ = w.Write([]byte("0.0.0.0 ads.example.com\n"))
	}))
	defer srv.Close()

	c, waits := newTestClient(testOptions())
	content, err := c.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0 ads.example.com\n", string(content.Body))
	assert.Equal(t, HashBytes(content.Body), content.Hash)
	assert.Len(t, content.Hash, 64)
	assert.Equal(t, 2026, content.FetchedAt.Year())
	assert.Empty(t, *waits)
}

func TestFetchRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok.example.com\n"))
	}))
	defer srv.Close()

	c, waits := newTestClient(testOptions())
	content, err := c.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok.example.com\n", string(content.Body))
	assert.Equal(t, int32(3), calls.Load())
	assert.Len(t, *waits, 2)
}

func TestFetchFailures(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		status    int
		body      string
		wantCalls int32
		wantErr   error
	}{
		{name: "not found is permanent", status: http.StatusNotFound, wantCalls: 1, wantErr: ErrStatus},
		{name: "server error exhausts retries", status: http.StatusBadGateway, wantCalls: 3, wantErr: ErrStatus},
		{name: "too many requests is retried", status: http.StatusTooManyRequests, wantCalls: 3, wantErr: ErrStatus},
		{name: "oversized body", status: http.StatusOK, body: strings.Repeat("a", 2048), wantCalls: 1, wantErr: ErrTooLarge},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			c, _ := newTestClient(testOptions())
			_, err := c.Fetch(context.Background(), srv.URL)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrSourceFetch)
			assert.ErrorIs(t, err, tc.wantErr)
			assert.Equal(t, tc.wantCalls, calls.Load())
		})
	}
}

func TestFetchHonoursCancellation(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c, _ := newTestClient(testOptions())
	_, err := c.Fetch(ctx, srv.URL)
	assert.ErrorIs(t, err, domain.ErrSourceFetch)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCalcBackoff(t *testing.T) {
	t.Parallel()

	initial, maxWait := 100*time.Millisecond, time.Second
	testCases := []struct {
		failures int
		base     time.Duration
	}{
		{failures: 1, base: 100 * time.Millisecond},
		{failures: 2, base: 200 * time.Millisecond},
		{failures: 3, base: 400 * time.Millisecond},
		{failures: 10, base: time.Second},
	}

	for _, tc := range testCases {
		for range 20 {
			got := calcBackoff(initial, maxWait, tc.failures)
			assert.GreaterOrEqual(t, got, time.Duration(float64(tc.base)*0.8))
			assert.LessOrEqual(t, got, time.Duration(float64(tc.base)*1.2))
		}
	}
}
