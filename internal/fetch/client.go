package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/phrazzld/yaha/internal/config"
	"github.com/phrazzld/yaha/internal/domain"
	"github.com/phrazzld/yaha/internal/platform/logger"
)

var (
	// ErrStatus is returned for a non-2xx response.
	ErrStatus = errors.New("unexpected http status")

	// ErrTooLarge is returned when a body exceeds Options.MaxBytes.
	ErrTooLarge = errors.New("response body too large")
)

// Content is a successfully downloaded source body.
type Content struct {
	Body      []byte
	Hash      string
	FetchedAt time.Time
}

// HashBytes returns the hex SHA-256 used to detect content changes.
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Options tunes a Client.
type Options struct {
	Timeout           time.Duration
	Retries           int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	RequestsPerSecond float64
	Burst             int
	UserAgent         string
	MaxBytes          int64
}

// OptionsFromConfig maps the fetch configuration group onto Options.
func OptionsFromConfig(cfg config.FetchConfig) Options {
	return Options{
		Timeout:           cfg.Timeout,
		Retries:           cfg.Retries,
		InitialBackoff:    cfg.InitialBackoff,
		MaxBackoff:        cfg.MaxBackoff,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
		UserAgent:         cfg.UserAgent,
		MaxBytes:          cfg.MaxBytes,
	}
}

// Fetcher downloads one URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Content, error)
}

// Client is an HTTP Fetcher shared by all workers of a run.
type Client struct {
	http    *http.Client
	opts    Options
	limiter *rate.Limiter
	sleep   func(ctx context.Context, d time.Duration) error
	now     func() time.Time
}

// NewClient returns a Client using hc, or http.DefaultClient when hc is nil.
// A zero RequestsPerSecond disables rate limiting.
func NewClient(opts Options, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	if opts.Burst < 1 {
		opts.Burst = 1
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	return &Client{
		http:    hc,
		opts:    opts,
		limiter: rate.NewLimiter(limit, opts.Burst),
		sleep:   sleepContext,
		now:     time.Now,
	}
}

// Fetch downloads url, retrying transient failures up to Options.Retries
// times. Errors wrap domain.ErrSourceFetch.
func (c *Client) Fetch(ctx context.Context, url string) (Content, error) {
	log := logger.FromContext(ctx)

	var lastErr error
	for attempt := 0; attempt <= c.opts.Retries; attempt++ {
		if attempt > 0 {
			wait := calcBackoff(c.opts.InitialBackoff, c.opts.MaxBackoff, attempt)
			log.Debug("retrying fetch",
				"url", url,
				"attempt", attempt+1,
				"backoff_ms", wait.Milliseconds(),
				"error", lastErr)
			if err := c.sleep(ctx, wait); err != nil {
				return Content{}, fmt.Errorf("%w: %s: %w", domain.ErrSourceFetch, url, err)
			}
		}

		body, retryable, err := c.fetchOnce(ctx, url)
		if err == nil {
			return Content{Body: body, Hash: HashBytes(body), FetchedAt: c.now().UTC()}, nil
		}
		lastErr = err
		if !retryable || ctx.Err() != nil {
			break
		}
	}
	return Content{}, fmt.Errorf("%w: %s: %w", domain.ErrSourceFetch, url, lastErr)
}

func (c *Client) fetchOnce(ctx context.Context, url string) (body []byte, retryable bool, err error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, false, err
	}

	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, err
	}
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		retry := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return nil, retry, fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
	}

	var r io.Reader = resp.Body
	if c.opts.MaxBytes > 0 {
		r = io.LimitReader(resp.Body, c.opts.MaxBytes+1)
	}
	body, err = io.ReadAll(r)
	if err != nil {
		return nil, true, fmt.Errorf("reading body: %w", err)
	}
	if c.opts.MaxBytes > 0 && int64(len(body)) > c.opts.MaxBytes {
		return nil, false, fmt.Errorf("%w: limit %d bytes", ErrTooLarge, c.opts.MaxBytes)
	}
	return body, false, nil
}

// calcBackoff returns the wait before retry number failures (1-based):
// exponential growth from initial, capped at max, with +/-20% jitter.
func calcBackoff(initial, maxWait time.Duration, failures int) time.Duration {
	pow := math.Pow(2, float64(failures-1))
	backoff := time.Duration(float64(initial) * pow)
	if backoff > maxWait || backoff <= 0 {
		backoff = maxWait
	}

	jitterFrac := 0.2
	jitter := time.Duration(rand.Float64()*2*jitterFrac*float64(backoff)) -
		time.Duration(jitterFrac*float64(backoff))

	return backoff + jitter
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
