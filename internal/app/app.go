// Package app wires configuration, state, fetching, the aggregation
// pipeline and publishing into the compile and serve commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/yaha/internal/cache"
	"github.com/phrazzld/yaha/internal/config"
	"github.com/phrazzld/yaha/internal/domain"
	"github.com/phrazzld/yaha/internal/fetch"
	"github.com/phrazzld/yaha/internal/output"
	"github.com/phrazzld/yaha/internal/parser"
	"github.com/phrazzld/yaha/internal/pipeline"
	"github.com/phrazzld/yaha/internal/platform/logger"
	"github.com/phrazzld/yaha/internal/platform/metrics"
	"github.com/phrazzld/yaha/internal/platform/statedb"
	"github.com/phrazzld/yaha/internal/psl"
	"github.com/phrazzld/yaha/internal/report"
	"github.com/phrazzld/yaha/internal/state"
	"github.com/phrazzld/yaha/internal/store"
	"github.com/phrazzld/yaha/internal/whitelist"
)

// ErrNoUsableSources is returned when every active source failed, so
// publishing would replace the outputs with empty lists.
var ErrNoUsableSources = errors.New("no usable sources")

// Options control a single compilation.
type Options struct {
	// Force compiles even when no source changed.
	Force bool
	// CompileOnly skips fetching and compiles from the content cache.
	CompileOnly bool
}

// Outcome summarises one call to Compile.
type Outcome struct {
	Compiled    bool
	Forced      bool
	Changed     []string
	Purged      []string
	Resolutions []*state.Resolution
	Result      *pipeline.Result
}

// App runs compilations for one configuration. Compile calls are
// serialized.
type App struct {
	cfg     *config.Config
	log     *slog.Logger
	fetcher fetch.Fetcher
	metrics *metrics.Metrics
	now     func() time.Time

	mu sync.Mutex
}

// Option customizes an App.
type Option func(*App)

// WithFetcher replaces the HTTP client used for sources and the PSL.
func WithFetcher(f fetch.Fetcher) Option {
	return func(a *App) { a.fetcher = f }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

// New returns an App for cfg.
func New(cfg *config.Config, log *slog.Logger, opts ...Option) *App {
	a := &App{
		cfg:     cfg,
		log:     log,
		fetcher: fetch.NewClient(fetch.OptionsFromConfig(cfg.Fetch), nil),
		metrics: metrics.New(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Metrics returns the collectors updated by Compile.
func (a *App) Metrics() *metrics.Metrics {
	return a.metrics
}

func (a *App) outputPaths() output.Paths {
	return output.Paths{
		Dir:            a.cfg.Paths.OutputDir,
		GeneralFile:    a.cfg.Paths.GeneralFile,
		RestrictedFile: a.cfg.Paths.RestrictedFile,
		StatsFile:      a.cfg.Paths.StatsFile,
	}
}

// Compile runs one full compilation: load state, drop stale sources, fetch
// or read cached content, decide whether anything needs compiling, run the
// pipeline, publish outputs and persist state.
func (a *App) Compile(ctx context.Context, opts Options) (*Outcome, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	started := a.now()
	now := started.UTC()
	log := a.log.With("force", opts.Force, "compile_only", opts.CompileOnly)
	ctx = logger.WithLogger(ctx, log)

	db, err := statedb.Open(ctx, a.cfg.State.Driver, a.cfg.State.DSN, log)
	if err != nil {
		return nil, fmt.Errorf("opening state database: %w", err)
	}
	defer closeQuietly(log, "state database", db)
	states := statedb.NewStateStore(db, a.cfg.State.Driver)

	st, err := states.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading compilation state: %w", err)
	}

	sources, err := config.LoadSources(a.cfg.Paths.Sources)
	if err != nil {
		return nil, err
	}

	contents, err := cache.Open(a.cfg.Cache.Path)
	if err != nil {
		return nil, fmt.Errorf("opening content cache: %w", err)
	}
	defer closeQuietly(log, "content cache", contents)

	active, purged := state.CheckStale(st, sources, now, a.cfg.State.StaleDays)
	if len(purged) > 0 {
		if err := a.purge(ctx, contents, active, purged); err != nil {
			return nil, err
		}
	}
	if len(active) == 0 {
		return nil, fmt.Errorf("%w: no active sources in %s", domain.ErrConfig, a.cfg.Paths.Sources)
	}

	wl, err := config.LoadWhitelist(a.cfg.Paths.Whitelist)
	if err != nil {
		return nil, err
	}
	for _, r := range wl.Rejected() {
		log.Warn("skipping whitelist rule",
			"line", r.Line,
			"rule", r.Rule,
			"error", r.Err)
	}

	out := &Outcome{Purged: purged}
	if opts.CompileOnly {
		out.Resolutions = a.resolveCached(ctx, contents, active)
	} else {
		out.Resolutions, out.Changed = a.resolveFetched(ctx, contents, st, active, now)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tally := state.Tally(out.Resolutions)
	log.Info("sources resolved",
		"active", len(active),
		"usable", tally[state.Cached],
		"failed", tally[state.Failed],
		"changed", len(out.Changed),
		"purged", len(purged))

	out.Forced = opts.Force || state.ShouldForceCompile(st, now, a.cfg.State.ForceInterval)
	if !opts.CompileOnly && len(out.Changed) == 0 && !out.Forced && len(purged) == 0 {
		st.SkippedCompilations++
		if err := states.Save(ctx, st); err != nil {
			return nil, fmt.Errorf("saving compilation state: %w", err)
		}
		a.metrics.ObserveSkipped()
		a.writeMetrics(log)
		log.Info("no source changed, skipping compilation",
			"skipped_compilations", st.SkippedCompilations)
		return out, nil
	}

	if tally[state.Cached] == 0 {
		if err := states.Save(ctx, st); err != nil {
			log.Error("failed to save compilation state", "error", err)
		}
		return nil, fmt.Errorf("%w: all %d sources failed", ErrNoUsableSources, len(active))
	}

	list, err := a.loadPSL(ctx, !opts.CompileOnly, now)
	if err != nil {
		return nil, err
	}

	res, err := a.runPipeline(ctx, active, wl, list, out.Resolutions, now)
	if err != nil {
		return nil, err
	}
	out.Result = res
	out.Compiled = true

	for _, r := range out.Resolutions {
		if perr, ok := res.Diagnostics.ParseFailures[r.Source.Name]; ok {
			r.Exclude(perr)
		}
	}

	a.updateReadme(log, active, res, now)

	categories := make(map[string]string, len(active))
	for _, src := range active {
		categories[src.Name] = src.Category.String()
	}
	a.metrics.ObserveResult(res, func(name string) string { return categories[name] }, started)
	a.metrics.MarkCompile(now)
	a.writeMetrics(log)

	st.LastCompilation = now
	st.CompilationCount++
	if err := states.Save(ctx, st); err != nil {
		return nil, fmt.Errorf("saving compilation state: %w", err)
	}

	log.Info("compilation published",
		"run_id", res.RunID,
		"general", res.GeneralCount,
		"restricted", res.RestrictedCount,
		"compilation_count", st.CompilationCount,
		"duration_ms", a.now().Sub(started).Milliseconds())
	return out, nil
}

// purge rewrites the source list without the stale sources and drops their
// cached content.
func (a *App) purge(ctx context.Context, contents *cache.Store, active []domain.SourceDescriptor, purged []string) error {
	log := logger.FromContext(ctx)
	log.Warn("removing stale sources",
		"sources", purged,
		"threshold_days", a.cfg.State.StaleDays)

	if err := config.SaveSources(a.cfg.Paths.Sources, active); err != nil {
		return fmt.Errorf("saving source list: %w", err)
	}
	for _, name := range purged {
		if err := contents.Delete(ctx, name); err != nil {
			log.Warn("failed to drop cached content", "source", name, "error", err)
		}
	}
	return nil
}

// resolveFetched downloads every source, records content changes in st and
// falls back to the cached copy when a download fails.
func (a *App) resolveFetched(
	ctx context.Context,
	contents *cache.Store,
	st *store.CompilationState,
	sources []domain.SourceDescriptor,
	now time.Time,
) ([]*state.Resolution, []string) {
	log := logger.FromContext(ctx)
	collector := fetch.NewCollector(a.fetcher, a.cfg.Fetch.Workers, log)
	outcomes := collector.Collect(ctx, sources)

	resolutions := make([]*state.Resolution, len(outcomes))
	var changed []string
	for i, o := range outcomes {
		r := state.NewResolution(o.Source)
		resolutions[i] = r

		if o.Err != nil {
			a.metrics.ObserveFetchFailure(o.Source.Name)
			entry, body, err := contents.Get(ctx, o.Source.Name)
			cached := err == nil
			if err != nil && !errors.Is(err, cache.ErrNotFound) {
				log.Warn("failed to read cached content", "source", o.Source.Name, "error", err)
			}
			_ = r.FetchFailed(o.Err, body, entry.Hash, cached)
			log.Warn("source fetch failed",
				"source", o.Source.Name,
				"using_cache", cached,
				"error", o.Err)
			continue
		}

		_ = r.Fetched(o.Content.Body, o.Content.Hash)
		if state.UpdateSource(st, o.Source, o.Content.Hash, now) {
			changed = append(changed, o.Source.Name)
			log.Debug("source content changed", "source", o.Source.Name, "hash", o.Content.Hash)
		}

		entry := cache.Entry{
			Name:      o.Source.Name,
			URL:       o.Source.URL,
			Hash:      o.Content.Hash,
			Size:      len(o.Content.Body),
			FetchedAt: o.Content.FetchedAt,
		}
		if err := contents.Put(ctx, entry, o.Content.Body); err != nil {
			log.Warn("failed to cache content", "source", o.Source.Name, "error", err)
		}
	}
	return resolutions, changed
}

// resolveCached loads every source from the content cache. Sources never
// cached are marked failed.
func (a *App) resolveCached(ctx context.Context, contents *cache.Store, sources []domain.SourceDescriptor) []*state.Resolution {
	log := logger.FromContext(ctx)

	names := make([]string, len(sources))
	for i, src := range sources {
		names[i] = src.Name
	}
	if missing, err := contents.Missing(ctx, names); err == nil && len(missing) > 0 {
		log.Warn("sources missing from cache", "sources", missing)
	}

	resolutions := make([]*state.Resolution, len(sources))
	for i, src := range sources {
		r := state.NewResolution(src)
		resolutions[i] = r

		entry, body, err := contents.Get(ctx, src.Name)
		if err != nil {
			_ = r.FetchFailed(fmt.Errorf("%w: %s: %w", domain.ErrSourceFetch, src.Name, err), nil, "", false)
			continue
		}
		_ = r.FromCache(body, entry.Hash)
	}

	if st, err := contents.Stats(ctx); err == nil {
		log.Info("compiling from cache", "cached_sources", st.Sources, "cached_bytes", st.Bytes)
	}
	return resolutions
}

func (a *App) runPipeline(
	ctx context.Context,
	sources []domain.SourceDescriptor,
	wl *whitelist.Set,
	list *psl.List,
	resolutions []*state.Resolution,
	now time.Time,
) (*pipeline.Result, error) {
	log := logger.FromContext(ctx)

	inputs := make([]pipeline.Input, 0, len(resolutions))
	for _, r := range resolutions {
		if !r.Usable() {
			continue
		}
		format, err := parser.ParseFormat(r.Source.Format)
		if err != nil {
			log.Warn("unknown source format, detecting instead", "source", r.Source.Name, "error", err)
		}
		inputs = append(inputs, pipeline.Input{Source: r.Source.Name, Content: r.Content, Format: format})
	}

	sink, err := output.NewFileSink(a.outputPaths(), sources, now)
	if err != nil {
		return nil, err
	}

	cfg := pipeline.Config{
		Workers:        a.cfg.Run.Workers,
		SpillThreshold: a.cfg.Run.SpillThreshold,
		TempDir:        a.cfg.Run.TempDir,
		SampleLines:    a.cfg.Run.SampleLines,
	}
	snap := pipeline.Snapshot{Sources: sources, Whitelist: wl, PSL: list}

	res, err := pipeline.Run(ctx, cfg, snap, inputs, sink)
	if err != nil {
		return nil, fmt.Errorf("compiling outputs: %w", err)
	}
	return res, nil
}

func (a *App) updateReadme(log *slog.Logger, sources []domain.SourceDescriptor, res *pipeline.Result, now time.Time) {
	path := a.cfg.Paths.Readme
	if path == "" {
		return
	}
	err := report.UpdateReadme(path, report.Report{
		Sources:         sources,
		Stats:           res.Stats,
		GeneralCount:    res.GeneralCount,
		RestrictedCount: res.RestrictedCount,
		UpdatedAt:       now,
	})
	switch {
	case err == nil:
		log.Info("readme updated", "path", path)
	case errors.Is(err, report.ErrReadmeNotFound), errors.Is(err, report.ErrMissingMarkers):
		log.Warn("readme not updated", "path", path, "error", err)
	default:
		log.Error("failed to update readme", "path", path, "error", err)
	}
}

func (a *App) writeMetrics(log *slog.Logger) {
	path := a.cfg.Metrics.Textfile
	if path == "" {
		return
	}
	if err := a.metrics.WriteTextfile(path); err != nil {
		log.Error("failed to write metrics textfile", "path", path, "error", err)
	}
}

func closeQuietly(log *slog.Logger, what string, c io.Closer) {
	if err := c.Close(); err != nil {
		log.Error("failed to close "+what, "error", err)
	}
}
