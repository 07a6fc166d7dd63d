package app

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/phrazzld/yaha/internal/api"
)

// Serve publishes the compiled outputs and metrics over HTTP until ctx is
// canceled. When a compile interval is configured, compilations also run
// on that schedule.
func (a *App) Serve(ctx context.Context) error {
	return a.serve(ctx, nil)
}

// serve runs on ln, or listens on the configured address when ln is nil.
func (a *App) serve(ctx context.Context, ln net.Listener) error {
	reg := a.metrics.Registry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	router := api.NewRouter(api.NewHandler(a.outputPaths()), reg)
	srv := api.NewServer(a.cfg.Serve.Addr, router, a.cfg.Serve.ShutdownTimeout, a.log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if ln != nil {
			return srv.Serve(gctx, ln)
		}
		return srv.Run(gctx)
	})
	if interval := a.cfg.Serve.CompileInterval; interval > 0 {
		g.Go(func() error {
			a.compileEvery(gctx, interval)
			return nil
		})
	}
	return g.Wait()
}

// compileEvery runs Compile immediately and then once per interval. Failed
// compilations are logged and retried on the next tick.
func (a *App) compileEvery(ctx context.Context, interval time.Duration) {
	a.log.Info("scheduled compilation enabled", "interval", interval.String())
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := a.Compile(ctx, Options{}); err != nil && !errors.Is(err, context.Canceled) {
			a.log.Error("scheduled compilation failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
