package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Pool runs tasks from a Source on a fixed number of goroutines.
type Pool struct {
	src     Source
	workers int
	log     *slog.Logger
	onError func(t Task, err error)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPool returns a Pool with the given number of workers. Fewer than one
// worker is raised to one.
func NewPool(src Source, workers int, log *slog.Logger) *Pool {
	if workers < 1 {
		log.Warn("invalid worker count, using 1", "workers", workers)
		workers = 1
	}
	return &Pool{src: src, workers: workers, log: log}
}

// OnError sets the callback for failed tasks. Without one, failures are
// logged at error level. Must be called before Start.
func (p *Pool) OnError(fn func(t Task, err error)) {
	p.onError = fn
}

// Start launches the workers. Tasks run with a context derived from ctx;
// canceling ctx or calling Stop cancels running tasks.
func (p *Pool) Start(ctx context.Context) {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.log.Debug("starting workers", "workers", p.workers)
	for i := range p.workers {
		p.wg.Add(1)
		go p.run(i)
	}
}

// Wait blocks until every worker has exited: the source was closed and
// drained, or the pool was canceled.
func (p *Pool) Wait() {
	p.wg.Wait()
	if p.cancel != nil {
		p.cancel()
	}
}

// Stop cancels running tasks and waits for the workers to exit.
func (p *Pool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

func (p *Pool) run(worker int) {
	defer p.wg.Done()

	tasks := p.src.Tasks()
	for {
		select {
		case <-p.ctx.Done():
			return
		case t, ok := <-tasks:
			if !ok {
				return
			}
			p.process(worker, t)
		}
	}
}

func (p *Pool) process(worker int, t Task) {
	started := time.Now()
	log := p.log.With("worker", worker, "task_id", t.ID(), "task", t.Name())
	log.Debug("task started")

	if err := p.execute(t); err != nil {
		if p.onError != nil {
			p.onError(t, err)
			return
		}
		log.Error("task failed", "error", err)
		return
	}
	log.Debug("task done", "duration_ms", time.Since(started).Milliseconds())
}

// execute runs t, turning a panic into an error.
func (p *Pool) execute(t Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", t.Name(), r)
		}
	}()
	return t.Execute(p.ctx)
}
