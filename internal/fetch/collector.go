package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/phrazzld/yaha/internal/domain"
	"github.com/phrazzld/yaha/internal/task"
)

// Outcome is the result of fetching one source.
type Outcome struct {
	Source  domain.SourceDescriptor
	Content Content
	Err     error
}

// Collector downloads many sources concurrently.
type Collector struct {
	fetcher Fetcher
	workers int
	logger  *slog.Logger
}

// NewCollector returns a Collector running at most workers fetches at once.
func NewCollector(f Fetcher, workers int, logger *slog.Logger) *Collector {
	return &Collector{fetcher: f, workers: workers, logger: logger}
}

// Collect fetches every source and returns outcomes in source order.
// Sources not attempted because ctx ended carry ctx's error.
func (c *Collector) Collect(ctx context.Context, sources []domain.SourceDescriptor) []Outcome {
	outcomes := make([]Outcome, len(sources))
	if len(sources) == 0 {
		return outcomes
	}

	queue := task.NewQueue(len(sources), c.logger)
	tasks := make([]*fetchTask, len(sources))
	for i, src := range sources {
		outcomes[i] = Outcome{Source: src}
		tasks[i] = &fetchTask{id: uuid.New(), source: src, fetcher: c.fetcher, status: task.StatusPending}
		if err := queue.Push(tasks[i]); err != nil {
			tasks[i].fail(err)
		}
	}
	queue.Close()

	pool := task.NewPool(queue, c.workers, c.logger)
	pool.OnError(func(t task.Task, err error) {
		c.logger.Warn("source fetch failed", "task_id", t.ID(), "source", t.Name(), "error", err)
	})
	pool.Start(ctx)
	pool.Wait()

	var failed int
	for i, t := range tasks {
		content, err := t.result()
		if err == nil && t.Status() != task.StatusDone {
			err = fmt.Errorf("%w: %s: not attempted", domain.ErrSourceFetch, t.source.Name)
			if cause := context.Cause(ctx); cause != nil {
				err = fmt.Errorf("%w: %w", err, cause)
			}
		}
		outcomes[i].Content = content
		outcomes[i].Err = err
		if err != nil {
			failed++
		}
	}

	c.logger.Info("fetch complete", "sources", len(sources), "failed", failed)
	return outcomes
}

// fetchTask downloads one source as a task.Task.
type fetchTask struct {
	id      uuid.UUID
	source  domain.SourceDescriptor
	fetcher Fetcher

	mu      sync.Mutex
	status  task.Status
	content Content
	err     error
}

func (t *fetchTask) ID() uuid.UUID { return t.id }
func (t *fetchTask) Name() string  { return t.source.Name }

func (t *fetchTask) Status() task.Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

func (t *fetchTask) Execute(ctx context.Context) error {
	t.mu.Lock()
	t.status = task.StatusRunning
	t.mu.Unlock()

	content, err := t.fetcher.Fetch(ctx, t.source.URL)
	if err != nil {
		if !errors.Is(err, domain.ErrSourceFetch) {
			err = fmt.Errorf("%w: %w", domain.ErrSourceFetch, err)
		}
		err = fmt.Errorf("source %s: %w", t.source.Name, err)
		t.fail(err)
		return err
	}

	t.mu.Lock()
	t.status = task.StatusDone
	t.content = content
	t.mu.Unlock()
	return nil
}

func (t *fetchTask) fail(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = task.StatusFailed
	t.err = err
}

func (t *fetchTask) result() (Content, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.content, t.err
}
