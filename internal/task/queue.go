package task

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

var (
	ErrQueueClosed = errors.New("task queue is closed")
	ErrQueueFull   = errors.New("task queue is full")
)

// Queue is a bounded FIFO of tasks. Push never blocks; a full queue rejects
// the task.
type Queue struct {
	mu     sync.Mutex
	ch     chan Task
	closed bool
	log    *slog.Logger
}

// NewQueue returns a Queue holding at most capacity pending tasks.
func NewQueue(capacity int, log *slog.Logger) *Queue {
	return &Queue{ch: make(chan Task, capacity), log: log}
}

// Push adds t to the queue.
func (q *Queue) Push(t Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.ch <- t:
		q.log.Debug("task queued", "task_id", t.ID(), "task", t.Name(), "pending", len(q.ch))
		return nil
	default:
		return fmt.Errorf("%w: capacity %d", ErrQueueFull, cap(q.ch))
	}
}

// Close stops further pushes. Tasks already queued are still delivered.
// Closing twice is a no-op.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}

// Tasks returns the channel workers consume from. It is closed once the
// queue is closed and drained.
func (q *Queue) Tasks() <-chan Task {
	return q.ch
}

// Len returns the number of tasks waiting to be consumed.
func (q *Queue) Len() int {
	return len(q.ch)
}
