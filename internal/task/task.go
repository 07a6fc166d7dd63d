package task

import (
	"context"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a Task.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// Task is one unit of work run by a Pool. Implementations record their own
// result; the pool only reports failures.
type Task interface {
	ID() uuid.UUID
	// Name labels the task in logs, e.g. the source it fetches.
	Name() string
	Status() Status
	Execute(ctx context.Context) error
}

// Source is the consuming side of a Queue.
type Source interface {
	Tasks() <-chan Task
}
