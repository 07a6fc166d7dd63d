package task

import (
	"context"
	"io"
	"log/slog"

	"github.com/google/uuid"
)

type stubTask struct {
	id     uuid.UUID
	name   string
	status Status
	run    func(ctx context.Context) error
}

func newStubTask(name string, run func(ctx context.Context) error) *stubTask {
	return &stubTask{id: uuid.New(), name: name, status: StatusPending, run: run}
}

func (s *stubTask) ID() uuid.UUID  { return s.id }
func (s *stubTask) Name() string   { return s.name }
func (s *stubTask) Status() Status { return s.status }

func (s *stubTask) Execute(ctx context.Context) error {
	if s.run == nil {
		return nil
	}
	return s.run(ctx)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// chanSource feeds a Pool directly, without a Queue.
type chanSource chan Task

func (c chanSource) Tasks() <-chan Task { return c }
