package task

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPool_WorkerCount(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		workers int
		want    int
	}{
		{workers: 5, want: 5},
		{workers: 0, want: 1},
		{workers: -3, want: 1},
	}
	for _, tc := range testCases {
		p := NewPool(make(chanSource), tc.workers, discardLogger())
		assert.Equal(t, tc.want, p.workers)
	}
}

func TestPool_DrainsClosedQueue(t *testing.T) {
	t.Parallel()

	q := NewQueue(20, discardLogger())
	var done atomic.Int32
	for range 20 {
		require.NoError(t, q.Push(newStubTask("count", func(context.Context) error {
			done.Add(1)
			return nil
		})))
	}
	q.Close()

	p := NewPool(q, 4, discardLogger())
	p.Start(context.Background())
	p.Wait()

	assert.Equal(t, int32(20), done.Load())
}

func TestPool_ReportsFailures(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	testCases := []struct {
		name  string
		run   func(context.Context) error
		check func(t *testing.T, err error)
	}{
		{
			name:  "error",
			run:   func(context.Context) error { return boom },
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, boom) },
		},
		{
			name:  "panic",
			run:   func(context.Context) error { panic("kaput") },
			check: func(t *testing.T, err error) { assert.Contains(t, err.Error(), "panicked: kaput") },
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			src := make(chanSource, 1)
			failures := make(chan error, 1)

			p := NewPool(src, 1, discardLogger())
			p.OnError(func(_ Task, err error) { failures <- err })
			p.Start(context.Background())
			defer p.Stop()

			src <- newStubTask(tc.name, tc.run)

			select {
			case err := <-failures:
				tc.check(t, err)
			case <-time.After(time.Second):
				t.Fatal("failure was not reported")
			}
		})
	}
}

func TestPool_StopCancelsRunningTask(t *testing.T) {
	t.Parallel()

	src := make(chanSource, 1)
	started := make(chan struct{})
	canceled := make(chan struct{})

	p := NewPool(src, 1, discardLogger())
	p.Start(context.Background())
	src <- newStubTask("slow", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		close(canceled)
		return ctx.Err()
	})

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("task did not start")
	}

	stopped := make(chan struct{})
	go func() {
		p.Stop()
		close(stopped)
	}()

	for _, ch := range []chan struct{}{canceled, stopped} {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatal("pool did not stop")
		}
	}
}

func TestPool_ParentCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	p := NewPool(make(chanSource), 2, discardLogger())
	p.Start(ctx)
	cancel()

	waited := make(chan struct{})
	go func() {
		p.Wait()
		close(waited)
	}()

	select {
	case <-waited:
	case <-time.After(time.Second):
		t.Fatal("workers did not exit after cancellation")
	}
}
