package task

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_RejectsWhenFull(t *testing.T) {
	t.Parallel()

	q := NewQueue(2, discardLogger())
	require.NoError(t, q.Push(newStubTask("a", nil)))
	require.NoError(t, q.Push(newStubTask("b", nil)))
	assert.Equal(t, 2, q.Len())

	late := newStubTask("c", nil)
	assert.ErrorIs(t, q.Push(late), ErrQueueFull)

	first := <-q.Tasks()
	assert.Equal(t, "a", first.Name())
	assert.NoError(t, q.Push(late))
}

func TestQueue_CloseDrains(t *testing.T) {
	t.Parallel()

	q := NewQueue(4, discardLogger())
	queued := newStubTask("queued", nil)
	require.NoError(t, q.Push(queued))

	q.Close()
	q.Close()
	assert.ErrorIs(t, q.Push(newStubTask("late", nil)), ErrQueueClosed)

	var names []string
	for task := range q.Tasks() {
		names = append(names, task.Name())
	}
	assert.Equal(t, []string{"queued"}, names)
}

func TestQueue_ConcurrentPushAndClose(t *testing.T) {
	t.Parallel()

	q := NewQueue(100, discardLogger())

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 10 {
				if err := q.Push(newStubTask("n", nil)); err != nil {
					assert.ErrorIs(t, err, ErrQueueClosed)
				}
			}
		}()
	}
	q.Close()
	wg.Wait()

	count := 0
	for range q.Tasks() {
		count++
	}
	assert.LessOrEqual(t, count, 100)
}
