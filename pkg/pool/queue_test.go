package pool

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/odavl/insight/pkg/types"
)

func TestTaskQueue_PriorityOrder(t *testing.T) {
	q := newTaskQueue()

	q.push(newPending(types.Task{ID: "low", Priority: 1}))
	q.push(newPending(types.Task{ID: "high", Priority: 10}))
	q.push(newPending(types.Task{ID: "mid", Priority: 5}))

	assert.Equal(t, 3, q.len())
	assert.Equal(t, "high", q.pop().task.ID)
	assert.Equal(t, "mid", q.pop().task.ID)
	assert.Equal(t, "low", q.pop().task.ID)
	assert.Nil(t, q.pop())
}

func TestTaskQueue_FIFOWithinPriority(t *testing.T) {
	q := newTaskQueue()

	for i := 0; i < 10; i++ {
		q.push(newPending(types.Task{ID: fmt.Sprintf("task-%d", i), Priority: 3}))
	}

	for i := 0; i < 10; i++ {
		pt := q.pop()
		assert.Equal(t, fmt.Sprintf("task-%d", i), pt.task.ID)
	}
}

func TestTaskQueue_MixedPriorities(t *testing.T) {
	q := newTaskQueue()

	q.push(newPending(types.Task{ID: "a", Priority: 0}))
	q.push(newPending(types.Task{ID: "b", Priority: 5}))
	q.push(newPending(types.Task{ID: "c", Priority: 0}))
	q.push(newPending(types.Task{ID: "d", Priority: 5}))

	var order []string
	for pt := q.pop(); pt != nil; pt = q.pop() {
		order = append(order, pt.task.ID)
	}
	assert.Equal(t, []string{"b", "d", "a", "c"}, order)
}

func TestTaskQueue_EmptyPop(t *testing.T) {
	q := newTaskQueue()
	assert.Nil(t, q.pop())
	assert.Equal(t, 0, q.len())
}

func TestPending_ResolveOnce(t *testing.T) {
	pt := newPending(types.Task{ID: "once"})

	pt.resolve(types.TaskResult{TaskID: "once", Success: true})
	pt.resolve(types.TaskResult{TaskID: "once", Success: false, Error: "late"})

	res := <-pt.done
	assert.True(t, res.Success)

	select {
	case extra := <-pt.done:
		t.Fatalf("second result delivered: %+v", extra)
	default:
	}
}
