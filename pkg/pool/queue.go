// Package pool implements the crash-tolerant parallel task executor: a
// fixed-size worker pool with a priority queue, per-task timeouts, crash
// recovery, and an inline fallback executor sharing the same contract.
package pool

import (
	"container/heap"

	"github.com/odavl/insight/pkg/types"
)

// pending couples a queued task with the channel its result resolves on.
// The channel is buffered so the dispatcher never blocks resolving it.
type pending struct {
	task types.Task
	done chan types.TaskResult
	seq  uint64
}

func newPending(task types.Task) *pending {
	return &pending{task: task, done: make(chan types.TaskResult, 1)}
}

// resolve delivers the result exactly once. Later calls are dropped, which
// keeps the one-result-per-task invariant when a timeout races a completion.
func (p *pending) resolve(res types.TaskResult) {
	select {
	case p.done <- res:
	default:
	}
}

// pendingHeap orders by priority descending, then by submission sequence so
// equal priorities dequeue FIFO.
type pendingHeap []*pending

func (h pendingHeap) Len() int { return len(h) }

func (h pendingHeap) Less(i, j int) bool {
	if h[i].task.Priority != h[j].task.Priority {
		return h[i].task.Priority > h[j].task.Priority
	}
	return h[i].seq < h[j].seq
}

func (h pendingHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *pendingHeap) Push(x any) {
	*h = append(*h, x.(*pending))
}

func (h *pendingHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// taskQueue is the in-memory holding area for tasks awaiting a free worker.
// It is owned exclusively by the dispatcher goroutine and therefore needs no
// locking; single-consumer discipline is the dispatcher's job, not the
// queue's.
type taskQueue struct {
	heap pendingHeap
	seq  uint64
}

func newTaskQueue() *taskQueue {
	return &taskQueue{heap: make(pendingHeap, 0)}
}

// push inserts preserving priority order.
func (q *taskQueue) push(p *pending) {
	q.seq++
	p.seq = q.seq
	heap.Push(&q.heap, p)
}

// pop removes and returns the highest-priority pending task, or nil if the
// queue is empty.
func (q *taskQueue) pop() *pending {
	if len(q.heap) == 0 {
		return nil
	}
	return heap.Pop(&q.heap).(*pending)
}

func (q *taskQueue) len() int {
	return len(q.heap)
}
