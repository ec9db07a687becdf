package types

import "context"

// Executor runs tasks and resolves every one of them, success or failure,
// inside a TaskResult. The worker pool and the inline executor are the two
// interchangeable implementations; callers depend only on this interface.
type Executor interface {
	// Submit enqueues one task and blocks until its result is available.
	// Task-level failures are reported inside the TaskResult, never as a
	// panic or a dropped result.
	Submit(ctx context.Context, task Task) TaskResult

	// Process submits the whole batch and blocks until every result is
	// available. Results are index-aligned with the input tasks regardless
	// of actual completion order.
	Process(ctx context.Context, tasks []Task) []TaskResult
}

// Handler executes tasks of one registered type. The returned value becomes
// TaskResult.Data on success. A returned error marks the result failed; a
// panic is treated as a worker crash and recovered by the pool, not the
// worker.
type Handler func(ctx context.Context, task Task) (any, error)

// HandlerMap maps task types to their handlers. It is fixed at executor
// construction; resolution is by table lookup only.
type HandlerMap map[string]Handler
