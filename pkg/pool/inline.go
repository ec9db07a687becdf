package pool

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/odavl/insight/pkg/types"
)

// Inline executes tasks as concurrent goroutines in the caller's own
// process context instead of isolated pool workers. It carries the same
// contract as Pool: every task resolves into exactly one TaskResult and a
// panicking handler becomes a failed result rather than propagating. What
// it cannot offer is isolation: a timed-out handler is abandoned, not
// killed, and keeps running inside the host process.
type Inline struct {
	opts     types.Options
	handlers types.HandlerMap
	logger   *slog.Logger
	clock    types.Clock
	permits  chan struct{}
}

// NewInline creates an inline executor with the same validation rules as
// the pool constructor.
func NewInline(handlers types.HandlerMap, opts types.Options) (*Inline, error) {
	if opts.MaxWorkers <= 0 {
		return nil, types.NewConfigError("maxWorkers", opts.MaxWorkers, "must be positive")
	}
	return newInline(handlers, opts), nil
}

// newInline skips validation; used by Pool, which has already validated.
func newInline(handlers types.HandlerMap, opts types.Options) *Inline {
	opts = opts.Normalize()
	return &Inline{
		opts:     opts,
		handlers: handlers,
		logger:   opts.Logger.With("component", "inline-executor"),
		clock:    opts.Clock,
		permits:  make(chan struct{}, opts.MaxWorkers),
	}
}

// Submit runs one task and blocks until it resolves.
func (e *Inline) Submit(ctx context.Context, task types.Task) types.TaskResult {
	select {
	case e.permits <- struct{}{}:
	case <-ctx.Done():
		return failedResult(task.ID, ctx.Err().Error())
	}
	defer func() { <-e.permits }()
	return e.run(ctx, task)
}

// Process runs the batch with at most MaxWorkers tasks in flight. Tasks are
// started in priority order (higher first, FIFO within equal priority) and
// results are index-aligned with the input.
func (e *Inline) Process(ctx context.Context, tasks []types.Task) []types.TaskResult {
	results := make([]types.TaskResult, len(tasks))

	order := make([]int, len(tasks))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return tasks[order[a]].Priority > tasks[order[b]].Priority
	})

	var wg sync.WaitGroup
	for _, idx := range order {
		select {
		case e.permits <- struct{}{}:
		case <-ctx.Done():
			results[idx] = failedResult(tasks[idx].ID, ctx.Err().Error())
			continue
		}

		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-e.permits }()
			results[i] = e.run(ctx, tasks[i])
		}(idx)
	}

	wg.Wait()
	return results
}

// run executes one task, converting handler errors and panics into failed
// results. Timeouts are enforced with a watchdog; without worker isolation
// a stuck handler cannot be killed, only abandoned.
func (e *Inline) run(ctx context.Context, task types.Task) (result types.TaskResult) {
	start := e.clock.Now()

	handler, ok := e.handlers[task.Type]
	if !ok {
		return types.TaskResult{
			TaskID:   task.ID,
			Success:  false,
			Error:    fmt.Sprintf("unknown task type %q", task.Type),
			WorkerID: -1,
		}
	}

	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan types.TaskResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- types.TaskResult{
					TaskID:   task.ID,
					Success:  false,
					Error:    fmt.Sprintf("task panicked: %v", r),
					WorkerID: -1,
					Duration: e.clock.Since(start),
				}
			}
		}()
		data, err := handler(taskCtx, task)
		res := types.TaskResult{
			TaskID:   task.ID,
			Success:  err == nil,
			Data:     data,
			WorkerID: -1,
			Duration: e.clock.Since(start),
		}
		if err != nil {
			res.Success = false
			res.Data = nil
			res.Error = err.Error()
		}
		done <- res
	}()

	timer := e.clock.NewTimer(e.opts.TaskTimeout)
	defer timer.Stop()

	select {
	case res := <-done:
		return res
	case <-timer.C():
		e.logger.Warn("task timed out", "task", task.ID, "timeout", e.opts.TaskTimeout)
		return types.TaskResult{
			TaskID:   task.ID,
			Success:  false,
			Error:    fmt.Sprintf("%s after %s", types.ErrTaskTimeout, e.opts.TaskTimeout),
			WorkerID: -1,
			Duration: e.clock.Since(start),
		}
	}
}
