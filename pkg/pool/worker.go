package pool

import (
	"context"
	"fmt"

	"github.com/odavl/insight/pkg/types"
)

// completion is a worker's report of a finished task.
type completion struct {
	workerID int
	result   types.TaskResult
}

// crash is a worker's dying report. It is sent from the deferred recover of
// the worker goroutine; the pool decides how to recover, never the worker.
// The report carries its sender so the dispatcher can reject reports from a
// worker that was already replaced.
type crash struct {
	w        *worker
	workerID int
	taskID   string
	reason   string
}

// worker is a persistent execution context. It owns no shared state: tasks
// arrive on its private channel and results leave as messages. All state
// about what a worker is doing lives in the dispatcher's slot table.
type worker struct {
	id       int
	tasks    chan *pending
	results  chan<- completion
	crashes  chan<- crash
	ready    chan<- int
	handlers types.HandlerMap
	clock    types.Clock

	ctx    context.Context
	cancel context.CancelFunc
}

func newWorker(id int, parent context.Context, p *Pool) *worker {
	ctx, cancel := context.WithCancel(parent)
	return &worker{
		id:       id,
		tasks:    make(chan *pending, 1),
		results:  p.completionCh,
		crashes:  p.crashCh,
		ready:    p.readyCh,
		handlers: p.handlers,
		clock:    p.opts.Clock,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// run is the worker loop. A handler panic escapes execute, lands in the
// deferred recover here, and terminates the goroutine after a crash report;
// the dispatcher then resolves the held task and spawns a replacement.
func (w *worker) run() {
	var currentTask string

	defer func() {
		if r := recover(); r != nil {
			select {
			case w.crashes <- crash{w: w, workerID: w.id, taskID: currentTask, reason: fmt.Sprintf("%v", r)}:
			case <-w.ctx.Done():
			}
		}
	}()

	select {
	case w.ready <- w.id:
	case <-w.ctx.Done():
		return
	}

	for {
		select {
		case <-w.ctx.Done():
			return
		case pt := <-w.tasks:
			currentTask = pt.task.ID
			res := w.execute(pt.task)
			currentTask = ""
			select {
			case w.results <- completion{workerID: w.id, result: res}:
			case <-w.ctx.Done():
				// Abandoned after a timeout; the dispatcher already
				// resolved this task, so the result is dropped.
				return
			}
		}
	}
}

// execute runs one task. Handler errors (including an unknown task type)
// become failed results here at the worker boundary; they never propagate.
func (w *worker) execute(task types.Task) types.TaskResult {
	start := w.clock.Now()

	handler, ok := w.handlers[task.Type]
	if !ok {
		return types.TaskResult{
			TaskID:   task.ID,
			Success:  false,
			Error:    fmt.Sprintf("unknown task type %q", task.Type),
			WorkerID: w.id,
		}
	}

	data, err := handler(w.ctx, task)
	duration := w.clock.Since(start)

	if err != nil {
		return types.TaskResult{
			TaskID:   task.ID,
			Success:  false,
			Error:    err.Error(),
			WorkerID: w.id,
			Duration: duration,
		}
	}

	return types.TaskResult{
		TaskID:   task.ID,
		Success:  true,
		Data:     data,
		WorkerID: w.id,
		Duration: duration,
	}
}
