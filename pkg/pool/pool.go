package pool

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/odavl/insight/pkg/types"
)

// Pool lifecycle states.
const (
	stateCreated int32 = iota
	stateStarting
	stateRunning
	stateFallback
	stateClosing
	stateClosed
)

// slot is the dispatcher's view of one worker. Only the dispatcher
// goroutine reads or writes slots; workers and callers never touch them.
type slot struct {
	w         *worker
	status    types.WorkerStatus
	current   *pending
	started   time.Time
	timer     types.Timer
	stopWatch chan struct{}
}

type timeoutEvent struct {
	workerID int
	taskID   string
}

type shutdownReq struct {
	done chan struct{}
}

// Pool owns a fixed set of workers and a serialized dispatcher that assigns
// queued tasks to idle workers. Crashed or timed-out workers are replaced
// without shrinking the pool. If workers cannot be spawned at all, the pool
// transparently routes every call through an inline executor instead.
type Pool struct {
	opts     types.Options
	handlers types.HandlerMap
	logger   *slog.Logger
	clock    types.Clock

	state atomic.Int32

	ctx    context.Context
	cancel context.CancelFunc

	submitCh     chan *pending
	completionCh chan completion
	crashCh      chan crash
	timeoutCh    chan timeoutEvent
	shutdownCh   chan shutdownReq
	readyCh      chan int
	ready        chan struct{}

	// dispatcher-owned
	queue *taskQueue
	slots []*slot

	fallback *Inline

	totalWorkers atomic.Int32
	busyWorkers  atomic.Int32

	// spawn starts a worker goroutine. Overridable in tests to exercise
	// the initialization-failure fallback.
	spawn func(*worker) error
}

// New creates a worker pool executing tasks through the given handlers.
// It validates configuration but spawns nothing; call Initialize to start
// the workers.
func New(handlers types.HandlerMap, opts types.Options) (*Pool, error) {
	if opts.MaxWorkers <= 0 {
		return nil, types.NewConfigError("maxWorkers", opts.MaxWorkers, "must be positive")
	}
	opts = opts.Normalize()

	p := &Pool{
		opts:         opts,
		handlers:     handlers,
		logger:       opts.Logger.With("component", "pool"),
		clock:        opts.Clock,
		submitCh:     make(chan *pending),
		completionCh: make(chan completion),
		crashCh:      make(chan crash),
		timeoutCh:    make(chan timeoutEvent),
		shutdownCh:   make(chan shutdownReq),
		readyCh:      make(chan int),
		ready:        make(chan struct{}),
		queue:        newTaskQueue(),
		slots:        make([]*slot, opts.MaxWorkers),
	}
	p.spawn = func(w *worker) error {
		go w.run()
		return nil
	}
	return p, nil
}

// Initialize spawns the workers and blocks until all report ready, then
// closes the Ready channel. A spawn failure is not returned to the caller:
// the pool logs a warning, marks itself disabled, and serves all further
// Submit/Process calls through the inline executor.
func (p *Pool) Initialize(ctx context.Context) error {
	if !p.state.CompareAndSwap(stateCreated, stateStarting) {
		return fmt.Errorf("worker pool is already initialized")
	}

	p.ctx, p.cancel = context.WithCancel(ctx)

	n := p.opts.MaxWorkers
	for i := 0; i < n; i++ {
		w := newWorker(i, p.ctx, p)
		if err := p.spawn(w); err != nil {
			p.engageFallback(&types.WorkerInitError{WorkerID: i, Cause: err})
			return nil
		}
		p.slots[i] = &slot{w: w, status: types.WorkerIdle}
	}

	for seen := 0; seen < n; seen++ {
		select {
		case <-p.readyCh:
		case <-ctx.Done():
			p.engageFallback(&types.WorkerInitError{Cause: ctx.Err()})
			return nil
		}
	}

	p.totalWorkers.Store(int32(n))
	go p.dispatcher()
	p.state.Store(stateRunning)
	close(p.ready)

	p.logger.Debug("worker pool ready", "workers", n, "taskTimeout", p.opts.TaskTimeout)
	return nil
}

// engageFallback disables pooled execution after an initialization failure.
func (p *Pool) engageFallback(initErr *types.WorkerInitError) {
	p.logger.Warn("worker pool initialization failed, using inline executor",
		"error", initErr.Error())
	p.cancel()
	p.fallback = newInline(p.handlers, p.opts)
	p.state.Store(stateFallback)
	close(p.ready)
}

// Ready is closed once all workers are idle (or the fallback is engaged).
func (p *Pool) Ready() <-chan struct{} {
	return p.ready
}

// Submit enqueues one task and blocks until its result resolves. Task-level
// failures are inside the TaskResult; Submit itself never panics and always
// returns a result.
func (p *Pool) Submit(ctx context.Context, task types.Task) types.TaskResult {
	if fb := p.activeFallback(); fb != nil {
		return fb.Submit(ctx, task)
	}

	pt := newPending(task)
	if !p.send(ctx, pt) {
		return p.rejectedResult(task)
	}

	select {
	case res := <-pt.done:
		return res
	case <-ctx.Done():
		return failedResult(task.ID, ctx.Err().Error())
	}
}

// Process submits the whole batch and blocks until every task resolves.
// Results are index-aligned with the input regardless of completion order.
func (p *Pool) Process(ctx context.Context, tasks []types.Task) []types.TaskResult {
	if fb := p.activeFallback(); fb != nil {
		return fb.Process(ctx, tasks)
	}

	results := make([]types.TaskResult, len(tasks))
	pendings := make([]*pending, len(tasks))
	for i, task := range tasks {
		pt := newPending(task)
		if p.send(ctx, pt) {
			pendings[i] = pt
		} else {
			results[i] = p.rejectedResult(task)
		}
	}

	for i, pt := range pendings {
		if pt == nil {
			continue
		}
		select {
		case res := <-pt.done:
			results[i] = res
		case <-ctx.Done():
			results[i] = failedResult(tasks[i].ID, ctx.Err().Error())
		}
	}
	return results
}

// Stats returns a point-in-time utilization snapshot.
func (p *Pool) Stats() types.PoolStats {
	total := int(p.totalWorkers.Load())
	busy := int(p.busyWorkers.Load())

	var util float64
	if total > 0 {
		util = float64(busy) / float64(total)
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return types.PoolStats{
		TotalWorkers:    total,
		IdleWorkers:     total - busy,
		BusyWorkers:     busy,
		ActiveTasks:     busy,
		UtilizationRate: util,
		MemoryUsageMB:   float64(mem.HeapInuse) / (1024 * 1024),
	}
}

// Shutdown stops accepting submissions, waits for in-flight tasks up to the
// configured grace period, then force-terminates whatever is still busy and
// sets TotalWorkers to zero. Shutdown with no in-flight work returns
// immediately.
func (p *Pool) Shutdown(ctx context.Context) error {
	if p.state.CompareAndSwap(stateFallback, stateClosed) {
		return nil
	}
	if !p.state.CompareAndSwap(stateRunning, stateClosing) {
		if p.state.Load() < stateRunning {
			return types.ErrPoolNotInitialized
		}
		return types.ErrPoolClosed
	}

	req := shutdownReq{done: make(chan struct{})}
	select {
	case p.shutdownCh <- req:
	case <-p.ctx.Done():
		p.state.Store(stateClosed)
		return nil
	}

	select {
	case <-req.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	p.state.Store(stateClosed)
	return nil
}

// activeFallback returns the inline executor when pooled execution is
// disabled, nil otherwise.
func (p *Pool) activeFallback() *Inline {
	if p.state.Load() == stateFallback {
		return p.fallback
	}
	return nil
}

// send hands a pending task to the dispatcher. It returns false when the
// pool is not accepting work.
func (p *Pool) send(ctx context.Context, pt *pending) bool {
	if p.state.Load() != stateRunning {
		return false
	}
	select {
	case p.submitCh <- pt:
		return true
	case <-p.ctx.Done():
		return false
	case <-ctx.Done():
		return false
	}
}

func (p *Pool) rejectedResult(task types.Task) types.TaskResult {
	if p.state.Load() < stateRunning {
		return failedResult(task.ID, types.ErrPoolNotInitialized.Error())
	}
	return failedResult(task.ID, types.ErrPoolClosed.Error())
}

func failedResult(taskID, errMsg string) types.TaskResult {
	return types.TaskResult{TaskID: taskID, Success: false, Error: errMsg, WorkerID: -1}
}

// dispatcher is the single serialized decision point: it alone mutates the
// queue, the slot table, and task assignment, so no task can ever be handed
// to two workers.
func (p *Pool) dispatcher() {
	for {
		select {
		case pt := <-p.submitCh:
			p.queue.push(pt)
			p.dispatch()

		case c := <-p.completionCh:
			if p.finish(c.workerID, c.result) {
				p.dispatch()
			}

		case cr := <-p.crashCh:
			if p.recoverCrash(cr) {
				p.dispatch()
			}

		case ev := <-p.timeoutCh:
			if p.expire(ev) {
				p.dispatch()
			}

		case <-p.readyCh:
			// replacement worker came up; nothing to record

		case req := <-p.shutdownCh:
			p.drain(req)
			return

		case <-p.ctx.Done():
			return
		}
	}
}

// dispatch assigns queued tasks to idle workers until one side runs out.
func (p *Pool) dispatch() {
	for {
		s := p.idleSlot()
		if s == nil {
			return
		}
		pt := p.queue.pop()
		if pt == nil {
			return
		}
		p.assign(s, pt)
	}
}

func (p *Pool) idleSlot() *slot {
	for _, s := range p.slots {
		if s.status == types.WorkerIdle {
			return s
		}
	}
	return nil
}

// assign hands a task to a worker and arms its timeout watch. The worker's
// task channel has capacity one and the slot is idle, so the send cannot
// block the dispatcher.
func (p *Pool) assign(s *slot, pt *pending) {
	s.current = pt
	s.started = p.clock.Now()
	s.status = types.WorkerBusy
	p.busyWorkers.Add(1)
	s.w.tasks <- pt

	timer := p.clock.NewTimer(p.opts.TaskTimeout)
	stop := make(chan struct{})
	s.timer = timer
	s.stopWatch = stop

	workerID, taskID := s.w.id, pt.task.ID
	go func() {
		defer timer.Stop()
		select {
		case <-timer.C():
			select {
			case p.timeoutCh <- timeoutEvent{workerID: workerID, taskID: taskID}:
			case <-p.ctx.Done():
			}
		case <-stop:
		}
	}()
}

// finish resolves a completed task. Stale completions (a worker that was
// already timed out and replaced) are ignored.
func (p *Pool) finish(workerID int, res types.TaskResult) bool {
	s := p.slots[workerID]
	if s.current == nil || s.current.task.ID != res.TaskID {
		return false
	}
	p.clearWatch(s)
	s.current.resolve(res)
	s.current = nil
	s.status = types.WorkerIdle
	p.busyWorkers.Add(-1)
	return true
}

// recoverCrash resolves the crashed worker's task as failed and replaces
// the worker before the slot accepts further dispatches. Simultaneous
// crashes each arrive as separate events and recover independently.
// Reports whose sender is no longer the slot's worker are stale: the sender
// was already replaced after a timeout and the slot may be running a
// different task, so the report is dropped. Returns false for stale reports.
func (p *Pool) recoverCrash(cr crash) bool {
	s := p.slots[cr.workerID]
	if s.w != cr.w {
		p.logger.Debug("ignoring crash report from replaced worker",
			"worker", cr.workerID, "task", cr.taskID)
		return false
	}
	p.logger.Warn("worker crashed", "worker", cr.workerID, "task", cr.taskID, "reason", cr.reason)

	if s.current != nil {
		cerr := &types.WorkerCrashError{WorkerID: cr.workerID, TaskID: s.current.task.ID, Reason: cr.reason}
		p.clearWatch(s)
		s.current.resolve(types.TaskResult{
			TaskID:   s.current.task.ID,
			Success:  false,
			Error:    cerr.Error(),
			WorkerID: cr.workerID,
			Duration: p.clock.Since(s.started),
		})
		s.current = nil
		p.busyWorkers.Add(-1)
	}
	p.respawn(s)
	return true
}

// expire handles a task timeout: the pending result resolves as failed and
// the worker that was running it is terminated and replaced. TotalWorkers
// is unaffected. Returns false for stale events.
func (p *Pool) expire(ev timeoutEvent) bool {
	s := p.slots[ev.workerID]
	if s.current == nil || s.current.task.ID != ev.taskID {
		return false
	}
	p.logger.Warn("task timed out, replacing worker",
		"worker", ev.workerID, "task", ev.taskID, "timeout", p.opts.TaskTimeout)

	s.current.resolve(types.TaskResult{
		TaskID:   ev.taskID,
		Success:  false,
		Error:    fmt.Sprintf("%s after %s", types.ErrTaskTimeout, p.opts.TaskTimeout),
		WorkerID: ev.workerID,
		Duration: p.clock.Since(s.started),
	})
	s.current = nil
	s.stopWatch = nil
	s.timer = nil
	p.busyWorkers.Add(-1)
	p.respawn(s)
	return true
}

// respawn replaces a slot's worker with a fresh one. The old goroutine is
// cancelled and abandoned; any late result it produces fails the stale
// check in finish.
func (p *Pool) respawn(s *slot) {
	s.status = types.WorkerRestarting
	s.w.cancel()

	w := newWorker(s.w.id, p.ctx, p)
	if err := p.spawn(w); err != nil {
		// Does not happen with the default spawn; log so a test hook
		// failure is visible rather than silently shrinking the pool.
		p.logger.Error("failed to respawn worker", "worker", s.w.id, "error", err)
	}
	s.w = w
	s.status = types.WorkerIdle
}

func (p *Pool) clearWatch(s *slot) {
	if s.stopWatch != nil {
		close(s.stopWatch)
		s.stopWatch = nil
	}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// drain performs graceful shutdown inside the dispatcher: queued tasks
// resolve immediately as failed, in-flight tasks get the grace period, and
// whatever is still running afterwards is force-terminated.
func (p *Pool) drain(req shutdownReq) {
	for pt := p.queue.pop(); pt != nil; pt = p.queue.pop() {
		pt.resolve(failedResult(pt.task.ID, types.ErrPoolClosed.Error()))
	}

	grace := p.clock.NewTimer(p.opts.ShutdownGrace)
	defer grace.Stop()

	for p.inflight() > 0 {
		select {
		case c := <-p.completionCh:
			p.finish(c.workerID, c.result)

		case cr := <-p.crashCh:
			s := p.slots[cr.workerID]
			if s.w == cr.w && s.current != nil {
				cerr := &types.WorkerCrashError{WorkerID: cr.workerID, TaskID: s.current.task.ID, Reason: cr.reason}
				p.clearWatch(s)
				s.current.resolve(types.TaskResult{
					TaskID:   s.current.task.ID,
					Success:  false,
					Error:    cerr.Error(),
					WorkerID: cr.workerID,
					Duration: p.clock.Since(s.started),
				})
				s.current = nil
				p.busyWorkers.Add(-1)
			}

		case ev := <-p.timeoutCh:
			s := p.slots[ev.workerID]
			if s.current != nil && s.current.task.ID == ev.taskID {
				s.current.resolve(types.TaskResult{
					TaskID:   ev.taskID,
					Success:  false,
					Error:    fmt.Sprintf("%s after %s", types.ErrTaskTimeout, p.opts.TaskTimeout),
					WorkerID: ev.workerID,
					Duration: p.clock.Since(s.started),
				})
				s.current = nil
				p.busyWorkers.Add(-1)
			}

		case <-p.readyCh:

		case <-grace.C():
			p.logger.Warn("shutdown grace period expired, force-terminating workers",
				"stillBusy", p.inflight())
			for id, s := range p.slots {
				if s.current != nil {
					p.clearWatch(s)
					s.current.resolve(types.TaskResult{
						TaskID:   s.current.task.ID,
						Success:  false,
						Error:    "worker force-terminated during shutdown",
						WorkerID: id,
						Duration: p.clock.Since(s.started),
					})
					s.current = nil
					p.busyWorkers.Add(-1)
				}
			}
		}
	}

	p.cancel()
	p.totalWorkers.Store(0)
	p.busyWorkers.Store(0)
	close(req.done)
}

func (p *Pool) inflight() int {
	n := 0
	for _, s := range p.slots {
		if s.current != nil {
			n++
		}
	}
	return n
}
