package pool

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/odavl/insight/internal/testutils"
	"github.com/odavl/insight/pkg/types"
)

func newTestWorker(handlers types.HandlerMap, clock types.Clock) *worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &worker{
		id:       3,
		handlers: handlers,
		clock:    clock,
		ctx:      ctx,
		cancel:   cancel,
	}
}

func TestWorkerExecute_Success(t *testing.T) {
	handlers := types.HandlerMap{
		"echo": func(ctx context.Context, task types.Task) (any, error) {
			return task.Data, nil
		},
	}
	w := newTestWorker(handlers, types.NewRealClock())

	res := w.execute(types.Task{ID: "t1", Type: "echo", Data: "payload"})

	assert.True(t, res.Success)
	assert.Equal(t, "t1", res.TaskID)
	assert.Equal(t, "payload", res.Data)
	assert.Equal(t, 3, res.WorkerID)
	assert.Empty(t, res.Error)
}

func TestWorkerExecute_HandlerError(t *testing.T) {
	handlers := types.HandlerMap{
		"fail": func(ctx context.Context, task types.Task) (any, error) {
			return nil, errors.New("routine exploded politely")
		},
	}
	w := newTestWorker(handlers, types.NewRealClock())

	res := w.execute(types.Task{ID: "t2", Type: "fail"})

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "routine exploded politely")
	assert.Nil(t, res.Data)
}

func TestWorkerExecute_UnknownType(t *testing.T) {
	w := newTestWorker(types.HandlerMap{}, types.NewRealClock())

	res := w.execute(types.Task{ID: "t3", Type: "nope"})

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, `unknown task type "nope"`)
}

func TestWorkerExecute_DurationMeasured(t *testing.T) {
	mock := testutils.NewMockClock(t)
	clock := testutils.NewClockWrapper(mock)

	handlers := types.HandlerMap{
		"slow": func(ctx context.Context, task types.Task) (any, error) {
			mock.Advance(250 * time.Millisecond)
			return nil, nil
		},
	}
	w := newTestWorker(handlers, clock)

	res := w.execute(types.Task{ID: "t4", Type: "slow"})

	assert.True(t, res.Success)
	assert.Equal(t, 250*time.Millisecond, res.Duration)
}

func TestWorkerRun_DeliversCompletion(t *testing.T) {
	completions := make(chan completion, 1)
	crashes := make(chan crash, 1)
	ready := make(chan int, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := &worker{
		id:    7,
		tasks: make(chan *pending, 1),
		handlers: types.HandlerMap{
			"ok": func(ctx context.Context, task types.Task) (any, error) { return 42, nil },
		},
		results: completions,
		crashes: crashes,
		ready:   ready,
		clock:   types.NewRealClock(),
		ctx:     ctx,
		cancel:  cancel,
	}
	go w.run()

	assert.Equal(t, 7, <-ready)

	w.tasks <- newPending(types.Task{ID: "t5", Type: "ok"})

	c := <-completions
	assert.Equal(t, 7, c.workerID)
	assert.True(t, c.result.Success)
	assert.Equal(t, 42, c.result.Data)
}

func TestWorkerRun_PanicBecomesCrashReport(t *testing.T) {
	completions := make(chan completion, 1)
	crashes := make(chan crash, 1)
	ready := make(chan int, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := &worker{
		id:    2,
		tasks: make(chan *pending, 1),
		handlers: types.HandlerMap{
			"boom": func(ctx context.Context, task types.Task) (any, error) { panic("kaboom") },
		},
		results: completions,
		crashes: crashes,
		ready:   ready,
		clock:   types.NewRealClock(),
		ctx:     ctx,
		cancel:  cancel,
	}
	go w.run()
	<-ready

	w.tasks <- newPending(types.Task{ID: "t6", Type: "boom"})

	cr := <-crashes
	assert.Same(t, w, cr.w)
	assert.Equal(t, 2, cr.workerID)
	assert.Equal(t, "t6", cr.taskID)
	assert.Contains(t, cr.reason, "kaboom")

	select {
	case c := <-completions:
		t.Fatalf("crashed worker produced a completion: %+v", c)
	default:
	}
}
