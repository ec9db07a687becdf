// Package types defines the core task, result, and configuration types
// shared by the worker pool and the analysis runner.
package types

import (
	"log/slog"
	"runtime"
	"time"
)

// Task is a single unit of work. Tasks are immutable once submitted;
// IDs must be unique within a batch.
type Task struct {
	// ID uniquely identifies the task within a batch.
	ID string

	// Type selects the registered handler that executes the task.
	Type string

	// Data is the opaque payload passed to the handler.
	Data any

	// Priority orders dispatch: higher values run first. Zero is the default.
	Priority int
}

// TaskResult is the outcome of exactly one task. Task-level failures are
// represented here, never as errors returned from Submit or Process.
type TaskResult struct {
	// TaskID echoes the ID of the task this result belongs to.
	TaskID string

	// Success reports whether the handler completed without error.
	Success bool

	// Data is the handler's return value on success.
	Data any

	// Error describes the failure when Success is false.
	Error string

	// WorkerID identifies the worker that ran the task. It is -1 when the
	// task never reached a worker (inline execution or shutdown).
	WorkerID int

	// Duration is the wall time the handler ran.
	Duration time.Duration
}

// WorkerStatus describes what a worker slot is doing.
type WorkerStatus int32

const (
	// WorkerIdle means the worker is waiting for a task.
	WorkerIdle WorkerStatus = iota
	// WorkerBusy means the worker is executing a task.
	WorkerBusy
	// WorkerRestarting means the slot is being replaced after a crash or timeout.
	WorkerRestarting
)

// String returns the string representation of WorkerStatus.
func (s WorkerStatus) String() string {
	switch s {
	case WorkerIdle:
		return "idle"
	case WorkerBusy:
		return "busy"
	case WorkerRestarting:
		return "restarting"
	default:
		return "unknown"
	}
}

// PoolStats is a derived point-in-time snapshot of pool utilization. It is
// never authoritative state.
type PoolStats struct {
	TotalWorkers int
	IdleWorkers  int
	BusyWorkers  int

	// ActiveTasks counts tasks currently assigned to a worker, not queued.
	ActiveTasks int

	// UtilizationRate is BusyWorkers / TotalWorkers at snapshot time.
	UtilizationRate float64

	// MemoryUsageMB is the heap currently in use by the process.
	MemoryUsageMB float64
}

// Options configures a worker pool or inline executor.
type Options struct {
	// MaxWorkers is the number of workers. DefaultOptions sets it to the
	// host logical core count; values <= 0 are rejected at construction.
	MaxWorkers int

	// MemoryLimitMB is an advisory memory ceiling reported in stats.
	MemoryLimitMB int

	// TaskTimeout bounds each dispatched task. Defaults to 30s.
	TaskTimeout time.Duration

	// ShutdownGrace bounds the wait for in-flight tasks during shutdown
	// before workers are force-terminated. Defaults to 30s.
	ShutdownGrace time.Duration

	// Verbose enables debug logging.
	Verbose bool

	// Logger receives structured pool events. Defaults to slog.Default().
	Logger *slog.Logger

	// Clock provides time operations, overridable for tests.
	Clock Clock
}

// DefaultOptions returns the default executor configuration.
func DefaultOptions() Options {
	return Options{
		MaxWorkers:    runtime.NumCPU(),
		TaskTimeout:   30 * time.Second,
		ShutdownGrace: 30 * time.Second,
		Clock:         NewRealClock(),
	}
}

// Normalize fills zero-valued fields with defaults. MaxWorkers is left
// alone: a non-positive worker count is a configuration error, not a
// default, and the constructor rejects it.
func (o Options) Normalize() Options {
	if o.TaskTimeout <= 0 {
		o.TaskTimeout = 30 * time.Second
	}
	if o.ShutdownGrace <= 0 {
		o.ShutdownGrace = 30 * time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Clock == nil {
		o.Clock = NewRealClock()
	}
	return o
}
