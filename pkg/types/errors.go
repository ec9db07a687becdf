// Package types defines error types
package types

import (
	"errors"
	"fmt"
)

// Predefined errors
var (
	// ErrPoolClosed indicates the pool has been shut down.
	ErrPoolClosed = errors.New("worker pool is shut down")

	// ErrPoolNotInitialized indicates Submit/Process was called before
	// Initialize completed.
	ErrPoolNotInitialized = errors.New("worker pool is not initialized")

	// ErrTaskTimeout indicates a task exceeded its timeout.
	ErrTaskTimeout = errors.New("task timeout")

	// ErrNoFiles indicates a workspace scan found no candidate files.
	ErrNoFiles = errors.New("no files found")
)

// ConfigError reports invalid executor configuration. It is the only error
// raised synchronously at construction; nothing task-level ever surfaces
// as a Go error from Submit or Process.
type ConfigError struct {
	Field  string
	Value  any
	Reason string
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s=%v (%s)", e.Field, e.Value, e.Reason)
}

// NewConfigError creates a new configuration error.
func NewConfigError(field string, value any, reason string) *ConfigError {
	return &ConfigError{Field: field, Value: value, Reason: reason}
}

// WorkerInitError reports that workers could not be spawned. It is
// recoverable: the pool logs it and routes all work through the inline
// executor instead.
type WorkerInitError struct {
	WorkerID int
	Cause    error
}

// Error implements the error interface
func (e *WorkerInitError) Error() string {
	return fmt.Sprintf("worker %d failed to start: %v", e.WorkerID, e.Cause)
}

// Unwrap returns the underlying error
func (e *WorkerInitError) Unwrap() error {
	return e.Cause
}

// WorkerCrashError describes a worker that terminated unexpectedly while
// holding a task. It only ever appears inside a failed TaskResult.
type WorkerCrashError struct {
	WorkerID int
	TaskID   string
	Reason   string
}

// Error implements the error interface
func (e *WorkerCrashError) Error() string {
	return fmt.Sprintf("worker %d crashed while running task %s: %s", e.WorkerID, e.TaskID, e.Reason)
}
