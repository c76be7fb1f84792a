package pub

import (
	"errors"
	"fmt"
)

var (
	// ErrQueueClosed is returned when a job is submitted after the queue began
	// shutting down.
	ErrQueueClosed = errors.New("queue closed")
	// ErrQueueFull is returned by a bounded queue using the reject policy.
	ErrQueueFull = errors.New("queue full")
	// ErrNilJob is returned when a nil job is submitted.
	ErrNilJob = errors.New("nil job")
	// ErrJobPanicked marks a job whose body panicked.
	ErrJobPanicked = errors.New("job panicked")
	// ErrJobDropped marks an accepted job that was discarded before running.
	ErrJobDropped = errors.New("job dropped")
	// ErrWorkerFailed is returned by Close when a worker did not exit cleanly.
	ErrWorkerFailed = errors.New("worker failed")
)

// JobError describes a job that panicked while running on a worker.
type JobError struct {
	Value any
	Stack string
}

func (e *JobError) Error() string {
	return fmt.Sprintf("job panicked: %v", e.Value)
}

func (e *JobError) Unwrap() error {
	return ErrJobPanicked
}
