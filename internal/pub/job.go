// Package pub defines the job queue and event dispatcher contracts shared by
// the queue, dispatcher and reporter packages.
package pub

import "context"

// Job is a deferred, one-shot unit of work. A Job owns everything it needs to
// run and is executed exactly once.
type Job func()

// Queue defines the interface for handing jobs off to background workers.
type Queue interface {
	// Submit enqueues a job for execution and returns without waiting for it
	// to run. Jobs submitted from one goroutine run in submission order when
	// the queue has a single worker.
	// Returns ErrQueueClosed once the queue has started shutting down.
	Submit(ctx context.Context, job Job) error

	// Len reports the number of jobs accepted but not yet started.
	Len() int

	// Close stops accepting jobs, waits for the accepted ones to drain and
	// joins the workers. If ctx ends first the remaining jobs are dropped and
	// reported, and Close still waits for the jobs already running.
	Close(ctx context.Context) error
}
