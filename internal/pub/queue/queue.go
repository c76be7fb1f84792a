// Package queue implements pub.Queue: a FIFO of jobs drained by a fixed set of
// worker goroutines. A panicking job is recovered and reported; it never takes
// its worker down with it.
package queue

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"pubq/internal/pub"
	"pubq/internal/validator"
)

type Queue struct {
	cfg      Config
	logger   *zap.Logger
	reporter pub.FailureReporter

	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond
	pending  []pub.Job
	closed   bool
	live     int
	// broken is set when the last worker died; Submit reports it.
	broken error

	workers  errgroup.Group
	inline   sync.WaitGroup
	failures atomic.Uint64

	closeOnce sync.Once
	closeErr  error
}

var _ pub.Queue = (*Queue)(nil)

// New creates a queue and starts cfg.Workers workers. The caller owns the
// queue and must Close it.
func New(cfg Config, logger *zap.Logger, reporter pub.FailureReporter) (*Queue, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid queue config: %w", err)
	}
	if err := validator.Validate("queue", logger, reporter); err != nil {
		return nil, fmt.Errorf("failed to validate queue deps: %w", err)
	}

	q := Queue{
		cfg:      cfg,
		logger:   logger.Named("queue").With(zap.String("queue", cfg.Name)),
		reporter: reporter,
		live:     cfg.Workers,
	}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)

	for i := 0; i < cfg.Workers; i++ {
		i := i
		q.workers.Go(func() error {
			return q.work(i)
		})
	}

	q.logger.Info("queue started",
		zap.Int("workers", cfg.Workers),
		zap.Int("capacity", cfg.Capacity),
		zap.Stringer("overflow", cfg.Overflow),
	)

	return &q, nil
}

// Name returns the configured queue name.
func (q *Queue) Name() string {
	return q.cfg.Name
}

func (q *Queue) Submit(ctx context.Context, job pub.Job) error {
	if job == nil {
		return pub.ErrNilJob
	}
	if q.cfg.Workers == 0 {
		return q.runInline(job)
	}

	q.mu.Lock()
	if q.closed {
		err := q.closedErr()
		q.mu.Unlock()
		return err
	}

	var evicted pub.Job
	if q.cfg.Capacity > 0 {
		var stop func() bool
		for len(q.pending) >= q.cfg.Capacity && !q.closed {
			switch q.cfg.Overflow {
			case OverflowReject:
				q.mu.Unlock()
				return pub.ErrQueueFull
			case OverflowDropOldest:
				evicted = q.pop()
			default:
				if err := ctx.Err(); err != nil {
					q.mu.Unlock()
					return fmt.Errorf("waiting for queue space: %w", err)
				}
				if stop == nil {
					stop = context.AfterFunc(ctx, func() {
						q.mu.Lock()
						q.notFull.Broadcast()
						q.mu.Unlock()
					})
					defer stop()
				}
				q.notFull.Wait()
			}
		}
		if q.closed {
			err := q.closedErr()
			q.mu.Unlock()
			return err
		}
	}

	q.pending = append(q.pending, job)
	q.notEmpty.Signal()
	q.mu.Unlock()

	if evicted != nil {
		q.logger.Warn("queue full, dropped oldest pending job")
		q.reportSafe(ctx, q.failure(pub.FailureDropped, fmt.Errorf("%w: evicted by newer job", pub.ErrJobDropped), nil))
	}

	return nil
}

// Accepting reports whether Submit can still succeed.
func (q *Queue) Accepting() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return !q.closed
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Close stops accepting jobs and blocks until every accepted job has run and
// all workers have exited. Jobs submitted concurrently with Close are either
// accepted, and then executed, or rejected with pub.ErrQueueClosed.
//
// If ctx ends before the queue drains, jobs that have not started are dropped
// and reported; Close still waits for running jobs to return.
func (q *Queue) Close(ctx context.Context) error {
	q.closeOnce.Do(func() {
		q.closeErr = q.shutdown(ctx)
	})
	return q.closeErr
}

func (q *Queue) shutdown(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	pending := len(q.pending)
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
	q.mu.Unlock()

	q.logger.Info("closing queue", zap.Int("pending", pending))
	start := time.Now()

	done := make(chan error, 1)
	go func() {
		err := q.workers.Wait()
		q.inline.Wait()
		done <- err
	}()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		dropped := q.takeAll()
		q.logger.Warn("drain interrupted, dropping pending jobs",
			zap.Int("dropped", len(dropped)),
			zap.Error(ctx.Err()),
		)
		rctx := context.WithoutCancel(ctx)
		for range dropped {
			q.reportSafe(rctx, q.failure(pub.FailureDropped, fmt.Errorf("%w: queue closed before it ran", pub.ErrJobDropped), nil))
		}
		err = multierr.Append(fmt.Errorf("queue %s drain interrupted: %w", q.cfg.Name, ctx.Err()), <-done)
	}

	// Only non-empty when every worker died.
	if stranded := q.takeAll(); len(stranded) > 0 {
		q.logger.Error("no workers left, discarding pending jobs", zap.Int("dropped", len(stranded)))
		err = multierr.Append(err, fmt.Errorf("%w: %d pending jobs discarded", pub.ErrJobDropped, len(stranded)))
	}

	if err != nil {
		q.logger.Error("queue closed with errors", zap.Duration("duration", time.Since(start)), zap.Error(err))
		return err
	}

	q.logger.Info("queue closed", zap.Duration("duration", time.Since(start)))
	return nil
}

func (q *Queue) work(id int) (err error) {
	logger := q.logger.With(zap.Int("worker", id))
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: queue %s worker %d: %v", pub.ErrWorkerFailed, q.cfg.Name, id, r)
			logger.Error("worker died", zap.Any("panic", r), zap.String("stack", string(debug.Stack())))
			q.workerDied(err)
		}
	}()

	for {
		job, ok := q.next()
		if !ok {
			logger.Debug("worker exiting")
			return nil
		}
		q.execute(job)
	}
}

// next blocks until a job is available. It returns false once the queue is
// closed and empty.
func (q *Queue) next() (pub.Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.pending) == 0 && !q.closed {
		q.notEmpty.Wait()
	}
	if len(q.pending) == 0 {
		return nil, false
	}

	job := q.pop()
	q.notFull.Signal()
	return job, true
}

// execute runs job and reports a panic. The reporter is called from the
// deferred recover, so a panicking reporter unwinds the worker.
func (q *Queue) execute(job pub.Job) {
	defer func() {
		if r := recover(); r != nil {
			jerr := &pub.JobError{Value: r, Stack: string(debug.Stack())}
			q.logger.Warn("job panicked", zap.Any("panic", r))
			q.reporter.Report(context.Background(), q.failure(pub.FailurePanic, jerr, r))
		}
	}()

	job()
}

func (q *Queue) runInline(job pub.Job) (err error) {
	q.mu.Lock()
	if q.closed {
		err := q.closedErr()
		q.mu.Unlock()
		return err
	}
	q.inline.Add(1)
	q.mu.Unlock()
	defer q.inline.Done()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: queue %s inline reporter: %v", pub.ErrWorkerFailed, q.cfg.Name, r)
			q.logger.Error("failure reporter panicked", zap.Any("panic", r))
		}
	}()

	q.execute(job)
	return nil
}

func (q *Queue) workerDied(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.live--
	if q.live > 0 {
		return
	}
	q.closed = true
	q.broken = err
	q.notFull.Broadcast()
}

func (q *Queue) closedErr() error {
	if q.broken != nil {
		return fmt.Errorf("%w: %w", pub.ErrQueueClosed, q.broken)
	}
	return fmt.Errorf("%w: %s", pub.ErrQueueClosed, q.cfg.Name)
}

// pop removes the oldest pending job. Callers hold q.mu.
func (q *Queue) pop() pub.Job {
	job := q.pending[0]
	q.pending[0] = nil
	q.pending = q.pending[1:]
	return job
}

func (q *Queue) takeAll() []pub.Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	jobs := q.pending
	q.pending = nil
	q.notFull.Broadcast()
	return jobs
}

func (q *Queue) failure(kind pub.FailureKind, err error, panicValue any) pub.Failure {
	now := time.Now().UTC()
	f := pub.Failure{
		ID:         pub.FailureKey(q.cfg.Name, kind, now, q.failures.Add(1)),
		Queue:      q.cfg.Name,
		Kind:       kind,
		Error:      err.Error(),
		OccurredAt: now,
		Err:        err,
	}
	if panicValue != nil {
		f.Panic = fmt.Sprint(panicValue)
	}
	var jerr *pub.JobError
	if errors.As(err, &jerr) {
		f.Stack = jerr.Stack
	}
	return f
}

// reportSafe is used off the worker goroutines, where a panicking reporter
// must not reach the caller.
func (q *Queue) reportSafe(ctx context.Context, f pub.Failure) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("failure reporter panicked", zap.Any("panic", r), zap.String("failure", f.ID))
		}
	}()
	q.reporter.Report(ctx, f)
}
