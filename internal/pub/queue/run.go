package queue

import (
	"context"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"pubq/internal/pub"
)

// Run creates a queue, hands it to fn and closes it when fn returns, whether
// fn succeeded, failed or panicked. Close gets cfg.DrainTimeout to drain,
// measured from when fn returns and unaffected by ctx cancellation.
func Run(
	ctx context.Context,
	cfg Config,
	logger *zap.Logger,
	reporter pub.FailureReporter,
	fn func(ctx context.Context, q *Queue) error,
) (err error) {
	q, err := New(cfg, logger, reporter)
	if err != nil {
		return err
	}

	defer func() {
		closeCtx := context.WithoutCancel(ctx)
		if cfg.DrainTimeout > 0 {
			var cancel context.CancelFunc
			closeCtx, cancel = context.WithTimeout(closeCtx, cfg.DrainTimeout)
			defer cancel()
		}
		err = multierr.Append(err, q.Close(closeCtx))
	}()

	return fn(ctx, q)
}
