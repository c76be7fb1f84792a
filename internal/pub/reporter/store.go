package reporter

import (
	"context"
	"fmt"
	"time"

	"github.com/couchbase/gocb/v2"
	"go.uber.org/zap"

	"pubq/internal/pub"
	"pubq/internal/validator"
)

// FailureStore is the subset of couchbase.Couchbase[pub.Failure] the store
// reporter needs.
type FailureStore interface {
	Insert(ctx context.Context, key string, value pub.Failure, opts *gocb.InsertOptions) error
	Query(ctx context.Context, query string, opts *gocb.QueryOptions) ([]pub.Failure, error)
}

// StoreReporter persists failure records so they outlive the process. Only
// the failure record is stored, never the job or its event.
type StoreReporter struct {
	store   FailureStore
	logger  *zap.Logger
	timeout time.Duration
	// keyspace of the failures collection, e.g. `pubsub`.`default`.`failures`
	keyspace string
}

// NewStoreReporter creates a StoreReporter. Each insert gets timeout to
// complete; a failed insert is logged and otherwise ignored.
func NewStoreReporter(store FailureStore, logger *zap.Logger, bucket, scope string, timeout time.Duration) (*StoreReporter, error) {
	r := StoreReporter{
		store:    store,
		logger:   logger,
		timeout:  timeout,
		keyspace: fmt.Sprintf("`%s`.`%s`.`failures`", bucket, scope),
	}

	if err := validator.Validate("store reporter", r.store, r.logger, bucket, scope, r.timeout); err != nil {
		return nil, fmt.Errorf("failed to validate store reporter deps: %w", err)
	}
	r.logger = logger.Named("failure-store")

	return &r, nil
}

func (r *StoreReporter) Report(ctx context.Context, f pub.Failure) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.store.Insert(ctx, f.ID, f, &gocb.InsertOptions{Timeout: r.timeout}); err != nil {
		r.logger.Error("failed to store failure record", zap.String("failureId", f.ID), zap.Error(err))
		return
	}

	r.logger.Debug("stored failure record", zap.String("failureId", f.ID))
}

// Recent returns up to limit failure records for queue, newest first.
func (r *StoreReporter) Recent(ctx context.Context, queue string, limit int) ([]pub.Failure, error) {
	query := fmt.Sprintf(`
		SELECT RAW f
		FROM %s f
		WHERE f.queue = $queue
		ORDER BY f.occurredAt DESC
		LIMIT $limit`, r.keyspace)

	failures, err := r.store.Query(ctx, query, &gocb.QueryOptions{
		NamedParameters: map[string]any{
			"queue": queue,
			"limit": limit,
		},
		Readonly: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query failures for queue %s: %w", queue, err)
	}

	return failures, nil
}
