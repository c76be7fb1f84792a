package pub

import (
	"context"
	"fmt"
	"time"

	"github.com/couchbase/gocb/v2"

	"pubq/internal/couchbase"
)

// FailureKind classifies a job that did not complete normally.
type FailureKind string

const (
	// FailurePanic means the job body panicked.
	FailurePanic FailureKind = "panic"
	// FailureDropped means the job was accepted but discarded before running,
	// either by the drop-oldest overflow policy or by a Close deadline.
	FailureDropped FailureKind = "dropped"
)

// Failure is the record handed to a FailureReporter.
type Failure struct {
	ID         string      `json:"id"`
	Queue      string      `json:"queue"`
	Kind       FailureKind `json:"kind"`
	Error      string      `json:"error"`
	Panic      string      `json:"panic,omitempty"`
	Stack      string      `json:"stack,omitempty"`
	OccurredAt time.Time   `json:"occurredAt"`

	Err error `json:"-"`
}

// FailureReporter receives job failures. Report is called on the worker that
// observed the failure, so implementations should return promptly.
type FailureReporter interface {
	Report(ctx context.Context, f Failure)
}

// FailureReporterFunc adapts an ordinary function to FailureReporter.
type FailureReporterFunc func(ctx context.Context, f Failure)

func (fn FailureReporterFunc) Report(ctx context.Context, f Failure) {
	fn(ctx, f)
}

func NewFailuresStore(cluster *gocb.Cluster, bucket *gocb.Bucket, scope string) (*couchbase.Couchbase[Failure], error) {
	collection := bucket.Scope(scope).Collection("failures")
	store, err := couchbase.NewCouchbase[Failure](cluster, bucket, collection)
	if err != nil {
		return nil, err
	}

	return store, nil
}

func FailureKey(queue string, kind FailureKind, at time.Time, seq uint64) string {
	return fmt.Sprintf("failure::%s::%s::%d::%d", queue, kind, at.UnixNano(), seq)
}
