package reporter_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/couchbase/gocb/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"pubq/internal/pub"
	"pubq/internal/pub/reporter"
)

type fakeStore struct {
	inserted  map[string]pub.Failure
	insertErr error
	deadline  bool

	query     string
	queryOpts *gocb.QueryOptions
	rows      []pub.Failure
	queryErr  error
}

func (s *fakeStore) Insert(ctx context.Context, key string, value pub.Failure, _ *gocb.InsertOptions) error {
	_, s.deadline = ctx.Deadline()
	if s.insertErr != nil {
		return s.insertErr
	}
	if s.inserted == nil {
		s.inserted = make(map[string]pub.Failure)
	}
	s.inserted[key] = value
	return nil
}

func (s *fakeStore) Query(_ context.Context, query string, opts *gocb.QueryOptions) ([]pub.Failure, error) {
	s.query = query
	s.queryOpts = opts
	return s.rows, s.queryErr
}

func TestStoreReporter_Report(t *testing.T) {
	store := &fakeStore{}
	r, err := reporter.NewStoreReporter(store, zap.NewNop(), "pubsub", "default", time.Second)
	require.NoError(t, err)

	f := panicFailure()
	r.Report(context.Background(), f)

	require.Contains(t, store.inserted, f.ID)
	assert.Equal(t, f.Queue, store.inserted[f.ID].Queue)
	assert.True(t, store.deadline, "insert ran without a timeout")
}

func TestStoreReporter_InsertErrorIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	store := &fakeStore{insertErr: gocb.ErrDocumentExists}
	r, err := reporter.NewStoreReporter(store, zap.New(core), "pubsub", "default", time.Second)
	require.NoError(t, err)

	require.NotPanics(t, func() {
		r.Report(context.Background(), panicFailure())
	})

	errs := logs.FilterLevelExact(zapcore.ErrorLevel).All()
	require.Len(t, errs, 1)
	assert.Equal(t, "failed to store failure record", errs[0].Message)
}

func TestStoreReporter_Recent(t *testing.T) {
	store := &fakeStore{rows: []pub.Failure{panicFailure()}}
	r, err := reporter.NewStoreReporter(store, zap.NewNop(), "pubsub", "default", time.Second)
	require.NoError(t, err)

	got, err := r.Recent(context.Background(), "orders", 5)
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Contains(t, store.query, "FROM `pubsub`.`default`.`failures` f")
	assert.Equal(t, map[string]any{"queue": "orders", "limit": 5}, store.queryOpts.NamedParameters)
	assert.True(t, store.queryOpts.Readonly)
}

func TestStoreReporter_RecentError(t *testing.T) {
	store := &fakeStore{queryErr: errors.New("index not found")}
	r, err := reporter.NewStoreReporter(store, zap.NewNop(), "pubsub", "default", time.Second)
	require.NoError(t, err)

	_, err = r.Recent(context.Background(), "orders", 5)
	require.ErrorContains(t, err, "index not found")
}

func TestNewStoreReporter_Validation(t *testing.T) {
	_, err := reporter.NewStoreReporter(nil, zap.NewNop(), "pubsub", "default", time.Second)
	require.Error(t, err)

	_, err = reporter.NewStoreReporter(&fakeStore{}, zap.NewNop(), "", "default", time.Second)
	require.Error(t, err)

	_, err = reporter.NewStoreReporter(&fakeStore{}, zap.NewNop(), "pubsub", "default", 0)
	require.Error(t, err)
}
