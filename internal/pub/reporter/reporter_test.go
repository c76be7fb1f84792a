package reporter_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"pubq/internal/pub"
	"pubq/internal/pub/metrics"
	"pubq/internal/pub/reporter"
)

func panicFailure() pub.Failure {
	jerr := &pub.JobError{Value: "boom", Stack: "goroutine 7 [running]:"}
	return pub.Failure{
		ID:         "failure::orders::panic::1::1",
		Queue:      "orders",
		Kind:       pub.FailurePanic,
		Error:      jerr.Error(),
		Panic:      "boom",
		Stack:      jerr.Stack,
		OccurredAt: time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC),
		Err:        jerr,
	}
}

func TestLogReporter(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := reporter.NewLogReporter(zap.New(core))

	r.Report(context.Background(), panicFailure())

	entries := logs.All()
	require.Len(t, entries, 1)
	entry := entries[0]
	assert.Equal(t, zapcore.ErrorLevel, entry.Level)
	assert.Equal(t, "job failed", entry.Message)
	assert.Equal(t, "failures", entry.LoggerName)

	fields := entry.ContextMap()
	assert.Equal(t, "orders", fields["queue"])
	assert.Equal(t, "panic", fields["kind"])
	assert.Equal(t, "boom", fields["panic"])
	assert.Equal(t, "job panicked: boom", fields["error"])
}

func TestLogReporter_DroppedHasNoPanicFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := reporter.NewLogReporter(zap.New(core))

	r.Report(context.Background(), pub.Failure{
		Queue: "orders",
		Kind:  pub.FailureDropped,
		Err:   pub.ErrJobDropped,
	})

	fields := logs.All()[0].ContextMap()
	assert.NotContains(t, fields, "panic")
	assert.NotContains(t, fields, "stack")
	assert.Equal(t, "dropped", fields["kind"])
}

func TestMetricsReporter(t *testing.T) {
	registry := metrics.NewRegistry()
	r := reporter.NewMetricsReporter(registry)

	r.Report(context.Background(), panicFailure())
	r.Report(context.Background(), pub.Failure{Queue: "orders", Kind: pub.FailureDropped})
	r.Report(context.Background(), pub.Failure{Queue: "orders", Kind: pub.FailureDropped})

	expected := `
# HELP pubq_queue_job_failures_total Total number of reported job failures
# TYPE pubq_queue_job_failures_total counter
pubq_queue_job_failures_total{kind="dropped",queue="orders"} 2
pubq_queue_job_failures_total{kind="panic",queue="orders"} 1
`
	require.NoError(t, testutil.GatherAndCompare(registry.Gatherer(), strings.NewReader(expected),
		"pubq_queue_job_failures_total"))
}

func TestMulti_ForwardsInOrder(t *testing.T) {
	var order []string
	record := func(name string) pub.FailureReporter {
		return pub.FailureReporterFunc(func(_ context.Context, f pub.Failure) {
			order = append(order, name+":"+f.Queue)
		})
	}

	m := reporter.Multi{record("log"), record("metrics"), record("store")}
	m.Report(context.Background(), panicFailure())

	require.Equal(t, []string{"log:orders", "metrics:orders", "store:orders"}, order)
}

func TestMulti_Empty(t *testing.T) {
	require.NotPanics(t, func() {
		reporter.Multi{}.Report(context.Background(), panicFailure())
	})
}

