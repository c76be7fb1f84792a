package dispatcher_test

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"

	"pubq/internal/pub"
	"pubq/internal/pub/dispatcher"
	"pubq/internal/pub/metrics"
	"pubq/internal/pub/queue"
	"pubq/internal/pub/tracing"
)

func (e event) String() string {
	switch e {
	case someEvent:
		return "some"
	case anotherEvent:
		return "another"
	}
	return "unknown"
}

func TestMetricsDispatcher(t *testing.T) {
	q := &countingQueue{}
	base, err := dispatcher.New[event](q, zap.NewNop())
	require.NoError(t, err)

	registry := metrics.NewRegistry()
	d := dispatcher.NewMetricsDispatcher[event](base, registry)

	var l callLog
	d.Subscribe(someEvent, l.subscriber("a"))
	d.Subscribe(someEvent, l.subscriber("b"))

	require.NoError(t, d.Notify(context.Background(), someEvent))
	require.NoError(t, d.Notify(context.Background(), anotherEvent))

	q.err = pub.ErrQueueClosed
	require.Error(t, d.Notify(context.Background(), someEvent))

	expected := `
# HELP pubq_dispatcher_notify_total Total number of notify operations
# TYPE pubq_dispatcher_notify_total counter
pubq_dispatcher_notify_total{event="another",status="success"} 1
pubq_dispatcher_notify_total{event="some",status="error"} 1
pubq_dispatcher_notify_total{event="some",status="success"} 1
# HELP pubq_dispatcher_subscribe_total Total number of subscriber registrations
# TYPE pubq_dispatcher_subscribe_total counter
pubq_dispatcher_subscribe_total{event="some"} 2
# HELP pubq_dispatcher_subscribers Current number of registrations per event
# TYPE pubq_dispatcher_subscribers gauge
pubq_dispatcher_subscribers{event="some"} 2
`
	require.NoError(t, testutil.GatherAndCompare(registry.Gatherer(), strings.NewReader(expected),
		"pubq_dispatcher_notify_total", "pubq_dispatcher_subscribe_total", "pubq_dispatcher_subscribers"))
}

func TestTracedDispatcher_JobSpansAreChildrenOfNotify(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := tracing.NewTracerFromProvider(tracing.Config{ServiceName: "test"}, tp)

	base, err := queue.New(queue.DefaultConfig(), zap.NewNop(), pub.FailureReporterFunc(func(context.Context, pub.Failure) {}))
	require.NoError(t, err)
	q := queue.NewTracedQueue(base, "default", tracer)

	inner, err := dispatcher.New[event](q, zap.NewNop())
	require.NoError(t, err)
	d := dispatcher.NewTracedDispatcher[event](inner, tracer)

	var l callLog
	d.Subscribe(someEvent, l.subscriber("a"))
	d.Subscribe(someEvent, l.subscriber("b"))

	require.NoError(t, d.Notify(context.Background(), someEvent))
	require.NoError(t, q.Close(context.Background()))

	var notify sdktrace.ReadOnlySpan
	var submits []sdktrace.ReadOnlySpan
	for _, s := range recorder.Ended() {
		switch s.Name() {
		case "dispatcher.notify":
			notify = s
		case "queue.submit":
			submits = append(submits, s)
		}
	}
	require.NotNil(t, notify)
	require.Len(t, submits, 2)

	assert.Equal(t, codes.Ok, notify.Status().Code)
	assert.Contains(t, notify.Attributes(), attribute.String("pubq.event", "some"))
	assert.Contains(t, notify.Attributes(), attribute.Int("pubq.subscribers", 2))
	for _, s := range submits {
		assert.Equal(t, notify.SpanContext().SpanID(), s.Parent().SpanID())
	}
}
