package tracing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestTracer(t *testing.T) (*Tracer, *tracetest.SpanRecorder) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	return NewTracerFromProvider(Config{ServiceName: "pubq-test"}, tp), recorder
}

func TestTracer_RecordError(t *testing.T) {
	tracer, recorder := newTestTracer(t)

	ctx, span := tracer.StartSpan(context.Background(), "queue.submit")
	tracer.RecordError(ctx, errors.New("queue full"))
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "queue full", spans[0].Status().Description)
	require.Len(t, spans[0].Events(), 1)
	assert.Equal(t, "exception", spans[0].Events()[0].Name)
}

func TestTracer_Attributes(t *testing.T) {
	tracer, _ := newTestTracer(t)

	assert.Equal(t, []attribute.KeyValue{
		attribute.String("pubq.queue", "orders"),
		attribute.Int64("pubq.job.wait_us", 1500),
	}, tracer.JobAttributes("orders", 1500*time.Microsecond))

	assert.Equal(t, []attribute.KeyValue{
		attribute.String("pubq.event", "order.paid"),
		attribute.Int("pubq.subscribers", 3),
	}, tracer.EventAttributes("order.paid", 3))

	assert.Equal(t, []attribute.KeyValue{attribute.Bool("error", false)}, tracer.ErrorAttributes(nil))

	attrs := tracer.ErrorAttributes(errors.New("boom"))
	assert.Contains(t, attrs, attribute.Bool("error", true))
	assert.Contains(t, attrs, attribute.String("error.type", "*errors.errorString"))
	assert.Contains(t, attrs, attribute.String("error.message", "boom"))
}
