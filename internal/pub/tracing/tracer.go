package tracing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Config holds configuration parameters for OpenTelemetry tracing setup.
// This includes service identification, Jaeger endpoint, sampling configuration,
// and batch processing settings for optimal trace delivery.
type Config struct {
	ServiceName    string        `env:"TRACING_SERVICE_NAME" envDefault:"pubq-e2e"`
	ServiceVersion string        `env:"TRACING_SERVICE_VERSION" envDefault:"1.0.0"`
	JaegerEndpoint string        `env:"JAEGER_ENDPOINT" envDefault:"localhost:4318"`
	SampleRate     float64       `env:"TRACING_SAMPLE_RATE" envDefault:"1.0"`
	BatchTimeout   time.Duration `env:"TRACING_BATCH_TIMEOUT" envDefault:"1s"`
	ExportTimeout  time.Duration `env:"TRACING_EXPORT_TIMEOUT" envDefault:"30s"`
	MaxExportBatch int           `env:"TRACING_MAX_EXPORT_BATCH" envDefault:"512"`
	MaxQueueSize   int           `env:"TRACING_MAX_QUEUE_SIZE" envDefault:"2048"`
	Environment    string        `env:"TRACING_ENVIRONMENT" envDefault:"development"`
}

// Tracer wraps the OpenTelemetry tracer with convenience methods for queue and
// dispatcher operations. Job spans are children of the span that submitted them,
// so one notify shows up as a single trace covering every subscriber.
type Tracer struct {
	tracer trace.Tracer
	config Config
	tp     *sdktrace.TracerProvider
}

// NewTracer creates and configures a new OpenTelemetry tracer with OTLP HTTP export.
// It sets up the tracer provider, configures batch processing for efficient trace delivery,
// and returns both the tracer instance and a cleanup function for graceful shutdown.
func NewTracer(config Config) (*Tracer, func(context.Context) error, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
			attribute.String("service.environment", config.Environment),
		),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := otlptracehttp.New(
		context.Background(),
		otlptracehttp.WithEndpoint(config.JaegerEndpoint),
		otlptracehttp.WithInsecure(), // Use HTTP instead of HTTPS for local development
		otlptracehttp.WithTimeout(config.ExportTimeout),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	// Use batch span processor with shorter timeout for better trace delivery
	processor := sdktrace.NewBatchSpanProcessor(
		exporter,
		sdktrace.WithBatchTimeout(config.BatchTimeout),
		sdktrace.WithExportTimeout(config.ExportTimeout),
		sdktrace.WithMaxExportBatchSize(config.MaxExportBatch),
		sdktrace.WithMaxQueueSize(config.MaxQueueSize),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(processor),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(config.SampleRate)),
	)

	otel.SetTracerProvider(tp)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	tracer := NewTracerFromProvider(config, tp)

	cleanup := func(ctx context.Context) error {
		// Force flush all pending spans before shutdown
		if err := tp.ForceFlush(ctx); err != nil {
			return fmt.Errorf("failed to flush traces: %w", err)
		}
		return tp.Shutdown(ctx)
	}

	return tracer, cleanup, nil
}

// NewTracerFromProvider wraps an already configured tracer provider. It does
// not touch the global provider, which makes it the constructor for tests.
func NewTracerFromProvider(config Config, tp *sdktrace.TracerProvider) *Tracer {
	return &Tracer{
		tracer: tp.Tracer(config.ServiceName),
		config: config,
		tp:     tp,
	}
}

// StartSpan creates a new tracing span with the specified name and options.
// Returns the updated context containing the span and the span instance for further manipulation.
func (t *Tracer) StartSpan(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, spanName, opts...)
}

// RecordError records an error event on the active span and sets the span status to error.
// This automatically marks the span as failed and includes the error message.
func (t *Tracer) RecordError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// QueueAttributes creates standard attributes for queue operations.
func (t *Tracer) QueueAttributes(queue string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("pubq.queue", queue),
	}
}

// JobAttributes creates attributes for a single job execution.
// Includes the queue name plus how long the job waited before a worker took it.
func (t *Tracer) JobAttributes(queue string, wait time.Duration) []attribute.KeyValue {
	attrs := t.QueueAttributes(queue)
	attrs = append(attrs, attribute.Int64("pubq.job.wait_us", wait.Microseconds()))
	return attrs
}

// EventAttributes creates attributes for dispatcher operations.
// Includes the event identity and the number of subscribers it fans out to.
func (t *Tracer) EventAttributes(event string, subscribers int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("pubq.event", event),
		attribute.Int("pubq.subscribers", subscribers),
	}
}

// ErrorAttributes creates attributes based on error state.
// Returns error information if an error is provided, or success indication if nil.
func (t *Tracer) ErrorAttributes(err error) []attribute.KeyValue {
	if err == nil {
		return []attribute.KeyValue{
			attribute.Bool("error", false),
		}
	}
	return []attribute.KeyValue{
		attribute.Bool("error", true),
		attribute.String("error.type", fmt.Sprintf("%T", err)),
		attribute.String("error.message", err.Error()),
	}
}
