// Package reporter provides pub.FailureReporter implementations: a zap log
// sink, a Prometheus counter, a Couchbase store and a fan-out over several.
package reporter

import (
	"context"

	"go.uber.org/zap"

	"pubq/internal/pub"
	"pubq/internal/pub/metrics"
)

// LogReporter logs every failure at error level.
type LogReporter struct {
	logger *zap.Logger
}

func NewLogReporter(logger *zap.Logger) *LogReporter {
	return &LogReporter{logger: logger.Named("failures")}
}

func (r *LogReporter) Report(_ context.Context, f pub.Failure) {
	fields := []zap.Field{
		zap.String("failureId", f.ID),
		zap.String("queue", f.Queue),
		zap.String("kind", string(f.Kind)),
		zap.Time("occurredAt", f.OccurredAt),
	}
	if f.Panic != "" {
		fields = append(fields, zap.String("panic", f.Panic))
	}
	if f.Stack != "" {
		fields = append(fields, zap.String("stack", f.Stack))
	}
	if f.Err != nil {
		fields = append(fields, zap.Error(f.Err))
	}

	r.logger.Error("job failed", fields...)
}

// MetricsReporter counts failures by queue and kind.
type MetricsReporter struct {
	registry *metrics.Registry
}

func NewMetricsReporter(registry *metrics.Registry) *MetricsReporter {
	return &MetricsReporter{registry: registry}
}

func (r *MetricsReporter) Report(_ context.Context, f pub.Failure) {
	r.registry.RecordJobFailure(f.Queue, string(f.Kind))
}

// Multi forwards each failure to every reporter in order.
type Multi []pub.FailureReporter

func (m Multi) Report(ctx context.Context, f pub.Failure) {
	for _, r := range m {
		r.Report(ctx, f)
	}
}
