package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry encapsulates all metrics and provides a clean interface
// for recording metrics without global state
type Registry struct {
	registry *prometheus.Registry

	// Queue metrics
	submitTotal      *prometheus.CounterVec
	jobTotal         *prometheus.CounterVec
	jobDuration      *prometheus.HistogramVec
	jobQueueWait     *prometheus.HistogramVec
	queueDepth       *prometheus.GaugeVec
	jobFailuresTotal *prometheus.CounterVec

	// Dispatcher metrics
	notifyTotal     *prometheus.CounterVec
	notifyDuration  *prometheus.HistogramVec
	fanoutSize      *prometheus.HistogramVec
	subscribeTotal  *prometheus.CounterVec
	subscriberCount *prometheus.GaugeVec

	// System health metrics
	systemInfo *prometheus.GaugeVec
	startTime  prometheus.Gauge
}

// NewRegistry creates a new metrics registry with all metrics initialized
func NewRegistry() *Registry {
	registry := prometheus.NewRegistry()

	r := &Registry{
		registry: registry,

		// Queue metrics
		submitTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pubq_queue_submit_total",
				Help: "Total number of job submissions",
			},
			[]string{"queue", "status"}, // status: success, closed, full, error
		),

		jobTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pubq_queue_jobs_total",
				Help: "Total number of jobs executed",
			},
			[]string{"queue", "status"}, // status: success, panic
		),

		jobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pubq_queue_job_duration_seconds",
				Help:    "Time spent executing jobs",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"queue"},
		),

		jobQueueWait: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pubq_queue_job_wait_seconds",
				Help:    "Time jobs spent pending before a worker picked them up",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"queue"},
		),

		queueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pubq_queue_depth",
				Help: "Number of jobs accepted but not yet started",
			},
			[]string{"queue"},
		),

		jobFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pubq_queue_job_failures_total",
				Help: "Total number of reported job failures",
			},
			[]string{"queue", "kind"}, // kind: panic, dropped
		),

		// Dispatcher metrics
		notifyTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pubq_dispatcher_notify_total",
				Help: "Total number of notify operations",
			},
			[]string{"event", "status"}, // status: success, error
		),

		notifyDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pubq_dispatcher_notify_duration_seconds",
				Help:    "Time spent submitting the jobs of one notify",
				Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.1},
			},
			[]string{"event"},
		),

		fanoutSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pubq_dispatcher_fanout_size",
				Help:    "Number of subscriber jobs produced by one notify",
				Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
			},
			[]string{"event"},
		),

		subscribeTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pubq_dispatcher_subscribe_total",
				Help: "Total number of subscriber registrations",
			},
			[]string{"event"},
		),

		subscriberCount: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pubq_dispatcher_subscribers",
				Help: "Current number of registrations per event",
			},
			[]string{"event"},
		),

		// System health metrics
		systemInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pubq_system_info",
				Help: "System information (value is always 1, labels contain info)",
			},
			[]string{"version", "build_time"},
		),

		startTime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pubq_start_time_seconds",
				Help: "Unix timestamp when the application started",
			},
		),
	}

	// add default Go metrics (memory, GC, goroutines, etc.)
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Register application metrics
	registry.MustRegister(
		r.submitTotal,
		r.jobTotal,
		r.jobDuration,
		r.jobQueueWait,
		r.queueDepth,
		r.jobFailuresTotal,
		r.notifyTotal,
		r.notifyDuration,
		r.fanoutSize,
		r.subscribeTotal,
		r.subscriberCount,
		r.systemInfo,
		r.startTime,
	)

	// Set start time
	r.startTime.SetToCurrentTime()

	return r
}

// Handler returns an HTTP handler for the Prometheus metrics endpoint
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		Registry:          r.registry,
	})
}

// Gatherer exposes the underlying registry, mainly for tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// RecordSubmit records a job submission. status is one of success, closed,
// full or error.
func (r *Registry) RecordSubmit(queue, status string) {
	r.submitTotal.WithLabelValues(queue, status).Inc()
}

// RecordJobExecution records a finished job, whether it returned or panicked.
func (r *Registry) RecordJobExecution(queue string, wait, duration time.Duration, panicked bool) {
	status := "success"
	if panicked {
		status = "panic"
	}

	r.jobTotal.WithLabelValues(queue, status).Inc()
	r.jobDuration.WithLabelValues(queue).Observe(duration.Seconds())
	r.jobQueueWait.WithLabelValues(queue).Observe(wait.Seconds())
}

// UpdateQueueDepth sets the pending job gauge.
func (r *Registry) UpdateQueueDepth(queue string, depth int) {
	r.queueDepth.WithLabelValues(queue).Set(float64(depth))
}

// RecordJobFailure records a reported failure of the given kind.
func (r *Registry) RecordJobFailure(queue, kind string) {
	r.jobFailuresTotal.WithLabelValues(queue, kind).Inc()
}

// RecordNotify records a notify operation and its fan-out.
func (r *Registry) RecordNotify(event string, fanout int, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	r.notifyTotal.WithLabelValues(event, status).Inc()
	r.notifyDuration.WithLabelValues(event).Observe(duration.Seconds())
	if err == nil {
		r.fanoutSize.WithLabelValues(event).Observe(float64(fanout))
	}
}

// RecordSubscribe records a registration and the resulting subscriber count.
func (r *Registry) RecordSubscribe(event string, subscribers int) {
	r.subscribeTotal.WithLabelValues(event).Inc()
	r.subscriberCount.WithLabelValues(event).Set(float64(subscribers))
}

// SetSystemInfo sets system information metrics
func (r *Registry) SetSystemInfo(version, buildTime string) {
	r.systemInfo.WithLabelValues(version, buildTime).Set(1)
}
