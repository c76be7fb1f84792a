package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"pubq/internal/couchbase"
	"pubq/internal/pub"
	"pubq/internal/pub/dispatcher"
	"pubq/internal/pub/metrics"
	"pubq/internal/pub/queue"
	"pubq/internal/pub/reporter"
	"pubq/internal/pub/tracing"
)

type Config struct {
	Queue     queue.Config
	Couchbase couchbase.Config
	Metrics   metrics.ServerConfig
	Tracing   tracing.Config

	FailureStoreEnabled bool          `env:"FAILURE_STORE_ENABLED" envDefault:"false"`
	FailureStoreTimeout time.Duration `env:"FAILURE_STORE_TIMEOUT" envDefault:"2s"`
	Publishers          int           `env:"PUBLISHERS" envDefault:"4"`
	PublishRounds       int           `env:"PUBLISH_ROUNDS" envDefault:"10"`
	PublishInterval     time.Duration `env:"PUBLISH_INTERVAL" envDefault:"100ms"`
	FailEvery           int           `env:"FAIL_EVERY" envDefault:"7"`
	LogLevel            string        `env:"LOG_LEVEL" envDefault:"info"`
	Profile             bool          `env:"PROFILE" envDefault:"false"`
}

type orderEvent int

const (
	orderCreated orderEvent = iota
	orderPaid
	orderShipped
)

func (e orderEvent) String() string {
	switch e {
	case orderCreated:
		return "order.created"
	case orderPaid:
		return "order.paid"
	case orderShipped:
		return "order.shipped"
	}
	return fmt.Sprintf("order.unknown(%d)", int(e))
}

func main() {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("failed to parse environment variables: %v", err)
	}

	if cfg.Profile {
		stop := profile()
		defer stop()
	}

	config := zap.NewProductionConfig()

	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		log.Printf("invalid log level %q, defaulting to info: %v", cfg.LogLevel, err)
		zapLevel = zapcore.InfoLevel
	}
	config.Level = zap.NewAtomicLevelAt(zapLevel)
	logger, err := config.Build(zap.AddCaller())
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("e2e run failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg Config, logger *zap.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	metricsRegistry := metrics.NewRegistry()
	metricsRegistry.SetSystemInfo("e2e-test", time.Now().Format(time.RFC3339))

	tracer, tracingCleanup, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracingCleanup(shutdownCtx); err != nil {
			logger.Error("failed to cleanup tracing", zap.Error(err))
		}
	}()

	logger.Info("tracing initialized",
		zap.String("service", cfg.Tracing.ServiceName),
		zap.String("jaeger_endpoint", cfg.Tracing.JaegerEndpoint),
		zap.Float64("sample_rate", cfg.Tracing.SampleRate),
	)

	reporters := reporter.Multi{
		reporter.NewLogReporter(logger),
		reporter.NewMetricsReporter(metricsRegistry),
	}

	var failureStore *reporter.StoreReporter
	if cfg.FailureStoreEnabled {
		var closeStore func() error
		failureStore, closeStore, err = newFailureStore(cfg, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := closeStore(); err != nil {
				logger.Error("failed to close Couchbase connection", zap.Error(err))
			}
		}()
		reporters = append(reporters, failureStore)
	}

	var invoked, published atomic.Int64
	start := time.Now()

	err = queue.Run(ctx, cfg.Queue, logger, reporters, func(ctx context.Context, q *queue.Queue) error {
		metricsServer := metrics.NewServer(cfg.Metrics, metricsRegistry, logger, q.Accepting)
		serverCtx, stopServer := context.WithCancel(context.WithoutCancel(ctx))
		defer stopServer()
		go func() {
			if err := metricsServer.Start(serverCtx); err != nil {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()

		metricsQueue := queue.NewMetricsQueue(q, q.Name(), metricsRegistry)
		tracedQueue := queue.NewTracedQueue(metricsQueue, q.Name(), tracer)

		baseDispatcher, err := dispatcher.New[orderEvent](tracedQueue, logger)
		if err != nil {
			return fmt.Errorf("failed to create dispatcher: %w", err)
		}
		metricsDispatcher := dispatcher.NewMetricsDispatcher[orderEvent](baseDispatcher, metricsRegistry)
		d := dispatcher.NewTracedDispatcher[orderEvent](metricsDispatcher, tracer)

		subscribe(d, logger, &invoked, cfg.FailEvery)

		g, gctx := errgroup.WithContext(ctx)
		for i := 0; i < cfg.Publishers; i++ {
			g.Go(func() error {
				return publish(gctx, d, cfg, &published)
			})
		}

		return g.Wait()
	})

	logger.Info("e2e run complete",
		zap.Duration("duration", time.Since(start)),
		zap.Int64("published", published.Load()),
		zap.Int64("invoked", invoked.Load()),
	)

	if failureStore != nil {
		recent, qerr := failureStore.Recent(context.Background(), cfg.Queue.Name, 10)
		if qerr != nil {
			logger.Error("failed to load stored failures", zap.Error(qerr))
		} else {
			logger.Info("stored failures", zap.Int("recent", len(recent)))
		}
	}

	if errors.Is(err, context.Canceled) {
		logger.Info("interrupted, queue drained")
		return nil
	}
	return err
}

func subscribe(d pub.Dispatcher[orderEvent], logger *zap.Logger, invoked *atomic.Int64, failEvery int) {
	var paid atomic.Int64

	d.Subscribe(orderCreated, pub.SubscriberFunc[orderEvent](func(e orderEvent) {
		invoked.Add(1)
		logger.Debug("reserving stock", zap.Stringer("event", e))
	}))
	d.Subscribe(orderCreated, pub.SubscriberFunc[orderEvent](func(e orderEvent) {
		invoked.Add(1)
		logger.Debug("sending confirmation", zap.Stringer("event", e))
	}))
	d.Subscribe(orderPaid, pub.SubscriberFunc[orderEvent](func(e orderEvent) {
		invoked.Add(1)
		// every failEvery-th payment blows up to exercise failure isolation
		if n := paid.Add(1); failEvery > 0 && n%int64(failEvery) == 0 {
			panic(fmt.Sprintf("ledger unavailable for payment %d", n))
		}
		time.Sleep(time.Duration(1+rand.Intn(5)) * time.Millisecond)
	}))
	d.Subscribe(orderShipped, pub.SubscriberFunc[orderEvent](func(e orderEvent) {
		invoked.Add(1)
		logger.Debug("notifying customer", zap.Stringer("event", e))
	}))
}

func publish(ctx context.Context, d pub.Dispatcher[orderEvent], cfg Config, published *atomic.Int64) error {
	ticker := time.NewTicker(max(cfg.PublishInterval, time.Millisecond))
	defer ticker.Stop()

	for round := 0; round < cfg.PublishRounds; round++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		for _, e := range []orderEvent{orderCreated, orderPaid, orderShipped} {
			if err := d.Notify(ctx, e); err != nil {
				return fmt.Errorf("failed to publish %s: %w", e, err)
			}
			published.Add(1)
		}
	}

	return nil
}

func newFailureStore(cfg Config, logger *zap.Logger) (*reporter.StoreReporter, func() error, error) {
	cluster, bucket, err := couchbase.Connect(cfg.Couchbase)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to Couchbase: %w", err)
	}

	failures, err := pub.NewFailuresStore(cluster, bucket, cfg.Couchbase.ScopeName)
	if err != nil {
		_ = cluster.Close(nil)
		return nil, nil, fmt.Errorf("failed to create failures store: %w", err)
	}

	store, err := reporter.NewStoreReporter(failures, logger, cfg.Couchbase.BucketName, cfg.Couchbase.ScopeName, cfg.FailureStoreTimeout)
	if err != nil {
		_ = failures.Close()
		return nil, nil, err
	}

	return store, failures.Close, nil
}

// profile starts a CPU profile and returns a func that stops it and writes a
// heap profile.
func profile() func() {
	cpuProfile, err := os.Create("cpu.pprof")
	if err != nil {
		log.Fatal("could not create CPU profile: ", err)
	}
	if err := pprof.StartCPUProfile(cpuProfile); err != nil {
		log.Fatal("could not start CPU profile: ", err)
	}

	return func() {
		pprof.StopCPUProfile()
		cpuProfile.Close()

		memProfile, err := os.Create("mem.pprof")
		if err != nil {
			log.Printf("could not create memory profile: %v", err)
			return
		}
		defer memProfile.Close()
		runtime.GC()
		if err := pprof.WriteHeapProfile(memProfile); err != nil {
			log.Printf("could not write memory profile: %v", err)
		}
	}
}
