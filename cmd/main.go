package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata" // scheduler time zones must resolve without a system tz database

	"github.com/okian/whodle/internal/adapters/http/api"
	"github.com/okian/whodle/internal/adapters/http/swagger"
	"github.com/okian/whodle/internal/adapters/mq/kafka"
	"github.com/okian/whodle/internal/adapters/mq/queue"
	"github.com/okian/whodle/internal/adapters/mq/worker"
	"github.com/okian/whodle/internal/adapters/repository/sqlite"
	"github.com/okian/whodle/internal/adapters/scheduler"
	service "github.com/okian/whodle/internal/app"
	"github.com/okian/whodle/internal/config"
	"github.com/okian/whodle/internal/domain/selection"
	"github.com/okian/whodle/pkg/logger"
	"github.com/okian/whodle/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 30 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	serviceMetricsInterval = 30 * time.Second
)

func main() {
	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(context.Background())
	if err != nil {
		// Logger is not available yet
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()
	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := registerRuntimeCollectors(metrics.GetRegistry()); err != nil {
		log.Warn(ctx, "runtime collectors not registered", logger.Error(err))
	}

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "server exited with error", logger.Error(err))
		os.Exit(1)
	}
	log.Info(ctx, "server stopped")
}

func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	store, err := sqlite.Open(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error(ctx, "store close failed", logger.Error(err))
		}
	}()

	src, err := newSource(cfg.RNGSeed)
	if err != nil {
		return err
	}
	opts := []service.Option{
		service.WithLogger(log.Named("service")),
		service.WithSource(src),
	}

	relay, closeRelay, err := startRelay(ctx, cfg, log)
	if err != nil {
		return err
	}
	if relay != nil {
		opts = append(opts, service.WithPublisher(relay))
	}
	defer closeRelay()

	svc, err := service.New(store, opts...)
	if err != nil {
		return err
	}

	hour, minute, err := cfg.ScheduleClock()
	if err != nil {
		return err
	}
	sched, err := scheduler.New(svc,
		scheduler.WithLogger(log.Named("scheduler")),
		scheduler.WithScheduleTime(hour, minute),
		scheduler.WithTimeZone(cfg.TimeZone),
		scheduler.WithPollInterval(cfg.PollInterval()),
		scheduler.WithBackoff(cfg.TZBackoff()),
	)
	if err != nil {
		return err
	}

	schedCtx, cancelSched := context.WithCancel(ctx)
	defer cancelSched()
	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		_ = sched.Run(schedCtx)
	}()

	go startServiceMetricsUpdater(ctx, svc)

	// HTTP mux and routes.
	mux := http.NewServeMux()
	swagger.Register(ctx, mux, swagger.WithRedocFile(cfg.RedocFile))
	api.NewServer(svc, sched, svc, sched).Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Recover(mux, log.Named("http")),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for shutdown signal or a listener failure.
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			log.Error(ctx, "HTTP server failed", logger.Error(err))
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Stop taking requests first, then let an in-flight selection finish.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	cancelSched()
	awaitScheduler(ctx, schedDone, shutdownTimeout, log)
	return nil
}

// awaitScheduler blocks until done is closed so the store is never closed
// under an in-flight selection. It reports whether the wait overran timeout.
func awaitScheduler(ctx context.Context, done <-chan struct{}, timeout time.Duration, log logger.Logger) bool {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-done:
		return false
	case <-t.C:
	}
	log.Error(ctx, "scheduler shutdown timed out, waiting for in-flight selection before closing the store",
		logger.Duration("timeout", timeout),
	)
	<-done
	return true
}

// newSource seeds the selection source from config, or from crypto/rand
// when the seed is zero.
func newSource(seed uint64) (selection.Source, error) {
	if seed != 0 {
		return selection.NewSeededSource(seed), nil
	}
	return selection.NewRandomSource()
}

// startRelay wires the outbox queue to Kafka when brokers are configured.
// The returned closer drains the queue and closes the sink.
func startRelay(ctx context.Context, cfg *config.Config, log logger.Logger) (*queue.InMemoryQueue, func(), error) {
	brokers := cfg.Brokers()
	if len(brokers) == 0 {
		log.Info(ctx, "kafka_brokers not set; selection events are not published")
		return nil, func() {}, nil
	}
	sink, err := kafka.NewSink(brokers, cfg.KafkaTopic)
	if err != nil {
		return nil, nil, err
	}
	q := queue.NewInMemoryQueue()
	relay := worker.NewRelay(q, sink, worker.WithLogger(log.Named("relay")))

	// The relay outlives the signal context so queued events drain on shutdown.
	relayCtx, cancelRelay := context.WithCancel(context.WithoutCancel(ctx))
	go relay.Run(relayCtx)

	log.Info(ctx, "publishing selection events",
		logger.Any("brokers", brokers),
		logger.String("topic", cfg.KafkaTopic),
	)
	return q, func() {
		_ = q.Close()
		waitCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = relay.Wait(waitCtx)
		cancelRelay()
		if err := sink.Close(); err != nil {
			log.Error(ctx, "kafka sink close failed", logger.Error(err))
		}
	}, nil
}

// registerRuntimeCollectors adds Go runtime and process metrics to reg.
// Collectors that are already registered are left alone.
func registerRuntimeCollectors(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			return err
		}
	}
	return nil
}

// startServiceMetricsUpdater keeps the pool-size gauge current between runs.
func startServiceMetricsUpdater(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	updateServiceMetrics(ctx, svc)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(ctx, svc)
		}
	}
}

func updateServiceMetrics(ctx context.Context, svc *service.Service) {
	st, err := svc.Stats(ctx)
	if err != nil {
		return
	}
	metrics.UpdateCandidatePoolSize(st.PoolSize)
}
