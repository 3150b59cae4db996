package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/crease/internal/adapters/broadcast"
	"github.com/okian/crease/internal/adapters/directory"
	"github.com/okian/crease/internal/adapters/http/api"
	"github.com/okian/crease/internal/adapters/repository"
	app "github.com/okian/crease/internal/app"
	"github.com/okian/crease/internal/config"
	"github.com/okian/crease/internal/domain/scoring"
	"github.com/okian/crease/pkg/logger"
	"github.com/okian/crease/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const serviceName = "crease"

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 15 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Custom system gauges replace the default Go collectors.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// The logger is configured from cfg, so it is not available yet.
		_, _ = os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.InitBackend(cfg.LogBackend, serviceName, cfg.Env); err != nil {
		_, _ = os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "crease stopped with error", logger.Error(err))
		os.Exit(1)
	}
}

// run wires the service from cfg and serves HTTP until ctx is done.
func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	hub := broadcast.NewHub(broadcast.WithHubLogger(log.Named("hub")))
	defer func() { _ = hub.Close() }()

	svc, cleanup, err := buildService(ctx, cfg, hub, log)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := svc.Stop(stopCtx); err != nil {
			log.Error(stopCtx, "service stop failed", logger.Error(err))
		}
	}()

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	apiServer := api.NewServer(svc, svc, api.WithWebsocket(hub.HandleWS))
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           apiServer.Router(),
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

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	// Websocket connections are hijacked and outlive Shutdown; close them first.
	_ = hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
	}
	log.Info(shutdownCtx, "server stopped")
	return nil
}

// buildService opens the store, roster and broadcast sinks named by cfg. The
// returned cleanup closes the sinks; the service closes the store on Stop.
func buildService(ctx context.Context, cfg *config.Config, hub *broadcast.Hub, log logger.Logger) (*app.Service, func(), error) {
	store, err := repository.Open(ctx, repository.Config{
		Backend:     cfg.StoreBackend,
		ShardCount:  cfg.ShardCount,
		SQLitePath:  cfg.SQLitePath,
		PostgresDSN: cfg.PostgresDSN,
		RedisAddr:   cfg.RedisAddr,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("open %s store: %w", cfg.StoreBackend, err)
	}

	roster, err := directory.Load(cfg.RosterFile)
	if err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("load roster: %w", err)
	}

	publisher, cleanup, err := buildPublisher(ctx, cfg, hub, log)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}

	svc := app.New(
		app.WithLogger(log.Named("service")),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithHistoryDepth(cfg.HistoryDepth),
		app.WithRules(buildRules(cfg)),
		app.WithStore(store, cfg.StoreBackend),
		app.WithDirectory(roster),
		app.WithPublisher(publisher),
		app.WithBroadcastTimeout(cfg.BroadcastTimeout()),
		app.WithSubscriberCounter(hub.Subscribers),
	)
	log.Info(ctx, "service wired",
		logger.String("store", cfg.StoreBackend),
		logger.Int("rosterMatches", roster.Len()),
		logger.Bool("redisFanout", cfg.RedisAddr != ""),
		logger.Bool("kafkaLog", len(cfg.KafkaBrokerList()) > 0),
	)
	return svc, cleanup, nil
}

// buildPublisher returns the sinks every accepted update goes to. With a
// redis address the hub is fed from the redis channel so that every instance
// serves every match; otherwise updates go to the hub directly.
func buildPublisher(ctx context.Context, cfg *config.Config, hub *broadcast.Hub, log logger.Logger) (broadcast.Publisher, func(), error) {
	var (
		sinks   []broadcast.Sink
		closers []func() error
	)
	cleanup := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				log.Warn(context.Background(), "closing broadcast sink failed", logger.Error(err))
			}
		}
	}

	if cfg.RedisAddr != "" {
		client, err := repository.ConnectRedis(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, nil, fmt.Errorf("connect broadcast redis: %w", err)
		}
		closers = append(closers, client.Close)
		if err := broadcast.StartRedisSubscriber(ctx, client, cfg.RedisChannel, hub); err != nil {
			cleanup()
			return nil, nil, err
		}
		sinks = append(sinks, broadcast.Sink{Name: broadcast.SinkRedis, Publisher: broadcast.NewRedisPublisher(client, cfg.RedisChannel)})
	} else {
		sinks = append(sinks, broadcast.Sink{Name: broadcast.SinkWebsocket, Publisher: hub})
	}

	if brokers := cfg.KafkaBrokerList(); len(brokers) > 0 {
		kp := broadcast.NewKafkaPublisher(broadcast.NewKafkaWriter(brokers, cfg.KafkaTopic))
		closers = append(closers, kp.Close)
		sinks = append(sinks, broadcast.Sink{Name: broadcast.SinkKafka, Publisher: kp})
	}
	return broadcast.NewFanout(sinks...), cleanup, nil
}

func buildRules(cfg *config.Config) scoring.Rules {
	return scoring.Rules{
		NoBallCountsAsBallFaced:        cfg.NoBallCountsAsBallFaced,
		WideOddRunsRotate:              cfg.WideOddRunsRotateStrike,
		CompletingBallVisibleInOldOver: cfg.CompletingBallVisibleInOldOver,
		AllOutGuard:                    cfg.AllOutGuard,
	}
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater starts a background goroutine that updates service metrics.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics updates service-level metrics.
func updateServiceMetrics(svc *app.Service) {
	stats := svc.GetStats()
	metrics.UpdateQueueSize(stats.QueueLength)
	metrics.UpdateWorkerCount(stats.WorkerCount)
}
