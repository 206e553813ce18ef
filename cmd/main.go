package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"aegis/internal/adapters/clickhouse"
	"aegis/internal/adapters/config"
	"aegis/internal/adapters/errors/noop"
	"aegis/internal/adapters/errors/sentry"
	"aegis/internal/adapters/kafka"
	"aegis/internal/adapters/lending"
	"aegis/internal/adapters/postgres"
	"aegis/internal/adapters/redis"
	"aegis/internal/adapters/telegram"
	"aegis/internal/domain/alert"
	"aegis/internal/domain/position"
	"aegis/internal/metrics"
	chrepo "aegis/internal/repository/clickhouse"
	pgrepo "aegis/internal/repository/postgres"
	redisrepo "aegis/internal/repository/redis"
	"aegis/internal/services/alerting"
	"aegis/internal/services/collector"
	"aegis/internal/services/emergency"
	"aegis/internal/services/monitor"
	"aegis/internal/services/risk"
	"aegis/pkg/errors"
	"aegis/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	log := logger.Get()
	log.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Env)

	errorTracker := initErrorTracker(cfg, log)
	logger.SetErrorTracker(errorTracker)

	metrics.Init()
	startMetricsServer(cfg.App.MetricsAddr, log)

	source := lending.NewClient(cfg.Lending)
	history := position.NewHistory(cfg.Monitor.SnapshotHistoryCap)
	alertHistory := alert.NewHistory(cfg.Monitor.AlertHistoryCap)

	collectorOpts, alertOpts, events, closers := initSinks(cfg, history, alertHistory, log)
	defer closeAll(closers, log)

	snapCollector := collector.NewCollector(
		source, history, cfg.Lending.Address, cfg.Protocol, collectorOpts...)
	evaluator := risk.NewEvaluator(cfg.Monitor.PriceMoveThreshold, cfg.Monitor.LTVWarningLevel)
	alertManager := alerting.NewManager(alertHistory, alertOpts...)

	var emergencyEvents emergency.EventPublisher
	if events != nil {
		emergencyEvents = events
	}
	emergencyCtl := emergency.NewController(
		source, cfg.Lending.Address, cfg.Emergency, cfg.Protocol, emergencyEvents)

	service := monitor.NewService(
		snapCollector, evaluator, alertManager, emergencyCtl,
		history, cfg.Monitor.Interval)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := service.Start(ctx); err != nil {
		log.Fatalf("Failed to start monitor: %v", err)
	}

	log.Info("Monitor initialized successfully")

	waitForShutdown(ctx, cancel, service, errorTracker, log)
}

// initErrorTracker initializes error tracking (Sentry or no-op)
func initErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return noop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return noop.New()
	}

	log.Info("Error tracking initialized (Sentry)")
	return tracker
}

// initSinks wires the optional persistence and notification backends. Every
// backend is gated by its Enabled flag; the monitor runs fine with all of
// them off.
func initSinks(
	cfg *config.Config,
	history *position.History,
	alertHistory *alert.History,
	log *logger.Logger,
) (collectorOpts []collector.Option, alertOpts []alerting.Option, events *kafka.Producer, closers []func() error) {
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.NewClient(cfg.Postgres)
		if err != nil {
			log.Fatalf("Failed to connect to PostgreSQL: %v", err)
		}
		closers = append(closers, pgClient.Close)

		snapRepo := pgrepo.NewSnapshotRepository(pgClient.DB())
		alertRepo := pgrepo.NewAlertRepository(pgClient.DB())
		collectorOpts = append(collectorOpts, collector.WithSnapshotStore(snapRepo))
		alertOpts = append(alertOpts, alerting.WithStore(alertRepo))

		reseedHistories(snapRepo, alertRepo, history, alertHistory, log)
		log.Info("PostgreSQL persistence enabled")
	}

	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(cfg.Redis)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		closers = append(closers, redisClient.Close)

		cache := redisrepo.NewPriceCache(redisClient, cfg.Monitor.PriceCacheTTL)
		collectorOpts = append(collectorOpts, collector.WithPriceCache(cache))
		log.Info("Redis price cache enabled")
	}

	if cfg.ClickHouse.Enabled {
		chClient, err := clickhouse.NewClient(cfg.ClickHouse)
		if err != nil {
			log.Fatalf("Failed to connect to ClickHouse: %v", err)
		}
		closers = append(closers, chClient.Close)

		archive := chrepo.NewSnapshotArchive(chClient)
		collectorOpts = append(collectorOpts, collector.WithSnapshotArchive(archive))
		log.Info("ClickHouse archive enabled")
	}

	if cfg.Kafka.Enabled {
		events = kafka.NewProducer(kafka.ProducerConfig{Brokers: cfg.Kafka.Brokers})
		closers = append(closers, events.Close)

		collectorOpts = append(collectorOpts, collector.WithEventPublisher(events))
		alertOpts = append(alertOpts, alerting.WithEventPublisher(events))
		log.Info("Kafka event publishing enabled")
	}

	if cfg.Telegram.Enabled {
		notifier, err := telegram.NewNotifier(cfg.Telegram)
		if err != nil {
			log.Fatalf("Failed to initialize Telegram notifier: %v", err)
		}
		alertOpts = append(alertOpts, alerting.WithNotifier(notifier))
		log.Info("Telegram notifications enabled")
	}

	return collectorOpts, alertOpts, events, closers
}

// reseedHistories replays persisted snapshots and alerts into the in-memory
// ring buffers so a restart does not lose the trend window. Best-effort.
func reseedHistories(
	snapRepo *pgrepo.SnapshotRepository,
	alertRepo *pgrepo.AlertRepository,
	history *position.History,
	alertHistory *alert.History,
	log *logger.Logger,
) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	snaps, err := snapRepo.LoadRecent(ctx, history.Capacity())
	if err != nil {
		log.Warnf("Failed to reseed snapshot history: %v", err)
	} else {
		for _, s := range snaps {
			history.Append(s)
		}
		log.Infof("Reseeded %d snapshots from storage", len(snaps))
	}

	alerts, err := alertRepo.LoadRecent(ctx, alertHistory.Capacity())
	if err != nil {
		log.Warnf("Failed to reseed alert history: %v", err)
		return
	}
	for _, a := range alerts {
		alertHistory.Append(a)
	}
	log.Infof("Reseeded %d alerts from storage", len(alerts))
}

// startMetricsServer exposes prometheus metrics
func startMetricsServer(addr string, log *logger.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	go func() {
		log.Infof("Metrics server listening on %s", addr)
		if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
			log.Errorf("Metrics server error: %v", err)
		}
	}()
}

func closeAll(closers []func() error, log *logger.Logger) {
	for _, close := range closers {
		if err := close(); err != nil {
			log.Warnf("Failed to close resource: %v", err)
		}
	}
}

// waitForShutdown waits for shutdown signal and performs graceful shutdown
func waitForShutdown(
	ctx context.Context,
	cancel context.CancelFunc,
	service *monitor.Service,
	errorTracker errors.Tracker,
	log *logger.Logger,
) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	log.Info("Shutting down...")

	if err := service.Stop(); err != nil {
		log.Warnf("Monitor shutdown: %v", err)
	}
	cancel()

	if errorTracker != nil {
		if err := errorTracker.Flush(ctx); err != nil {
			log.Warnf("Failed to flush error tracker: %v", err)
		}
	}

	log.Info("Shutdown complete")
}
