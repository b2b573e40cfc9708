package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/t77yq/alert-ledger/internal/config"
	"github.com/t77yq/alert-ledger/internal/handler"
	"github.com/t77yq/alert-ledger/internal/ledger"
	"github.com/t77yq/alert-ledger/internal/monitor"
	"github.com/t77yq/alert-ledger/internal/scheduler"
	"github.com/t77yq/alert-ledger/internal/service"
	"github.com/t77yq/alert-ledger/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file (default ./config/config.yaml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	alerts := ledger.New(cfg.Ledger.Capacity)

	// Alert history archive
	var (
		history       *storage.SQLiteAlertHistory
		archiver      service.Archiver
		historyReader handler.HistoryReader
	)
	if cfg.History.Enabled {
		history, err = storage.NewSQLiteAlertHistory(logger, cfg.History.Path)
		if err != nil {
			logger.Fatal("Failed to create alert history storage", zap.Error(err))
		}
		defer history.Close()
		archiver = history
		historyReader = history
	}

	// Message bus
	var (
		publisher    service.Publisher
		alertBus     monitor.Bus
		sysPublisher monitor.SystemPublisher
	)
	if cfg.NATS.Enabled {
		nc, err := connectNATS(cfg, logger)
		if err != nil {
			logger.Fatal("Failed to connect to NATS after retries", zap.Error(err))
		}
		defer nc.Close()

		js, err := nc.JetStream()
		if err != nil {
			logger.Fatal("Failed to create JetStream context", zap.Error(err))
		}

		bus := service.NewAlertBus(js, logger)
		defer bus.Close()
		if err := bus.EnsureStreams(ctx); err != nil {
			logger.Fatal("Failed to create streams", zap.Error(err))
		}
		publisher = bus
		alertBus = bus
		sysPublisher = bus
	}

	ingestor := service.NewIngestor(logger, alerts, archiver, publisher)

	alertManager := monitor.NewAlertManager(logger, alerts, ingestor, alertBus, cfg.Alerts.StatsInterval)
	if err := alertManager.Start(ctx); err != nil {
		logger.Fatal("Failed to start alert manager", zap.Error(err))
	}
	defer alertManager.Stop()

	collector := monitor.NewMetricsCollector(sysPublisher, cfg.Metrics.CollectInterval, logger)
	if err := collector.Start(ctx); err != nil {
		logger.Fatal("Failed to start metrics collector", zap.Error(err))
	}
	defer collector.Stop()

	// Periodic jobs
	cron := scheduler.NewCronScheduler(logger)
	if cfg.Metrics.Simulate {
		collector.RefreshConnections()
		collector.RefreshBusinessValue()
		mustAddJob(logger, cron, "simulate-connections", "@every 5s", collector.RefreshConnections)
		mustAddJob(logger, cron, "simulate-business-value", "@every 3s", collector.RefreshBusinessValue)
	}
	if history != nil && cfg.History.Retention > 0 {
		mustAddJob(logger, cron, "history-cleanup", cfg.History.CleanupSchedule, func() {
			cleanupCtx, cleanupCancel := context.WithTimeout(ctx, time.Minute)
			defer cleanupCancel()

			cutoff := time.Now().Add(-cfg.History.Retention)
			n, err := history.DeleteBefore(cleanupCtx, cutoff)
			if err != nil {
				logger.Error("Failed to cleanup old alert history", zap.Error(err))
				return
			}
			logger.Info("Cleaned up old alert history",
				zap.Int64("deleted", n),
				zap.Time("cutoff", cutoff))
		})
	}
	cron.Start()

	// HTTP server
	h := handler.NewHandler(logger, handler.Options{
		Name:             cfg.App.Name,
		Version:          cfg.App.Version,
		DefaultListLimit: cfg.Ledger.DefaultListLimit,
		Alerts:           alerts,
		Ingester:         ingestor,
		History:          historyReader,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      h.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening",
			zap.String("addr", cfg.Server.Addr),
			zap.Int("ledger_capacity", alerts.Capacity()),
			zap.Bool("history", cfg.History.Enabled),
			zap.Bool("nats", cfg.NATS.Enabled))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Setup signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-serverErr:
		logger.Error("HTTP server failed", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Shutdown timeout reached, closing remaining connections", zap.Error(err))
	}
	cron.Stop()
	cancel()

	logger.Info("Server shutting down gracefully")
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	zc.Level = level
	return zc.Build()
}

func mustAddJob(logger *zap.Logger, cron *scheduler.CronScheduler, name, expression string, fn func()) {
	if err := cron.AddJob(name, expression, fn); err != nil {
		logger.Fatal("Failed to add job", zap.String("job", name), zap.Error(err))
	}
}

// connectNATS connects with retry
func connectNATS(cfg *config.Config, logger *zap.Logger) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name(cfg.App.Name),
		nats.MaxReconnects(cfg.NATS.MaxReconnects),
		nats.ReconnectWait(cfg.NATS.ReconnectWait),
		nats.Timeout(cfg.NATS.ConnectTimeout),
		nats.PingInterval(20 * time.Second),
		nats.MaxPingsOutstanding(5),
		nats.ReconnectBufSize(5 * 1024 * 1024), // 5MB
		nats.DrainTimeout(30 * time.Second),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			logger.Error("NATS connection error",
				zap.String("subject", subject),
				zap.Error(err))
		}),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected",
				zap.String("url", nc.ConnectedUrl()))
		}),
	}

	backoff := &service.ExponentialBackoff{
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2,
	}

	var (
		nc  *nats.Conn
		err error
	)
	for i := 0; i < cfg.NATS.ConnectRetries; i++ {
		nc, err = nats.Connect(cfg.NATS.URL, opts...)
		if err == nil {
			break
		}
		logger.Warn("Failed to connect to NATS, retrying...",
			zap.Int("attempt", i+1),
			zap.Error(err))
		if i < cfg.NATS.ConnectRetries-1 {
			time.Sleep(backoff.NextRetry(i))
		}
	}
	if err != nil {
		return nil, err
	}

	logger.Info("Connected to NATS successfully",
		zap.String("url", nc.ConnectedUrl()))
	return nc, nil
}
