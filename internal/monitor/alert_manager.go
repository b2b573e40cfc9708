package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/t77yq/alert-ledger/internal/metrics"
	"github.com/t77yq/alert-ledger/internal/model"
	"github.com/t77yq/alert-ledger/internal/service"
)

// DefaultStatsInterval matches the dashboard polling interval
const DefaultStatsInterval = 30 * time.Second

// LedgerReader is the read side of the alert ledger
type LedgerReader interface {
	Stats() model.AggregateStats
	Capacity() int
}

// Ingester records webhook payloads
type Ingester interface {
	Process(ctx context.Context, payload *model.WebhookPayload) (int, error)
}

// Bus is the message bus the alert manager consumes from and reports to
type Bus interface {
	SubscribeIngest(ctx context.Context, fn service.IngestFunc) error
	PublishStats(ctx context.Context, stats model.AggregateStats) error
}

// AlertManager drives the background side of alert handling: it consumes
// webhook payloads delivered over the bus and periodically reports ledger
// statistics as gauges and bus messages.
type AlertManager struct {
	logger   *zap.Logger
	ledger   LedgerReader
	ingester Ingester
	bus      Bus
	interval time.Duration
	stop     chan struct{}
	stopOnce sync.Once
}

// NewAlertManager creates a new alert manager. bus may be nil.
func NewAlertManager(logger *zap.Logger, ledger LedgerReader, ingester Ingester, bus Bus, interval time.Duration) *AlertManager {
	if interval <= 0 {
		interval = DefaultStatsInterval
	}
	return &AlertManager{
		logger:   logger.Named("alert-manager"),
		ledger:   ledger,
		ingester: ingester,
		bus:      bus,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Start subscribes to bus ingest and starts the stats loop
func (m *AlertManager) Start(ctx context.Context) error {
	metrics.LedgerCapacity.Set(float64(m.ledger.Capacity()))

	if m.bus != nil {
		if err := m.bus.SubscribeIngest(ctx, m.handleIngest); err != nil {
			return fmt.Errorf("failed to subscribe to alert ingest: %w", err)
		}
	}

	m.Report(ctx)
	go m.evaluationLoop(ctx)

	m.logger.Info("Alert manager started",
		zap.Duration("interval", m.interval),
		zap.Bool("bus", m.bus != nil))

	return nil
}

// Stop stops the stats loop
func (m *AlertManager) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

// Report refreshes the ledger gauges and publishes a stats snapshot
func (m *AlertManager) Report(ctx context.Context) model.AggregateStats {
	stats := m.ledger.Stats()

	metrics.LedgerAlerts.WithLabelValues("total").Set(float64(stats.Total))
	metrics.LedgerAlerts.WithLabelValues("firing").Set(float64(stats.Firing))
	metrics.LedgerAlerts.WithLabelValues("resolved").Set(float64(stats.Resolved))

	if m.bus != nil {
		if err := m.bus.PublishStats(ctx, stats); err != nil {
			m.logger.Error("Failed to publish alert stats", zap.Error(err))
		}
	}

	m.logger.Debug("Alert stats",
		zap.Int("total", stats.Total),
		zap.Int("firing", stats.Firing),
		zap.Int("resolved", stats.Resolved))

	return stats
}

// handleIngest handles webhook payloads delivered over the bus
func (m *AlertManager) handleIngest(ctx context.Context, payload *model.WebhookPayload) error {
	n, err := m.ingester.Process(ctx, payload)
	if err != nil {
		metrics.WebhookRequestsTotal.WithLabelValues("nats", "error").Inc()
		return err
	}
	metrics.WebhookRequestsTotal.WithLabelValues("nats", "ok").Inc()

	m.logger.Info("Webhook received over bus",
		zap.String("receiver", payload.Receiver),
		zap.Int("alerts", n))
	return nil
}

// evaluationLoop periodically reports ledger statistics
func (m *AlertManager) evaluationLoop(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stop:
			return
		case <-ticker.C:
			m.Report(ctx)
		}
	}
}
