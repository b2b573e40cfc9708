package monitor

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"

	"github.com/t77yq/alert-ledger/internal/metrics"
	"github.com/t77yq/alert-ledger/internal/model"
)

// SystemPublisher publishes host metric samples
type SystemPublisher interface {
	PublishSystemStats(ctx context.Context, stats model.SystemStats) error
}

// MetricsCollector samples host CPU and memory usage and maintains the
// simulated business gauges
type MetricsCollector struct {
	logger    *zap.Logger
	publisher SystemPublisher
	interval  time.Duration
	mu        sync.RWMutex
	stats     model.SystemStats
	stop      chan struct{}
	stopOnce  sync.Once

	sampleCPU    func(ctx context.Context) (float64, error)
	sampleMemory func(ctx context.Context) (float64, error)
}

// NewMetricsCollector creates a new metrics collector. publisher may be nil.
func NewMetricsCollector(publisher SystemPublisher, interval time.Duration, logger *zap.Logger) *MetricsCollector {
	return &MetricsCollector{
		logger:       logger.Named("metrics-collector"),
		publisher:    publisher,
		interval:     interval,
		stop:         make(chan struct{}),
		sampleCPU:    hostCPU,
		sampleMemory: hostMemory,
	}
}

// Start starts the metrics collector
func (c *MetricsCollector) Start(ctx context.Context) error {
	c.logger.Info("Starting metrics collector", zap.Duration("interval", c.interval))
	go c.collectLoop(ctx)
	return nil
}

// Stop stops the metrics collector
func (c *MetricsCollector) Stop() {
	c.stopOnce.Do(func() {
		c.logger.Info("Stopping metrics collector")
		close(c.stop)
	})
}

// collectLoop runs the metrics collection loop
func (c *MetricsCollector) collectLoop(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case <-ticker.C:
			c.Collect(ctx)
		}
	}
}

// Collect samples host metrics once, updates the gauges and publishes the sample
func (c *MetricsCollector) Collect(ctx context.Context) model.SystemStats {
	cpuPercent, err := c.sampleCPU(ctx)
	if err != nil {
		c.logger.Error("Failed to get CPU usage", zap.Error(err))
	}

	memPercent, err := c.sampleMemory(ctx)
	if err != nil {
		c.logger.Error("Failed to get memory usage", zap.Error(err))
	}

	c.mu.Lock()
	c.stats.CPUUsage = cpuPercent
	c.stats.MemoryUsage = memPercent
	c.stats.CollectedAt = time.Now()
	stats := c.stats
	c.mu.Unlock()

	metrics.CPUUsage.Set(cpuPercent)
	metrics.MemoryUsage.Set(memPercent)

	if c.publisher != nil {
		if err := c.publisher.PublishSystemStats(ctx, stats); err != nil {
			c.logger.Error("Failed to publish metrics", zap.Error(err))
		}
	}

	c.logger.Debug("Metrics collected",
		zap.Float64("cpu_usage", stats.CPUUsage),
		zap.Float64("memory_usage", stats.MemoryUsage))

	return stats
}

// RefreshConnections sets the simulated active connection count to 10-109
func (c *MetricsCollector) RefreshConnections() {
	n := rand.Intn(100) + 10

	c.mu.Lock()
	c.stats.ActiveConnections = n
	c.mu.Unlock()

	metrics.ActiveConnections.Set(float64(n))
}

// RefreshBusinessValue sets the simulated business value to [0, 1000)
func (c *MetricsCollector) RefreshBusinessValue() {
	v := rand.Float64() * 1000

	c.mu.Lock()
	c.stats.BusinessValue = v
	c.mu.Unlock()

	metrics.BusinessValue.Set(v)
}

// GetStats returns the latest sample
func (c *MetricsCollector) GetStats() model.SystemStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

func hostCPU(ctx context.Context) (float64, error) {
	percent, err := cpu.PercentWithContext(ctx, time.Second, false)
	if err != nil {
		return 0, err
	}
	if len(percent) == 0 {
		return 0, nil
	}
	return percent[0], nil
}

func hostMemory(ctx context.Context) (float64, error) {
	info, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return info.UsedPercent, nil
}
