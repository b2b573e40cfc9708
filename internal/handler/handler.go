// Package handler serves the alert ledger over HTTP.
package handler

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/t77yq/alert-ledger/internal/model"
	"github.com/t77yq/alert-ledger/internal/storage"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
	maxWebhookBytes     = 1 << 20
)

// AlertStore is the ledger as seen by the HTTP layer
type AlertStore interface {
	List(limit int) []model.AlertRecord
	Stats() model.AggregateStats
	Clear()
}

// Ingester records webhook payloads
type Ingester interface {
	Process(ctx context.Context, payload *model.WebhookPayload) (int, error)
}

// HistoryReader reads the alert archive
type HistoryReader interface {
	List(ctx context.Context, filter storage.HistoryFilter, offset, limit int) ([]*storage.AlertHistory, error)
	Count(ctx context.Context, filter storage.HistoryFilter) (int, error)
}

// Options configures a Handler. History may be nil when the archive is disabled.
type Options struct {
	Name             string
	Version          string
	DefaultListLimit int
	Alerts           AlertStore
	Ingester         Ingester
	History          HistoryReader
}

// Handler holds the HTTP endpoints
type Handler struct {
	logger       *zap.Logger
	name         string
	version      string
	defaultLimit int
	alerts       AlertStore
	ingester     Ingester
	history      HistoryReader
	started      time.Time

	random func() float64
	sleep  func(ctx context.Context, d time.Duration)
}

// NewHandler creates a new handler
func NewHandler(logger *zap.Logger, opts Options) *Handler {
	limit := opts.DefaultListLimit
	if limit <= 0 {
		limit = 50
	}
	return &Handler{
		logger:       logger.Named("http"),
		name:         opts.Name,
		version:      opts.Version,
		defaultLimit: limit,
		alerts:       opts.Alerts,
		ingester:     opts.Ingester,
		history:      opts.History,
		started:      time.Now(),
		random:       rand.Float64,
		sleep:        sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
