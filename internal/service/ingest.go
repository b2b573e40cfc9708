package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/t77yq/alert-ledger/internal/metrics"
	"github.com/t77yq/alert-ledger/internal/model"
)

// Recorder stores alert records and returns the stored copy
type Recorder interface {
	Add(rec model.AlertRecord) model.AlertRecord
}

// Archiver persists received alerts beyond the ledger window
type Archiver interface {
	Archive(ctx context.Context, rec model.AlertRecord) error
}

// Publisher fans received alerts out to other consumers
type Publisher interface {
	PublishRecord(ctx context.Context, rec model.AlertRecord) error
}

// Ingestor turns webhook payloads into ledger records
type Ingestor struct {
	logger    *zap.Logger
	recorder  Recorder
	archiver  Archiver
	publisher Publisher
}

// NewIngestor creates a new ingestor. archiver and publisher may be nil.
func NewIngestor(logger *zap.Logger, recorder Recorder, archiver Archiver, publisher Publisher) *Ingestor {
	return &Ingestor{
		logger:    logger.Named("ingestor"),
		recorder:  recorder,
		archiver:  archiver,
		publisher: publisher,
	}
}

// Process records every alert in payload and returns how many were recorded.
// Archive and publish failures are logged; they never fail ingestion.
func (i *Ingestor) Process(ctx context.Context, payload *model.WebhookPayload) (int, error) {
	if payload == nil {
		return 0, ErrInvalidPayload
	}

	for _, alert := range payload.Alerts {
		rec := alert.ToRecord()
		if rec.Fingerprint == "" {
			rec.Fingerprint = uuid.New().String()
		}

		stored := i.recorder.Add(rec)
		metrics.AlertsReceivedTotal.WithLabelValues(statusLabel(stored.Status)).Inc()

		i.logger.Info("Alert received",
			zap.String("alertname", stored.Name),
			zap.String("status", string(stored.Status)),
			zap.String("fingerprint", stored.Fingerprint),
			zap.String("receiver", payload.Receiver))

		if i.archiver != nil {
			if err := i.archiver.Archive(ctx, stored); err != nil {
				metrics.ArchiveErrorsTotal.Inc()
				i.logger.Error("Failed to archive alert",
					zap.String("fingerprint", stored.Fingerprint),
					zap.Error(err))
			}
		}

		if i.publisher != nil {
			if err := i.publisher.PublishRecord(ctx, stored); err != nil {
				metrics.PublishErrorsTotal.Inc()
				i.logger.Error("Failed to publish alert",
					zap.String("fingerprint", stored.Fingerprint),
					zap.Error(err))
			}
		}
	}

	return len(payload.Alerts), nil
}

// statusLabel bounds metric label cardinality to the recognized statuses
func statusLabel(status model.AlertStatus) string {
	switch status {
	case model.AlertStatusFiring, model.AlertStatusResolved:
		return string(status)
	}
	return "other"
}
