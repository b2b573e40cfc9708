package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/t77yq/alert-ledger/internal/model"
)

// IngestFunc handles a webhook payload delivered over the bus
type IngestFunc func(ctx context.Context, payload *model.WebhookPayload) error

// AlertBus publishes received alerts and statistics to NATS JetStream and
// accepts webhook payloads published on the ingest subject.
type AlertBus struct {
	js     nats.JetStreamContext
	logger *zap.Logger

	mu     sync.Mutex
	subs   []*nats.Subscription
	closed bool
}

// NewAlertBus creates a new alert bus
func NewAlertBus(js nats.JetStreamContext, logger *zap.Logger) *AlertBus {
	return &AlertBus{
		js:     js,
		logger: logger.Named("alert-bus"),
	}
}

// EnsureStreams creates the alert and metrics streams if they do not exist
func (b *AlertBus) EnsureStreams(ctx context.Context) error {
	streams := []struct {
		name     string
		subjects []string
	}{
		{name: alertStreamName, subjects: []string{alertSubjects}},
		{name: metricsStreamName, subjects: []string{metricsSubjects}},
	}

	for _, stream := range streams {
		_, err := b.js.StreamInfo(stream.name, nats.Context(ctx))
		if err == nil {
			b.logger.Info("Using existing stream", zap.String("stream", stream.name))
			continue
		}
		if err != nats.ErrStreamNotFound {
			return fmt.Errorf("failed to get stream info: %w", err)
		}

		_, err = b.js.AddStream(&nats.StreamConfig{
			Name:     stream.name,
			Subjects: stream.subjects,
			Storage:  nats.FileStorage,
			MaxAge:   streamMaxAge,
			MaxMsgs:  streamMaxMsgs,
			Discard:  nats.DiscardOld,
		}, nats.Context(ctx))
		if err != nil {
			return fmt.Errorf("failed to create stream %s: %w", stream.name, err)
		}
		b.logger.Info("Stream created", zap.String("stream", stream.name))
	}
	return nil
}

// PublishRecord publishes a stored alert on alert.received.<status>
func (b *AlertBus) PublishRecord(ctx context.Context, rec model.AlertRecord) error {
	return b.publish(ctx, alertReceivedSubj+"."+subjectToken(string(rec.Status)), rec)
}

// PublishStats publishes a ledger statistics snapshot
func (b *AlertBus) PublishStats(ctx context.Context, stats model.AggregateStats) error {
	return b.publish(ctx, alertStatsSubj, stats)
}

// PublishSystemStats publishes a host metrics sample
func (b *AlertBus) PublishSystemStats(ctx context.Context, stats model.SystemStats) error {
	return b.publish(ctx, systemStatsSubj, stats)
}

// PublishWebhook publishes a raw webhook payload on the ingest subject
func (b *AlertBus) PublishWebhook(ctx context.Context, payload *model.WebhookPayload) error {
	return b.publish(ctx, alertIngestSubj, payload)
}

func (b *AlertBus) publish(ctx context.Context, subject string, v interface{}) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrBusClosed
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if _, err := b.js.Publish(subject, data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}

// SubscribeIngest delivers webhook payloads published on alert.ingest to fn.
// Malformed messages are logged and acknowledged so they are not redelivered.
func (b *AlertBus) SubscribeIngest(ctx context.Context, fn IngestFunc) error {
	sub, err := b.js.Subscribe(alertIngestSubj, func(msg *nats.Msg) {
		var payload model.WebhookPayload
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			b.logger.Error("Failed to unmarshal webhook payload", zap.Error(err))
			b.ack(msg)
			return
		}

		if err := fn(ctx, &payload); err != nil {
			b.logger.Error("Failed to ingest webhook payload",
				zap.String("receiver", payload.Receiver),
				zap.Error(err))
		}
		b.ack(msg)
	}, nats.Durable(ingestConsumer), nats.ManualAck(), nats.DeliverNew())
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", alertIngestSubj, err)
	}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		if err := sub.Unsubscribe(); err != nil && err != nats.ErrConnectionClosed && err != nats.ErrBadSubscription {
			b.logger.Warn("Failed to unsubscribe", zap.Error(err))
		}
	}()

	return nil
}

// Close unsubscribes every ingest subscription and rejects further publishes
func (b *AlertBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	for _, sub := range b.subs {
		sub.Unsubscribe()
	}
	b.subs = nil
}

func (b *AlertBus) ack(msg *nats.Msg) {
	if err := msg.Ack(); err != nil {
		b.logger.Error("Failed to acknowledge message", zap.Error(err))
	}
}

// subjectToken makes a status safe to use as a single NATS subject token
func subjectToken(s string) string {
	if s == "" {
		return string(model.AlertStatusUnknown)
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, s)
}
