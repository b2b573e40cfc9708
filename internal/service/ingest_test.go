package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/t77yq/alert-ledger/internal/ledger"
	"github.com/t77yq/alert-ledger/internal/model"
)

type fakeArchiver struct {
	mu      sync.Mutex
	records []model.AlertRecord
	err     error
}

func (f *fakeArchiver) Archive(ctx context.Context, rec model.AlertRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, rec)
	return nil
}

type fakePublisher struct {
	mu      sync.Mutex
	records []model.AlertRecord
	err     error
}

func (f *fakePublisher) PublishRecord(ctx context.Context, rec model.AlertRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, rec)
	return nil
}

func samplePayload() *model.WebhookPayload {
	startsAt := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return &model.WebhookPayload{
		Version:  "4",
		Receiver: "demo-app",
		Status:   "firing",
		Alerts: []model.WebhookAlert{
			{
				Status:      "firing",
				Labels:      map[string]string{"alertname": "HighCPU", "severity": "warning"},
				Annotations: map[string]string{"summary": "CPU above 80%"},
				StartsAt:    startsAt,
				Fingerprint: "abc123",
			},
			{
				Status:      "resolved",
				Labels:      map[string]string{"alertname": "HighMemory"},
				Annotations: map[string]string{},
				StartsAt:    startsAt,
				EndsAt:      startsAt.Add(5 * time.Minute),
			},
			{
				Labels: map[string]string{"instance": "demo:8000"},
			},
		},
	}
}

func TestIngestor_Process(t *testing.T) {
	l := ledger.New(10)
	archiver := &fakeArchiver{}
	publisher := &fakePublisher{}
	ingestor := NewIngestor(zaptest.NewLogger(t), l, archiver, publisher)

	n, err := ingestor.Process(context.Background(), samplePayload())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	stats := l.Stats()
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.Firing)
	assert.Equal(t, 1, stats.Resolved)

	list := l.List(0)
	require.Len(t, list, 3)

	unknown := list[0]
	assert.Equal(t, "Unknown", unknown.Name)
	assert.Equal(t, model.AlertStatusUnknown, unknown.Status)
	assert.NotEmpty(t, unknown.Fingerprint)
	assert.Nil(t, unknown.EndsAt)

	resolved := list[1]
	assert.Equal(t, "HighMemory", resolved.Name)
	require.NotNil(t, resolved.EndsAt)
	assert.NotEmpty(t, resolved.Fingerprint)

	firing := list[2]
	assert.Equal(t, "HighCPU", firing.Name)
	assert.Equal(t, "abc123", firing.Fingerprint)
	assert.Equal(t, "CPU above 80%", firing.Summary())
	assert.Nil(t, firing.EndsAt)

	assert.Len(t, archiver.records, 3)
	assert.Len(t, publisher.records, 3)
	assert.False(t, publisher.records[0].ReceivedAt.IsZero())
}

func TestIngestor_NilPayload(t *testing.T) {
	ingestor := NewIngestor(zaptest.NewLogger(t), ledger.New(10), nil, nil)

	n, err := ingestor.Process(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInvalidPayload)
	assert.Zero(t, n)
}

func TestIngestor_EmptyBatch(t *testing.T) {
	l := ledger.New(10)
	ingestor := NewIngestor(zaptest.NewLogger(t), l, nil, nil)

	n, err := ingestor.Process(context.Background(), &model.WebhookPayload{Receiver: "demo"})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, l.Len())
}

func TestIngestor_SideEffectFailuresDoNotFailIngestion(t *testing.T) {
	l := ledger.New(10)
	archiver := &fakeArchiver{err: errors.New("disk full")}
	publisher := &fakePublisher{err: errors.New("no responders")}
	ingestor := NewIngestor(zaptest.NewLogger(t), l, archiver, publisher)

	n, err := ingestor.Process(context.Background(), samplePayload())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, l.Len())
}

func TestStatusLabel(t *testing.T) {
	assert.Equal(t, "firing", statusLabel(model.AlertStatusFiring))
	assert.Equal(t, "resolved", statusLabel(model.AlertStatusResolved))
	assert.Equal(t, "other", statusLabel(model.AlertStatus("pending")))
	assert.Equal(t, "other", statusLabel(model.AlertStatusUnknown))
}
