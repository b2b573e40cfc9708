package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookAlert_ToRecord(t *testing.T) {
	starts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ends := starts.Add(5 * time.Minute)

	alert := WebhookAlert{
		Status:      "resolved",
		Labels:      map[string]string{"alertname": "HighCPU", "severity": "critical"},
		Annotations: map[string]string{"summary": "CPU hot", "description": "above 90%"},
		StartsAt:    starts,
		EndsAt:      ends,
		Fingerprint: "f1",
	}

	rec := alert.ToRecord()
	assert.Equal(t, "HighCPU", rec.Name)
	assert.Equal(t, AlertStatusResolved, rec.Status)
	assert.Equal(t, "CPU hot", rec.Summary())
	assert.Equal(t, "above 90%", rec.Description())
	assert.Equal(t, starts, rec.StartsAt)
	require.NotNil(t, rec.EndsAt)
	assert.Equal(t, ends, *rec.EndsAt)
	assert.Equal(t, "f1", rec.Fingerprint)
	assert.True(t, rec.ReceivedAt.IsZero())

	// the record does not share maps with the payload
	alert.Labels["severity"] = "info"
	assert.Equal(t, "critical", rec.Labels["severity"])
}

func TestWebhookAlert_ToRecordDefaults(t *testing.T) {
	rec := WebhookAlert{}.ToRecord()

	assert.Equal(t, "Unknown", rec.Name)
	assert.Equal(t, AlertStatusUnknown, rec.Status)
	assert.NotNil(t, rec.Labels)
	assert.NotNil(t, rec.Annotations)
	assert.Nil(t, rec.EndsAt)
	assert.Empty(t, rec.Fingerprint)
	assert.Empty(t, rec.Summary())
}

func TestAlertRecord_Clone(t *testing.T) {
	ends := time.Now()
	rec := AlertRecord{
		Name:        "A",
		Labels:      map[string]string{"k": "v"},
		Annotations: map[string]string{"summary": "s"},
		EndsAt:      &ends,
	}

	clone := rec.Clone()
	clone.Labels["k"] = "changed"
	clone.Annotations["summary"] = "changed"
	*clone.EndsAt = ends.Add(time.Hour)

	assert.Equal(t, "v", rec.Labels["k"])
	assert.Equal(t, "s", rec.Annotations["summary"])
	assert.Equal(t, ends, *rec.EndsAt)
}
