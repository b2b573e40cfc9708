package model

import "time"

// WebhookPayload is the body Alertmanager posts to a webhook receiver
type WebhookPayload struct {
	Version           string            `json:"version"`
	GroupKey          string            `json:"groupKey"`
	TruncatedAlerts   int               `json:"truncatedAlerts"`
	Receiver          string            `json:"receiver"`
	Status            string            `json:"status"`
	Alerts            []WebhookAlert    `json:"alerts"`
	GroupLabels       map[string]string `json:"groupLabels"`
	CommonLabels      map[string]string `json:"commonLabels"`
	CommonAnnotations map[string]string `json:"commonAnnotations"`
	ExternalURL       string            `json:"externalURL"`
}

// WebhookAlert is a single alert inside a webhook payload
type WebhookAlert struct {
	Status       string            `json:"status"`
	Labels       map[string]string `json:"labels"`
	Annotations  map[string]string `json:"annotations"`
	StartsAt     time.Time         `json:"startsAt"`
	EndsAt       time.Time         `json:"endsAt"`
	GeneratorURL string            `json:"generatorURL,omitempty"`
	Fingerprint  string            `json:"fingerprint,omitempty"`
}

// ToRecord maps the alert onto an AlertRecord. Missing name and status fall
// back to "Unknown" and "unknown"; a zero EndsAt is left unset. Fingerprint is
// copied as-is and may be empty.
func (a WebhookAlert) ToRecord() AlertRecord {
	rec := AlertRecord{
		Name:        a.Labels["alertname"],
		Status:      AlertStatus(a.Status),
		Labels:      copyOrEmpty(a.Labels),
		Annotations: copyOrEmpty(a.Annotations),
		StartsAt:    a.StartsAt,
		Fingerprint: a.Fingerprint,
	}
	if rec.Name == "" {
		rec.Name = "Unknown"
	}
	if rec.Status == "" {
		rec.Status = AlertStatusUnknown
	}
	if !a.EndsAt.IsZero() {
		endsAt := a.EndsAt
		rec.EndsAt = &endsAt
	}
	return rec
}

func copyOrEmpty(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
