package model

import (
	"maps"
	"time"
)

// AlertStatus represents the state reported for an alert notification
type AlertStatus string

const (
	AlertStatusFiring   AlertStatus = "firing"
	AlertStatusResolved AlertStatus = "resolved"
	AlertStatusUnknown  AlertStatus = "unknown"
)

// AlertRecord is one received alert notification
type AlertRecord struct {
	Name        string            `json:"alertname"`
	Status      AlertStatus       `json:"status"`
	Labels      map[string]string `json:"labels"`
	Annotations map[string]string `json:"annotations"`
	StartsAt    time.Time         `json:"startsAt"`
	EndsAt      *time.Time        `json:"endsAt,omitempty"`
	Fingerprint string            `json:"fingerprint"`
	ReceivedAt  time.Time         `json:"receivedAt"`
}

// Summary returns the "summary" annotation, if any
func (r *AlertRecord) Summary() string {
	return r.Annotations["summary"]
}

// Description returns the "description" annotation, if any
func (r *AlertRecord) Description() string {
	return r.Annotations["description"]
}

// Clone returns a deep copy of the record
func (r AlertRecord) Clone() AlertRecord {
	out := r
	out.Labels = maps.Clone(r.Labels)
	out.Annotations = maps.Clone(r.Annotations)
	if r.EndsAt != nil {
		endsAt := *r.EndsAt
		out.EndsAt = &endsAt
	}
	return out
}

// AggregateStats summarizes the alerts currently retained by a ledger
type AggregateStats struct {
	Total          int        `json:"total"`
	Firing         int        `json:"firing"`
	Resolved       int        `json:"resolved"`
	LastReceivedAt *time.Time `json:"lastReceived"`
}
