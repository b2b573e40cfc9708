// Package ledger keeps a bounded, concurrency-safe window of received alerts
// and derives statistics over that window.
package ledger

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/t77yq/alert-ledger/internal/model"
)

// DefaultCapacity is used when a ledger is created with a non-positive capacity
const DefaultCapacity = 1000

// Ledger retains the most recently received alerts in a fixed-size ring.
// All operations take the same exclusive lock.
type Ledger struct {
	mu       sync.Mutex
	buf      []model.AlertRecord
	head     int // index of the oldest retained record
	size     int
	last     time.Time
	now      func() time.Time
	newPrint func() string
}

// New creates a ledger that retains at most capacity records
func New(capacity int) *Ledger {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ledger{
		buf:      make([]model.AlertRecord, capacity),
		now:      time.Now,
		newPrint: func() string { return uuid.New().String() },
	}
}

// Add stores a copy of rec, stamping ReceivedAt, and evicts the oldest
// record once capacity is exceeded. The stored copy is returned.
func (l *Ledger) Add(rec model.AlertRecord) model.AlertRecord {
	rec = rec.Clone()
	if rec.Fingerprint == "" {
		rec.Fingerprint = l.newPrint()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// ReceivedAt never moves backwards, even if the wall clock does.
	now := l.now()
	if now.Before(l.last) {
		now = l.last
	}
	l.last = now
	rec.ReceivedAt = now

	capacity := len(l.buf)
	if l.size < capacity {
		l.buf[(l.head+l.size)%capacity] = rec
		l.size++
	} else {
		l.buf[l.head] = rec
		l.head = (l.head + 1) % capacity
	}
	return rec.Clone()
}

// List returns up to limit records, newest first. A non-positive limit
// returns every retained record. The result is a copy.
func (l *Ledger) List(limit int) []model.AlertRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := l.size
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]model.AlertRecord, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, l.at(l.size-1-i).Clone())
	}
	return out
}

// Stats computes counts over the currently retained records. Statuses other
// than firing and resolved only contribute to Total.
func (l *Ledger) Stats() model.AggregateStats {
	l.mu.Lock()
	defer l.mu.Unlock()

	stats := model.AggregateStats{Total: l.size}
	for i := 0; i < l.size; i++ {
		switch l.at(i).Status {
		case model.AlertStatusFiring:
			stats.Firing++
		case model.AlertStatusResolved:
			stats.Resolved++
		}
	}
	if l.size > 0 {
		last := l.at(l.size - 1).ReceivedAt
		stats.LastReceivedAt = &last
	}
	return stats
}

// Clear drops every retained record
func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()

	clear(l.buf)
	l.head = 0
	l.size = 0
}

// Len returns the number of retained records
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.size
}

// Capacity returns the maximum number of retained records
func (l *Ledger) Capacity() int {
	return len(l.buf)
}

// at returns the i-th oldest retained record. Caller holds mu.
func (l *Ledger) at(i int) *model.AlertRecord {
	return &l.buf[(l.head+i)%len(l.buf)]
}
