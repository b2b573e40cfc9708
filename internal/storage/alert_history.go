package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/t77yq/alert-ledger/internal/model"
)

// AlertHistory is an archived alert notification
type AlertHistory struct {
	ID          string            `json:"id"`
	Name        string            `json:"alertname"`
	Status      model.AlertStatus `json:"status"`
	Fingerprint string            `json:"fingerprint"`
	Labels      map[string]string `json:"labels,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty"`
	StartsAt    time.Time         `json:"startsAt"`
	EndsAt      *time.Time        `json:"endsAt,omitempty"`
	ReceivedAt  time.Time         `json:"receivedAt"`
}

// HistoryFilter narrows List and Count. Empty fields match everything.
type HistoryFilter struct {
	Status      model.AlertStatus
	Name        string
	Fingerprint string
}

// AlertHistoryStorage defines the interface for alert history storage
type AlertHistoryStorage interface {
	// Store stores an archived alert
	Store(ctx context.Context, history *AlertHistory) error

	// Get retrieves an archived alert by ID
	Get(ctx context.Context, id string) (*AlertHistory, error)

	// List retrieves archived alerts, newest first
	List(ctx context.Context, filter HistoryFilter, offset, limit int) ([]*AlertHistory, error)

	// Count returns the number of archived alerts matching the filter
	Count(ctx context.Context, filter HistoryFilter) (int, error)

	// DeleteBefore deletes alerts received before the specified time
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// SQLiteAlertHistory implements AlertHistoryStorage using SQLite
type SQLiteAlertHistory struct {
	logger *zap.Logger
	db     *sql.DB
}

// NewSQLiteAlertHistory opens (or creates) the archive at dbPath
func NewSQLiteAlertHistory(logger *zap.Logger, dbPath string) (*SQLiteAlertHistory, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	storage := &SQLiteAlertHistory{
		logger: logger.Named("alert-history"),
		db:     db,
	}

	if err := storage.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	return storage, nil
}

// initialize creates the necessary tables if they don't exist
func (s *SQLiteAlertHistory) initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS alert_history (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			status TEXT NOT NULL,
			fingerprint TEXT NOT NULL,
			labels TEXT,
			annotations TEXT,
			starts_at DATETIME NOT NULL,
			ends_at DATETIME,
			received_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_alert_history_name ON alert_history(name);
		CREATE INDEX IF NOT EXISTS idx_alert_history_status ON alert_history(status);
		CREATE INDEX IF NOT EXISTS idx_alert_history_fingerprint ON alert_history(fingerprint);
		CREATE INDEX IF NOT EXISTS idx_alert_history_received_at ON alert_history(received_at);
	`)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	return nil
}

// Archive stores a ledger record under a fresh ID
func (s *SQLiteAlertHistory) Archive(ctx context.Context, rec model.AlertRecord) error {
	return s.Store(ctx, &AlertHistory{
		ID:          uuid.New().String(),
		Name:        rec.Name,
		Status:      rec.Status,
		Fingerprint: rec.Fingerprint,
		Labels:      rec.Labels,
		Annotations: rec.Annotations,
		StartsAt:    rec.StartsAt,
		EndsAt:      rec.EndsAt,
		ReceivedAt:  rec.ReceivedAt,
	})
}

// Store implements AlertHistoryStorage.Store
func (s *SQLiteAlertHistory) Store(ctx context.Context, history *AlertHistory) error {
	labels, err := json.Marshal(history.Labels)
	if err != nil {
		return fmt.Errorf("failed to marshal labels: %w", err)
	}
	annotations, err := json.Marshal(history.Annotations)
	if err != nil {
		return fmt.Errorf("failed to marshal annotations: %w", err)
	}

	var endsAt sql.NullTime
	if history.EndsAt != nil {
		endsAt = sql.NullTime{Time: history.EndsAt.UTC(), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO alert_history (
			id, name, status, fingerprint, labels, annotations, starts_at, ends_at, received_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		history.ID,
		history.Name,
		history.Status,
		history.Fingerprint,
		string(labels),
		string(annotations),
		history.StartsAt.UTC(),
		endsAt,
		history.ReceivedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to store alert history: %w", err)
	}
	return nil
}

const selectColumns = "id, name, status, fingerprint, labels, annotations, starts_at, ends_at, received_at"

// Get implements AlertHistoryStorage.Get. It returns nil, nil when id is unknown.
func (s *SQLiteAlertHistory) Get(ctx context.Context, id string) (*AlertHistory, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+selectColumns+" FROM alert_history WHERE id = ?", id)
	history, err := scanHistory(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan alert history: %w", err)
	}
	return history, nil
}

// List implements AlertHistoryStorage.List
func (s *SQLiteAlertHistory) List(ctx context.Context, filter HistoryFilter, offset, limit int) ([]*AlertHistory, error) {
	where, args := filter.clause()
	query := "SELECT " + selectColumns + " FROM alert_history" + where +
		" ORDER BY received_at DESC, rowid DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list alert history: %w", err)
	}
	defer rows.Close()

	var histories []*AlertHistory
	for rows.Next() {
		history, err := scanHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert history: %w", err)
		}
		histories = append(histories, history)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return histories, nil
}

// Count implements AlertHistoryStorage.Count
func (s *SQLiteAlertHistory) Count(ctx context.Context, filter HistoryFilter) (int, error) {
	where, args := filter.clause()

	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM alert_history"+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count alert history: %w", err)
	}
	return count, nil
}

// DeleteBefore implements AlertHistoryStorage.DeleteBefore
func (s *SQLiteAlertHistory) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM alert_history WHERE received_at < ?", before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete alert history: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	s.logger.Info("Deleted old alert history records",
		zap.Time("before", before),
		zap.Int64("deleted", affected))

	return affected, nil
}

// Close closes the database connection
func (s *SQLiteAlertHistory) Close() error {
	return s.db.Close()
}

func (f HistoryFilter) clause() (string, []interface{}) {
	var conds []string
	var args []interface{}

	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.Name != "" {
		conds = append(conds, "name = ?")
		args = append(args, f.Name)
	}
	if f.Fingerprint != "" {
		conds = append(conds, "fingerprint = ?")
		args = append(args, f.Fingerprint)
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanHistory(sc scanner) (*AlertHistory, error) {
	var history AlertHistory
	var labels, annotations sql.NullString
	var endsAt sql.NullTime

	err := sc.Scan(
		&history.ID,
		&history.Name,
		&history.Status,
		&history.Fingerprint,
		&labels,
		&annotations,
		&history.StartsAt,
		&endsAt,
		&history.ReceivedAt,
	)
	if err != nil {
		return nil, err
	}

	if labels.Valid && labels.String != "" {
		if err := json.Unmarshal([]byte(labels.String), &history.Labels); err != nil {
			return nil, fmt.Errorf("failed to unmarshal labels: %w", err)
		}
	}
	if annotations.Valid && annotations.String != "" {
		if err := json.Unmarshal([]byte(annotations.String), &history.Annotations); err != nil {
			return nil, fmt.Errorf("failed to unmarshal annotations: %w", err)
		}
	}
	if endsAt.Valid {
		history.EndsAt = &endsAt.Time
	}

	return &history, nil
}
