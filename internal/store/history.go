package store

import (
	"context"
	"fmt"
	"time"
)

// NotificationRecord is one persisted import notification.
type NotificationRecord struct {
	ID         int64     `json:"id"`
	Source     string    `json:"source"`
	Library    string    `json:"library"`
	Resolved   string    `json:"resolved"`
	EventType  string    `json:"event_type"`
	Title      string    `json:"title"`
	Status     string    `json:"status"`
	ReceivedAt time.Time `json:"received_at"`
}

// RecordNotification appends one import notification to the history.
func (s *Store) RecordNotification(ctx context.Context, record NotificationRecord) error {
	_, err := s.execWithRetry(ctx,
		`INSERT INTO notification_history
		 (source, library, resolved, event_type, title, status, received_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.Source, record.Library, record.Resolved,
		record.EventType, record.Title, record.Status, formatTime(record.ReceivedAt))
	if err != nil {
		return fmt.Errorf("record notification: %w", err)
	}
	return nil
}

// RecentNotifications returns up to limit notifications, newest first.
func (s *Store) RecentNotifications(ctx context.Context, limit int) ([]NotificationRecord, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, library, resolved, event_type, title, status, received_at
		 FROM notification_history ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var records []NotificationRecord
	for rows.Next() {
		var (
			record     NotificationRecord
			receivedAt string
		)
		if err := rows.Scan(&record.ID, &record.Source, &record.Library, &record.Resolved,
			&record.EventType, &record.Title, &record.Status, &receivedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		record.ReceivedAt = parseTime(receivedAt)
		records = append(records, record)
	}
	return records, rows.Err()
}

// PruneNotifications keeps only the newest keep rows.
func (s *Store) PruneNotifications(ctx context.Context, keep int) error {
	_, err := s.execWithRetry(ctx,
		`DELETE FROM notification_history WHERE id NOT IN
		 (SELECT id FROM notification_history ORDER BY id DESC LIMIT ?)`, keep)
	if err != nil {
		return fmt.Errorf("prune notifications: %w", err)
	}
	return nil
}

// JobRecord is the persisted result of one finished job.
type JobRecord struct {
	JobID     string    `json:"job_id"`
	Library   string    `json:"library"`
	Status    string    `json:"status"`
	Completed int       `json:"completed"`
	Failed    int       `json:"failed"`
	Skipped   int       `json:"skipped"`
	Total     int       `json:"total"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	EndedAt   time.Time `json:"ended_at"`
}

// RecordJobResult persists a finished job, replacing any earlier record for
// the same id.
func (s *Store) RecordJobResult(ctx context.Context, record JobRecord) error {
	_, err := s.execWithRetry(ctx,
		`INSERT OR REPLACE INTO job_history
		 (job_id, library, status, completed, failed, skipped, total, error, created_at, ended_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.JobID, record.Library, record.Status,
		record.Completed, record.Failed, record.Skipped, record.Total,
		record.Error, formatTime(record.CreatedAt), formatTime(record.EndedAt))
	if err != nil {
		return fmt.Errorf("record job result: %w", err)
	}
	return nil
}

// RecentJobResults returns up to limit finished jobs, newest first.
func (s *Store) RecentJobResults(ctx context.Context, limit int) ([]JobRecord, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT job_id, library, status, completed, failed, skipped, total, error, created_at, ended_at
		 FROM job_history ORDER BY ended_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list job results: %w", err)
	}
	defer rows.Close()

	var records []JobRecord
	for rows.Next() {
		var (
			record             JobRecord
			createdAt, endedAt string
		)
		if err := rows.Scan(&record.JobID, &record.Library, &record.Status,
			&record.Completed, &record.Failed, &record.Skipped, &record.Total,
			&record.Error, &createdAt, &endedAt); err != nil {
			return nil, fmt.Errorf("scan job result: %w", err)
		}
		record.CreatedAt = parseTime(createdAt)
		record.EndedAt = parseTime(endedAt)
		records = append(records, record)
	}
	return records, rows.Err()
}
