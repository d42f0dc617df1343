package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"previewd/internal/services"
)

// Schedule is a persisted recurring-job definition. Exactly one of CronExpr
// and IntervalMinutes is set.
type Schedule struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	CronExpr        string    `json:"cron_expr,omitempty"`
	IntervalMinutes int       `json:"interval_minutes,omitempty"`
	Libraries       []string  `json:"libraries"`
	AllLibraries    bool      `json:"all_libraries"`
	Regenerate      bool      `json:"regenerate"`
	Enabled         bool      `json:"enabled"`
	LastRunAt       time.Time `json:"last_run_at,omitzero"`
	CreatedAt       time.Time `json:"created_at"`
}

// Validate checks a schedule definition before persisting it.
func (sched *Schedule) Validate() error {
	if strings.TrimSpace(sched.Name) == "" {
		return services.Wrap(services.ErrValidation, "store", "schedule", "name is required", nil)
	}
	hasCron := strings.TrimSpace(sched.CronExpr) != ""
	hasInterval := sched.IntervalMinutes > 0
	if hasCron == hasInterval {
		return services.Wrap(services.ErrValidation, "store", "schedule",
			"exactly one of cron expression and interval must be set", nil)
	}
	if !sched.AllLibraries && len(sched.Libraries) == 0 {
		return services.Wrap(services.ErrValidation, "store", "schedule", "no libraries selected", nil)
	}
	return nil
}

const allLibrariesMarker = "*"

func encodeLibraries(sched *Schedule) string {
	if sched.AllLibraries {
		return allLibrariesMarker
	}
	return strings.Join(sched.Libraries, ",")
}

func decodeLibraries(sched *Schedule, encoded string) {
	if encoded == allLibrariesMarker {
		sched.AllLibraries = true
		return
	}
	if encoded != "" {
		sched.Libraries = strings.Split(encoded, ",")
	}
}

// AddSchedule persists a new schedule and fills in its assigned id.
func (s *Store) AddSchedule(ctx context.Context, sched *Schedule) error {
	if err := sched.Validate(); err != nil {
		return err
	}
	sched.CreatedAt = time.Now()
	res, err := s.execWithRetry(ctx,
		`INSERT INTO schedules (name, cron_expr, interval_minutes, libraries, regenerate, enabled, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sched.Name, sched.CronExpr, sched.IntervalMinutes, encodeLibraries(sched),
		boolToInt(sched.Regenerate), boolToInt(sched.Enabled), formatTime(sched.CreatedAt))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return services.Wrap(services.ErrConflict, "store", "add schedule",
				fmt.Sprintf("schedule %q already exists", sched.Name), nil)
		}
		return fmt.Errorf("insert schedule: %w", err)
	}
	sched.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("schedule id: %w", err)
	}
	return nil
}

// ListSchedules returns every schedule ordered by creation.
func (s *Store) ListSchedules(ctx context.Context) ([]Schedule, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, cron_expr, interval_minutes, libraries, regenerate, enabled, last_run_at, created_at
		 FROM schedules ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	var schedules []Schedule
	for rows.Next() {
		var (
			sched                Schedule
			libraries            string
			regenerate, enabled  int
			lastRunAt, createdAt string
		)
		if err := rows.Scan(&sched.ID, &sched.Name, &sched.CronExpr, &sched.IntervalMinutes,
			&libraries, &regenerate, &enabled, &lastRunAt, &createdAt); err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		decodeLibraries(&sched, libraries)
		sched.Regenerate = regenerate != 0
		sched.Enabled = enabled != 0
		sched.LastRunAt = parseTime(lastRunAt)
		sched.CreatedAt = parseTime(createdAt)
		schedules = append(schedules, sched)
	}
	return schedules, rows.Err()
}

// GetSchedule looks a schedule up by name.
func (s *Store) GetSchedule(ctx context.Context, name string) (*Schedule, error) {
	schedules, err := s.ListSchedules(ctx)
	if err != nil {
		return nil, err
	}
	for i := range schedules {
		if schedules[i].Name == name {
			return &schedules[i], nil
		}
	}
	return nil, services.Wrap(services.ErrNotFound, "store", "get schedule",
		fmt.Sprintf("no schedule %q", name), nil)
}

// DeleteSchedule removes a schedule by name.
func (s *Store) DeleteSchedule(ctx context.Context, name string) error {
	res, err := s.execWithRetry(ctx, "DELETE FROM schedules WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	if affected == 0 {
		return services.Wrap(services.ErrNotFound, "store", "delete schedule",
			fmt.Sprintf("no schedule %q", name), nil)
	}
	return nil
}

// MarkScheduleRun records the moment a schedule last fired.
func (s *Store) MarkScheduleRun(ctx context.Context, id int64, at time.Time) error {
	_, err := s.execWithRetry(ctx, "UPDATE schedules SET last_run_at = ? WHERE id = ?", formatTime(at), id)
	if err != nil {
		return fmt.Errorf("mark schedule run: %w", err)
	}
	return nil
}

// SetScheduleEnabled toggles a schedule without removing it.
func (s *Store) SetScheduleEnabled(ctx context.Context, name string, enabled bool) error {
	res, err := s.execWithRetry(ctx, "UPDATE schedules SET enabled = ? WHERE name = ?", boolToInt(enabled), name)
	if err != nil {
		return fmt.Errorf("toggle schedule: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("toggle schedule: %w", err)
	}
	if affected == 0 {
		return services.Wrap(services.ErrNotFound, "store", "toggle schedule",
			fmt.Sprintf("no schedule %q", name), nil)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
