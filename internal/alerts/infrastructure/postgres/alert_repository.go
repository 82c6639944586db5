package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	alerts "solarwatch/internal/alerts/domain"
)

// AlertRepository is a Postgres repository for voltage alerts.
type AlertRepository struct {
	db *sql.DB
}

// NewAlertRepository constructs a repository.
func NewAlertRepository(db *sql.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// Create inserts a new alert. The upsert keeps retried creates of the same id
// idempotent, which the tracker relies on after a failed write.
func (r *AlertRepository) Create(ctx context.Context, alert *alerts.VoltageAlert) error {
	if r == nil || r.db == nil {
		return errors.New("alert repo: nil db")
	}
	if alert == nil {
		return errors.New("alert repo: nil alert")
	}
	if alert.ID == "" {
		return errors.New("alert repo: missing id")
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}
	if alert.UpdatedAt.IsZero() {
		alert.UpdatedAt = alert.CreatedAt
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO voltage_alerts (
	id, started_at, ended_at, duration_seconds, min_voltage, avg_voltage,
	is_active, created_at, updated_at
) VALUES (
	$1, $2, $3, $4, $5, $6,
	$7, $8, $9
)
ON CONFLICT (id) DO UPDATE
SET min_voltage = EXCLUDED.min_voltage, updated_at = EXCLUDED.updated_at`,
		alert.ID,
		alert.StartedAt,
		nullableTime(alert.EndedAt),
		nullableInt(alert.DurationSeconds, alert.Closed()),
		alert.MinVoltage,
		nullableFloat(alert.AvgVoltage, alert.Closed()),
		alert.IsActive,
		alert.CreatedAt,
		alert.UpdatedAt,
	)
	return err
}

// GetByID fetches an alert by id.
func (r *AlertRepository) GetByID(ctx context.Context, id string) (*alerts.VoltageAlert, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alert repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT id, started_at, ended_at, duration_seconds, min_voltage, avg_voltage,
	is_active, created_at, updated_at
FROM voltage_alerts
WHERE id = $1`, id)
	return scanAlert(row)
}

// FindActive returns the newest active alert, or nil when none is open.
func (r *AlertRepository) FindActive(ctx context.Context) (*alerts.VoltageAlert, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alert repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT id, started_at, ended_at, duration_seconds, min_voltage, avg_voltage,
	is_active, created_at, updated_at
FROM voltage_alerts
WHERE is_active = TRUE
ORDER BY started_at DESC
LIMIT 1`)
	alert, err := scanAlert(row)
	if errors.Is(err, alerts.ErrNotFound) {
		return nil, nil
	}
	return alert, err
}

// UpdateMinVoltage lowers the recorded minimum for an open alert.
func (r *AlertRepository) UpdateMinVoltage(ctx context.Context, id string, minVoltage float64, updatedAt time.Time) error {
	if r == nil || r.db == nil {
		return errors.New("alert repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, `
UPDATE voltage_alerts
SET min_voltage = $1, updated_at = $2
WHERE id = $3 AND is_active = TRUE`, minVoltage, updatedAt, id)
	return err
}

// Close finalizes an alert with its end-of-life aggregates.
func (r *AlertRepository) Close(ctx context.Context, id string, endedAt time.Time, durationSeconds int64, avgVoltage float64) error {
	if r == nil || r.db == nil {
		return errors.New("alert repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, `
UPDATE voltage_alerts
SET ended_at = $1, duration_seconds = $2, avg_voltage = $3, is_active = FALSE, updated_at = $1
WHERE id = $4`, endedAt, durationSeconds, avgVoltage, id)
	return err
}

// List returns alerts ordered by started_at descending.
func (r *AlertRepository) List(ctx context.Context, limit int) ([]alerts.VoltageAlert, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alert repo: nil db")
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, started_at, ended_at, duration_seconds, min_voltage, avg_voltage,
	is_active, created_at, updated_at
FROM voltage_alerts
ORDER BY started_at DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []alerts.VoltageAlert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *alert)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type alertScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row alertScanner) (*alerts.VoltageAlert, error) {
	var alert alerts.VoltageAlert
	var endedAt sql.NullTime
	var duration sql.NullInt64
	var avgVoltage sql.NullFloat64
	if err := row.Scan(
		&alert.ID,
		&alert.StartedAt,
		&endedAt,
		&duration,
		&alert.MinVoltage,
		&avgVoltage,
		&alert.IsActive,
		&alert.CreatedAt,
		&alert.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, alerts.ErrNotFound
		}
		return nil, err
	}
	if endedAt.Valid {
		alert.EndedAt = endedAt.Time
	}
	if duration.Valid {
		alert.DurationSeconds = duration.Int64
	}
	if avgVoltage.Valid {
		alert.AvgVoltage = avgVoltage.Float64
	}
	return &alert, nil
}

func nullableTime(value time.Time) sql.NullTime {
	if value.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: value, Valid: true}
}

func nullableInt(value int64, valid bool) sql.NullInt64 {
	if !valid {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: value, Valid: true}
}

func nullableFloat(value float64, valid bool) sql.NullFloat64 {
	if !valid {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: value, Valid: true}
}
