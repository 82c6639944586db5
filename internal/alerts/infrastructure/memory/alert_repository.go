package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	alerts "solarwatch/internal/alerts/domain"
)

// AlertRepository is an in-memory repository for demo/testing.
type AlertRepository struct {
	mu   sync.RWMutex
	data map[string]alerts.VoltageAlert
}

// NewAlertRepository constructs a repository.
func NewAlertRepository() *AlertRepository {
	return &AlertRepository{data: make(map[string]alerts.VoltageAlert)}
}

// Create inserts an alert. Re-creating the same id overwrites the stored row,
// which makes retried creates idempotent.
func (r *AlertRepository) Create(ctx context.Context, alert *alerts.VoltageAlert) error {
	_ = ctx
	if r == nil {
		return errors.New("alert repo: nil repository")
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
	r.mu.Lock()
	r.data[alert.ID] = *alert
	r.mu.Unlock()
	return nil
}

// GetByID fetches an alert by id.
func (r *AlertRepository) GetByID(ctx context.Context, id string) (*alerts.VoltageAlert, error) {
	_ = ctx
	if r == nil {
		return nil, errors.New("alert repo: nil repository")
	}
	r.mu.RLock()
	alert, ok := r.data[id]
	r.mu.RUnlock()
	if !ok {
		return nil, alerts.ErrNotFound
	}
	return &alert, nil
}

// FindActive returns the single active alert, or nil when none is open.
func (r *AlertRepository) FindActive(ctx context.Context) (*alerts.VoltageAlert, error) {
	_ = ctx
	if r == nil {
		return nil, errors.New("alert repo: nil repository")
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var found *alerts.VoltageAlert
	for _, alert := range r.data {
		if !alert.IsActive {
			continue
		}
		if found == nil || alert.StartedAt.After(found.StartedAt) {
			copied := alert
			found = &copied
		}
	}
	return found, nil
}

// UpdateMinVoltage lowers the recorded minimum for an open alert.
func (r *AlertRepository) UpdateMinVoltage(ctx context.Context, id string, minVoltage float64, updatedAt time.Time) error {
	_ = ctx
	if r == nil {
		return errors.New("alert repo: nil repository")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	alert, ok := r.data[id]
	if !ok {
		return alerts.ErrNotFound
	}
	if alert.Closed() {
		return alerts.ErrAlertClosed
	}
	alert.MinVoltage = minVoltage
	alert.UpdatedAt = updatedAt
	r.data[id] = alert
	return nil
}

// Close finalizes an alert with its end-of-life aggregates.
func (r *AlertRepository) Close(ctx context.Context, id string, endedAt time.Time, durationSeconds int64, avgVoltage float64) error {
	_ = ctx
	if r == nil {
		return errors.New("alert repo: nil repository")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	alert, ok := r.data[id]
	if !ok {
		return alerts.ErrNotFound
	}
	alert.EndedAt = endedAt
	alert.DurationSeconds = durationSeconds
	alert.AvgVoltage = avgVoltage
	alert.IsActive = false
	alert.UpdatedAt = endedAt
	r.data[id] = alert
	return nil
}

// List returns alerts ordered by started_at descending, newest first.
func (r *AlertRepository) List(ctx context.Context, limit int) ([]alerts.VoltageAlert, error) {
	_ = ctx
	if r == nil {
		return nil, errors.New("alert repo: nil repository")
	}
	r.mu.RLock()
	result := make([]alerts.VoltageAlert, 0, len(r.data))
	for _, alert := range r.data {
		result = append(result, alert)
	}
	r.mu.RUnlock()
	sort.Slice(result, func(i, j int) bool {
		return result[i].StartedAt.After(result[j].StartedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
