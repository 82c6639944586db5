package application

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	alerts "solarwatch/internal/alerts/domain"
)

// Repository is the durable alert store contract. Updates are atomic per
// alert id; re-running a write with the same id is an idempotent update.
type Repository interface {
	Create(ctx context.Context, alert *alerts.VoltageAlert) error
	GetByID(ctx context.Context, id string) (*alerts.VoltageAlert, error)
	FindActive(ctx context.Context) (*alerts.VoltageAlert, error)
	UpdateMinVoltage(ctx context.Context, id string, minVoltage float64, updatedAt time.Time) error
	Close(ctx context.Context, id string, endedAt time.Time, durationSeconds int64, avgVoltage float64) error
	List(ctx context.Context, limit int) ([]alerts.VoltageAlert, error)
}

// ChangeType identifies what happened to an alert row.
type ChangeType string

const (
	ChangeCreated ChangeType = "created"
	ChangeUpdated ChangeType = "updated"
	ChangeClosed  ChangeType = "closed"
)

// AlertChange is a committed row change pushed to subscribers. Consumers are
// expected to refetch rather than merge fields.
type AlertChange struct {
	Type  ChangeType          `json:"type"`
	Alert alerts.VoltageAlert `json:"alert"`
}

// ChangeHandler consumes a committed change.
type ChangeHandler func(change AlertChange)

// Subscription is an explicit handle for a registered change handler.
type Subscription struct {
	once   sync.Once
	cancel func()
}

// Unsubscribe stops delivery and releases the subscription.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(s.cancel)
}

// WatchedStore decorates a Repository with live change fan-out. Changes are
// delivered to each subscriber from a dedicated goroutine in commit order per
// alert id; a slow subscriber misses intermediate events and refetches.
type WatchedStore struct {
	repo   Repository
	logger *log.Logger

	mu   sync.Mutex
	subs map[int]chan AlertChange
	next int
}

// NewWatchedStore constructs a watched store.
func NewWatchedStore(repo Repository, logger *log.Logger) (*WatchedStore, error) {
	if repo == nil {
		return nil, errors.New("alert store: nil repository")
	}
	return &WatchedStore{
		repo:   repo,
		logger: logger,
		subs:   make(map[int]chan AlertChange),
	}, nil
}

// Subscribe registers a handler for committed changes.
func (s *WatchedStore) Subscribe(handler ChangeHandler) *Subscription {
	if s == nil || handler == nil {
		return &Subscription{cancel: func() {}}
	}
	ch := make(chan AlertChange, 64)
	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		for change := range ch {
			handler(change)
		}
	}()

	return &Subscription{cancel: func() {
		s.mu.Lock()
		if existing, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(existing)
		}
		s.mu.Unlock()
	}}
}

// Create persists a new alert and fans out the committed row.
func (s *WatchedStore) Create(ctx context.Context, alert *alerts.VoltageAlert) error {
	if s == nil || s.repo == nil {
		return errors.New("alert store: nil repository")
	}
	if err := s.repo.Create(ctx, alert); err != nil {
		return err
	}
	s.broadcast(AlertChange{Type: ChangeCreated, Alert: *alert})
	return nil
}

// UpdateMinVoltage persists a lowered minimum and fans out the fresh row.
func (s *WatchedStore) UpdateMinVoltage(ctx context.Context, id string, minVoltage float64, updatedAt time.Time) error {
	if s == nil || s.repo == nil {
		return errors.New("alert store: nil repository")
	}
	if err := s.repo.UpdateMinVoltage(ctx, id, minVoltage, updatedAt); err != nil {
		return err
	}
	s.broadcastRow(ctx, ChangeUpdated, id)
	return nil
}

// Close finalizes an alert and fans out the closed row.
func (s *WatchedStore) Close(ctx context.Context, id string, endedAt time.Time, durationSeconds int64, avgVoltage float64) error {
	if s == nil || s.repo == nil {
		return errors.New("alert store: nil repository")
	}
	if err := s.repo.Close(ctx, id, endedAt, durationSeconds, avgVoltage); err != nil {
		return err
	}
	s.broadcastRow(ctx, ChangeClosed, id)
	return nil
}

// GetByID fetches an alert by id.
func (s *WatchedStore) GetByID(ctx context.Context, id string) (*alerts.VoltageAlert, error) {
	if s == nil || s.repo == nil {
		return nil, errors.New("alert store: nil repository")
	}
	return s.repo.GetByID(ctx, id)
}

// FindActive returns the current active alert, nil when none.
func (s *WatchedStore) FindActive(ctx context.Context) (*alerts.VoltageAlert, error) {
	if s == nil || s.repo == nil {
		return nil, errors.New("alert store: nil repository")
	}
	return s.repo.FindActive(ctx)
}

// List returns alert history, newest first.
func (s *WatchedStore) List(ctx context.Context, limit int) ([]alerts.VoltageAlert, error) {
	if s == nil || s.repo == nil {
		return nil, errors.New("alert store: nil repository")
	}
	return s.repo.List(ctx, limit)
}

func (s *WatchedStore) broadcastRow(ctx context.Context, changeType ChangeType, id string) {
	alert, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if s.logger != nil {
			s.logger.Printf("alert store: refetch after %s failed: %v", changeType, err)
		}
		return
	}
	s.broadcast(AlertChange{Type: changeType, Alert: *alert})
}

func (s *WatchedStore) broadcast(change AlertChange) {
	s.mu.Lock()
	channels := make([]chan AlertChange, 0, len(s.subs))
	for _, ch := range s.subs {
		channels = append(channels, ch)
	}
	s.mu.Unlock()
	for _, ch := range channels {
		select {
		case ch <- change:
		default:
		}
	}
}
