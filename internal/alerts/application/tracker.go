package application

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	alerts "solarwatch/internal/alerts/domain"
	"solarwatch/internal/observability/metrics"
)

// AlertNotifier publishes alert lifecycle events. Implementations must not
// block; delivery is fire-and-forget and decoupled from tracker correctness.
type AlertNotifier interface {
	Notify(ctx context.Context, event AlertEvent)
}

// AlertEvent represents a lifecycle transition.
type AlertEvent struct {
	Type  string              `json:"type"`
	Alert alerts.VoltageAlert `json:"alert"`
}

const (
	EventOpened = "opened"
	EventClosed = "closed"
)

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// Tracker is the voltage-alert lifecycle state machine. It consumes
// classified samples sequentially and maintains at most one open alert:
// Idle + LOW opens, Active + LOW extends, Active + NORMAL closes. All
// transitions are serialized behind one mutex; persistence failures keep the
// in-memory state and are retried on the next sample tick.
type Tracker struct {
	store    Repository
	notifier AlertNotifier
	clock    Clock
	logger   *log.Logger
	newID    func() string

	mu          sync.Mutex
	active      *alerts.VoltageAlert
	samples     []float64
	needsCreate bool
	minDirty    bool
}

// TrackerOption customizes the tracker.
type TrackerOption func(*Tracker)

// WithNotifier assigns a notifier.
func WithNotifier(notifier AlertNotifier) TrackerOption {
	return func(t *Tracker) {
		t.notifier = notifier
	}
}

// WithClock assigns a clock.
func WithClock(clock Clock) TrackerOption {
	return func(t *Tracker) {
		if clock != nil {
			t.clock = clock
		}
	}
}

// WithLogger assigns a logger.
func WithLogger(logger *log.Logger) TrackerOption {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithIDFactory overrides alert id generation.
func WithIDFactory(factory func() string) TrackerOption {
	return func(t *Tracker) {
		if factory != nil {
			t.newID = factory
		}
	}
}

// NewTracker constructs a tracker.
func NewTracker(store Repository, opts ...TrackerOption) (*Tracker, error) {
	if store == nil {
		return nil, errors.New("tracker: nil store")
	}
	tracker := &Tracker{
		store:  store,
		clock:  systemClock{},
		logger: log.Default(),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(tracker)
	}
	return tracker, nil
}

// Init adopts an existing active alert from the store, so a restarted tracker
// continues the episode instead of creating a duplicate.
func (t *Tracker) Init(ctx context.Context) error {
	if t == nil {
		return errors.New("tracker: nil tracker")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	existing, err := t.store.FindActive(ctx)
	if err != nil {
		return err
	}
	if existing != nil {
		t.active = existing
		t.samples = nil
		t.logger.Printf("tracker: adopted active alert %s (min %.2fV)", existing.ID, existing.MinVoltage)
	}
	return nil
}

// Active returns a copy of the tracked active alert, nil when idle.
func (t *Tracker) Active() *alerts.VoltageAlert {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active == nil {
		return nil
	}
	copied := *t.active
	return &copied
}

// Process applies one voltage sample. Samples must be valid; ingress
// validation happens at the reading source boundary.
func (t *Tracker) Process(ctx context.Context, at time.Time, voltage float64) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.flushPending(ctx)

	switch alerts.Classify(voltage) {
	case alerts.LevelLow:
		if t.active == nil {
			t.open(ctx, at, voltage)
		} else {
			t.track(ctx, voltage)
		}
	case alerts.LevelNormal:
		if t.active != nil {
			t.closeActive(ctx, at)
		}
	}
}

// HandleChange reconciles the tracker against a committed store change. The
// store is authoritative: the cached active alert is replaced wholesale by a
// fresh read, never merged field by field.
func (t *Tracker) HandleChange(change AlertChange) {
	if t == nil {
		return
	}
	_ = change
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	t.mu.Lock()
	defer t.mu.Unlock()

	fresh, err := t.store.FindActive(ctx)
	if err != nil {
		t.logger.Printf("tracker: reconcile read failed: %v", err)
		return
	}
	switch {
	case t.active != nil && fresh != nil && fresh.ID == t.active.ID:
		t.active = fresh
		t.minDirty = false
	case t.active != nil && fresh == nil:
		// Closed by another writer. A locally pending create never reached
		// the store, so that episode is still ours to persist.
		if !t.needsCreate {
			t.active = nil
			t.samples = nil
			t.minDirty = false
		}
	case t.active == nil && fresh != nil:
		t.active = fresh
		t.samples = nil
	}
}

func (t *Tracker) open(ctx context.Context, at time.Time, voltage float64) {
	// Adoption guard on every open, not just startup: never create a second
	// active alert when the store already holds one.
	existing, err := t.store.FindActive(ctx)
	if err != nil {
		t.logger.Printf("tracker: active-alert check failed, deferring open: %v", err)
		metrics.IncStoreFailure("find_active")
		return
	}
	if existing != nil {
		t.active = existing
		t.samples = []float64{voltage}
		if voltage < existing.MinVoltage {
			t.applyMin(ctx, voltage)
		}
		return
	}

	now := t.clock.Now().UTC()
	alert := &alerts.VoltageAlert{
		ID:         t.newID(),
		StartedAt:  at.UTC(),
		MinVoltage: voltage,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	t.active = alert
	t.samples = []float64{voltage}
	if err := t.store.Create(ctx, alert); err != nil {
		t.needsCreate = true
		t.logger.Printf("tracker: create alert %s failed, will retry: %v", alert.ID, err)
		metrics.IncStoreFailure("create")
	}
	t.notify(ctx, EventOpened, *alert)
}

func (t *Tracker) track(ctx context.Context, voltage float64) {
	t.samples = append(t.samples, voltage)
	if voltage < t.active.MinVoltage {
		t.applyMin(ctx, voltage)
	}
}

func (t *Tracker) applyMin(ctx context.Context, voltage float64) {
	t.active.MinVoltage = voltage
	t.active.UpdatedAt = t.clock.Now().UTC()
	if t.needsCreate {
		// The retried create carries the lowered minimum.
		return
	}
	if err := t.store.UpdateMinVoltage(ctx, t.active.ID, voltage, t.active.UpdatedAt); err != nil {
		t.minDirty = true
		t.logger.Printf("tracker: update min voltage for %s failed, will retry: %v", t.active.ID, err)
		metrics.IncStoreFailure("update_min")
	}
}

func (t *Tracker) closeActive(ctx context.Context, at time.Time) {
	endedAt := at.UTC()
	duration := alerts.DurationSecondsBetween(t.active.StartedAt, endedAt)
	avg := t.active.MinVoltage
	if len(t.samples) > 0 {
		avg = alerts.Round2(alerts.Mean(t.samples))
	}

	if t.needsCreate {
		if err := t.store.Create(ctx, t.active); err != nil {
			t.logger.Printf("tracker: create alert %s still failing, close deferred: %v", t.active.ID, err)
			metrics.IncStoreFailure("create")
			return
		}
		t.needsCreate = false
	}
	if err := t.store.Close(ctx, t.active.ID, endedAt, duration, avg); err != nil {
		// Stay Active and retry on a later tick; a LOW sample in between
		// simply continues the episode.
		t.logger.Printf("tracker: close alert %s failed, will retry: %v", t.active.ID, err)
		metrics.IncStoreFailure("close")
		return
	}

	closed := *t.active
	closed.EndedAt = endedAt
	closed.DurationSeconds = duration
	closed.AvgVoltage = avg
	closed.IsActive = false
	closed.UpdatedAt = endedAt
	t.active = nil
	t.samples = nil
	t.minDirty = false
	t.notify(ctx, EventClosed, closed)
}

func (t *Tracker) flushPending(ctx context.Context) {
	if t.active == nil {
		return
	}
	if t.needsCreate {
		if err := t.store.Create(ctx, t.active); err != nil {
			t.logger.Printf("tracker: retry create alert %s failed: %v", t.active.ID, err)
			metrics.IncStoreFailure("create")
		} else {
			t.needsCreate = false
			t.minDirty = false
		}
	}
	if t.minDirty && !t.needsCreate {
		if err := t.store.UpdateMinVoltage(ctx, t.active.ID, t.active.MinVoltage, t.active.UpdatedAt); err != nil {
			t.logger.Printf("tracker: retry min voltage for %s failed: %v", t.active.ID, err)
			metrics.IncStoreFailure("update_min")
		} else {
			t.minDirty = false
		}
	}
}

func (t *Tracker) notify(ctx context.Context, eventType string, alert alerts.VoltageAlert) {
	metrics.IncAlertEvent(eventType)
	if t.notifier == nil {
		return
	}
	t.notifier.Notify(ctx, AlertEvent{Type: eventType, Alert: alert})
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
