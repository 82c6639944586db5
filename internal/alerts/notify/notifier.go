package notify

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	alertapp "solarwatch/internal/alerts/application"
	alerts "solarwatch/internal/alerts/domain"
)

// Notification is the user-visible alert-opened payload.
type Notification struct {
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Voltage   float64   `json:"voltage"`
	Timestamp time.Time `json:"timestamp"`
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// Notifier delivers an alert-opened notification through a channel, at most
// once per open transition. Delivery is best-effort: failures are logged and
// never propagate to the tracker.
type Notifier struct {
	channel        Channel
	template       *Template
	title          string
	clock          Clock
	logger         *log.Logger
	requestTimeout time.Duration

	mu   sync.Mutex
	sent map[string]time.Time
}

// Option configures the notifier.
type Option func(*Notifier)

// WithTitle overrides the notification title.
func WithTitle(title string) Option {
	return func(n *Notifier) {
		if title != "" {
			n.title = title
		}
	}
}

// WithClock overrides the default clock.
func WithClock(clock Clock) Option {
	return func(n *Notifier) {
		if clock != nil {
			n.clock = clock
		}
	}
}

// WithLogger assigns a logger.
func WithLogger(logger *log.Logger) Option {
	return func(n *Notifier) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// WithRequestTimeout overrides the delivery timeout.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(n *Notifier) {
		if timeout > 0 {
			n.requestTimeout = timeout
		}
	}
}

// NewNotifier constructs an alert notifier.
func NewNotifier(channel Channel, template *Template, opts ...Option) (*Notifier, error) {
	if channel == nil {
		return nil, errors.New("alert notifier: nil channel")
	}
	if template == nil {
		defaultTemplate, err := NewTemplate("")
		if err != nil {
			return nil, err
		}
		template = defaultTemplate
	}
	n := &Notifier{
		channel:        channel,
		template:       template,
		title:          "Low Voltage Alert",
		clock:          systemClock{},
		logger:         log.Default(),
		requestTimeout: 5 * time.Second,
		sent:           make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Notify implements application.AlertNotifier. Only the opened transition
// produces a notification; a closed event releases the dedupe record.
func (n *Notifier) Notify(_ context.Context, event alertapp.AlertEvent) {
	if n == nil || n.channel == nil {
		return
	}
	switch event.Type {
	case alertapp.EventOpened:
		if !n.markOpened(event.Alert.ID) {
			return
		}
		notification, err := n.build(event.Alert)
		if err != nil {
			n.logger.Printf("alert notifier: render failed: %v", err)
			return
		}
		go n.send(notification)
	case alertapp.EventClosed:
		n.mu.Lock()
		delete(n.sent, event.Alert.ID)
		n.mu.Unlock()
	}
}

func (n *Notifier) markOpened(alertID string) bool {
	if alertID == "" {
		return false
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.sent[alertID]; ok {
		return false
	}
	n.sent[alertID] = n.clock.Now().UTC()
	return true
}

func (n *Notifier) build(alert alerts.VoltageAlert) (Notification, error) {
	body, err := n.template.Render(TemplateData{
		Voltage:   alert.MinVoltage,
		Threshold: alerts.LowVoltageThreshold,
		StartTime: alert.StartedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return Notification{}, err
	}
	return Notification{
		Title:     n.title,
		Body:      body,
		Voltage:   alert.MinVoltage,
		Timestamp: alert.StartedAt.UTC(),
	}, nil
}

// send runs detached so a slow channel never blocks sample processing.
func (n *Notifier) send(notification Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), n.requestTimeout)
	defer cancel()
	if err := n.channel.Send(ctx, notification); err != nil {
		n.logger.Printf("alert notifier: delivery failed: %v", err)
	}
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
