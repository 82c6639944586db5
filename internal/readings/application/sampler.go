package application

import (
	"context"
	"errors"
	"log"
	"time"

	alerts "solarwatch/internal/alerts/domain"
	"solarwatch/internal/observability/metrics"
	readings "solarwatch/internal/readings/domain"
)

// Source produces one reading per tick.
type Source interface {
	Next(ctx context.Context, now time.Time) (readings.Reading, error)
}

// SampleSink consumes validated voltage samples sequentially.
type SampleSink interface {
	Process(ctx context.Context, at time.Time, voltage float64)
}

// Sampler drives the single sample stream: tick, read, validate, buffer,
// feed the tracker. There is exactly one sampler per process, which is what
// keeps the tracker single-writer.
type Sampler struct {
	source   Source
	sink     SampleSink
	window   *Window
	interval time.Duration
	logger   *log.Logger
}

// NewSampler constructs a sampler.
func NewSampler(source Source, sink SampleSink, window *Window, interval time.Duration, logger *log.Logger) (*Sampler, error) {
	if source == nil {
		return nil, errors.New("sampler: nil source")
	}
	if sink == nil {
		return nil, errors.New("sampler: nil sink")
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Sampler{
		source:   source,
		sink:     sink,
		window:   window,
		interval: interval,
		logger:   logger,
	}, nil
}

// Run ticks until the context is cancelled. No flush on teardown: an alert
// mid-flight stays active in storage and is adopted on the next startup.
func (s *Sampler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case tick := <-ticker.C:
			s.Tick(ctx, tick.UTC())
		}
	}
}

// Tick processes one sample cycle.
func (s *Sampler) Tick(ctx context.Context, now time.Time) {
	reading, err := s.source.Next(ctx, now)
	if err != nil {
		s.logger.Printf("sampler: source read failed: %v", err)
		return
	}
	if err := reading.Validate(); err != nil {
		metrics.IncInvalidSample(readings.RejectReason(err))
		s.logger.Printf("sampler: rejected reading: %v", err)
		return
	}
	if s.window != nil {
		s.window.Add(reading)
	}
	metrics.ObserveSample(string(alerts.Classify(reading.Voltage)), reading.Voltage, reading.Watts)
	s.sink.Process(ctx, reading.Timestamp, reading.Voltage)
}
