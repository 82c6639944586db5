package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	readings "solarwatch/internal/readings/domain"
)

type scriptedSource struct {
	mu       sync.Mutex
	readings []readings.Reading
	errs     []error
	pos      int
}

func (s *scriptedSource) Next(_ context.Context, _ time.Time) (readings.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos >= len(s.readings) {
		return readings.Reading{}, errors.New("script exhausted")
	}
	r, err := s.readings[s.pos], s.errs[s.pos]
	s.pos++
	return r, err
}

type recordingSink struct {
	mu      sync.Mutex
	samples []float64
}

func (s *recordingSink) Process(_ context.Context, _ time.Time, voltage float64) {
	s.mu.Lock()
	s.samples = append(s.samples, voltage)
	s.mu.Unlock()
}

func (s *recordingSink) Samples() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]float64, len(s.samples))
	copy(out, s.samples)
	return out
}

func reading(ts time.Time, voltage float64) readings.Reading {
	return readings.Reading{Timestamp: ts, Voltage: voltage, Current: 5, Watts: voltage * 5}
}

func TestSamplerFeedsSinkAndWindow(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	source := &scriptedSource{
		readings: []readings.Reading{reading(base, 55), reading(base.Add(time.Second), 48)},
		errs:     []error{nil, nil},
	}
	sink := &recordingSink{}
	window := NewWindow(10)
	sampler, err := NewSampler(source, sink, window, time.Second, nil)
	if err != nil {
		t.Fatalf("new sampler: %v", err)
	}

	sampler.Tick(context.Background(), base)
	sampler.Tick(context.Background(), base.Add(time.Second))

	if got := sink.Samples(); len(got) != 2 || got[0] != 55 || got[1] != 48 {
		t.Fatalf("sink samples = %v", got)
	}
	snapshot := window.Snapshot()
	if len(snapshot) != 2 {
		t.Fatalf("window has %d readings, want 2", len(snapshot))
	}
	latest, ok := window.Latest()
	if !ok || latest.Voltage != 48 {
		t.Errorf("latest = %+v", latest)
	}
}

func TestSamplerSkipsSourceErrors(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	source := &scriptedSource{
		readings: []readings.Reading{{}, reading(base, 60)},
		errs:     []error{errors.New("vendor down"), nil},
	}
	sink := &recordingSink{}
	sampler, err := NewSampler(source, sink, nil, time.Second, nil)
	if err != nil {
		t.Fatalf("new sampler: %v", err)
	}

	sampler.Tick(context.Background(), base)
	sampler.Tick(context.Background(), base.Add(time.Second))

	if got := sink.Samples(); len(got) != 1 || got[0] != 60 {
		t.Fatalf("sink samples = %v, want only the good reading", got)
	}
}

func TestSamplerRejectsInvalidReadings(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	bad := reading(base, -5)
	source := &scriptedSource{
		readings: []readings.Reading{bad},
		errs:     []error{nil},
	}
	sink := &recordingSink{}
	sampler, err := NewSampler(source, sink, nil, time.Second, nil)
	if err != nil {
		t.Fatalf("new sampler: %v", err)
	}

	sampler.Tick(context.Background(), base)

	if got := sink.Samples(); len(got) != 0 {
		t.Fatalf("invalid reading must not reach the sink, got %v", got)
	}
}

func TestSamplerRunStopsOnCancel(t *testing.T) {
	source := &scriptedSource{}
	sink := &recordingSink{}
	sampler, err := NewSampler(source, sink, nil, time.Millisecond, nil)
	if err != nil {
		t.Fatalf("new sampler: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sampler.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on context cancel")
	}
}

func TestWindowEvictsOldest(t *testing.T) {
	window := NewWindow(3)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		window.Add(reading(base.Add(time.Duration(i)*time.Second), float64(50+i)))
	}

	snapshot := window.Snapshot()
	if len(snapshot) != 3 {
		t.Fatalf("window size = %d, want 3", len(snapshot))
	}
	if snapshot[0].Voltage != 52 || snapshot[2].Voltage != 54 {
		t.Errorf("unexpected window contents: %v", snapshot)
	}
}

func TestWindowEmpty(t *testing.T) {
	window := NewWindow(0)
	if _, ok := window.Latest(); ok {
		t.Error("empty window must report no latest reading")
	}
	if got := window.Snapshot(); len(got) != 0 {
		t.Errorf("empty snapshot = %v", got)
	}
}
