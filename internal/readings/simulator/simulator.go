package simulator

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	readings "solarwatch/internal/readings/domain"
)

// Default distribution for simulated panel output. Roughly one sample in
// eight dips into the low-light band below the 50V threshold.
const (
	DefaultLowProbability = 0.12

	lowBase    = 30.0
	lowSpread  = 25.0
	normalBase = 80.0
	// Normal band spans 65-115V: base + (u - 0.3) * spread for u in [0,1).
	normalShift  = 0.3
	normalSpread = 50.0

	currentBase   = 3.0
	currentSpread = 10.0
)

// Simulator generates plausible solar panel readings.
type Simulator struct {
	mu             sync.Mutex
	rng            *rand.Rand
	lowProbability float64
}

// Option configures the simulator.
type Option func(*Simulator)

// WithSeed makes the sequence deterministic.
func WithSeed(seed int64) Option {
	return func(s *Simulator) {
		s.rng = rand.New(rand.NewSource(seed))
	}
}

// WithLowProbability overrides the low-light sample probability.
func WithLowProbability(p float64) Option {
	return func(s *Simulator) {
		if p >= 0 && p <= 1 {
			s.lowProbability = p
		}
	}
}

// New constructs a simulator.
func New(opts ...Option) *Simulator {
	s := &Simulator{
		rng:            rand.New(rand.NewSource(time.Now().UnixNano())),
		lowProbability: DefaultLowProbability,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Next implements the sampler source: one simulated reading per tick.
func (s *Simulator) Next(_ context.Context, now time.Time) (readings.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var voltage float64
	if s.rng.Float64() < s.lowProbability {
		voltage = lowBase + s.rng.Float64()*lowSpread
	} else {
		voltage = normalBase + (s.rng.Float64()-normalShift)*normalSpread
	}
	current := currentBase + s.rng.Float64()*currentSpread
	watts := voltage * current

	return readings.Reading{
		Timestamp: now,
		Voltage:   round2(voltage),
		Current:   round2(current),
		Watts:     round2(watts),
		Kilowatts: round3(watts / 1000),
	}, nil
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

func round3(value float64) float64 {
	return math.Round(value*1000) / 1000
}
