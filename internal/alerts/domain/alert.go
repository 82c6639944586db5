package alerts

import (
	"math"
	"time"
)

// LowVoltageThreshold is the fixed safety threshold in volts. Readings below
// it are classified LOW; there is no hysteresis band, so classification flips
// exactly at the boundary.
const LowVoltageThreshold = 50.0

// Level classifies a voltage sample against the threshold.
type Level string

const (
	LevelNormal Level = "normal"
	LevelLow    Level = "low"
)

// Classify maps a voltage to a level. Pure and stateless.
func Classify(voltage float64) Level {
	if voltage < LowVoltageThreshold {
		return LevelLow
	}
	return LevelNormal
}

// VoltageAlert is a persisted low-voltage episode. At most one alert is
// active at any time; a closed alert is immutable history.
type VoltageAlert struct {
	ID              string    `json:"id"`
	StartedAt       time.Time `json:"started_at"`
	EndedAt         time.Time `json:"ended_at,omitempty"`
	DurationSeconds int64     `json:"duration_seconds,omitempty"`
	MinVoltage      float64   `json:"min_voltage"`
	AvgVoltage      float64   `json:"avg_voltage,omitempty"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Closed reports whether the alert has been closed.
func (a VoltageAlert) Closed() bool {
	return !a.IsActive && !a.EndedAt.IsZero()
}

// Round2 rounds a voltage to two decimal places, the precision all readings
// and aggregates are recorded with.
func Round2(value float64) float64 {
	return math.Round(value*100) / 100
}

// DurationSecondsBetween returns the elapsed whole seconds between start and
// end, rounded (not truncated) and never negative.
func DurationSecondsBetween(start, end time.Time) int64 {
	if end.Before(start) {
		return 0
	}
	return int64(math.Round(end.Sub(start).Seconds()))
}

// Mean returns the arithmetic mean of samples, zero for an empty slice.
func Mean(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, v := range samples {
		sum += v
	}
	return sum / float64(len(samples))
}
