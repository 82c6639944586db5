package readings

import (
	"math"
	"time"
)

// Reading is one sampled sensor measurement. Readings are ephemeral: they
// feed the alert tracker and a bounded rolling window, nothing else.
type Reading struct {
	Timestamp time.Time `json:"timestamp"`
	Voltage   float64   `json:"voltage"`
	Current   float64   `json:"current"`
	Watts     float64   `json:"watts"`
	Kilowatts float64   `json:"kilowatts"`
}

// Physical plausibility bounds enforced at ingress. The tracker never sees a
// reading outside these.
const (
	MaxVoltage = 1000.0
	MaxCurrent = 500.0
)

// Validate rejects malformed readings at the source boundary.
func (r Reading) Validate() error {
	if r.Timestamp.IsZero() {
		return ErrMissingTimestamp
	}
	if !isFinite(r.Voltage) || !isFinite(r.Current) || !isFinite(r.Watts) {
		return ErrNotFinite
	}
	if r.Voltage < 0 || r.Voltage >= MaxVoltage {
		return ErrVoltageOutOfRange
	}
	if r.Current < 0 || r.Current >= MaxCurrent {
		return ErrCurrentOutOfRange
	}
	return nil
}

func isFinite(value float64) bool {
	return !math.IsNaN(value) && !math.IsInf(value, 0)
}
