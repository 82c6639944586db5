package readings

import "errors"

// ErrMissingTimestamp is returned when a reading carries no timestamp.
var ErrMissingTimestamp = errors.New("readings: missing timestamp")

// ErrNotFinite is returned for NaN or infinite measurements.
var ErrNotFinite = errors.New("readings: non-finite measurement")

// ErrVoltageOutOfRange is returned when voltage is physically implausible.
var ErrVoltageOutOfRange = errors.New("readings: voltage out of range")

// ErrCurrentOutOfRange is returned when current is physically implausible.
var ErrCurrentOutOfRange = errors.New("readings: current out of range")

// RejectReason maps a validation error to a metrics label.
func RejectReason(err error) string {
	switch {
	case errors.Is(err, ErrMissingTimestamp):
		return "missing_timestamp"
	case errors.Is(err, ErrNotFinite):
		return "not_finite"
	case errors.Is(err, ErrVoltageOutOfRange):
		return "voltage_range"
	case errors.Is(err, ErrCurrentOutOfRange):
		return "current_range"
	default:
		return "unknown"
	}
}
