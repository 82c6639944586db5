package alerts

import "errors"

// ErrNotFound is returned when no alert matches a lookup.
var ErrNotFound = errors.New("alerts: alert not found")

// ErrNoActiveAlert is returned when an active alert is required but none exists.
var ErrNoActiveAlert = errors.New("alerts: no active alert")

// ErrAlertClosed is returned when mutating an already-closed alert.
var ErrAlertClosed = errors.New("alerts: alert already closed")
