package readings

import (
	"errors"
	"math"
	"testing"
	"time"
)

func validReading() Reading {
	return Reading{
		Timestamp: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Voltage:   82.5,
		Current:   7.2,
		Watts:     594,
		Kilowatts: 0.594,
	}
}

func TestValidateAccepts(t *testing.T) {
	if err := validReading().Validate(); err != nil {
		t.Fatalf("valid reading rejected: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Reading)
		want   error
	}{
		{"missing timestamp", func(r *Reading) { r.Timestamp = time.Time{} }, ErrMissingTimestamp},
		{"nan voltage", func(r *Reading) { r.Voltage = math.NaN() }, ErrNotFinite},
		{"inf watts", func(r *Reading) { r.Watts = math.Inf(1) }, ErrNotFinite},
		{"negative voltage", func(r *Reading) { r.Voltage = -1 }, ErrVoltageOutOfRange},
		{"excessive voltage", func(r *Reading) { r.Voltage = 1000 }, ErrVoltageOutOfRange},
		{"negative current", func(r *Reading) { r.Current = -0.5 }, ErrCurrentOutOfRange},
		{"excessive current", func(r *Reading) { r.Current = 500 }, ErrCurrentOutOfRange},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reading := validReading()
			tc.mutate(&reading)
			if err := reading.Validate(); !errors.Is(err, tc.want) {
				t.Errorf("Validate() = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestRejectReason(t *testing.T) {
	cases := map[error]string{
		ErrMissingTimestamp:  "missing_timestamp",
		ErrNotFinite:         "not_finite",
		ErrVoltageOutOfRange: "voltage_range",
		ErrCurrentOutOfRange: "current_range",
		errors.New("other"):  "unknown",
	}
	for err, want := range cases {
		if got := RejectReason(err); got != want {
			t.Errorf("RejectReason(%v) = %q, want %q", err, got, want)
		}
	}
}
