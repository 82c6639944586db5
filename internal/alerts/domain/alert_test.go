package alerts

import (
	"testing"
	"time"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		voltage float64
		want    Level
	}{
		{0, LevelLow},
		{30, LevelLow},
		{49.9, LevelLow},
		{49.999, LevelLow},
		{50.0, LevelNormal},
		{50.1, LevelNormal},
		{115, LevelNormal},
	}
	for _, tc := range cases {
		if got := Classify(tc.voltage); got != tc.want {
			t.Errorf("Classify(%v) = %q, want %q", tc.voltage, got, tc.want)
		}
	}
}

func TestRound2(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{46.5, 46.5},
		{46.505, 46.51},
		{46.504, 46.5},
		{0, 0},
	}
	for _, tc := range cases {
		if got := Round2(tc.in); got != tc.want {
			t.Errorf("Round2(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestDurationSecondsBetween(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if got := DurationSecondsBetween(start, start.Add(2*time.Second)); got != 2 {
		t.Errorf("expected 2s, got %d", got)
	}
	if got := DurationSecondsBetween(start, start.Add(1500*time.Millisecond)); got != 2 {
		t.Errorf("expected 1.5s to round to 2, got %d", got)
	}
	if got := DurationSecondsBetween(start, start.Add(1400*time.Millisecond)); got != 1 {
		t.Errorf("expected 1.4s to round to 1, got %d", got)
	}
	if got := DurationSecondsBetween(start, start.Add(-time.Second)); got != 0 {
		t.Errorf("expected clamped 0 for end before start, got %d", got)
	}
	if got := DurationSecondsBetween(start, start); got != 0 {
		t.Errorf("expected 0 for equal times, got %d", got)
	}
}

func TestMean(t *testing.T) {
	if got := Mean(nil); got != 0 {
		t.Errorf("expected 0 for empty samples, got %v", got)
	}
	if got := Mean([]float64{48, 45}); got != 46.5 {
		t.Errorf("expected 46.5, got %v", got)
	}
}

func TestClosed(t *testing.T) {
	open := VoltageAlert{IsActive: true}
	if open.Closed() {
		t.Error("active alert must not report closed")
	}
	done := VoltageAlert{IsActive: false, EndedAt: time.Now()}
	if !done.Closed() {
		t.Error("ended alert must report closed")
	}
}
