package application

import (
	"sync"

	readings "solarwatch/internal/readings/domain"
)

// DefaultWindowSize keeps two minutes of readings at the default 5s interval.
const DefaultWindowSize = 24

// Window is a bounded rolling buffer of the most recent readings, the data
// behind the dashboard chart. Old readings fall off the front.
type Window struct {
	mu       sync.RWMutex
	capacity int
	data     []readings.Reading
}

// NewWindow constructs a window with the given capacity.
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = DefaultWindowSize
	}
	return &Window{capacity: capacity}
}

// Add appends a reading, evicting the oldest when full.
func (w *Window) Add(reading readings.Reading) {
	if w == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.data = append(w.data, reading)
	if len(w.data) > w.capacity {
		w.data = w.data[len(w.data)-w.capacity:]
	}
}

// Latest returns the most recent reading.
func (w *Window) Latest() (readings.Reading, bool) {
	if w == nil {
		return readings.Reading{}, false
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	if len(w.data) == 0 {
		return readings.Reading{}, false
	}
	return w.data[len(w.data)-1], true
}

// Snapshot returns a copy of the buffered readings, oldest first.
func (w *Window) Snapshot() []readings.Reading {
	if w == nil {
		return nil
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]readings.Reading, len(w.data))
	copy(out, w.data)
	return out
}
