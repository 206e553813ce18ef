package alert

import (
	"sync"
)

// History is a capacity-bounded alert buffer with the same eviction law as
// the snapshot history: insertion-ordered, oldest evicted on overflow.
type History struct {
	mu       sync.RWMutex
	alerts   []Alert
	capacity int
}

// NewHistory creates a bounded alert history. Capacity must be positive.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = 1
	}
	return &History{
		alerts:   make([]Alert, 0, capacity),
		capacity: capacity,
	}
}

// Append adds an alert, evicting the oldest entry when full.
func (h *History) Append(a Alert) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.alerts) == h.capacity {
		copy(h.alerts, h.alerts[1:])
		h.alerts = h.alerts[:h.capacity-1]
	}
	h.alerts = append(h.alerts, a)
}

// Recent returns up to n alerts, newest first.
func (h *History) Recent(n int) []Alert {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if n <= 0 || len(h.alerts) == 0 {
		return nil
	}
	if n > len(h.alerts) {
		n = len(h.alerts)
	}

	out := make([]Alert, 0, n)
	for i := len(h.alerts) - 1; i >= len(h.alerts)-n; i-- {
		out = append(out, h.alerts[i])
	}
	return out
}

// Capacity returns the maximum number of retained alerts.
func (h *History) Capacity() int {
	return h.capacity
}

// Len returns the number of retained alerts.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.alerts)
}

// Alerts returns a copy of the retained alerts, oldest first.
func (h *History) Alerts() []Alert {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Alert, len(h.alerts))
	copy(out, h.alerts)
	return out
}
