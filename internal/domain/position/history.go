package position

import (
	"sync"
)

// History is a capacity-bounded, insertion-ordered snapshot buffer. The
// oldest snapshot is evicted when the capacity is exceeded. Only the monitor
// loop appends; dashboard reads may interleave with an in-progress append, so
// access is guarded by a mutex.
type History struct {
	mu        sync.RWMutex
	snapshots []Snapshot
	capacity  int
}

// NewHistory creates a bounded history. Capacity must be positive.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = 1
	}
	return &History{
		snapshots: make([]Snapshot, 0, capacity),
		capacity:  capacity,
	}
}

// Append adds a snapshot, evicting the oldest entry when full.
func (h *History) Append(s Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.snapshots) == h.capacity {
		copy(h.snapshots, h.snapshots[1:])
		h.snapshots = h.snapshots[:h.capacity-1]
	}
	h.snapshots = append(h.snapshots, s)
}

// Latest returns the most recent snapshot, or false when empty.
func (h *History) Latest() (Snapshot, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.snapshots) == 0 {
		return Snapshot{}, false
	}
	return h.snapshots[len(h.snapshots)-1], true
}

// Previous returns the second-most-recent snapshot, or false when fewer than
// two snapshots exist.
func (h *History) Previous() (Snapshot, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.snapshots) < 2 {
		return Snapshot{}, false
	}
	return h.snapshots[len(h.snapshots)-2], true
}

// Back returns the snapshot n positions before the latest (Back(0) == Latest).
func (h *History) Back(n int) (Snapshot, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	idx := len(h.snapshots) - 1 - n
	if n < 0 || idx < 0 {
		return Snapshot{}, false
	}
	return h.snapshots[idx], true
}

// Len returns the number of retained snapshots.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.snapshots)
}

// Capacity returns the maximum number of retained snapshots.
func (h *History) Capacity() int {
	return h.capacity
}

// Snapshots returns a copy of the retained snapshots, oldest first.
func (h *History) Snapshots() []Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Snapshot, len(h.snapshots))
	copy(out, h.snapshots)
	return out
}
