package overlay

import (
	"sync"
	"time"
)

// Committed is a transform written by a completed detection cycle.
type Committed struct {
	Transform   Transform `json:"transform"`
	Version     uint64    `json:"version"`
	CommittedAt time.Time `json:"committed_at"`
}

// Slot holds the most recently committed transform. Detection writes it once
// per cycle; the render side reads it at its own rate.
type Slot struct {
	mu      sync.RWMutex
	current Committed
	set     bool
}

// NewSlot creates an empty Slot.
func NewSlot() *Slot {
	return &Slot{}
}

// Commit replaces the current transform and bumps the version.
func (s *Slot) Commit(t Transform) Committed {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = Committed{
		Transform:   t,
		Version:     s.current.Version + 1,
		CommittedAt: time.Now(),
	}
	s.set = true
	return s.current
}

// Latest returns the current transform. It reports false until the first commit.
func (s *Slot) Latest() (Committed, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.set
}

// Version returns the version of the current transform, 0 if none.
func (s *Slot) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Version
}
