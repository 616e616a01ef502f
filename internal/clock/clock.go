// Package clock lets services take time as a dependency.
package clock

import (
	"sync"
	"time"
)

// Clock returns the current instant.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// NewSystem returns a clock backed by time.Now in UTC.
func NewSystem() Clock { return systemClock{} }

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Manual is a clock that only moves when told to.  Every call to Now
// advances it by Step so that successive records get distinct timestamps.
type Manual struct {
	mu   sync.Mutex
	now  time.Time
	Step time.Duration
}

// NewManual starts a manual clock at t.
func NewManual(t time.Time, step time.Duration) *Manual {
	return &Manual{now: t.UTC(), Step: step}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.now
	m.now = m.now.Add(m.Step)
	return t
}

// Advance moves the clock forward by d.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}
