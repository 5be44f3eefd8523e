package data

import (
	"sync"
	"time"
)

// TimeProvider abstracts "now" so repository tests can pin the clock that
// scheduled_at and lease expiry calculations read from.
type TimeProvider interface {
	Now() time.Time
}

// SystemTime reads the wall clock.
type SystemTime struct{}

// Now returns the current system time.
func (SystemTime) Now() time.Time {
	return time.Now()
}

// StubTime is a settable clock for tests. Safe for concurrent use.
type StubTime struct {
	mu  sync.Mutex
	now time.Time
}

// NewStubTime creates a stub clock pinned at t.
func NewStubTime(t time.Time) *StubTime {
	return &StubTime{now: t}
}

// Now returns the pinned time.
func (s *StubTime) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Set pins the clock at t.
func (s *StubTime) Set(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = t
}

// Advance moves the pinned clock forward by d.
func (s *StubTime) Advance(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = s.now.Add(d)
}
