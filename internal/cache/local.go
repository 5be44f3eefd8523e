// Package cache provides the process-local result cache. It is the default
// ResultCache implementation for single-instance deployments; multi-instance
// deployments swap in the Redis-backed repository.
package cache

import (
	"context"
	"errors"
	"sync"
	"time"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Local is an in-memory ResultCache. Entries are scoped to this process and
// are lost on restart; the job store remains the durable record.
type Local struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

// NewLocal creates an empty Local cache.
func NewLocal() *Local {
	return &Local{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// NewLocalWithClock creates a Local cache with a custom clock for testing.
func NewLocalWithClock(now func() time.Time) *Local {
	return &Local{
		entries: make(map[string]entry),
		now:     now,
	}
}

// Get returns the cached value for key. The second return value reports
// whether the key was present and unexpired.
func (l *Local) Get(_ context.Context, key string) ([]byte, bool, error) {
	if key == "" {
		return nil, false, errors.New("key cannot be empty")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		return nil, false, nil
	}
	if e.expired(l.now()) {
		delete(l.entries, key)
		return nil, false, nil
	}

	value := append([]byte(nil), e.value...)
	return value, true, nil
}

// Set stores value under key. A non-positive ttl means the entry never expires.
func (l *Local) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries[key] = l.newEntry(value, ttl)
	return nil
}

// SetNX stores value under key only when the key is absent or expired.
// Returns true when the value was stored.
func (l *Local) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if key == "" {
		return false, errors.New("key cannot be empty")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok := l.entries[key]; ok && !e.expired(l.now()) {
		return false, nil
	}

	l.entries[key] = l.newEntry(value, ttl)
	return true, nil
}

// Delete removes key from the cache.
func (l *Local) Delete(_ context.Context, key string) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.entries, key)
	return nil
}

// Len returns the number of entries, counting expired ones not yet evicted.
func (l *Local) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *Local) newEntry(value []byte, ttl time.Duration) entry {
	e := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = l.now().Add(ttl)
	}
	return e
}
