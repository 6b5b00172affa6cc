// Package processed remembers which wanted items have been attempted during
// the lifetime of the process.
//
// Records are never persisted: a restart forgets every success and failure,
// so the next cycle reprocesses everything still wanted.
package processed

import (
	"sort"
	"sync"
	"time"
)

// DefaultCooldown is how long a failed item waits before it is retried.
const DefaultCooldown = 24 * time.Hour

// Record is the last attempt result for one key.
type Record struct {
	Key       string    `json:"key"`
	Succeeded bool      `json:"succeeded"`
	Timestamp time.Time `json:"timestamp"`
}

// Stats summarises the store.
type Stats struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Store is an in-memory map of attempt records.
type Store struct {
	mu       sync.Mutex
	records  map[string]Record
	cooldown time.Duration
	now      func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates an empty store. A non-positive cooldown selects DefaultCooldown.
func New(cooldown time.Duration, opts ...Option) *Store {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	s := &Store{
		records:  make(map[string]Record),
		cooldown: cooldown,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Mark records an attempt, replacing any previous record for key.
func (s *Store) Mark(key string, succeeded bool) Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := Record{Key: key, Succeeded: succeeded, Timestamp: s.now()}
	s.records[key] = rec
	return rec
}

// ShouldSkip reports whether key must not be processed now. Successes are
// skipped forever; failures until the cooldown has elapsed.
func (s *Store) ShouldSkip(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok {
		return false
	}
	if rec.Succeeded {
		return true
	}
	return s.now().Sub(rec.Timestamp) < s.cooldown
}

// Get returns the record for key.
func (s *Store) Get(key string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	return rec, ok
}

// RetryAt returns when a failed key becomes eligible again. The second
// result is false for unknown or succeeded keys.
func (s *Store) RetryAt(key string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	if !ok || rec.Succeeded {
		return time.Time{}, false
	}
	return rec.Timestamp.Add(s.cooldown), true
}

// Cooldown returns the configured retry cooldown.
func (s *Store) Cooldown() time.Duration {
	return s.cooldown
}

// Stats counts records by result.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := Stats{Total: len(s.records)}
	for _, rec := range s.records {
		if rec.Succeeded {
			stats.Succeeded++
		} else {
			stats.Failed++
		}
	}
	return stats
}

// Snapshot returns all records ordered by key.
func (s *Store) Snapshot() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Forget removes the record for key so the next cycle processes it again.
func (s *Store) Forget(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.records[key]
	delete(s.records, key)
	return ok
}
