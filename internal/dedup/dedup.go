// Package dedup drops repeat reads of the same card within a short window.
package dedup

import (
	"context"
	"sync"
	"time"
)

const (
	DefaultWindow    = 3 * time.Second
	DefaultRetention = 10 * time.Second
)

// Filter decides whether a scan key should continue down the pipeline.
type Filter interface {
	Allow(ctx context.Context, key string, at time.Time) bool
	// Forget drops key so the next read of it is admitted.
	Forget(ctx context.Context, key string)
}

// Suppressor is an in-process expiring map of recently accepted scan keys.
// Entries older than retention are pruned on every call, so memory stays
// bounded by the scan rate.
type Suppressor struct {
	window    time.Duration
	retention time.Duration

	mu   sync.Mutex
	seen map[string]time.Time
}

// NewSuppressor creates a suppressor; non-positive arguments take the defaults.
func NewSuppressor(window, retention time.Duration) *Suppressor {
	if window <= 0 {
		window = DefaultWindow
	}
	if retention < window {
		retention = DefaultRetention
		if retention < window {
			retention = window
		}
	}
	return &Suppressor{window: window, retention: retention, seen: make(map[string]time.Time)}
}

// Allow reports false when key was accepted less than window ago. Only
// accepted scans refresh the entry, so a card held in front of the camera is
// re-admitted once the window passes.
func (s *Suppressor) Allow(_ context.Context, key string, at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ts := range s.seen {
		if at.Sub(ts) > s.retention {
			delete(s.seen, k)
		}
	}
	if last, ok := s.seen[key]; ok {
		if d := at.Sub(last); d >= 0 && d < s.window {
			return false
		}
	}
	s.seen[key] = at
	return true
}

// Forget removes key, used when the scan it admitted could not be saved.
func (s *Suppressor) Forget(_ context.Context, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.seen, key)
}

// Len returns the number of retained entries.
func (s *Suppressor) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}
