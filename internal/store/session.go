package store

import (
	"fmt"
	"sync"

	"github.com/you/extraneous/internal/core"
)

// DefaultSessionCap bounds the session cache. There is no eviction: once the
// cap is reached further writes fail and the caller falls back to a cache
// miss, mirroring a storage quota being exhausted.
const DefaultSessionCap = 4096

// Session is the per-run resolution cache. Entries live for the lifetime of
// the daemon process and are never expired.
type Session struct {
	mu  sync.Mutex
	cap int
	m   map[string]core.VideoCache
}

func NewSession(capacity int) *Session {
	if capacity <= 0 {
		capacity = DefaultSessionCap
	}
	return &Session{cap: capacity, m: make(map[string]core.VideoCache)}
}

// Get returns the cached resolution for a video, if any.
func (s *Session) Get(videoID string) (core.VideoCache, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.m[core.VideoKey(videoID)]
	return entry, ok
}

// Set stores a resolution. Overwrites of existing keys always succeed; new
// keys past the capacity cap are rejected.
func (s *Session) Set(videoID string, entry core.VideoCache) error {
	key := core.VideoKey(videoID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.m[key]; !exists && len(s.m) >= s.cap {
		return fmt.Errorf("session cache full (%d entries)", s.cap)
	}
	s.m[key] = entry
	return nil
}

// Len reports the current entry count (metrics).
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}
