package core

import (
	"maps"
	"sync"
)

// Scratchpad is the session-scoped key/value context shared by tools of one
// conversation. Tools that need data produced by an earlier call (for example
// a journey found by a search tool) read it here instead of from globals.
// It is safe for concurrent access.
type Scratchpad struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewScratchpad creates an empty scratchpad.
func NewScratchpad() *Scratchpad {
	return &Scratchpad{values: map[string]any{}}
}

// Get returns the value and existence flag for key.
func (s *Scratchpad) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// GetString returns the value for key when it is a string.
func (s *Scratchpad) GetString(key string) (string, bool) {
	v, ok := s.Get(key)
	if !ok {
		return "", false
	}
	str, ok := v.(string)
	return str, ok
}

// Set stores value under key.
func (s *Scratchpad) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

// Merge copies all pairs of delta into the scratchpad.
func (s *Scratchpad) Merge(delta map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	maps.Copy(s.values, delta)
}

// Delete removes key.
func (s *Scratchpad) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}

// Snapshot returns a shallow copy of all values.
func (s *Scratchpad) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.values)
}
