package session

import (
	"context"
	"sort"
	"sync"

	"github.com/hupe1980/chatloop/core"
)

// InMemoryStore is a volatile TranscriptStore storing transcripts in a process
// local map. It is safe for concurrent access and best suited for tests or
// ephemeral sessions. Messages are cloned on the way in and out to prevent
// external mutation of stored history.
type InMemoryStore struct {
	mu          sync.RWMutex
	transcripts map[string][]core.Message
}

// NewInMemoryStore constructs an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{transcripts: make(map[string][]core.Message)}
}

// Load returns a copy of the stored transcript.
func (s *InMemoryStore) Load(_ context.Context, sessionID string) ([]core.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs, ok := s.transcripts[sessionID]
	if !ok {
		return nil, core.ErrSessionNotFound
	}
	return core.CloneMessages(msgs), nil
}

// Save replaces the stored transcript with a copy of messages.
func (s *InMemoryStore) Save(_ context.Context, sessionID string, messages []core.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := core.CloneMessages(messages)
	if cp == nil {
		cp = []core.Message{}
	}
	s.transcripts[sessionID] = cp
	return nil
}

// List returns the stored session ids in sorted order.
func (s *InMemoryStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.transcripts))
	for id := range s.transcripts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete removes a transcript. Deleting an unknown id is not an error.
func (s *InMemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.transcripts, sessionID)
	return nil
}
