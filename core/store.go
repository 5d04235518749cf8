package core

import "context"

// TranscriptStore persists conversation transcripts keyed by session id.
// Implementations must be safe for concurrent use and must return
// ErrSessionNotFound from Load for unknown ids.
type TranscriptStore interface {
	Load(ctx context.Context, sessionID string) ([]Message, error)
	Save(ctx context.Context, sessionID string, messages []Message) error
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, sessionID string) error
}
