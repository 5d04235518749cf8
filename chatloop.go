// Package chatloop provides a small façade over the conversation turn loop:
// a Hub that owns one flow.Controller and any number of session.Conversation
// values keyed by id. Most applications:
//  1. Build a model, a tool registry and a flow.Controller
//  2. Create a Hub via New() (optionally with a durable TranscriptStore)
//  3. Call Submit with a session id and the user's text
//
// Conversations are resumed from the store on first use, run one turn at a
// time, and can be cancelled from another goroutine with Cancel.
package chatloop

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/hupe1980/chatloop/core"
	"github.com/hupe1980/chatloop/flow"
	"github.com/hupe1980/chatloop/logging"
	"github.com/hupe1980/chatloop/session"
)

// ErrClosed is returned by a Hub after Close.
var ErrClosed = errors.New("hub closed")

// Options configures a Hub.
type Options struct {
	// Store persists transcripts (defaults to an in-memory store).
	Store core.TranscriptStore
	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Hub routes user input to conversations. Public methods are safe for
// concurrent use; turns of different conversations run in parallel.
type Hub struct {
	controller *flow.Controller
	store      core.TranscriptStore
	logger     logging.Logger

	conversations map[string]*session.Conversation
	activeTurns   map[string]context.CancelFunc
	closed        bool
	mu            sync.RWMutex

	onOpened func(id string) // test hook between Open and turn registration
}

// New creates a Hub driving every conversation with controller.
func New(controller *flow.Controller, optFns ...func(o *Options)) *Hub {
	opts := Options{
		Store:  session.NewInMemoryStore(),
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Hub{
		controller:    controller,
		store:         opts.Store,
		logger:        opts.Logger,
		conversations: make(map[string]*session.Conversation),
		activeTurns:   make(map[string]context.CancelFunc),
	}
}

// Open returns the conversation for id, resuming it from the store the first
// time it is seen. An empty id starts a new conversation with a generated id.
func (h *Hub) Open(ctx context.Context, id string) (*session.Conversation, error) {
	if id == "" {
		id = core.NewID()
	}

	h.mu.RLock()
	conv, ok := h.conversations[id]
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}
	if ok {
		return conv, nil
	}

	// Resume holds the write lock so it is ordered against Delete.
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrClosed
	}
	if existing, ok := h.conversations[id]; ok {
		return existing, nil
	}

	conv, err := session.Resume(ctx, h.controller, h.store, id, func(o *session.Options) {
		o.Logger = h.logger
	})
	if err != nil {
		return nil, err
	}
	h.conversations[id] = conv
	h.logger.Debug("session.opened", "session_id", id, "history", len(conv.Transcript()))

	return conv, nil
}

// Submit runs one turn of conversation id for text. The turn can be stopped
// with Cancel(id); it then returns an error wrapping core.ErrTurnCancelled.
func (h *Hub) Submit(ctx context.Context, id, text string) (*core.TurnResult, error) {
	if id == "" {
		id = core.NewID()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	conv, err := h.register(ctx, id, cancel)
	if err != nil {
		return nil, err
	}

	defer func() {
		h.mu.Lock()
		delete(h.activeTurns, id)
		h.mu.Unlock()
	}()

	return conv.SubmitTurn(ctx, text)
}

// register opens conversation id and records cancel as its running turn.
// Both happen against the same hub state: a conversation deleted after it was
// opened is opened again, and a closed hub accepts no new turn.
func (h *Hub) register(ctx context.Context, id string, cancel context.CancelFunc) (*session.Conversation, error) {
	for {
		conv, err := h.Open(ctx, id)
		if err != nil {
			return nil, err
		}
		if h.onOpened != nil {
			h.onOpened(id)
		}

		h.mu.Lock()
		switch {
		case h.closed:
			h.mu.Unlock()
			return nil, ErrClosed
		case h.conversations[id] != conv:
			h.mu.Unlock()
			continue
		}
		if _, running := h.activeTurns[id]; running {
			h.mu.Unlock()
			return nil, core.ErrTurnInProgress
		}
		h.activeTurns[id] = cancel
		h.mu.Unlock()

		return conv, nil
	}
}

// Cancel stops the running turn of conversation id. It reports whether a
// turn was running.
func (h *Hub) Cancel(id string) bool {
	h.mu.RLock()
	cancel, ok := h.activeTurns[id]
	h.mu.RUnlock()
	if ok {
		h.logger.Info("turn.cancel.requested", "session_id", id)
		cancel()
	}
	return ok
}

// Active returns the ids of conversations with a running turn.
func (h *Hub) Active() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.activeTurns))
	for id := range h.activeTurns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Sessions lists the ids known to the store.
func (h *Hub) Sessions(ctx context.Context) ([]string, error) {
	return h.store.List(ctx)
}

// Delete forgets conversation id and removes its transcript from the store.
func (h *Hub) Delete(ctx context.Context, id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, running := h.activeTurns[id]; running {
		return core.ErrTurnInProgress
	}
	delete(h.conversations, id)

	return h.store.Delete(ctx, id)
}

// Close cancels every running turn. Further calls to Open and Submit fail
// with ErrClosed.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, cancel := range h.activeTurns {
		h.logger.Debug("turn.cancel.requested", "session_id", id)
		cancel()
	}
}
