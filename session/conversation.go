package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/chatloop/core"
	"github.com/hupe1980/chatloop/flow"
	"github.com/hupe1980/chatloop/logging"
)

// Options configures a Conversation.
type Options struct {
	// ID identifies the conversation; a uuid is generated when empty.
	ID string
	// Store persists the transcript after every turn (optional).
	Store core.TranscriptStore
	// History seeds the transcript, e.g. with messages loaded from a store.
	History []core.Message
	Logger  logging.Logger
}

// Conversation owns a transcript and runs one turn at a time through a
// flow.Controller. It is the only place the transcript is mutated.
//
// Turn outcomes and what is kept:
//   - success or budget truncation: every produced message
//   - cancellation: the messages produced before the cancel
//   - failure (*core.TurnFailedError or any other error): nothing but the
//     user message, so the same input can be retried
type Conversation struct {
	id         string
	controller *flow.Controller
	transcript *core.Transcript
	scope      *core.ToolScope
	store      core.TranscriptStore
	logger     logging.Logger

	turnMu sync.Mutex
}

// New creates a conversation driven by controller.
func New(controller *flow.Controller, optFns ...func(o *Options)) (*Conversation, error) {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.ID == "" {
		opts.ID = core.NewID()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	transcript, err := core.NewTranscript(opts.History...)
	if err != nil {
		return nil, fmt.Errorf("seed transcript: %w", err)
	}

	return &Conversation{
		id:         opts.ID,
		controller: controller,
		transcript: transcript,
		scope:      core.NewToolScope(opts.ID, logging.Scoped(opts.Logger, "tool", opts.ID)),
		store:      opts.Store,
		logger:     logging.Scoped(opts.Logger, "session", opts.ID),
	}, nil
}

// Resume loads the transcript of id from store and continues it. An unknown
// id starts an empty conversation with that id.
func Resume(ctx context.Context, controller *flow.Controller, store core.TranscriptStore, id string, optFns ...func(o *Options)) (*Conversation, error) {
	history, err := store.Load(ctx, id)
	if err != nil && !errors.Is(err, core.ErrSessionNotFound) {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}

	return New(controller, append(optFns, func(o *Options) {
		o.ID = id
		o.Store = store
		o.History = history
	})...)
}

// ID returns the conversation id.
func (c *Conversation) ID() string { return c.id }

// Transcript returns a snapshot of the history.
func (c *Conversation) Transcript() []core.Message { return c.transcript.Messages() }

// Scratchpad returns the session-scoped context shared by tools.
func (c *Conversation) Scratchpad() *core.Scratchpad { return c.scope.Scratchpad }

// Submit runs one turn for text and returns the final assistant content.
func (c *Conversation) Submit(ctx context.Context, text string) (string, error) {
	res, err := c.SubmitTurn(ctx, text)
	if err != nil {
		return "", err
	}
	return res.FinalMessage.Content, nil
}

// SubmitTurn runs one turn for text and returns the full result. It fails
// fast with core.ErrTurnInProgress while another turn is running.
//
// Submitting the same text again right after a failed turn reuses the
// pending user message instead of appending a duplicate.
func (c *Conversation) SubmitTurn(ctx context.Context, text string) (*core.TurnResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty user input", core.ErrInvalidMessage)
	}
	if !c.turnMu.TryLock() {
		return nil, core.ErrTurnInProgress
	}
	defer c.turnMu.Unlock()

	if last, ok := c.transcript.Last(); ok && last.Role == core.RoleUser && last.Content == text {
		c.logger.Info("turn.retry")
	} else if err := c.transcript.Append(core.NewUserMessage(text)); err != nil {
		return nil, err
	}

	return c.runLocked(ctx)
}

// Retry reruns the controller when the transcript ends with an unanswered
// user message (after a failed turn).
func (c *Conversation) Retry(ctx context.Context) (*core.TurnResult, error) {
	if !c.turnMu.TryLock() {
		return nil, core.ErrTurnInProgress
	}
	defer c.turnMu.Unlock()

	last, ok := c.transcript.Last()
	if !ok || last.Role != core.RoleUser {
		return nil, fmt.Errorf("%w: nothing to retry", core.ErrInvalidMessage)
	}

	return c.runLocked(ctx)
}

// Busy reports whether a turn is running.
func (c *Conversation) Busy() bool {
	if c.turnMu.TryLock() {
		c.turnMu.Unlock()
		return false
	}
	return true
}

func (c *Conversation) runLocked(ctx context.Context) (*core.TurnResult, error) {
	c.logger.Debug("turn.start", "history", c.transcript.Len())

	res, runErr := c.controller.Run(ctx, c.scope, c.transcript.Messages())

	keep := runErr == nil || errors.Is(runErr, core.ErrTurnCancelled)
	if keep && len(res.Messages) > 0 {
		if err := c.transcript.Append(res.Messages...); err != nil {
			return res, errors.Join(runErr, fmt.Errorf("commit turn: %w", err))
		}
	}
	if !keep {
		c.logger.Warn("turn.discarded", "produced", len(res.Messages), "error", runErr.Error())
	}

	if err := c.persist(ctx); err != nil {
		return res, errors.Join(runErr, err)
	}

	return res, runErr
}

func (c *Conversation) persist(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	// the turn may have been cancelled; persisting what was kept must still happen
	if err := c.store.Save(context.WithoutCancel(ctx), c.id, c.transcript.Messages()); err != nil {
		c.logger.Error("session.save.failed", "error", err.Error())
		return fmt.Errorf("persist transcript: %w", err)
	}
	return nil
}
