package core

import (
	"context"
	"fmt"

	"github.com/hupe1980/chatloop/logging"
)

// ToolScope carries the per-conversation collaborators handed to every tool
// call of a turn. It is created by the conversation and reused across turns.
type ToolScope struct {
	SessionID  string
	Scratchpad *Scratchpad
	Logger     logging.Logger
}

// NewToolScope builds a scope with a fresh scratchpad.
func NewToolScope(sessionID string, logger logging.Logger) *ToolScope {
	return &ToolScope{SessionID: sessionID, Scratchpad: NewScratchpad(), Logger: logger}
}

// ToolContext provides a constrained surface for tool implementations invoked
// during a turn: cancellation, identifiers, logging and the session
// scratchpad. A fresh ToolContext is built per tool call.
type ToolContext struct {
	ctx        context.Context
	scope      *ToolScope
	toolCallID string
	toolName   string

	*loggerAdapter
}

// Complete returns scope when it is ready for use, otherwise a copy with a
// fresh scratchpad. A nil scope yields an anonymous one. The caller's scope is
// never modified, so callers running a batch resolve it once and share the
// result between calls.
func (s *ToolScope) Complete() *ToolScope {
	if s == nil {
		return NewToolScope("", nil)
	}
	if s.Scratchpad != nil {
		return s
	}
	cp := *s
	cp.Scratchpad = NewScratchpad()
	return &cp
}

// NewToolContext constructs a tool context bound to ctx and scope for a single call.
// Incomplete scopes are resolved with Complete.
func NewToolContext(ctx context.Context, scope *ToolScope, toolCallID, toolName string) *ToolContext {
	scope = scope.Complete()
	return &ToolContext{
		ctx:           ctx,
		scope:         scope,
		toolCallID:    toolCallID,
		toolName:      toolName,
		loggerAdapter: newLoggerAdapter(scope.Logger),
	}
}

// Context returns the context associated with the tool invocation.
func (tc *ToolContext) Context() context.Context { return tc.ctx }

// SessionID returns the session the call belongs to.
func (tc *ToolContext) SessionID() string { return tc.scope.SessionID }

// ToolCallID returns the id of the request being served.
func (tc *ToolContext) ToolCallID() string { return tc.toolCallID }

// ToolName returns the name of the tool being invoked.
func (tc *ToolContext) ToolName() string { return tc.toolName }

// Logger returns the logger associated with the tool invocation.
func (tc *ToolContext) Logger() logging.Logger { return tc.loggerAdapter.Logger() }

// Scratchpad returns the session-scoped scratchpad.
func (tc *ToolContext) Scratchpad() *Scratchpad { return tc.scope.Scratchpad }

// GetState retrieves a scratchpad value.
func (tc *ToolContext) GetState(k string) (any, bool) { return tc.scope.Scratchpad.Get(k) }

// SetState records a scratchpad value visible to later tool calls of the session.
func (tc *ToolContext) SetState(k string, v any) {
	tc.scope.Scratchpad.Set(k, v)
	tc.LogDebug("tool.state.set", "tool", tc.toolName, "key", k, "tool_call_id", tc.toolCallID)
}

// Validate performs a structural sanity check of the context.
func (tc *ToolContext) Validate() error {
	if tc.ctx == nil || tc.toolCallID == "" || tc.toolName == "" {
		return fmt.Errorf("invalid ToolContext")
	}
	return nil
}
