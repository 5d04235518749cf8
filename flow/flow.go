// Package flow implements the turn controller: the explicit state machine that
// alternates model calls and tool execution until the model produces a final
// answer, the round budget is spent, or the turn is cancelled.
package flow

import (
	"github.com/hupe1980/chatloop/core"
	"github.com/hupe1980/chatloop/model"
)

// State is a turn controller state.
type State int

const (
	// StateAwaitingModel asks the model for the next assistant message.
	StateAwaitingModel State = iota
	// StateExecutingTools runs the tool calls of the last assistant message.
	StateExecutingTools
	// StateDone is terminal; the final assistant message is known.
	StateDone
)

// String returns the state name used in logs.
func (s State) String() string {
	switch s {
	case StateAwaitingModel:
		return "AwaitingModel"
	case StateExecutingTools:
		return "ExecutingTools"
	case StateDone:
		return "Done"
	default:
		return "Unknown"
	}
}

// Hooks observe a running turn. All fields are optional and are called
// synchronously on the controller goroutine.
type Hooks struct {
	OnState      func(state State, round int)
	OnModelCall  func(round int, msg core.Message, err error)
	OnToolResult func(inv core.ToolInvocation)
}

// RequestContext is the read-only view handed to request processors.
type RequestContext struct {
	Scope   *core.ToolScope
	Round   int
	History []core.Message // transcript plus messages produced so far this turn
}

// RequestProcessor shapes the model request before every model call.
type RequestProcessor interface {
	// Name returns the processor's identifier.
	Name() string
	// ProcessRequest modifies the request before the model call.
	ProcessRequest(rc *RequestContext, req *model.Request) error
}
