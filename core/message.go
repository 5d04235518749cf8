package core

import (
	"maps"
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a Message.
type Role string

const (
	// RoleSystem carries provider instructions. It is never stored in a Transcript.
	RoleSystem Role = "system"
	// RoleUser marks end-user input.
	RoleUser Role = "user"
	// RoleAssistant marks model output (final answers or tool call requests).
	RoleAssistant Role = "assistant"
	// RoleTool marks the result of a single tool call.
	RoleTool Role = "tool"
)

// Valid reports whether r is a role allowed inside a Transcript.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleTool:
		return true
	default:
		return false
	}
}

// ToolCallRequest is a model-issued request to invoke a tool.
type ToolCallRequest struct {
	ID        string         `json:"id" yaml:"id"`                                   // Unique within the parent assistant message
	Name      string         `json:"name" yaml:"name"`                               // Tool name, resolved against the registry at execution time
	Arguments map[string]any `json:"arguments,omitempty" yaml:"arguments,omitempty"` // Structured payload shaped by the tool's schema
}

// Clone returns a copy whose Arguments map can be mutated independently.
func (r ToolCallRequest) Clone() ToolCallRequest {
	if r.Arguments != nil {
		r.Arguments = maps.Clone(r.Arguments)
	}
	return r
}

// ToolFault describes why a tool call did not produce a result.
type ToolFault struct {
	Code    string `json:"code" yaml:"code"`
	Message string `json:"message" yaml:"message"`
}

// Message is a single immutable transcript record. Treat values as read-only
// once appended; Transcript hands out clones.
type Message struct {
	ID          string            `json:"id" yaml:"id"`
	Role        Role              `json:"role" yaml:"role"`
	Content     string            `json:"content,omitempty" yaml:"content,omitempty"`
	ToolCalls   []ToolCallRequest `json:"tool_calls,omitempty" yaml:"tool_calls,omitempty"`
	ToolCallID  string            `json:"tool_call_id,omitempty" yaml:"tool_call_id,omitempty"`
	Name        string            `json:"name,omitempty" yaml:"name,omitempty"`
	Fault       *ToolFault        `json:"fault,omitempty" yaml:"fault,omitempty"`
	Synthesized bool              `json:"synthesized,omitempty" yaml:"synthesized,omitempty"`
	Timestamp   time.Time         `json:"timestamp" yaml:"timestamp"`
}

// NewID generates a new unique identifier for messages and tool calls.
func NewID() string { return uuid.NewString() }

func newMessage(role Role, content string) Message {
	return Message{
		ID:        NewID(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}

// NewUserMessage creates a user-authored text message.
func NewUserMessage(text string) Message { return newMessage(RoleUser, text) }

// NewSystemMessage creates an instruction message for providers.
func NewSystemMessage(text string) Message { return newMessage(RoleSystem, text) }

// NewAssistantMessage creates an assistant message. When calls is non-empty the
// message delegates to tools and text may be empty.
func NewAssistantMessage(text string, calls ...ToolCallRequest) Message {
	m := newMessage(RoleAssistant, text)
	if len(calls) > 0 {
		m.ToolCalls = make([]ToolCallRequest, len(calls))
		for i, c := range calls {
			m.ToolCalls[i] = c.Clone()
		}
	}
	return m
}

// NewToolResultMessage records the successful outcome of the call identified by callID.
func NewToolResultMessage(callID, toolName, content string) Message {
	m := newMessage(RoleTool, content)
	m.ToolCallID = callID
	m.Name = toolName
	return m
}

// NewToolFaultMessage records a failed tool call. content carries the encoded
// error payload the model will read; fault keeps the structured form.
func NewToolFaultMessage(callID, toolName, content string, fault ToolFault) Message {
	m := NewToolResultMessage(callID, toolName, content)
	m.Fault = &fault
	return m
}

// HasToolCalls reports whether the message delegates to one or more tools.
func (m Message) HasToolCalls() bool { return len(m.ToolCalls) > 0 }

// IsFault reports whether the message is a tool result carrying an error.
func (m Message) IsFault() bool { return m.Fault != nil }

// Clone returns a deep copy safe for independent mutation.
func (m Message) Clone() Message {
	if m.ToolCalls != nil {
		calls := make([]ToolCallRequest, len(m.ToolCalls))
		for i, c := range m.ToolCalls {
			calls[i] = c.Clone()
		}
		m.ToolCalls = calls
	}
	if m.Fault != nil {
		f := *m.Fault
		m.Fault = &f
	}
	return m
}

// CloneMessages deep copies a message slice.
func CloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}
