package testutil

import (
	"github.com/hupe1980/chatloop/core"
)

// TranscriptBuilder provides a fluent helper for constructing valid
// transcripts in tests.
// Example:
//
//	msgs := NewTranscriptBuilder().
//		User("weather in Paris?").
//		ToolCall("c1", "get_weather", map[string]any{"city": "Paris"}).
//		ToolResult("c1", "get_weather", `{"tempC":18}`).
//		Assistant("It's 18°C.").
//		Build()
type TranscriptBuilder struct {
	msgs    []core.Message
	pending []core.ToolCallRequest
}

// NewTranscriptBuilder creates an empty builder.
func NewTranscriptBuilder() *TranscriptBuilder { return &TranscriptBuilder{} }

func (b *TranscriptBuilder) flush() {
	if len(b.pending) > 0 {
		b.msgs = append(b.msgs, core.NewAssistantMessage("", b.pending...))
		b.pending = nil
	}
}

// User appends a user message (chainable).
func (b *TranscriptBuilder) User(text string) *TranscriptBuilder {
	b.flush()
	b.msgs = append(b.msgs, core.NewUserMessage(text))
	return b
}

// Assistant appends a final assistant message (chainable).
func (b *TranscriptBuilder) Assistant(text string) *TranscriptBuilder {
	b.flush()
	b.msgs = append(b.msgs, core.NewAssistantMessage(text))
	return b
}

// ToolCall adds a call to the next assistant message; consecutive calls are
// grouped into one message (chainable).
func (b *TranscriptBuilder) ToolCall(id, name string, args map[string]any) *TranscriptBuilder {
	if args == nil {
		args = map[string]any{}
	}
	b.pending = append(b.pending, core.ToolCallRequest{ID: id, Name: name, Arguments: args})
	return b
}

// ToolResult appends a successful tool result (chainable).
func (b *TranscriptBuilder) ToolResult(callID, name, content string) *TranscriptBuilder {
	b.flush()
	b.msgs = append(b.msgs, core.NewToolResultMessage(callID, name, content))
	return b
}

// ToolFault appends a failed tool result (chainable).
func (b *TranscriptBuilder) ToolFault(callID, name, code, message string) *TranscriptBuilder {
	b.flush()
	b.msgs = append(b.msgs, core.NewToolFaultMessage(callID, name, `{"error":{"code":"`+code+`"}}`, core.ToolFault{Code: code, Message: message}))
	return b
}

// Build returns the messages built so far.
func (b *TranscriptBuilder) Build() []core.Message {
	b.flush()
	return core.CloneMessages(b.msgs)
}
