package core

import "sync"

// Transcript is the ordered, append-only history of a conversation. It is safe
// for concurrent reads; appends are serialized by the owning conversation.
//
// Contract:
//   - Append validates every message and applies all-or-nothing
//   - A tool message must answer an outstanding call of the immediately
//     preceding assistant message (only tool messages may sit in between)
//   - Messages returns deep copies so callers cannot mutate history
type Transcript struct {
	mu       sync.RWMutex
	messages []Message
}

// NewTranscript creates a transcript seeded with msgs (e.g. loaded from a store).
func NewTranscript(msgs ...Message) (*Transcript, error) {
	t := &Transcript{}
	if err := t.Append(msgs...); err != nil {
		return nil, err
	}
	return t, nil
}

// Append validates and appends msgs in order. Nothing is appended when any
// message is rejected.
func (t *Transcript) Append(msgs ...Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	staged := make([]Message, 0, len(t.messages)+len(msgs))
	staged = append(staged, t.messages...)
	for _, m := range msgs {
		if err := ValidateNext(staged, m); err != nil {
			return err
		}
		staged = append(staged, m.Clone())
	}
	t.messages = staged
	return nil
}

// Messages returns a deep copy of the history.
func (t *Transcript) Messages() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return CloneMessages(t.messages)
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// Last returns the most recent message.
func (t *Transcript) Last() (Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.messages) == 0 {
		return Message{}, false
	}
	return t.messages[len(t.messages)-1].Clone(), true
}

// ValidateNext checks that next may follow history without breaking transcript
// invariants. It is exported so the turn controller can check staged messages
// before they reach a Transcript.
func ValidateNext(history []Message, next Message) error {
	if !next.Role.Valid() {
		return invalidMessagef("role %q not allowed in transcript", next.Role)
	}

	switch next.Role {
	case RoleAssistant:
		if next.ToolCallID != "" {
			return invalidMessagef("assistant message carries tool_call_id")
		}
		seen := make(map[string]struct{}, len(next.ToolCalls))
		for _, c := range next.ToolCalls {
			if c.ID == "" {
				return invalidMessagef("tool call %q without id", c.Name)
			}
			if _, dup := seen[c.ID]; dup {
				return invalidMessagef("duplicate tool call id %q", c.ID)
			}
			seen[c.ID] = struct{}{}
		}
	case RoleUser:
		if next.ToolCallID != "" || len(next.ToolCalls) > 0 {
			return invalidMessagef("user message carries tool call metadata")
		}
	case RoleTool:
		return validateToolResult(history, next)
	}
	return nil
}

func validateToolResult(history []Message, next Message) error {
	if next.ToolCallID == "" {
		return invalidMessagef("tool message without tool_call_id")
	}
	if len(next.ToolCalls) > 0 {
		return invalidMessagef("tool message carries tool calls")
	}

	answered := map[string]struct{}{}
	for i := len(history) - 1; i >= 0; i-- {
		prev := history[i]
		switch prev.Role {
		case RoleTool:
			answered[prev.ToolCallID] = struct{}{}
			continue
		case RoleAssistant:
			for _, c := range prev.ToolCalls {
				if c.ID != next.ToolCallID {
					continue
				}
				if _, dup := answered[c.ID]; dup {
					return invalidMessagef("tool call %q already answered", c.ID)
				}
				return nil
			}
		}
		break
	}
	return invalidMessagef("tool result %q has no outstanding request", next.ToolCallID)
}

// PendingToolCalls returns the calls of the trailing assistant message that
// have no tool result yet, in request order.
func PendingToolCalls(history []Message) []ToolCallRequest {
	answered := map[string]struct{}{}
	for i := len(history) - 1; i >= 0; i-- {
		m := history[i]
		if m.Role == RoleTool {
			answered[m.ToolCallID] = struct{}{}
			continue
		}
		if m.Role != RoleAssistant {
			return nil
		}
		var pending []ToolCallRequest
		for _, c := range m.ToolCalls {
			if _, ok := answered[c.ID]; !ok {
				pending = append(pending, c.Clone())
			}
		}
		return pending
	}
	return nil
}
