package model

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/chatloop/core"
)

// ToolDefinition declaratively exposes a callable tool to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the model.
// Parameters is a JSON Schema object.
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// NewToolDefinition builds a function-type declaration.
func NewToolDefinition(name, description string, parameters map[string]any) ToolDefinition {
	return ToolDefinition{
		Type: "function",
		Function: FunctionDefinition{
			Name:        name,
			Description: description,
			Parameters:  parameters,
		},
	}
}

// Request captures the normalized model input produced by the turn controller.
// Messages is a copy of the transcript; implementations must not retain it.
type Request struct {
	Instructions string           `json:"instructions,omitempty"`
	Messages     []core.Message   `json:"messages"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "scripted", etc.
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the port the turn controller drives. Generate returns exactly one
// assistant Message (final text or tool call requests) or an error wrapping
// core.ErrModelUnavailable / core.ErrModelMalformedOutput.
type Model interface {
	Generate(ctx context.Context, req Request) (core.Message, error)

	// Info returns information about the model implementation.
	Info() Info
}

// CheckOutput normalizes a provider message into a valid assistant Message:
// role defaults to assistant, missing ids and timestamps are filled in and nil
// argument maps become empty objects. Wrong roles, nameless calls and duplicate
// call ids are rejected with core.ErrModelMalformedOutput.
func CheckOutput(msg core.Message) (core.Message, error) {
	switch msg.Role {
	case "":
		msg.Role = core.RoleAssistant
	case core.RoleAssistant:
	default:
		return core.Message{}, malformedf("unexpected role %q", msg.Role)
	}

	if msg.ToolCallID != "" || msg.Fault != nil {
		return core.Message{}, malformedf("assistant message carries tool result metadata")
	}

	if msg.ID == "" {
		msg.ID = core.NewID()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	msg = msg.Clone()
	seen := make(map[string]struct{}, len(msg.ToolCalls))
	for i := range msg.ToolCalls {
		call := &msg.ToolCalls[i]
		if strings.TrimSpace(call.Name) == "" {
			return core.Message{}, malformedf("tool call %d without name", i)
		}
		if call.ID == "" {
			call.ID = "call_" + core.NewID()
		}
		if _, dup := seen[call.ID]; dup {
			return core.Message{}, malformedf("duplicate tool call id %q", call.ID)
		}
		seen[call.ID] = struct{}{}
		if call.Arguments == nil {
			call.Arguments = map[string]any{}
		}
	}

	return msg, nil
}

// DecodeArguments parses a raw JSON argument string as emitted by providers.
// An empty string is an empty object; anything that is not a JSON object is
// malformed output.
func DecodeArguments(raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return map[string]any{}, nil
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, malformedf("tool call arguments are not a JSON object: %v", err)
	}
	if args == nil {
		args = map[string]any{}
	}

	return args, nil
}

// PairedHistory returns msgs with tool calls that never received a result
// removed (e.g. after a turn was cancelled before its tools ran). Providers
// reject such dangling calls; assistant messages left empty are dropped.
func PairedHistory(msgs []core.Message) []core.Message {
	answered := make(map[string]struct{})
	for _, m := range msgs {
		if m.Role == core.RoleTool {
			answered[m.ToolCallID] = struct{}{}
		}
	}

	out := make([]core.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role != core.RoleAssistant || !m.HasToolCalls() {
			out = append(out, m)
			continue
		}
		m = m.Clone()
		kept := m.ToolCalls[:0]
		for _, c := range m.ToolCalls {
			if _, ok := answered[c.ID]; ok {
				kept = append(kept, c)
			}
		}
		m.ToolCalls = kept
		if len(m.ToolCalls) == 0 {
			m.ToolCalls = nil
			if m.Content == "" {
				continue
			}
		}
		out = append(out, m)
	}

	return out
}

// Unavailable wraps a transport or provider failure.
func Unavailable(provider string, err error) error {
	return fmt.Errorf("%w: %s: %w", core.ErrModelUnavailable, provider, err)
}

func malformedf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", core.ErrModelMalformedOutput, fmt.Sprintf(format, args...))
}
