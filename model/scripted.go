package model

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/chatloop/core"
)

// Step is one scripted model reply: either a message or an error.
type Step struct {
	Message core.Message
	Err     error
}

// Reply scripts a final text answer.
func Reply(text string) Step { return Step{Message: core.NewAssistantMessage(text)} }

// Delegate scripts an assistant message requesting the given tool calls.
func Delegate(calls ...core.ToolCallRequest) Step {
	return Step{Message: core.NewAssistantMessage("", calls...)}
}

// Fail scripts a model error.
func Fail(err error) Step { return Step{Err: err} }

// ScriptedModel is a deterministic in-memory Model useful for tests and
// examples. It replays Steps in order or, when built with a responder func,
// computes every reply from the request. All requests are recorded.
type ScriptedModel struct {
	mu        sync.Mutex
	info      Info
	steps     []Step
	responder func(req Request) (core.Message, error)
	requests  []Request
}

// NewScriptedModel constructs a ScriptedModel replaying steps.
func NewScriptedModel(steps ...Step) *ScriptedModel {
	return &ScriptedModel{
		info:  Info{Name: "scripted", Provider: "scripted", SupportsTools: true},
		steps: steps,
	}
}

// NewResponderModel constructs a ScriptedModel that delegates every call to fn.
func NewResponderModel(fn func(req Request) (core.Message, error)) *ScriptedModel {
	m := NewScriptedModel()
	m.responder = fn
	return m
}

// Push appends more steps to the script.
func (m *ScriptedModel) Push(steps ...Step) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, steps...)
}

// Generate implements Model.
func (m *ScriptedModel) Generate(ctx context.Context, req Request) (core.Message, error) {
	if err := ctx.Err(); err != nil {
		return core.Message{}, err
	}

	m.mu.Lock()
	m.requests = append(m.requests, Request{
		Instructions: req.Instructions,
		Messages:     core.CloneMessages(req.Messages),
		Tools:        append([]ToolDefinition(nil), req.Tools...),
	})
	responder := m.responder
	var step *Step
	if responder == nil && len(m.steps) > 0 {
		s := m.steps[0]
		m.steps = m.steps[1:]
		step = &s
	}
	m.mu.Unlock()

	if responder != nil {
		msg, err := responder(req)
		if err != nil {
			return core.Message{}, classify(err)
		}
		return CheckOutput(msg)
	}

	if step == nil {
		return core.Message{}, fmt.Errorf("%w: script exhausted", core.ErrModelUnavailable)
	}
	if step.Err != nil {
		return core.Message{}, classify(step.Err)
	}

	return CheckOutput(step.Message)
}

// classify keeps model errors and context errors as is and treats anything
// else as an unavailable provider.
func classify(err error) error {
	switch {
	case errors.Is(err, core.ErrModelUnavailable), errors.Is(err, core.ErrModelMalformedOutput):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return Unavailable("scripted", err)
	}
}

// Requests returns every request received so far.
func (m *ScriptedModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

// Calls returns the number of Generate calls so far.
func (m *ScriptedModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Info implements Model.
func (m *ScriptedModel) Info() Info { return m.info }
