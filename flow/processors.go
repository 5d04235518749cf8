package flow

import (
	"fmt"

	"github.com/hupe1980/chatloop/core"
	internalutil "github.com/hupe1980/chatloop/internal/util"
	"github.com/hupe1980/chatloop/model"
)

// InstructionsProcessor renders the system instructions. The text may be a Go
// text/template evaluated against the session scratchpad.
type InstructionsProcessor struct {
	instructions string
}

// NewInstructionsProcessor creates a new instructions processor.
func NewInstructionsProcessor(instructions string) *InstructionsProcessor {
	return &InstructionsProcessor{instructions: instructions}
}

// Name returns the processor's identifier.
func (p *InstructionsProcessor) Name() string { return "instructions" }

// ProcessRequest sets req.Instructions.
func (p *InstructionsProcessor) ProcessRequest(rc *RequestContext, req *model.Request) error {
	if p.instructions == "" {
		return nil
	}

	var state map[string]any
	if rc.Scope != nil && rc.Scope.Scratchpad != nil {
		state = rc.Scope.Scratchpad.Snapshot()
	}

	rendered, err := internalutil.RenderTemplate(p.instructions, state)
	if err != nil {
		return fmt.Errorf("failed to render instructions: %w", err)
	}

	req.Instructions = rendered
	return nil
}

// ContentsProcessor copies the conversation history into the request, keeping
// at most maxMessages of the most recent messages (0 keeps everything). The
// window always starts at a user message so tool results are never separated
// from the assistant message that requested them.
type ContentsProcessor struct {
	maxMessages int
}

// NewContentsProcessor creates a new contents processor.
func NewContentsProcessor(maxMessages int) *ContentsProcessor {
	return &ContentsProcessor{maxMessages: maxMessages}
}

// Name returns the processor's identifier.
func (p *ContentsProcessor) Name() string { return "contents" }

// ProcessRequest sets req.Messages.
func (p *ContentsProcessor) ProcessRequest(rc *RequestContext, req *model.Request) error {
	req.Messages = core.CloneMessages(Window(rc.History, p.maxMessages))
	return nil
}

// Window returns the most recent part of history holding at most limit
// messages and starting at a user message. When the latest user message is
// further back than limit, the window starts there anyway.
func Window(history []core.Message, limit int) []core.Message {
	if limit <= 0 || len(history) <= limit {
		return history
	}

	start := len(history) - limit
	for i := start; i < len(history); i++ {
		if history[i].Role == core.RoleUser {
			return history[i:]
		}
	}

	for i := start - 1; i >= 0; i-- {
		if history[i].Role == core.RoleUser {
			return history[i:]
		}
	}

	return history
}
