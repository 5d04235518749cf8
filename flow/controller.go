package flow

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hupe1980/chatloop/core"
	"github.com/hupe1980/chatloop/logging"
	"github.com/hupe1980/chatloop/model"
	"github.com/hupe1980/chatloop/tool"
)

// DefaultMaxRounds bounds the model calls of one turn.
const DefaultMaxRounds = 10

// DefaultTruncationMessage is the synthesized final answer of a turn that ran
// out of rounds. %d is replaced by the round limit.
const DefaultTruncationMessage = "I had to stop after %d steps without reaching a final answer. " +
	"The results gathered so far are kept; ask me to continue if you need more."

// Options configures a Controller.
type Options struct {
	// MaxRounds is the maximum number of model calls per turn. 0 uses
	// DefaultMaxRounds, a negative value disables the limit.
	MaxRounds int
	// Instructions is the system prompt (text/template over the scratchpad).
	Instructions string
	// MaxHistoryMessages bounds the history sent to the model (0 = all).
	MaxHistoryMessages int
	// TruncationMessage overrides DefaultTruncationMessage.
	TruncationMessage string
	// Executor runs tool calls; defaults to a sequential tool.Executor.
	Executor *tool.Executor
	// RequestProcessors run after the built-in instructions and contents processors.
	RequestProcessors []RequestProcessor
	Hooks             Hooks
	Logger            logging.Logger
}

// Controller drives one turn at a time through the states AwaitingModel,
// ExecutingTools and Done. It holds no per-turn state and may be shared by
// many conversations.
type Controller struct {
	model      model.Model
	registry   *tool.Registry
	processors []RequestProcessor
	opts       Options
}

// NewController creates a controller for m and the tools in registry (nil
// registry means no tools are declared).
func NewController(m model.Model, registry *tool.Registry, optFns ...func(o *Options)) *Controller {
	opts := Options{MaxRounds: DefaultMaxRounds}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxRounds == 0 {
		opts.MaxRounds = DefaultMaxRounds
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Executor == nil {
		logger := opts.Logger
		opts.Executor = tool.NewExecutor(func(o *tool.ExecutorOptions) { o.Logger = logger })
	}
	if opts.TruncationMessage == "" {
		opts.TruncationMessage = DefaultTruncationMessage
	}
	if registry == nil {
		registry = tool.MustRegistry()
	}

	processors := []RequestProcessor{
		NewInstructionsProcessor(opts.Instructions),
		NewContentsProcessor(opts.MaxHistoryMessages),
	}
	processors = append(processors, opts.RequestProcessors...)

	return &Controller{model: m, registry: registry, processors: processors, opts: opts}
}

// Registry returns the tool registry the controller declares to the model.
func (c *Controller) Registry() *tool.Registry { return c.registry }

// Model returns the model port.
func (c *Controller) Model() model.Model { return c.model }

// turn is the mutable state of one Run.
type turn struct {
	history []core.Message // transcript + produced
	result  *core.TurnResult
	limiter *core.RoundLimiter
	pending []core.ToolCallRequest
	final   core.Message
}

func (t *turn) append(msg core.Message) error {
	if err := core.ValidateNext(t.history, msg); err != nil {
		return err
	}
	t.history = append(t.history, msg)
	t.result.Messages = append(t.result.Messages, msg)
	return nil
}

// Run executes one turn. history is the transcript and must end with the user
// message that starts the turn; it is not modified.
//
// The returned TurnResult is never nil. On error it holds the messages
// produced before the failure so the caller can decide what to keep:
//   - *core.TurnFailedError: the model could not produce a message
//   - core.ErrTurnCancelled: ctx ended between rounds or while tools ran;
//     results of an interrupted tool batch are not kept
//
// Reaching the round limit is not an error; the result is Truncated.
func (c *Controller) Run(ctx context.Context, scope *core.ToolScope, history []core.Message) (*core.TurnResult, error) {
	start := time.Now()
	scope = scope.Complete()
	t := &turn{
		history: core.CloneMessages(history),
		result:  &core.TurnResult{},
		limiter: core.NewRoundLimiter(max(c.opts.MaxRounds, 0)),
	}

	err := c.loop(ctx, scope, t)
	t.result.Rounds = t.limiter.Count()

	logging.RecordTurn(c.opts.Logger, t.result.Rounds, len(t.result.ToolInvocations), time.Since(start), t.result.Truncated, err)

	return t.result, err
}

func (c *Controller) loop(ctx context.Context, scope *core.ToolScope, t *turn) error {
	state := StateAwaitingModel

	for {
		if state != StateDone {
			if err := ctx.Err(); err != nil {
				c.opts.Logger.Warn("turn.cancelled", "state", state.String(), "round", t.limiter.Count())
				return fmt.Errorf("%w: %w", core.ErrTurnCancelled, err)
			}
		}

		c.enter(state, t.limiter.Count())

		switch state {
		case StateAwaitingModel:
			next, err := c.awaitModel(ctx, scope, t)
			if err != nil {
				return err
			}
			state = next
		case StateExecutingTools:
			if err := c.executeTools(ctx, scope, t); err != nil {
				return err
			}
			state = StateAwaitingModel
		case StateDone:
			t.result.FinalMessage = t.final
			return nil
		}
	}
}

func (c *Controller) enter(state State, round int) {
	c.opts.Logger.Debug("turn.state.enter", "state", state.String(), "round", round)
	if c.opts.Hooks.OnState != nil {
		c.opts.Hooks.OnState(state, round)
	}
}

func (c *Controller) awaitModel(ctx context.Context, scope *core.ToolScope, t *turn) (State, error) {
	if err := t.limiter.Acquire(); err != nil {
		c.opts.Logger.Warn("turn.budget.exceeded", "max_rounds", c.opts.MaxRounds, "error", err.Error())

		text := strings.ReplaceAll(c.opts.TruncationMessage, "%d", strconv.Itoa(c.opts.MaxRounds))
		msg := core.NewAssistantMessage(text)
		msg.Synthesized = true
		if err := t.append(msg); err != nil {
			return StateDone, err
		}
		t.final = msg
		t.result.Truncated = true
		return StateDone, nil
	}
	round := t.limiter.Count()

	req, err := c.buildRequest(scope, t, round)
	if err != nil {
		return StateDone, err
	}

	info := c.model.Info()
	callStart := time.Now()
	msg, err := c.model.Generate(ctx, req)
	if err == nil {
		msg, err = model.CheckOutput(msg)
	}
	if err == nil {
		if vErr := core.ValidateNext(t.history, msg); vErr != nil {
			err = fmt.Errorf("%w: %w", core.ErrModelMalformedOutput, vErr)
		}
	}

	logging.RecordModelCall(c.opts.Logger, info.Name, round, time.Since(callStart), err)
	if c.opts.Hooks.OnModelCall != nil {
		c.opts.Hooks.OnModelCall(round, msg, err)
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return StateDone, fmt.Errorf("%w: %w", core.ErrTurnCancelled, ctxErr)
		}
		return StateDone, &core.TurnFailedError{Round: round, Cause: err}
	}

	if err := t.append(msg); err != nil {
		return StateDone, &core.TurnFailedError{Round: round, Cause: err}
	}

	if msg.HasToolCalls() {
		t.pending = msg.ToolCalls
		return StateExecutingTools, nil
	}

	t.final = msg
	return StateDone, nil
}

func (c *Controller) buildRequest(scope *core.ToolScope, t *turn, round int) (model.Request, error) {
	req := model.Request{Tools: c.registry.Declarations()}
	rc := &RequestContext{Scope: scope, Round: round, History: t.history}

	for _, p := range c.processors {
		if err := p.ProcessRequest(rc, &req); err != nil {
			return model.Request{}, fmt.Errorf("request processor %s failed: %w", p.Name(), err)
		}
	}

	return req, nil
}

func (c *Controller) executeTools(ctx context.Context, scope *core.ToolScope, t *turn) error {
	requests := t.pending
	t.pending = nil

	results := c.opts.Executor.Execute(ctx, scope, requests, c.registry)
	if err := ctx.Err(); err != nil {
		// The batch is dropped so the calls stay unanswered, as with a cancel between rounds.
		c.opts.Logger.Warn("turn.cancelled", "state", StateExecutingTools.String(), "round", t.limiter.Count(), "dropped_results", len(results))
		return fmt.Errorf("%w: %w", core.ErrTurnCancelled, err)
	}
	if len(results) != len(requests) {
		return fmt.Errorf("%w: executor returned %d results for %d requests", core.ErrToolExecution, len(results), len(requests))
	}

	for i, res := range results {
		if err := t.append(res); err != nil {
			return fmt.Errorf("tool result for %s: %w", requests[i].ID, err)
		}
		inv := core.ToolInvocation{Request: requests[i].Clone(), Result: res}
		t.result.ToolInvocations = append(t.result.ToolInvocations, inv)

		c.opts.Logger.Info("tool.call.executed",
			"tool", res.Name,
			"tool_call_id", res.ToolCallID,
			"fault", res.IsFault(),
		)
		if c.opts.Hooks.OnToolResult != nil {
			c.opts.Hooks.OnToolResult(inv)
		}
	}

	return nil
}
