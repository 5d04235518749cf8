package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/chatloop/core"
	"github.com/hupe1980/chatloop/logging"
)

// ExecutorOptions configures the default parallel executor.
type ExecutorOptions struct {
	MaxParallel int           // 0 or <1 => no explicit limit (len(requests))
	Timeout     time.Duration // per call; 0 disables the timeout
	Logger      logging.Logger
}

// Executor runs a batch of tool call requests against a Registry.
//
// Contract:
//   - Exactly one result message per request, in request order, with
//     ToolCallID equal to the request id
//   - Failures (unknown tool, invalid arguments, runtime error, panic,
//     timeout, cancellation) become fault results and are never returned as
//     errors
//   - Independent calls may run in parallel up to MaxParallel
type Executor struct {
	opts ExecutorOptions
}

// NewExecutor constructs a new executor.
func NewExecutor(optFns ...func(o *ExecutorOptions)) *Executor {
	opts := ExecutorOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Executor{opts: opts}
}

// Execute runs requests and returns their result messages in request order.
func (e *Executor) Execute(
	ctx context.Context,
	scope *core.ToolScope,
	requests []core.ToolCallRequest,
	registry *Registry,
) []core.Message {
	n := len(requests)
	if n == 0 {
		return nil
	}

	results := make([]core.Message, n)
	scope = scope.Complete()

	// Fast path: single call, execute inline.
	if n == 1 {
		results[0] = e.executeOne(ctx, scope, requests[0], registry)
		return results
	}

	maxPar := e.opts.MaxParallel
	if maxPar <= 0 || maxPar > n {
		maxPar = n
	}

	batchStart := time.Now()

	var g errgroup.Group
	g.SetLimit(maxPar)

	for i := range requests {
		g.Go(func() error {
			results[i] = e.executeOne(ctx, scope, requests[i], registry)
			return nil
		})
	}

	_ = g.Wait() // workers never fail; faults are results

	e.opts.Logger.Debug(
		"tool.batch.complete",
		"count", n,
		"parallelism", maxPar,
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)

	return results
}

func (e *Executor) executeOne(
	ctx context.Context,
	scope *core.ToolScope,
	req core.ToolCallRequest,
	registry *Registry,
) core.Message {
	start := time.Now()

	msg, err := e.run(ctx, scope, req, registry)
	logging.RecordToolCall(e.opts.Logger, req.Name, req.ID, time.Since(start), err)

	return msg
}

func (e *Executor) run(
	ctx context.Context,
	scope *core.ToolScope,
	req core.ToolCallRequest,
	registry *Registry,
) (core.Message, error) {
	if err := ctx.Err(); err != nil {
		return fault(req, CodeCancelled, "cancelled before start: "+err.Error())
	}

	impl, ok := registry.Lookup(req.Name)
	if !ok {
		return fault(req, CodeUnknownTool, fmt.Sprintf("tool %q is not registered", req.Name))
	}

	args := req.Arguments
	if args == nil {
		args = map[string]any{}
	}

	if err := registry.Validate(req.Name, args); err != nil {
		return fault(req, CodeInvalidArguments, err.Error())
	}

	e.opts.Logger.Debug("tool.call.start", "tool", req.Name, "tool_call_id", req.ID)

	result, err := e.call(ctx, scope, impl, req, args)
	if err != nil {
		var toolErr *ToolError
		if errors.As(err, &toolErr) {
			te := *toolErr
			te.Tool = req.Name
			return te.ResultMessage(req.ID), &te
		}
		return fault(req, CodeExecutionError, err.Error())
	}

	content, err := encodeResult(result)
	if err != nil {
		return fault(req, CodeExecutionError, err.Error())
	}

	return core.NewToolResultMessage(req.ID, req.Name, content), nil
}

type callOutcome struct {
	result any
	err    error
}

// call invokes the tool on its own goroutine so a timeout or cancellation is
// reported even when the tool ignores its context. Panics are recovered.
func (e *Executor) call(
	ctx context.Context,
	scope *core.ToolScope,
	impl Tool,
	req core.ToolCallRequest,
	args map[string]any,
) (any, error) {
	callCtx := ctx
	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}

	tc := core.NewToolContext(callCtx, scope, req.ID, req.Name)
	done := make(chan callOutcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				e.opts.Logger.Error("tool.call.panic", "tool", req.Name, "tool_call_id", req.ID, "recover", r, "stack", string(debug.Stack()))
				done <- callOutcome{err: NewToolError(req.Name, fmt.Sprintf("panic: %v", r), CodePanic)}
			}
		}()
		result, err := impl.Call(tc, args)
		done <- callOutcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil && !isToolError(out.err) && callCtx.Err() != nil {
			return nil, contextError(req.Name, ctx, callCtx)
		}
		return out.result, out.err
	case <-callCtx.Done():
		return nil, contextError(req.Name, ctx, callCtx)
	}
}

func contextError(toolName string, parent, callCtx context.Context) *ToolError {
	if parent.Err() != nil {
		return NewToolError(toolName, "cancelled: "+parent.Err().Error(), CodeCancelled)
	}
	return NewToolError(toolName, "timed out: "+callCtx.Err().Error(), CodeTimeout)
}

func isToolError(err error) bool {
	var toolErr *ToolError
	return errors.As(err, &toolErr)
}

func fault(req core.ToolCallRequest, code, message string) (core.Message, error) {
	toolErr := NewToolError(req.Name, message, code)
	return toolErr.ResultMessage(req.ID), toolErr
}

// encodeResult renders a tool result as message content: strings verbatim,
// everything else as JSON.
func encodeResult(result any) (string, error) {
	switch v := result.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case json.RawMessage:
		return string(v), nil
	}

	b, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	return string(b), nil
}
