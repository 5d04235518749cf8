package tool

import (
	"time"

	"github.com/hupe1980/chatloop/core"
	"github.com/hupe1980/chatloop/internal/util"
)

// FunctionTool is a generic adapter that exposes a plain Go function as a tool.
//
// Responsibilities:
//   - Holds the JSON schema of the accepted arguments (validated by the Executor)
//   - Invokes the wrapped function with a *core.ToolContext giving access to the
//     session scratchpad, logging and the tool call id
//
// A FunctionTool has no internal mutable state after construction and is safe
// for concurrent use by multiple goroutines.
type FunctionTool struct {
	name        string
	description string
	parameters  map[string]any
	fn          func(tc *core.ToolContext, args map[string]any) (any, error)
}

// NewFunctionTool constructs a FunctionTool from explicit schema and function.
//
// Example:
//
//	sumTool := NewFunctionTool(
//	  "calculate_sum",
//	  "Calculate the sum of two numbers",
//	  map[string]any{
//	    "type": "object",
//	    "properties": map[string]any{
//	      "a": map[string]any{"type": "number"},
//	      "b": map[string]any{"type": "number"},
//	    },
//	    "required": []string{"a", "b"},
//	  },
//	  func(tc *core.ToolContext, args map[string]any) (any, error) {
//	    return args["a"].(float64) + args["b"].(float64), nil
//	  },
//	)
func NewFunctionTool(
	name, description string,
	parameters map[string]any,
	fn func(tc *core.ToolContext, args map[string]any) (any, error),
) *FunctionTool {
	return &FunctionTool{
		name:        name,
		description: description,
		parameters:  parameters,
		fn:          fn,
	}
}

// NewFunctionToolFromStruct derives the parameter schema from a struct using
// reflection (see util.CreateSchema for the supported tags).
//
// Example:
//
//	type WeatherArgs struct {
//	  City string `json:"city" description:"City name"`
//	}
//
//	weather := NewFunctionToolFromStruct("get_weather", "Current weather", WeatherArgs{}, fn)
func NewFunctionToolFromStruct(
	name, description string,
	structType any,
	fn func(tc *core.ToolContext, args map[string]any) (any, error),
) *FunctionTool {
	return NewFunctionTool(name, description, util.CreateSchema(structType), fn)
}

// Name returns the unique tool name used in declarations and routing.
func (t *FunctionTool) Name() string { return t.name }

// Description returns the short natural language description exposed to models.
func (t *FunctionTool) Description() string { return t.description }

// Parameters returns the JSON schema describing expected arguments.
func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

// Call invokes the wrapped function.
func (t *FunctionTool) Call(tc *core.ToolContext, args map[string]any) (any, error) {
	start := time.Now()
	tc.LogDebug("tool.function.start", "tool", t.name, "tool_call_id", tc.ToolCallID())

	result, err := t.fn(tc, args)
	if err != nil {
		return nil, err
	}

	tc.LogDebug("tool.function.success", "tool", t.name, "duration_ms", time.Since(start).Milliseconds())

	return result, nil
}
