// Package tool implements the tool calling subsystem of the turn loop: the Tool
// contract, a read-only Registry of declarations and the Executor that turns a
// batch of model-issued tool call requests into exactly one result message each.
package tool

import (
	"encoding/json"
	"fmt"

	"github.com/hupe1980/chatloop/core"
	"github.com/hupe1980/chatloop/internal/util"
)

// Tool defines the interface for extending the assistant with external functions.
//
// Tools are registered in a Registry before a conversation starts. The model
// sees their declarations (name, description, JSON schema) and may request
// calls; the Executor validates arguments against the schema before Call is
// invoked, so implementations receive already-validated arguments.
//
// Tool implementations should:
//   - Provide clear, descriptive names (snake_case) and descriptions
//   - Define a proper JSON schema for parameters
//   - Honour tc.Context() cancellation for long running work
//   - Be safe for concurrent use; the executor may run calls in parallel
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description returns a human-readable description of what this tool does.
	// It is provided to the model to decide when and how to use the tool.
	Description() string

	// Parameters returns a JSON schema describing the expected input format.
	Parameters() map[string]any

	// Call executes the tool. A string result is handed to the model verbatim,
	// any other value is JSON encoded.
	Call(tc *core.ToolContext, args map[string]any) (any, error)
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// Error codes carried by tool result faults.
const (
	CodeUnknownTool      = "UNKNOWN_TOOL"
	CodeInvalidArguments = "INVALID_ARGUMENTS"
	CodeExecutionError   = "EXECUTION_ERROR"
	CodePanic            = "PANIC"
	CodeTimeout          = "TIMEOUT"
	CodeCancelled        = "CANCELLED"
)

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// Unwrap maps the code onto the core sentinel errors so callers can use errors.Is.
func (e *ToolError) Unwrap() error {
	switch e.Code {
	case CodeUnknownTool:
		return core.ErrUnknownTool
	case CodeInvalidArguments:
		return core.ErrInvalidArguments
	default:
		return core.ErrToolExecution
	}
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}

// Fault converts the error into the structured fault recorded on the result message.
func (e *ToolError) Fault() core.ToolFault {
	return core.ToolFault{Code: e.Code, Message: e.Message}
}

// Payload renders the JSON error payload the model reads as tool result content.
func (e *ToolError) Payload() string {
	payload := struct {
		Error struct {
			Code    string `json:"code"`
			Tool    string `json:"tool"`
			Message string `json:"message"`
			Details any    `json:"details,omitempty"`
		} `json:"error"`
	}{}
	payload.Error.Code = e.Code
	payload.Error.Tool = e.Tool
	payload.Error.Message = e.Message
	payload.Error.Details = e.Details

	b, err := json.Marshal(payload)
	if err != nil { // unencodable Details
		return fmt.Sprintf(`{"error":{"code":%q}}`, e.Code)
	}
	return string(b)
}

// ResultMessage builds the tool result message answering the call callID.
func (e *ToolError) ResultMessage(callID string) core.Message {
	return core.NewToolFaultMessage(callID, e.Tool, e.Payload(), e.Fault())
}
