package tool

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hupe1980/chatloop/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sumArgs struct {
	A float64 `json:"a" description:"First addend"`
	B float64 `json:"b" description:"Second addend"`
}

func sumTool() *FunctionTool {
	return NewFunctionToolFromStruct("sum", "Add numbers", sumArgs{}, func(_ *core.ToolContext, args map[string]any) (any, error) {
		return args["a"].(float64) + args["b"].(float64), nil
	})
}

func TestFunctionTool_Success(t *testing.T) {
	tc := core.NewToolContext(context.Background(), nil, "fc1", "sum")
	result, err := sumTool().Call(tc, map[string]any{"a": 2.0, "b": 3.0})
	require.NoError(t, err)
	assert.Equal(t, 5.0, result)
}

func TestFunctionTool_FromStructSchema(t *testing.T) {
	params := sumTool().Parameters()
	assert.Equal(t, "object", params["type"])
	assert.ElementsMatch(t, []string{"a", "b"}, params["required"])
}

func TestFunctionTool_ErrorPassthrough(t *testing.T) {
	boom := errors.New("boom")
	ft := NewFunctionTool("fail", "Fails", nil, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return nil, boom
	})
	_, err := ft.Call(core.NewToolContext(context.Background(), nil, "fc3", "fail"), nil)
	assert.ErrorIs(t, err, boom)
}

func TestToolErrorFormatting(t *testing.T) {
	err := NewToolError("demo", "something failed", "E123")
	assert.Contains(t, err.Error(), "E123")
	assert.Contains(t, err.Error(), "demo")

	plain := &ToolError{Tool: "demo", Message: "x"}
	assert.Equal(t, "tool error in demo: x", plain.Error())
}

func TestToolError_UnwrapsToSentinels(t *testing.T) {
	assert.ErrorIs(t, NewToolError("x", "m", CodeUnknownTool), core.ErrUnknownTool)
	assert.ErrorIs(t, NewToolError("x", "m", CodeInvalidArguments), core.ErrInvalidArguments)
	assert.ErrorIs(t, NewToolError("x", "m", CodeTimeout), core.ErrToolExecution)
}

func TestToolError_ResultMessage(t *testing.T) {
	msg := NewToolError("lookup", `bad "input"`, CodeInvalidArguments).ResultMessage("call-1")
	assert.Equal(t, core.RoleTool, msg.Role)
	assert.Equal(t, "call-1", msg.ToolCallID)
	assert.Equal(t, "lookup", msg.Name)
	require.True(t, msg.IsFault())
	assert.Equal(t, CodeInvalidArguments, msg.Fault.Code)

	var payload map[string]map[string]string
	require.NoError(t, json.Unmarshal([]byte(msg.Content), &payload))
	assert.Equal(t, map[string]string{
		"code":    CodeInvalidArguments,
		"tool":    "lookup",
		"message": `bad "input"`,
	}, payload["error"])
}
