package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/hupe1980/chatloop/core"
	"github.com/hupe1980/chatloop/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestModel(t *testing.T, handler http.HandlerFunc) *Model {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewModel(func(o *Options) {
		o.APIKey = "test"
		o.BaseURL = srv.URL + "/"
		o.RequestOptions = []option.RequestOption{option.WithMaxRetries(0)}
	})
}

func TestGenerate_ToolUse(t *testing.T) {
	var body map[string]any
	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1", "type": "message", "role": "assistant", "model": "claude",
			"content": [
				{"type": "text", "text": "Let me check."},
				{"type": "tool_use", "id": "tu_1", "name": "get_weather", "input": {"city": "Paris"}}
			],
			"stop_reason": "tool_use",
			"usage": {"input_tokens": 1, "output_tokens": 1}
		}`))
	})

	history := []core.Message{
		core.NewUserMessage("time?"),
		core.NewAssistantMessage("", core.ToolCallRequest{ID: "t0", Name: "get_time", Arguments: map[string]any{}}),
		core.NewToolResultMessage("t0", "get_time", "12:00"),
		core.NewAssistantMessage("noon"),
		core.NewUserMessage("Weather in Paris?"),
	}

	msg, err := m.Generate(context.Background(), model.Request{
		Instructions: "be brief",
		Messages:     history,
		Tools: []model.ToolDefinition{model.NewToolDefinition("get_weather", "weather", map[string]any{
			"type":       "object",
			"properties": map[string]any{"city": map[string]any{"type": "string"}},
			"required":   []any{"city"},
		})},
	})
	require.NoError(t, err)
	assert.Equal(t, "Let me check.", msg.Content)
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "tu_1", msg.ToolCalls[0].ID)
	assert.Equal(t, "Paris", msg.ToolCalls[0].Arguments["city"])

	msgs := body["messages"].([]any)
	require.Len(t, msgs, 5)
	assert.Equal(t, "user", msgs[2].(map[string]any)["role"])
	assert.NotEmpty(t, body["system"])
	assert.Len(t, body["tools"], 1)
}

func TestGenerate_Unavailable(t *testing.T) {
	m := newTestModel(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"type":"error","error":{"type":"api_error","message":"down"}}`, http.StatusInternalServerError)
	})

	_, err := m.Generate(context.Background(), model.Request{Messages: []core.Message{core.NewUserMessage("x")}})
	assert.ErrorIs(t, err, core.ErrModelUnavailable)
}

func TestRequiredFields(t *testing.T) {
	assert.Equal(t, []string{"a"}, requiredFields([]string{"a"}))
	assert.Equal(t, []string{"a", "b"}, requiredFields([]any{"a", 1, "b"}))
	assert.Nil(t, requiredFields(nil))
}
