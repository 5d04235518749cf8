package extract

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/chatloop/core"
	"github.com/hupe1980/chatloop/model"
	"github.com/hupe1980/chatloop/tool"
)

type journey struct {
	JourneyDate     string `json:"journey_date" description:"date of the journey"`
	DestinationName string `json:"destination_name" description:"destination of the journey"`
	SourceName      string `json:"source_name" description:"source or origin of the journey"`
}

func newTool(t *testing.T, m model.Model) *Tool {
	t.Helper()
	x, err := New("extract_journey", "Extract journey details", m, journey{}, func(o *Options) {
		o.Now = func() time.Time { return time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC) }
	})
	require.NoError(t, err)
	return x
}

func toolContext() *core.ToolContext {
	return core.NewToolContext(context.Background(), nil, "c1", "extract_journey")
}

func TestExtract_Success(t *testing.T) {
	m := model.NewScriptedModel(model.Reply("```json\n" +
		`{"journey_date":"2026-11-02","destination_name":"Mumbai","source_name":"Delhi"}` +
		"\n```"))
	x := newTool(t, m)

	out, err := x.Extract(toolContext(), "Trains from Delhi to Mumbai on 2nd November?")
	require.NoError(t, err)
	assert.Equal(t, "Mumbai", out["destination_name"])
	assert.Equal(t, "Delhi", out["source_name"])

	req := m.Requests()[0]
	assert.Contains(t, req.Instructions, "2026-mm-dd")
	assert.Contains(t, req.Instructions, `"destination_name"`)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, "Trains from Delhi to Mumbai on 2nd November?", req.Messages[0].Content)
}

func TestExtract_RetriesWithValidationFeedback(t *testing.T) {
	m := model.NewScriptedModel(
		model.Reply(`{"journey_date":"2026-11-02","source_name":"Delhi"}`),
		model.Reply(`{"journey_date":"2026-11-02","destination_name":"Mumbai","source_name":"Delhi"}`),
	)
	x := newTool(t, m)

	out, err := x.Extract(toolContext(), "Delhi to Mumbai")
	require.NoError(t, err)
	assert.Equal(t, "Mumbai", out["destination_name"])

	second := m.Requests()[1]
	require.Len(t, second.Messages, 3)
	assert.Equal(t, core.RoleUser, second.Messages[2].Role)
	assert.Contains(t, second.Messages[2].Content, "destination_name")
}

func TestExtract_GivesUpAfterMaxAttempts(t *testing.T) {
	m := model.NewScriptedModel(model.Reply("not json"), model.Reply("still not json"))
	x := newTool(t, m)

	_, err := x.Extract(toolContext(), "Delhi to Mumbai")
	var te *tool.ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, tool.CodeExecutionError, te.Code)
	assert.Equal(t, 2, m.Calls())
}

func TestExtract_ModelError(t *testing.T) {
	m := model.NewScriptedModel(model.Fail(core.ErrModelUnavailable))
	_, err := newTool(t, m).Extract(toolContext(), "x")
	assert.True(t, errors.Is(err, core.ErrModelUnavailable))
}

func TestExtract_AsToolInTurn(t *testing.T) {
	extractor := model.NewScriptedModel(model.Reply(`{"journey_date":"2026-11-02","destination_name":"Mumbai","source_name":"Delhi"}`))
	x := newTool(t, extractor)

	results := tool.NewExecutor().Execute(context.Background(), nil, []core.ToolCallRequest{
		{ID: "c1", Name: "extract_journey", Arguments: map[string]any{"text": "Delhi to Mumbai on 2 Nov"}},
		{ID: "c2", Name: "extract_journey", Arguments: map[string]any{}},
	}, tool.MustRegistry(x))

	require.Len(t, results, 2)
	assert.False(t, results[0].IsFault())
	assert.JSONEq(t, `{"journey_date":"2026-11-02","destination_name":"Mumbai","source_name":"Delhi"}`, results[0].Content)
	assert.Equal(t, tool.CodeInvalidArguments, results[1].Fault.Code)
}

func TestNew_RejectsBadSchema(t *testing.T) {
	_, err := New("x", "x", model.NewScriptedModel(), map[string]any{"type": 42})
	assert.Error(t, err)
}

func TestStripFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFence(`  {"a":1} `))
}
