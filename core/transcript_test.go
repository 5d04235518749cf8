package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func weatherCall(id string) ToolCallRequest {
	return ToolCallRequest{ID: id, Name: "get_weather", Arguments: map[string]any{"city": "Paris"}}
}

func TestTranscript_AppendToolRound(t *testing.T) {
	tr, err := NewTranscript(NewUserMessage("What's the weather in Paris?"))
	require.NoError(t, err)

	err = tr.Append(
		NewAssistantMessage("", weatherCall("c1"), weatherCall("c2")),
		NewToolResultMessage("c1", "get_weather", `{"tempC": 18}`),
		NewToolResultMessage("c2", "get_weather", `{"tempC": 18}`),
		NewAssistantMessage("It's 18°C in Paris."),
	)
	require.NoError(t, err)
	assert.Equal(t, 5, tr.Len())

	last, ok := tr.Last()
	require.True(t, ok)
	assert.Equal(t, "It's 18°C in Paris.", last.Content)
}

func TestTranscript_RejectsOrphanAndDuplicateResults(t *testing.T) {
	tr, err := NewTranscript(NewUserMessage("hi"))
	require.NoError(t, err)

	err = tr.Append(NewToolResultMessage("nope", "get_weather", "{}"))
	assert.True(t, errors.Is(err, ErrInvalidMessage))

	require.NoError(t, tr.Append(NewAssistantMessage("", weatherCall("c1")), NewToolResultMessage("c1", "get_weather", "{}")))

	err = tr.Append(NewToolResultMessage("c1", "get_weather", "{}"))
	assert.True(t, errors.Is(err, ErrInvalidMessage), "duplicate result must be rejected")

	// A result after an intervening user message no longer matches the assistant turn.
	require.NoError(t, tr.Append(NewAssistantMessage("", weatherCall("c2")), NewUserMessage("never mind")))
	err = tr.Append(NewToolResultMessage("c2", "get_weather", "{}"))
	assert.True(t, errors.Is(err, ErrInvalidMessage))
}

func TestTranscript_AppendIsAllOrNothing(t *testing.T) {
	tr, err := NewTranscript(NewUserMessage("hi"))
	require.NoError(t, err)

	err = tr.Append(
		NewAssistantMessage("", weatherCall("c1")),
		NewToolResultMessage("other", "get_weather", "{}"),
	)
	require.Error(t, err)
	assert.Equal(t, 1, tr.Len())
}

func TestTranscript_RejectsMalformedMessages(t *testing.T) {
	tr := &Transcript{}
	assert.Error(t, tr.Append(NewSystemMessage("be nice")))
	assert.Error(t, tr.Append(NewAssistantMessage("", weatherCall("dup"), weatherCall("dup"))))
	assert.Error(t, tr.Append(NewAssistantMessage("", ToolCallRequest{Name: "x"})))

	user := NewUserMessage("hi")
	user.ToolCallID = "c1"
	assert.Error(t, tr.Append(user))
	assert.Equal(t, 0, tr.Len())
}

func TestTranscript_MessagesAreCopies(t *testing.T) {
	tr, err := NewTranscript(NewUserMessage("hi"), NewAssistantMessage("", weatherCall("c1")))
	require.NoError(t, err)

	msgs := tr.Messages()
	msgs[0].Content = "changed"
	msgs[1].ToolCalls[0].Arguments["city"] = "Berlin"

	again := tr.Messages()
	assert.Equal(t, "hi", again[0].Content)
	assert.Equal(t, "Paris", again[1].ToolCalls[0].Arguments["city"])
}

func TestPendingToolCalls(t *testing.T) {
	history := []Message{
		NewUserMessage("hi"),
		NewAssistantMessage("", weatherCall("c1"), weatherCall("c2"), weatherCall("c3")),
		NewToolResultMessage("c2", "get_weather", "{}"),
	}
	pending := PendingToolCalls(history)
	require.Len(t, pending, 2)
	assert.Equal(t, "c1", pending[0].ID)
	assert.Equal(t, "c3", pending[1].ID)

	assert.Empty(t, PendingToolCalls([]Message{NewUserMessage("hi")}))
	assert.Empty(t, PendingToolCalls(nil))
}

func TestTurnFailedError_Unwrap(t *testing.T) {
	err := error(&TurnFailedError{Round: 1, Cause: ErrModelUnavailable})
	assert.True(t, errors.Is(err, ErrModelUnavailable))
	assert.True(t, IsTurnFailed(err))
	assert.Contains(t, err.Error(), "round 1")
	assert.False(t, IsTurnFailed(ErrTurnCancelled))
}
