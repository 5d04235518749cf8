package cli

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/chatloop/config"
	"github.com/hupe1980/chatloop/core"
	"github.com/hupe1980/chatloop/model"
)

func testApp(t *testing.T, m model.Model) *app {
	t.Helper()
	t.Chdir(t.TempDir())
	for _, k := range []string{"CHATLOOP_PROVIDER", "CHATLOOP_STORE", "CHATLOOP_STORE_PATH", "RAPIDAPI_KEY", "CHATLOOP_SEARCH_BACKEND"} {
		t.Setenv(k, "")
	}

	a := newApp()
	a.newModel = func(*config.Config) (model.Model, error) { return m, nil }
	return a
}

func execute(t *testing.T, a *app, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(a)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestAsk(t *testing.T) {
	m := model.NewScriptedModel(
		model.Delegate(core.ToolCallRequest{ID: "c1", Name: "unknown_tool"}),
		model.Reply("Paris is sunny."),
	)
	out, err := execute(t, testApp(t, m), "ask", "--trace", "weather", "in", "Paris?")
	require.NoError(t, err)
	assert.Contains(t, out, "Paris is sunny.")
	assert.Contains(t, out, "UNKNOWN_TOOL")
	assert.Equal(t, "weather in Paris?", m.Requests()[0].Messages[0].Content)
}

func TestAsk_ModelFailure(t *testing.T) {
	m := model.NewScriptedModel(model.Fail(core.ErrModelUnavailable))
	_, err := execute(t, testApp(t, m), "ask", "hi")
	assert.ErrorIs(t, err, core.ErrModelUnavailable)
}

func TestTools(t *testing.T) {
	a := testApp(t, model.NewScriptedModel())

	out, err := execute(t, a, "tools")
	require.NoError(t, err)
	assert.Contains(t, out, "google_search")
	assert.NotContains(t, out, "search_trains_between_stations")

	t.Setenv("RAPIDAPI_KEY", "rapid")
	out, err = execute(t, a, "tools")
	require.NoError(t, err)
	assert.Contains(t, out, "search_trains_between_stations")
	assert.Contains(t, out, "check_seat_availability")
	assert.Contains(t, out, "extract_journey")
}

func TestConfigShow(t *testing.T) {
	a := testApp(t, model.NewScriptedModel())
	t.Setenv("RAPIDAPI_KEY", "rapid-secret-1234")

	out, err := execute(t, a, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "max_rounds: 10")
	assert.Contains(t, out, "****1234")
	assert.NotContains(t, out, "rapid-secret")
}

func TestSessions_PersistAcrossInvocations(t *testing.T) {
	m := model.NewScriptedModel(model.Reply("first"), model.Reply("second"))
	a := testApp(t, m)
	t.Setenv("CHATLOOP_STORE", "sqlite")
	t.Setenv("CHATLOOP_STORE_PATH", filepath.Join(t.TempDir(), "chat.db"))

	_, err := execute(t, a, "ask", "--session", "trip", "one")
	require.NoError(t, err)
	_, err = execute(t, a, "ask", "--session", "trip", "two")
	require.NoError(t, err)
	assert.Len(t, m.Requests()[1].Messages, 3)

	out, err := execute(t, a, "sessions")
	require.NoError(t, err)
	assert.Equal(t, "trip\n", out)

	out, err = execute(t, a, "sessions", "show", "trip")
	require.NoError(t, err)
	assert.Contains(t, out, "second")

	_, err = execute(t, a, "sessions", "delete", "trip")
	require.NoError(t, err)
	out, err = execute(t, a, "sessions")
	require.NoError(t, err)
	assert.Equal(t, "no sessions\n", out)
}

func scriptedInput(lines ...string) prompter {
	return func() (string, error) {
		if len(lines) == 0 {
			return "", io.EOF
		}
		line := lines[0]
		lines = lines[1:]
		return line, nil
	}
}

func TestChatSession(t *testing.T) {
	m := model.NewScriptedModel(model.Reply("Hello!"), model.Fail(core.ErrModelUnavailable), model.Reply("Recovered"))
	a := testApp(t, m)
	rt, err := a.open(io.Discard)
	require.NoError(t, err)
	defer func() { _ = rt.close() }()

	var out bytes.Buffer
	s := &chatSession{
		rt:     rt,
		id:     "repl",
		prompt: scriptedInput("hi", "   ", "again", "again", "quit", "never read"),
		out:    &out,
	}
	require.NoError(t, s.run(context.Background()))

	text := out.String()
	assert.Contains(t, text, greeting)
	assert.Contains(t, text, "Hello!")
	assert.Contains(t, text, "error:")
	assert.Contains(t, text, "Recovered")
	assert.Equal(t, 3, m.Calls())

	conv, err := rt.hub.Open(context.Background(), "repl")
	require.NoError(t, err)
	assert.Len(t, conv.Transcript(), 4)
}

func TestChatSession_ResumedSessionShowsHistory(t *testing.T) {
	m := model.NewScriptedModel(model.Reply("stored answer"))
	a := testApp(t, m)
	rt, err := a.open(io.Discard)
	require.NoError(t, err)
	defer func() { _ = rt.close() }()

	_, err = rt.hub.Submit(context.Background(), "old", "earlier question")
	require.NoError(t, err)

	var out bytes.Buffer
	s := &chatSession{rt: rt, id: "old", prompt: scriptedInput("exit"), out: &out}
	require.NoError(t, s.run(context.Background()))

	assert.NotContains(t, out.String(), greeting)
	assert.True(t, strings.Contains(out.String(), "earlier question"))
}
