package chatloop

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/chatloop/core"
	"github.com/hupe1980/chatloop/flow"
	"github.com/hupe1980/chatloop/model"
	"github.com/hupe1980/chatloop/session"
)

func TestHub_SubmitAndResume(t *testing.T) {
	ctx := context.Background()
	store := session.NewInMemoryStore()
	m := model.NewScriptedModel(model.Reply("hello"), model.Reply("again"))
	hub := New(flow.NewController(m, nil), func(o *Options) { o.Store = store })

	res, err := hub.Submit(ctx, "s1", "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello", res.FinalMessage.Content)

	ids, err := hub.Sessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, ids)

	// a second hub over the same store continues the transcript
	other := New(flow.NewController(m, nil), func(o *Options) { o.Store = store })
	conv, err := other.Open(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, conv.Transcript(), 2)

	_, err = other.Submit(ctx, "s1", "once more")
	require.NoError(t, err)
	assert.Len(t, conv.Transcript(), 4)
}

func TestHub_OpenReturnsSameConversation(t *testing.T) {
	hub := New(flow.NewController(model.NewScriptedModel(), nil))

	a, err := hub.Open(context.Background(), "x")
	require.NoError(t, err)
	b, err := hub.Open(context.Background(), "x")
	require.NoError(t, err)
	assert.Same(t, a, b)

	fresh, err := hub.Open(context.Background(), "")
	require.NoError(t, err)
	assert.NotEmpty(t, fresh.ID())
	assert.NotEqual(t, "x", fresh.ID())
}

func TestHub_CancelRunningTurn(t *testing.T) {
	started := make(chan struct{})
	m := model.NewResponderModel(func(model.Request) (core.Message, error) {
		close(started)
		call := core.ToolCallRequest{ID: "c1", Name: "missing"}
		return core.NewAssistantMessage("", call), nil
	})
	blocked := make(chan struct{})
	controller := flow.NewController(m, nil, func(o *flow.Options) {
		o.Hooks.OnModelCall = func(int, core.Message, error) { <-blocked }
	})
	hub := New(controller)

	errCh := make(chan error, 1)
	go func() {
		_, err := hub.Submit(context.Background(), "s1", "hi")
		errCh <- err
	}()

	<-started
	assert.Equal(t, []string{"s1"}, hub.Active())

	_, err := hub.Submit(context.Background(), "s1", "again")
	assert.ErrorIs(t, err, core.ErrTurnInProgress)

	assert.True(t, hub.Cancel("s1"))
	close(blocked)

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, core.ErrTurnCancelled)
	case <-time.After(2 * time.Second):
		t.Fatal("turn did not stop")
	}

	assert.Empty(t, hub.Active())
	assert.False(t, hub.Cancel("s1"))
}

func TestHub_DeleteAndClose(t *testing.T) {
	ctx := context.Background()
	store := session.NewInMemoryStore()
	hub := New(flow.NewController(model.NewScriptedModel(model.Reply("ok")), nil), func(o *Options) {
		o.Store = store
	})

	_, err := hub.Submit(ctx, "s1", "hi")
	require.NoError(t, err)

	require.NoError(t, hub.Delete(ctx, "s1"))
	_, err = store.Load(ctx, "s1")
	assert.ErrorIs(t, err, core.ErrSessionNotFound)

	hub.Close()
	_, err = hub.Submit(ctx, "s2", "hi")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestHub_DeleteBeforeTurnStartsDoesNotResurrectTranscript(t *testing.T) {
	ctx := context.Background()
	store := session.NewInMemoryStore()
	m := model.NewScriptedModel(model.Reply("first"), model.Reply("second"))
	hub := New(flow.NewController(m, nil), func(o *Options) { o.Store = store })

	_, err := hub.Submit(ctx, "s1", "hi")
	require.NoError(t, err)

	deleted := false
	hub.onOpened = func(id string) {
		if !deleted {
			deleted = true
			require.NoError(t, hub.Delete(ctx, id))
		}
	}

	_, err = hub.Submit(ctx, "s1", "again")
	require.NoError(t, err)

	saved, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.Equal(t, "again", saved[0].Content)
	assert.Equal(t, "second", saved[1].Content)
}

func TestHub_CloseBeforeTurnStartsRejectsTurn(t *testing.T) {
	ctx := context.Background()
	store := session.NewInMemoryStore()
	m := model.NewScriptedModel(model.Reply("never"))
	hub := New(flow.NewController(m, nil), func(o *Options) { o.Store = store })
	hub.onOpened = func(string) { hub.Close() }

	_, err := hub.Submit(ctx, "s1", "hi")
	assert.ErrorIs(t, err, ErrClosed)
	assert.Zero(t, m.Calls())
	assert.Empty(t, hub.Active())

	_, err = store.Load(ctx, "s1")
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
}
