package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/chatloop/core"
)

// RunStoreSuite checks the core.TranscriptStore contract against the store
// returned by newStore (called once per subtest).
func RunStoreSuite(t *testing.T, newStore func(t *testing.T) core.TranscriptStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("unknown session", func(t *testing.T) {
		_, err := newStore(t).Load(ctx, "missing")
		assert.ErrorIs(t, err, core.ErrSessionNotFound)
	})

	t.Run("round trip", func(t *testing.T) {
		store := newStore(t)
		msgs := NewTranscriptBuilder().
			User("Trains from Delhi to Mumbai?").
			ToolCall("c1", "search_trains_between_stations", map[string]any{"source": "NDLS", "destination": "BCT"}).
			ToolCall("c2", "check_seat_availability", nil).
			ToolResult("c1", "search_trains_between_stations", `[{"train_number":"12952"}]`).
			ToolFault("c2", "check_seat_availability", "EXECUTION_ERROR", "quota closed").
			Assistant("Train 12952 runs daily.").
			Build()
		msgs[len(msgs)-1].Synthesized = true

		require.NoError(t, store.Save(ctx, "s1", msgs))

		loaded, err := store.Load(ctx, "s1")
		require.NoError(t, err)
		require.Len(t, loaded, len(msgs))
		for i := range msgs {
			assert.Equal(t, msgs[i].ID, loaded[i].ID)
			assert.Equal(t, msgs[i].Role, loaded[i].Role)
			assert.Equal(t, msgs[i].Content, loaded[i].Content)
			assert.Equal(t, msgs[i].ToolCallID, loaded[i].ToolCallID)
			assert.Equal(t, msgs[i].Name, loaded[i].Name)
			assert.Equal(t, msgs[i].Fault, loaded[i].Fault)
			assert.Equal(t, msgs[i].Synthesized, loaded[i].Synthesized)
			assert.True(t, msgs[i].Timestamp.Equal(loaded[i].Timestamp))
		}
		require.Len(t, loaded[1].ToolCalls, 2)
		assert.Equal(t, "c1", loaded[1].ToolCalls[0].ID)
		assert.Equal(t, "NDLS", loaded[1].ToolCalls[0].Arguments["source"])

		// loaded history is a valid transcript
		_, err = core.NewTranscript(loaded...)
		assert.NoError(t, err)
	})

	t.Run("save replaces", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Save(ctx, "s1", NewTranscriptBuilder().User("a").Assistant("b").Build()))
		require.NoError(t, store.Save(ctx, "s1", NewTranscriptBuilder().User("c").Build()))

		loaded, err := store.Load(ctx, "s1")
		require.NoError(t, err)
		require.Len(t, loaded, 1)
		assert.Equal(t, "c", loaded[0].Content)
	})

	t.Run("empty transcript", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Save(ctx, "empty", nil))
		loaded, err := store.Load(ctx, "empty")
		require.NoError(t, err)
		assert.Empty(t, loaded)
	})

	t.Run("list and delete", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Save(ctx, "a", NewTranscriptBuilder().User("1").Build()))
		require.NoError(t, store.Save(ctx, "b", NewTranscriptBuilder().User("2").Build()))

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"a", "b"}, ids)

		require.NoError(t, store.Delete(ctx, "a"))
		require.NoError(t, store.Delete(ctx, "never-existed"))

		ids, err = store.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, ids)

		_, err = store.Load(ctx, "a")
		assert.ErrorIs(t, err, core.ErrSessionNotFound)
	})
}
