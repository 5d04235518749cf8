package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/chatloop/core"
	"github.com/hupe1980/chatloop/internal/testutil"
)

var _ core.TranscriptStore = (*Store)(nil)

func openTemp(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "db", "chatloop.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore(t *testing.T) {
	testutil.RunStoreSuite(t, func(t *testing.T) core.TranscriptStore { return openTemp(t) })
}

func TestStore_InMemory(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	msgs := testutil.NewTranscriptBuilder().User("hi").Assistant("hello").Build()
	require.NoError(t, store.Save(context.Background(), "s", msgs))

	loaded, err := store.Load(context.Background(), "s")
	require.NoError(t, err)
	assert.Len(t, loaded, 2)
}

func TestStore_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chatloop.db")
	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), "s", testutil.NewTranscriptBuilder().User("persisted").Build()))
	require.NoError(t, store.Close())

	store, err = Open(path)
	require.NoError(t, err)
	defer store.Close()

	loaded, err := store.Load(context.Background(), "s")
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "persisted", loaded[0].Content)
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open("  ")
	assert.Error(t, err)
}
