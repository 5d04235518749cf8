package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/chatloop/core"
	"github.com/hupe1980/chatloop/internal/testutil"
)

var (
	_ core.TranscriptStore = (*InMemoryStore)(nil)
	_ core.TranscriptStore = (*FileStore)(nil)
)

func TestInMemoryStore(t *testing.T) {
	testutil.RunStoreSuite(t, func(*testing.T) core.TranscriptStore { return NewInMemoryStore() })
}

func TestInMemoryStore_CopiesOnSave(t *testing.T) {
	store := NewInMemoryStore()
	msgs := testutil.NewTranscriptBuilder().User("hi").Build()
	require.NoError(t, store.Save(context.Background(), "s", msgs))

	msgs[0].Content = "changed"
	loaded, err := store.Load(context.Background(), "s")
	require.NoError(t, err)
	assert.Equal(t, "hi", loaded[0].Content)
}

func TestFileStore(t *testing.T) {
	testutil.RunStoreSuite(t, func(t *testing.T) core.TranscriptStore {
		store, err := NewFileStore(filepath.Join(t.TempDir(), "sessions"))
		require.NoError(t, err)
		return store
	})
}

func TestFileStore_RejectsPathIDs(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	for _, id := range []string{"", "..", "a/b", `a\b`} {
		assert.Error(t, store.Save(context.Background(), id, nil), id)
	}
}

func TestFileStore_IgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".s1-123.tmp"), []byte("x"), 0o644))
	require.NoError(t, store.Save(context.Background(), "s1", nil))

	ids, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, ids)
}

func TestFileStore_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("messages: [unclosed"), 0o644))

	_, err = store.Load(context.Background(), "bad")
	assert.ErrorContains(t, err, "decode transcript")
}
