package datastore

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *LocalStore {
	t.Helper()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestLocalStoreBrowse(t *testing.T) {
	ctx := context.Background()

	t.Run("empty root", func(t *testing.T) {
		store := newTestStore(t)
		listing, err := store.Browse(ctx, "")
		require.NoError(t, err)
		assert.Empty(t, listing.Entries)
	})

	t.Run("missing directory", func(t *testing.T) {
		store := newTestStore(t)
		_, err := store.Browse(ctx, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("lists files and directories", func(t *testing.T) {
		store := newTestStore(t)
		require.NoError(t, store.CreateDir(ctx, "maps"))
		_, err := store.Upload(ctx, "maps/a.png", bytes.NewReader([]byte("img")))
		require.NoError(t, err)

		root, err := store.Browse(ctx, "")
		require.NoError(t, err)
		require.Len(t, root.Entries, 1)
		assert.True(t, root.Entries[0].IsDir)

		maps, err := store.Browse(ctx, "maps")
		require.NoError(t, err)
		require.Len(t, maps.Entries, 1)
		assert.Equal(t, "a.png", maps.Entries[0].Name)
		assert.False(t, maps.Entries[0].IsDir)
		assert.Equal(t, int64(3), maps.Entries[0].Size)
	})
}

func TestLocalStoreCreateDir(t *testing.T) {
	ctx := context.Background()

	t.Run("create and recreate", func(t *testing.T) {
		store := newTestStore(t)
		require.NoError(t, store.CreateDir(ctx, "maps"))
		assert.ErrorIs(t, store.CreateDir(ctx, "maps"), ErrExists)
	})

	t.Run("reserved and malformed names", func(t *testing.T) {
		store := newTestStore(t)
		for _, name := range []string{"con", "NUL", "lpt1", "com3.txt", "trailing.", "trailing ", "que?stion", "st*ar"} {
			assert.ErrorIs(t, store.CreateDir(ctx, name), ErrInvalidName, "name %q", name)
		}
	})

	t.Run("file squatting on the name", func(t *testing.T) {
		store := newTestStore(t)
		_, err := store.Upload(ctx, "maps", bytes.NewReader([]byte("a file")))
		require.NoError(t, err)
		assert.ErrorIs(t, store.CreateDir(ctx, "maps"), ErrInvalidName)
	})
}

func TestLocalStoreUploadEtag(t *testing.T) {
	ctx := context.Background()

	t.Run("upload returns the etag of the stored bytes", func(t *testing.T) {
		store := newTestStore(t)
		content := []byte("asset content")

		uploaded, err := store.Upload(ctx, "a.bin", bytes.NewReader(content))
		require.NoError(t, err)

		queried, err := store.Etag(ctx, "a.bin")
		require.NoError(t, err)
		assert.Equal(t, uploaded, queried)
	})

	t.Run("replacement changes the etag", func(t *testing.T) {
		store := newTestStore(t)
		first, err := store.Upload(ctx, "a.bin", bytes.NewReader([]byte("v1")))
		require.NoError(t, err)
		second, err := store.Upload(ctx, "a.bin", bytes.NewReader([]byte("v2 different")))
		require.NoError(t, err)
		assert.NotEqual(t, first, second)
	})

	t.Run("etag of a missing file", func(t *testing.T) {
		store := newTestStore(t)
		_, err := store.Etag(ctx, "ghost.bin")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("no temp file remains after upload", func(t *testing.T) {
		store := newTestStore(t)
		_, err := store.Upload(ctx, "a.bin", bytes.NewReader([]byte("content")))
		require.NoError(t, err)

		entries, err := os.ReadDir(store.Root())
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "a.bin", entries[0].Name())
	})
}

func TestLocalStoreOpen(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	content := []byte("round trip")
	_, err := store.Upload(ctx, "dir-less.bin", bytes.NewReader(content))
	require.NoError(t, err)

	rc, err := store.Open(ctx, "dir-less.bin")
	require.NoError(t, err)
	defer rc.Close()

	read, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, content, read)

	_, err = store.Open(ctx, "missing.bin")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStorePathConfinement(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	outside := filepath.Join(filepath.Dir(store.Root()), "escape.txt")
	_, err := store.Upload(ctx, "../escape.txt", bytes.NewReader([]byte("nope")))
	require.NoError(t, err, "traversal is cleaned, not rejected")

	_, statErr := os.Stat(outside)
	assert.True(t, os.IsNotExist(statErr), "upload must stay inside the root")

	_, err = store.Etag(ctx, "escape.txt")
	assert.NoError(t, err, "the cleaned path lands at the root instead")
}
