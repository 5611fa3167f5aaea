package sync

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMappingStoreLoad(t *testing.T) {
	t.Run("missing file starts fresh", func(t *testing.T) {
		m := NewMappingStore(newMemStore(), 1)
		require.NoError(t, m.Load(context.Background()))
		assert.Equal(t, 0, m.Count())
	})

	t.Run("empty file starts fresh", func(t *testing.T) {
		store := newMemStore()
		store.put(MappingFileName, []byte("  \n"))
		m := NewMappingStore(store, 1)
		require.NoError(t, m.Load(context.Background()))
		assert.Equal(t, 0, m.Count())
	})

	t.Run("corrupt file is fatal", func(t *testing.T) {
		store := newMemStore()
		store.put(MappingFileName, []byte("{not json"))
		m := NewMappingStore(store, 1)
		assert.Error(t, m.Load(context.Background()))
	})

	t.Run("rows with empty names are dropped", func(t *testing.T) {
		store := newMemStore()
		store.put(MappingFileName, []byte(`{
			"assets": [
				{"forgeName": "", "forgeHash": "x"},
				{"forgeName": "maps/a.png", "forgeHash": "h1", "localEtag": "e1", "localHash": "h1"}
			],
			"etags": [
				{"hash": "", "etags": ["zzz"]},
				{"hash": "h1", "etags": ["e1", ""]}
			]
		}`))
		m := NewMappingStore(store, 1)
		require.NoError(t, m.Load(context.Background()))

		assert.Equal(t, 1, m.Count())
		assert.NotNil(t, m.Row("maps/a.png"))
		assert.True(t, m.HasEtag("h1", "e1"))
		assert.False(t, m.HasEtag("h1", ""))
	})
}

func TestMappingStoreRecord(t *testing.T) {
	t.Run("first record sets both dates", func(t *testing.T) {
		m := NewMappingStore(newMemStore(), 1)
		row := m.Record("a.png", "h1", "e1", "h1")
		assert.Equal(t, "a.png", row.ForgeName)
		assert.False(t, row.FirstSyncDate.IsZero())
		assert.Equal(t, row.FirstSyncDate, row.LastSyncDate)
	})

	t.Run("re-record preserves first sync date", func(t *testing.T) {
		m := NewMappingStore(newMemStore(), 1)
		first := m.Record("a.png", "h1", "e1", "h1")
		time.Sleep(2 * time.Millisecond)
		second := m.Record("a.png", "h2", "e2", "h2")

		assert.Equal(t, first.FirstSyncDate, second.FirstSyncDate)
		assert.True(t, second.LastSyncDate.After(first.LastSyncDate))
		assert.Equal(t, "h2", second.ForgeHash)
		assert.Equal(t, "e2", second.LocalEtag)
	})

	t.Run("record indexes etags under both hashes", func(t *testing.T) {
		m := NewMappingStore(newMemStore(), 1)
		m.Record("a.png", "remoteHash", "etag1", "localHash")
		assert.True(t, m.HasEtag("remoteHash", "etag1"))
		assert.True(t, m.HasEtag("localHash", "etag1"))
	})

	t.Run("row returns a copy", func(t *testing.T) {
		m := NewMappingStore(newMemStore(), 1)
		m.Record("a.png", "h1", "e1", "h1")

		row := m.Row("a.png")
		row.ForgeHash = "tampered"
		assert.Equal(t, "h1", m.Row("a.png").ForgeHash)
	})

	t.Run("unknown row is nil", func(t *testing.T) {
		m := NewMappingStore(newMemStore(), 1)
		assert.Nil(t, m.Row("nope"))
	})
}

func TestMappingStoreSerialize(t *testing.T) {
	t.Run("sorted output", func(t *testing.T) {
		m := NewMappingStore(newMemStore(), 1)
		m.Record("z.png", "h3", "e3", "h3")
		m.Record("a.png", "h1", "e1", "h1")
		m.Record("m.png", "h2", "e2", "h2")

		doc := m.Serialize()
		require.Len(t, doc.Assets, 3)
		assert.Equal(t, "a.png", doc.Assets[0].ForgeName)
		assert.Equal(t, "m.png", doc.Assets[1].ForgeName)
		assert.Equal(t, "z.png", doc.Assets[2].ForgeName)
	})

	t.Run("save twice produces identical bytes", func(t *testing.T) {
		store := newMemStore()
		m := NewMappingStore(store, 1)
		m.Record("b.png", "h2", "e2", "h2")
		m.Record("a.png", "h1", "e1", "h1")
		m.AddEtag("h1", "other-etag")

		ctx := context.Background()
		require.NoError(t, m.Save(ctx))
		first, ok := store.content(MappingFileName)
		require.True(t, ok)

		require.NoError(t, m.Save(ctx))
		second, _ := store.content(MappingFileName)
		assert.True(t, bytes.Equal(first, second))
	})
}

func TestMappingStoreRoundTrip(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	m := NewMappingStore(store, 1)
	m.Record("maps/a.png", "h1", "e1", "h1")
	m.Record("tokens/orc.png", "h2", "e2", "localH2")
	m.AddEtag("h1", "alternate")
	require.NoError(t, m.Save(ctx))

	reloaded := NewMappingStore(store, 1)
	require.NoError(t, reloaded.Load(ctx))

	assert.Equal(t, 2, reloaded.Count())
	row := reloaded.Row("tokens/orc.png")
	require.NotNil(t, row)
	assert.Equal(t, "h2", row.ForgeHash)
	assert.Equal(t, "e2", row.LocalEtag)
	assert.Equal(t, "localH2", row.LocalHash)
	assert.True(t, reloaded.HasEtag("h1", "e1"))
	assert.True(t, reloaded.HasEtag("h1", "alternate"))
	assert.True(t, reloaded.HasEtag("localH2", "e2"))
}
