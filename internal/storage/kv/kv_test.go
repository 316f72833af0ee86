package kv_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndanilov/cutroom/internal/models"
	"github.com/ndanilov/cutroom/internal/storage/kv"
)

func newDB(t *testing.T) *kv.DB {
	t.Helper()

	db, err := kv.New(filepath.Join(t.TempDir(), "kv.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Stop() })

	return db
}

func TestReopenExistingDatabase(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "kv.db")

	db, err := kv.New(path)
	require.NoError(t, err)

	store := kv.NewStore(db, "projects", kv.JSON[models.Project]())
	require.NoError(t, store.Set(ctx, "p-1", models.Project{ID: "p-1", Name: "kept"}))
	require.NoError(t, db.Stop())

	// second open finds the schema already at the current
	// version and must not fail or lose data
	db, err = kv.New(path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Stop() })

	store = kv.NewStore(db, "projects", kv.JSON[models.Project]())
	got, ok, err := store.Get(ctx, "p-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "kept", got.Name)
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)

	store := kv.NewStore(db, "media-meta-p1", kv.JSON[models.MediaItem]())

	item := models.MediaItem{
		ID:       "m-1",
		Type:     models.MediaVideo,
		Name:     gofakeit.MovieName(),
		Width:    1920,
		Height:   1080,
		Duration: 12.5,
	}

	require.NoError(t, store.Set(ctx, item.ID, item))

	got, ok, err := store.Get(ctx, item.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, item, got)
}

func TestGetAbsent(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)

	store := kv.NewStore(db, "projects", kv.JSON[models.Project]())

	_, ok, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSetOverwrites(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)

	store := kv.NewStore(db, "projects", kv.JSON[models.Project]())

	require.NoError(t, store.Set(ctx, "p-1", models.Project{ID: "p-1", Name: "first"}))
	require.NoError(t, store.Set(ctx, "p-1", models.Project{ID: "p-1", Name: "second"}))

	got, ok, err := store.Get(ctx, "p-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "second", got.Name)
}

func TestRemoveIdempotent(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)

	store := kv.NewStore(db, "projects", kv.JSON[models.Project]())

	require.NoError(t, store.Set(ctx, "p-1", models.Project{ID: "p-1"}))
	require.NoError(t, store.Remove(ctx, "p-1"))
	require.NoError(t, store.Remove(ctx, "p-1"))

	_, ok, err := store.Get(ctx, "p-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNamespaceIsolation(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)

	first := kv.NewStore(db, "media-meta-p1", kv.JSON[models.MediaItem]())
	second := kv.NewStore(db, "media-meta-p2", kv.JSON[models.MediaItem]())

	require.NoError(t, first.Set(ctx, "m-1", models.MediaItem{ID: "m-1"}))
	require.NoError(t, second.Set(ctx, "m-2", models.MediaItem{ID: "m-2"}))

	keys, err := first.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"m-1"}, keys)

	require.NoError(t, first.Clear(ctx))

	keys, err = first.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)

	_, ok, err := second.Get(ctx, "m-2")
	require.NoError(t, err)
	assert.True(t, ok, "clear must not cross namespaces")
}

func TestBlobCodecRoundTrip(t *testing.T) {
	codec := kv.Blobs()

	blob := models.Blob{
		Name:    "clip.mp4",
		MIME:    "video/mp4",
		ModTime: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		Data:    []byte{0x00, 0x01, 0xFF, 0xFE, 0x42},
	}

	raw, err := codec.Encode(blob)
	require.NoError(t, err)

	got, err := codec.Decode(raw)
	require.NoError(t, err)

	assert.Equal(t, blob.Name, got.Name)
	assert.Equal(t, blob.MIME, got.MIME)
	assert.True(t, blob.ModTime.Equal(got.ModTime))
	assert.Equal(t, blob.Data, got.Data)
}

func TestBlobCodecRejectsTruncated(t *testing.T) {
	codec := kv.Blobs()

	_, err := codec.Decode([]byte{0x00})
	assert.Error(t, err)
}

func TestBlobStoreLargePayload(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)

	store := kv.NewStore(db, "media-blob-p1", kv.Blobs())

	data := make([]byte, 1<<20)
	for i := range data {
		data[i] = byte(i % 251)
	}

	blob := models.Blob{
		Name:    "big.mp4",
		MIME:    "video/mp4",
		ModTime: time.Now().UTC().Truncate(time.Millisecond),
		Data:    data,
	}

	require.NoError(t, store.Set(ctx, "m-1", blob))

	got, ok, err := store.Get(ctx, "m-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, blob.Data, got.Data)
	assert.Equal(t, blob.Name, got.Name)
}
