package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndanilov/cutroom/internal/models"
	"github.com/ndanilov/cutroom/internal/service"
)

type fakeMediaStorage struct {
	items map[string]models.MediaItem
	blobs map[string]models.Blob
}

func newFakeMediaStorage() *fakeMediaStorage {
	return &fakeMediaStorage{
		items: make(map[string]models.MediaItem),
		blobs: make(map[string]models.Blob),
	}
}

func (f *fakeMediaStorage) SaveMediaItem(_ context.Context, _ string, item models.MediaItem, blob models.Blob) error {
	f.items[item.ID] = item
	f.blobs[item.ID] = blob
	return nil
}

func (f *fakeMediaStorage) LoadMediaItem(_ context.Context, _, id string) (models.MediaItem, bool, error) {
	item, ok := f.items[id]
	return item, ok, nil
}

func (f *fakeMediaStorage) LoadProjectMedia(_ context.Context, _ string) ([]models.MediaItem, error) {
	out := make([]models.MediaItem, 0, len(f.items))
	for _, item := range f.items {
		out = append(out, item)
	}
	return out, nil
}

func (f *fakeMediaStorage) DeleteMediaItem(_ context.Context, _, id string) error {
	delete(f.items, id)
	delete(f.blobs, id)
	return nil
}

func newLibrary(t *testing.T, media MediaStorage) *Library {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(log, media, t.TempDir())
}

func TestNewMediaRejectsUnsupportedPayload(t *testing.T) {
	lib := newLibrary(t, newFakeMediaStorage())

	_, err := lib.NewMedia(context.Background(), "p-1", "notes.txt", []byte("just some text"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrMediaUnsupported))
}

func TestMediaNotFound(t *testing.T) {
	lib := newLibrary(t, newFakeMediaStorage())

	_, err := lib.Media(context.Background(), "p-1", "missing")
	assert.ErrorIs(t, err, service.ErrMediaNotFound)
}

func TestSearchMedia(t *testing.T) {
	store := newFakeMediaStorage()
	store.items["1"] = models.MediaItem{ID: "1", Type: models.MediaVideo, Name: "Beach sunset"}
	store.items["2"] = models.MediaItem{ID: "2", Type: models.MediaVideo, Name: "Beach sunrise"}
	store.items["3"] = models.MediaItem{ID: "3", Type: models.MediaAudio, Name: "Beach sunset"}
	store.items["4"] = models.MediaItem{ID: "4", Type: models.MediaImage, Name: "Mountain"}

	lib := newLibrary(t, store)

	t.Run("rank by name", func(t *testing.T) {
		items, err := lib.SearchMedia(context.Background(), "p-1", models.MediaFilter{
			Name: "beach sunset",
			Type: models.MediaVideo,
		})
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, "1", items[0].ID)
		assert.Equal(t, "2", items[1].ID)
	})

	t.Run("type filter", func(t *testing.T) {
		items, err := lib.SearchMedia(context.Background(), "p-1", models.MediaFilter{
			Name: "beach sunset",
			Type: models.MediaAudio,
		})
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "3", items[0].ID)
	})

	t.Run("limit", func(t *testing.T) {
		items, err := lib.SearchMedia(context.Background(), "p-1", models.MediaFilter{
			Name:       "beach sunset",
			MaxRespLen: 1,
		})
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "Beach sunset", items[0].Name)
	})
}

func TestSearchFoldsCase(t *testing.T) {
	store := newFakeMediaStorage()
	store.items["1"] = models.MediaItem{ID: "1", Type: models.MediaVideo, Name: "INTRO"}

	lib := newLibrary(t, store)

	items, err := lib.SearchMedia(context.Background(), "p-1", models.MediaFilter{Name: "intro"})
	require.NoError(t, err)
	require.Len(t, items, 1)
}

func TestDeleteMedia(t *testing.T) {
	store := newFakeMediaStorage()
	store.items["1"] = models.MediaItem{ID: "1", Type: models.MediaVideo, Name: "clip"}

	lib := newLibrary(t, store)

	require.NoError(t, lib.DeleteMedia(context.Background(), "p-1", "1"))
	assert.Empty(t, store.items)
}

func TestTypeFromMIME(t *testing.T) {
	testCases := []struct {
		mime string
		want models.MediaType
	}{
		{mime: "video/mp4", want: models.MediaVideo},
		{mime: "audio/mpeg", want: models.MediaAudio},
		{mime: "image/png", want: models.MediaImage},
		{mime: "application/pdf", want: models.MediaUnknown},
		{mime: "text/plain; charset=utf-8", want: models.MediaUnknown},
	}

	for _, tC := range testCases {
		t.Run(tC.mime, func(t *testing.T) {
			assert.Equal(t, tC.want, typeFromMIME(tC.mime))
		})
	}
}
