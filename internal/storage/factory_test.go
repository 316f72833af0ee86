package storage_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndanilov/cutroom/internal/models"
	"github.com/ndanilov/cutroom/internal/storage"
	"github.com/ndanilov/cutroom/internal/storage/kv"
)

func TestDetect(t *testing.T) {
	caps := storage.Detect(filepath.Join(t.TempDir(), "blobs"))
	assert.True(t, caps.Hierarchical)

	caps = storage.Detect("")
	assert.False(t, caps.Hierarchical)
}

// The fallback blob adapter must be a drop-in substitute for
// the hierarchical one.
func TestMediaBlobsStrategies(t *testing.T) {
	testCases := []struct {
		desc string
		caps storage.Capabilities
	}{
		{desc: "hierarchical", caps: storage.Capabilities{Hierarchical: true}},
		{desc: "fallback", caps: storage.Capabilities{Hierarchical: false}},
	}

	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			ctx := context.Background()

			db, err := kv.New(filepath.Join(t.TempDir(), "kv.db"))
			require.NoError(t, err)
			defer db.Stop()

			factory := storage.NewFactory(db, filepath.Join(t.TempDir(), "blobs"), tC.caps)
			blobs := factory.MediaBlobs("p-1")

			blob := models.Blob{
				Name:    "clip.mp4",
				MIME:    "video/mp4",
				ModTime: time.Now().UTC().Truncate(time.Millisecond),
				Data:    []byte{1, 2, 3, 4},
			}

			require.NoError(t, blobs.Set(ctx, "m-1", blob))

			got, ok, err := blobs.Get(ctx, "m-1")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, blob.Data, got.Data)
			assert.Equal(t, blob.Name, got.Name)

			require.NoError(t, blobs.Remove(ctx, "m-1"))
			_, ok, err = blobs.Get(ctx, "m-1")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}
