package memurl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndanilov/cutroom/internal/models"
)

func TestRegistry(t *testing.T) {
	r := New()

	blob := models.Blob{Name: "clip.mp4", MIME: "video/mp4", Data: []byte("payload")}

	url := r.Create(blob)
	require.Contains(t, url, "mem://")
	assert.Equal(t, 1, r.Len())

	got, ok := r.Resolve(url)
	require.True(t, ok)
	assert.Equal(t, blob.Data, got.Data)

	r.Revoke(url)
	_, ok = r.Resolve(url)
	assert.False(t, ok)
	assert.Zero(t, r.Len())
}

func TestRevokeForeignURL(t *testing.T) {
	r := New()
	r.Create(models.Blob{Data: []byte("x")})

	r.Revoke("https://example.com/file")
	assert.Equal(t, 1, r.Len())
}

func TestHandlesAreUnique(t *testing.T) {
	r := New()

	first := r.Create(models.Blob{Data: []byte("a")})
	second := r.Create(models.Blob{Data: []byte("a")})

	assert.NotEqual(t, first, second)
}
