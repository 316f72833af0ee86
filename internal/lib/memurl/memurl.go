// Package memurl hands out process-lifetime references to
// in-memory binary payloads, the server-side analogue of
// object URLs: renderable handles that are never persisted
// and can be revoked explicitly.
package memurl

import (
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/ndanilov/cutroom/internal/models"
)

const scheme = "mem://"

type Registry struct {
	mu    sync.RWMutex
	blobs map[string]models.Blob
}

func New() *Registry {
	return &Registry{
		blobs: make(map[string]models.Blob),
	}
}

// Create registers a blob and returns its ephemeral handle.
func (r *Registry) Create(blob models.Blob) string {
	url := scheme + uuid.NewString()

	r.mu.Lock()
	r.blobs[url] = blob
	r.mu.Unlock()

	return url
}

// Resolve returns the blob behind a handle.
func (r *Registry) Resolve(url string) (models.Blob, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	blob, ok := r.blobs[url]
	return blob, ok
}

// Revoke drops a handle. No-op for unknown or foreign urls.
func (r *Registry) Revoke(url string) {
	if !strings.HasPrefix(url, scheme) {
		return
	}

	r.mu.Lock()
	delete(r.blobs, url)
	r.mu.Unlock()
}

// Len reports the number of live handles.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.blobs)
}
