package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
)

// Process-wide storage layout. Not mutable at runtime.
const (
	NamespaceProjects   = "projects"
	NamespaceThumbnails = "thumbnails"

	// Per-project namespaces, completed as "{base}-{projectID}".
	NamespaceMediaMetaBase = "media-meta"
	NamespaceMediaBlobBase = "media-blob"
	NamespaceTimelineBase  = "timeline"

	// Single record key of a project's timeline snapshot.
	TimelineKey = "timeline"
)

var ErrBackendUnavailable = errors.New("storage backend unavailable")

// Adapter is the uniform key-value persistence contract.
//
// Absence is not an error: Get reports a missing key through
// its bool result, Remove of a missing key is a no-op.
type Adapter[T any] interface {
	Get(ctx context.Context, key string) (T, bool, error)
	Set(ctx context.Context, key string, value T) error
	Remove(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
	Clear(ctx context.Context) error
}

// Capabilities describes the storage strategies the host
// offers. Detected once per process; the choice between the
// hierarchical blob store and its database fallback is made
// at adapter construction, never at call time.
type Capabilities struct {
	Hierarchical bool
}

// Detect probes whether the hierarchical blob store can be
// used under dir.
func Detect(dir string) Capabilities {
	if dir == "" {
		return Capabilities{}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Capabilities{}
	}

	probe := filepath.Join(dir, ".probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return Capabilities{}
	}
	os.Remove(probe)

	return Capabilities{Hierarchical: true}
}
