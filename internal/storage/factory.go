package storage

import (
	"fmt"

	"github.com/ndanilov/cutroom/internal/models"
	"github.com/ndanilov/cutroom/internal/storage/fsstore"
	"github.com/ndanilov/cutroom/internal/storage/kv"
)

// Factory builds adapters over deterministic namespaces.
// The blob strategy is fixed at construction from the
// detected capabilities; callers never see which one is in
// play.
type Factory struct {
	db       *kv.DB
	blobRoot string
	caps     Capabilities
}

func NewFactory(db *kv.DB, blobRoot string, caps Capabilities) *Factory {
	return &Factory{
		db:       db,
		blobRoot: blobRoot,
		caps:     caps,
	}
}

func (f *Factory) Projects() Adapter[models.Project] {
	return kv.NewStore(f.db, NamespaceProjects, kv.JSON[models.Project]())
}

func (f *Factory) MediaMeta(projectID string) Adapter[models.MediaItem] {
	return kv.NewStore(f.db, projectNamespace(NamespaceMediaMetaBase, projectID), kv.JSON[models.MediaItem]())
}

// MediaBlobs returns the hierarchical store when the host
// supports it and silently degrades to the database-backed
// fallback otherwise. Both satisfy the same contract.
func (f *Factory) MediaBlobs(projectID string) Adapter[models.Blob] {
	namespace := projectNamespace(NamespaceMediaBlobBase, projectID)

	if f.caps.Hierarchical {
		if store, err := fsstore.New(f.blobRoot, namespace); err == nil {
			return store
		}
	}

	return kv.NewStore(f.db, namespace, kv.Blobs())
}

func (f *Factory) Timelines(projectID string) Adapter[[]models.TimelineTrack] {
	return kv.NewStore(f.db, projectNamespace(NamespaceTimelineBase, projectID), kv.JSON[[]models.TimelineTrack]())
}

func (f *Factory) Thumbnails() Adapter[models.StoredThumbnail] {
	return kv.NewStore(f.db, NamespaceThumbnails, kv.JSON[models.StoredThumbnail]())
}

func projectNamespace(base, projectID string) string {
	return fmt.Sprintf("%s-%s", base, projectID)
}
