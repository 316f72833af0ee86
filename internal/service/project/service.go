package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ndanilov/cutroom/internal/lib/logger/sl"
	"github.com/ndanilov/cutroom/internal/lib/memurl"
	"github.com/ndanilov/cutroom/internal/models"
	"github.com/ndanilov/cutroom/internal/storage"
)

// Storage is the project-scoped persistence façade: project
// records, paired media metadata+blob adapters per project,
// and a single timeline snapshot per project. Callers never
// touch adapters directly.
type Storage struct {
	log      *slog.Logger
	adapters Adapters
	urls     *memurl.Registry

	// Per-project adapters, created lazily and reused.
	mu        sync.Mutex
	meta      map[string]storage.Adapter[models.MediaItem]
	blobs     map[string]storage.Adapter[models.Blob]
	timelines map[string]storage.Adapter[[]models.TimelineTrack]
}

type Adapters interface {
	Projects() storage.Adapter[models.Project]
	MediaMeta(projectID string) storage.Adapter[models.MediaItem]
	MediaBlobs(projectID string) storage.Adapter[models.Blob]
	Timelines(projectID string) storage.Adapter[[]models.TimelineTrack]
}

func New(
	log *slog.Logger,
	adapters Adapters,
	urls *memurl.Registry,
) *Storage {
	return &Storage{
		log:       log,
		adapters:  adapters,
		urls:      urls,
		meta:      make(map[string]storage.Adapter[models.MediaItem]),
		blobs:     make(map[string]storage.Adapter[models.Blob]),
		timelines: make(map[string]storage.Adapter[[]models.TimelineTrack]),
	}
}

func (s *Storage) mediaMeta(projectID string) storage.Adapter[models.MediaItem] {
	s.mu.Lock()
	defer s.mu.Unlock()

	adapter, ok := s.meta[projectID]
	if !ok {
		adapter = s.adapters.MediaMeta(projectID)
		s.meta[projectID] = adapter
	}
	return adapter
}

func (s *Storage) mediaBlobs(projectID string) storage.Adapter[models.Blob] {
	s.mu.Lock()
	defer s.mu.Unlock()

	adapter, ok := s.blobs[projectID]
	if !ok {
		adapter = s.adapters.MediaBlobs(projectID)
		s.blobs[projectID] = adapter
	}
	return adapter
}

func (s *Storage) timeline(projectID string) storage.Adapter[[]models.TimelineTrack] {
	s.mu.Lock()
	defer s.mu.Unlock()

	adapter, ok := s.timelines[projectID]
	if !ok {
		adapter = s.adapters.Timelines(projectID)
		s.timelines[projectID] = adapter
	}
	return adapter
}

// NewProject creates and persists an empty project.
func (s *Storage) NewProject(ctx context.Context, name string) (models.Project, error) {
	const op = "ProjectStorage.NewProject"

	log := s.log.With(slog.String("op", op))

	now := time.Now()
	project := models.Project{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
		Background: models.Background{
			Type:  "color",
			Color: "#000000",
		},
	}

	if err := s.adapters.Projects().Set(ctx, project.ID, project); err != nil {
		log.Error("failed to save project", sl.Err(err))
		return models.Project{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("created project", slog.String("id", project.ID), slog.String("name", name))

	return project, nil
}

// SaveProject upserts a project record, bumping UpdatedAt.
func (s *Storage) SaveProject(ctx context.Context, project models.Project) (models.Project, error) {
	const op = "ProjectStorage.SaveProject"

	log := s.log.With(slog.String("op", op))

	if project.CreatedAt.IsZero() {
		project.CreatedAt = time.Now()
	}
	project.UpdatedAt = time.Now()

	if err := s.adapters.Projects().Set(ctx, project.ID, project); err != nil {
		log.Error("failed to save project", slog.String("id", project.ID), sl.Err(err))
		return models.Project{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("saved project", slog.String("id", project.ID))

	return project, nil
}

// Project returns a project record by id.
func (s *Storage) Project(ctx context.Context, id string) (models.Project, bool, error) {
	const op = "ProjectStorage.Project"

	log := s.log.With(slog.String("op", op))

	project, ok, err := s.adapters.Projects().Get(ctx, id)
	if err != nil {
		log.Error("failed to get project", slog.String("id", id), sl.Err(err))
		return models.Project{}, false, fmt.Errorf("%s: %w", op, err)
	}

	return project, ok, nil
}

// LoadAllProjects returns every project, most recently
// updated first. Individually missing records are skipped.
func (s *Storage) LoadAllProjects(ctx context.Context) ([]models.Project, error) {
	const op = "ProjectStorage.LoadAllProjects"

	log := s.log.With(slog.String("op", op))

	projects := s.adapters.Projects()

	keys, err := projects.Keys(ctx)
	if err != nil {
		log.Error("failed to list projects", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	out := make([]models.Project, 0, len(keys))
	for _, key := range keys {
		project, ok, err := projects.Get(ctx, key)
		if err != nil {
			log.Error("failed to load project", slog.String("id", key), sl.Err(err))
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if !ok {
			log.Warn("project record disappeared, skipping", slog.String("id", key))
			continue
		}
		out = append(out, project)
	}

	slices.SortFunc(out, func(a, b models.Project) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})

	log.Info("loaded projects", slog.Int("count", len(out)))

	return out, nil
}

// DeleteProject removes the project record together with its
// media and timeline snapshot.
func (s *Storage) DeleteProject(ctx context.Context, id string) error {
	const op = "ProjectStorage.DeleteProject"

	log := s.log.With(slog.String("op", op))

	if err := s.DeleteProjectMedia(ctx, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.timeline(id).Clear(ctx); err != nil {
		log.Error("failed to clear timeline", slog.String("id", id), sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.adapters.Projects().Remove(ctx, id); err != nil {
		log.Error("failed to delete project", slog.String("id", id), sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("deleted project", slog.String("id", id))

	return nil
}

// SaveMediaItem persists blob first, then metadata. The two
// adapters are independent, so a partial failure is possible;
// on metadata failure the blob write is compensated with a
// best-effort delete and the error still surfaces.
func (s *Storage) SaveMediaItem(ctx context.Context, projectID string, item models.MediaItem, blob models.Blob) error {
	const op = "ProjectStorage.SaveMediaItem"

	log := s.log.With(
		slog.String("op", op),
		slog.String("projectID", projectID),
	)

	if err := s.mediaBlobs(projectID).Set(ctx, item.ID, blob); err != nil {
		log.Error("failed to save media blob", slog.String("id", item.ID), sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	// Ephemeral handles are never persisted.
	item.URL = ""

	if err := s.mediaMeta(projectID).Set(ctx, item.ID, item); err != nil {
		log.Error("failed to save media metadata", slog.String("id", item.ID), sl.Err(err))

		if rmErr := s.mediaBlobs(projectID).Remove(ctx, item.ID); rmErr != nil {
			log.Warn("failed to compensate blob write", slog.String("id", item.ID), sl.Err(rmErr))
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("saved media item",
		slog.String("id", item.ID),
		slog.String("type", string(item.Type)),
		slog.Int("size", len(blob.Data)),
	)

	return nil
}

// LoadMediaItem loads blob and metadata concurrently and
// reports absent unless both exist. A fresh ephemeral URL is
// attached on every load.
func (s *Storage) LoadMediaItem(ctx context.Context, projectID, id string) (models.MediaItem, bool, error) {
	const op = "ProjectStorage.LoadMediaItem"

	log := s.log.With(
		slog.String("op", op),
		slog.String("projectID", projectID),
	)

	var (
		item    models.MediaItem
		blob    models.Blob
		itemOK  bool
		blobOK  bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		item, itemOK, err = s.mediaMeta(projectID).Get(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		blob, blobOK, err = s.mediaBlobs(projectID).Get(gctx, id)
		return err
	})

	if err := g.Wait(); err != nil {
		log.Error("failed to load media item", slog.String("id", id), sl.Err(err))
		return models.MediaItem{}, false, fmt.Errorf("%s: %w", op, err)
	}

	// No partial reconstruction: a dangling half counts as
	// absent.
	if !itemOK || !blobOK {
		if itemOK != blobOK {
			log.Warn("media item is half-present",
				slog.String("id", id),
				slog.Bool("meta", itemOK),
				slog.Bool("blob", blobOK),
			)
		}
		return models.MediaItem{}, false, nil
	}

	item.URL = s.urls.Create(blob)

	return item, true, nil
}

// LoadProjectMedia returns metadata of all media items in a
// project, without materializing blob handles.
func (s *Storage) LoadProjectMedia(ctx context.Context, projectID string) ([]models.MediaItem, error) {
	const op = "ProjectStorage.LoadProjectMedia"

	log := s.log.With(
		slog.String("op", op),
		slog.String("projectID", projectID),
	)

	meta := s.mediaMeta(projectID)

	keys, err := meta.Keys(ctx)
	if err != nil {
		log.Error("failed to list media", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	items := make([]models.MediaItem, 0, len(keys))
	for _, key := range keys {
		item, ok, err := meta.Get(ctx, key)
		if err != nil {
			log.Error("failed to load media metadata", slog.String("id", key), sl.Err(err))
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if !ok {
			continue
		}
		items = append(items, item)
	}

	return items, nil
}

// MediaBlob returns the raw blob of a media item.
func (s *Storage) MediaBlob(ctx context.Context, projectID, id string) (models.Blob, bool, error) {
	const op = "ProjectStorage.MediaBlob"

	blob, ok, err := s.mediaBlobs(projectID).Get(ctx, id)
	if err != nil {
		s.log.With(slog.String("op", op)).Error("failed to load blob", slog.String("id", id), sl.Err(err))
		return models.Blob{}, false, fmt.Errorf("%s: %w", op, err)
	}

	return blob, ok, nil
}

// DeleteMediaItem removes both halves of a media item. Safe
// to call when one side is already gone.
func (s *Storage) DeleteMediaItem(ctx context.Context, projectID, id string) error {
	const op = "ProjectStorage.DeleteMediaItem"

	log := s.log.With(
		slog.String("op", op),
		slog.String("projectID", projectID),
	)

	if err := s.mediaBlobs(projectID).Remove(ctx, id); err != nil {
		log.Error("failed to delete media blob", slog.String("id", id), sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.mediaMeta(projectID).Remove(ctx, id); err != nil {
		log.Error("failed to delete media metadata", slog.String("id", id), sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("deleted media item", slog.String("id", id))

	return nil
}

// DeleteProjectMedia removes all media of a project.
func (s *Storage) DeleteProjectMedia(ctx context.Context, projectID string) error {
	const op = "ProjectStorage.DeleteProjectMedia"

	log := s.log.With(
		slog.String("op", op),
		slog.String("projectID", projectID),
	)

	if err := s.mediaBlobs(projectID).Clear(ctx); err != nil {
		log.Error("failed to clear media blobs", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.mediaMeta(projectID).Clear(ctx); err != nil {
		log.Error("failed to clear media metadata", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("cleared project media")

	return nil
}

// SaveTimeline upserts the project's single timeline
// snapshot. Last write wins, no merge.
func (s *Storage) SaveTimeline(ctx context.Context, projectID string, tracks []models.TimelineTrack) error {
	const op = "ProjectStorage.SaveTimeline"

	log := s.log.With(
		slog.String("op", op),
		slog.String("projectID", projectID),
	)

	if err := s.timeline(projectID).Set(ctx, storage.TimelineKey, tracks); err != nil {
		log.Error("failed to save timeline", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("saved timeline", slog.Int("tracks", len(tracks)))

	return nil
}

// LoadTimeline reads the project's timeline snapshot.
func (s *Storage) LoadTimeline(ctx context.Context, projectID string) ([]models.TimelineTrack, bool, error) {
	const op = "ProjectStorage.LoadTimeline"

	log := s.log.With(
		slog.String("op", op),
		slog.String("projectID", projectID),
	)

	tracks, ok, err := s.timeline(projectID).Get(ctx, storage.TimelineKey)
	if err != nil {
		log.Error("failed to load timeline", sl.Err(err))
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	return tracks, ok, nil
}
