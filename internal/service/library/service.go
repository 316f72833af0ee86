package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/ndanilov/cutroom/internal/lib/frame"
	"github.com/ndanilov/cutroom/internal/lib/logger/sl"
	"github.com/ndanilov/cutroom/internal/models"
	"github.com/ndanilov/cutroom/internal/service"
)

// Library registers uploaded media in a project: sniffs the
// payload type, probes stream parameters and hands both halves
// to the project storage.
type Library struct {
	log    *slog.Logger
	media  MediaStorage
	tmpDir string
}

type MediaStorage interface {
	SaveMediaItem(ctx context.Context, projectID string, item models.MediaItem, blob models.Blob) error
	LoadMediaItem(ctx context.Context, projectID, id string) (models.MediaItem, bool, error)
	LoadProjectMedia(ctx context.Context, projectID string) ([]models.MediaItem, error)
	DeleteMediaItem(ctx context.Context, projectID, id string) error
}

func New(
	log *slog.Logger,
	media MediaStorage,
	tmpDir string,
) *Library {
	return &Library{
		log:    log,
		media:  media,
		tmpDir: tmpDir,
	}
}

// NewMedia registers an uploaded file in the project and
// returns the stored item. The payload type is detected from
// the content, never from the file name.
//
// If the payload is not video, audio or image, returns
// service.ErrMediaUnsupported.
func (l *Library) NewMedia(ctx context.Context, projectID, filename string, data []byte) (models.MediaItem, error) {
	const op = "Library.NewMedia"

	log := l.log.With(
		slog.String("op", op),
		slog.String("projectID", projectID),
	)

	log.Info("registering new media", slog.String("file", filename))

	mime := mimetype.Detect(data).String()

	mediaType := typeFromMIME(mime)
	if mediaType == models.MediaUnknown {
		log.Warn("unsupported media type", slog.String("mime", mime))
		return models.MediaItem{}, fmt.Errorf("%s: %w", op, service.ErrMediaUnsupported)
	}

	item := models.MediaItem{
		ID:   uuid.NewString(),
		Type: mediaType,
		Name: filename,
	}

	meta, err := l.probe(data)
	if err != nil {
		log.Error("failed to probe media", sl.Err(err))
		return models.MediaItem{}, fmt.Errorf("%s: %w", op, err)
	}
	item.Duration = meta.Duration
	item.Width = meta.Width
	item.Height = meta.Height

	blob := models.Blob{
		Name:    filename,
		MIME:    mime,
		ModTime: time.Now(),
		Data:    data,
	}

	if err := l.media.SaveMediaItem(ctx, projectID, item, blob); err != nil {
		log.Error("failed to save media", sl.Err(err))
		return models.MediaItem{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info(
		"registered media",
		slog.String("id", item.ID),
		slog.String("type", string(item.Type)),
		slog.Float64("duration", item.Duration),
	)

	return item, nil
}

// Media returns a media item by id with a fresh blob handle.
//
// If the item does not exist, returns service.ErrMediaNotFound.
func (l *Library) Media(ctx context.Context, projectID, id string) (models.MediaItem, error) {
	const op = "Library.Media"

	log := l.log.With(
		slog.String("op", op),
		slog.String("projectID", projectID),
	)

	item, ok, err := l.media.LoadMediaItem(ctx, projectID, id)
	if err != nil {
		log.Error("failed to get media", slog.String("id", id), sl.Err(err))
		return models.MediaItem{}, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		log.Warn("media not found", slog.String("id", id))
		return models.MediaItem{}, service.ErrMediaNotFound
	}

	return item, nil
}

// AllMedia returns metadata of every media item in a project.
func (l *Library) AllMedia(ctx context.Context, projectID string) ([]models.MediaItem, error) {
	const op = "Library.AllMedia"

	items, err := l.media.LoadProjectMedia(ctx, projectID)
	if err != nil {
		l.log.With(slog.String("op", op)).Error("failed to list media", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return items, nil
}

// SearchMedia returns project media matching the filter,
// most relevant first.
func (l *Library) SearchMedia(ctx context.Context, projectID string, filter models.MediaFilter) ([]models.MediaItem, error) {
	const op = "Library.SearchMedia"

	log := l.log.With(
		slog.String("op", op),
		slog.String("projectID", projectID),
	)

	items, err := l.media.LoadProjectMedia(ctx, projectID)
	if err != nil {
		log.Error("failed to list media", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ranked := filterRank(items, filter)

	if filter.MaxRespLen > 0 && len(ranked) > filter.MaxRespLen {
		ranked = ranked[:filter.MaxRespLen]
	}

	out := make([]models.MediaItem, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, r.item)
	}

	log.Info("searched media", slog.Int("found", len(out)))

	return out, nil
}

// DeleteMedia deletes a media item.
func (l *Library) DeleteMedia(ctx context.Context, projectID, id string) error {
	const op = "Library.DeleteMedia"

	log := l.log.With(
		slog.String("op", op),
		slog.String("projectID", projectID),
	)

	log.Info("deleting media", slog.String("id", id))

	if err := l.media.DeleteMediaItem(ctx, projectID, id); err != nil {
		log.Error("failed to delete media", slog.String("id", id), sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// probe writes the payload to a temporary file and extracts
// stream parameters from it.
func (l *Library) probe(data []byte) (frame.Meta, error) {
	tmpFile, err := os.CreateTemp(l.tmpDir, "ingest-*")
	if err != nil {
		return frame.Meta{}, err
	}
	tmpName := tmpFile.Name()
	defer os.Remove(tmpName)

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return frame.Meta{}, err
	}
	if err := tmpFile.Close(); err != nil {
		return frame.Meta{}, err
	}

	return frame.Probe(tmpName)
}

func typeFromMIME(mime string) models.MediaType {
	switch {
	case strings.HasPrefix(mime, "video/"):
		return models.MediaVideo
	case strings.HasPrefix(mime, "audio/"):
		return models.MediaAudio
	case strings.HasPrefix(mime, "image/"):
		return models.MediaImage
	default:
		return models.MediaUnknown
	}
}
