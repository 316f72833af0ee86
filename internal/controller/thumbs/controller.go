package controller

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	jwtController "github.com/ndanilov/cutroom/internal/controller/jwt"
	"github.com/ndanilov/cutroom/internal/models"
	"github.com/ndanilov/cutroom/internal/service"
	thumbsSrv "github.com/ndanilov/cutroom/internal/service/thumbs"
)

func New(
	cacheSrv Cache,
	libSrv Library,
	blobSrv Blobs,
	urls URLResolver,
	jwtC *jwtController.JWT,
) *fiber.App {
	thumbCtr := thumbController{
		srvCache: cacheSrv,
		srvLib:   libSrv,
		srvBlobs: blobSrv,
		urls:     urls,
	}

	app := fiber.New()

	app.Use(jwtC.AuthRequired())

	app.Post("/:projectID/media/:id", thumbCtr.generate)
	app.Get("/media/:id", thumbCtr.thumbnail)
	app.Get("/quality", thumbCtr.quality)
	app.Put("/quality", thumbCtr.setQuality)

	return app
}

type thumbController struct {
	srvCache Cache
	srvLib   Library
	srvBlobs Blobs
	urls     URLResolver
}

type Cache interface {
	GenerateThumbnails(ctx context.Context, item models.MediaItem, src models.Blob) ([]models.ThumbnailData, error)
	GetThumbnailForTime(mediaID string, position float64) (models.ThumbnailData, bool)
	Quality() thumbsSrv.Quality
	SetQuality(q thumbsSrv.Quality)
	Monitor() *thumbsSrv.Monitor
}

type Library interface {
	Media(ctx context.Context, projectID, id string) (models.MediaItem, error)
}

type Blobs interface {
	MediaBlob(ctx context.Context, projectID, id string) (models.Blob, bool, error)
}

type URLResolver interface {
	Resolve(url string) (models.Blob, bool)
}

// generate populates the cache for a media item and returns the
// produced set.
func (thumbCtr *thumbController) generate(c *fiber.Ctx) error {
	projectID := c.Params("projectID")
	id := c.Params("id")

	item, err := thumbCtr.srvLib.Media(context.TODO(), projectID, id)
	if err != nil {
		if errors.Is(err, service.ErrMediaNotFound) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "media not found",
			})
		}
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	if item.Type != models.MediaVideo {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "not a video",
		})
	}

	blob, ok, err := thumbCtr.srvBlobs.MediaBlob(context.TODO(), projectID, id)
	if err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "media not found",
		})
	}

	thumbs, err := thumbCtr.srvCache.GenerateThumbnails(context.TODO(), item, blob)
	if err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"thumbnails": thumbs,
	})
}

// thumbnail returns the cached image closest-keyed to the
// requested position. Lookup only, never generates.
func (thumbCtr *thumbController) thumbnail(c *fiber.Ctx) error {
	position := c.QueryFloat("position", -1)
	if position < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "position required",
		})
	}

	data, ok := thumbCtr.srvCache.GetThumbnailForTime(c.Params("id"), position)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "thumbnail not found",
		})
	}

	blob, ok := thumbCtr.urls.Resolve(data.URL)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "thumbnail not found",
		})
	}

	c.Set(fiber.HeaderContentType, blob.MIME)

	return c.Status(fiber.StatusOK).Send(blob.Data)
}

// quality reports the active tier and the monitor's advisory
// recommendation.
func (thumbCtr *thumbController) quality(c *fiber.Ctx) error {
	current := thumbCtr.srvCache.Quality()

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"quality":     current,
		"recommended": thumbCtr.srvCache.Monitor().Recommend(current),
	})
}

// setQuality switches the active tier
func (thumbCtr *thumbController) setQuality(c *fiber.Ctx) error {
	var request struct {
		Quality thumbsSrv.Quality `json:"quality"`
	}

	if err := c.BodyParser(&request); err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}

	switch request.Quality {
	case thumbsSrv.QualityLow, thumbsSrv.QualityMedium, thumbsSrv.QualityHigh:
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "unknown quality",
		})
	}

	thumbCtr.srvCache.SetQuality(request.Quality)

	return c.SendStatus(fiber.StatusOK)
}
