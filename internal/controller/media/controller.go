package controller

import (
	"context"
	"errors"
	"io"

	"github.com/gofiber/fiber/v2"

	jwtController "github.com/ndanilov/cutroom/internal/controller/jwt"
	"github.com/ndanilov/cutroom/internal/models"
	"github.com/ndanilov/cutroom/internal/service"
)

func New(
	libSrv Library,
	blobSrv Blobs,
	thumbSrv Thumbnails,
	jwtC *jwtController.JWT,
) *fiber.App {
	mediaCtr := mediaController{
		srvLib:    libSrv,
		srvBlobs:  blobSrv,
		srvThumbs: thumbSrv,
	}

	app := fiber.New(fiber.Config{
		EnableSplittingOnParsers: true,
	})

	app.Use(jwtC.AuthRequired())

	app.Get("/:projectID/media", mediaCtr.searchMedia)
	app.Post("/:projectID/media", mediaCtr.newMedia)
	app.Get("/:projectID/media/:id", mediaCtr.media)
	app.Get("/:projectID/media/:id/source", mediaCtr.source)
	app.Delete("/:projectID/media/:id", mediaCtr.deleteMedia)

	return app
}

type mediaController struct {
	srvLib    Library
	srvBlobs  Blobs
	srvThumbs Thumbnails
}

type Library interface {
	NewMedia(ctx context.Context, projectID, filename string, data []byte) (models.MediaItem, error)
	Media(ctx context.Context, projectID, id string) (models.MediaItem, error)
	AllMedia(ctx context.Context, projectID string) ([]models.MediaItem, error)
	SearchMedia(ctx context.Context, projectID string, filter models.MediaFilter) ([]models.MediaItem, error)
	DeleteMedia(ctx context.Context, projectID, id string) error
}

type Blobs interface {
	MediaBlob(ctx context.Context, projectID, id string) (models.Blob, bool, error)
}

type Thumbnails interface {
	Clear(ctx context.Context, mediaID string) error
}

// searchMedia returns the project library, filtered and sorted
// by query criteria when present.
func (mediaCtr *mediaController) searchMedia(c *fiber.Ctx) error {
	projectID := c.Params("projectID")

	filter := models.MediaFilter{
		Name:       c.Query("name"),
		Type:       models.MediaType(c.Query("type")),
		MaxRespLen: c.QueryInt("res_len"),
	}

	var (
		lib []models.MediaItem
		err error
	)
	if filter.Name == "" && filter.Type == "" {
		lib, err = mediaCtr.srvLib.AllMedia(context.TODO(), projectID)
	} else {
		lib, err = mediaCtr.srvLib.SearchMedia(context.TODO(), projectID, filter)
	}
	if err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"library": lib,
	})
}

// newMedia saves sended file and registers media
func (mediaCtr *mediaController) newMedia(c *fiber.Ctx) error {
	file, err := c.FormFile("source")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid file",
		})
	}

	name := c.FormValue("name")
	if name == "" {
		name = file.Filename
	}
	if name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "name required",
		})
	}

	reader, err := file.Open()
	if err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	item, err := mediaCtr.srvLib.NewMedia(context.TODO(), c.Params("projectID"), name, data)
	if err != nil {
		if errors.Is(err, service.ErrMediaUnsupported) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "unsupported mime-type",
			})
		}
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"media": item,
	})
}

// media return json with media by id
func (mediaCtr *mediaController) media(c *fiber.Ctx) error {
	item, err := mediaCtr.srvLib.Media(context.TODO(), c.Params("projectID"), c.Params("id"))
	if err != nil {
		if errors.Is(err, service.ErrMediaNotFound) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "media not found",
			})
		}
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"media": item,
	})
}

// source returns the raw file corresponding to media
func (mediaCtr *mediaController) source(c *fiber.Ctx) error {
	blob, ok, err := mediaCtr.srvBlobs.MediaBlob(context.TODO(), c.Params("projectID"), c.Params("id"))
	if err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "media not found",
		})
	}

	c.Set(fiber.HeaderContentType, blob.MIME)

	return c.Status(fiber.StatusOK).Send(blob.Data)
}

// deleteMedia deletes media with its cached thumbnails
func (mediaCtr *mediaController) deleteMedia(c *fiber.Ctx) error {
	id := c.Params("id")

	if err := mediaCtr.srvThumbs.Clear(context.TODO(), id); err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	if err := mediaCtr.srvLib.DeleteMedia(context.TODO(), c.Params("projectID"), id); err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.SendStatus(fiber.StatusOK)
}
