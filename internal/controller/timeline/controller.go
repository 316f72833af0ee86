package controller

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gofiber/fiber/v2"

	jwtController "github.com/ndanilov/cutroom/internal/controller/jwt"
	"github.com/ndanilov/cutroom/internal/models"
	timelineSrv "github.com/ndanilov/cutroom/internal/service/timeline"
)

// New returns a fiber.App exposing the timeline editing
// surface. Each project gets one engine session, created
// lazily from the persisted snapshot; every successful
// mutation is written back.
func New(
	log *slog.Logger,
	tlSrv TimelineStorage,
	jwtC *jwtController.JWT,
) *fiber.App {
	tlCtr := timelineController{
		log:      log,
		srv:      tlSrv,
		sessions: make(map[string]*timelineSrv.Engine),
	}

	app := fiber.New()

	app.Use(jwtC.AuthRequired())

	app.Get("/:projectID", tlCtr.timeline)

	app.Post("/:projectID/track", tlCtr.addTrack)
	app.Delete("/:projectID/track/:trackID", tlCtr.removeTrack)
	app.Post("/:projectID/track/:trackID/mute", tlCtr.toggleMute)

	app.Post("/:projectID/track/:trackID/element", tlCtr.addElement)
	app.Delete("/:projectID/track/:trackID/element/:elementID", tlCtr.removeElement)

	app.Post("/:projectID/track/:trackID/element/:elementID/split", tlCtr.split)
	app.Post("/:projectID/track/:trackID/element/:elementID/split-left", tlCtr.splitKeepLeft)
	app.Post("/:projectID/track/:trackID/element/:elementID/split-right", tlCtr.splitKeepRight)
	app.Post("/:projectID/track/:trackID/element/:elementID/duplicate", tlCtr.duplicate)
	app.Post("/:projectID/track/:trackID/element/:elementID/move", tlCtr.move)
	app.Post("/:projectID/track/:trackID/element/:elementID/trim", tlCtr.trim)
	app.Post("/:projectID/track/:trackID/element/:elementID/separate-audio", tlCtr.separateAudio)

	app.Post("/:projectID/track/:trackID/element/:elementID/select", tlCtr.selectElement)
	app.Post("/:projectID/track/:trackID/element/:elementID/deselect", tlCtr.deselectElement)
	app.Delete("/:projectID/selected", tlCtr.deleteSelected)

	app.Post("/:projectID/undo", tlCtr.undo)
	app.Post("/:projectID/redo", tlCtr.redo)

	return app
}

type timelineController struct {
	log *slog.Logger
	srv TimelineStorage

	mu       sync.Mutex
	sessions map[string]*timelineSrv.Engine
}

type TimelineStorage interface {
	SaveTimeline(ctx context.Context, projectID string, tracks []models.TimelineTrack) error
	LoadTimeline(ctx context.Context, projectID string) ([]models.TimelineTrack, bool, error)
}

// engine returns the project's session, restoring it from the
// persisted snapshot on first touch.
func (tlCtr *timelineController) engine(ctx context.Context, projectID string) (*timelineSrv.Engine, error) {
	tlCtr.mu.Lock()
	defer tlCtr.mu.Unlock()

	if e, ok := tlCtr.sessions[projectID]; ok {
		return e, nil
	}

	tracks, _, err := tlCtr.srv.LoadTimeline(ctx, projectID)
	if err != nil {
		return nil, err
	}

	e := timelineSrv.New(tlCtr.log, tracks)
	tlCtr.sessions[projectID] = e

	return e, nil
}

func (tlCtr *timelineController) persist(ctx context.Context, projectID string, e *timelineSrv.Engine) error {
	return tlCtr.srv.SaveTimeline(ctx, projectID, e.Tracks())
}

func rejected(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": "invalid operation",
	})
}

// timeline returns the current track list
func (tlCtr *timelineController) timeline(c *fiber.Ctx) error {
	e, err := tlCtr.engine(context.TODO(), c.Params("projectID"))
	if err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"tracks":   e.Tracks(),
		"duration": e.TotalDuration(),
		"canUndo":  e.CanUndo(),
		"canRedo":  e.CanRedo(),
	})
}

// addTrack appends an empty track
func (tlCtr *timelineController) addTrack(c *fiber.Ctx) error {
	var request struct {
		Type models.TrackType `json:"type"`
	}

	if err := c.BodyParser(&request); err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}

	switch request.Type {
	case models.TrackMedia, models.TrackAudio, models.TrackText:
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "unknown track type",
		})
	}

	projectID := c.Params("projectID")

	e, err := tlCtr.engine(context.TODO(), projectID)
	if err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	id := e.AddTrack(request.Type)

	if err := tlCtr.persist(context.TODO(), projectID, e); err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"id": id,
	})
}

// removeTrack deletes a track with its elements
func (tlCtr *timelineController) removeTrack(c *fiber.Ctx) error {
	projectID := c.Params("projectID")

	e, err := tlCtr.engine(context.TODO(), projectID)
	if err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	if !e.RemoveTrack(c.Params("trackID")) {
		return rejected(c)
	}

	if err := tlCtr.persist(context.TODO(), projectID, e); err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.SendStatus(fiber.StatusOK)
}

// toggleMute flips the track's muted flag
func (tlCtr *timelineController) toggleMute(c *fiber.Ctx) error {
	projectID := c.Params("projectID")

	e, err := tlCtr.engine(context.TODO(), projectID)
	if err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	muted, ok := e.ToggleTrackMute(c.Params("trackID"))
	if !ok {
		return rejected(c)
	}

	if err := tlCtr.persist(context.TODO(), projectID, e); err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"muted": muted,
	})
}

// addElement places an element on a track
func (tlCtr *timelineController) addElement(c *fiber.Ctx) error {
	var request struct {
		Element models.TimelineElement `json:"element"`
	}

	if err := c.BodyParser(&request); err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}

	projectID := c.Params("projectID")

	e, err := tlCtr.engine(context.TODO(), projectID)
	if err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	id, ok := e.AddElement(c.Params("trackID"), request.Element)
	if !ok {
		return rejected(c)
	}

	if err := tlCtr.persist(context.TODO(), projectID, e); err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"id": id,
	})
}

// removeElement deletes an element, leaving a gap
func (tlCtr *timelineController) removeElement(c *fiber.Ctx) error {
	projectID := c.Params("projectID")

	e, err := tlCtr.engine(context.TODO(), projectID)
	if err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	if !e.RemoveElement(c.Params("trackID"), c.Params("elementID")) {
		return rejected(c)
	}

	if err := tlCtr.persist(context.TODO(), projectID, e); err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.SendStatus(fiber.StatusOK)
}

type splitRequest struct {
	Time float64 `json:"time"`
}

// split cuts an element in two at a track time
func (tlCtr *timelineController) split(c *fiber.Ctx) error {
	req := new(splitRequest)
	if err := c.BodyParser(req); err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}

	projectID := c.Params("projectID")

	e, err := tlCtr.engine(context.TODO(), projectID)
	if err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	id, ok := e.SplitElement(c.Params("trackID"), c.Params("elementID"), req.Time)
	if !ok {
		return rejected(c)
	}

	if err := tlCtr.persist(context.TODO(), projectID, e); err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"id": id,
	})
}

// splitKeepLeft trims an element down to its left part
func (tlCtr *timelineController) splitKeepLeft(c *fiber.Ctx) error {
	req := new(splitRequest)
	if err := c.BodyParser(req); err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}

	projectID := c.Params("projectID")

	e, err := tlCtr.engine(context.TODO(), projectID)
	if err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	if !e.SplitAndKeepLeft(c.Params("trackID"), c.Params("elementID"), req.Time) {
		return rejected(c)
	}

	if err := tlCtr.persist(context.TODO(), projectID, e); err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.SendStatus(fiber.StatusOK)
}

// splitKeepRight trims an element down to its right part
func (tlCtr *timelineController) splitKeepRight(c *fiber.Ctx) error {
	req := new(splitRequest)
	if err := c.BodyParser(req); err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}

	projectID := c.Params("projectID")

	e, err := tlCtr.engine(context.TODO(), projectID)
	if err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	if !e.SplitAndKeepRight(c.Params("trackID"), c.Params("elementID"), req.Time) {
		return rejected(c)
	}

	if err := tlCtr.persist(context.TODO(), projectID, e); err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.SendStatus(fiber.StatusOK)
}

// duplicate clones an element right after the original
func (tlCtr *timelineController) duplicate(c *fiber.Ctx) error {
	projectID := c.Params("projectID")

	e, err := tlCtr.engine(context.TODO(), projectID)
	if err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	id, ok := e.DuplicateElement(c.Params("trackID"), c.Params("elementID"))
	if !ok {
		return rejected(c)
	}

	if err := tlCtr.persist(context.TODO(), projectID, e); err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"id": id,
	})
}

// move changes an element's start time
func (tlCtr *timelineController) move(c *fiber.Ctx) error {
	var request struct {
		StartTime float64 `json:"startTime"`
	}

	if err := c.BodyParser(&request); err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}

	projectID := c.Params("projectID")

	e, err := tlCtr.engine(context.TODO(), projectID)
	if err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	if !e.MoveElement(c.Params("trackID"), c.Params("elementID"), request.StartTime) {
		return rejected(c)
	}

	if err := tlCtr.persist(context.TODO(), projectID, e); err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.SendStatus(fiber.StatusOK)
}

// trim updates an element's trims
func (tlCtr *timelineController) trim(c *fiber.Ctx) error {
	var request struct {
		TrimStart float64 `json:"trimStart"`
		TrimEnd   float64 `json:"trimEnd"`
	}

	if err := c.BodyParser(&request); err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}

	projectID := c.Params("projectID")

	e, err := tlCtr.engine(context.TODO(), projectID)
	if err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	if !e.TrimElement(c.Params("trackID"), c.Params("elementID"), request.TrimStart, request.TrimEnd) {
		return rejected(c)
	}

	if err := tlCtr.persist(context.TODO(), projectID, e); err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.SendStatus(fiber.StatusOK)
}

// separateAudio clones a media element onto an audio track
func (tlCtr *timelineController) separateAudio(c *fiber.Ctx) error {
	projectID := c.Params("projectID")

	e, err := tlCtr.engine(context.TODO(), projectID)
	if err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	id, ok := e.SeparateAudio(c.Params("trackID"), c.Params("elementID"))
	if !ok {
		return rejected(c)
	}

	if err := tlCtr.persist(context.TODO(), projectID, e); err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"id": id,
	})
}

// selectElement marks an element as selected
func (tlCtr *timelineController) selectElement(c *fiber.Ctx) error {
	e, err := tlCtr.engine(context.TODO(), c.Params("projectID"))
	if err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	if !e.Select(c.Params("trackID"), c.Params("elementID")) {
		return rejected(c)
	}

	return c.SendStatus(fiber.StatusOK)
}

// deselectElement removes an element from the selection
func (tlCtr *timelineController) deselectElement(c *fiber.Ctx) error {
	e, err := tlCtr.engine(context.TODO(), c.Params("projectID"))
	if err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	e.Deselect(c.Params("trackID"), c.Params("elementID"))

	return c.SendStatus(fiber.StatusOK)
}

// deleteSelected removes every selected element in one step
func (tlCtr *timelineController) deleteSelected(c *fiber.Ctx) error {
	projectID := c.Params("projectID")

	e, err := tlCtr.engine(context.TODO(), projectID)
	if err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	removed := e.DeleteSelected()

	if removed > 0 {
		if err := tlCtr.persist(context.TODO(), projectID, e); err != nil {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"removed": removed,
	})
}

// undo reverts the latest mutation
func (tlCtr *timelineController) undo(c *fiber.Ctx) error {
	projectID := c.Params("projectID")

	e, err := tlCtr.engine(context.TODO(), projectID)
	if err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	if !e.Undo() {
		return rejected(c)
	}

	if err := tlCtr.persist(context.TODO(), projectID, e); err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.SendStatus(fiber.StatusOK)
}

// redo replays the latest undone mutation
func (tlCtr *timelineController) redo(c *fiber.Ctx) error {
	projectID := c.Params("projectID")

	e, err := tlCtr.engine(context.TODO(), projectID)
	if err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	if !e.Redo() {
		return rejected(c)
	}

	if err := tlCtr.persist(context.TODO(), projectID, e); err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.SendStatus(fiber.StatusOK)
}
