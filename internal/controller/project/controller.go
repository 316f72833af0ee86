package controller

import (
	"context"

	"github.com/gofiber/fiber/v2"

	jwtController "github.com/ndanilov/cutroom/internal/controller/jwt"
	"github.com/ndanilov/cutroom/internal/models"
)

func New(prjSrv ProjectStorage, jwtC *jwtController.JWT) *fiber.App {
	prjCtr := projectController{
		srv: prjSrv,
	}

	app := fiber.New()

	app.Use(jwtC.AuthRequired())

	app.Get("/", prjCtr.allProjects)
	app.Post("/", prjCtr.newProject)
	app.Get("/:id", prjCtr.project)
	app.Put("/:id", prjCtr.saveProject)
	app.Delete("/:id", prjCtr.deleteProject)

	return app
}

type projectController struct {
	srv ProjectStorage
}

type ProjectStorage interface {
	NewProject(ctx context.Context, name string) (models.Project, error)
	SaveProject(ctx context.Context, project models.Project) (models.Project, error)
	Project(ctx context.Context, id string) (models.Project, bool, error)
	LoadAllProjects(ctx context.Context) ([]models.Project, error)
	DeleteProject(ctx context.Context, id string) error
}

// allProjects returns every project, most recently updated
// first.
func (prjCtr *projectController) allProjects(c *fiber.Ctx) error {
	projects, err := prjCtr.srv.LoadAllProjects(context.TODO())
	if err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"projects": projects,
	})
}

// newProject creates an empty project
func (prjCtr *projectController) newProject(c *fiber.Ctx) error {
	var request struct {
		Name string `json:"name"`
	}

	if err := c.BodyParser(&request); err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}

	if request.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "name required",
		})
	}

	project, err := prjCtr.srv.NewProject(context.TODO(), request.Name)
	if err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"project": project,
	})
}

// project returns json with project by id
func (prjCtr *projectController) project(c *fiber.Ctx) error {
	project, ok, err := prjCtr.srv.Project(context.TODO(), c.Params("id"))
	if err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "project not found",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"project": project,
	})
}

// saveProject upserts project record
func (prjCtr *projectController) saveProject(c *fiber.Ctx) error {
	var request struct {
		Project models.Project `json:"project"`
	}

	if err := c.BodyParser(&request); err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}

	if request.Project.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "name required",
		})
	}

	request.Project.ID = c.Params("id")

	project, err := prjCtr.srv.SaveProject(context.TODO(), request.Project)
	if err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"project": project,
	})
}

// deleteProject deletes project with its media and timeline
func (prjCtr *projectController) deleteProject(c *fiber.Ctx) error {
	if err := prjCtr.srv.DeleteProject(context.TODO(), c.Params("id")); err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.SendStatus(fiber.StatusOK)
}
