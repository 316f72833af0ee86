package router

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/ndanilov/cutroom/internal/lib/frame"
	"github.com/ndanilov/cutroom/internal/lib/memurl"
	"github.com/ndanilov/cutroom/internal/storage"

	authSrv "github.com/ndanilov/cutroom/internal/service/auth"
	jwtSrv "github.com/ndanilov/cutroom/internal/service/jwt"
	librarySrv "github.com/ndanilov/cutroom/internal/service/library"
	projectSrv "github.com/ndanilov/cutroom/internal/service/project"
	thumbsSrv "github.com/ndanilov/cutroom/internal/service/thumbs"

	authCtr "github.com/ndanilov/cutroom/internal/controller/auth"
	jwtCtr "github.com/ndanilov/cutroom/internal/controller/jwt"
	mediaCtr "github.com/ndanilov/cutroom/internal/controller/media"
	projectCtr "github.com/ndanilov/cutroom/internal/controller/project"
	thumbsCtr "github.com/ndanilov/cutroom/internal/controller/thumbs"
	timelineCtr "github.com/ndanilov/cutroom/internal/controller/timeline"
)

type App struct {
	log     *slog.Logger
	address string
	app     *fiber.App
	cache   *thumbsSrv.Cache
}

// New returns configured router.App
func New(
	log *slog.Logger,
	factory *storage.Factory,
	address string,
	timeout time.Duration,
	tokenTTL time.Duration,
	secret []byte,
	rootPass []byte,
	tmpDir string,
	thumbCfg thumbsSrv.Config,
) *App {
	// Create services
	jwt := jwtSrv.New(secret)

	rootPassHash, err := bcrypt.GenerateFromPassword(rootPass, bcrypt.DefaultCost)
	if err != nil {
		panic("invalid root password")
	}
	auth := authSrv.New(
		log,
		jwt,
		rootPassHash,
		tokenTTL,
	)

	urls := memurl.New()

	prj := projectSrv.New(
		log,
		factory,
		urls,
	)

	lib := librarySrv.New(
		log,
		prj,
		tmpDir,
	)

	cache := thumbsSrv.New(
		log,
		frame.NewFFmpeg(tmpDir),
		factory.Thumbnails(),
		urls,
		thumbCfg,
	)

	// Create controller helper
	jwtCtr := jwtCtr.New(secret)

	app := fiber.New()

	// Mount controllers to an app
	app.Mount("/login", authCtr.New(timeout, auth))
	app.Mount("/project", projectCtr.New(prj, jwtCtr))
	app.Mount("/library", mediaCtr.New(lib, prj, cache, jwtCtr))
	app.Mount("/timeline", timelineCtr.New(log, prj, jwtCtr))
	app.Mount("/thumbnails", thumbsCtr.New(cache, lib, prj, urls, jwtCtr))

	return &App{
		log:     log,
		address: address,
		app:     app,
		cache:   cache,
	}
}

func (a *App) MustRun() {
	if err := a.Run(); err != nil {
		panic(err)
	}
}

func (a *App) Run() error {
	if err := a.cache.Init(context.Background()); err != nil {
		return err
	}

	return a.app.Listen(a.address)
}

func (a *App) Stop() {
	a.app.Shutdown()
	a.cache.Dispose()
}
