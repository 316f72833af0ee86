package app

import (
	"log/slog"
	"os"
	"time"

	routerApp "github.com/ndanilov/cutroom/internal/app/router"
	"github.com/ndanilov/cutroom/internal/lib/logger/sl"
	thumbsSrv "github.com/ndanilov/cutroom/internal/service/thumbs"
	"github.com/ndanilov/cutroom/internal/storage"
	"github.com/ndanilov/cutroom/internal/storage/kv"
)

type App struct {
	Router routerApp.App

	db *kv.DB
}

func New(
	log *slog.Logger,
	address string,
	storagePath string,
	blobDir string,
	timeout time.Duration,
	tokenTTL time.Duration,
	secret []byte,
	rootPass []byte,
	tmpDir string,
	thumbCfg thumbsSrv.Config,
) *App {
	db, err := kv.New(storagePath)
	if err != nil {
		log.Error("failed to init storage", sl.Err(err))
		os.Exit(1)
	}

	caps := storage.Detect(blobDir)

	factory := storage.NewFactory(db, blobDir, caps)

	routerApp := routerApp.New(
		log,
		factory,
		address,
		timeout,
		tokenTTL,
		secret,
		rootPass,
		tmpDir,
		thumbCfg,
	)

	return &App{
		Router: *routerApp,
		db:     db,
	}
}

// Stop shuts the router down and closes the database.
func (a *App) Stop() {
	a.Router.Stop()
	a.db.Stop()
}
