package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/xenophobed/demi-provenance/internal/data/db"
	"github.com/xenophobed/demi-provenance/internal/platform/logger"
)

// App is the process composition root. The database handle lives here and is
// closed on shutdown; nothing initializes connections at package level.
type App struct {
	Config   Config
	Log      *logger.Logger
	DB       *gorm.DB
	Store    *db.SQLiteService
	Repos    Repos
	Services Services
}

func New() (*App, error) {
	cfg := LoadConfig()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	store, err := db.NewSQLiteServiceAt(log, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	handle := store.DB()

	if err := db.AutoMigrateAll(handle); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if err := db.EnsureGraphIndexes(handle); err != nil {
		return nil, fmt.Errorf("ensure indexes: %w", err)
	}

	r := NewRepos(handle, log)
	s := NewServices(handle, log, cfg, r)

	return &App{
		Config:   cfg,
		Log:      log,
		DB:       handle,
		Store:    store,
		Repos:    r,
		Services: s,
	}, nil
}

func (a *App) Close() {
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Log.Error("closing store", "error", err)
		}
	}
	a.Log.Sync()
}
