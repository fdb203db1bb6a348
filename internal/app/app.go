package app

import (
	"fmt"

	"go.uber.org/zap"

	"catalogsync/internal/config"
	"catalogsync/internal/reconcile"
	"catalogsync/internal/storage"
	"catalogsync/internal/upstream"
)

// App holds the wired components shared by the CLI and the API server.
type App struct {
	Config  config.Config
	Log     *zap.Logger
	DB      *storage.DB
	Catalog *storage.CatalogStore
	Service *reconcile.Service
}

func New(cfg config.Config, log *zap.Logger) (*App, error) {
	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}

	store := storage.NewCatalogStore(cfg.CatalogPrimaryPath, cfg.CatalogBackupPath, log)
	client := upstream.NewClient(cfg, log)
	engine := reconcile.NewEngine(client, db, store, reconcile.OptionsFrom(cfg), log)
	svc := reconcile.NewService(engine, db, store, reconcile.DefaultSettings(cfg), log)

	return &App{Config: cfg, Log: log, DB: db, Catalog: store, Service: svc}, nil
}

// Close waits for background runs before closing the database.
func (a *App) Close() error {
	a.Service.Wait()
	_ = a.Log.Sync()
	return a.DB.Close()
}
