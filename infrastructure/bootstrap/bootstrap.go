// Package bootstrap opens the stores and services shared by the server and
// packctl.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"packtrack/infrastructure/audit"
	"packtrack/infrastructure/cache"
	"packtrack/infrastructure/catalog"
	"packtrack/infrastructure/config"
	"packtrack/infrastructure/lifecycle"
	"packtrack/infrastructure/postgres"
	"packtrack/infrastructure/sqlite"
)

// App is the wired set of stores and services.
type App struct {
	Config  *config.Config
	DB      *sqlite.DB
	PG      *sql.DB
	Audit   *audit.Service
	Packers *cache.PackerCache
	Catalog *catalog.Service
	Machine *lifecycle.Machine
}

// Open opens sqlite, applies migrations and builds the lifecycle store for
// cfg.StoreDriver. Catalog data and scan logs always live in sqlite.
func Open(ctx context.Context, cfg *config.Config) (*App, error) {
	db, err := sqlite.OpenDB(cfg.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := sqlite.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	app := &App{
		Config:  cfg,
		DB:      db,
		Audit:   audit.NewService(),
		Packers: cache.NewPackerCache(),
	}
	app.Catalog = catalog.NewService(db, app.Audit, app.Packers)

	var store lifecycle.Store
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pg, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			db.Close()
			return nil, err
		}
		if err := postgres.InitSchema(ctx, pg); err != nil {
			pg.Close()
			db.Close()
			return nil, err
		}
		app.PG = pg
		store = postgres.NewPackageStore(pg)
	default:
		store = lifecycle.NewSQLiteStore(db, app.Audit)
	}
	app.Machine = lifecycle.NewMachine(store)

	slog.Info("stores ready",
		slog.String("sqlite", cfg.SQLitePath),
		slog.String("package_store", cfg.StoreDriver),
	)
	return app, nil
}

// Close closes every handle and reports the first failure.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	var first error
	if a.PG != nil {
		if err := a.PG.Close(); err != nil {
			first = err
		}
	}
	if err := a.DB.Close(); err != nil && first == nil {
		first = err
	}
	return first
}
