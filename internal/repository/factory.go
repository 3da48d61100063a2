package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/psds-microservice/issue-tracker/internal/config"
	"github.com/psds-microservice/issue-tracker/internal/database"
)

// Open connects the storage backend selected by cfg.StorageDriver.
// Schema migrations are left to Store.Migrate.
func Open(ctx context.Context, cfg *config.Config, log *slog.Logger) (Store, error) {
	if log == nil {
		log = slog.Default()
	}
	switch cfg.StorageDriver {
	case config.DriverPostgres:
		if err := database.EnsureDatabase(cfg.DatabaseURL(), log); err != nil {
			return nil, fmt.Errorf("ensure database: %w", err)
		}
		db, err := database.Open(cfg.DSN())
		if err != nil {
			return nil, fmt.Errorf("database: %w", err)
		}
		return NewGormRepository(db, log), nil
	case config.DriverSQLite:
		s, err := NewSQLiteRepository(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverMongo:
		m, err := NewMongoRepository(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.TLS)
		if err != nil {
			return nil, err
		}
		return m, nil
	case config.DriverMemory:
		return NewMemoryRepository(), nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
}
