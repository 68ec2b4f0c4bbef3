// internal/storage/factory.go
package storage

import (
	"fmt"
	"log/slog"

	"github.com/flexmocap/rigcore/internal/config"
	"github.com/flexmocap/rigcore/internal/storage/memory"
	"github.com/flexmocap/rigcore/internal/storage/postgres"
	sqlitestorage "github.com/flexmocap/rigcore/internal/storage/sqlite"

	"github.com/rs/zerolog"
)

// Dependencies are the loggers handed to database backends.
type Dependencies struct {
	Logger  *slog.Logger
	Zerolog zerolog.Logger
	DB      config.DBConfig
}

// NewBackend creates a storage backend based on configuration. The backend
// is not initialized.
func NewBackend(cfg config.StorageConfig, deps Dependencies) (Backend, error) {
	switch cfg.Type {
	case "", "memory":
		return memory.New(cfg.Memory), nil
	case "sqlite":
		return sqlitestorage.New(sqlitestorage.Config{
			DumpInterval: cfg.SQLite.DumpInterval,
			DumpPath:     cfg.SQLite.Path,
		}, deps.Logger, deps.Zerolog)
	case "postgres":
		return postgres.New(deps.DB, deps.Logger), nil
	case "auto":
		return NewManaged(deps.DB, cfg.SQLite.Path, deps), nil
	case "none":
		return Discard{}, nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
