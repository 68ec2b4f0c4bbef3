// Package postgres connects the GORM backend to PostgreSQL.
package postgres

import (
	"fmt"
	"log/slog"

	"github.com/flexmocap/rigcore/internal/config"
	"github.com/flexmocap/rigcore/internal/database"
	gormstorage "github.com/flexmocap/rigcore/internal/storage/gorm"
)

// Backend is the GORM backend on a Postgres connection.
type Backend struct {
	*gormstorage.Backend
	cfg config.DBConfig
	log *slog.Logger
}

func New(cfg config.DBConfig, log *slog.Logger) *Backend {
	return &Backend{cfg: cfg, log: log}
}

// Init opens and pings the connection, then initializes the GORM backend.
func (b *Backend) Init() error {
	db, err := database.GetPostgresDB(b.cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql interface: %w", err)
	}
	if err = sqlDB.Ping(); err != nil {
		return fmt.Errorf("failed to validate connection: %w", err)
	}
	sqlDB.SetMaxOpenConns(10)

	b.Backend = gormstorage.New(gormstorage.Dependencies{DB: db, Logger: b.log})
	return b.Backend.Init()
}

// Close is safe before a successful Init.
func (b *Backend) Close() error {
	if b.Backend == nil {
		return nil
	}
	return b.Backend.Close()
}
