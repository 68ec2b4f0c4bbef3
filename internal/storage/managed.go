package storage

import (
	"errors"
	"log/slog"

	"github.com/flexmocap/rigcore/internal/config"
	"github.com/flexmocap/rigcore/internal/database"
	gormstorage "github.com/flexmocap/rigcore/internal/storage/gorm"
)

// Managed writes to Postgres when it answers and otherwise to an in-memory
// SQLite database that is dumped to DumpPath on Close.
type Managed struct {
	*gormstorage.Backend
	mgr      *database.Manager
	dbConfig config.DBConfig
	logger   *slog.Logger
}

func NewManaged(dbConfig config.DBConfig, dumpPath string, deps Dependencies) *Managed {
	mgr := database.NewManager(deps.Zerolog)
	mgr.SqliteFilePath = dumpPath
	return &Managed{mgr: mgr, dbConfig: dbConfig, logger: deps.Logger}
}

func (m *Managed) Init() error {
	if err := m.mgr.Connect(m.dbConfig); err != nil {
		return err
	}
	if err := m.mgr.Setup(); err != nil {
		return err
	}
	m.Backend = gormstorage.New(gormstorage.Dependencies{DB: m.mgr.DB, Logger: m.logger, Migrated: true})
	return m.Backend.Init()
}

// Local reports whether the Postgres fallback is in use.
func (m *Managed) Local() bool { return m.mgr.ShouldSaveLocal }

func (m *Managed) Close() error {
	if m.Backend == nil {
		return nil
	}
	err := m.Backend.Close()
	if m.mgr.ShouldSaveLocal && m.mgr.SqliteFilePath != "" {
		err = errors.Join(err, m.mgr.DumpMemoryToDisk())
	}
	return err
}

// ExportedFilePath is the SQLite dump, empty while on Postgres.
func (m *Managed) ExportedFilePath() string {
	if !m.mgr.ShouldSaveLocal {
		return ""
	}
	return m.mgr.SqliteFilePath
}
