package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/flexmocap/rigcore/internal/config"
	"github.com/flexmocap/rigcore/internal/model"
	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MemoryDSN is the shared in-memory SQLite database.
const MemoryDSN = "file::memory:?cache=shared"

var sqlitePragmas = []string{
	"PRAGMA user_version = 1;",
	"PRAGMA journal_mode = MEMORY;",
	"PRAGMA synchronous = OFF;",
	"PRAGMA cache_size = -32000;",
	"PRAGMA temp_store = MEMORY;",
}

// Manager owns the session database connection
type Manager struct {
	DB      *gorm.DB
	SqlDB   *sql.DB
	IsValid bool
	// ShouldSaveLocal is set once Postgres was unreachable and SQLite took over.
	ShouldSaveLocal bool
	SqliteFilePath  string
	Logger          zerolog.Logger
}

func NewManager(log zerolog.Logger) *Manager {
	return &Manager{Logger: log}
}

// Connect opens Postgres and falls back to an in-memory SQLite database when
// Postgres cannot be opened or pinged.
func (m *Manager) Connect(cfg config.DBConfig) error {
	db, err := GetPostgresDB(cfg)
	if err == nil {
		err = ping(db)
	}
	if err != nil {
		m.Logger.Error().Err(err).Msg("Failed to connect to Postgres DB, trying SQLite")
		m.ShouldSaveLocal = true
		db, err = GetSqliteDB("")
		if err != nil {
			m.IsValid = false
			return fmt.Errorf("failed to get local SQLite DB: %w", err)
		}
		m.Logger.Info().Msg("Using local SQLite DB in memory with periodic disk dump")
	} else {
		m.Logger.Info().Str("host", cfg.Host).Str("database", cfg.Database).Msg("Connected to database")
	}

	m.DB = db
	if m.SqlDB, err = db.DB(); err != nil {
		return fmt.Errorf("failed to access sql interface: %w", err)
	}
	if !m.ShouldSaveLocal {
		m.SqlDB.SetMaxOpenConns(10)
	}
	m.IsValid = true
	return nil
}

func ping(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// Setup migrates the rig schema.
func (m *Manager) Setup() error {
	if m.DB == nil {
		return errors.New("database not connected")
	}
	m.Logger.Info().Str("dialect", m.DB.Dialector.Name()).Msg("Migrating schema")
	if err := Migrate(m.DB); err != nil {
		m.IsValid = false
		return err
	}
	m.Logger.Info().Msg("Database setup complete")
	return nil
}

// DumpMemoryToDisk snapshots the SQLite database to SqliteFilePath.
func (m *Manager) DumpMemoryToDisk() error {
	start := time.Now()
	if err := DumpMemoryDBToDisk(m.DB, m.SqliteFilePath); err != nil {
		return err
	}
	m.Logger.Debug().Dur("duration", time.Since(start)).Msg("Dumped memory DB to disk")
	return nil
}

// PostgresDSN builds a libpq keyword/value DSN.
func PostgresDSN(cfg config.DBConfig) string {
	return fmt.Sprintf(`host=%s port=%s user=%s password=%s dbname=%s sslmode=disable`,
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Database)
}

// GetPostgresDB opens (without pinging) a Postgres connection.
func GetPostgresDB(cfg config.DBConfig) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{
		DSN:                  PostgresDSN(cfg),
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		CreateBatchSize:        10000,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
}

// GetSqliteDB opens path, or the shared in-memory database when path is empty.
func GetSqliteDB(path string) (*gorm.DB, error) {
	dsn := path
	if dsn == "" {
		dsn = MemoryDSN
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		CreateBatchSize:        2000,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	for _, pragma := range sqlitePragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("error setting PRAGMA: %w", err)
		}
	}
	return db, nil
}

// Migrate creates or updates every rig table.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// DumpMemoryDBToDisk writes a point-in-time copy of db to path with VACUUM INTO,
// replacing an existing file.
func DumpMemoryDBToDisk(db *gorm.DB, path string) error {
	if path == "" {
		return errors.New("sqlite file path not set")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("error creating dump directory: %w", err)
		}
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("error removing existing DB file: %w", err)
	}
	if err := db.Exec("VACUUM INTO ?", path).Error; err != nil {
		return fmt.Errorf("error dumping memory DB to disk: %w", err)
	}
	return nil
}

// BackupDBPaths lists the .db files in dir.
func BackupDBPaths(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".db") {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	return out, nil
}
