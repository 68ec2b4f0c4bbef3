// Package sqlitestorage keeps the session database in memory and dumps it to
// disk periodically and on Close with VACUUM INTO.
package sqlitestorage

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/flexmocap/rigcore/internal/database"
	gormstorage "github.com/flexmocap/rigcore/internal/storage/gorm"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Config holds configuration for the SQLite storage backend.
type Config struct {
	DumpInterval time.Duration
	DumpPath     string
	// DSN overrides the shared in-memory database.
	DSN string
}

// Backend wraps the GORM backend with an in-memory database.
type Backend struct {
	*gormstorage.Backend
	db       *gorm.DB
	cfg      Config
	log      zerolog.Logger
	stopChan chan struct{}
	done     chan struct{}
}

func New(cfg Config, slogger *slog.Logger, log zerolog.Logger) (*Backend, error) {
	db, err := database.GetSqliteDB(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite DB: %w", err)
	}
	return &Backend{
		Backend: gormstorage.New(gormstorage.Dependencies{DB: db, Logger: slogger}),
		db:      db,
		cfg:     cfg,
		log:     log.With().Str("component", "sqlite").Logger(),
	}, nil
}

// Init initializes the embedded GORM backend and starts the dump goroutine.
func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return err
	}
	if b.cfg.DumpPath != "" && b.cfg.DumpInterval > 0 {
		b.stopChan = make(chan struct{})
		b.done = make(chan struct{})
		go b.dumpLoop()
	}
	return nil
}

// Close stops the dump loop, flushes the queues and writes a final dump.
func (b *Backend) Close() error {
	if b.stopChan != nil {
		close(b.stopChan)
		<-b.done
		b.stopChan = nil
	}
	if err := b.Backend.Close(); err != nil {
		return err
	}
	if b.cfg.DumpPath == "" {
		return nil
	}
	return b.Dump()
}

// Dump writes a point-in-time snapshot to DumpPath.
func (b *Backend) Dump() error {
	start := time.Now()
	if err := database.DumpMemoryDBToDisk(b.db, b.cfg.DumpPath); err != nil {
		return err
	}
	b.log.Debug().Dur("took", time.Since(start)).Str("path", b.cfg.DumpPath).Msg("Dumped to disk")
	return nil
}

// ExportedFilePath is the dump target.
func (b *Backend) ExportedFilePath() string {
	return b.cfg.DumpPath
}

func (b *Backend) dumpLoop() {
	defer close(b.done)
	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			if err := b.Backend.Flush(); err != nil {
				b.log.Error().Err(err).Msg("Error flushing before dump")
			}
			if err := b.Dump(); err != nil {
				b.log.Error().Err(err).Msg("Error dumping to disk")
			}
		}
	}
}
