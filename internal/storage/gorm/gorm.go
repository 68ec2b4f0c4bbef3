// Package gormstorage implements storage.Backend on top of GORM. Session rows
// are written synchronously; samples, builds, fits and mappings are queued and
// flushed in batches by a background writer.
package gormstorage

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flexmocap/rigcore/internal/database"
	"github.com/flexmocap/rigcore/internal/model"
	"github.com/flexmocap/rigcore/internal/model/convert"
	"github.com/flexmocap/rigcore/internal/queue"
	"github.com/flexmocap/rigcore/pkg/core"

	"gorm.io/gorm"
)

// DefaultFlushInterval is how often queued rows are written.
const DefaultFlushInterval = 2 * time.Second

// ErrNoSession is returned when recording before StartSession.
var ErrNoSession = errors.New("no active session")

// Dependencies holds everything the GORM backend needs.
type Dependencies struct {
	DB            *gorm.DB
	Logger        *slog.Logger
	FlushInterval time.Duration
	// BatchSize caps rows per insert; 0 writes the whole queue at once.
	BatchSize int
	// Migrated skips the schema migration in Init.
	Migrated bool
}

type queues struct {
	Samples  *queue.Queue[model.MarkerSample]
	Builds   *queue.Queue[model.SkeletonBuild]
	Fits     *queue.Queue[model.FitRun]
	Mappings *queue.Queue[model.MappingRun]
}

func newQueues() *queues {
	return &queues{
		Samples:  queue.New[model.MarkerSample](),
		Builds:   queue.New[model.SkeletonBuild](),
		Fits:     queue.New[model.FitRun](),
		Mappings: queue.New[model.MappingRun](),
	}
}

// Backend implements storage.Backend with queue-based batch writes.
type Backend struct {
	deps      Dependencies
	log       *slog.Logger
	queues    *queues
	sessionID atomic.Uint64

	flushMu  sync.Mutex
	stopChan chan struct{}
	done     chan struct{}
}

func New(deps Dependencies) *Backend {
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = DefaultFlushInterval
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Backend{
		deps:   deps,
		log:    log.With("component", "storage"),
		queues: newQueues(),
	}
}

// DB exposes the underlying connection.
func (b *Backend) DB() *gorm.DB { return b.deps.DB }

// Init migrates the schema and starts the writer goroutine.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return errors.New("gorm backend has no database")
	}
	if !b.deps.Migrated {
		b.log.Info("Migrating schema")
		if err := database.Migrate(b.deps.DB); err != nil {
			return err
		}
	}
	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})
	go b.writerLoop()
	return nil
}

// Close stops the writer and writes whatever is still queued.
func (b *Backend) Close() error {
	if b.stopChan != nil {
		close(b.stopChan)
		<-b.done
		b.stopChan = nil
	}
	return b.Flush()
}

// StartSession inserts the session and its template joints immediately so
// queued rows can reference the assigned ID.
func (b *Backend) StartSession(s *core.Session) error {
	if err := b.Flush(); err != nil {
		return err
	}
	row := convert.CoreToSession(*s)
	row.ID = 0
	if err := b.deps.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	s.ID = row.ID
	b.sessionID.Store(uint64(row.ID))
	b.log.Info("Session started", "session", s.UID, "id", row.ID, "joints", len(row.Joints))
	return nil
}

// EndSession flushes pending rows and detaches the session.
func (b *Backend) EndSession() error {
	if b.sessionID.Load() == 0 {
		return nil
	}
	err := b.Flush()
	b.sessionID.Store(0)
	return err
}

func (b *Backend) RecordFrame(f *core.FrameRecord) error {
	if err := b.active(); err != nil {
		return err
	}
	b.queues.Samples.Push(convert.CoreToMarkerSamples(*f)...)
	return nil
}

func (b *Backend) RecordBuild(r *core.BuildRecord) error {
	if err := b.active(); err != nil {
		return err
	}
	b.queues.Builds.Push(convert.CoreToSkeletonBuild(*r))
	return nil
}

func (b *Backend) RecordFit(f *core.FitRecord) error {
	if err := b.active(); err != nil {
		return err
	}
	b.queues.Fits.Push(convert.CoreToFitRun(*f))
	return nil
}

func (b *Backend) RecordBind(r *core.BindRecord) error {
	if err := b.active(); err != nil {
		return err
	}
	b.queues.Mappings.Push(convert.CoreToMappingRun(*r))
	return nil
}

func (b *Backend) active() error {
	if b.sessionID.Load() == 0 {
		return ErrNoSession
	}
	return nil
}

// Pending is the number of queued rows across all tables.
func (b *Backend) Pending() int {
	return b.queues.Samples.Len() + b.queues.Builds.Len() + b.queues.Fits.Len() + b.queues.Mappings.Len()
}

// Flush writes every queue in one pass. Rows from a failed insert go back
// to the front of their queue.
func (b *Backend) Flush() error {
	if b.deps.DB == nil {
		return nil
	}
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	id := uint(b.sessionID.Load())
	return errors.Join(
		writeQueue(b.deps.DB, b.queues.Samples, b.deps.BatchSize, "marker samples", b.log, func(r *model.MarkerSample) { stampSession(&r.SessionID, id) }),
		writeQueue(b.deps.DB, b.queues.Builds, b.deps.BatchSize, "skeleton builds", b.log, func(r *model.SkeletonBuild) { stampSession(&r.SessionID, id) }),
		writeQueue(b.deps.DB, b.queues.Fits, b.deps.BatchSize, "fit runs", b.log, func(r *model.FitRun) { stampSession(&r.SessionID, id) }),
		writeQueue(b.deps.DB, b.queues.Mappings, b.deps.BatchSize, "mapping runs", b.log, func(r *model.MappingRun) { stampSession(&r.SessionID, id) }),
	)
}

func stampSession(dst *uint, id uint) {
	if *dst == 0 {
		*dst = id
	}
}

// writeQueue drains q in batches, stamping rows that have no session yet.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], batch int, name string, log *slog.Logger, stamp func(*T)) error {
	for !q.Empty() {
		items := q.Drain(batch)
		for i := range items {
			stamp(&items[i])
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			return tx.Create(&items).Error
		})
		if err != nil {
			log.Error("Error writing "+name, "error", err, "rows", len(items))
			q.Requeue(items...)
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
		log.Debug("Wrote "+name, "rows", len(items))
	}
	return nil
}

func (b *Backend) writerLoop() {
	defer close(b.done)
	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			// errors are logged in writeQueue and retried next tick
			_ = b.Flush()
		}
	}
}
