// internal/storage/memory/memory.go
package memory

import (
	"errors"
	"slices"
	"sync"

	"github.com/flexmocap/rigcore/internal/config"
	"github.com/flexmocap/rigcore/pkg/core"
)

// ErrNoSession is returned when recording before StartSession.
var ErrNoSession = errors.New("no active session")

// Backend keeps the session in memory and exports it as JSON when the
// session ends.
type Backend struct {
	cfg     config.MemoryConfig
	session *core.Session

	frames []core.FrameRecord
	builds []core.BuildRecord
	fits   []core.FitRecord
	binds  []core.BindRecord

	idCounter      uint
	lastExportPath string
	mu             sync.RWMutex
}

func New(cfg config.MemoryConfig) *Backend {
	return &Backend{cfg: cfg}
}

func (b *Backend) Init() error  { return nil }
func (b *Backend) Close() error { return nil }

// StartSession resets all collections and assigns the session an ID.
func (b *Backend) StartSession(s *core.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.idCounter++
	s.ID = b.idCounter
	cp := *s
	cp.Joints = slices.Clone(s.Joints)
	b.session = &cp

	b.frames = nil
	b.builds = nil
	b.fits = nil
	b.binds = nil
	return nil
}

// EndSession exports the session; a second call without a new session is a no-op.
func (b *Backend) EndSession() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session == nil {
		return nil
	}
	if err := b.exportJSON(); err != nil {
		return err
	}
	b.session = nil
	return nil
}

func (b *Backend) RecordFrame(f *core.FrameRecord) error {
	return b.record(func() {
		cp := *f
		cp.Samples = slices.Clone(f.Samples)
		b.frames = append(b.frames, cp)
	})
}

func (b *Backend) RecordBuild(r *core.BuildRecord) error {
	return b.record(func() { b.builds = append(b.builds, *r) })
}

func (b *Backend) RecordFit(f *core.FitRecord) error {
	return b.record(func() { b.fits = append(b.fits, *f) })
}

func (b *Backend) RecordBind(r *core.BindRecord) error {
	return b.record(func() { b.binds = append(b.binds, *r) })
}

func (b *Backend) record(fn func()) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session == nil {
		return ErrNoSession
	}
	fn()
	return nil
}

// ExportedFilePath is the file written by the last EndSession.
func (b *Backend) ExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// Counts reports how many frames, builds, fits and binds the active session holds.
func (b *Backend) Counts() (frames, builds, fits, binds int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.frames), len(b.builds), len(b.fits), len(b.binds)
}
