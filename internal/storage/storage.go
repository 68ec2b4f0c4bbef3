// internal/storage/storage.go
package storage

import "github.com/flexmocap/rigcore/pkg/core"

// Backend persists rigging sessions. Record calls between StartSession and
// EndSession belong to that session.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Session management (StartSession assigns s.ID)
	StartSession(s *core.Session) error
	EndSession() error

	// Recording
	RecordFrame(f *core.FrameRecord) error
	RecordBuild(b *core.BuildRecord) error
	RecordFit(f *core.FitRecord) error
	RecordBind(b *core.BindRecord) error
}

// Exportable is implemented by backends that write a file per session.
type Exportable interface {
	ExportedFilePath() string
}

// Discard drops everything; used for storage.type "none".
type Discard struct{}

func (Discard) Init() error                         { return nil }
func (Discard) Close() error                        { return nil }
func (Discard) StartSession(*core.Session) error    { return nil }
func (Discard) EndSession() error                   { return nil }
func (Discard) RecordFrame(*core.FrameRecord) error { return nil }
func (Discard) RecordBuild(*core.BuildRecord) error { return nil }
func (Discard) RecordFit(*core.FitRecord) error     { return nil }
func (Discard) RecordBind(*core.BindRecord) error   { return nil }
