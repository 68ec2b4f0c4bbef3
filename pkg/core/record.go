// pkg/core/record.go
package core

import (
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// Session is one rigging session as seen by storage backends.
// ID is assigned by the backend on StartSession.
type Session struct {
	ID           uint
	UID          string
	TemplatePath string
	Unit         LengthUnit
	StartTime    time.Time
	Joints       []JointEntry
}

// FrameRecord is a marker frame captured during a session
type FrameRecord struct {
	Time    time.Time
	Samples []MarkerSample
}

// BuildRecord describes a built skeleton. Offsets are parent-relative
// centimeters keyed by joint name.
type BuildRecord struct {
	Time      time.Time
	Namespace string
	Root      string
	Joints    int
	Offsets   map[string]r3.Vec
}

// FitRecord is the outcome of an anthropometric fit
type FitRecord struct {
	Time           time.Time
	Namespace      string
	Height         float64
	LeftArmLength  float64
	RightArmLength float64
	HipCenter      r3.Vec
	Scales         map[string]r3.Vec
	Rotations      map[string]r3.Vec // degrees
}

// JointBinding is the driver set of one joint
type JointBinding struct {
	Joint   string
	Markers []string
	Kind    ConstraintKind
}

// BindRecord is an installed marker mapping
type BindRecord struct {
	Time           time.Time
	Namespace      string
	Source         string
	Bindings       []JointBinding
	UnmappedSlots  []string
	UnmappedJoints []string
}
