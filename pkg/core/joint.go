// pkg/core/joint.go
package core

import (
	"fmt"
	"slices"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// ConstraintKind is the goal type applied to a joint from its drivers.
// Values match the integer goal codes written to templates and character marker sets.
type ConstraintKind int

const (
	ConstraintFullFit  ConstraintKind = 0 // position and rotate in the point set
	ConstraintAim      ConstraintKind = 1 // aim at a single marker
	ConstraintTwoPoint ConstraintKind = 2 // orient and position from a two-point line
)

func (k ConstraintKind) String() string {
	switch k {
	case ConstraintFullFit:
		return "FullFit"
	case ConstraintAim:
		return "Aim"
	case ConstraintTwoPoint:
		return "TwoPoint"
	default:
		return fmt.Sprintf("ConstraintKind(%d)", int(k))
	}
}

// Valid reports whether k is one of the known goal codes.
func (k ConstraintKind) Valid() bool {
	return k >= ConstraintFullFit && k <= ConstraintTwoPoint
}

// RotationMode describes how a joint may rotate
type RotationMode uint8

const (
	RotationNone RotationMode = iota
	RotationBall
	RotationHinge
)

func (m RotationMode) String() string {
	switch m {
	case RotationBall:
		return "ball"
	case RotationHinge:
		return "hinge"
	default:
		return ""
	}
}

// ParseRotationMode parses the tabular template spelling ("ball", "hinge" or "").
func ParseRotationMode(s string) (RotationMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return RotationNone, nil
	case "ball":
		return RotationBall, nil
	case "hinge":
		return RotationHinge, nil
	default:
		return RotationNone, fmt.Errorf("unknown rotation mode %q", s)
	}
}

// JointType is the role of a template entry
type JointType uint8

const (
	JointBone JointType = iota
	JointMarker
	JointEnd
)

func (t JointType) String() string {
	switch t {
	case JointMarker:
		return "marker"
	case JointEnd:
		return "end"
	default:
		return "bone"
	}
}

// ParseJointType parses "bone", "marker" or "end". Empty means bone.
func ParseJointType(s string) (JointType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "bone":
		return JointBone, nil
	case "marker":
		return JointMarker, nil
	case "end":
		return JointEnd, nil
	default:
		return JointBone, fmt.Errorf("unknown joint type %q", s)
	}
}

// LengthUnit is the unit offsets are stored in by a template
type LengthUnit uint8

const (
	Centimeters LengthUnit = iota
	Meters
)

func (u LengthUnit) String() string {
	if u == Meters {
		return "m"
	}
	return "cm"
}

// CentimetersPerUnit returns the factor converting one template unit to centimeters.
func (u LengthUnit) CentimetersPerUnit() float64 {
	if u == Meters {
		return 100.0
	}
	return 1.0
}

// ToCentimeters converts v from the template unit to centimeters.
func (u LengthUnit) ToCentimeters(v r3.Vec) r3.Vec {
	return r3.Scale(u.CentimetersPerUnit(), v)
}

// FromCentimeters converts a length in centimeters to the template unit.
func (u LengthUnit) FromCentimeters(cm float64) float64 {
	return cm / u.CentimetersPerUnit()
}

// AxisRange is a closed search window on one axis
type AxisRange struct {
	Min float64
	Max float64
}

// Bounds is a per-axis search window around a joint offset
type Bounds struct {
	X AxisRange
	Y AxisRange
	Z AxisRange
}

// JointEntry is one joint of a topology template.
// Offsets are parent-relative and expressed in the owning template's LengthUnit.
type JointEntry struct {
	Name          string
	Parent        string // empty for the root
	DefaultOffset r3.Vec
	Estimators    []int // marker indices whose centroid estimates the joint
	Drivers       []int // marker indices bound at runtime
	Type          JointType
	RotationMode  RotationMode
	Bounds        *Bounds
	OptimizeGroup string

	// StoredConstraint is the goal code persisted by key-value templates.
	// Binding derives the kind from the driver count instead.
	StoredConstraint ConstraintKind
}

// IsRoot reports whether the entry has no parent.
func (e JointEntry) IsRoot() bool {
	return e.Parent == ""
}

// Clone returns a deep copy of the entry.
func (e JointEntry) Clone() JointEntry {
	c := e
	c.Estimators = slices.Clone(e.Estimators)
	c.Drivers = slices.Clone(e.Drivers)
	if e.Bounds != nil {
		b := *e.Bounds
		c.Bounds = &b
	}
	return c
}
