// Package estimate computes joint world positions from a marker frame and
// turns them into parent-relative offsets for the skeleton builder.
package estimate

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/flexmocap/rigcore/internal/marker"
	"github.com/flexmocap/rigcore/internal/rigerr"
	"github.com/flexmocap/rigcore/internal/topology"
	"github.com/flexmocap/rigcore/pkg/core"
	"gonum.org/v1/gonum/spatial/r3"
)

// Strategy estimates the world position of one joint. ok is false when the
// strategy has nothing to say about the joint.
type Strategy interface {
	Estimate(e core.JointEntry, frame *marker.Frame) (pos r3.Vec, ok bool, err error)
}

// Centroid averages a joint's estimator markers.
type Centroid struct{}

func (Centroid) Estimate(e core.JointEntry, frame *marker.Frame) (r3.Vec, bool, error) {
	if len(e.Estimators) == 0 {
		return r3.Vec{}, false, nil
	}
	c, err := frame.Centroid(e.Estimators)
	if err != nil {
		return r3.Vec{}, false, err
	}
	return c, true, nil
}

// FloorMode selects the height the root joint is projected onto
type FloorMode int

const (
	// FloorAbsolute uses a fixed ground height
	FloorAbsolute FloorMode = iota
	// FloorMinMarker uses the lowest marker in the frame
	FloorMinMarker
)

func (m FloorMode) String() string {
	if m == FloorMinMarker {
		return "minMarker"
	}
	return "absolute"
}

// ParseFloorMode accepts "absolute" (or empty) and "minMarker".
func ParseFloorMode(s string) (FloorMode, error) {
	switch s {
	case "", "absolute":
		return FloorAbsolute, nil
	case "minMarker":
		return FloorMinMarker, nil
	}
	return FloorAbsolute, fmt.Errorf("unknown floor mode %q", s)
}

// Floor is the ground plane policy for the root joint
type Floor struct {
	Mode   FloorMode
	Height float64
}

// Level returns the floor height for frame.
func (f Floor) Level(frame *marker.Frame) float64 {
	if f.Mode == FloorMinMarker && frame.Len() > 0 {
		return frame.MinHeight()
	}
	return f.Height
}

// Estimator runs a Strategy over a topology
type Estimator struct {
	Strategy Strategy
	// RootAnchor is the joint whose horizontal position places the root.
	RootAnchor string
	Floor      Floor
	Logger     *slog.Logger
}

// New returns a centroid estimator anchored at Hips on an absolute floor at 0.
func New(logger *slog.Logger) *Estimator {
	return &Estimator{Strategy: Centroid{}, RootAnchor: "Hips", Logger: logger}
}

func (e *Estimator) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

// Estimate returns world positions for every joint the strategy covers. The
// root is placed on the floor beneath the anchor joint. A joint whose markers
// are missing from the frame aborts the estimate.
func (e *Estimator) Estimate(top *topology.Topology, frame *marker.Frame) (map[string]r3.Vec, error) {
	strategy := e.Strategy
	if strategy == nil {
		strategy = Centroid{}
	}
	root, hasRoot := top.Root()

	out := make(map[string]r3.Vec)
	for _, j := range top.Entries() {
		if j.Name == root {
			continue
		}
		pos, ok, err := strategy.Estimate(j, frame)
		if err != nil {
			var pe *rigerr.PreconditionError
			if errors.As(err, &pe) {
				return nil, rigerr.Precondition(pe.Kind, "joint "+j.Name+": "+pe.Detail, pe.Missing...)
			}
			return nil, fmt.Errorf("estimate %s: %w", j.Name, err)
		}
		if ok {
			out[j.Name] = pos
		}
	}

	if hasRoot {
		if anchor, ok := out[e.RootAnchor]; ok {
			out[root] = r3.Vec{X: anchor.X, Y: e.Floor.Level(frame), Z: anchor.Z}
		} else {
			e.logger().Warn("Root not estimated, anchor joint has no estimate", "root", root, "anchor", e.RootAnchor)
		}
	}
	e.logger().Debug("Joints estimated", "count", len(out), "joints", top.Len())
	return out, nil
}

// ToRelativeOffsets converts world estimates into parent-relative offsets in
// centimeters. A joint whose parent has an estimate gets the difference; the
// root keeps its estimate; any other joint falls back to its template default.
// Joints without an estimate are omitted.
func ToRelativeOffsets(estimates map[string]r3.Vec, top *topology.Topology) map[string]r3.Vec {
	out := make(map[string]r3.Vec, len(estimates))
	for _, j := range top.Entries() {
		pos, ok := estimates[j.Name]
		if !ok {
			continue
		}
		if j.IsRoot() {
			out[j.Name] = pos
			continue
		}
		if parent, ok := estimates[j.Parent]; ok {
			out[j.Name] = r3.Sub(pos, parent)
			continue
		}
		out[j.Name] = top.Unit.ToCentimeters(j.DefaultOffset)
	}
	return out
}
