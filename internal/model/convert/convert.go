// Package convert maps GORM rig models to core records and back
package convert

import (
	"encoding/json"
	"sort"

	"github.com/flexmocap/rigcore/internal/geo"
	"github.com/flexmocap/rigcore/internal/model"
	"github.com/flexmocap/rigcore/pkg/core"
	"gonum.org/v1/gonum/spatial/r3"
	"gorm.io/datatypes"
)

// vec3 is the JSON form of a vector inside datatypes.JSON columns
type vec3 [3]float64

func toVec3(v r3.Vec) vec3 { return vec3{v.X, v.Y, v.Z} }
func (v vec3) vec() r3.Vec { return r3.Vec{X: v[0], Y: v[1], Z: v[2]} }

func vecMapToJSON(m map[string]r3.Vec) datatypes.JSON {
	out := make(map[string]vec3, len(m))
	for k, v := range m {
		out[k] = toVec3(v)
	}
	return mustJSON(out)
}

func vecMapFromJSON(raw datatypes.JSON) map[string]r3.Vec {
	if len(raw) == 0 {
		return nil
	}
	var in map[string]vec3
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil
	}
	out := make(map[string]r3.Vec, len(in))
	for k, v := range in {
		out[k] = v.vec()
	}
	return out
}

// mustJSON only sees plain slices and maps, which always marshal.
func mustJSON(v any) datatypes.JSON {
	b, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("null")
	}
	return datatypes.JSON(b)
}

func fromJSON[T any](raw datatypes.JSON) T {
	var out T
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return out
}

func unitFromString(s string) core.LengthUnit {
	if s == core.Meters.String() {
		return core.Meters
	}
	return core.Centimeters
}

// TemplateJointToCore converts a stored template row back to an entry.
func TemplateJointToCore(j model.TemplateJoint) core.JointEntry {
	e := core.JointEntry{
		Name:             j.Name,
		Parent:           j.Parent,
		DefaultOffset:    geo.VecFromPoint(j.Offset),
		Estimators:       fromJSON[[]int](j.Estimators),
		Drivers:          fromJSON[[]int](j.Drivers),
		OptimizeGroup:    j.OptimizeGroup,
		StoredConstraint: core.ConstraintKind(j.StoredConstraint),
	}
	// rows are written by CoreToTemplateJoint, so the names parse
	e.Type, _ = core.ParseJointType(j.JointType)
	e.RotationMode, _ = core.ParseRotationMode(j.RotationMode)
	if b := fromJSON[*core.Bounds](j.Bounds); b != nil {
		e.Bounds = b
	}
	return e
}

// SessionToCore converts a session with its preloaded joints, in template order.
func SessionToCore(s *model.RigSession) core.Session {
	joints := make([]model.TemplateJoint, len(s.Joints))
	copy(joints, s.Joints)
	sort.SliceStable(joints, func(a, b int) bool { return joints[a].Ordinal < joints[b].Ordinal })

	out := core.Session{
		ID:           s.ID,
		UID:          s.UID,
		TemplatePath: s.TemplatePath,
		Unit:         unitFromString(s.Unit),
		StartTime:    s.StartTime,
	}
	for _, j := range joints {
		out.Joints = append(out.Joints, TemplateJointToCore(j))
	}
	return out
}

func MarkerSampleToCore(m model.MarkerSample) core.MarkerSample {
	return core.MarkerSample{ID: m.Label, Position: geo.VecFromPoint(m.Position)}
}

func SkeletonBuildToCore(b model.SkeletonBuild) core.BuildRecord {
	return core.BuildRecord{
		Time:      b.Time,
		Namespace: b.Namespace,
		Root:      b.Root,
		Joints:    int(b.JointCount),
		Offsets:   vecMapFromJSON(b.Offsets),
	}
}

func FitRunToCore(f model.FitRun) core.FitRecord {
	return core.FitRecord{
		Time:           f.Time,
		Namespace:      f.Namespace,
		Height:         f.Height,
		LeftArmLength:  f.LeftArmLength,
		RightArmLength: f.RightArmLength,
		HipCenter:      geo.VecFromPoint(f.HipCenter),
		Scales:         vecMapFromJSON(f.Scales),
		Rotations:      vecMapFromJSON(f.Rotations),
	}
}

func MappingRunToCore(m model.MappingRun) core.BindRecord {
	out := core.BindRecord{
		Time:           m.Time,
		Namespace:      m.Namespace,
		Source:         m.Source,
		UnmappedSlots:  fromJSON[[]string](m.UnmappedSlots),
		UnmappedJoints: fromJSON[[]string](m.UnmappedJoints),
	}
	for _, b := range m.Bindings {
		out.Bindings = append(out.Bindings, core.JointBinding{
			Joint:   b.Joint,
			Markers: fromJSON[[]string](b.Markers),
			Kind:    core.ConstraintKind(b.Constraint),
		})
	}
	return out
}
