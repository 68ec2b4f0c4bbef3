package convert

import (
	"github.com/flexmocap/rigcore/internal/geo"
	"github.com/flexmocap/rigcore/internal/model"
	"github.com/flexmocap/rigcore/pkg/core"
	"gorm.io/datatypes"
)

func intsJSON(v []int) datatypes.JSON {
	if v == nil {
		v = []int{}
	}
	return mustJSON(v)
}

func stringsJSON(v []string) datatypes.JSON {
	if v == nil {
		v = []string{}
	}
	return mustJSON(v)
}

// CoreToTemplateJoint converts entry number ordinal of a template.
func CoreToTemplateJoint(e core.JointEntry, ordinal int) model.TemplateJoint {
	j := model.TemplateJoint{
		Ordinal:          ordinal,
		Name:             e.Name,
		Parent:           e.Parent,
		Offset:           geo.PointFromVec(e.DefaultOffset),
		Estimators:       intsJSON(e.Estimators),
		Drivers:          intsJSON(e.Drivers),
		JointType:        e.Type.String(),
		RotationMode:     e.RotationMode.String(),
		OptimizeGroup:    e.OptimizeGroup,
		Bounds:           datatypes.JSON("null"),
		StoredConstraint: int8(e.StoredConstraint),
	}
	if e.Bounds != nil {
		j.Bounds = mustJSON(e.Bounds)
	}
	return j
}

// CoreToSession converts a session including its template joints.
func CoreToSession(s core.Session) model.RigSession {
	out := model.RigSession{
		UID:          s.UID,
		TemplatePath: s.TemplatePath,
		Unit:         s.Unit.String(),
		StartTime:    s.StartTime,
	}
	out.ID = s.ID
	for i, e := range s.Joints {
		out.Joints = append(out.Joints, CoreToTemplateJoint(e, i))
	}
	return out
}

// CoreToMarkerSamples flattens a frame into one row per marker.
func CoreToMarkerSamples(f core.FrameRecord) []model.MarkerSample {
	out := make([]model.MarkerSample, 0, len(f.Samples))
	for _, s := range f.Samples {
		out = append(out, model.MarkerSample{
			Time:     f.Time,
			Label:    s.ID,
			Position: geo.PointFromVec(s.Position),
		})
	}
	return out
}

func CoreToSkeletonBuild(b core.BuildRecord) model.SkeletonBuild {
	return model.SkeletonBuild{
		Time:       b.Time,
		Namespace:  b.Namespace,
		Root:       b.Root,
		JointCount: uint16(b.Joints),
		Offsets:    vecMapToJSON(b.Offsets),
	}
}

func CoreToFitRun(f core.FitRecord) model.FitRun {
	return model.FitRun{
		Time:           f.Time,
		Namespace:      f.Namespace,
		Height:         f.Height,
		LeftArmLength:  f.LeftArmLength,
		RightArmLength: f.RightArmLength,
		HipCenter:      geo.PointFromVec(f.HipCenter),
		Scales:         vecMapToJSON(f.Scales),
		Rotations:      vecMapToJSON(f.Rotations),
	}
}

func CoreToMappingRun(b core.BindRecord) model.MappingRun {
	out := model.MappingRun{
		Time:           b.Time,
		Namespace:      b.Namespace,
		Source:         b.Source,
		UnmappedSlots:  stringsJSON(b.UnmappedSlots),
		UnmappedJoints: stringsJSON(b.UnmappedJoints),
	}
	for _, jb := range b.Bindings {
		out.Bindings = append(out.Bindings, model.MarkerBinding{
			Joint:      jb.Joint,
			Markers:    stringsJSON(jb.Markers),
			Constraint: int8(jb.Kind),
		})
	}
	return out
}
