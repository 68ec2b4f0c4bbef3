package convert

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/flexmocap/rigcore/internal/topology"
	"github.com/flexmocap/rigcore/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestTemplateJoint_RoundTrip(t *testing.T) {
	e := core.JointEntry{
		Name:          "LeftLeg",
		Parent:        "LeftUpLeg",
		DefaultOffset: r3.Vec{X: 0, Y: -42.7, Z: -0.4},
		Estimators:    []int{27, 28},
		Drivers:       []int{27, 28},
		RotationMode:  core.RotationHinge,
		OptimizeGroup: "legs",
		Bounds: &core.Bounds{
			X: core.AxisRange{Min: -20, Max: 20},
			Y: core.AxisRange{Min: -62.7, Max: -22.7},
			Z: core.AxisRange{Min: -20.4, Max: 19.6},
		},
		StoredConstraint: core.ConstraintTwoPoint,
	}

	row := CoreToTemplateJoint(e, 3)
	assert.Equal(t, 3, row.Ordinal)
	assert.Equal(t, "hinge", row.RotationMode)
	assert.Equal(t, "bone", row.JointType)
	assert.JSONEq(t, `[27,28]`, string(row.Drivers))

	assert.Equal(t, e, TemplateJointToCore(row))
}

func TestTemplateJoint_NoBounds(t *testing.T) {
	row := CoreToTemplateJoint(core.JointEntry{Name: "Reference", Type: core.JointEnd}, 0)
	assert.Equal(t, "null", string(row.Bounds))
	assert.JSONEq(t, `[]`, string(row.Estimators))

	back := TemplateJointToCore(row)
	assert.Nil(t, back.Bounds)
	assert.Equal(t, core.JointEnd, back.Type)
	assert.Empty(t, back.Drivers)
}

func TestSession_RoundTripKeepsOrder(t *testing.T) {
	top := topology.Default()
	start := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	s := core.Session{UID: "abc", TemplatePath: "body.ini", Unit: core.Meters, StartTime: start, Joints: top.Entries()}

	row := CoreToSession(s)
	assert.Equal(t, "m", row.Unit)
	require.Len(t, row.Joints, top.Len())

	// storage may hand rows back in any order
	row.Joints[0], row.Joints[5] = row.Joints[5], row.Joints[0]
	back := SessionToCore(&row)
	assert.Equal(t, core.Meters, back.Unit)
	assert.Equal(t, start, back.StartTime)
	require.Len(t, back.Joints, top.Len())
	for i, e := range top.Entries() {
		assert.Equal(t, e.Name, back.Joints[i].Name)
	}
}

func TestMarkerSamples(t *testing.T) {
	now := time.Now()
	rows := CoreToMarkerSamples(core.FrameRecord{Time: now, Samples: []core.MarkerSample{
		{ID: "M000", Position: r3.Vec{X: 1, Y: 2, Z: 3}},
		{ID: "marker_LHEE", Position: r3.Vec{X: -4, Y: 0.5, Z: 9}},
	}})
	require.Len(t, rows, 2)
	assert.Equal(t, now, rows[1].Time)
	assert.Equal(t, core.MarkerSample{ID: "marker_LHEE", Position: r3.Vec{X: -4, Y: 0.5, Z: 9}}, MarkerSampleToCore(rows[1]))
}

func TestSkeletonBuild_RoundTrip(t *testing.T) {
	rec := core.BuildRecord{
		Namespace: "actor",
		Root:      "Reference",
		Joints:    21,
		Offsets:   map[string]r3.Vec{"Hips": {Y: 97.2, Z: -7.3}, "Head": {Y: 15.3, Z: 2.7}},
	}
	row := CoreToSkeletonBuild(rec)

	var raw map[string][3]float64
	require.NoError(t, json.Unmarshal(row.Offsets, &raw))
	assert.Equal(t, [3]float64{0, 97.2, -7.3}, raw["Hips"])

	assert.Equal(t, rec, SkeletonBuildToCore(row))
}

func TestFitRun_RoundTrip(t *testing.T) {
	rec := core.FitRecord{
		Namespace:      "actor",
		Height:         300.2,
		LeftArmLength:  124.8,
		RightArmLength: 124.8,
		HipCenter:      r3.Vec{X: 0.5, Y: 190, Z: -3},
		Scales:         map[string]r3.Vec{"Hips": {X: 2, Y: 2, Z: 2}},
		Rotations:      map[string]r3.Vec{"LeftArm": {Z: -12.5}},
	}
	assert.Equal(t, rec, FitRunToCore(CoreToFitRun(rec)))
}

func TestMappingRun_RoundTrip(t *testing.T) {
	rec := core.BindRecord{
		Namespace: "actor",
		Source:    "predicted",
		Bindings: []core.JointBinding{
			{Joint: "LeftUpLeg", Markers: []string{"M029"}, Kind: core.ConstraintAim},
			{Joint: "Hips", Markers: []string{"M008", "M009", "M030", "M031"}, Kind: core.ConstraintFullFit},
		},
		UnmappedSlots:  []string{"Spine1"},
		UnmappedJoints: []string{},
	}
	row := CoreToMappingRun(rec)
	require.Len(t, row.Bindings, 2)
	assert.Equal(t, int8(1), row.Bindings[0].Constraint)

	assert.Equal(t, rec, MappingRunToCore(row))
}

func TestVecMapFromJSON_Invalid(t *testing.T) {
	assert.Nil(t, vecMapFromJSON(nil))
	assert.Nil(t, vecMapFromJSON([]byte(`{not json`)))
	assert.Equal(t, map[string]r3.Vec{}, vecMapFromJSON([]byte(`{}`)))
}
