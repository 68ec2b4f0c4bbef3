package mapping

import (
	"errors"
	"testing"

	"github.com/flexmocap/rigcore/internal/marker"
	"github.com/flexmocap/rigcore/internal/rigerr"
	"github.com/flexmocap/rigcore/internal/scene"
	"github.com/flexmocap/rigcore/internal/scene/memscene"
	"github.com/flexmocap/rigcore/internal/skeleton"
	"github.com/flexmocap/rigcore/internal/topology"
	"github.com/flexmocap/rigcore/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestKindForDriverCount(t *testing.T) {
	tests := []struct {
		n    int
		kind core.ConstraintKind
		ok   bool
	}{
		{0, core.ConstraintFullFit, false},
		{1, core.ConstraintAim, true},
		{2, core.ConstraintTwoPoint, true},
		{3, core.ConstraintFullFit, true},
		{5, core.ConstraintFullFit, true},
	}
	for _, tt := range tests {
		kind, ok := KindForDriverCount(tt.n)
		assert.Equal(t, tt.ok, ok, "n=%d", tt.n)
		if tt.ok {
			assert.Equal(t, tt.kind, kind, "n=%d", tt.n)
		}
	}
}

type rig struct {
	host *memscene.Scene
	skel *skeleton.Skeleton
	srcs Sources
}

// newRig builds the default skeleton plus n optical and p predicted markers.
func newRig(t *testing.T, n, p int) *rig {
	t.Helper()
	host := memscene.New()
	skel, err := skeleton.NewBuilder(host, skeleton.DefaultOptions(), nil).Build("actor", topology.Default(), nil)
	require.NoError(t, err)

	conv := marker.DefaultConvention()
	optical, err := host.AddGroup(nil, "optical")
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		_, err := host.AddMarker(optical, conv.NumericName(i), scene.KindMarker, r3.Vec{X: float64(i)})
		require.NoError(t, err)
	}
	predicted, err := host.AddGroup(nil, "predicted")
	require.NoError(t, err)
	for i := 0; i < p; i++ {
		_, err := host.AddMarker(predicted, "P"+conv.NumericName(i), scene.KindPredictedMarker, r3.Vec{X: float64(i)})
		require.NoError(t, err)
	}
	return &rig{
		host: host,
		skel: skel,
		srcs: Sources{
			Optical:   marker.Discover(optical, scene.KindMarker, conv),
			Predicted: marker.Discover(predicted, scene.KindPredictedMarker, conv),
		},
	}
}

func TestCharacterize(t *testing.T) {
	r := newRig(t, 38, 0)

	char, warn, err := Characterize(r.host, r.skel, "actorChar", true, nil)
	require.NoError(t, err)
	assert.Same(t, char, r.skel.Character)
	assert.True(t, char.Characterized())
	assert.Empty(t, warn.UnmappedJoints)
	assert.ElementsMatch(t, []string{"Spine1", "Spine2", "LeftShoulder", "RightShoulder"}, warn.UnmappedSlots)

	hips, _ := r.skel.Joint("Hips")
	linked, ok := char.Linked("Hips")
	require.True(t, ok)
	assert.Same(t, hips, linked)

	mc, ok := r.host.Character("actorChar")
	require.True(t, ok)
	created, active := mc.HasControlRig()
	assert.True(t, created)
	assert.True(t, active)
}

func TestCharacterize_UnknownJoint(t *testing.T) {
	host := memscene.New(memscene.WithSlots([]string{"Reference", "Hips"}))
	skel, err := skeleton.NewBuilder(host, skeleton.DefaultOptions(), nil).Build("actor", topology.Default(), nil)
	require.NoError(t, err)

	char, warn, err := Characterize(host, skel, "c", false, nil)
	require.NoError(t, err)
	assert.Len(t, warn.UnmappedJoints, 19)
	assert.Empty(t, warn.UnmappedSlots)
	assert.True(t, char.Characterized())
}

func TestCharacterize_MissingNamespace(t *testing.T) {
	r := newRig(t, 0, 0)
	require.NoError(t, skeleton.Destroy(r.host, r.skel))
	_, _, err := Characterize(r.host, r.skel, "c", false, nil)
	assert.ErrorIs(t, err, rigerr.ErrNamespaceMissing)
}

func TestBind_NoCharacter(t *testing.T) {
	r := newRig(t, 38, 0)
	_, _, err := New(DefaultOptions(), nil).Bind(r.skel, topology.Default(), r.srcs, false)
	assert.ErrorIs(t, err, rigerr.ErrNoCharacterTarget)
}

func TestBind_Optical(t *testing.T) {
	r := newRig(t, 38, 0)
	_, _, err := Characterize(r.host, r.skel, "c", false, nil)
	require.NoError(t, err)

	m, warn, err := New(DefaultOptions(), nil).Bind(r.skel, topology.Default(), r.srcs, false)
	require.NoError(t, err)
	assert.Equal(t, SourceOptical, m.Source)
	assert.Equal(t, "actor", m.Namespace)
	assert.Len(t, m.Bindings, 16)
	assert.Empty(t, warn.UnmappedJoints)
	assert.Len(t, warn.UnmappedSlots, 4)

	set, ok := r.skel.Character.MarkerSet()
	require.True(t, ok)

	tests := []struct {
		joint   string
		kind    core.ConstraintKind
		markers []string
	}{
		{"LeftUpLeg", core.ConstraintAim, []string{"M029"}},
		{"LeftLeg", core.ConstraintTwoPoint, []string{"M027", "M028"}},
		{"Hips", core.ConstraintFullFit, []string{"M008", "M009", "M030", "M031"}},
		{"Neck", core.ConstraintFullFit, []string{"M006", "M010", "M017"}},
	}
	for _, tt := range tests {
		b, ok := m.Binding(tt.joint)
		require.True(t, ok, tt.joint)
		assert.Equal(t, tt.kind, b.Kind, tt.joint)
		assert.Equal(t, tt.markers, b.Markers, tt.joint)

		kind, ok := set.Constraint(tt.joint)
		require.True(t, ok, tt.joint)
		assert.Equal(t, tt.kind, kind, tt.joint)
		assert.Len(t, set.Sources(tt.joint), len(tt.markers), tt.joint)
	}

	// joints without drivers stay unconstrained
	_, ok = set.Constraint("LeftToeBase")
	assert.False(t, ok)
	_, ok = m.Binding("Reference")
	assert.False(t, ok)
}

func TestBind_RebindReplaces(t *testing.T) {
	r := newRig(t, 38, 38)
	_, _, err := Characterize(r.host, r.skel, "c", false, nil)
	require.NoError(t, err)
	mapper := New(DefaultOptions(), nil)

	_, _, err = mapper.Bind(r.skel, topology.Default(), r.srcs, false)
	require.NoError(t, err)
	first, _ := r.skel.Character.MarkerSet()

	m, _, err := mapper.Bind(r.skel, topology.Default(), r.srcs, true)
	require.NoError(t, err)
	assert.Equal(t, SourcePredicted, m.Source)

	second, ok := r.skel.Character.MarkerSet()
	require.True(t, ok)
	assert.NotSame(t, first, second)
	assert.Empty(t, first.Sources("Hips"))

	sources := second.Sources("LeftUpLeg")
	require.Len(t, sources, 1)
	assert.Equal(t, "PM029", sources[0].Name())
	assert.Equal(t, scene.KindPredictedMarker, sources[0].Kind())
}

func TestBind_NoPredicted(t *testing.T) {
	r := newRig(t, 38, 0)
	_, _, err := Characterize(r.host, r.skel, "c", false, nil)
	require.NoError(t, err)
	mapper := New(DefaultOptions(), nil)
	_, _, err = mapper.Bind(r.skel, topology.Default(), r.srcs, false)
	require.NoError(t, err)
	before, _ := r.skel.Character.MarkerSet()

	_, _, err = mapper.Bind(r.skel, topology.Default(), r.srcs, true)
	assert.ErrorIs(t, err, rigerr.ErrNoPredictedMarkers)

	// failed rebind leaves the previous mapping in place
	after, ok := r.skel.Character.MarkerSet()
	require.True(t, ok)
	assert.Same(t, before, after)
	assert.Len(t, after.Sources("Hips"), 4)
}

func TestBind_MissingDriversAbortsBeforeTeardown(t *testing.T) {
	r := newRig(t, 20, 0)
	_, _, err := Characterize(r.host, r.skel, "c", false, nil)
	require.NoError(t, err)

	_, _, err = New(DefaultOptions(), nil).Bind(r.skel, topology.Default(), r.srcs, false)
	assert.ErrorIs(t, err, rigerr.ErrMissingMarkers)
	_, ok := r.skel.Character.MarkerSet()
	assert.False(t, ok)
}

func TestBind_InsufficientMarkers(t *testing.T) {
	r := newRig(t, 38, 0)
	_, _, err := Characterize(r.host, r.skel, "c", false, nil)
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.MinMarkers = 40
	_, _, err = New(opts, nil).Bind(r.skel, topology.Default(), r.srcs, false)
	assert.ErrorIs(t, err, rigerr.ErrInsufficientMarkers)
}

func TestBind_MarkerChildren(t *testing.T) {
	top, err := topology.FromEntries(core.Centimeters, []core.JointEntry{
		{Name: "Reference"},
		{Name: "Hips", Parent: "Reference", DefaultOffset: r3.Vec{Y: 95}},
		{Name: "hipL", Parent: "Hips", Type: core.JointMarker, DefaultOffset: r3.Vec{X: 10}},
		{Name: "hipR", Parent: "Hips", Type: core.JointMarker, DefaultOffset: r3.Vec{X: -10}},
		{Name: "hipBack", Parent: "Hips", Type: core.JointMarker, DefaultOffset: r3.Vec{Z: -10}},
	})
	require.NoError(t, err)

	host := memscene.New()
	skel, err := skeleton.NewBuilder(host, skeleton.DefaultOptions(), nil).Build("actor", top, nil)
	require.NoError(t, err)
	g, err := host.AddGroup(nil, "optical")
	require.NoError(t, err)
	// hipBack is occluded
	for _, name := range []string{"marker_hipL", "marker_hipR"} {
		_, err := host.AddMarker(g, name, scene.KindMarker, r3.Vec{})
		require.NoError(t, err)
	}
	srcs := Sources{Optical: marker.Discover(g, scene.KindMarker, marker.DefaultConvention())}

	_, _, err = Characterize(host, skel, "c", false, nil)
	require.NoError(t, err)

	m, _, err := New(Options{MarkerChildren: true}, nil).Bind(skel, top, srcs, false)
	require.NoError(t, err)
	require.Len(t, m.Bindings, 1)
	assert.Equal(t, "Hips", m.Bindings[0].Joint)
	assert.Equal(t, core.ConstraintTwoPoint, m.Bindings[0].Kind)
	assert.Equal(t, []string{"marker_hipL", "marker_hipR"}, m.Bindings[0].Markers)

	// without the option only index drivers count
	m, _, err = New(Options{}, nil).Bind(skel, top, srcs, false)
	require.NoError(t, err)
	assert.Empty(t, m.Bindings)
}

func TestCheck(t *testing.T) {
	m := New(DefaultOptions(), nil)
	top := topology.Default()

	assert.NoError(t, m.Check(top, newRig(t, 38, 0).srcs, false))
	assert.ErrorIs(t, m.Check(top, newRig(t, 38, 0).srcs, true), rigerr.ErrNoPredictedMarkers)
	assert.ErrorIs(t, m.Check(top, newRig(t, 36, 0).srcs, false), rigerr.ErrMissingMarkers)
}

var (
	errConnect = errors.New("connect refused")
	errDelete  = errors.New("delete refused")
)

type brokenCharacter struct{ scene.Character }

func (c brokenCharacter) CreateMarkerSet() (scene.MarkerSet, error) {
	ms, err := c.Character.CreateMarkerSet()
	if err != nil {
		return nil, err
	}
	return brokenSet{ms}, nil
}

type brokenSet struct{ scene.MarkerSet }

func (brokenSet) ReplaceSources(string, []scene.Node) error { return errConnect }
func (brokenSet) Delete() error                             { return errDelete }

func TestBind_ConnectFailureKeepsCleanupError(t *testing.T) {
	r := newRig(t, 38, 0)
	char, _, err := Characterize(r.host, r.skel, "actorChar", false, nil)
	require.NoError(t, err)
	r.skel.Character = brokenCharacter{char}

	_, _, err = New(DefaultOptions(), nil).Bind(r.skel, topology.Default(), r.srcs, false)
	assert.ErrorIs(t, err, errConnect)
	assert.ErrorIs(t, err, errDelete)
}
