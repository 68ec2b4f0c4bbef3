package rig

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"

	"github.com/flexmocap/rigcore/internal/config"
	"github.com/flexmocap/rigcore/internal/mapping"
	"github.com/flexmocap/rigcore/internal/marker"
	"github.com/flexmocap/rigcore/internal/rigerr"
	"github.com/flexmocap/rigcore/internal/scene"
	"github.com/flexmocap/rigcore/internal/scene/memscene"
	"github.com/flexmocap/rigcore/internal/session"
	"github.com/flexmocap/rigcore/internal/storage/memory"
	"github.com/flexmocap/rigcore/internal/topology"
	"github.com/flexmocap/rigcore/pkg/core"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

type countingMetrics struct {
	built, bound, fitted int
	failed               []string
}

func (m *countingMetrics) Built(context.Context, string)              { m.built++ }
func (m *countingMetrics) Bound(context.Context, string, string, int) { m.bound++ }
func (m *countingMetrics) Fitted(context.Context, string)             { m.fitted++ }
func (m *countingMetrics) Failed(_ context.Context, stage string)     { m.failed = append(m.failed, stage) }

type pointSink struct{ names []string }

func (s *pointSink) WritePoint(p *influxdb2_write.Point) error {
	s.names = append(s.names, p.Name())
	return nil
}

// referenceFrame is a T-pose of 38 numbered markers.
func referenceFrame(t *testing.T, drop ...int) *marker.Frame {
	t.Helper()
	conv := marker.DefaultConvention()
	pos := make(map[int]r3.Vec)
	for i := 0; i < 38; i++ {
		pos[i] = r3.Vec{X: float64(i%5) - 2, Y: 90 + float64(i), Z: float64(i % 3)}
	}
	pos[8], pos[30] = r3.Vec{X: 8, Y: 100}, r3.Vec{X: 8, Y: 100}
	pos[9], pos[31] = r3.Vec{X: -8, Y: 100}, r3.Vec{X: -8, Y: 100}
	pos[10], pos[17] = r3.Vec{X: 20, Y: 150}, r3.Vec{X: -20, Y: 150}
	for _, i := range []int{14, 15, 16} {
		pos[i] = r3.Vec{X: 80, Y: 150}
	}
	for _, i := range []int{21, 22, 23} {
		pos[i] = r3.Vec{X: -80, Y: 150}
	}
	for _, i := range []int{24, 25, 26} {
		pos[i] = r3.Vec{X: 12, Y: 2}
	}
	for _, i := range []int{35, 36, 37} {
		pos[i] = r3.Vec{X: -12, Y: 2}
	}
	for _, i := range drop {
		delete(pos, i)
	}
	var samples []core.MarkerSample
	for i, p := range pos {
		samples = append(samples, core.MarkerSample{ID: conv.NumericName(i), Position: p})
	}
	f, err := marker.NewFrame(samples, conv)
	require.NoError(t, err)
	return f
}

type fixture struct {
	host    *memscene.Scene
	engine  *Engine
	store   *memory.Backend
	metrics *countingMetrics
	points  *pointSink
	frame   *marker.Frame
	sources mapping.Sources
}

func newFixture(t *testing.T, opts Options, drop ...int) *fixture {
	t.Helper()
	host := memscene.New()
	frame := referenceFrame(t, drop...)
	group, err := host.LoadSamples("optical", frame.Samples())
	require.NoError(t, err)

	sess := session.New()
	sess.SetTopology(topology.Default(), "default")

	f := &fixture{
		host:    host,
		store:   memory.New(config.MemoryConfig{OutputDir: t.TempDir()}),
		metrics: &countingMetrics{},
		points:  &pointSink{},
		frame:   frame,
		sources: mapping.Sources{Optical: marker.Discover(group, scene.KindMarker, marker.DefaultConvention())},
	}
	f.engine = New(host, sess, opts, WithStorage(f.store), WithMetrics(f.metrics), WithInflux(f.points))
	return f
}

func TestSetup(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	require.NoError(t, f.engine.Start())

	res, err := f.engine.Setup(context.Background(), "actor", f.frame, f.sources)
	require.NoError(t, err)

	assert.Equal(t, "actor", res.Skeleton.Namespace)
	assert.True(t, f.host.NamespaceExists("actor"))
	require.NotNil(t, res.Fit)
	assert.True(t, res.Character.Characterized())
	assert.Equal(t, mapping.SourceOptical, res.Mapping.Source)
	assert.NotEmpty(t, res.Mapping.Bindings)
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0].UnmappedSlots, "Spine1")

	// root sits on the floor below the hips estimate
	hips := res.Estimates["Hips"]
	root, _ := f.engine.Session().Topology()
	rootName, _ := root.Root()
	assert.Equal(t, r3.Vec{X: hips.X, Y: 0, Z: hips.Z}, res.Estimates[rootName])

	cur, ok := f.engine.Session().Current()
	require.True(t, ok)
	assert.Same(t, res.Skeleton, cur)

	assert.Equal(t, 1, f.metrics.built)
	assert.Equal(t, 1, f.metrics.fitted)
	assert.Equal(t, 1, f.metrics.bound)
	assert.Empty(t, f.metrics.failed)
	assert.Equal(t, []string{"fit_run", "marker_binding"}, f.points.names)

	frames, builds, fits, binds := f.store.Counts()
	assert.Equal(t, []int{1, 1, 1, 1}, []int{frames, builds, fits, binds})

	require.NoError(t, f.engine.Stop())
	data, err := os.ReadFile(f.store.ExportedFilePath())
	require.NoError(t, err)
	var export memory.SessionExport
	require.NoError(t, json.Unmarshal(data, &export))
	assert.Equal(t, f.engine.Session().ID, export.UID)
	assert.Equal(t, "default", export.TemplatePath)
	assert.Len(t, export.Mappings, 1)
}

func TestSetup_NoTemplate(t *testing.T) {
	e := New(memscene.New(), session.New(), DefaultOptions())
	_, err := e.Setup(context.Background(), "actor", referenceFrame(t), mapping.Sources{})
	assert.ErrorIs(t, err, rigerr.ErrEmptyTopology)
	assert.ErrorIs(t, e.Start(), rigerr.ErrEmptyTopology)
}

func TestSetup_MissingMarkersRollsBack(t *testing.T) {
	f := newFixture(t, DefaultOptions(), 30)

	_, err := f.engine.Setup(context.Background(), "actor", f.frame, f.sources)
	require.Error(t, err)
	assert.False(t, f.host.NamespaceExists("actor"))
	_, ok := f.engine.Session().Current()
	assert.False(t, ok)
	assert.Len(t, f.metrics.failed, 1)
}

func TestSetup_SkipFit(t *testing.T) {
	opts := DefaultOptions()
	opts.SkipFit = true
	f := newFixture(t, opts)

	res, err := f.engine.Setup(context.Background(), "actor", f.frame, f.sources)
	require.NoError(t, err)
	assert.Nil(t, res.Fit)
	assert.Zero(t, f.metrics.fitted)
	assert.Equal(t, []string{"marker_binding"}, f.points.names)
}

func TestSetup_NoPredictedLeavesHostUntouched(t *testing.T) {
	opts := DefaultOptions()
	opts.UsePredicted = true
	f := newFixture(t, opts)

	_, err := f.engine.Setup(context.Background(), "actor", f.frame, f.sources)
	assert.ErrorIs(t, err, rigerr.ErrNoPredictedMarkers)
	assert.False(t, f.host.NamespaceExists("actor"))
	_, ok := f.host.Character("actorCharacter")
	assert.False(t, ok)
	assert.Equal(t, []string{"bind"}, f.metrics.failed)
	assert.Zero(t, f.metrics.built)

	retry := New(f.host, f.engine.Session(), DefaultOptions())
	_, err = retry.Setup(context.Background(), "actor", f.frame, f.sources)
	assert.NoError(t, err)
}

// withoutMarker37 is the default template with the right foot driven by
// markers 35 and 36 only.
func withoutMarker37(t *testing.T) *topology.Topology {
	t.Helper()
	top := topology.Default()
	foot, ok := top.Entry("RightFoot")
	require.True(t, ok)
	foot.Estimators, foot.Drivers = []int{35, 36}, []int{35, 36}
	require.NoError(t, top.Update(foot))
	toe, ok := top.Entry("RightToeBase")
	require.True(t, ok)
	toe.Estimators = []int{36}
	require.NoError(t, top.Update(toe))
	return top
}

func TestSetup_InsufficientMarkersLeavesHostUntouched(t *testing.T) {
	tests := []struct {
		name    string
		skipFit bool
		stage   string
	}{
		{"fit", false, "fit"},
		{"skip fit", true, "bind"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			opts.SkipFit = tt.skipFit
			f := newFixture(t, opts, 37)
			f.engine.Session().SetTopology(withoutMarker37(t), "custom")
			require.Equal(t, 37, f.frame.Len())

			_, err := f.engine.Setup(context.Background(), "actor", f.frame, f.sources)
			assert.ErrorIs(t, err, rigerr.ErrInsufficientMarkers)
			assert.False(t, f.host.NamespaceExists("actor"))
			_, ok := f.host.Character("actorCharacter")
			assert.False(t, ok)
			assert.Equal(t, []string{tt.stage}, f.metrics.failed)
			assert.Zero(t, f.metrics.built)
		})
	}
}

var errBoom = errors.New("boom")

// flakyHost fails the next failures marker set creations.
type flakyHost struct {
	*memscene.Scene
	failures int
}

func (h *flakyHost) CreateCharacter(name string) (scene.Character, error) {
	c, err := h.Scene.CreateCharacter(name)
	if err != nil {
		return nil, err
	}
	return &flakyCharacter{Character: c, host: h}, nil
}

type flakyCharacter struct {
	scene.Character
	host *flakyHost
}

func (c *flakyCharacter) CreateMarkerSet() (scene.MarkerSet, error) {
	if c.host.failures > 0 {
		c.host.failures--
		return nil, errBoom
	}
	return c.Character.CreateMarkerSet()
}

func TestSetup_BindFailureRollsBack(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	host := &flakyHost{Scene: f.host, failures: 1}
	e := New(host, f.engine.Session(), DefaultOptions(), WithMetrics(f.metrics))

	_, err := e.Setup(context.Background(), "actor", f.frame, f.sources)
	require.ErrorIs(t, err, errBoom)
	assert.False(t, f.host.NamespaceExists("actor"))
	_, ok := f.host.Character("actorCharacter")
	assert.False(t, ok)
	assert.Equal(t, []string{"bind"}, f.metrics.failed)

	res, err := e.Setup(context.Background(), "actor", f.frame, f.sources)
	require.NoError(t, err)
	assert.True(t, res.Character.Characterized())
	assert.NotEmpty(t, res.Mapping.Bindings)
}

func TestSetup_AfterTeardown(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	_, err := f.engine.Setup(context.Background(), "actor", f.frame, f.sources)
	require.NoError(t, err)
	require.NoError(t, f.engine.Teardown("actor"))
	_, ok := f.host.Character("actorCharacter")
	assert.False(t, ok)

	res, err := f.engine.Setup(context.Background(), "actor", f.frame, f.sources)
	require.NoError(t, err)
	assert.Equal(t, "actor", res.Skeleton.Namespace)
	assert.Equal(t, 2, f.metrics.built)
}

func TestSetup_RejectsEmptyNamespace(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	before := len(f.host.Root().Children())

	_, err := f.engine.Setup(context.Background(), "", f.frame, f.sources)
	assert.ErrorIs(t, err, rigerr.ErrNamespaceMissing)
	assert.Len(t, f.host.Root().Children(), before)
	_, ok := f.host.FindByLabel("M000")
	assert.True(t, ok)
}

func TestRebindAndTeardown(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	_, err := f.engine.Setup(context.Background(), "actor", f.frame, f.sources)
	require.NoError(t, err)

	m, _, err := f.engine.Rebind(context.Background(), "actor", f.sources, false)
	require.NoError(t, err)
	assert.NotEmpty(t, m.Bindings)
	assert.Equal(t, 2, f.metrics.bound)

	_, _, err = f.engine.Rebind(context.Background(), "ghost", f.sources, false)
	assert.ErrorIs(t, err, rigerr.ErrNamespaceMissing)

	require.NoError(t, f.engine.Teardown("actor"))
	assert.False(t, f.host.NamespaceExists("actor"))
	assert.ErrorIs(t, f.engine.Teardown("actor"), rigerr.ErrNamespaceMissing)
}

func TestOptionsFromConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	config.SetDefaults()
	viper.Set("estimate.floorMode", "minMarker")
	viper.Set("mapping.usePredicted", true)
	viper.Set("markers.minimum", 40)

	opts, err := OptionsFromConfig()
	require.NoError(t, err)
	assert.True(t, opts.UsePredicted)
	assert.Equal(t, 40, opts.Mapping.MinMarkers)
	assert.Equal(t, "minMarker", opts.Floor.Mode.String())
	assert.Equal(t, "Hips", opts.RootAnchor)
	assert.True(t, opts.Skeleton.SkipMarkerJoints)

	viper.Set("estimate.floorMode", "ceiling")
	_, err = OptionsFromConfig()
	assert.Error(t, err)
}

func TestEngine_SkeletonTools(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	_, err := f.engine.Skeleton("")
	assert.ErrorIs(t, err, rigerr.ErrNamespaceMissing)

	res, err := f.engine.Setup(context.Background(), "actor", f.frame, f.sources)
	require.NoError(t, err)

	cur, err := f.engine.Skeleton("")
	require.NoError(t, err)
	assert.Same(t, res.Skeleton, cur)

	n, err := f.engine.ZeroRotation("", "Spine")
	require.NoError(t, err)
	assert.Equal(t, 11, n)

	top, err := f.engine.Introspect("actor")
	require.NoError(t, err)
	assert.Equal(t, core.Meters, top.Unit)
	assert.ElementsMatch(t, res.Skeleton.Names(), top.Names())

	moved, err := f.engine.SnapMarkers("actor", f.sources.Optical)
	require.NoError(t, err)
	assert.Empty(t, moved)
}

func TestEngine_SkeletonAttachesForeignRig(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	other := New(f.host, session.New(), DefaultOptions())
	other.Session().SetTopology(topology.Default(), "default")
	_, err := other.Setup(context.Background(), "guest", f.frame, f.sources)
	require.NoError(t, err)

	skel, err := f.engine.Skeleton("guest")
	require.NoError(t, err)
	assert.Equal(t, "guest", skel.Namespace)
	cached, ok := f.engine.Session().Skeletons.Get("guest")
	require.True(t, ok)
	assert.Same(t, skel, cached)

	_, err = f.engine.Skeleton("ghost")
	assert.ErrorIs(t, err, rigerr.ErrNamespaceMissing)
}
