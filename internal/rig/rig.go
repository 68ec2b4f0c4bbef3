// Package rig runs the one-click setup pipeline over a host scene: estimate
// joints from a reference frame, build the skeleton, fit it to the performer,
// characterize it and bind the marker drivers. Every stage is recorded
// through a storage backend.
package rig

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/flexmocap/rigcore/internal/config"
	"github.com/flexmocap/rigcore/internal/estimate"
	"github.com/flexmocap/rigcore/internal/fit"
	"github.com/flexmocap/rigcore/internal/influx"
	"github.com/flexmocap/rigcore/internal/mapping"
	"github.com/flexmocap/rigcore/internal/marker"
	"github.com/flexmocap/rigcore/internal/rigerr"
	"github.com/flexmocap/rigcore/internal/scene"
	"github.com/flexmocap/rigcore/internal/session"
	"github.com/flexmocap/rigcore/internal/skeleton"
	"github.com/flexmocap/rigcore/internal/storage"
	"github.com/flexmocap/rigcore/internal/topology"
	"github.com/flexmocap/rigcore/pkg/core"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"gonum.org/v1/gonum/spatial/r3"
)

// Metrics receives operation counts; *otel.Metrics implements it.
type Metrics interface {
	Built(ctx context.Context, namespace string)
	Bound(ctx context.Context, namespace, source string, joints int)
	Fitted(ctx context.Context, namespace string)
	Failed(ctx context.Context, stage string)
}

// PointWriter receives measurements; *influx.Manager implements it.
type PointWriter interface {
	WritePoint(p *influxdb2_write.Point) error
}

type nopMetrics struct{}

func (nopMetrics) Built(context.Context, string)              {}
func (nopMetrics) Bound(context.Context, string, string, int) {}
func (nopMetrics) Fitted(context.Context, string)             {}
func (nopMetrics) Failed(context.Context, string)             {}

// Options control the pipeline stages.
type Options struct {
	Skeleton skeleton.Options
	Mapping  mapping.Options
	Floor    estimate.Floor
	// RootAnchor is the joint whose estimate places the root.
	RootAnchor   string
	Profile      fit.Profile
	UsePredicted bool
	ControlRig   bool
	// SkipFit leaves joint scales and rotations untouched.
	SkipFit bool
	// BoundsMargin is the search window, in centimeters, written by Introspect.
	BoundsMargin float64
}

func DefaultOptions() Options {
	return Options{
		Skeleton:   skeleton.DefaultOptions(),
		Mapping:    mapping.DefaultOptions(),
		RootAnchor:   "Hips",
		Profile:      fit.DefaultProfile(),
		BoundsMargin: topology.DefaultBoundsMargin,
	}
}

// OptionsFromConfig reads the pipeline options from the loaded configuration.
func OptionsFromConfig() (Options, error) {
	opts := DefaultOptions()

	sk := config.GetSkeletonConfig()
	opts.Skeleton = skeleton.Options{
		SkipMarkerJoints: sk.SkipMarkerJoints,
		LockLeafRotation: sk.LockLeafRotation,
		NodeSize:         sk.NodeSize,
	}
	if sk.BoundsMargin > 0 {
		opts.BoundsMargin = sk.BoundsMargin
	}

	mk := config.GetMarkerConfig()
	mp := config.GetMappingConfig()
	opts.Mapping.MinMarkers = mk.Minimum
	opts.Mapping.MarkerChildren = mp.MarkerChildren
	opts.UsePredicted = mp.UsePredicted
	opts.ControlRig = mp.ControlRig

	est := config.GetEstimateConfig()
	mode, err := estimate.ParseFloorMode(est.FloorMode)
	if err != nil {
		return opts, err
	}
	opts.Floor = estimate.Floor{Mode: mode, Height: est.FloorHeight}
	if est.RootAnchor != "" {
		opts.RootAnchor = est.RootAnchor
	}

	if path := config.GetFitConfig().ProfilePath; path != "" {
		p, err := fit.LoadProfile(path)
		if err != nil {
			return opts, err
		}
		opts.Profile = p
	}
	return opts, nil
}

// Engine drives a host scene through the setup pipeline.
type Engine struct {
	host    scene.Host
	session *session.Context
	store   storage.Backend
	points  PointWriter
	metrics Metrics
	opts    Options
	logger  *slog.Logger

	started bool
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

func WithStorage(b storage.Backend) EngineOption { return func(e *Engine) { e.store = b } }
func WithMetrics(m Metrics) EngineOption         { return func(e *Engine) { e.metrics = m } }

// WithInflux sends fit and bind measurements to w. A nil *influx.Manager is ignored.
func WithInflux(w PointWriter) EngineOption {
	return func(e *Engine) {
		if m, ok := w.(*influx.Manager); ok && m == nil {
			return
		}
		e.points = w
	}
}

func WithLogger(l *slog.Logger) EngineOption { return func(e *Engine) { e.logger = l } }

func New(host scene.Host, sess *session.Context, opts Options, options ...EngineOption) *Engine {
	e := &Engine{
		host:    host,
		session: sess,
		store:   storage.Discard{},
		metrics: nopMetrics{},
		opts:    opts,
		logger:  slog.Default(),
	}
	for _, o := range options {
		o(e)
	}
	e.logger = e.logger.With("session", sess.ID)
	return e
}

func (e *Engine) Session() *session.Context { return e.session }

// Start opens a storage session for the active template.
func (e *Engine) Start() error {
	top, ok := e.session.Topology()
	if !ok {
		return rigerr.Precondition(rigerr.ErrEmptyTopology, "no template loaded")
	}
	s := &core.Session{
		UID:          e.session.ID,
		TemplatePath: e.session.TemplatePath(),
		Unit:         top.Unit,
		StartTime:    e.session.Started,
		Joints:       top.Entries(),
	}
	if err := e.store.StartSession(s); err != nil {
		return fmt.Errorf("failed to start storage session: %w", err)
	}
	e.started = true
	e.logger.Info("Session started", "template", s.TemplatePath, "joints", len(s.Joints))
	return nil
}

// Stop closes the storage session.
func (e *Engine) Stop() error {
	if !e.started {
		return nil
	}
	e.started = false
	if err := e.store.EndSession(); err != nil {
		return fmt.Errorf("failed to end storage session: %w", err)
	}
	if ex, ok := e.store.(storage.Exportable); ok && ex.ExportedFilePath() != "" {
		e.logger.Info("Session exported", "path", ex.ExportedFilePath())
	}
	return nil
}

// Result is everything Setup produced.
type Result struct {
	Skeleton  *skeleton.Skeleton
	Estimates map[string]r3.Vec
	Offsets   map[string]r3.Vec // parent-relative, centimeters
	Fit       *fit.Result       // nil when SkipFit
	Character scene.Character
	Mapping   *mapping.Mapping
	Warnings  []rigerr.PartialMappingWarning
}

// Setup runs the full pipeline for namespace ns. Fit and binding
// preconditions are checked before anything is built; any failure after the
// build destroys the skeleton and its character again.
func (e *Engine) Setup(ctx context.Context, ns string, frame *marker.Frame, sources mapping.Sources) (res *Result, err error) {
	top, ok := e.session.Topology()
	if !ok {
		return nil, rigerr.Precondition(rigerr.ErrEmptyTopology, "no template loaded")
	}
	log := e.logger.With("namespace", ns)
	e.session.SetFrame(frame)
	e.record(frameRecord(frame))

	stage := "estimate"
	defer func() {
		if err != nil {
			e.metrics.Failed(ctx, stage)
			log.Error("Setup failed", "stage", stage, "error", err)
		}
	}()

	est := &estimate.Estimator{
		Strategy:   estimate.Centroid{},
		RootAnchor: e.opts.RootAnchor,
		Floor:      e.opts.Floor,
		Logger:     log,
	}
	estimates, err := est.Estimate(top, frame)
	if err != nil {
		return nil, err
	}
	offsets := estimate.ToRelativeOffsets(estimates, top)
	res = &Result{Estimates: estimates, Offsets: offsets}

	// every precondition is checked before the host is touched
	if !e.opts.SkipFit {
		stage = "fit"
		fitter := fit.New(e.opts.Profile, log)
		fitter.MinMarkers = e.opts.Mapping.MinMarkers
		if res.Fit, err = fitter.Fit(frame); err != nil {
			return nil, err
		}
	}
	stage = "bind"
	mapper := mapping.New(e.opts.Mapping, log)
	if err = mapper.Check(top, sources, e.opts.UsePredicted); err != nil {
		return nil, err
	}

	stage = "build"
	skel, err := skeleton.NewBuilder(e.host, e.opts.Skeleton, log).Build(ns, top, offsets)
	if err != nil {
		return nil, err
	}
	res.Skeleton = skel
	defer func() {
		if err != nil {
			if derr := skeleton.Destroy(e.host, skel); derr != nil {
				err = errors.Join(err, derr)
			}
		}
	}()
	e.metrics.Built(ctx, ns)
	e.record(core.BuildRecord{Time: now(), Namespace: ns, Root: skel.Root, Joints: skel.Len(), Offsets: offsets})

	if res.Fit != nil {
		touched := fit.Apply(skel, res.Fit)
		log.Info("Skeleton fitted", "height", res.Fit.Height, "joints", len(touched))
		e.metrics.Fitted(ctx, ns)
		rec := core.FitRecord{
			Time:           now(),
			Namespace:      ns,
			Height:         res.Fit.Height,
			LeftArmLength:  res.Fit.LeftArmLength,
			RightArmLength: res.Fit.RightArmLength,
			HipCenter:      res.Fit.HipCenter,
			Scales:         res.Fit.Scales,
			Rotations:      res.Fit.Rotations,
		}
		e.record(rec)
		e.point(influx.FitPoint(rec))
	}

	stage = "characterize"
	char, warn, err := mapping.Characterize(e.host, skel, ns+"Character", e.opts.ControlRig, log)
	if err != nil {
		return nil, err
	}
	res.Character = char
	if !warn.Empty() {
		res.Warnings = append(res.Warnings, warn)
	}

	stage = "bind"
	m, warn, err := mapper.Bind(skel, top, sources, e.opts.UsePredicted)
	if err != nil {
		return nil, err
	}
	res.Mapping = m
	if !warn.Empty() {
		res.Warnings = append(res.Warnings, warn)
	}
	e.metrics.Bound(ctx, ns, m.Source.String(), len(m.Bindings))
	rec := core.BindRecord{
		Time:           now(),
		Namespace:      ns,
		Source:         m.Source.String(),
		Bindings:       m.Bindings,
		UnmappedSlots:  warn.UnmappedSlots,
		UnmappedJoints: warn.UnmappedJoints,
	}
	e.record(rec)
	e.point(influx.BindPoint(rec))

	e.session.AddSkeleton(skel)
	log.Info("Setup complete", "joints", skel.Len(), "bindings", len(m.Bindings), "warnings", len(res.Warnings))
	return res, nil
}

// Rebind replaces the driver mapping of an already built skeleton, for
// instance to switch between optical and predicted markers.
func (e *Engine) Rebind(ctx context.Context, ns string, sources mapping.Sources, usePredicted bool) (*mapping.Mapping, rigerr.PartialMappingWarning, error) {
	top, ok := e.session.Topology()
	if !ok {
		return nil, rigerr.PartialMappingWarning{}, rigerr.Precondition(rigerr.ErrEmptyTopology, "no template loaded")
	}
	skel, ok := e.session.Skeletons.Get(ns)
	if !ok {
		return nil, rigerr.PartialMappingWarning{}, rigerr.Precondition(rigerr.ErrNamespaceMissing, ns)
	}
	m, warn, err := mapping.New(e.opts.Mapping, e.logger.With("namespace", ns)).Bind(skel, top, sources, usePredicted)
	if err != nil {
		e.metrics.Failed(ctx, "bind")
		return nil, warn, err
	}
	e.metrics.Bound(ctx, ns, m.Source.String(), len(m.Bindings))
	rec := core.BindRecord{Time: now(), Namespace: ns, Source: m.Source.String(), Bindings: m.Bindings,
		UnmappedSlots: warn.UnmappedSlots, UnmappedJoints: warn.UnmappedJoints}
	e.record(rec)
	e.point(influx.BindPoint(rec))
	return m, warn, nil
}

// Teardown destroys the skeleton of namespace ns and forgets it.
func (e *Engine) Teardown(ns string) error {
	skel, ok := e.session.Skeletons.Get(ns)
	if !ok {
		return rigerr.Precondition(rigerr.ErrNamespaceMissing, ns)
	}
	if err := skeleton.Destroy(e.host, skel); err != nil {
		return err
	}
	e.session.RemoveSkeleton(ns)
	e.logger.Info("Skeleton removed", "namespace", ns)
	return nil
}

// Skeleton returns the skeleton of namespace ns, or the current one when ns is
// empty. Rigs already in the host but unknown to the session are attached
// using the loaded template.
func (e *Engine) Skeleton(ns string) (*skeleton.Skeleton, error) {
	if ns == "" {
		if skel, ok := e.session.Current(); ok {
			return skel, nil
		}
		return nil, rigerr.Precondition(rigerr.ErrNamespaceMissing, "no current skeleton")
	}
	if skel, ok := e.session.Skeletons.Get(ns); ok {
		return skel, nil
	}
	top, ok := e.session.Topology()
	if !ok {
		return nil, rigerr.Precondition(rigerr.ErrEmptyTopology, "no template loaded")
	}
	skel, err := skeleton.Attach(e.host, ns, top)
	if err != nil {
		return nil, err
	}
	e.session.Skeletons.Add(skel)
	e.logger.Info("Skeleton attached", "namespace", ns, "joints", skel.Len())
	return skel, nil
}

// ZeroRotation resets the rotation of joint and its descendants in the
// skeleton of ns.
func (e *Engine) ZeroRotation(ns, joint string) (int, error) {
	skel, err := e.Skeleton(ns)
	if err != nil {
		return 0, err
	}
	n, err := skeleton.ZeroRotation(skel, joint)
	if err != nil {
		return 0, err
	}
	e.logger.Info("Rotation zeroed", "namespace", skel.Namespace, "joint", joint, "joints", n)
	return n, nil
}

// Introspect derives a template from the live skeleton of ns.
func (e *Engine) Introspect(ns string) (*topology.Topology, error) {
	skel, err := e.Skeleton(ns)
	if err != nil {
		return nil, err
	}
	return topology.Introspect(skel.RootNode(), e.opts.BoundsMargin)
}

// SnapMarkers moves the markers of l onto the marker dummies of ns.
func (e *Engine) SnapMarkers(ns string, l *marker.List) ([]string, error) {
	skel, err := e.Skeleton(ns)
	if err != nil {
		return nil, err
	}
	moved, err := marker.MoveTo(e.host, skel.Namespace, l)
	if err != nil {
		return nil, err
	}
	e.logger.Info("Markers snapped to dummies", "namespace", skel.Namespace, "markers", len(moved))
	return moved, nil
}

func frameRecord(f *marker.Frame) core.FrameRecord {
	return core.FrameRecord{Time: now(), Samples: f.Samples()}
}

// record persists r when a storage session is open. Storage failures are
// logged and do not abort the pipeline.
func (e *Engine) record(r any) {
	if !e.started {
		return
	}
	var err error
	switch v := r.(type) {
	case core.FrameRecord:
		err = e.store.RecordFrame(&v)
	case core.BuildRecord:
		err = e.store.RecordBuild(&v)
	case core.FitRecord:
		err = e.store.RecordFit(&v)
	case core.BindRecord:
		err = e.store.RecordBind(&v)
	}
	if err != nil {
		e.logger.Warn("Failed to record", "type", fmt.Sprintf("%T", r), "error", err)
	}
}

func (e *Engine) point(p *influxdb2_write.Point) {
	if e.points == nil {
		return
	}
	if err := e.points.WritePoint(p); err != nil {
		e.logger.Warn("Failed to write measurement", "measurement", p.Name(), "error", err)
	}
}

var now = func() time.Time { return time.Now().UTC() }
