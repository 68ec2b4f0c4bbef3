// Package mapping characterizes skeletons and binds marker sources to their
// joints as motion drivers.
package mapping

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"

	"github.com/flexmocap/rigcore/internal/marker"
	"github.com/flexmocap/rigcore/internal/rigerr"
	"github.com/flexmocap/rigcore/internal/scene"
	"github.com/flexmocap/rigcore/internal/skeleton"
	"github.com/flexmocap/rigcore/internal/topology"
	"github.com/flexmocap/rigcore/pkg/core"
)

// KindForDriverCount picks the constraint goal for n drivers. ok is false
// for zero drivers: the joint stays unconstrained.
func KindForDriverCount(n int) (kind core.ConstraintKind, ok bool) {
	switch {
	case n <= 0:
		return core.ConstraintFullFit, false
	case n == 1:
		return core.ConstraintAim, true
	case n == 2:
		return core.ConstraintTwoPoint, true
	default:
		return core.ConstraintFullFit, true
	}
}

// Binding is the driver set of one joint
type Binding = core.JointBinding

// Mapping is the complete driver assignment installed on a skeleton
type Mapping struct {
	Namespace string
	Source    SourceKind
	Bindings  []Binding
}

// Binding looks up the driver set of joint.
func (m *Mapping) Binding(joint string) (Binding, bool) {
	for _, b := range m.Bindings {
		if b.Joint == joint {
			return b, true
		}
	}
	return Binding{}, false
}

// Options tune the mapper
type Options struct {
	// MinMarkers is required of sources whenever driver indices are used.
	MinMarkers int
	// MarkerChildren drives joints without index drivers from their
	// marker-type child entries, looked up by name.
	MarkerChildren bool
}

func DefaultOptions() Options {
	return Options{MinMarkers: marker.MinimumCount}
}

// Mapper binds marker sources to skeleton joints
type Mapper struct {
	opts   Options
	logger *slog.Logger
}

func New(opts Options, logger *slog.Logger) *Mapper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mapper{opts: opts, logger: logger}
}

type pending struct {
	joint string
	nodes []scene.Node
	kind  core.ConstraintKind
}

// Bind replaces the marker mapping of skel. Every driver is resolved before
// anything is torn down; the previous marker set is then deleted and a new
// one filled. Joints and slots that cannot be paired are reported in the
// warning and the rest is bound.
func (m *Mapper) Bind(skel *skeleton.Skeleton, top *topology.Topology, sources Sources, usePredicted bool) (*Mapping, rigerr.PartialMappingWarning, error) {
	var warn rigerr.PartialMappingWarning
	if skel == nil || skel.Character == nil {
		return nil, warn, rigerr.Precondition(rigerr.ErrNoCharacterTarget, "characterize the skeleton first")
	}
	src, plan, err := m.prepare(top, sources, usePredicted)
	if err != nil {
		return nil, warn, err
	}
	char := skel.Character
	slots := char.Slots()

	var bound []pending
	for _, p := range plan {
		if !slices.Contains(slots, p.joint) {
			warn.UnmappedJoints = append(warn.UnmappedJoints, p.joint)
			continue
		}
		bound = append(bound, p)
	}
	for _, s := range slots {
		if !top.Has(s) {
			warn.UnmappedSlots = append(warn.UnmappedSlots, s)
		}
	}

	if old, ok := char.MarkerSet(); ok {
		if err := old.Delete(); err != nil {
			return nil, warn, fmt.Errorf("delete marker set: %w", err)
		}
	}
	set, err := char.CreateMarkerSet()
	if err != nil {
		return nil, warn, fmt.Errorf("create marker set: %w", err)
	}

	mapping := &Mapping{Namespace: skel.Namespace, Source: src.Kind()}
	for _, p := range bound {
		if err := set.ReplaceSources(p.joint, p.nodes); err != nil {
			return nil, warn, errors.Join(fmt.Errorf("connect %s: %w", p.joint, err), deleteSet(set))
		}
		if err := set.SetConstraint(p.joint, p.kind); err != nil {
			return nil, warn, errors.Join(fmt.Errorf("constrain %s: %w", p.joint, err), deleteSet(set))
		}
		b := Binding{Joint: p.joint, Kind: p.kind}
		for _, n := range p.nodes {
			b.Markers = append(b.Markers, n.Name())
		}
		mapping.Bindings = append(mapping.Bindings, b)
	}

	if !warn.Empty() {
		m.logger.Warn("Partial marker mapping", "namespace", skel.Namespace,
			"unmappedSlots", warn.UnmappedSlots, "unmappedJoints", warn.UnmappedJoints)
	}
	m.logger.Info("Markers bound", "namespace", skel.Namespace, "source", src.Kind().String(), "joints", len(mapping.Bindings))
	return mapping, warn, nil
}

// Check returns the precondition error Bind would report for these sources
// without touching the host.
func (m *Mapper) Check(top *topology.Topology, sources Sources, usePredicted bool) error {
	_, _, err := m.prepare(top, sources, usePredicted)
	return err
}

func (m *Mapper) prepare(top *topology.Topology, sources Sources, usePredicted bool) (Source, []pending, error) {
	src, err := sources.Select(usePredicted)
	if err != nil {
		return nil, nil, err
	}
	plan, usesIndices, missing := m.resolve(top, src)
	if len(missing) > 0 {
		return nil, nil, rigerr.Precondition(rigerr.ErrMissingMarkers,
			fmt.Sprintf("%s source has %d markers", src.Kind(), src.Len()), missing...)
	}
	if usesIndices && m.opts.MinMarkers > 0 && src.Len() < m.opts.MinMarkers {
		return nil, nil, rigerr.Precondition(rigerr.ErrInsufficientMarkers,
			fmt.Sprintf("%s source has %d distinct markers, need at least %d", src.Kind(), src.Len(), m.opts.MinMarkers))
	}
	return src, plan, nil
}

func deleteSet(set scene.MarkerSet) error {
	if err := set.Delete(); err != nil {
		return fmt.Errorf("delete marker set: %w", err)
	}
	return nil
}

// resolve turns every joint's drivers into marker nodes without touching the
// host. Unresolvable driver indices are returned in missing.
func (m *Mapper) resolve(top *topology.Topology, src Source) (plan []pending, usesIndices bool, missing []string) {
	entries := top.Entries()
	for _, e := range entries {
		if e.Type == core.JointMarker {
			continue
		}
		var nodes []scene.Node
		switch {
		case len(e.Drivers) > 0:
			usesIndices = true
			for _, idx := range e.Drivers {
				n, ok := src.At(idx)
				if !ok {
					missing = append(missing, e.Name+":"+strconv.Itoa(idx))
					continue
				}
				nodes = append(nodes, n)
			}
		case m.opts.MarkerChildren:
			for _, c := range entries {
				if c.Parent != e.Name || c.Type != core.JointMarker {
					continue
				}
				// markers the source lacks are left out, like an occluded label
				if n, ok := src.Lookup(c.Name); ok {
					nodes = append(nodes, n)
				}
			}
		}
		kind, ok := KindForDriverCount(len(nodes))
		if !ok {
			continue
		}
		plan = append(plan, pending{joint: e.Name, nodes: nodes, kind: kind})
	}
	return plan, usesIndices, missing
}

// Characterize creates a character named name and links every skeleton joint
// to the slot of the same name. Joints without a slot and slots without a
// joint are reported, not fatal.
func Characterize(host scene.Host, skel *skeleton.Skeleton, name string, controlRig bool, logger *slog.Logger) (scene.Character, rigerr.PartialMappingWarning, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var warn rigerr.PartialMappingWarning
	if !host.NamespaceExists(skel.Namespace) {
		return nil, warn, rigerr.Precondition(rigerr.ErrNamespaceMissing, skel.Namespace)
	}
	char, err := host.CreateCharacter(name)
	if err != nil {
		return nil, warn, fmt.Errorf("create character %s: %w", name, err)
	}

	linked := make(map[string]bool)
	for _, joint := range skel.Names() {
		n, _ := skel.Joint(joint)
		if n.IsMarkerDummy() {
			continue
		}
		if err := char.Link(joint, n); err != nil {
			warn.UnmappedJoints = append(warn.UnmappedJoints, joint)
			continue
		}
		linked[joint] = true
	}
	for _, s := range char.Slots() {
		if !linked[s] {
			warn.UnmappedSlots = append(warn.UnmappedSlots, s)
		}
	}

	char.SetCharacterized(true)
	if controlRig {
		char.CreateControlRig(true)
	}
	skel.Character = char

	if len(warn.UnmappedJoints) > 0 {
		logger.Warn("No character slot for joints", "character", name, "joints", warn.UnmappedJoints)
	}
	logger.Info("Skeleton characterized", "character", name, "namespace", skel.Namespace,
		"linked", len(linked), "controlRig", controlRig)
	return char, warn, nil
}
