// Package skeleton instantiates topology templates as joint trees in a host
// scene and manipulates the resulting skeletons.
package skeleton

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/flexmocap/rigcore/internal/rigerr"
	"github.com/flexmocap/rigcore/internal/scene"
	"github.com/flexmocap/rigcore/internal/topology"
	"github.com/flexmocap/rigcore/pkg/core"
	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultNodeSize is the display size of created joints.
const DefaultNodeSize = 100.0

// Skeleton is a built joint tree. The host owns the nodes; Skeleton only
// keeps lookup references by joint name.
type Skeleton struct {
	Namespace string
	Root      string
	order     []string
	joints    map[string]scene.Node

	// Character is set once the skeleton has been characterized.
	Character scene.Character
}

func (s *Skeleton) Len() int { return len(s.order) }

// Names returns joint names in creation order.
func (s *Skeleton) Names() []string { return slices.Clone(s.order) }

func (s *Skeleton) Joint(name string) (scene.Node, bool) {
	n, ok := s.joints[name]
	return n, ok
}

// RootNode returns the node of the root joint.
func (s *Skeleton) RootNode() scene.Node {
	return s.joints[s.Root]
}

// Options control how a topology is instantiated
type Options struct {
	// SkipMarkerJoints leaves marker-type entries out of the tree.
	SkipMarkerJoints bool
	// LockLeafRotation locks the rotation of childless bones.
	LockLeafRotation bool
	NodeSize         float64
}

func DefaultOptions() Options {
	return Options{SkipMarkerJoints: true, LockLeafRotation: true, NodeSize: DefaultNodeSize}
}

// Builder creates skeletons in a host scene
type Builder struct {
	host   scene.Host
	opts   Options
	logger *slog.Logger
}

// NewBuilder expects logger to be tagged with the namespace by the caller.
func NewBuilder(host scene.Host, opts Options, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.NodeSize <= 0 {
		opts.NodeSize = DefaultNodeSize
	}
	return &Builder{host: host, opts: opts, logger: logger}
}

// Build instantiates top under namespace ns. Nodes are all created before
// any parent link is set. Local offsets come from overrides (centimeters)
// when present, else from the template defaults. A failed build deletes
// everything it created.
func (b *Builder) Build(ns string, top *topology.Topology, overrides map[string]r3.Vec) (*Skeleton, error) {
	if err := checkNamespace(ns); err != nil {
		return nil, err
	}
	if top == nil || top.Len() == 0 {
		return nil, rigerr.Precondition(rigerr.ErrEmptyTopology, "namespace "+ns)
	}
	if b.host.NamespaceExists(ns) {
		return nil, rigerr.Precondition(rigerr.ErrNamespaceExists, ns)
	}
	if err := top.Validate(); err != nil {
		return nil, err
	}

	entries := top.Entries()
	skel := &Skeleton{Namespace: ns, joints: make(map[string]scene.Node, len(entries))}

	// pass 1: create every node
	for _, e := range entries {
		if e.Type == core.JointMarker && b.opts.SkipMarkerJoints && !e.IsRoot() {
			continue
		}
		kind := scene.KindSkeleton
		switch {
		case e.IsRoot():
			kind = scene.KindRoot
			skel.Root = e.Name
		case e.Type == core.JointMarker:
			kind = scene.KindMarker
		}
		n, err := b.host.CreateNode(ns, e.Name, kind)
		if err != nil {
			return nil, b.rollback(ns, fmt.Errorf("create joint %s: %w", e.Name, err))
		}
		n.SetSize(b.opts.NodeSize)
		n.SetMarkerDummy(e.Type == core.JointMarker)
		n.SetRotationActive(e.RotationMode == core.RotationHinge)
		skel.joints[e.Name] = n
		skel.order = append(skel.order, e.Name)
	}

	// pass 2: link and place
	for _, e := range entries {
		n, ok := skel.joints[e.Name]
		if !ok {
			continue
		}
		if !e.IsRoot() {
			parent, ok := b.nearestCreated(top, skel, e.Parent)
			if !ok {
				return nil, b.rollback(ns, rigerr.Invalid(rigerr.ErrOrphanParent, e.Name, "no created ancestor"))
			}
			if err := n.SetParent(parent); err != nil {
				return nil, b.rollback(ns, fmt.Errorf("link joint %s: %w", e.Name, err))
			}
		}
		offset, ok := overrides[e.Name]
		if !ok {
			offset = top.Unit.ToCentimeters(e.DefaultOffset)
		}
		n.SetTranslation(offset)
	}

	if b.opts.LockLeafRotation {
		for _, e := range entries {
			n, ok := skel.joints[e.Name]
			if !ok || e.IsRoot() || e.Type == core.JointMarker {
				continue
			}
			if e.Type == core.JointEnd || !hasJointChildren(n) {
				n.SetRotationLocked(true)
			}
		}
	}

	b.logger.Info("Skeleton built", "joints", skel.Len(), "root", skel.Root)
	return skel, nil
}

// checkNamespace rejects names that would alias unnamespaced scene nodes or
// break label qualification.
func checkNamespace(ns string) error {
	if ns == "" {
		return rigerr.Precondition(rigerr.ErrNamespaceMissing, "a skeleton needs a namespace")
	}
	if strings.Contains(ns, ":") {
		return rigerr.Precondition(rigerr.ErrNamespaceMissing, fmt.Sprintf("namespace %q contains ':'", ns))
	}
	return nil
}

// nearestCreated resolves a parent name to the closest ancestor that has a
// node, skipping marker joints that were left out.
func (b *Builder) nearestCreated(top *topology.Topology, skel *Skeleton, name string) (scene.Node, bool) {
	for name != "" {
		if n, ok := skel.joints[name]; ok {
			return n, true
		}
		e, ok := top.Entry(name)
		if !ok {
			return nil, false
		}
		name = e.Parent
	}
	return nil, false
}

func (b *Builder) rollback(ns string, cause error) error {
	if err := b.host.DeleteNamespace(ns); err != nil {
		b.logger.Error("Rollback failed", "error", err)
		return fmt.Errorf("%w (rollback: %v)", cause, err)
	}
	b.logger.Warn("Skeleton build rolled back", "error", cause)
	return cause
}

func hasJointChildren(n scene.Node) bool {
	for _, c := range n.Children() {
		if c.Kind().IsJoint() {
			return true
		}
	}
	return false
}

// Destroy deletes the skeleton's character and namespace from the host.
func Destroy(host scene.Host, s *Skeleton) error {
	if !host.NamespaceExists(s.Namespace) {
		return rigerr.Precondition(rigerr.ErrNamespaceMissing, s.Namespace)
	}
	var err error
	if s.Character != nil {
		if cerr := host.DeleteCharacter(s.Character.Name()); cerr != nil {
			err = fmt.Errorf("delete character: %w", cerr)
		}
		s.Character = nil
	}
	return errors.Join(err, host.DeleteNamespace(s.Namespace))
}

// ZeroRotation clears the rotation of joint and every joint below it.
func ZeroRotation(s *Skeleton, joint string) (int, error) {
	start, ok := s.Joint(joint)
	if !ok {
		return 0, rigerr.Invalid(rigerr.ErrNotFound, joint, "not in skeleton "+s.Namespace)
	}
	count := 0
	scene.Walk(start, func(n scene.Node) bool {
		if !n.Kind().IsJoint() {
			return false
		}
		n.SetRotation(r3.Vec{})
		count++
		return true
	})
	return count, nil
}

// Attach rebuilds a Skeleton view of an existing joint tree in namespace ns,
// for rigs created outside this process.
func Attach(host scene.Host, ns string, top *topology.Topology) (*Skeleton, error) {
	if !host.NamespaceExists(ns) {
		return nil, rigerr.Precondition(rigerr.ErrNamespaceMissing, ns)
	}
	skel := &Skeleton{Namespace: ns, joints: make(map[string]scene.Node)}
	var missing []string
	for _, e := range top.Entries() {
		n, ok := host.FindByLabel(scene.Label(ns, e.Name))
		if !ok {
			if e.Type != core.JointMarker {
				missing = append(missing, e.Name)
			}
			continue
		}
		if e.IsRoot() {
			skel.Root = e.Name
		}
		skel.joints[e.Name] = n
		skel.order = append(skel.order, e.Name)
	}
	if len(missing) > 0 {
		return nil, rigerr.Precondition(rigerr.ErrNotFound, "joints missing from namespace "+ns, missing...)
	}
	return skel, nil
}
