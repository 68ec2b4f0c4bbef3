// Package memscene is an in-memory scene.Host used by the CLI and tests.
//
// World positions compose parent translations only; rotation and scale are
// stored but not applied when resolving positions.
package memscene

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/flexmocap/rigcore/internal/scene"
	"github.com/flexmocap/rigcore/pkg/core"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	ErrLabelTaken  = errors.New("label already in use")
	ErrUnknownSlot = errors.New("unknown slot")
	ErrForeignNode = errors.New("node belongs to another scene")
	ErrDeleted     = errors.New("marker set deleted")
	ErrNoCharacter = errors.New("no such character")
	ErrNoNamespace = errors.New("empty namespace")
)

// DefaultSlots are the joint slots every character exposes.
var DefaultSlots = []string{
	"Reference", "Hips",
	"LeftUpLeg", "LeftLeg", "LeftFoot", "LeftToeBase",
	"RightUpLeg", "RightLeg", "RightFoot", "RightToeBase",
	"Spine", "Spine1", "Spine2",
	"LeftShoulder", "LeftArm", "LeftForeArm", "LeftHand", "LeftFingerBase",
	"RightShoulder", "RightArm", "RightForeArm", "RightHand", "RightFingerBase",
	"Neck", "Head",
}

// Scene is a mutex-guarded tree of nodes.
type Scene struct {
	mu         sync.RWMutex
	root       *Node
	byLabel    map[string]*Node
	slots      []string
	characters map[string]*Character
}

// Option configures a Scene.
type Option func(*Scene)

// WithSlots overrides the character slot list.
func WithSlots(slots []string) Option {
	return func(s *Scene) { s.slots = slices.Clone(slots) }
}

func New(opts ...Option) *Scene {
	s := &Scene{
		byLabel:    make(map[string]*Node),
		slots:      slices.Clone(DefaultSlots),
		characters: make(map[string]*Character),
	}
	s.root = &Node{scene: s, name: "SceneRoot", kind: scene.KindOther, scale: r3.Vec{X: 1, Y: 1, Z: 1}}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Scene) Root() scene.Node { return s.root }

func (s *Scene) FindByLabel(label string) (scene.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.byLabel[label]
	if !ok {
		return nil, false
	}
	return n, true
}

func (s *Scene) NamespaceExists(ns string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	prefix := ns + ":"
	for label := range s.byLabel {
		if strings.HasPrefix(label, prefix) {
			return true
		}
	}
	return false
}

// CreateNode adds a node under the scene root.
func (s *Scene) CreateNode(ns, name string, kind scene.NodeKind) (scene.Node, error) {
	return s.add(s.root, ns, name, kind)
}

// AddMarker creates a marker node at pos under parent (scene root when nil).
func (s *Scene) AddMarker(parent *Node, name string, kind scene.NodeKind, pos r3.Vec) (*Node, error) {
	if parent == nil {
		parent = s.root
	}
	n, err := s.add(parent, "", name, kind)
	if err != nil {
		return nil, err
	}
	n.translation = pos
	return n, nil
}

// AddGroup creates an empty grouping node.
func (s *Scene) AddGroup(parent *Node, name string) (*Node, error) {
	if parent == nil {
		parent = s.root
	}
	return s.add(parent, "", name, scene.KindOther)
}

// LoadSamples creates one marker per sample under a group named group.
func (s *Scene) LoadSamples(group string, samples []core.MarkerSample) (*Node, error) {
	g, err := s.AddGroup(nil, group)
	if err != nil {
		return nil, err
	}
	for _, sm := range samples {
		if _, err := s.AddMarker(g, sm.ID, scene.KindMarker, sm.Position); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func (s *Scene) add(parent *Node, ns, name string, kind scene.NodeKind) (*Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	label := scene.Label(ns, name)
	if _, ok := s.byLabel[label]; ok {
		return nil, fmt.Errorf("%w: %s", ErrLabelTaken, label)
	}
	n := &Node{scene: s, name: name, ns: ns, kind: kind, scale: r3.Vec{X: 1, Y: 1, Z: 1}, parent: parent}
	parent.children = append(parent.children, n)
	s.byLabel[label] = n
	return n, nil
}

// DeleteNamespace removes every node in ns, re-parenting foreign children to
// the scene root. Unnamespaced nodes cannot be deleted this way.
func (s *Scene) DeleteNamespace(ns string) error {
	if ns == "" {
		return ErrNoNamespace
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for label, n := range s.byLabel {
		if n.ns != ns {
			continue
		}
		delete(s.byLabel, label)
		n.detach()
		for _, c := range n.children {
			if c.ns != ns {
				c.parent = s.root
				s.root.children = append(s.root.children, c)
			}
		}
		n.children = nil
	}
	return nil
}

func (s *Scene) CreateCharacter(name string) (scene.Character, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.characters[name]; ok {
		return nil, fmt.Errorf("%w: character %s", ErrLabelTaken, name)
	}
	c := &Character{name: name, slots: slices.Clone(s.slots), links: make(map[string]scene.Node)}
	s.characters[name] = c
	return c, nil
}

func (s *Scene) DeleteCharacter(name string) error {
	s.mu.Lock()
	c, ok := s.characters[name]
	delete(s.characters, name)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoCharacter, name)
	}
	if c.markerSet != nil {
		return c.markerSet.Delete()
	}
	return nil
}

// Character returns a previously created character.
func (s *Scene) Character(name string) (*Character, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.characters[name]
	return c, ok
}

// Node is the in-memory scene.Node.
type Node struct {
	scene    *Scene
	name, ns string
	kind     scene.NodeKind
	parent   *Node
	children []*Node

	translation, rotation, scale r3.Vec
	size                         float64

	rotationActive, rotationLocked, markerDummy bool
}

func (n *Node) Name() string             { return n.name }
func (n *Node) LongName() string         { return scene.Label(n.ns, n.name) }
func (n *Node) Namespace() string        { return n.ns }
func (n *Node) Kind() scene.NodeKind     { return n.kind }
func (n *Node) Translation() r3.Vec      { return n.translation }
func (n *Node) SetTranslation(v r3.Vec)  { n.translation = v }
func (n *Node) Rotation() r3.Vec         { return n.rotation }
func (n *Node) SetRotation(v r3.Vec)     { n.rotation = v }
func (n *Node) Scale() r3.Vec            { return n.scale }
func (n *Node) SetScale(v r3.Vec)        { n.scale = v }
func (n *Node) RotationActive() bool     { return n.rotationActive }
func (n *Node) SetRotationActive(b bool) { n.rotationActive = b }
func (n *Node) RotationLocked() bool     { return n.rotationLocked }
func (n *Node) SetRotationLocked(b bool) { n.rotationLocked = b }
func (n *Node) Size() float64            { return n.size }
func (n *Node) SetSize(size float64)     { n.size = size }
func (n *Node) IsMarkerDummy() bool      { return n.markerDummy }
func (n *Node) SetMarkerDummy(b bool)    { n.markerDummy = b }

func (n *Node) Parent() scene.Node {
	if n.parent == nil {
		return nil
	}
	return n.parent
}

func (n *Node) Children() []scene.Node {
	out := make([]scene.Node, len(n.children))
	for i, c := range n.children {
		out[i] = c
	}
	return out
}

func (n *Node) WorldPosition() r3.Vec {
	p := n.translation
	for a := n.parent; a != nil; a = a.parent {
		p = r3.Add(p, a.translation)
	}
	return p
}

// SetParent moves n under parent; nil attaches it to the scene root.
func (n *Node) SetParent(parent scene.Node) error {
	target := n.scene.root
	if parent != nil {
		p, ok := parent.(*Node)
		if !ok || p.scene != n.scene {
			return ErrForeignNode
		}
		target = p
	}
	n.detach()
	n.parent = target
	target.children = append(target.children, n)
	return nil
}

func (n *Node) Rename(name string) error {
	s := n.scene
	s.mu.Lock()
	defer s.mu.Unlock()
	next := scene.Label(n.ns, name)
	if other, ok := s.byLabel[next]; ok && other != n {
		return fmt.Errorf("%w: %s", ErrLabelTaken, next)
	}
	delete(s.byLabel, n.LongName())
	n.name = name
	s.byLabel[next] = n
	return nil
}

func (n *Node) detach() {
	if n.parent == nil {
		return
	}
	siblings := n.parent.children
	if i := slices.Index(siblings, n); i >= 0 {
		n.parent.children = slices.Delete(siblings, i, i+1)
	}
	n.parent = nil
}

// Character is the in-memory scene.Character.
type Character struct {
	name          string
	slots         []string
	links         map[string]scene.Node
	characterized bool
	controlRig    bool
	controlActive bool
	markerSet     *MarkerSet
}

func (c *Character) Name() string             { return c.name }
func (c *Character) Slots() []string          { return slices.Clone(c.slots) }
func (c *Character) SetCharacterized(on bool) { c.characterized = on }
func (c *Character) Characterized() bool      { return c.characterized }

func (c *Character) CreateControlRig(active bool) {
	c.controlRig = true
	c.controlActive = active
}

// HasControlRig reports whether a control rig was created and whether it is active.
func (c *Character) HasControlRig() (created, active bool) {
	return c.controlRig, c.controlActive
}

func (c *Character) Link(slot string, joint scene.Node) error {
	if !slices.Contains(c.slots, slot) {
		return fmt.Errorf("%w: %s", ErrUnknownSlot, slot)
	}
	c.links[slot] = joint
	return nil
}

func (c *Character) Linked(slot string) (scene.Node, bool) {
	n, ok := c.links[slot]
	return n, ok
}

func (c *Character) MarkerSet() (scene.MarkerSet, bool) {
	if c.markerSet == nil {
		return nil, false
	}
	return c.markerSet, true
}

func (c *Character) CreateMarkerSet() (scene.MarkerSet, error) {
	ms := &MarkerSet{
		owner:       c,
		slots:       slices.Clone(c.slots),
		sources:     make(map[string][]scene.Node),
		constraints: make(map[string]core.ConstraintKind),
	}
	c.markerSet = ms
	return ms, nil
}

// MarkerSet is the in-memory scene.MarkerSet.
type MarkerSet struct {
	mu          sync.Mutex
	owner       *Character
	slots       []string
	sources     map[string][]scene.Node
	constraints map[string]core.ConstraintKind
	deleted     bool
}

func (m *MarkerSet) Slots() []string { return slices.Clone(m.slots) }

func (m *MarkerSet) Sources(slot string) []scene.Node {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.sources[slot])
}

func (m *MarkerSet) ReplaceSources(slot string, markers []scene.Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleted {
		return ErrDeleted
	}
	if !slices.Contains(m.slots, slot) {
		return fmt.Errorf("%w: %s", ErrUnknownSlot, slot)
	}
	m.sources[slot] = slices.Clone(markers)
	return nil
}

func (m *MarkerSet) SetConstraint(slot string, kind core.ConstraintKind) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleted {
		return ErrDeleted
	}
	if !slices.Contains(m.slots, slot) {
		return fmt.Errorf("%w: %s", ErrUnknownSlot, slot)
	}
	m.constraints[slot] = kind
	return nil
}

func (m *MarkerSet) Constraint(slot string) (core.ConstraintKind, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.constraints[slot]
	return k, ok
}

func (m *MarkerSet) Delete() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = true
	m.sources = map[string][]scene.Node{}
	m.constraints = map[string]core.ConstraintKind{}
	if m.owner.markerSet == m {
		m.owner.markerSet = nil
	}
	return nil
}

var (
	_ scene.Host      = (*Scene)(nil)
	_ scene.Node      = (*Node)(nil)
	_ scene.Character = (*Character)(nil)
	_ scene.MarkerSet = (*MarkerSet)(nil)
)
