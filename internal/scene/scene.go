// Package scene declares the host-application capabilities the rigging engine
// consumes: node enumeration, namespaced node creation and character marker sets.
//
// The host owns every Node. The engine only keeps references looked up by name.
package scene

import (
	"github.com/flexmocap/rigcore/pkg/core"
	"gonum.org/v1/gonum/spatial/r3"
)

// NodeKind classifies a host object. It is resolved once when the host
// ingests the object and never re-inspected from subtype strings.
type NodeKind uint8

const (
	KindOther NodeKind = iota
	KindRoot
	KindSkeleton
	KindMarker
	KindPredictedMarker
)

func (k NodeKind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindSkeleton:
		return "skeleton"
	case KindMarker:
		return "marker"
	case KindPredictedMarker:
		return "predicted"
	default:
		return "other"
	}
}

// IsJoint reports whether nodes of this kind belong to a skeleton.
func (k NodeKind) IsJoint() bool {
	return k == KindRoot || k == KindSkeleton
}

// Node is a hierarchical host object with a local transform
type Node interface {
	Name() string
	// LongName is the namespace-qualified label, "ns:name" or just "name".
	LongName() string
	Namespace() string
	Kind() NodeKind

	Parent() Node
	Children() []Node
	SetParent(parent Node) error
	Rename(name string) error

	Translation() r3.Vec
	SetTranslation(v r3.Vec)
	Rotation() r3.Vec
	SetRotation(v r3.Vec)
	Scale() r3.Vec
	SetScale(v r3.Vec)
	WorldPosition() r3.Vec

	// RotationActive is true when the node carries rotation limits (hinge joints).
	RotationActive() bool
	SetRotationActive(active bool)
	// A locked node keeps its rest rotation; used for end effectors.
	RotationLocked() bool
	SetRotationLocked(locked bool)
	Size() float64
	SetSize(size float64)
	// Marker dummies are flagged so introspection can tell them apart from bones.
	IsMarkerDummy() bool
	SetMarkerDummy(dummy bool)
}

// Host is the scene the engine works against
type Host interface {
	Root() Node
	FindByLabel(label string) (Node, bool)

	NamespaceExists(ns string) bool
	CreateNode(ns, name string, kind NodeKind) (Node, error)
	DeleteNamespace(ns string) error

	CreateCharacter(name string) (Character, error)
	// DeleteCharacter removes a character together with its marker set.
	DeleteCharacter(name string) error
}

// Character is the host's binding structure for a characterized skeleton
type Character interface {
	Name() string
	// Slots lists the joint names the character exposes.
	Slots() []string
	Link(slot string, joint Node) error
	Linked(slot string) (Node, bool)
	SetCharacterized(on bool)
	Characterized() bool
	CreateControlRig(active bool)

	MarkerSet() (MarkerSet, bool)
	CreateMarkerSet() (MarkerSet, error)
}

// MarkerSet exposes one marker-list slot and one constraint slot per joint
type MarkerSet interface {
	Slots() []string
	Sources(slot string) []Node
	// ReplaceSources disconnects every source of slot and connects markers
	// as one change; observers never see a partially connected slot.
	ReplaceSources(slot string, markers []Node) error
	SetConstraint(slot string, kind core.ConstraintKind) error
	Constraint(slot string) (core.ConstraintKind, bool)
	Delete() error
}

// Label joins a namespace and a name the way hosts qualify labels.
func Label(ns, name string) string {
	if ns == "" {
		return name
	}
	return ns + ":" + name
}

// Walk visits root and its descendants depth-first in child order using an
// explicit stack. Returning false from visit skips that node's children.
func Walk(root Node, visit func(Node) bool) {
	if root == nil {
		return
	}
	stack := []Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !visit(n) {
			continue
		}
		children := n.Children()
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
}
