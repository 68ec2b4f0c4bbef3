package topology

import (
	"github.com/flexmocap/rigcore/internal/rigerr"
	"github.com/flexmocap/rigcore/internal/scene"
	"github.com/flexmocap/rigcore/pkg/core"
	"gonum.org/v1/gonum/spatial/r3"
)

func isRigNode(n scene.Node) bool {
	return n.Kind().IsJoint() || n.IsMarkerDummy()
}

// Introspect reverse-engineers a template in meters from a live skeleton
// rooted at root. Offsets come from world-position differences; every
// non-root, non-end joint gets explicit bounds of marginCM around its offset.
func Introspect(root scene.Node, marginCM float64) (*Topology, error) {
	if root == nil || !root.Kind().IsJoint() {
		return nil, rigerr.Invalid(rigerr.ErrNoRoot, "", "introspection must start at a skeleton node")
	}
	t := New(core.Meters)

	var entries []core.JointEntry
	scene.Walk(root, func(n scene.Node) bool {
		if !isRigNode(n) {
			return false
		}
		e := core.JointEntry{Name: n.Name()}
		if n == root {
			entries = append(entries, e)
			return true
		}

		parent := n.Parent()
		e.Parent = parent.Name()
		cm := r3.Sub(n.WorldPosition(), parent.WorldPosition())
		e.DefaultOffset = r3.Scale(1/core.Meters.CentimetersPerUnit(), cm)

		switch {
		case n.IsMarkerDummy():
			e.Type = core.JointMarker
		case n.RotationActive():
			e.RotationMode = core.RotationHinge
		default:
			e.RotationMode = core.RotationBall
		}
		if e.Type == core.JointBone && !hasRigChildren(n) {
			e.Type = core.JointEnd
			e.RotationMode = core.RotationNone
		} else {
			b := t.BoundsFor(e, marginCM)
			e.Bounds = &b
		}
		entries = append(entries, e)
		return true
	})
	return FromEntries(core.Meters, entries)
}

func hasRigChildren(n scene.Node) bool {
	for _, c := range n.Children() {
		if isRigNode(c) {
			return true
		}
	}
	return false
}
