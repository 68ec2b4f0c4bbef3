package marker

import (
	"github.com/flexmocap/rigcore/internal/scene"
	"github.com/flexmocap/rigcore/pkg/core"
)

// List is the dense, index-addressable set of marker nodes found in a scene
type List struct {
	conv  Convention
	ids   []core.MarkerID
	nodes map[string]scene.Node
}

// Discover collects the markers of the given kind below root. Plain nodes whose
// names follow conv count as optical markers. Skeleton marker dummies are
// never collected. The first node seen wins when names repeat.
func Discover(root scene.Node, kind scene.NodeKind, conv Convention) *List {
	l := &List{conv: conv, nodes: make(map[string]scene.Node)}
	scene.Walk(root, func(n scene.Node) bool {
		if n.IsMarkerDummy() {
			return true
		}
		match := n.Kind() == kind
		if !match && kind == scene.KindMarker && n.Kind() == scene.KindOther && n != root {
			match = conv.Matches(n.Name())
		}
		if !match {
			return true
		}
		name := n.Name()
		if _, seen := l.nodes[name]; seen {
			return true
		}
		l.nodes[name] = n
		l.ids = append(l.ids, conv.Parse(name))
		return true
	})
	sortIDs(l.ids)
	return l
}

func (l *List) Len() int { return len(l.ids) }

// At returns the marker at dense index i.
func (l *List) At(i int) (scene.Node, bool) {
	if i < 0 || i >= len(l.ids) {
		return nil, false
	}
	return l.nodes[l.ids[i].Raw], true
}

// Lookup finds a marker by name, retrying with the label prefix.
func (l *List) Lookup(name string) (scene.Node, bool) {
	if n, ok := l.nodes[name]; ok {
		return n, true
	}
	n, ok := l.nodes[l.conv.LabelPrefix+name]
	return n, ok
}

// Nodes returns the markers in dense index order.
func (l *List) Nodes() []scene.Node {
	out := make([]scene.Node, len(l.ids))
	for i, id := range l.ids {
		out[i] = l.nodes[id.Raw]
	}
	return out
}

func (l *List) Names() []string {
	out := make([]string, len(l.ids))
	for i, id := range l.ids {
		out[i] = id.Raw
	}
	return out
}

func (l *List) RequireCount(min int) error {
	return requireCount(len(l.ids), min)
}

// Frame snapshots the world positions of every marker.
func (l *List) Frame() (*Frame, error) {
	samples := make([]core.MarkerSample, 0, len(l.ids))
	for _, id := range l.ids {
		samples = append(samples, core.MarkerSample{ID: id.Raw, Position: l.nodes[id.Raw].WorldPosition()})
	}
	return NewFrame(samples, l.conv)
}
