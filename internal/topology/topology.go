// Package topology holds the declarative skeleton template: the joint tree,
// its marker roles and the persistence formats it is read from and written to.
package topology

import (
	"fmt"
	"slices"

	"github.com/flexmocap/rigcore/internal/rigerr"
	"github.com/flexmocap/rigcore/pkg/core"
	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultBoundsMargin is the search window half-width, in centimeters, used
// when an entry stores no explicit bounds.
const DefaultBoundsMargin = 20.0

// Topology is an ordered set of joint entries forming a tree. Entry order is
// the creation order recorded by the persistence formats.
type Topology struct {
	Unit    core.LengthUnit
	entries []core.JointEntry
	index   map[string]int
}

// New returns an empty topology whose offsets are expressed in unit.
func New(unit core.LengthUnit) *Topology {
	return &Topology{Unit: unit, index: make(map[string]int)}
}

// FromEntries builds a topology from entries in any parent order and validates it.
func FromEntries(unit core.LengthUnit, entries []core.JointEntry) (*Topology, error) {
	t := New(unit)
	for _, e := range entries {
		if e.Name == "" {
			return nil, rigerr.Invalid(rigerr.ErrEmptyName, "", fmt.Sprintf("entry %d", len(t.entries)))
		}
		if _, dup := t.index[e.Name]; dup {
			return nil, rigerr.Invalid(rigerr.ErrDuplicateName, e.Name, "")
		}
		t.index[e.Name] = len(t.entries)
		t.entries = append(t.entries, e.Clone())
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Topology) Len() int { return len(t.entries) }

// Names returns joint names in creation order.
func (t *Topology) Names() []string {
	out := make([]string, len(t.entries))
	for i, e := range t.entries {
		out[i] = e.Name
	}
	return out
}

// Entries returns deep copies of every entry in creation order.
func (t *Topology) Entries() []core.JointEntry {
	out := make([]core.JointEntry, len(t.entries))
	for i, e := range t.entries {
		out[i] = e.Clone()
	}
	return out
}

func (t *Topology) Entry(name string) (core.JointEntry, bool) {
	i, ok := t.index[name]
	if !ok {
		return core.JointEntry{}, false
	}
	return t.entries[i].Clone(), true
}

func (t *Topology) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Root returns the name of the parentless entry.
func (t *Topology) Root() (string, bool) {
	for _, e := range t.entries {
		if e.IsRoot() {
			return e.Name, true
		}
	}
	return "", false
}

// Children returns the direct children of name in creation order.
func (t *Topology) Children(name string) []string {
	var out []string
	for _, e := range t.entries {
		if e.Parent == name && e.Name != name {
			out = append(out, e.Name)
		}
	}
	return out
}

func (t *Topology) Clone() *Topology {
	c := New(t.Unit)
	for _, e := range t.entries {
		c.index[e.Name] = len(c.entries)
		c.entries = append(c.entries, e.Clone())
	}
	return c
}

// Add appends an entry. The tree invariants hold before and after.
func (t *Topology) Add(e core.JointEntry) error {
	if e.Name == "" {
		return rigerr.Invalid(rigerr.ErrEmptyName, "", "")
	}
	if t.Has(e.Name) {
		return rigerr.Invalid(rigerr.ErrDuplicateName, e.Name, "")
	}
	if e.IsRoot() {
		if root, ok := t.Root(); ok {
			return rigerr.Invalid(rigerr.ErrDuplicateRoot, e.Name, "root is "+root)
		}
	} else if !t.Has(e.Parent) {
		return rigerr.Invalid(rigerr.ErrOrphanParent, e.Name, "parent "+e.Parent)
	}
	t.index[e.Name] = len(t.entries)
	t.entries = append(t.entries, e.Clone())
	return nil
}

// Remove deletes a joint that has no children.
func (t *Topology) Remove(name string) error {
	i, ok := t.index[name]
	if !ok {
		return rigerr.Invalid(rigerr.ErrNotFound, name, "")
	}
	if kids := t.Children(name); len(kids) > 0 {
		return rigerr.Invalid(rigerr.ErrOrphanParent, name, fmt.Sprintf("would orphan %v", kids))
	}
	t.entries = slices.Delete(t.entries, i, i+1)
	t.reindex()
	return nil
}

// Rename changes a joint name and every parent link pointing at it.
func (t *Topology) Rename(oldName, newName string) error {
	i, ok := t.index[oldName]
	if !ok {
		return rigerr.Invalid(rigerr.ErrNotFound, oldName, "")
	}
	if newName == "" {
		return rigerr.Invalid(rigerr.ErrEmptyName, oldName, "")
	}
	if newName == oldName {
		return nil
	}
	if t.Has(newName) {
		return rigerr.Invalid(rigerr.ErrDuplicateName, newName, "")
	}
	t.entries[i].Name = newName
	for j := range t.entries {
		if t.entries[j].Parent == oldName {
			t.entries[j].Parent = newName
		}
	}
	t.reindex()
	return nil
}

// Reparent moves name under parent, refusing moves that would form a cycle.
func (t *Topology) Reparent(name, parent string) error {
	i, ok := t.index[name]
	if !ok {
		return rigerr.Invalid(rigerr.ErrNotFound, name, "")
	}
	if t.entries[i].IsRoot() {
		return rigerr.Invalid(rigerr.ErrDuplicateRoot, name, "the root cannot be reparented")
	}
	if !t.Has(parent) {
		return rigerr.Invalid(rigerr.ErrOrphanParent, name, "parent "+parent)
	}
	for a := parent; a != ""; a = t.entries[t.index[a]].Parent {
		if a == name {
			return rigerr.Invalid(rigerr.ErrCycle, name, "parent "+parent+" is a descendant")
		}
	}
	t.entries[i].Parent = parent
	return nil
}

// Update replaces the non-structural fields of an existing entry. Name and
// parent changes go through Rename and Reparent.
func (t *Topology) Update(e core.JointEntry) error {
	i, ok := t.index[e.Name]
	if !ok {
		return rigerr.Invalid(rigerr.ErrNotFound, e.Name, "")
	}
	e = e.Clone()
	e.Parent = t.entries[i].Parent
	t.entries[i] = e
	return nil
}

// ApplyOffsets replaces the default offsets of the listed joints. Offsets are
// in the topology's unit. Unknown names are returned, not applied.
func (t *Topology) ApplyOffsets(offsets map[string]r3.Vec) (unknown []string) {
	for name, v := range offsets {
		i, ok := t.index[name]
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		t.entries[i].DefaultOffset = v
	}
	slices.Sort(unknown)
	return unknown
}

// OffsetsCM returns every default offset converted to centimeters.
func (t *Topology) OffsetsCM() map[string]r3.Vec {
	out := make(map[string]r3.Vec, len(t.entries))
	for _, e := range t.entries {
		out[e.Name] = t.Unit.ToCentimeters(e.DefaultOffset)
	}
	return out
}

// Validate checks names, parent links, the single root and acyclicity.
// An empty topology is valid.
func (t *Topology) Validate() error {
	seen := make(map[string]bool, len(t.entries))
	for _, e := range t.entries {
		if e.Name == "" {
			return rigerr.Invalid(rigerr.ErrEmptyName, "", "")
		}
		if seen[e.Name] {
			return rigerr.Invalid(rigerr.ErrDuplicateName, e.Name, "")
		}
		seen[e.Name] = true
	}

	var roots []string
	for _, e := range t.entries {
		if e.IsRoot() {
			roots = append(roots, e.Name)
			continue
		}
		if !seen[e.Parent] {
			return rigerr.Invalid(rigerr.ErrOrphanParent, e.Name, "parent "+e.Parent)
		}
	}
	if len(roots) > 1 {
		return rigerr.Invalid(rigerr.ErrDuplicateRoot, roots[1], fmt.Sprintf("roots %v", roots))
	}

	for _, e := range t.entries {
		steps := 0
		for a := e.Parent; a != ""; a = t.entries[t.index[a]].Parent {
			if a == e.Name || steps > len(t.entries) {
				return rigerr.Invalid(rigerr.ErrCycle, e.Name, "")
			}
			steps++
		}
	}
	if len(t.entries) > 0 && len(roots) == 0 {
		return rigerr.Invalid(rigerr.ErrNoRoot, "", "")
	}
	return nil
}

// BoundsFor returns the stored bounds of e, or its default offset widened by
// marginCM centimeters converted to the topology's unit.
func (t *Topology) BoundsFor(e core.JointEntry, marginCM float64) core.Bounds {
	if e.Bounds != nil {
		return *e.Bounds
	}
	m := t.Unit.FromCentimeters(marginCM)
	o := e.DefaultOffset
	return core.Bounds{
		X: core.AxisRange{Min: o.X - m, Max: o.X + m},
		Y: core.AxisRange{Min: o.Y - m, Max: o.Y + m},
		Z: core.AxisRange{Min: o.Z - m, Max: o.Z + m},
	}
}

// Order returns joint names so every parent precedes its children, starting
// at the root. Entries unreachable from the root are appended in creation order.
func (t *Topology) Order() []string {
	out := make([]string, 0, len(t.entries))
	done := make(map[string]bool, len(t.entries))
	root, ok := t.Root()
	if ok {
		queue := []string{root}
		for len(queue) > 0 {
			n := queue[0]
			queue = queue[1:]
			if done[n] {
				continue
			}
			done[n] = true
			out = append(out, n)
			queue = append(queue, t.Children(n)...)
		}
	}
	for _, e := range t.entries {
		if !done[e.Name] {
			out = append(out, e.Name)
		}
	}
	return out
}

func (t *Topology) reindex() {
	t.index = make(map[string]int, len(t.entries))
	for i, e := range t.entries {
		t.index[e.Name] = i
	}
}
