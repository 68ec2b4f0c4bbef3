package memscene

import (
	"testing"

	"github.com/flexmocap/rigcore/internal/scene"
	"github.com/flexmocap/rigcore/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestCreateNode_NamespaceAndLabel(t *testing.T) {
	s := New()
	assert.False(t, s.NamespaceExists("actor"))

	n, err := s.CreateNode("actor", "Hips", scene.KindRoot)
	require.NoError(t, err)
	assert.Equal(t, "actor:Hips", n.LongName())
	assert.True(t, s.NamespaceExists("actor"))

	found, ok := s.FindByLabel("actor:Hips")
	require.True(t, ok)
	assert.Same(t, n, found)

	_, err = s.CreateNode("actor", "Hips", scene.KindSkeleton)
	assert.ErrorIs(t, err, ErrLabelTaken)
}

func TestWorldPosition_ComposesTranslations(t *testing.T) {
	s := New()
	hips, err := s.CreateNode("a", "Hips", scene.KindRoot)
	require.NoError(t, err)
	leg, err := s.CreateNode("a", "LeftUpLeg", scene.KindSkeleton)
	require.NoError(t, err)
	require.NoError(t, leg.SetParent(hips))

	hips.SetTranslation(r3.Vec{X: 1, Y: 90, Z: 0})
	leg.SetTranslation(r3.Vec{X: 9.6, Y: -3.6, Z: 7.3})

	got := leg.WorldPosition()
	assert.InDelta(t, 10.6, got.X, 1e-9)
	assert.InDelta(t, 86.4, got.Y, 1e-9)
	assert.InDelta(t, 7.3, got.Z, 1e-9)
	assert.Len(t, s.Root().Children(), 1)
}

func TestDeleteNamespace(t *testing.T) {
	s := New()
	hips, _ := s.CreateNode("a", "Hips", scene.KindRoot)
	other, _ := s.CreateNode("b", "Hips", scene.KindRoot)
	require.NoError(t, other.SetParent(hips))

	require.NoError(t, s.DeleteNamespace("a"))
	assert.False(t, s.NamespaceExists("a"))
	assert.True(t, s.NamespaceExists("b"))
	assert.Equal(t, s.Root(), other.Parent())
}

func TestDeleteNamespace_Empty(t *testing.T) {
	s := New()
	m, _ := s.AddMarker(nil, "M000", scene.KindMarker, r3.Vec{})

	assert.ErrorIs(t, s.DeleteNamespace(""), ErrNoNamespace)
	got, ok := s.FindByLabel("M000")
	require.True(t, ok)
	assert.Same(t, m, got)
}

func TestDeleteCharacter(t *testing.T) {
	s := New()
	c, err := s.CreateCharacter("actor")
	require.NoError(t, err)
	ms, err := c.CreateMarkerSet()
	require.NoError(t, err)

	require.NoError(t, s.DeleteCharacter("actor"))
	_, ok := s.Character("actor")
	assert.False(t, ok)
	assert.ErrorIs(t, ms.SetConstraint("Hips", core.ConstraintAim), ErrDeleted)
	assert.ErrorIs(t, s.DeleteCharacter("actor"), ErrNoCharacter)

	_, err = s.CreateCharacter("actor")
	assert.NoError(t, err)
}

func TestRename(t *testing.T) {
	s := New()
	m, err := s.AddMarker(nil, "M000", scene.KindMarker, r3.Vec{})
	require.NoError(t, err)
	_, err = s.AddMarker(nil, "M001", scene.KindMarker, r3.Vec{})
	require.NoError(t, err)

	require.NoError(t, m.Rename("LHEE"))
	_, ok := s.FindByLabel("M000")
	assert.False(t, ok)
	_, ok = s.FindByLabel("LHEE")
	assert.True(t, ok)

	assert.ErrorIs(t, m.Rename("M001"), ErrLabelTaken)
}

func TestMarkerSet_ReplaceAndDelete(t *testing.T) {
	s := New(WithSlots([]string{"Hips", "Head"}))
	c, err := s.CreateCharacter("actor")
	require.NoError(t, err)

	_, ok := c.MarkerSet()
	assert.False(t, ok)

	ms, err := c.CreateMarkerSet()
	require.NoError(t, err)
	m0, _ := s.AddMarker(nil, "M000", scene.KindMarker, r3.Vec{})
	m1, _ := s.AddMarker(nil, "M001", scene.KindMarker, r3.Vec{})

	require.NoError(t, ms.ReplaceSources("Hips", []scene.Node{m0, m1}))
	require.NoError(t, ms.ReplaceSources("Hips", []scene.Node{m1}))
	assert.Equal(t, []scene.Node{m1}, ms.Sources("Hips"))

	require.NoError(t, ms.SetConstraint("Hips", core.ConstraintAim))
	k, ok := ms.Constraint("Hips")
	require.True(t, ok)
	assert.Equal(t, core.ConstraintAim, k)

	assert.ErrorIs(t, ms.ReplaceSources("Tail", nil), ErrUnknownSlot)

	require.NoError(t, ms.Delete())
	_, ok = c.MarkerSet()
	assert.False(t, ok)
	assert.ErrorIs(t, ms.SetConstraint("Hips", core.ConstraintAim), ErrDeleted)
}

func TestCharacter_Link(t *testing.T) {
	s := New()
	c, err := s.CreateCharacter("actor")
	require.NoError(t, err)
	hips, _ := s.CreateNode("actor", "Hips", scene.KindRoot)

	require.NoError(t, c.Link("Hips", hips))
	got, ok := c.Linked("Hips")
	require.True(t, ok)
	assert.Same(t, hips, got)
	assert.ErrorIs(t, c.Link("Tail", hips), ErrUnknownSlot)

	_, err = s.CreateCharacter("actor")
	assert.ErrorIs(t, err, ErrLabelTaken)
}

func TestWalk_Order(t *testing.T) {
	s := New()
	g, _ := s.AddGroup(nil, "markers")
	_, _ = s.AddMarker(g, "M000", scene.KindMarker, r3.Vec{})
	sub, _ := s.AddGroup(g, "sub")
	_, _ = s.AddMarker(sub, "M001", scene.KindMarker, r3.Vec{})
	_, _ = s.AddMarker(g, "M002", scene.KindMarker, r3.Vec{})

	var names []string
	scene.Walk(s.Root(), func(n scene.Node) bool {
		names = append(names, n.Name())
		return true
	})
	assert.Equal(t, []string{"SceneRoot", "markers", "M000", "sub", "M001", "M002"}, names)

	names = nil
	scene.Walk(s.Root(), func(n scene.Node) bool {
		names = append(names, n.Name())
		return n.Name() != "sub"
	})
	assert.NotContains(t, names, "M001")
}
