package session

import (
	"log/slog"
	"testing"

	"github.com/flexmocap/rigcore/internal/marker"
	"github.com/flexmocap/rigcore/internal/skeleton"
	"github.com/flexmocap/rigcore/internal/topology"
	"github.com/flexmocap/rigcore/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContext_Topology(t *testing.T) {
	c := New()
	assert.NotEmpty(t, c.ID)
	_, ok := c.Topology()
	assert.False(t, ok)

	top := topology.Default()
	c.SetTopology(top, "body.ini")
	got, ok := c.Topology()
	require.True(t, ok)
	assert.Same(t, top, got)
	assert.Equal(t, "body.ini", c.TemplatePath())
}

func TestContext_Frame(t *testing.T) {
	c := New()
	f, err := marker.NewFrame([]core.MarkerSample{{ID: "M001"}, {ID: "M000"}}, marker.DefaultConvention())
	require.NoError(t, err)

	c.SetFrame(f)
	got, ok := c.Frame()
	require.True(t, ok)
	assert.Same(t, f, got)

	c.SetFrame(nil)
	_, ok = c.Frame()
	assert.False(t, ok)
}

func TestContext_Skeletons(t *testing.T) {
	c := New()
	_, ok := c.Current()
	assert.False(t, ok)

	a := &skeleton.Skeleton{Namespace: "a"}
	b := &skeleton.Skeleton{Namespace: "b"}
	c.AddSkeleton(a)
	c.AddSkeleton(b)

	cur, ok := c.Current()
	require.True(t, ok)
	assert.Same(t, b, cur)

	c.RemoveSkeleton("b")
	_, ok = c.Current()
	assert.False(t, ok)
	got, ok := c.Skeletons.Get("a")
	require.True(t, ok)
	assert.Same(t, a, got)
}

func TestContext_LogAttrs(t *testing.T) {
	c := New()
	attrs := c.LogAttrs()
	require.Len(t, attrs, 1)
	assert.Equal(t, slog.String("session", c.ID), attrs[0])

	c.SetTopology(topology.Default(), "body.csv")
	c.AddSkeleton(&skeleton.Skeleton{Namespace: "actor"})
	attrs = c.LogAttrs()
	assert.Contains(t, attrs, slog.String("template", "body.csv"))
	assert.Contains(t, attrs, slog.String("namespace", "actor"))
}
