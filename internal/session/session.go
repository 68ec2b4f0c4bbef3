// Package session holds the state a rigging session accumulates: the loaded
// template, the last marker frame and the skeletons built so far. It is owned
// by the caller and passed explicitly; nothing in the engine keeps globals.
package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/flexmocap/rigcore/internal/cache"
	"github.com/flexmocap/rigcore/internal/marker"
	"github.com/flexmocap/rigcore/internal/skeleton"
	"github.com/flexmocap/rigcore/internal/topology"
	"github.com/google/uuid"
)

// Context is safe for concurrent use
type Context struct {
	ID      string
	Started time.Time

	mu           sync.RWMutex
	topology     *topology.Topology
	templatePath string
	frame        *marker.Frame
	current      string

	Skeletons *cache.SkeletonCache
}

func New() *Context {
	return &Context{
		ID:        uuid.NewString(),
		Started:   time.Now().UTC(),
		Skeletons: cache.NewSkeletonCache(),
	}
}

// SetTopology installs t as the active template. path may be empty for
// templates that were not read from disk.
func (c *Context) SetTopology(t *topology.Topology, path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topology = t
	c.templatePath = path
}

func (c *Context) Topology() (*topology.Topology, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.topology, c.topology != nil
}

func (c *Context) TemplatePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.templatePath
}

// SetFrame records f as the most recent capture.
func (c *Context) SetFrame(f *marker.Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frame = f
}

func (c *Context) Frame() (*marker.Frame, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.frame, c.frame != nil
}

// AddSkeleton caches s and makes it the current skeleton.
func (c *Context) AddSkeleton(s *skeleton.Skeleton) {
	c.Skeletons.Add(s)
	c.mu.Lock()
	c.current = s.Namespace
	c.mu.Unlock()
}

// RemoveSkeleton forgets namespace; the current skeleton is cleared if it matches.
func (c *Context) RemoveSkeleton(namespace string) {
	c.Skeletons.Remove(namespace)
	c.mu.Lock()
	if c.current == namespace {
		c.current = ""
	}
	c.mu.Unlock()
}

// Current returns the most recently added skeleton.
func (c *Context) Current() (*skeleton.Skeleton, bool) {
	c.mu.RLock()
	ns := c.current
	c.mu.RUnlock()
	if ns == "" {
		return nil, false
	}
	return c.Skeletons.Get(ns)
}

// LogAttrs describes the session for log records.
func (c *Context) LogAttrs() []slog.Attr {
	c.mu.RLock()
	defer c.mu.RUnlock()
	attrs := []slog.Attr{slog.String("session", c.ID)}
	if c.templatePath != "" {
		attrs = append(attrs, slog.String("template", c.templatePath))
	}
	if c.current != "" {
		attrs = append(attrs, slog.String("namespace", c.current))
	}
	return attrs
}
