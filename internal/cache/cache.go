package cache

import (
	"slices"
	"sync"

	"github.com/flexmocap/rigcore/internal/skeleton"
)

// SkeletonCache keeps the skeletons built in this session by namespace so a
// later fit or bind does not have to walk the scene again.
type SkeletonCache struct {
	m         sync.Mutex
	skeletons map[string]*skeleton.Skeleton
}

func NewSkeletonCache() *SkeletonCache {
	return &SkeletonCache{skeletons: make(map[string]*skeleton.Skeleton)}
}

func (c *SkeletonCache) Reset() {
	c.m.Lock()
	defer c.m.Unlock()
	c.skeletons = make(map[string]*skeleton.Skeleton)
}

func (c *SkeletonCache) Get(namespace string) (*skeleton.Skeleton, bool) {
	c.m.Lock()
	defer c.m.Unlock()
	s, ok := c.skeletons[namespace]
	return s, ok
}

// Add stores s under its namespace, replacing any previous entry.
func (c *SkeletonCache) Add(s *skeleton.Skeleton) {
	c.m.Lock()
	defer c.m.Unlock()
	c.skeletons[s.Namespace] = s
}

func (c *SkeletonCache) Remove(namespace string) {
	c.m.Lock()
	defer c.m.Unlock()
	delete(c.skeletons, namespace)
}

// Namespaces lists cached namespaces in sorted order.
func (c *SkeletonCache) Namespaces() []string {
	c.m.Lock()
	defer c.m.Unlock()
	out := make([]string, 0, len(c.skeletons))
	for ns := range c.skeletons {
		out = append(out, ns)
	}
	slices.Sort(out)
	return out
}

func (c *SkeletonCache) Len() int {
	c.m.Lock()
	defer c.m.Unlock()
	return len(c.skeletons)
}
