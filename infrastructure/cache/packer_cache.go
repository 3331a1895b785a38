package cache

import (
	"strings"
	"sync"

	"packtrack/models"
)

// PackerCache caches packers by case-folded name.
type PackerCache struct {
	mu      sync.RWMutex
	loaded  bool
	packers map[string]models.Packer
}

func NewPackerCache() *PackerCache {
	return &PackerCache{packers: make(map[string]models.Packer)}
}

// Replace swaps the whole cache contents.
func (c *PackerCache) Replace(packers []models.Packer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.packers = make(map[string]models.Packer, len(packers))
	for _, p := range packers {
		c.packers[strings.ToLower(p.Name)] = p
	}
	c.loaded = true
}

func (c *PackerCache) Add(p models.Packer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.packers[strings.ToLower(p.Name)] = p
}

func (c *PackerCache) Get(name string) (models.Packer, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.packers[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// Loaded reports whether Replace has filled the cache.
func (c *PackerCache) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// Invalidate forces the next reader to reload from the database.
func (c *PackerCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaded = false
}

// List returns cached packers with the given role, or all when role is empty.
func (c *PackerCache) List(role string) []models.Packer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.Packer, 0, len(c.packers))
	for _, p := range c.packers {
		if role == "" || strings.EqualFold(p.Role, role) {
			out = append(out, p)
		}
	}
	return out
}
