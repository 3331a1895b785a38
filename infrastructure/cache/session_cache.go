package cache

import (
	"sync"

	"packtrack/infrastructure/scansession"
)

// ScanSessionCache holds live scan sessions by ID.
type ScanSessionCache struct {
	mu       sync.RWMutex
	sessions map[string]*scansession.Session
}

func NewScanSessionCache() *ScanSessionCache {
	return &ScanSessionCache{sessions: make(map[string]*scansession.Session)}
}

func (c *ScanSessionCache) Add(s *scansession.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[s.ID()] = s
}

func (c *ScanSessionCache) Get(id string) (*scansession.Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.sessions[id]
	return s, ok
}

// Remove drops the session and returns it so the caller can stop it.
func (c *ScanSessionCache) Remove(id string) (*scansession.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[id]
	delete(c.sessions, id)
	return s, ok
}

// All returns a snapshot of the live sessions.
func (c *ScanSessionCache) All() []*scansession.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*scansession.Session, 0, len(c.sessions))
	for _, s := range c.sessions {
		out = append(out, s)
	}
	return out
}
