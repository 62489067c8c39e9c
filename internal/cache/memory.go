package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lshigami/testcert/internal/model"
)

type memoryEntry struct {
	session   *model.TestSession
	expiresAt time.Time
}

// MemorySessionCache is a process-local SessionCache for tests and single-node runs.
type MemorySessionCache struct {
	mu      sync.RWMutex
	entries map[uint]memoryEntry
	now     func() time.Time
}

func NewMemorySessionCache() *MemorySessionCache {
	return NewMemorySessionCacheWithClock(time.Now)
}

func NewMemorySessionCacheWithClock(now func() time.Time) *MemorySessionCache {
	return &MemorySessionCache{entries: make(map[uint]memoryEntry), now: now}
}

func (c *MemorySessionCache) Set(_ context.Context, session *model.TestSession, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[session.ID] = memoryEntry{session: session.Clone(), expiresAt: c.now().Add(ttl)}
	return nil
}

func (c *MemorySessionCache) Get(_ context.Context, sessionID uint) (*model.TestSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if !c.now().Before(entry.expiresAt) {
		delete(c.entries, sessionID)
		return nil, ErrSessionNotFound
	}
	return entry.session.Clone(), nil
}

func (c *MemorySessionCache) Delete(_ context.Context, sessionID uint) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, sessionID)
	return nil
}

func (c *MemorySessionCache) List(_ context.Context) ([]*model.TestSession, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	now := c.now()
	sessions := make([]*model.TestSession, 0, len(c.entries))
	for _, entry := range c.entries {
		if now.Before(entry.expiresAt) {
			sessions = append(sessions, entry.session.Clone())
		}
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].ID < sessions[j].ID })
	return sessions, nil
}
