package ratelimit

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	count     int64
	expiresAt time.Time
}

// MemoryCounter хранит счетчики окон в памяти процесса
type MemoryCounter struct {
	mu      sync.Mutex
	entries map[WindowKey]*memoryEntry
	now     func() time.Time
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{
		entries: make(map[WindowKey]*memoryEntry),
		now:     time.Now,
	}
}

func (c *MemoryCounter) Incr(_ context.Context, key WindowKey, ttl time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		e = &memoryEntry{expiresAt: time.Unix(key.WindowStart, 0).Add(ttl)}
		c.entries[key] = e
	}
	e.count++
	return e.count, nil
}

// Sweep удаляет счетчики завершенных окон и возвращает их число
func (c *MemoryCounter) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

func (c *MemoryCounter) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
