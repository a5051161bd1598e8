package strategy

import (
	"sync"
	"time"
)

type memoryEntry struct {
	strategyName string
	expiresAt    time.Time
}

// Memory remembers which strategy last succeeded for each domain, so
// subsequent pages of the same site skip detection. Entries expire after
// the configured TTL and are pruned periodically.
type Memory struct {
	store sync.Map // domain (string) -> *memoryEntry
	ttl   time.Duration
	done  chan struct{}
}

// NewMemory creates a Memory with the given TTL and starts a background
// goroutine that prunes expired entries every hour.
func NewMemory(ttl time.Duration) *Memory {
	m := &Memory{
		ttl:  ttl,
		done: make(chan struct{}),
	}
	go m.pruneLoop()
	return m
}

// Get returns the remembered strategy name for a domain, or "" when
// absent or expired.
func (m *Memory) Get(domain string) string {
	val, ok := m.store.Load(domain)
	if !ok {
		return ""
	}
	entry := val.(*memoryEntry)
	if time.Now().After(entry.expiresAt) {
		m.store.Delete(domain)
		return ""
	}
	return entry.strategyName
}

// Set records which strategy succeeded for a domain.
func (m *Memory) Set(domain, strategyName string) {
	m.store.Store(domain, &memoryEntry{
		strategyName: strategyName,
		expiresAt:    time.Now().Add(m.ttl),
	})
}

// Delete removes the memory for a domain, e.g. after the remembered
// strategy fails.
func (m *Memory) Delete(domain string) {
	m.store.Delete(domain)
}

// Stop terminates the background prune goroutine.
func (m *Memory) Stop() {
	close(m.done)
}

func (m *Memory) pruneLoop() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			now := time.Now()
			m.store.Range(func(key, value any) bool {
				entry := value.(*memoryEntry)
				if now.After(entry.expiresAt) {
					m.store.Delete(key)
				}
				return true
			})
		}
	}
}
