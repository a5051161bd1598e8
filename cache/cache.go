// Package cache holds completed scrape job responses in memory, so
// repeated requests for the same domain and options within the TTL skip
// a full re-scrape.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sitegrazer/sitegrazer/models"
)

type entry struct {
	response  *models.ScrapeResponse
	createdAt time.Time
}

// Cache is a TTL-bounded in-memory result cache, safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int
	ttl        time.Duration
}

// New creates a Cache. A background goroutine evicts expired entries
// every 5 minutes.
func New(maxEntries int, ttl time.Duration) *Cache {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	c := &Cache{
		store:      make(map[string]*entry),
		maxEntries: maxEntries,
		ttl:        ttl,
	}
	go c.cleanupLoop()
	return c
}

// Key derives a cache key from the scrape target and the options that
// change the output. Job ID and progress options are deliberately left
// out: two requests for the same pages share one cache slot.
func Key(req *models.ScrapeRequest) string {
	formats := append([]string(nil), req.OutputFormats...)
	sort.Strings(formats)

	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%d|%s|%s|%v",
		req.Domain,
		strings.Join(req.URLs, ","),
		req.MaxPages,
		req.Strategy,
		strings.Join(formats, ","),
		req.Stealth,
	)
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached response for a key when present and unexpired.
func (c *Cache) Get(key string) (*models.ScrapeResponse, bool) {
	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()

	if !ok || time.Since(e.createdAt) > c.ttl {
		return nil, false
	}
	return e.response, true
}

// Set stores a response. At capacity a random entry is evicted to make
// room (map iteration order is random in Go).
func (c *Cache) Set(key string, resp *models.ScrapeResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.store) >= c.maxEntries {
		for k := range c.store {
			delete(c.store, k)
			break
		}
	}
	c.store[key] = &entry{response: resp, createdAt: time.Now()}
}

func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-c.ttl)
		c.mu.Lock()
		for k, e := range c.store {
			if e.createdAt.Before(cutoff) {
				delete(c.store, k)
			}
		}
		c.mu.Unlock()
	}
}
