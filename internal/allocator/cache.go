// Package allocator assigns unassigned articles to output domains
// under per-domain daily and category quotas.
package allocator

import "sync"

type totalKey struct {
	domain string
	date   string
}

type categoryKey struct {
	domain   string
	date     string
	category string
}

// Cache holds in-process assignment counts. Counts only grow within a
// day; persisted counts override the cache when they are larger, so
// the cache is always a lower bound of stored truth.
type Cache struct {
	mu         sync.Mutex
	totals     map[totalKey]int
	categories map[categoryKey]int
}

// NewCache builds an empty Cache.
func NewCache() *Cache {
	return &Cache{
		totals:     make(map[totalKey]int),
		categories: make(map[categoryKey]int),
	}
}

// Total returns the cached overall count for (domain, date).
func (c *Cache) Total(domain, date string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totals[totalKey{domain, date}]
}

// Category returns the cached count for (domain, date, category).
func (c *Cache) Category(domain, date, category string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.categories[categoryKey{domain, date, category}]
}

// Increment bumps both the overall and category counters.
func (c *Cache) Increment(domain, date, category string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totals[totalKey{domain, date}]++
	c.categories[categoryKey{domain, date, category}]++
}

// RefreshTotal adopts the persisted count when it exceeds the cache.
func (c *Cache) RefreshTotal(domain, date string, persisted int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := totalKey{domain, date}
	if persisted > c.totals[key] {
		c.totals[key] = persisted
	}
}

// RefreshCategory adopts the persisted count when it exceeds the cache.
func (c *Cache) RefreshCategory(domain, date, category string, persisted int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := categoryKey{domain, date, category}
	if persisted > c.categories[key] {
		c.categories[key] = persisted
	}
}
