package memory

import (
	"context"
	"sync"
)

type counterKey struct {
	domain   string
	date     string
	category string
}

// CounterStore implements rewrite.CounterStore in process memory.
type CounterStore struct {
	mu         sync.RWMutex
	totals     map[counterKey]int
	categories map[counterKey]int
}

// NewCounterStore constructs a CounterStore.
func NewCounterStore() *CounterStore {
	return &CounterStore{
		totals:     make(map[counterKey]int),
		categories: make(map[counterKey]int),
	}
}

// GetCount returns the overall assignment count for (domain, date).
func (s *CounterStore) GetCount(_ context.Context, domain, date string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totals[counterKey{domain: domain, date: date}], nil
}

// GetCategoryCount returns the count for (domain, date, category).
func (s *CounterStore) GetCategoryCount(_ context.Context, domain, date, category string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.categories[counterKey{domain: domain, date: date, category: category}], nil
}

// Increment bumps the overall and category counters.
func (s *CounterStore) Increment(_ context.Context, domain, date, category string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totals[counterKey{domain: domain, date: date}]++
	s.categories[counterKey{domain: domain, date: date, category: category}]++
	return nil
}

// Seed force-sets a persisted count, for tests exercising cache
// re-synchronization.
func (s *CounterStore) Seed(domain, date, category string, total, categoryCount int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totals[counterKey{domain: domain, date: date}] = total
	s.categories[counterKey{domain: domain, date: date, category: category}] = categoryCount
}
