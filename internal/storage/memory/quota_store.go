package memory

import (
	"context"
	"sync"

	"github.com/presswire/rewriter/internal/rewrite"
)

// QuotaStore implements rewrite.QuotaStore over a static config list.
type QuotaStore struct {
	mu     sync.RWMutex
	quotas []rewrite.DomainQuota
}

// NewQuotaStore constructs a QuotaStore.
func NewQuotaStore(quotas []rewrite.DomainQuota) *QuotaStore {
	return &QuotaStore{quotas: quotas}
}

// ListEnabled returns the enabled quota configs.
func (s *QuotaStore) ListEnabled(context.Context) ([]rewrite.DomainQuota, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]rewrite.DomainQuota, 0, len(s.quotas))
	for _, q := range s.quotas {
		if q.Enabled {
			out = append(out, q)
		}
	}
	return out, nil
}

// SetQuotas replaces the config list.
func (s *QuotaStore) SetQuotas(quotas []rewrite.DomainQuota) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotas = quotas
}
