package memory

import (
	"context"
	"sync"

	"github.com/presswire/rewriter/internal/rewrite"
)

// ContentStore implements rewrite.ContentSink in process memory.
type ContentStore struct {
	mu    sync.RWMutex
	saved []rewrite.CompletedArticle
}

// NewContentStore constructs a ContentStore.
func NewContentStore() *ContentStore {
	return &ContentStore{}
}

// SaveCompleted records an accepted rewrite result.
func (s *ContentStore) SaveCompleted(_ context.Context, article rewrite.CompletedArticle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, article)
	return nil
}

// Completed returns the saved results.
func (s *ContentStore) Completed() []rewrite.CompletedArticle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]rewrite.CompletedArticle, len(s.saved))
	copy(out, s.saved)
	return out
}
