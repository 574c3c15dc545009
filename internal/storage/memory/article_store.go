// Package memory provides in-memory store implementations for
// development and testing.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/presswire/rewriter/internal/rewrite"
)

type articleState struct {
	article   rewrite.Article
	assigned  bool
	rewritten bool
	rejected  bool
	domain    string
}

// ArticleStore implements rewrite.ArticleSource backed by process
// memory. It doubles as the intake point for API submissions.
type ArticleStore struct {
	mu     sync.RWMutex
	order  []string
	states map[string]*articleState
}

// NewArticleStore constructs an ArticleStore.
func NewArticleStore() *ArticleStore {
	return &ArticleStore{states: make(map[string]*articleState)}
}

// AddArticle registers a new unassigned article.
func (s *ArticleStore) AddArticle(_ context.Context, article rewrite.Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.states[article.ID]; exists {
		return errors.New("article already exists")
	}
	s.states[article.ID] = &articleState{article: article}
	s.order = append(s.order, article.ID)
	return nil
}

// ListUnassigned returns up to limit articles with no domain yet,
// oldest submission first.
func (s *ArticleStore) ListUnassigned(_ context.Context, limit int) ([]rewrite.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []rewrite.Article
	for _, id := range s.order {
		state := s.states[id]
		if state.assigned {
			continue
		}
		out = append(out, state.article)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// MarkAssigned records the article's destination domain.
func (s *ArticleStore) MarkAssigned(_ context.Context, assignment rewrite.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[assignment.ArticleID]
	if !ok {
		return errors.New("article not found")
	}
	if state.assigned {
		return errors.New("article already assigned")
	}
	state.assigned = true
	state.domain = assignment.Domain
	return nil
}

// ListAssignedPending returns assigned articles not yet rewritten.
func (s *ArticleStore) ListAssignedPending(_ context.Context, limit int) ([]rewrite.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []rewrite.Article
	for _, id := range s.order {
		state := s.states[id]
		if !state.assigned || state.rewritten || state.rejected {
			continue
		}
		out = append(out, state.article)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// MarkRewritten flags an article as consumed by the rewrite pipeline.
func (s *ArticleStore) MarkRewritten(_ context.Context, articleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[articleID]
	if !ok {
		return errors.New("article not found")
	}
	state.rewritten = true
	return nil
}

// MarkRejected flags an article as terminally rejected by the quality
// gate so the feed never offers it again.
func (s *ArticleStore) MarkRejected(_ context.Context, articleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[articleID]
	if !ok {
		return errors.New("article not found")
	}
	state.rejected = true
	return nil
}

// AssignedDomain reports where an article landed, for inspection.
func (s *ArticleStore) AssignedDomain(articleID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[articleID]
	if !ok || !state.assigned {
		return "", false
	}
	return state.domain, true
}
