package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/presswire/rewriter/internal/rewrite"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeGenerator struct {
	mu      sync.Mutex
	outputs map[string]string
	err     error
	calls   int
}

func (g *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	out, ok := g.outputs[prompt]
	if !ok {
		return "", fmt.Errorf("no canned output for prompt")
	}
	return out, nil
}

func (g *fakeGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type fakeSource struct {
	mu        sync.Mutex
	pending   []rewrite.Article
	rewritten []string
	rejected  []string
	markErr   error
}

func (s *fakeSource) ListUnassigned(context.Context, int) ([]rewrite.Article, error) {
	return nil, nil
}

func (s *fakeSource) MarkAssigned(context.Context, rewrite.Assignment) error {
	return nil
}

// ListAssignedPending mirrors the real stores: consumed articles drop
// out of the feed.
func (s *fakeSource) ListAssignedPending(_ context.Context, limit int) ([]rewrite.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	consumed := make(map[string]bool, len(s.rewritten)+len(s.rejected))
	for _, id := range s.rewritten {
		consumed[id] = true
	}
	for _, id := range s.rejected {
		consumed[id] = true
	}
	var out []rewrite.Article
	for _, article := range s.pending {
		if consumed[article.ID] {
			continue
		}
		out = append(out, article)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *fakeSource) MarkRewritten(_ context.Context, articleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.markErr != nil {
		return s.markErr
	}
	s.rewritten = append(s.rewritten, articleID)
	return nil
}

func (s *fakeSource) MarkRejected(_ context.Context, articleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejected = append(s.rejected, articleID)
	return nil
}

func (s *fakeSource) rewrittenIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.rewritten...)
}

func (s *fakeSource) rejectedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.rejected...)
}

func (s *fakeSource) clearPending() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = nil
}

type fakeSink struct {
	mu    sync.Mutex
	saved []rewrite.CompletedArticle
	err   error
}

func (s *fakeSink) SaveCompleted(_ context.Context, article rewrite.CompletedArticle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, article)
	return nil
}

func (s *fakeSink) savedArticles() []rewrite.CompletedArticle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]rewrite.CompletedArticle(nil), s.saved...)
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []any
	err      error
}

func (p *fakePublisher) Publish(_ context.Context, _ string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.messages = append(p.messages, payload)
	return fmt.Sprintf("msg-%d", len(p.messages)), nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.messages)
}

type fakeArchive struct {
	mu    sync.Mutex
	paths []string
}

func (a *fakeArchive) PutObject(_ context.Context, path string, _ string, _ []byte) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.paths = append(a.paths, path)
	return "mem://" + path, nil
}

func (a *fakeArchive) storedPaths() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.paths...)
}

type fakeHasher struct{ hash string }

func (h *fakeHasher) Hash([]byte) (string, error) {
	return h.hash, nil
}

type fakeIDGen struct {
	mu   sync.Mutex
	next int
}

func (g *fakeIDGen) NewID() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return fmt.Sprintf("task-%d", g.next), nil
}
