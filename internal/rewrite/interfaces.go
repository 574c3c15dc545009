package rewrite

import (
	"context"
	"time"
)

// TextGenerator produces a rewrite of the supplied prompt text.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ArticleIntake accepts new source articles into the feed.
type ArticleIntake interface {
	AddArticle(ctx context.Context, article Article) error
}

// ArticleSource supplies unassigned articles and records their
// assignment and terminal outcomes. Rewritten and rejected articles
// never reappear in ListAssignedPending.
type ArticleSource interface {
	ListUnassigned(ctx context.Context, limit int) ([]Article, error)
	MarkAssigned(ctx context.Context, assignment Assignment) error
	ListAssignedPending(ctx context.Context, limit int) ([]Article, error)
	MarkRewritten(ctx context.Context, articleID string) error
	MarkRejected(ctx context.Context, articleID string) error
}

// ContentSink persists accepted rewrite results.
type ContentSink interface {
	SaveCompleted(ctx context.Context, article CompletedArticle) error
}

// QuotaStore provides the enabled domain quota configs.
type QuotaStore interface {
	ListEnabled(ctx context.Context) ([]DomainQuota, error)
}

// CounterStore persists per-domain assignment counts. The in-process
// cache treats these counts as the source of truth when they exceed
// the cached value.
type CounterStore interface {
	GetCount(ctx context.Context, domain, date string) (int, error)
	GetCategoryCount(ctx context.Context, domain, date, category string) (int, error)
	Increment(ctx context.Context, domain, date, category string) error
}

// Publisher pushes completion and assignment events downstream.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// BlobStore archives raw source snapshots and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Hasher computes digests for archive paths.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces task IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
