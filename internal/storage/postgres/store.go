// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/presswire/rewriter/internal/rewrite"
)

type poolIface interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Ping(context.Context) error
	Close()
}

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// Store implements the article, quota, counter and content persistence
// interfaces on a shared Postgres pool.
type Store struct {
	pool poolIface
}

// New creates a Postgres-backed Store using the provided config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewWithPool constructs a Store from an existing pool (primarily for testing).
func NewWithPool(pool poolIface) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("store is not configured")
	}
	return s.pool.Ping(ctx)
}

// AddArticle inserts a new unassigned article into the feed.
func (s *Store) AddArticle(ctx context.Context, article rewrite.Article) error {
	const query = `
INSERT INTO articles (id, title, body, category, published_at, rewritten, rejected)
VALUES ($1, $2, $3, $4, $5, FALSE, FALSE)`
	args := []any{
		article.ID,
		article.Title,
		article.Body,
		article.Category,
		article.PublishedAt,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert article: %w", err)
	}
	return nil
}

// ListUnassigned returns articles with no domain placement, oldest first.
func (s *Store) ListUnassigned(ctx context.Context, limit int) ([]rewrite.Article, error) {
	const query = `
SELECT id, title, body, category, published_at
FROM articles
WHERE assigned_domain IS NULL
ORDER BY published_at ASC
LIMIT $1`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list unassigned articles: %w", err)
	}
	defer rows.Close()
	return scanArticles(rows)
}

// MarkAssigned records an article's domain placement. An article that is
// already assigned is left untouched and reported as an error.
func (s *Store) MarkAssigned(ctx context.Context, assignment rewrite.Assignment) error {
	const query = `
UPDATE articles
SET assigned_domain = $2, assigned_date = $3
WHERE id = $1 AND assigned_domain IS NULL`
	tag, err := s.pool.Exec(ctx, query, assignment.ArticleID, assignment.Domain, assignment.Date)
	if err != nil {
		return fmt.Errorf("mark article assigned: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("article %s is missing or already assigned", assignment.ArticleID)
	}
	return nil
}

// ListAssignedPending returns assigned articles that have not been rewritten yet.
func (s *Store) ListAssignedPending(ctx context.Context, limit int) ([]rewrite.Article, error) {
	const query = `
SELECT id, title, body, category, published_at
FROM articles
WHERE assigned_domain IS NOT NULL AND rewritten = FALSE AND rejected = FALSE
ORDER BY published_at ASC
LIMIT $1`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending articles: %w", err)
	}
	defer rows.Close()
	return scanArticles(rows)
}

// MarkRewritten flags an article as rewritten so it is not fed again.
func (s *Store) MarkRewritten(ctx context.Context, articleID string) error {
	const query = `UPDATE articles SET rewritten = TRUE WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query, articleID)
	if err != nil {
		return fmt.Errorf("mark article rewritten: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("article %s not found", articleID)
	}
	return nil
}

// MarkRejected flags an article as terminally rejected by the quality
// gate so it is never fed again.
func (s *Store) MarkRejected(ctx context.Context, articleID string) error {
	const query = `UPDATE articles SET rejected = TRUE WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query, articleID)
	if err != nil {
		return fmt.Errorf("mark article rejected: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("article %s not found", articleID)
	}
	return nil
}

// SaveCompleted inserts an accepted rewrite result.
func (s *Store) SaveCompleted(ctx context.Context, article rewrite.CompletedArticle) error {
	const query = `
INSERT INTO completed_articles (
	source_article_id,
	title,
	body,
	category,
	originality_score,
	completed_at
) VALUES ($1,$2,$3,$4,$5,$6)`
	args := []any{
		article.SourceArticleID,
		article.Title,
		article.Body,
		article.Category,
		article.OriginalityScore,
		article.CompletedAt,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert completed article: %w", err)
	}
	return nil
}

// ListEnabled returns the quota configs for enabled domains.
func (s *Store) ListEnabled(ctx context.Context) ([]rewrite.DomainQuota, error) {
	const query = `
SELECT domain, daily_limit, enabled
FROM domain_quotas
WHERE enabled = TRUE
ORDER BY domain ASC`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list domain quotas: %w", err)
	}
	defer rows.Close()
	var quotas []rewrite.DomainQuota
	for rows.Next() {
		var q rewrite.DomainQuota
		if err := rows.Scan(&q.Domain, &q.DailyLimit, &q.Enabled); err != nil {
			return nil, fmt.Errorf("scan domain quota: %w", err)
		}
		quotas = append(quotas, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read domain quotas: %w", err)
	}
	return quotas, nil
}

// GetCount returns the persisted number of assignments for a domain on a date.
func (s *Store) GetCount(ctx context.Context, domain, date string) (int, error) {
	const query = `
SELECT COALESCE(SUM(assigned), 0)
FROM assignment_counters
WHERE domain = $1 AND assign_date = $2`
	var count int
	if err := s.pool.QueryRow(ctx, query, domain, date).Scan(&count); err != nil {
		return 0, fmt.Errorf("get assignment count: %w", err)
	}
	return count, nil
}

// GetCategoryCount returns the persisted per-category assignment count.
func (s *Store) GetCategoryCount(ctx context.Context, domain, date, category string) (int, error) {
	const query = `
SELECT COALESCE(SUM(assigned), 0)
FROM assignment_counters
WHERE domain = $1 AND assign_date = $2 AND category = $3`
	var count int
	if err := s.pool.QueryRow(ctx, query, domain, date, category).Scan(&count); err != nil {
		return 0, fmt.Errorf("get category count: %w", err)
	}
	return count, nil
}

// Increment bumps the persisted counter row for (domain, date, category).
func (s *Store) Increment(ctx context.Context, domain, date, category string) error {
	const query = `
INSERT INTO assignment_counters (domain, assign_date, category, assigned)
VALUES ($1, $2, $3, 1)
ON CONFLICT (domain, assign_date, category)
DO UPDATE SET assigned = assignment_counters.assigned + 1`
	if _, err := s.pool.Exec(ctx, query, domain, date, category); err != nil {
		return fmt.Errorf("increment assignment counter: %w", err)
	}
	return nil
}

func scanArticles(rows pgx.Rows) ([]rewrite.Article, error) {
	var articles []rewrite.Article
	for rows.Next() {
		var a rewrite.Article
		if err := rows.Scan(&a.ID, &a.Title, &a.Body, &a.Category, &a.PublishedAt); err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read articles: %w", err)
	}
	return articles, nil
}
