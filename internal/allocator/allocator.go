package allocator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/presswire/rewriter/internal/metrics"
	"github.com/presswire/rewriter/internal/rewrite"
)

// Config controls Allocator behavior.
type Config struct {
	CycleInterval time.Duration
	BatchSize     int
	TieEpsilon    float64
	Topic         string
}

// Allocator distributes unassigned articles across output domains.
// Groups (one per date+category) may be processed concurrently, but
// the select-and-increment step is a single critical section so two
// goroutines can never double-assign against one quota.
type Allocator struct {
	quotas    rewrite.QuotaStore
	counters  rewrite.CounterStore
	source    rewrite.ArticleSource
	publisher rewrite.Publisher
	clock     rewrite.Clock
	cache     *Cache
	cfg       Config
	logger    *zap.Logger

	mu sync.Mutex
}

// New constructs an Allocator.
func New(
	quotas rewrite.QuotaStore,
	counters rewrite.CounterStore,
	source rewrite.ArticleSource,
	publisher rewrite.Publisher,
	clock rewrite.Clock,
	cfg Config,
	logger *zap.Logger,
) *Allocator {
	if cfg.CycleInterval <= 0 {
		cfg.CycleInterval = 5 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}
	if cfg.TieEpsilon <= 0 {
		cfg.TieEpsilon = 0.1
	}
	return &Allocator{
		quotas:    quotas,
		counters:  counters,
		source:    source,
		publisher: publisher,
		clock:     clock,
		cache:     NewCache(),
		cfg:       cfg,
		logger:    logger,
	}
}

// Run blocks, executing allocation cycles until the context finishes.
func (a *Allocator) Run(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.CycleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.Cycle(ctx); err != nil {
				a.logger.Error("allocation cycle failed", zap.Error(err))
			}
		}
	}
}

type group struct {
	date     string
	category string
	articles []rewrite.Article
}

// Cycle allocates one batch of unassigned articles. A group hitting
// quota exhaustion is not an error; its remaining articles wait for
// the next cycle.
func (a *Allocator) Cycle(ctx context.Context) error {
	quotas, err := a.quotas.ListEnabled(ctx)
	if err != nil {
		return fmt.Errorf("list enabled quotas: %w", err)
	}
	if len(quotas) == 0 {
		return nil
	}

	articles, err := a.source.ListUnassigned(ctx, a.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("list unassigned articles: %w", err)
	}
	if len(articles) == 0 {
		return nil
	}

	var wg sync.WaitGroup
	for _, g := range groupArticles(articles) {
		wg.Add(1)
		go func(g group) {
			defer wg.Done()
			a.allocateGroup(ctx, quotas, g)
		}(g)
	}
	wg.Wait()
	return nil
}

// groupArticles buckets by (deploy date, category), preserving intake
// order within a group.
func groupArticles(articles []rewrite.Article) []group {
	index := make(map[string]int)
	var groups []group
	for _, article := range articles {
		date := article.PublishedAt.Format("2006-01-02")
		key := date + "|" + article.Category
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, group{date: date, category: article.Category})
		}
		groups[i].articles = append(groups[i].articles, article)
	}
	return groups
}

func (a *Allocator) allocateGroup(ctx context.Context, quotas []rewrite.DomainQuota, g group) {
	for i, article := range g.articles {
		domain, ok := a.selectAndIncrement(ctx, quotas, g.date, g.category)
		if !ok {
			// Every domain is at its daily limit; the rest of the
			// group stays unassigned for a later cycle.
			for range g.articles[i:] {
				metrics.ObserveAllocationSkipped()
			}
			a.logger.Info("no eligible domain for group",
				zap.String("date", g.date),
				zap.String("category", g.category),
				zap.Int("deferred", len(g.articles)-i),
			)
			return
		}

		assignment := rewrite.Assignment{
			ArticleID: article.ID,
			Domain:    domain,
			Date:      g.date,
			Category:  g.category,
		}
		if err := a.source.MarkAssigned(ctx, assignment); err != nil {
			// The counter already moved; it must never be decremented.
			// The article stays unassigned and the slot is lost for
			// today, which keeps the quota invariant intact.
			a.logger.Error("mark assigned failed",
				zap.String("article_id", article.ID),
				zap.String("domain", domain),
				zap.Error(err),
			)
			continue
		}
		metrics.ObserveAssignment(domain)
		a.publishAssignment(ctx, assignment)
	}
}

// selectAndIncrement performs the rank-and-pick plus counter update as
// one atomic unit.
func (a *Allocator) selectAndIncrement(ctx context.Context, quotas []rewrite.DomainQuota, date, category string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.refresh(ctx, quotas, date, category)

	states := make([]domainState, 0, len(quotas))
	for _, quota := range quotas {
		states = append(states, domainState{
			Quota:            quota,
			Assigned:         a.cache.Total(quota.Domain, date),
			CategoryAssigned: a.cache.Category(quota.Domain, date, category),
		})
	}
	best, ok := pick(states, a.cfg.TieEpsilon)
	if !ok {
		return "", false
	}

	domain := best.Quota.Domain
	a.cache.Increment(domain, date, category)
	if err := a.counters.Increment(ctx, domain, date, category); err != nil {
		// Cache stays ahead of storage; the next refresh cannot shrink
		// it, so the quota invariant still holds.
		a.logger.Error("persist counter increment failed",
			zap.String("domain", domain),
			zap.Error(err),
		)
	}
	return domain, true
}

// refresh re-syncs cached counts from persisted truth. Persisted counts
// only win when they are larger.
func (a *Allocator) refresh(ctx context.Context, quotas []rewrite.DomainQuota, date, category string) {
	for _, quota := range quotas {
		total, err := a.counters.GetCount(ctx, quota.Domain, date)
		if err != nil {
			a.logger.Warn("counter read failed", zap.String("domain", quota.Domain), zap.Error(err))
			continue
		}
		a.cache.RefreshTotal(quota.Domain, date, total)

		catCount, err := a.counters.GetCategoryCount(ctx, quota.Domain, date, category)
		if err != nil {
			a.logger.Warn("category counter read failed", zap.String("domain", quota.Domain), zap.Error(err))
			continue
		}
		a.cache.RefreshCategory(quota.Domain, date, category, catCount)
	}
}

func (a *Allocator) publishAssignment(ctx context.Context, assignment rewrite.Assignment) {
	if a.publisher == nil || a.cfg.Topic == "" {
		return
	}
	payload := map[string]any{
		"article_id": assignment.ArticleID,
		"domain":     assignment.Domain,
		"date":       assignment.Date,
		"category":   assignment.Category,
		"timestamp":  a.clock.Now().Format(time.RFC3339),
	}
	if _, err := a.publisher.Publish(ctx, a.cfg.Topic, payload); err != nil {
		a.logger.Warn("publish assignment failed",
			zap.String("article_id", assignment.ArticleID),
			zap.Error(err),
		)
	}
}
