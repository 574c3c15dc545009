package allocator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/presswire/rewriter/internal/metrics"
	"github.com/presswire/rewriter/internal/rewrite"
	"github.com/presswire/rewriter/internal/storage/memory"
)

type staticClock struct{ now time.Time }

func (c staticClock) Now() time.Time { return c.now }

type capturePublisher struct {
	mu       sync.Mutex
	payloads []any
}

func (p *capturePublisher) Publish(_ context.Context, _ string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payloads = append(p.payloads, payload)
	return fmt.Sprintf("msg-%d", len(p.payloads)), nil
}

var deployDay = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestAllocator(
	t *testing.T,
	quotas []rewrite.DomainQuota,
	articles []rewrite.Article,
) (*Allocator, *memory.ArticleStore, *memory.CounterStore) {
	t.Helper()
	metrics.Init()

	quotaStore := memory.NewQuotaStore(quotas)
	counterStore := memory.NewCounterStore()
	articleStore := memory.NewArticleStore()
	for _, article := range articles {
		require.NoError(t, articleStore.AddArticle(context.Background(), article))
	}

	alloc := New(
		quotaStore,
		counterStore,
		articleStore,
		&capturePublisher{},
		staticClock{now: deployDay},
		Config{Topic: "assignments"},
		zap.NewNop(),
	)
	return alloc, articleStore, counterStore
}

func articlesFor(category string, n int) []rewrite.Article {
	out := make([]rewrite.Article, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, rewrite.Article{
			ID:          fmt.Sprintf("%s-%d", category, i),
			Category:    category,
			PublishedAt: deployDay,
		})
	}
	return out
}

func TestCycle_QuotaInvariant(t *testing.T) {
	t.Parallel()

	quotas := []rewrite.DomainQuota{
		{Domain: "d1", DailyLimit: 3, Enabled: true},
		{Domain: "d2", DailyLimit: 2, Enabled: true},
	}
	alloc, articles, counters := newTestAllocator(t, quotas, articlesFor("tech", 10))

	require.NoError(t, alloc.Cycle(context.Background()))

	date := deployDay.Format("2006-01-02")
	d1, _ := counters.GetCount(context.Background(), "d1", date)
	d2, _ := counters.GetCount(context.Background(), "d2", date)
	require.LessOrEqual(t, d1, 3)
	require.LessOrEqual(t, d2, 2)
	require.Equal(t, 5, d1+d2, "all five slots get used before exhaustion")

	unassigned, err := articles.ListUnassigned(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, unassigned, 5, "overflow stays unassigned for the next cycle")
}

func TestCycle_BalancesByUtilization(t *testing.T) {
	t.Parallel()

	quotas := []rewrite.DomainQuota{
		{Domain: "d1", DailyLimit: 2, Enabled: true},
		{Domain: "d2", DailyLimit: 2, Enabled: true},
	}
	alloc, articles, _ := newTestAllocator(t, quotas, articlesFor("tech", 4))

	require.NoError(t, alloc.Cycle(context.Background()))

	byDomain := map[string]int{}
	for i := 0; i < 4; i++ {
		domain, ok := articles.AssignedDomain(fmt.Sprintf("tech-%d", i))
		require.True(t, ok)
		byDomain[domain]++
	}
	require.Equal(t, 2, byDomain["d1"], "re-ranking after each pick balances domains")
	require.Equal(t, 2, byDomain["d2"])
}

func TestCycle_FullDomainNeverSelected(t *testing.T) {
	t.Parallel()

	quotas := []rewrite.DomainQuota{
		{Domain: "full", DailyLimit: 50, Enabled: true},
		{Domain: "open", DailyLimit: 100, Enabled: true},
	}
	alloc, articles, counters := newTestAllocator(t, quotas, articlesFor("tech", 3))

	date := deployDay.Format("2006-01-02")
	counters.Seed("full", date, "tech", 50, 0)
	counters.Seed("open", date, "tech", 90, 90)

	require.NoError(t, alloc.Cycle(context.Background()))

	for i := 0; i < 3; i++ {
		domain, ok := articles.AssignedDomain(fmt.Sprintf("tech-%d", i))
		require.True(t, ok)
		require.Equal(t, "open", domain, "a domain at its limit is ineligible regardless of ratios")
	}
}

func TestCycle_ExhaustionIsNotAnError(t *testing.T) {
	t.Parallel()

	quotas := []rewrite.DomainQuota{{Domain: "d1", DailyLimit: 1, Enabled: true}}
	alloc, articles, _ := newTestAllocator(t, quotas, articlesFor("tech", 3))

	require.NoError(t, alloc.Cycle(context.Background()))

	unassigned, err := articles.ListUnassigned(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, unassigned, 2)
}

func TestCycle_RefreshAdoptsPersistedCounts(t *testing.T) {
	t.Parallel()

	quotas := []rewrite.DomainQuota{
		{Domain: "d1", DailyLimit: 10, Enabled: true},
		{Domain: "d2", DailyLimit: 10, Enabled: true},
	}
	alloc, articles, counters := newTestAllocator(t, quotas, articlesFor("tech", 1))

	// Another process already filled most of d1; the stale cache (zero)
	// must be re-synced from storage before ranking.
	date := deployDay.Format("2006-01-02")
	counters.Seed("d1", date, "tech", 9, 9)

	require.NoError(t, alloc.Cycle(context.Background()))

	domain, ok := articles.AssignedDomain("tech-0")
	require.True(t, ok)
	require.Equal(t, "d2", domain)
}

func TestCycle_GroupsAllocateIndependently(t *testing.T) {
	t.Parallel()

	quotas := []rewrite.DomainQuota{{Domain: "d1", DailyLimit: 10, Enabled: true}}
	batch := append(articlesFor("tech", 2), articlesFor("sports", 2)...)
	alloc, _, counters := newTestAllocator(t, quotas, batch)

	require.NoError(t, alloc.Cycle(context.Background()))

	date := deployDay.Format("2006-01-02")
	total, _ := counters.GetCount(context.Background(), "d1", date)
	tech, _ := counters.GetCategoryCount(context.Background(), "d1", date, "tech")
	sports, _ := counters.GetCategoryCount(context.Background(), "d1", date, "sports")
	require.Equal(t, 4, total)
	require.Equal(t, 2, tech)
	require.Equal(t, 2, sports)
}

func TestCycle_NoQuotasOrArticles(t *testing.T) {
	t.Parallel()

	alloc, _, _ := newTestAllocator(t, nil, articlesFor("tech", 2))
	require.NoError(t, alloc.Cycle(context.Background()))

	alloc2, _, _ := newTestAllocator(t, []rewrite.DomainQuota{{Domain: "d1", DailyLimit: 5, Enabled: true}}, nil)
	require.NoError(t, alloc2.Cycle(context.Background()))
}

func TestPick_TieBreakOnCategoryRatio(t *testing.T) {
	t.Parallel()

	// Overall ratios 0.50 vs 0.55 differ by ≤ 0.1, so the category
	// ratios (0.10 vs 0.30) decide the pick.
	states := []domainState{
		{Quota: rewrite.DomainQuota{Domain: "b", DailyLimit: 100}, Assigned: 55, CategoryAssigned: 17},
		{Quota: rewrite.DomainQuota{Domain: "a", DailyLimit: 100}, Assigned: 50, CategoryAssigned: 5},
	}
	best, ok := pick(states, 0.1)
	require.True(t, ok)
	require.Equal(t, "a", best.Quota.Domain)
}

func TestPick_PrimaryRatioOrdering(t *testing.T) {
	t.Parallel()

	states := []domainState{
		{Quota: rewrite.DomainQuota{Domain: "busy", DailyLimit: 100}, Assigned: 80},
		{Quota: rewrite.DomainQuota{Domain: "idle", DailyLimit: 100}, Assigned: 10},
	}
	best, ok := pick(states, 0.1)
	require.True(t, ok)
	require.Equal(t, "idle", best.Quota.Domain)
}

func TestPick_ExcludesFullAndZeroLimit(t *testing.T) {
	t.Parallel()

	states := []domainState{
		{Quota: rewrite.DomainQuota{Domain: "full", DailyLimit: 5}, Assigned: 5},
		{Quota: rewrite.DomainQuota{Domain: "zero", DailyLimit: 0}, Assigned: 0},
		{Quota: rewrite.DomainQuota{Domain: "open", DailyLimit: 5}, Assigned: 4},
	}
	best, ok := pick(states, 0.1)
	require.True(t, ok)
	require.Equal(t, "open", best.Quota.Domain)

	_, ok = pick(states[:2], 0.1)
	require.False(t, ok, "no eligible domain must yield no pick")
}

func TestPick_FreshDomainCategoryRatioZero(t *testing.T) {
	t.Parallel()

	// Both at ratio ~0: the domain with no assignments has category
	// ratio 0 and wins the tie-break against one already carrying the
	// category.
	states := []domainState{
		{Quota: rewrite.DomainQuota{Domain: "seasoned", DailyLimit: 100}, Assigned: 2, CategoryAssigned: 2},
		{Quota: rewrite.DomainQuota{Domain: "fresh", DailyLimit: 100}, Assigned: 0, CategoryAssigned: 0},
	}
	best, ok := pick(states, 0.1)
	require.True(t, ok)
	require.Equal(t, "fresh", best.Quota.Domain)
}

func TestSelectAndIncrement_ConcurrentGroupsRespectQuota(t *testing.T) {
	t.Parallel()

	quotas := []rewrite.DomainQuota{{Domain: "d1", DailyLimit: 10, Enabled: true}}
	alloc, _, counters := newTestAllocator(t, quotas, nil)

	var wg sync.WaitGroup
	wins := make(chan string, 40)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			category := "tech"
			if i%2 == 0 {
				category = "sports"
			}
			if domain, ok := alloc.selectAndIncrement(context.Background(), quotas, "2026-03-01", category); ok {
				wins <- domain
			}
		}(i)
	}
	wg.Wait()
	close(wins)

	count := 0
	for range wins {
		count++
	}
	require.Equal(t, 10, count, "selection stops exactly at the daily limit")

	total, _ := counters.GetCount(context.Background(), "d1", "2026-03-01")
	require.Equal(t, 10, total)
}
