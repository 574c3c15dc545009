package rewrite

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
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

func newTestStore() (*Store, *fakeClock) {
	clk := &fakeClock{now: time.Unix(1000, 0).UTC()}
	return NewStore(clk), clk
}

func TestStoreAddAndGet(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore()
	require.True(t, store.Add(Task{ID: "t1", ArticleID: "a1", Title: "标题"}))
	require.False(t, store.Add(Task{ID: "t1"}), "re-adding the same ID must be a no-op")

	task, ok := store.Get("t1")
	require.True(t, ok)
	require.Equal(t, TaskStatusPending, task.Status)
	require.Equal(t, "a1", task.ArticleID)
	require.Equal(t, 1, store.Len())
}

func TestStoreClaimIsExclusive(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore()
	store.Add(Task{ID: "t1"})

	const workers = 32
	var wg sync.WaitGroup
	wins := make(chan struct{}, workers)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, ok := store.Claim("t1"); ok {
				wins <- struct{}{}
			}
		}()
	}
	close(start)
	wg.Wait()
	close(wins)

	count := 0
	for range wins {
		count++
	}
	require.Equal(t, 1, count, "exactly one claimant may win")

	task, _ := store.Get("t1")
	require.Equal(t, TaskStatusProcessing, task.Status)
}

func TestStoreClaimMissingOrNonPending(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore()
	_, ok := store.Claim("absent")
	require.False(t, ok)

	store.Add(Task{ID: "t1"})
	_, ok = store.Claim("t1")
	require.True(t, ok)
	require.True(t, store.Complete("t1", TaskResult{Title: "新标题", Body: "新内容", Score: 72}))

	_, ok = store.Claim("t1")
	require.False(t, ok, "terminal tasks cannot be reclaimed")
}

func TestStoreCompleteRequiresProcessing(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore()
	store.Add(Task{ID: "t1"})
	require.False(t, store.Complete("t1", TaskResult{}), "pending task cannot complete without a claim")

	store.Claim("t1")
	require.True(t, store.Complete("t1", TaskResult{Score: 88}))
	task, _ := store.Get("t1")
	require.Equal(t, TaskStatusCompleted, task.Status)
	require.Equal(t, 88, task.Result.Score)
}

func TestStoreFailRecordsError(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore()
	store.Add(Task{ID: "t1"})
	store.Claim("t1")
	require.True(t, store.Fail("t1", "generation retries exhausted"))

	task, _ := store.Get("t1")
	require.Equal(t, TaskStatusFailed, task.Status)
	require.Equal(t, "generation retries exhausted", task.ErrorText)

	require.False(t, store.Fail("t1", "again"), "terminal task cannot be failed twice")
}

func TestStorePendingOrderAndLimit(t *testing.T) {
	t.Parallel()

	store, clk := newTestStore()
	store.Add(Task{ID: "t1"})
	clk.Advance(time.Second)
	store.Add(Task{ID: "t2"})
	clk.Advance(time.Second)
	store.Add(Task{ID: "t3"})
	store.Claim("t2")

	pending := store.Pending(10)
	require.Len(t, pending, 2)
	require.Equal(t, "t1", pending[0].ID)
	require.Equal(t, "t3", pending[1].ID)

	require.Len(t, store.Pending(1), 1)
}

func TestStoreStaleProcessing(t *testing.T) {
	t.Parallel()

	store, clk := newTestStore()
	store.Add(Task{ID: "t1"})
	store.Add(Task{ID: "t2"})
	store.Claim("t1")
	clk.Advance(10 * time.Minute)
	store.Claim("t2")
	clk.Advance(2 * time.Minute)

	stale := store.StaleProcessing(5 * time.Minute)
	require.Len(t, stale, 1)
	require.Equal(t, "t1", stale[0].ID)
}

func TestStoreRemove(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore()
	store.Add(Task{ID: "t1"})
	store.Remove("t1")
	_, ok := store.Get("t1")
	require.False(t, ok)
	require.Zero(t, store.Len())
}

func TestStoreAddDedupesLiveArticle(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore()
	require.True(t, store.Add(Task{ID: "t1", ArticleID: "a1"}))
	require.False(t, store.Add(Task{ID: "t2", ArticleID: "a1"}),
		"an article with a live task must not get a second one")
	require.Equal(t, 1, store.Len())

	// Still deduped while the task is in flight or terminal.
	store.Claim("t1")
	require.False(t, store.Add(Task{ID: "t3", ArticleID: "a1"}))
	store.Fail("t1", "boom")
	require.False(t, store.Add(Task{ID: "t4", ArticleID: "a1"}))

	// Eviction releases the article.
	store.Remove("t1")
	require.True(t, store.Add(Task{ID: "t5", ArticleID: "a1"}))
}
