// Package worker implements the rewrite pipeline execution loop.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/presswire/rewriter/internal/llm"
	"github.com/presswire/rewriter/internal/metrics"
	"github.com/presswire/rewriter/internal/rewrite"
)

// errQualityRejected marks a rewrite the originality gate turned down.
// These articles are terminally rejected at the source, not retried.
var errQualityRejected = errors.New("rejected by quality gate")

// Config controls Pool behavior.
type Config struct {
	TickInterval       time.Duration
	MinScore           int
	FeedBatch          int
	StuckTimeout       time.Duration
	Topic              string
	ArchivePrefix      string
	ArchiveContentType string
}

// Pool claims pending rewrite tasks on a periodic tick and processes
// each one on its own goroutine. The number of tasks dispatched per
// tick comes from the injected DispatchPolicy.
type Pool struct {
	store     *rewrite.Store
	source    rewrite.ArticleSource
	sink      rewrite.ContentSink
	generator rewrite.TextGenerator
	publisher rewrite.Publisher
	archive   rewrite.BlobStore
	hasher    rewrite.Hasher
	clock     rewrite.Clock
	idGen     rewrite.IDGenerator
	policy    DispatchPolicy
	cfg       Config
	logger    *zap.Logger

	wg sync.WaitGroup
}

// New constructs a Pool.
func New(
	store *rewrite.Store,
	source rewrite.ArticleSource,
	sink rewrite.ContentSink,
	generator rewrite.TextGenerator,
	publisher rewrite.Publisher,
	archive rewrite.BlobStore,
	hasher rewrite.Hasher,
	clock rewrite.Clock,
	idGen rewrite.IDGenerator,
	policy DispatchPolicy,
	cfg Config,
	logger *zap.Logger,
) *Pool {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 30 * time.Second
	}
	if cfg.FeedBatch <= 0 {
		cfg.FeedBatch = 24
	}
	if cfg.StuckTimeout <= 0 {
		cfg.StuckTimeout = 45 * time.Minute
	}
	if cfg.ArchiveContentType == "" {
		cfg.ArchiveContentType = "text/plain; charset=utf-8"
	}
	if cfg.ArchivePrefix == "" {
		cfg.ArchivePrefix = "sources"
	}
	if policy == nil {
		policy = func(time.Time) int { return 1 }
	}
	return &Pool{
		store:     store,
		source:    source,
		sink:      sink,
		generator: generator,
		publisher: publisher,
		archive:   archive,
		hasher:    hasher,
		clock:     clock,
		idGen:     idGen,
		policy:    policy,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run blocks, ticking until the context finishes. In-flight tasks are
// allowed to drain before Run returns.
func (p *Pool) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.wg.Wait()
			return
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Tick performs one scheduler pass: feed intake, stale sweep, dispatch.
// Exported so tests and the API can drive the pool without wall-clock
// waits.
func (p *Pool) Tick(ctx context.Context) {
	p.intake(ctx)
	p.sweep()
	p.dispatch(ctx)
}

// intake pulls assigned articles awaiting rewrite into the task store.
func (p *Pool) intake(ctx context.Context) {
	articles, err := p.source.ListAssignedPending(ctx, p.cfg.FeedBatch)
	if err != nil {
		p.logger.Error("article feed pull failed", zap.Error(err))
		return
	}
	for _, article := range articles {
		id, err := p.idGen.NewID()
		if err != nil {
			p.logger.Error("task id generation failed", zap.Error(err))
			continue
		}
		added := p.store.Add(rewrite.Task{
			ID:        id,
			ArticleID: article.ID,
			Title:     article.Title,
			Body:      article.Body,
			Category:  article.Category,
		})
		if added {
			p.logger.Debug("task enqueued",
				zap.String("task_id", id),
				zap.String("article_id", article.ID),
			)
		}
	}
}

// sweep force-fails tasks stuck in processing and evicts failed tasks
// past the retention window.
func (p *Pool) sweep() {
	for _, task := range p.store.StaleProcessing(p.cfg.StuckTimeout) {
		if p.store.Fail(task.ID, "processing exceeded global timeout") {
			p.logger.Warn("stuck task force-failed",
				zap.String("task_id", task.ID),
				zap.String("article_id", task.ArticleID),
			)
			metrics.ObserveTask("stuck", p.clock.Now().Sub(task.CreatedAt))
		}
	}
	for _, task := range p.store.List() {
		if task.Status == rewrite.TaskStatusFailed &&
			p.clock.Now().Sub(task.UpdatedAt) > p.cfg.StuckTimeout {
			p.store.Remove(task.ID)
		}
	}
}

func (p *Pool) dispatch(ctx context.Context) {
	budget := p.policy(p.clock.Now())
	for _, pending := range p.store.Pending(budget) {
		task, ok := p.store.Claim(pending.ID)
		if !ok {
			// Lost the claim race; the winner owns the task.
			p.logger.Debug("task already claimed", zap.String("task_id", pending.ID))
			continue
		}
		p.wg.Add(1)
		go func(task rewrite.Task) {
			defer p.wg.Done()
			p.process(ctx, task)
		}(task)
	}
}

func (p *Pool) process(ctx context.Context, task rewrite.Task) {
	metrics.IncActiveRewrites()
	defer metrics.DecActiveRewrites()
	start := p.clock.Now()

	p.archiveSource(ctx, task)

	result, err := p.runRewrite(ctx, task)
	if err != nil {
		if errors.Is(err, errQualityRejected) {
			p.rejectArticle(ctx, task)
		}
		p.failTask(task, start, err)
		return
	}

	if err := p.consumeResult(ctx, task, result); err != nil {
		p.failTask(task, start, err)
		return
	}

	if !p.store.Complete(task.ID, result) {
		p.logger.Warn("task no longer processing at completion", zap.String("task_id", task.ID))
		return
	}

	metrics.ObserveTask("completed", p.clock.Now().Sub(start))
	metrics.ObserveScore(result.Score)
	p.store.Remove(task.ID)
	p.logger.Info("rewrite completed",
		zap.String("task_id", task.ID),
		zap.String("article_id", task.ArticleID),
		zap.Int("score", result.Score),
	)
}

// runRewrite executes the title and body generation calls and scores
// the result against the source body.
func (p *Pool) runRewrite(ctx context.Context, task rewrite.Task) (rewrite.TaskResult, error) {
	title, err := p.generator.Generate(ctx, llm.TitlePrompt(task.Title))
	if err != nil {
		return rewrite.TaskResult{}, fmt.Errorf("rewrite title: %w", err)
	}
	body, err := p.generator.Generate(ctx, llm.BodyPrompt(task.Body))
	if err != nil {
		return rewrite.TaskResult{}, fmt.Errorf("rewrite body: %w", err)
	}

	result := rewrite.TaskResult{
		Title: rewrite.NormalizeWhitespace(title),
		Body:  rewrite.NormalizeWhitespace(body),
	}
	result.Score = rewrite.Score(task.Body, result.Body)
	if result.Score == 0 {
		return rewrite.TaskResult{}, fmt.Errorf("%w: originality score uncomputable", errQualityRejected)
	}
	if result.Score < p.cfg.MinScore {
		return rewrite.TaskResult{}, fmt.Errorf("%w: originality score %d below threshold %d", errQualityRejected, result.Score, p.cfg.MinScore)
	}
	return result, nil
}

// rejectArticle records a quality rejection at the source so the next
// feed pull cannot resurrect the article after its task is evicted.
func (p *Pool) rejectArticle(ctx context.Context, task rewrite.Task) {
	if err := p.source.MarkRejected(ctx, task.ArticleID); err != nil {
		p.logger.Error("mark article rejected failed",
			zap.String("task_id", task.ID),
			zap.String("article_id", task.ArticleID),
			zap.Error(err),
		)
	}
}

// consumeResult persists and publishes a completed rewrite.
func (p *Pool) consumeResult(ctx context.Context, task rewrite.Task, result rewrite.TaskResult) error {
	completed := rewrite.CompletedArticle{
		SourceArticleID:  task.ArticleID,
		Title:            result.Title,
		Body:             result.Body,
		Category:         task.Category,
		OriginalityScore: result.Score,
		CompletedAt:      p.clock.Now(),
	}
	if err := p.sink.SaveCompleted(ctx, completed); err != nil {
		return fmt.Errorf("persist completed article: %w", err)
	}
	if err := p.source.MarkRewritten(ctx, task.ArticleID); err != nil {
		return fmt.Errorf("mark article rewritten: %w", err)
	}
	if p.publisher != nil && p.cfg.Topic != "" {
		payload := map[string]any{
			"source_article_id": task.ArticleID,
			"title":             result.Title,
			"originality_score": result.Score,
			"status":            string(rewrite.TaskStatusCompleted),
			"timestamp":         p.clock.Now().Format(time.RFC3339),
		}
		if _, err := p.publisher.Publish(ctx, p.cfg.Topic, payload); err != nil {
			return fmt.Errorf("publish completion: %w", err)
		}
	}
	return nil
}

// archiveSource snapshots the source body before rewriting, best effort.
func (p *Pool) archiveSource(ctx context.Context, task rewrite.Task) {
	if p.archive == nil || p.hasher == nil {
		return
	}
	data := []byte(task.Title + "\n\n" + task.Body)
	hash, err := p.hasher.Hash(data)
	if err != nil {
		p.logger.Warn("source hash failed", zap.String("task_id", task.ID), zap.Error(err))
		return
	}
	path := fmt.Sprintf("%s/%s/%s.txt", p.cfg.ArchivePrefix, task.ArticleID, hash)
	if _, err := p.archive.PutObject(ctx, path, p.cfg.ArchiveContentType, data); err != nil {
		p.logger.Warn("source archive failed", zap.String("task_id", task.ID), zap.Error(err))
	}
}

func (p *Pool) failTask(task rewrite.Task, start time.Time, cause error) {
	if p.store.Fail(task.ID, cause.Error()) {
		metrics.ObserveTask("failed", p.clock.Now().Sub(start))
		p.logger.Error("rewrite failed",
			zap.String("task_id", task.ID),
			zap.String("article_id", task.ArticleID),
			zap.Error(cause),
		)
	}
}
