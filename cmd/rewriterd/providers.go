package main

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/presswire/rewriter/internal/api"
	"github.com/presswire/rewriter/internal/config"
	memorypublisher "github.com/presswire/rewriter/internal/publisher/memory"
	pubsubpublisher "github.com/presswire/rewriter/internal/publisher/pubsub"
	"github.com/presswire/rewriter/internal/rewrite"
	"github.com/presswire/rewriter/internal/storage/gcs"
	memorystorage "github.com/presswire/rewriter/internal/storage/memory"
	"github.com/presswire/rewriter/internal/storage/postgres"
)

// providers bundles the backend implementations selected by config.
type providers struct {
	source    rewrite.ArticleSource
	intake    rewrite.ArticleIntake
	sink      rewrite.ContentSink
	quotas    rewrite.QuotaStore
	counters  rewrite.CounterStore
	publisher rewrite.Publisher
	archive   rewrite.BlobStore
	ready     api.ReadyChecker
}

// buildProviders constructs storage, archive and publisher backends.
// The returned cleanup releases every acquired resource and is safe to
// call even when construction only partially succeeded.
func buildProviders(ctx context.Context, cfg config.Config, logger *zap.Logger) (providers, func(), error) {
	var deps providers
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	switch cfg.Storage.Provider {
	case "postgres":
		store, err := postgres.New(ctx, postgres.Config{DSN: cfg.DB.DSN})
		if err != nil {
			return providers{}, cleanup, fmt.Errorf("build postgres store: %w", err)
		}
		cleanups = append(cleanups, store.Close)
		deps.source = store
		deps.intake = store
		deps.sink = store
		deps.quotas = store
		deps.counters = store
		deps.ready = store.Ping
	default:
		articles := memorystorage.NewArticleStore()
		deps.source = articles
		deps.intake = articles
		deps.sink = memorystorage.NewContentStore()
		deps.quotas = memorystorage.NewQuotaStore(nil)
		deps.counters = memorystorage.NewCounterStore()
	}

	if cfg.Archive.Provider == "gcs" {
		client, err := storage.NewClient(ctx)
		if err != nil {
			cleanup()
			return providers{}, func() {}, fmt.Errorf("build gcs client: %w", err)
		}
		cleanups = append(cleanups, func() {
			if err := client.Close(); err != nil {
				logger.Warn("gcs client close failed", zap.Error(err))
			}
		})
		archive, err := gcs.New(client, gcs.Config{Bucket: cfg.Archive.GCSBucket})
		if err != nil {
			cleanup()
			return providers{}, func() {}, fmt.Errorf("build gcs archive: %w", err)
		}
		deps.archive = archive
	}

	if cfg.PubSub.ProjectID != "" {
		client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			cleanup()
			return providers{}, func() {}, fmt.Errorf("build pubsub client: %w", err)
		}
		pub, err := pubsubpublisher.New(client)
		if err != nil {
			cleanup()
			return providers{}, func() {}, fmt.Errorf("build pubsub publisher: %w", err)
		}
		cleanups = append(cleanups, func() {
			pub.Stop()
			if err := client.Close(); err != nil {
				logger.Warn("pubsub client close failed", zap.Error(err))
			}
		})
		deps.publisher = pub
	} else {
		deps.publisher = memorypublisher.New()
	}

	return deps, cleanup, nil
}
