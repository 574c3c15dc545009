// Package main wires together the rewriter service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/presswire/rewriter/internal/allocator"
	"github.com/presswire/rewriter/internal/api"
	"github.com/presswire/rewriter/internal/clock/system"
	"github.com/presswire/rewriter/internal/config"
	"github.com/presswire/rewriter/internal/hash/sha256"
	"github.com/presswire/rewriter/internal/id/uuid"
	"github.com/presswire/rewriter/internal/llm"
	"github.com/presswire/rewriter/internal/logging"
	"github.com/presswire/rewriter/internal/metrics"
	"github.com/presswire/rewriter/internal/rewrite"
	"github.com/presswire/rewriter/internal/worker"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.Init()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("rewriter exited with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	clock := system.New()
	idGen := uuid.New()
	hasher := sha256.New()

	deps, cleanup, err := buildProviders(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	taskStore := rewrite.NewStore(clock)

	generator := llm.New(llm.Config{
		Endpoint:    cfg.LLM.Endpoint,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		TopP:        cfg.LLM.TopP,
		Timeout:     cfg.LLMTimeout(),
		MaxRetries:  cfg.LLM.MaxRetries,
		RetryDelay:  cfg.RetryDelay(),
	}, nil)

	policy, err := worker.WindowPolicy(cfg.Rewrite.OffpeakStart, cfg.Rewrite.OffpeakEnd, cfg.Rewrite.BurstSize)
	if err != nil {
		return fmt.Errorf("build dispatch policy: %w", err)
	}

	pool := worker.New(
		taskStore,
		deps.source,
		deps.sink,
		generator,
		deps.publisher,
		deps.archive,
		hasher,
		clock,
		idGen,
		policy,
		worker.Config{
			TickInterval:  cfg.TickInterval(),
			MinScore:      cfg.Rewrite.MinScore,
			FeedBatch:     cfg.Rewrite.FeedBatch,
			StuckTimeout:  cfg.StuckTimeout(),
			Topic:         cfg.PubSub.TopicName,
			ArchivePrefix: cfg.Archive.Prefix,
		},
		logger.Named("worker"),
	)

	alloc := allocator.New(
		deps.quotas,
		deps.counters,
		deps.source,
		deps.publisher,
		clock,
		allocator.Config{
			CycleInterval: cfg.CycleInterval(),
			BatchSize:     cfg.Allocator.BatchSize,
			TieEpsilon:    cfg.Allocator.TieEpsilon,
			Topic:         cfg.PubSub.TopicName,
		},
		logger.Named("allocator"),
	)

	apiServer := api.NewServer(taskStore, deps.intake, idGen, clock, deps.ready, cfg, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("allocator started")
		alloc.Run(ctx)
	}()
	go func() {
		logger.Info("worker pool started")
		pool.Run(ctx)
	}()
	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
