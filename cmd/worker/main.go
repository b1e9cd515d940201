// Command worker consumes evaluation tasks and drives the engine.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/hireval/internal/adapter/llm"
	"github.com/fairyhunter13/hireval/internal/adapter/observability"
	"github.com/fairyhunter13/hireval/internal/adapter/queue/redpanda"
	"github.com/fairyhunter13/hireval/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/hireval/internal/adapter/vector/qdrant"
	"github.com/fairyhunter13/hireval/internal/config"
	"github.com/fairyhunter13/hireval/internal/engine"
	"github.com/fairyhunter13/hireval/internal/index"
	"github.com/fairyhunter13/hireval/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	slog.SetDefault(observability.SetupLogger(cfg))
	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("tracing setup failed", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("db connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	jobs := postgres.NewJobRepo(pool)
	docs := postgres.NewDocumentRepo(pool)

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("redis url invalid", slog.Any("error", err))
			os.Exit(1)
		}
		rdb = redis.NewClient(opts)
	}

	aiClient := llm.New(cfg, llm.NewThrottle(rdb, cfg.LLMRatePerMin))
	qcli := qdrant.New(cfg.QdrantURL, cfg.QdrantAPIKey, cfg.RetrievalTimeout)
	retriever := index.New(aiClient, qcli, cfg.RetrievalTimeout)
	eng := engine.New(aiClient, retriever, cfg)
	wrk := worker.New(jobs, eng).
		WithVectorizer(index.NewCandidateVectorizer(retriever, docs))

	consumer, err := redpanda.NewConsumer(cfg.KafkaBrokers, cfg.ConsumerGroup, cfg.WorkerPoolSize, wrk.Handle)
	if err != nil {
		slog.Error("queue consumer connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = consumer.Close() }()

	slog.Info("worker starting",
		slog.Int("pool_size", cfg.WorkerPoolSize),
		slog.String("group", cfg.ConsumerGroup))
	if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
		slog.Error("consumer stopped", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("worker stopped")
}
