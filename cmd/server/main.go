// Command server runs the HTTP API, the dispatcher, and the stale-job
// sweeper.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/hireval/internal/adapter/httpserver"
	"github.com/fairyhunter13/hireval/internal/adapter/llm"
	"github.com/fairyhunter13/hireval/internal/adapter/observability"
	"github.com/fairyhunter13/hireval/internal/adapter/queue/redpanda"
	"github.com/fairyhunter13/hireval/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/hireval/internal/adapter/vector/qdrant"
	"github.com/fairyhunter13/hireval/internal/app"
	"github.com/fairyhunter13/hireval/internal/config"
	"github.com/fairyhunter13/hireval/internal/usecase"
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

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("db connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()
	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		slog.Error("schema ensure failed", slog.Any("error", err))
		os.Exit(1)
	}

	jobs := postgres.NewJobRepo(pool)
	docs := postgres.NewDocumentRepo(pool)

	producer, err := redpanda.NewProducer(cfg.KafkaBrokers, "")
	if err != nil {
		slog.Error("queue producer connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = producer.Close() }()

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

	submitSvc := usecase.NewSubmitService(jobs, docs, producer)
	statusSvc := usecase.NewStatusService(jobs)

	readiness := app.NewReadiness().
		AddPinger("db", pool).
		AddPinger("qdrant", qcli).
		AddPinger("llm", aiClient).
		AddRedis(rdb)

	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	sweeper := app.NewSweeper(jobs, docs, producer,
		cfg.SweepInterval, cfg.QueuedGraceWindow, cfg.ProcessingMaxAge)
	go sweeper.Run(sweepCtx)

	srv := httpserver.NewServer(cfg, submitSvc, statusSvc, readiness)
	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv.BuildRouter(),
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.Port))
		errCh <- httpSrv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	stopSweeper()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)
}
