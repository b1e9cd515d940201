// Command refseed loads reference YAML documents into the retrieval index.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/fairyhunter13/hireval/internal/adapter/llm"
	"github.com/fairyhunter13/hireval/internal/adapter/observability"
	"github.com/fairyhunter13/hireval/internal/adapter/vector/qdrant"
	"github.com/fairyhunter13/hireval/internal/config"
	"github.com/fairyhunter13/hireval/internal/index"
	"github.com/fairyhunter13/hireval/internal/refseed"
)

func main() {
	dir := flag.String("dir", "configs/reference", "directory of YAML seed files")
	file := flag.String("file", "", "seed a single YAML file instead of a directory")
	timeout := flag.Duration("timeout", 10*time.Minute, "overall seeding deadline")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	slog.SetDefault(observability.SetupLogger(cfg))

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	aiClient := llm.New(cfg, nil)
	qcli := qdrant.New(cfg.QdrantURL, cfg.QdrantAPIKey, cfg.RetrievalTimeout)
	retriever := index.New(aiClient, qcli, cfg.EmbedTimeout)

	var res refseed.Result
	if *file != "" {
		res, err = refseed.SeedFile(ctx, retriever, *file)
	} else {
		res, err = refseed.SeedDir(ctx, retriever, *dir)
	}
	if err != nil {
		slog.Error("seeding failed", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("seeding finished",
		slog.Int("documents", res.Documents),
		slog.Int("chunks", res.Chunks))
}
