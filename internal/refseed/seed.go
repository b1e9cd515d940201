// Package refseed loads reference documents from YAML files into the
// retrieval index: job descriptions, scoring rubrics, and case studies.
// Point ids are deterministic, so re-running a seed is idempotent.
package refseed

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fairyhunter13/hireval/internal/domain"
)

// systemOwner marks reference material not owned by any user.
const systemOwner = "system"

// collectionFor maps a reference document type to its collection.
var collectionFor = map[string]string{
	domain.DocTypeJobDescription: domain.CollectionJobDescriptions,
	domain.DocTypeCaseStudy:      domain.CollectionCaseStudies,
	domain.DocTypeCVRubric:       domain.CollectionRubrics,
	domain.DocTypeProjectRubric:  domain.CollectionRubrics,
}

type seedFile struct {
	Documents []seedDocument `yaml:"documents"`
}

type seedDocument struct {
	ID   string `yaml:"id"`
	Type string `yaml:"type"`
	Text string `yaml:"text"`
}

// Result summarizes one seeding run.
type Result struct {
	Documents int
	Chunks    int
}

// SeedFile ingests every document in one YAML file.
func SeedFile(ctx domain.Context, retriever domain.Retriever, path string) (Result, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Result{}, fmt.Errorf("op=refseed.read: %w: %s", domain.ErrNotFound, path)
		}
		return Result{}, fmt.Errorf("op=refseed.read: %w", err)
	}
	var f seedFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return Result{}, fmt.Errorf("op=refseed.parse %s: %w", path, err)
	}
	if len(f.Documents) == 0 {
		return Result{}, fmt.Errorf("op=refseed.parse: %w: no documents in %s", domain.ErrInvalidArgument, path)
	}

	var res Result
	for _, sd := range f.Documents {
		doc, collection, err := toDocument(sd, path)
		if err != nil {
			return res, err
		}
		stored, err := retriever.IndexDocument(ctx, doc, collection)
		if err != nil {
			return res, fmt.Errorf("op=refseed.index doc=%s: %w", doc.ID, err)
		}
		res.Documents++
		res.Chunks += stored
		slog.Info("seeded reference document",
			slog.String("doc_id", doc.ID),
			slog.String("collection", collection),
			slog.Int("chunks", stored))
	}
	return res, nil
}

// SeedDir ingests every .yaml/.yml file directly under dir.
func SeedDir(ctx domain.Context, retriever domain.Retriever, dir string) (Result, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Result{}, fmt.Errorf("op=refseed.dir: %w", err)
	}
	var total Result
	for _, e := range entries {
		if e.IsDir() || !isYAML(e.Name()) {
			continue
		}
		res, err := SeedFile(ctx, retriever, filepath.Join(dir, e.Name()))
		if err != nil {
			return total, err
		}
		total.Documents += res.Documents
		total.Chunks += res.Chunks
	}
	if total.Documents == 0 {
		return total, fmt.Errorf("op=refseed.dir: %w: no seed files in %s", domain.ErrNotFound, dir)
	}
	return total, nil
}

func toDocument(sd seedDocument, path string) (domain.Document, string, error) {
	docType := strings.TrimSpace(sd.Type)
	collection, ok := collectionFor[docType]
	if !ok {
		return domain.Document{}, "", fmt.Errorf("op=refseed.parse: %w: type %q in %s", domain.ErrInvalidArgument, sd.Type, path)
	}
	text := strings.TrimSpace(sd.Text)
	if text == "" {
		return domain.Document{}, "", fmt.Errorf("op=refseed.parse: %w: empty text for %q in %s", domain.ErrInvalidArgument, sd.ID, path)
	}
	id := strings.TrimSpace(sd.ID)
	if id == "" {
		return domain.Document{}, "", fmt.Errorf("op=refseed.parse: %w: missing id in %s", domain.ErrInvalidArgument, path)
	}
	return domain.Document{
		ID:      id,
		Type:    docType,
		OwnerID: systemOwner,
		Text:    text,
	}, collection, nil
}

func isYAML(name string) bool {
	n := strings.ToLower(name)
	return strings.HasSuffix(n, ".yaml") || strings.HasSuffix(n, ".yml")
}
