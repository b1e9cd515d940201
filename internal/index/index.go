package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fairyhunter13/hireval/internal/adapter/observability"
	"github.com/fairyhunter13/hireval/internal/adapter/vector/qdrant"
	"github.com/fairyhunter13/hireval/internal/domain"
)

// embedBatchSize bounds how many chunks go to the embedder per call.
const embedBatchSize = 16

var pointNamespace = uuid.MustParse("7a3e1f40-9c2b-4b7e-a65d-1f0c8d2e9b11")

// Embedder is the slice of the AI client the index needs.
type Embedder interface {
	Embed(ctx domain.Context, texts []string) ([][]float32, error)
}

// Index implements domain.Retriever on top of Qdrant. Search failures degrade
// to empty results so evaluation never blocks on the vector store.
type Index struct {
	embedder Embedder
	store    *qdrant.Client
	timeout  time.Duration

	mu      sync.Mutex
	ensured map[string]bool
	cache   map[string][]float32
}

// New builds an Index over the given embedder and Qdrant client.
func New(embedder Embedder, store *qdrant.Client, timeout time.Duration) *Index {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Index{
		embedder: embedder,
		store:    store,
		timeout:  timeout,
		ensured:  map[string]bool{},
		cache:    map[string][]float32{},
	}
}

// IndexDocument chunks, embeds, and upserts a document into collection. It
// returns the number of chunks stored. Unlike Search, indexing reports its
// failures: the seeder decides what to do with them.
func (ix *Index) IndexDocument(ctx domain.Context, doc domain.Document, collection string) (int, error) {
	chunks := Chunk(doc.Text)
	if len(chunks) == 0 {
		return 0, nil
	}
	total := len(chunks)
	stored := 0
	for start := 0; start < total; start += embedBatchSize {
		end := start + embedBatchSize
		if end > total {
			end = total
		}
		batch := chunks[start:end]
		vecs, err := ix.embedBatch(ctx, batch)
		if err != nil {
			return stored, fmt.Errorf("op=index.embed doc=%s: %w", doc.ID, err)
		}
		if err := ix.ensureCollection(ctx, collection, len(vecs[0])); err != nil {
			return stored, fmt.Errorf("op=index.ensure collection=%s: %w", collection, err)
		}
		points := make([]qdrant.Point, 0, len(batch))
		for i, text := range batch {
			idx := start + i
			points = append(points, qdrant.Point{
				ID:     pointID(doc.ID, idx),
				Vector: vecs[i],
				Payload: map[string]any{
					"text":         text,
					"doc_id":       doc.ID,
					"doc_type":     doc.Type,
					"owner_id":     doc.OwnerID,
					"chunk_index":  idx,
					"total_chunks": total,
					"indexed_at":   time.Now().UTC().Format(time.RFC3339),
				},
			})
		}
		if err := ix.store.UpsertPoints(ctx, collection, points); err != nil {
			return stored, fmt.Errorf("op=index.upsert collection=%s: %w", collection, err)
		}
		stored += len(points)
	}
	return stored, nil
}

// Search embeds q.Text and runs nearest-neighbour search. Any failure is
// logged, counted, and reported as zero results with a nil error.
func (ix *Index) Search(ctx domain.Context, q domain.SearchQuery) ([]domain.ReferenceChunk, error) {
	sctx, cancel := context.WithTimeout(ctx, ix.timeout)
	defer cancel()

	vecs, err := ix.embedBatch(sctx, []string{q.Text})
	if err != nil || len(vecs) == 0 {
		ix.degrade(q.Collection, "embed", err)
		return nil, nil
	}
	topK := q.MaxResults
	if topK <= 0 {
		topK = 5
	}
	hits, err := ix.store.Search(sctx, q.Collection, vecs[0], topK, q.Threshold, q.Filter)
	if err != nil {
		ix.degrade(q.Collection, "search", err)
		return nil, nil
	}
	out := make([]domain.ReferenceChunk, 0, len(hits))
	for _, h := range hits {
		text, _ := h.Payload["text"].(string)
		docID, _ := h.Payload["doc_id"].(string)
		out = append(out, domain.ReferenceChunk{
			ID:         fmt.Sprintf("%v", h.ID),
			SourceDoc:  docID,
			Collection: q.Collection,
			Text:       text,
			Score:      h.Score,
			Metadata:   h.Payload,
		})
	}
	return out, nil
}

// Remove deletes every chunk of docID from collection.
func (ix *Index) Remove(ctx domain.Context, docID, collection string) error {
	if err := ix.store.DeleteByDocID(ctx, collection, docID); err != nil {
		return fmt.Errorf("op=index.remove doc=%s: %w", docID, err)
	}
	return nil
}

func (ix *Index) degrade(collection, stage string, err error) {
	observability.RetrievalDegradedTotal.Inc()
	slog.Warn("retrieval degraded to empty results",
		slog.String("collection", collection),
		slog.String("stage", stage),
		slog.Any("error", err))
}

// embedBatch embeds texts, serving repeats from a content-hash cache. The
// cache pays off during seeding, where boilerplate sections recur across
// documents.
func (ix *Index) embedBatch(ctx domain.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missing []string
	var missingAt []int
	ix.mu.Lock()
	for i, t := range texts {
		if v, ok := ix.cache[cacheKey(t)]; ok {
			out[i] = v
			continue
		}
		missing = append(missing, t)
		missingAt = append(missingAt, i)
	}
	ix.mu.Unlock()
	if len(missing) == 0 {
		return out, nil
	}
	vecs, err := ix.embedder.Embed(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missing) {
		return nil, fmt.Errorf("op=index.embed: got %d vectors for %d texts", len(vecs), len(missing))
	}
	ix.mu.Lock()
	for i, v := range vecs {
		out[missingAt[i]] = v
		ix.cache[cacheKey(missing[i])] = v
	}
	ix.mu.Unlock()
	return out, nil
}

// ensureCollection creates the collection lazily, sized to the first vector
// seen for it. Embedding always yields a consistent dimension per process, so
// queries and points agree.
func (ix *Index) ensureCollection(ctx domain.Context, name string, dim int) error {
	ix.mu.Lock()
	done := ix.ensured[name]
	ix.mu.Unlock()
	if done {
		return nil
	}
	if err := ix.store.EnsureCollection(ctx, name, dim); err != nil {
		return err
	}
	ix.mu.Lock()
	ix.ensured[name] = true
	ix.mu.Unlock()
	return nil
}

// pointID derives a stable UUID from the document id and chunk index, so
// re-indexing a document overwrites its previous points.
func pointID(docID string, chunkIdx int) string {
	return uuid.NewSHA1(pointNamespace, []byte(fmt.Sprintf("%s#%d", docID, chunkIdx))).String()
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
