package index

import (
	"fmt"
	"log/slog"

	"github.com/fairyhunter13/hireval/internal/domain"
)

// DocumentStore is the slice of the document repository the vectorizer needs.
type DocumentStore interface {
	GetDocument(ctx domain.Context, docID, ownerID string) (domain.Document, error)
	MarkVectorized(ctx domain.Context, docID string) error
}

// CandidateVectorizer feeds candidate material into the similarity
// collections so later evaluations can retrieve comparable CVs and projects.
// Each document is indexed once; the vectorized flag makes re-runs cheap.
type CandidateVectorizer struct {
	retriever domain.Retriever
	docs      DocumentStore
}

// NewCandidateVectorizer constructs a CandidateVectorizer.
func NewCandidateVectorizer(retriever domain.Retriever, docs DocumentStore) *CandidateVectorizer {
	return &CandidateVectorizer{retriever: retriever, docs: docs}
}

// Vectorize indexes the job's CV and project report into their collections.
// It returns the first error but always attempts both documents.
func (v *CandidateVectorizer) Vectorize(ctx domain.Context, job domain.EvaluationJob) error {
	cvErr := v.vectorizeOne(ctx, job.CVID, job.OwnerID, domain.CollectionCVDocuments)
	projErr := v.vectorizeOne(ctx, job.ProjectID, job.OwnerID, domain.CollectionProjectDocuments)
	if cvErr != nil {
		return cvErr
	}
	return projErr
}

func (v *CandidateVectorizer) vectorizeOne(ctx domain.Context, docID, ownerID, collection string) error {
	doc, err := v.docs.GetDocument(ctx, docID, ownerID)
	if err != nil {
		return fmt.Errorf("op=vectorize.load doc=%s: %w", docID, err)
	}
	if doc.Vectorized {
		return nil
	}
	stored, err := v.retriever.IndexDocument(ctx, doc, collection)
	if err != nil {
		return fmt.Errorf("op=vectorize.index doc=%s: %w", docID, err)
	}
	if err := v.docs.MarkVectorized(ctx, docID); err != nil {
		return err
	}
	slog.Info("candidate document vectorized",
		slog.String("doc_id", docID),
		slog.String("collection", collection),
		slog.Int("chunks", stored))
	return nil
}
