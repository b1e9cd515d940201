package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/hireval/internal/domain"
)

// DocumentRepo reads extracted documents owned by the upload subsystem.
type DocumentRepo struct{ Pool PgxPool }

// NewDocumentRepo constructs a DocumentRepo with the given pool.
func NewDocumentRepo(p PgxPool) *DocumentRepo { return &DocumentRepo{Pool: p} }

// GetDocument loads a document scoped to its owner. Someone else's document
// reads as not found.
func (r *DocumentRepo) GetDocument(ctx domain.Context, docID, ownerID string) (domain.Document, error) {
	tracer := otel.Tracer("repo.documents")
	ctx, span := tracer.Start(ctx, "documents.Get")
	defer span.End()

	q := `SELECT id, type, owner_id, text, vectorized FROM documents WHERE id=$1 AND owner_id=$2`
	row := r.Pool.QueryRow(ctx, q, docID, ownerID)
	var d domain.Document
	if err := row.Scan(&d.ID, &d.Type, &d.OwnerID, &d.Text, &d.Vectorized); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Document{}, fmt.Errorf("op=document.get: %w", domain.ErrNotFound)
		}
		return domain.Document{}, fmt.Errorf("op=document.get: %w", err)
	}
	return d, nil
}

// MarkVectorized flags a document as indexed in the retrieval store.
func (r *DocumentRepo) MarkVectorized(ctx domain.Context, docID string) error {
	tracer := otel.Tracer("repo.documents")
	ctx, span := tracer.Start(ctx, "documents.MarkVectorized")
	defer span.End()

	if _, err := r.Pool.Exec(ctx, `UPDATE documents SET vectorized=TRUE WHERE id=$1`, docID); err != nil {
		return fmt.Errorf("op=document.mark_vectorized: %w", err)
	}
	return nil
}
