package index

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/hireval/internal/domain"
)

type fakeDocStore struct {
	docs   map[string]domain.Document
	marked []string
}

func (f *fakeDocStore) GetDocument(_ domain.Context, docID, ownerID string) (domain.Document, error) {
	d, ok := f.docs[docID]
	if !ok || d.OwnerID != ownerID {
		return domain.Document{}, domain.ErrNotFound
	}
	return d, nil
}

func (f *fakeDocStore) MarkVectorized(_ domain.Context, docID string) error {
	f.marked = append(f.marked, docID)
	return nil
}

type recordingRetriever struct {
	indexed  map[string]string // docID -> collection
	indexErr error
}

func (r *recordingRetriever) IndexDocument(_ domain.Context, doc domain.Document, collection string) (int, error) {
	if r.indexErr != nil {
		return 0, r.indexErr
	}
	if r.indexed == nil {
		r.indexed = map[string]string{}
	}
	r.indexed[doc.ID] = collection
	return 3, nil
}

func (r *recordingRetriever) Search(_ domain.Context, _ domain.SearchQuery) ([]domain.ReferenceChunk, error) {
	return nil, nil
}

func (r *recordingRetriever) Remove(_ domain.Context, _, _ string) error { return nil }

func vectorizeJob() domain.EvaluationJob {
	return domain.EvaluationJob{
		JobID: "eval_m2x_9a1b2c3d4e5f", OwnerID: "user-1",
		CVID: "cv-1", ProjectID: "proj-1",
	}
}

func TestVectorize_IndexesBothDocuments(t *testing.T) {
	t.Parallel()
	docs := &fakeDocStore{docs: map[string]domain.Document{
		"cv-1":   {ID: "cv-1", Type: domain.DocTypeCV, OwnerID: "user-1", Text: "cv text"},
		"proj-1": {ID: "proj-1", Type: domain.DocTypeProjectReport, OwnerID: "user-1", Text: "project text"},
	}}
	ret := &recordingRetriever{}
	v := NewCandidateVectorizer(ret, docs)

	require.NoError(t, v.Vectorize(context.Background(), vectorizeJob()))
	assert.Equal(t, domain.CollectionCVDocuments, ret.indexed["cv-1"])
	assert.Equal(t, domain.CollectionProjectDocuments, ret.indexed["proj-1"])
	assert.ElementsMatch(t, []string{"cv-1", "proj-1"}, docs.marked)
}

func TestVectorize_SkipsAlreadyVectorized(t *testing.T) {
	t.Parallel()
	docs := &fakeDocStore{docs: map[string]domain.Document{
		"cv-1":   {ID: "cv-1", OwnerID: "user-1", Text: "cv text", Vectorized: true},
		"proj-1": {ID: "proj-1", OwnerID: "user-1", Text: "project text", Vectorized: true},
	}}
	ret := &recordingRetriever{}
	v := NewCandidateVectorizer(ret, docs)

	require.NoError(t, v.Vectorize(context.Background(), vectorizeJob()))
	assert.Empty(t, ret.indexed)
	assert.Empty(t, docs.marked)
}

func TestVectorize_AttemptsSecondDocumentAfterFailure(t *testing.T) {
	t.Parallel()
	docs := &fakeDocStore{docs: map[string]domain.Document{
		"proj-1": {ID: "proj-1", OwnerID: "user-1", Text: "project text"},
	}}
	ret := &recordingRetriever{}
	v := NewCandidateVectorizer(ret, docs)

	err := v.Vectorize(context.Background(), vectorizeJob())
	require.Error(t, err, "missing cv document surfaces")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.Equal(t, domain.CollectionProjectDocuments, ret.indexed["proj-1"], "project still indexed")
}

func TestVectorize_IndexErrorDoesNotMark(t *testing.T) {
	t.Parallel()
	docs := &fakeDocStore{docs: map[string]domain.Document{
		"cv-1":   {ID: "cv-1", OwnerID: "user-1", Text: "cv text"},
		"proj-1": {ID: "proj-1", OwnerID: "user-1", Text: "project text"},
	}}
	ret := &recordingRetriever{indexErr: errors.New("qdrant unreachable")}
	v := NewCandidateVectorizer(ret, docs)

	require.Error(t, v.Vectorize(context.Background(), vectorizeJob()))
	assert.Empty(t, docs.marked, "vectorized flag only set after a successful index")
}
