package usecase

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/hireval/internal/domain"
)

type stubStore struct {
	jobs      map[string]*domain.EvaluationJob
	created   int
	updates   []domain.JobPatch
	createErr error
}

func newStubStore() *stubStore {
	return &stubStore{jobs: map[string]*domain.EvaluationJob{}}
}

func (s *stubStore) CreateAtomic(_ domain.Context, j domain.EvaluationJob) (domain.EvaluationJob, error) {
	if s.createErr != nil {
		return domain.EvaluationJob{}, s.createErr
	}
	if cur, ok := s.jobs[j.JobID]; ok {
		return *cur, nil
	}
	j.ID = "rec-" + j.JobID
	j.Version = 1
	s.jobs[j.JobID] = &j
	s.created++
	return j, nil
}

func (s *stubStore) Get(_ domain.Context, jobID string) (domain.EvaluationJob, error) {
	if j, ok := s.jobs[jobID]; ok {
		return *j, nil
	}
	return domain.EvaluationJob{}, domain.ErrNotFound
}

func (s *stubStore) UpdateOptimistic(_ domain.Context, jobID string, _ int64, patch domain.JobPatch) (domain.EvaluationJob, error) {
	j, ok := s.jobs[jobID]
	if !ok {
		return domain.EvaluationJob{}, domain.ErrNotFound
	}
	s.updates = append(s.updates, patch)
	if patch.Status != nil {
		j.Status = *patch.Status
	}
	if patch.Error != nil {
		j.Error = *patch.Error
	}
	j.Version++
	return *j, nil
}

func (s *stubStore) TransitionStatus(ctx domain.Context, jobID string, next domain.JobStatus, patch domain.JobPatch) (domain.EvaluationJob, error) {
	patch.Status = &next
	return s.UpdateOptimistic(ctx, jobID, 0, patch)
}

func (s *stubStore) Find(_ domain.Context, jobID, ownerID string) (domain.EvaluationJob, error) {
	if j, ok := s.jobs[jobID]; ok && j.OwnerID == ownerID {
		return *j, nil
	}
	return domain.EvaluationJob{}, domain.ErrNotFound
}

func (s *stubStore) List(_ domain.Context, ownerID string, _ domain.ListFilter) ([]domain.EvaluationJob, domain.Page, error) {
	var out []domain.EvaluationJob
	for _, j := range s.jobs {
		if j.OwnerID == ownerID {
			out = append(out, *j)
		}
	}
	return out, domain.Page{Page: 1, Limit: 20, Total: int64(len(out)), TotalPages: 1}, nil
}

func (s *stubStore) Cancel(_ domain.Context, jobID, ownerID string) (domain.EvaluationJob, error) {
	j, ok := s.jobs[jobID]
	if !ok || j.OwnerID != ownerID {
		return domain.EvaluationJob{}, domain.ErrNotFound
	}
	switch j.Status {
	case domain.JobCancelled:
		return *j, nil
	case domain.JobQueued, domain.JobProcessing:
		j.Status = domain.JobCancelled
		j.Version++
		return *j, nil
	default:
		return domain.EvaluationJob{}, domain.ErrConflict
	}
}

func (s *stubStore) ListStale(_ domain.Context, _ domain.JobStatus, _ time.Time, _ int) ([]domain.EvaluationJob, error) {
	return nil, nil
}

type stubDocs struct{ docs map[string]domain.Document }

func (s stubDocs) GetDocument(_ domain.Context, docID, ownerID string) (domain.Document, error) {
	d, ok := s.docs[docID]
	if !ok || d.OwnerID != ownerID {
		return domain.Document{}, domain.ErrNotFound
	}
	return d, nil
}

type stubQueue struct {
	enqueued []domain.EvaluateTaskPayload
	err      error
}

func (q *stubQueue) EnqueueEvaluate(_ domain.Context, p domain.EvaluateTaskPayload) (string, error) {
	if q.err != nil {
		return "", q.err
	}
	q.enqueued = append(q.enqueued, p)
	return p.JobID, nil
}

func testDocs() stubDocs {
	return stubDocs{docs: map[string]domain.Document{
		"cv-1":   {ID: "cv-1", Type: domain.DocTypeCV, OwnerID: "user-1", Text: "cv text"},
		"proj-1": {ID: "proj-1", Type: domain.DocTypeProjectReport, OwnerID: "user-1", Text: "project text"},
	}}
}

func validRequest() SubmitRequest {
	return SubmitRequest{JobTitle: "Backend Engineer", CVRef: "cv-1", ProjectRef: "proj-1", OwnerID: "user-1"}
}

func TestSubmit_HappyPath(t *testing.T) {
	t.Parallel()
	store := newStubStore()
	queue := &stubQueue{}
	svc := NewSubmitService(store, testDocs(), queue)

	resp, err := svc.Submit(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, "queued", resp.Status)
	assert.Regexp(t, `^eval_[0-9a-z]+_[0-9a-f]{12}$`, resp.JobID)
	assert.NotEmpty(t, resp.EstimatedCompletion)

	require.Len(t, queue.enqueued, 1)
	p := queue.enqueued[0]
	assert.Equal(t, resp.JobID, p.JobID)
	assert.Equal(t, "cv text", p.CVText)
	assert.Equal(t, "project text", p.ProjectText)
	assert.Equal(t, "rec-"+resp.JobID, p.JobRecordID)
}

func TestSubmit_TitleValidation(t *testing.T) {
	t.Parallel()
	store := newStubStore()
	svc := NewSubmitService(store, testDocs(), &stubQueue{})

	for _, title := range []string{"", "ab", string(make([]byte, 101))} {
		req := validRequest()
		req.JobTitle = title
		_, err := svc.Submit(context.Background(), req)
		require.Error(t, err, "title %q", title)
		assert.True(t, errors.Is(err, domain.ErrInvalidArgument))
	}
	assert.Zero(t, store.created, "no job record on validation failure")
}

func TestSubmit_UnresolvedCVRef(t *testing.T) {
	t.Parallel()
	store := newStubStore()
	svc := NewSubmitService(store, testDocs(), &stubQueue{})

	req := validRequest()
	req.CVRef = "missing"
	_, err := svc.Submit(context.Background(), req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.Zero(t, store.created)
}

func TestSubmit_WrongDocumentType(t *testing.T) {
	t.Parallel()
	store := newStubStore()
	svc := NewSubmitService(store, testDocs(), &stubQueue{})

	req := validRequest()
	req.CVRef = "proj-1" // a project report where a CV is expected
	_, err := svc.Submit(context.Background(), req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidArgument))
	assert.Zero(t, store.created)
}

func TestSubmit_CrossOwnerDocumentHidden(t *testing.T) {
	t.Parallel()
	store := newStubStore()
	svc := NewSubmitService(store, testDocs(), &stubQueue{})

	req := validRequest()
	req.OwnerID = "user-2"
	_, err := svc.Submit(context.Background(), req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound), "someone else's documents read as missing")
}

func TestSubmit_EnqueueFailureMarksJobFailed(t *testing.T) {
	t.Parallel()
	store := newStubStore()
	queue := &stubQueue{err: errors.New("broker unreachable")}
	svc := NewSubmitService(store, testDocs(), queue)

	_, err := svc.Submit(context.Background(), validRequest())
	require.Error(t, err)
	require.Equal(t, 1, store.created, "the job record exists before the enqueue attempt")

	for _, j := range store.jobs {
		assert.Equal(t, domain.JobFailed, j.Status)
		assert.Contains(t, j.Error, "enqueue failed:")
	}
}

func TestMintJobID_Format(t *testing.T) {
	t.Parallel()
	re := regexp.MustCompile(`^eval_[0-9a-z]+_[0-9a-f]{12}$`)
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := MintJobID()
		assert.Regexp(t, re, id)
		assert.False(t, seen[id], "ids must not collide in practice")
		seen[id] = true
	}
}
