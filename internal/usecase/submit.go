// Package usecase contains application services: submission, status reads,
// listing, and cancellation of evaluation jobs.
package usecase

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/fairyhunter13/hireval/internal/domain"
)

// estimatedDuration is the static completion estimate returned at submission.
// The chain is dominated by three LLM calls; anything fancier would be false
// precision.
const estimatedDuration = 90 * time.Second

var validate = validator.New()

// SubmitRequest is the validated input of Submit.
type SubmitRequest struct {
	JobTitle   string `validate:"required,min=3,max=100"`
	CVRef      string `validate:"required"`
	ProjectRef string `validate:"required"`
	OwnerID    string `validate:"required"`
}

// SubmitResponse is returned synchronously to the caller.
type SubmitResponse struct {
	JobID               string `json:"job_id"`
	Status              string `json:"status"`
	EstimatedCompletion string `json:"estimated_completion"`
}

// SubmitService validates a submission, persists the job, and enqueues the
// evaluation task. It is strictly synchronous up to enqueue.
type SubmitService struct {
	Jobs      domain.JobStore
	Documents domain.DocumentProvider
	Queue     domain.Queue
}

// NewSubmitService constructs a SubmitService.
func NewSubmitService(jobs domain.JobStore, docs domain.DocumentProvider, queue domain.Queue) SubmitService {
	return SubmitService{Jobs: jobs, Documents: docs, Queue: queue}
}

// Submit runs the submission contract. Validation and document resolution
// failures surface to the caller with no job record created.
func (s SubmitService) Submit(ctx domain.Context, req SubmitRequest) (SubmitResponse, error) {
	if err := validate.Struct(req); err != nil {
		return SubmitResponse{}, fmt.Errorf("op=submit.validate: %w: %s", domain.ErrInvalidArgument, validationDetail(err))
	}

	cv, err := s.Documents.GetDocument(ctx, req.CVRef, req.OwnerID)
	if err != nil {
		return SubmitResponse{}, fmt.Errorf("op=submit.cv_ref: %w", err)
	}
	if cv.Type != domain.DocTypeCV {
		return SubmitResponse{}, fmt.Errorf("op=submit.cv_ref: type=%s: %w", cv.Type, domain.ErrInvalidArgument)
	}
	project, err := s.Documents.GetDocument(ctx, req.ProjectRef, req.OwnerID)
	if err != nil {
		return SubmitResponse{}, fmt.Errorf("op=submit.project_ref: %w", err)
	}
	if project.Type != domain.DocTypeProjectReport {
		return SubmitResponse{}, fmt.Errorf("op=submit.project_ref: type=%s: %w", project.Type, domain.ErrInvalidArgument)
	}

	job, err := s.Jobs.CreateAtomic(ctx, domain.EvaluationJob{
		JobID:     MintJobID(),
		OwnerID:   req.OwnerID,
		JobTitle:  req.JobTitle,
		CVID:      cv.ID,
		ProjectID: project.ID,
		Status:    domain.JobQueued,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return SubmitResponse{}, err
	}

	payload := domain.EvaluateTaskPayload{
		JobID:       job.JobID,
		JobRecordID: job.ID,
		JobTitle:    req.JobTitle,
		CVText:      cv.Text,
		ProjectText: project.Text,
		OwnerID:     req.OwnerID,
	}
	if _, err := s.Queue.EnqueueEvaluate(ctx, payload); err != nil {
		msg := "enqueue failed: " + firstLine(err.Error())
		failed := domain.JobFailed
		if _, uerr := s.Jobs.UpdateOptimistic(ctx, job.JobID, job.Version, domain.JobPatch{
			Status: &failed, Error: &msg,
		}); uerr != nil {
			return SubmitResponse{}, fmt.Errorf("op=submit.enqueue: %w (mark failed: %v)", err, uerr)
		}
		return SubmitResponse{}, fmt.Errorf("op=submit.enqueue: %w", err)
	}

	return SubmitResponse{
		JobID:               job.JobID,
		Status:              string(job.Status),
		EstimatedCompletion: time.Now().UTC().Add(estimatedDuration).Format(time.RFC3339),
	}, nil
}

// MintJobID mints "eval_<base36 ms>_<12 hex random>". CreateAtomic makes the
// negligible collision case observably safe.
func MintJobID() string {
	buf := make([]byte, 6)
	_, _ = rand.Read(buf)
	return "eval_" + strconv.FormatInt(time.Now().UnixMilli(), 36) + "_" + hex.EncodeToString(buf)
}

func validationDetail(err error) string {
	var verrs validator.ValidationErrors
	if ok := errors.As(err, &verrs); ok && len(verrs) > 0 {
		return fmt.Sprintf("field %s failed %s", verrs[0].Field(), verrs[0].Tag())
	}
	return "invalid input"
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
