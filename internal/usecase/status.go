package usecase

import (
	"fmt"
	"time"

	"github.com/fairyhunter13/hireval/internal/domain"
)

// StatusService reads and cancels jobs on behalf of their owner.
type StatusService struct {
	Jobs domain.JobStore
}

// NewStatusService constructs a StatusService.
func NewStatusService(jobs domain.JobStore) StatusService {
	return StatusService{Jobs: jobs}
}

// JobView is the owner-facing projection of an EvaluationJob: system-internal
// fields stay out, the result appears only once the job completed, and the
// error plus retry counter appear only on failure.
type JobView struct {
	JobID               string                   `json:"job_id"`
	JobTitle            string                   `json:"job_title"`
	Status              string                   `json:"status"`
	CreatedAt           string                   `json:"created_at"`
	ProcessingStartedAt string                   `json:"processing_started_at,omitempty"`
	CompletedAt         string                   `json:"completed_at,omitempty"`
	Error               string                   `json:"error,omitempty"`
	RetryCount          *int                     `json:"retry_count,omitempty"`
	Result              *domain.EvaluationResult `json:"result,omitempty"`
}

// NewJobView projects a job for its owner.
func NewJobView(j domain.EvaluationJob) JobView {
	v := JobView{
		JobID:     j.JobID,
		JobTitle:  j.JobTitle,
		Status:    string(j.Status),
		CreatedAt: j.CreatedAt.UTC().Format(time.RFC3339),
	}
	if j.ProcessingStartedAt != nil {
		v.ProcessingStartedAt = j.ProcessingStartedAt.UTC().Format(time.RFC3339)
	}
	if j.ProcessingCompletedAt != nil {
		v.CompletedAt = j.ProcessingCompletedAt.UTC().Format(time.RFC3339)
	}
	switch j.Status {
	case domain.JobCompleted:
		v.Result = j.Result
	case domain.JobFailed:
		v.Error = j.Error
		rc := j.RetryCount
		v.RetryCount = &rc
	}
	return v
}

// GetStatus returns the owner's view of one job.
func (s StatusService) GetStatus(ctx domain.Context, jobID, ownerID string) (JobView, error) {
	if jobID == "" || ownerID == "" {
		return JobView{}, fmt.Errorf("op=status.get: %w: ids required", domain.ErrInvalidArgument)
	}
	job, err := s.Jobs.Find(ctx, jobID, ownerID)
	if err != nil {
		return JobView{}, err
	}
	return NewJobView(job), nil
}

// List pages the owner's jobs with pagination metadata.
func (s StatusService) List(ctx domain.Context, ownerID string, f domain.ListFilter) ([]JobView, domain.Page, error) {
	if ownerID == "" {
		return nil, domain.Page{}, fmt.Errorf("op=status.list: %w: owner required", domain.ErrInvalidArgument)
	}
	jobs, page, err := s.Jobs.List(ctx, ownerID, f)
	if err != nil {
		return nil, domain.Page{}, err
	}
	views := make([]JobView, 0, len(jobs))
	for _, j := range jobs {
		views = append(views, NewJobView(j))
	}
	return views, page, nil
}

// Cancel cancels the owner's job; re-cancelling is a no-op returning the
// stored record.
func (s StatusService) Cancel(ctx domain.Context, jobID, ownerID string) (JobView, error) {
	if jobID == "" || ownerID == "" {
		return JobView{}, fmt.Errorf("op=status.cancel: %w: ids required", domain.ErrInvalidArgument)
	}
	job, err := s.Jobs.Cancel(ctx, jobID, ownerID)
	if err != nil {
		return JobView{}, err
	}
	return NewJobView(job), nil
}
