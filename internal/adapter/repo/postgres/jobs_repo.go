package postgres

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/hireval/internal/domain"
)

const (
	createRetries = 3
	createBackoff = 100 * time.Millisecond

	updateRetries = 3
	updateBackoff = 50 * time.Millisecond
)

const jobColumns = `id, job_id, owner_id, job_title, cv_id, project_id, status, version,
	retry_count, error, result, created_at, processing_started_at, processing_completed_at`

// JobRepo implements domain.JobStore on PostgreSQL. Version-checked updates
// provide the optimistic locking; Postgres default synchronous commit covers
// the durability requirement.
type JobRepo struct{ Pool PgxPool }

// NewJobRepo constructs a JobRepo with the given pool.
func NewJobRepo(p PgxPool) *JobRepo { return &JobRepo{Pool: p} }

// CreateAtomic upserts by JobID: an existing record wins and is returned
// unchanged. Insert races resolve by re-reading the winner.
func (r *JobRepo) CreateAtomic(ctx domain.Context, j domain.EvaluationJob) (domain.EvaluationJob, error) {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.CreateAtomic")
	span.SetAttributes(attribute.String("job.id", j.JobID))
	defer span.End()

	if j.ID == "" {
		j.ID = uuid.New().String()
	}
	if j.Status == "" {
		j.Status = domain.JobQueued
	}
	if j.CreatedAt.IsZero() {
		j.CreatedAt = time.Now().UTC()
	}

	var lastErr error
	for attempt := 0; attempt < createRetries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, createBackoff<<(attempt-1)); err != nil {
				return domain.EvaluationJob{}, err
			}
		}
		q := `INSERT INTO jobs (id, job_id, owner_id, job_title, cv_id, project_id, status, version, retry_count, error, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,1,0,'',$8,$8)
			ON CONFLICT (job_id) DO NOTHING`
		if _, err := r.Pool.Exec(ctx, q, j.ID, j.JobID, j.OwnerID, j.JobTitle, j.CVID, j.ProjectID, j.Status, j.CreatedAt); err != nil {
			lastErr = err
			continue
		}
		stored, err := r.Get(ctx, j.JobID)
		if err != nil {
			lastErr = err
			continue
		}
		return stored, nil
	}
	return domain.EvaluationJob{}, fmt.Errorf("op=job.create_atomic: %w: %w", domain.ErrPersistence, lastErr)
}

// Get loads a job by its public JobID without an owner check.
func (r *JobRepo) Get(ctx domain.Context, jobID string) (domain.EvaluationJob, error) {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.Get")
	defer span.End()

	row := r.Pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE job_id=$1`, jobID)
	j, err := scanJob(row)
	if err != nil {
		return domain.EvaluationJob{}, fmt.Errorf("op=job.get: %w", err)
	}
	return j, nil
}

// UpdateOptimistic applies patch iff the stored version still matches,
// bumping the version. On mismatch it re-reads and retries with backoff; a
// patch whose status transition the current state forbids fails immediately
// with ErrConflict, so a terminal state is never exited.
func (r *JobRepo) UpdateOptimistic(ctx domain.Context, jobID string, expectedVersion int64, patch domain.JobPatch) (domain.EvaluationJob, error) {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.UpdateOptimistic")
	span.SetAttributes(attribute.String("job.id", jobID))
	defer span.End()

	for attempt := 0; attempt < updateRetries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, updateBackoff<<(attempt-1)); err != nil {
				return domain.EvaluationJob{}, err
			}
		}
		updated, applied, err := r.tryUpdate(ctx, jobID, expectedVersion, patch)
		if err != nil {
			return domain.EvaluationJob{}, fmt.Errorf("op=job.update: %w", err)
		}
		if applied {
			return updated, nil
		}
		cur, err := r.Get(ctx, jobID)
		if err != nil {
			return domain.EvaluationJob{}, err
		}
		if patch.Status != nil && !cur.Status.CanTransitionTo(*patch.Status) {
			return domain.EvaluationJob{}, fmt.Errorf("op=job.update: %s -> %s: %w", cur.Status, *patch.Status, domain.ErrConflict)
		}
		expectedVersion = cur.Version
	}
	return domain.EvaluationJob{}, fmt.Errorf("op=job.update: version retries exhausted: %w", domain.ErrConflict)
}

// tryUpdate performs one version-checked UPDATE. The status guard is encoded
// in SQL so that even the first attempt cannot race a terminal write.
func (r *JobRepo) tryUpdate(ctx domain.Context, jobID string, expectedVersion int64, patch domain.JobPatch) (domain.EvaluationJob, bool, error) {
	set := []string{"version = version + 1", "updated_at = $3"}
	args := []any{jobID, expectedVersion, time.Now().UTC()}
	add := func(expr string, v any) {
		args = append(args, v)
		set = append(set, fmt.Sprintf(expr, len(args)))
	}
	if patch.Status != nil {
		add("status = $%d", string(*patch.Status))
	}
	if patch.Error != nil {
		add("error = $%d", *patch.Error)
	}
	if patch.Result != nil {
		b, err := json.Marshal(patch.Result)
		if err != nil {
			return domain.EvaluationJob{}, false, err
		}
		add("result = $%d", b)
	}
	if patch.RetryCountDelta != 0 {
		add("retry_count = retry_count + $%d", patch.RetryCountDelta)
	}
	if patch.ProcessingStartedAt != nil {
		add("processing_started_at = $%d", *patch.ProcessingStartedAt)
	}
	if patch.ProcessingCompletedAt != nil {
		add("processing_completed_at = $%d", *patch.ProcessingCompletedAt)
	}

	q := fmt.Sprintf(`UPDATE jobs SET %s WHERE job_id = $1 AND version = $2`, strings.Join(set, ", "))
	if patch.Status != nil {
		q += ` AND status NOT IN ('completed','failed','cancelled')`
	}
	q += ` RETURNING ` + jobColumns

	row := r.Pool.QueryRow(ctx, q, args...)
	j, err := scanJob(row)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.EvaluationJob{}, false, nil
	}
	if err != nil {
		return domain.EvaluationJob{}, false, err
	}
	return j, true, nil
}

// TransitionStatus moves the job through the state machine, stamping the
// processing timestamps as it goes.
func (r *JobRepo) TransitionStatus(ctx domain.Context, jobID string, next domain.JobStatus, patch domain.JobPatch) (domain.EvaluationJob, error) {
	cur, err := r.Get(ctx, jobID)
	if err != nil {
		return domain.EvaluationJob{}, err
	}
	if !cur.Status.CanTransitionTo(next) {
		return domain.EvaluationJob{}, fmt.Errorf("op=job.transition: %s -> %s: %w", cur.Status, next, domain.ErrConflict)
	}
	now := time.Now().UTC()
	patch.Status = &next
	switch next {
	case domain.JobProcessing:
		patch.ProcessingStartedAt = &now
	case domain.JobCompleted, domain.JobFailed:
		patch.ProcessingCompletedAt = &now
	}
	return r.UpdateOptimistic(ctx, jobID, cur.Version, patch)
}

// Find loads a job scoped to its owner. A job owned by someone else reads as
// not found so existence does not leak across owners.
func (r *JobRepo) Find(ctx domain.Context, jobID, ownerID string) (domain.EvaluationJob, error) {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.Find")
	defer span.End()

	row := r.Pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE job_id=$1 AND owner_id=$2`, jobID, ownerID)
	j, err := scanJob(row)
	if err != nil {
		return domain.EvaluationJob{}, fmt.Errorf("op=job.find: %w", err)
	}
	return j, nil
}

// List pages an owner's jobs newest-first, optionally filtered by status.
func (r *JobRepo) List(ctx domain.Context, ownerID string, f domain.ListFilter) ([]domain.EvaluationJob, domain.Page, error) {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.List")
	defer span.End()

	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 20
	}
	where := "owner_id = $1"
	args := []any{ownerID}
	if f.Status != nil {
		args = append(args, string(*f.Status))
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}

	var total int64
	if err := r.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM jobs WHERE `+where, args...).Scan(&total); err != nil {
		return nil, domain.Page{}, fmt.Errorf("op=job.list_count: %w", err)
	}

	args = append(args, f.Limit, (f.Page-1)*f.Limit)
	q := fmt.Sprintf(`SELECT %s FROM jobs WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		jobColumns, where, len(args)-1, len(args))
	rows, err := r.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, domain.Page{}, fmt.Errorf("op=job.list: %w", err)
	}
	defer rows.Close()

	var jobs []domain.EvaluationJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, domain.Page{}, fmt.Errorf("op=job.list_scan: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Page{}, fmt.Errorf("op=job.list_rows: %w", err)
	}

	totalPages := int((total + int64(f.Limit) - 1) / int64(f.Limit))
	page := domain.Page{
		Page:       f.Page,
		Limit:      f.Limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    f.Page < totalPages,
		HasPrev:    f.Page > 1,
	}
	return jobs, page, nil
}

// Cancel moves an owner's job to cancelled. Only queued and processing jobs
// may be cancelled; cancelling an already-cancelled job is a no-op returning
// the stored record.
func (r *JobRepo) Cancel(ctx domain.Context, jobID, ownerID string) (domain.EvaluationJob, error) {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.Cancel")
	span.SetAttributes(attribute.String("job.id", jobID))
	defer span.End()

	q := `UPDATE jobs SET status='cancelled', version=version+1, updated_at=$3
		WHERE job_id=$1 AND owner_id=$2 AND status IN ('queued','processing')
		RETURNING ` + jobColumns
	row := r.Pool.QueryRow(ctx, q, jobID, ownerID, time.Now().UTC())
	j, err := scanJob(row)
	if err == nil {
		return j, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.EvaluationJob{}, fmt.Errorf("op=job.cancel: %w", err)
	}

	cur, err := r.Find(ctx, jobID, ownerID)
	if err != nil {
		return domain.EvaluationJob{}, err
	}
	if cur.Status == domain.JobCancelled {
		return cur, nil
	}
	return domain.EvaluationJob{}, fmt.Errorf("op=job.cancel: status=%s: %w", cur.Status, domain.ErrConflict)
}

// ListStale returns jobs stuck in status since before, oldest first. Queued
// jobs age by created_at, processing jobs by processing_started_at.
func (r *JobRepo) ListStale(ctx domain.Context, status domain.JobStatus, before time.Time, limit int) ([]domain.EvaluationJob, error) {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.ListStale")
	defer span.End()

	ageCol := "created_at"
	if status == domain.JobProcessing {
		ageCol = "processing_started_at"
	}
	if limit <= 0 {
		limit = 100
	}
	q := fmt.Sprintf(`SELECT %s FROM jobs WHERE status=$1 AND %s < $2 ORDER BY %s ASC LIMIT $3`,
		jobColumns, ageCol, ageCol)
	rows, err := r.Pool.Query(ctx, q, string(status), before, limit)
	if err != nil {
		return nil, fmt.Errorf("op=job.list_stale: %w", err)
	}
	defer rows.Close()

	var jobs []domain.EvaluationJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("op=job.list_stale_scan: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func scanJob(row pgx.Row) (domain.EvaluationJob, error) {
	var j domain.EvaluationJob
	var result []byte
	err := row.Scan(&j.ID, &j.JobID, &j.OwnerID, &j.JobTitle, &j.CVID, &j.ProjectID,
		&j.Status, &j.Version, &j.RetryCount, &j.Error, &result, &j.CreatedAt,
		&j.ProcessingStartedAt, &j.ProcessingCompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.EvaluationJob{}, domain.ErrNotFound
		}
		return domain.EvaluationJob{}, err
	}
	if len(result) > 0 {
		var res domain.EvaluationResult
		if err := json.Unmarshal(result, &res); err != nil {
			return domain.EvaluationJob{}, fmt.Errorf("result decode: %w", err)
		}
		j.Result = &res
	}
	return j, nil
}

func sleepCtx(ctx domain.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
