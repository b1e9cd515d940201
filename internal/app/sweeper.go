// Package app holds process-level machinery shared by the binaries: the
// stale-job sweeper and readiness checks.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/hireval/internal/domain"
)

const sweepPageSize = 100

// Sweeper repairs jobs the happy path lost track of:
//   - queued rows older than the grace window (a crash between create and
//     enqueue leaves a row with no backing work item) are re-enqueued once,
//     then marked failed;
//   - processing rows older than the max age (worker died mid-evaluation)
//     are marked failed.
type Sweeper struct {
	jobs  domain.JobStore
	docs  domain.DocumentProvider
	queue domain.Queue

	interval      time.Duration
	queuedGrace   time.Duration
	maxProcessing time.Duration
}

// NewSweeper constructs a Sweeper. Non-positive durations fall back to
// conservative defaults.
func NewSweeper(jobs domain.JobStore, docs domain.DocumentProvider, queue domain.Queue,
	interval, queuedGrace, maxProcessing time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if queuedGrace <= 0 {
		queuedGrace = 5 * time.Minute
	}
	if maxProcessing <= 0 {
		maxProcessing = 10 * time.Minute
	}
	return &Sweeper{
		jobs: jobs, docs: docs, queue: queue,
		interval: interval, queuedGrace: queuedGrace, maxProcessing: maxProcessing,
	}
}

// Run sweeps once immediately and then on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.SweepOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			slog.Info("sweeper stopping")
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs a single pass over both stale populations.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	tracer := otel.Tracer("app.sweeper")
	ctx, span := tracer.Start(ctx, "Sweeper.SweepOnce")
	defer span.End()

	requeued, failed := s.sweepQueued(ctx)
	failed += s.sweepProcessing(ctx)

	span.SetAttributes(
		attribute.Int("sweep.requeued", requeued),
		attribute.Int("sweep.failed", failed),
	)
	if requeued > 0 || failed > 0 {
		slog.Info("sweep pass finished",
			slog.Int("requeued", requeued), slog.Int("failed", failed))
	}
}

// sweepQueued handles queued rows whose creation predates the grace window.
// First sighting gets one re-enqueue; a row that is still stale after a
// re-enqueue is marked failed.
func (s *Sweeper) sweepQueued(ctx context.Context) (requeued, failed int) {
	cutoff := time.Now().UTC().Add(-s.queuedGrace)
	stale, err := s.jobs.ListStale(ctx, domain.JobQueued, cutoff, sweepPageSize)
	if err != nil {
		slog.Error("sweep list queued failed", slog.Any("error", err))
		return 0, 0
	}
	for _, j := range stale {
		if j.RetryCount > 0 {
			if s.markFailed(ctx, j, "job stayed queued past the grace window after a re-enqueue") {
				failed++
			}
			continue
		}
		if s.requeue(ctx, j) {
			requeued++
		}
	}
	return requeued, failed
}

// sweepProcessing fails processing rows that exceeded the max age.
func (s *Sweeper) sweepProcessing(ctx context.Context) (failed int) {
	cutoff := time.Now().UTC().Add(-s.maxProcessing)
	stale, err := s.jobs.ListStale(ctx, domain.JobProcessing, cutoff, sweepPageSize)
	if err != nil {
		slog.Error("sweep list processing failed", slog.Any("error", err))
		return 0
	}
	msg := fmt.Sprintf("job exceeded maximum processing age %v", s.maxProcessing)
	for _, j := range stale {
		if s.markFailed(ctx, j, msg) {
			failed++
		}
	}
	return failed
}

// requeue rebuilds the work item from the stored document references. Jobs
// whose documents can no longer be read are marked failed instead.
func (s *Sweeper) requeue(ctx context.Context, j domain.EvaluationJob) bool {
	cv, err := s.docs.GetDocument(ctx, j.CVID, j.OwnerID)
	if err != nil {
		s.markFailed(ctx, j, "re-enqueue impossible: cv document unreadable")
		return false
	}
	project, err := s.docs.GetDocument(ctx, j.ProjectID, j.OwnerID)
	if err != nil {
		s.markFailed(ctx, j, "re-enqueue impossible: project document unreadable")
		return false
	}

	payload := domain.EvaluateTaskPayload{
		JobID:       j.JobID,
		JobRecordID: j.ID,
		JobTitle:    j.JobTitle,
		CVText:      cv.Text,
		ProjectText: project.Text,
		OwnerID:     j.OwnerID,
	}
	if _, err := s.queue.EnqueueEvaluate(ctx, payload); err != nil {
		slog.Error("sweep re-enqueue failed",
			slog.String("job_id", j.JobID), slog.Any("error", err))
		return false
	}
	if _, err := s.jobs.UpdateOptimistic(ctx, j.JobID, j.Version, domain.JobPatch{
		RetryCountDelta: 1,
	}); err != nil {
		// A conflict means someone else moved the job; the duplicate delivery
		// is absorbed by the worker's terminal-state check.
		slog.Warn("sweep retry count update lost",
			slog.String("job_id", j.JobID), slog.Any("error", err))
	}
	slog.Info("sweep re-enqueued stale queued job", slog.String("job_id", j.JobID))
	return true
}

func (s *Sweeper) markFailed(ctx context.Context, j domain.EvaluationJob, msg string) bool {
	_, err := s.jobs.TransitionStatus(ctx, j.JobID, domain.JobFailed, domain.JobPatch{
		Error: &msg,
	})
	if err != nil {
		slog.Error("sweep mark failed did not land",
			slog.String("job_id", j.JobID), slog.Any("error", err))
		return false
	}
	slog.Warn("sweep marked job failed",
		slog.String("job_id", j.JobID), slog.String("reason", msg))
	return true
}
