// Package worker drives one evaluation task from the queue through the
// engine and into a terminal job state.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/hireval/internal/adapter/observability"
	"github.com/fairyhunter13/hireval/internal/domain"
	"github.com/fairyhunter13/hireval/pkg/textx"
)

// quotaFailureMessage is the operator-facing message for quota failures. It
// deliberately says nothing about providers or internals.
const quotaFailureMessage = "Evaluation temporarily unavailable due to API usage limits. Please try again later."

// maxErrorMessageLen bounds the stored error message.
const maxErrorMessageLen = 200

// Engine scores one task end to end.
type Engine interface {
	Evaluate(ctx domain.Context, task domain.EvaluateTaskPayload) (*domain.EvaluationResult, error)
}

// Vectorizer feeds candidate documents into the similarity collections.
type Vectorizer interface {
	Vectorize(ctx domain.Context, job domain.EvaluationJob) error
}

// Worker handles delivered tasks. Terminal writes go through optimistic
// locking so duplicate deliveries cannot double-write.
type Worker struct {
	store      domain.JobStore
	engine     Engine
	vectorizer Vectorizer // optional
	// delay before the best-effort second attempt at a terminal write
	retryDelay time.Duration
}

// New constructs a Worker.
func New(store domain.JobStore, engine Engine) *Worker {
	return &Worker{store: store, engine: engine, retryDelay: 500 * time.Millisecond}
}

// WithVectorizer enables candidate indexing into the similarity collections.
func (w *Worker) WithVectorizer(v Vectorizer) *Worker {
	w.vectorizer = v
	return w
}

// Handle processes one delivered task. A nil return means the record may be
// acknowledged; job-level failures are recorded in the store, not returned.
func (w *Worker) Handle(ctx context.Context, task domain.EvaluateTaskPayload) error {
	tracer := otel.Tracer("worker")
	ctx, span := tracer.Start(ctx, "worker.Handle")
	span.SetAttributes(attribute.String("job.id", task.JobID))
	defer span.End()

	job, err := w.store.Get(ctx, task.JobID)
	if errors.Is(err, domain.ErrNotFound) {
		slog.Warn("task references unknown job, dropping", slog.String("job_id", task.JobID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("op=worker.load: %w", err)
	}
	if job.Status.Terminal() {
		slog.Info("duplicate delivery for terminal job, skipping",
			slog.String("job_id", task.JobID), slog.String("status", string(job.Status)))
		return nil
	}

	if job.Status == domain.JobQueued {
		if _, err := w.store.TransitionStatus(ctx, task.JobID, domain.JobProcessing, domain.JobPatch{}); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				// cancelled out from under us, or another worker claimed it
				slog.Info("job no longer claimable, skipping", slog.String("job_id", task.JobID))
				return nil
			}
			return fmt.Errorf("op=worker.claim: %w", err)
		}
	}
	observability.StartProcessingJob("evaluate")

	if w.vectorizer != nil {
		// best effort: similarity retrieval degrades gracefully without it
		if err := w.vectorizer.Vectorize(ctx, job); err != nil {
			slog.Warn("candidate vectorization skipped",
				slog.String("job_id", task.JobID), slog.Any("error", err))
		}
	}

	result, evalErr := w.runEngine(ctx, task)
	if evalErr != nil {
		if ctx.Err() != nil {
			// shutdown mid-evaluation: leave the job in processing for the
			// sweeper rather than recording a misleading failure
			observability.AbandonJob("evaluate")
			return ctx.Err()
		}
		msg := failureMessage(evalErr)
		w.writeTerminal(ctx, task.JobID, domain.JobFailed, domain.JobPatch{
			Error:           &msg,
			RetryCountDelta: 1,
		})
		observability.FailJob("evaluate")
		slog.Error("evaluation failed",
			slog.String("job_id", task.JobID), slog.Any("error", evalErr))
		return nil
	}

	w.writeTerminal(ctx, task.JobID, domain.JobCompleted, domain.JobPatch{Result: result})
	observability.CompleteJob("evaluate")
	slog.Info("evaluation completed",
		slog.String("job_id", task.JobID),
		slog.Float64("cv_match_rate", result.CVMatchRate),
		slog.Float64("project_score", result.ProjectScore))
	return nil
}

// runEngine shields the worker from engine panics; a panicking stage reads as
// a failed job, not a dead worker.
func (w *Worker) runEngine(ctx context.Context, task domain.EvaluateTaskPayload) (result *domain.EvaluationResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("engine panic: %v", r)
		}
	}()
	return w.engine.Evaluate(ctx, task)
}

// writeTerminal records the terminal state. A conflict means another writer
// already finished the job and is final; other errors get one best-effort
// retry, after which the job is left in processing for operations to surface.
func (w *Worker) writeTerminal(ctx context.Context, jobID string, status domain.JobStatus, patch domain.JobPatch) {
	_, err := w.store.TransitionStatus(ctx, jobID, status, patch)
	if err == nil {
		return
	}
	if errors.Is(err, domain.ErrConflict) {
		slog.Warn("terminal write lost the race, keeping the winner",
			slog.String("job_id", jobID), slog.String("status", string(status)))
		return
	}
	slog.Error("terminal write failed, retrying once",
		slog.String("job_id", jobID), slog.Any("error", err))

	select {
	case <-ctx.Done():
		return
	case <-time.After(w.retryDelay):
	}
	if _, err := w.store.TransitionStatus(ctx, jobID, status, patch); err != nil {
		slog.Error("terminal write failed twice, job left in processing",
			slog.String("job_id", jobID), slog.Any("error", err))
	}
}

// failureMessage reduces an engine error to a single stored sentence.
func failureMessage(err error) string {
	if errors.Is(err, domain.ErrQuotaExhausted) {
		return quotaFailureMessage
	}
	msg := textx.FirstSentence(textx.Sanitize(err.Error()))
	if msg == "" {
		msg = "Evaluation failed unexpectedly."
	}
	return textx.Head(msg, maxErrorMessageLen)
}
