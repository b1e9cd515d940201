// Package engine runs the evaluation chain: context retrieval, CV scoring,
// project scoring, and the overall recommendation.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/hireval/internal/adapter/observability"
	"github.com/fairyhunter13/hireval/internal/config"
	"github.com/fairyhunter13/hireval/internal/domain"
	"github.com/fairyhunter13/hireval/pkg/textx"
)

const retrievalTopK = 3

// Engine executes the scoring chain. Dependencies are explicit so tests can
// substitute fakes.
type Engine struct {
	ai        domain.AIClient
	retriever domain.Retriever
	cfg       config.Config
}

// New builds an Engine over the given AI client and retriever.
func New(ai domain.AIClient, retriever domain.Retriever, cfg config.Config) *Engine {
	return &Engine{ai: ai, retriever: retriever, cfg: cfg}
}

// evalContext is everything retrieval contributed to the prompts. Any slice
// may be empty; the chain proceeds regardless.
type evalContext struct {
	jobRequirements []domain.ReferenceChunk
	cvRubric        []domain.ReferenceChunk
	similarCVs      []domain.ReferenceChunk
	caseStudies     []domain.ReferenceChunk
	projectRubric   []domain.ReferenceChunk
	techReqs        []domain.ReferenceChunk
	similarProjects []domain.ReferenceChunk
}

func (c evalContext) sourceCounts() map[string]int {
	return map[string]int{
		"job_requirements":  len(c.jobRequirements),
		"cv_rubric":         len(c.cvRubric),
		"similar_cvs":       len(c.similarCVs),
		"case_studies":      len(c.caseStudies),
		"project_rubric":    len(c.projectRubric),
		"tech_requirements": len(c.techReqs),
		"similar_projects":  len(c.similarProjects),
	}
}

// Evaluate runs the full chain and returns a schema-valid result. The only
// fatal condition besides context cancellation is a quota error at the
// recommendation stage; every other model failure degrades to deterministic
// fallbacks.
func (e *Engine) Evaluate(ctx domain.Context, task domain.EvaluateTaskPayload) (*domain.EvaluationResult, error) {
	tracer := otel.Tracer("engine")
	ctx, span := tracer.Start(ctx, "engine.Evaluate")
	span.SetAttributes(attribute.String("job.id", task.JobID))
	defer span.End()

	ec := e.retrieveContext(ctx, task)

	cv := e.scoreCV(ctx, task, ec)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	project := e.scoreProject(ctx, task, ec)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	verdict, err := e.recommend(ctx, task, cv, project)
	if err != nil {
		return nil, err
	}

	result := &domain.EvaluationResult{
		CVMatchRate:      cv.matchRate,
		CVBreakdown:      deriveCVBreakdown(cv.matchRate, cv.experienceMatch, task.CVText),
		CVFeedback:       cv.feedback(),
		ProjectScore:     project.overallScore,
		ProjectBreakdown: project.breakdown(),
		OverallSummary:   verdict.summary(),
		Recommendation:   NormalizeRecommendation(verdict.recommendation),
		EvaluatedAt:      time.Now().UTC(),
		ContextSources:   ec.sourceCounts(),
	}
	result.Clamp()
	observability.ObserveEvaluation(result.CVMatchRate, result.ProjectScore)
	return result, nil
}

// retrieveContext fires the seven searches in parallel. Retriever failures
// already degrade to empty slices, so no error handling is needed here.
func (e *Engine) retrieveContext(ctx domain.Context, task domain.EvaluateTaskPayload) evalContext {
	started := time.Now()
	defer func() {
		observability.EngineStageDuration.WithLabelValues("retrieval").Observe(time.Since(started).Seconds())
	}()

	var ec evalContext
	var wg sync.WaitGroup
	search := func(dst *[]domain.ReferenceChunk, q domain.SearchQuery) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			chunks, _ := e.retriever.Search(ctx, q)
			*dst = chunks
		}()
	}

	search(&ec.jobRequirements, domain.SearchQuery{
		Text: task.JobTitle, Collection: domain.CollectionJobDescriptions, MaxResults: retrievalTopK,
	})
	search(&ec.cvRubric, domain.SearchQuery{
		Text:       task.JobTitle + " CV evaluation criteria",
		Collection: domain.CollectionRubrics, MaxResults: retrievalTopK,
		Filter: map[string]string{"doc_type": domain.DocTypeCVRubric},
	})
	search(&ec.similarCVs, domain.SearchQuery{
		Text: textx.Head(task.CVText, 500), Collection: domain.CollectionCVDocuments, MaxResults: retrievalTopK,
	})
	search(&ec.caseStudies, domain.SearchQuery{
		Text: task.JobTitle, Collection: domain.CollectionCaseStudies, MaxResults: retrievalTopK,
	})
	search(&ec.projectRubric, domain.SearchQuery{
		Text:       task.JobTitle + " project evaluation criteria",
		Collection: domain.CollectionRubrics, MaxResults: retrievalTopK,
		Filter: map[string]string{"doc_type": domain.DocTypeProjectRubric},
	})
	search(&ec.techReqs, domain.SearchQuery{
		Text: task.JobTitle + " technical requirements", Collection: domain.CollectionJobDescriptions, MaxResults: retrievalTopK,
	})
	search(&ec.similarProjects, domain.SearchQuery{
		Text: textx.Head(task.ProjectText, 500), Collection: domain.CollectionProjectDocuments, MaxResults: retrievalTopK,
	})

	wg.Wait()
	return ec
}

func (e *Engine) scoreCV(ctx domain.Context, task domain.EvaluateTaskPayload, ec evalContext) cvScores {
	started := time.Now()
	defer func() {
		observability.EngineStageDuration.WithLabelValues("cv_scoring").Observe(time.Since(started).Seconds())
	}()

	system, user := e.cvPrompt(task, ec)
	ev, err := e.ai.Evaluate(ctx, system, user, domain.ChatOptions{})
	if err == nil && ev.Parsed != nil {
		if scores, ok := parseCVScores(ev.Parsed); ok {
			return scores
		}
	}
	observability.EngineFallbackTotal.WithLabelValues("cv_scoring").Inc()
	slog.Warn("cv scoring fell back to deterministic scorer",
		slog.String("job_id", task.JobID), slog.Any("error", err))
	return FallbackCVScore(task.JobTitle, task.CVText)
}

func (e *Engine) scoreProject(ctx domain.Context, task domain.EvaluateTaskPayload, ec evalContext) projectScores {
	started := time.Now()
	defer func() {
		observability.EngineStageDuration.WithLabelValues("project_scoring").Observe(time.Since(started).Seconds())
	}()

	system, user := e.projectPrompt(task, ec)
	ev, err := e.ai.Evaluate(ctx, system, user, domain.ChatOptions{})
	if err == nil && ev.Parsed != nil {
		if scores, ok := parseProjectScores(ev.Parsed); ok {
			return scores
		}
	}
	observability.EngineFallbackTotal.WithLabelValues("project_scoring").Inc()
	slog.Warn("project scoring fell back to deterministic scorer",
		slog.String("job_id", task.JobID), slog.Any("error", err))
	return FallbackProjectScore(task.ProjectText)
}

// recommend is the only stage where a quota error is fatal: there is no
// cheaper model to fall back to, and silently inventing a hire verdict under
// billing exhaustion would be worse than failing the job.
func (e *Engine) recommend(ctx domain.Context, task domain.EvaluateTaskPayload, cv cvScores, project projectScores) (verdict, error) {
	started := time.Now()
	defer func() {
		observability.EngineStageDuration.WithLabelValues("recommendation").Observe(time.Since(started).Seconds())
	}()

	system, user := e.recommendationPrompt(task, cv, project)
	res, err := e.ai.Chat(ctx, []domain.ChatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}, domain.ChatOptions{})
	if err != nil {
		if errors.Is(err, domain.ErrQuotaExhausted) {
			return verdict{}, fmt.Errorf("op=engine.recommend: %w", err)
		}
		if ctx.Err() != nil {
			return verdict{}, ctx.Err()
		}
		observability.EngineFallbackTotal.WithLabelValues("recommendation").Inc()
		slog.Warn("recommendation fell back to score heuristic",
			slog.String("job_id", task.JobID), slog.Any("error", err))
		return fallbackVerdict(cv, project), nil
	}
	v := parseVerdict(res.Content)
	if v.recommendation == "" {
		observability.EngineFallbackTotal.WithLabelValues("recommendation").Inc()
		return fallbackVerdict(cv, project), nil
	}
	return v, nil
}
