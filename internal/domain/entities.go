// Package domain holds the core entities, the job state machine and the ports
// implemented by adapters. It stays free of adapter imports.
package domain

import (
	"context"
	"time"
)

// Document types accepted by the pipeline and the reference collections.
const (
	DocTypeCV             = "cv"
	DocTypeProjectReport  = "project_report"
	DocTypeJobDescription = "job_description"
	DocTypeCaseStudy      = "case_study"
	DocTypeCVRubric       = "cv_rubric"
	DocTypeProjectRubric  = "project_rubric"
)

// Reference collection names in the retrieval index.
const (
	CollectionJobDescriptions  = "job_descriptions"
	CollectionCVDocuments      = "cv_documents"
	CollectionProjectDocuments = "project_documents"
	CollectionRubrics          = "rubrics"
	CollectionCaseStudies      = "case_studies"
)

// Document is owned by the upload subsystem; the core only reads it.
// Text must be present before the document can feed the engine.
type Document struct {
	ID         string
	Type       string
	OwnerID    string
	Text       string
	Vectorized bool
}

// JobStatus enumerates the five states of an evaluation job.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
	JobCancelled  JobStatus = "cancelled"
)

// Valid reports whether s is one of the five known states.
func (s JobStatus) Valid() bool {
	switch s {
	case JobQueued, JobProcessing, JobCompleted, JobFailed, JobCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is permitted out of s.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// CanTransitionTo enforces the state machine:
//
//	queued     -> processing | cancelled | failed
//	processing -> completed | failed | cancelled
//
// failed from queued covers enqueue failures observed by the dispatcher.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	if s.Terminal() {
		return false
	}
	switch s {
	case JobQueued:
		return next == JobProcessing || next == JobCancelled || next == JobFailed
	case JobProcessing:
		return next == JobCompleted || next == JobFailed || next == JobCancelled
	}
	return false
}

// Recommendation is the final hire verdict.
type Recommendation string

const (
	RecommendHire            Recommendation = "HIRE"
	RecommendConditionalHire Recommendation = "CONDITIONAL_HIRE"
	RecommendReject          Recommendation = "REJECT"
)

// CVBreakdown sub-scores, each a normalized fraction in [0,1].
type CVBreakdown struct {
	TechnicalSkills float64 `json:"technical_skills"`
	ExperienceLevel float64 `json:"experience_level"`
	Achievements    float64 `json:"achievements"`
	CulturalFit     float64 `json:"cultural_fit"`
}

// ProjectBreakdown sub-scores, each in [1,5].
type ProjectBreakdown struct {
	Correctness   float64 `json:"correctness"`
	CodeQuality   float64 `json:"code_quality"`
	Resilience    float64 `json:"resilience"`
	Documentation float64 `json:"documentation"`
	Creativity    float64 `json:"creativity"`
}

// EvaluationResult is embedded in a completed job.
type EvaluationResult struct {
	CVMatchRate      float64          `json:"cv_match_rate"`
	CVBreakdown      CVBreakdown      `json:"cv_breakdown"`
	CVFeedback       string           `json:"cv_feedback"`
	ProjectScore     float64          `json:"project_score"`
	ProjectBreakdown ProjectBreakdown `json:"project_breakdown"`
	OverallSummary   string           `json:"overall_summary"`
	Recommendation   Recommendation   `json:"recommendation"`
	EvaluatedAt      time.Time        `json:"evaluated_at"`
	ContextSources   map[string]int   `json:"context_sources,omitempty"`
}

// maxFeedbackLen bounds free-form text fields stored with a result.
const maxFeedbackLen = 8192

// Clamp forces every numeric field into its declared range and bounds text
// length. LLM numerics are never trusted unclamped.
func (r *EvaluationResult) Clamp() {
	r.CVMatchRate = clamp(r.CVMatchRate, 0, 1)
	r.CVBreakdown.TechnicalSkills = clamp(r.CVBreakdown.TechnicalSkills, 0, 1)
	r.CVBreakdown.ExperienceLevel = clamp(r.CVBreakdown.ExperienceLevel, 0, 1)
	r.CVBreakdown.Achievements = clamp(r.CVBreakdown.Achievements, 0, 1)
	r.CVBreakdown.CulturalFit = clamp(r.CVBreakdown.CulturalFit, 0, 1)
	r.ProjectScore = clamp(r.ProjectScore, 1, 5)
	r.ProjectBreakdown.Correctness = clamp(r.ProjectBreakdown.Correctness, 1, 5)
	r.ProjectBreakdown.CodeQuality = clamp(r.ProjectBreakdown.CodeQuality, 1, 5)
	r.ProjectBreakdown.Resilience = clamp(r.ProjectBreakdown.Resilience, 1, 5)
	r.ProjectBreakdown.Documentation = clamp(r.ProjectBreakdown.Documentation, 1, 5)
	r.ProjectBreakdown.Creativity = clamp(r.ProjectBreakdown.Creativity, 1, 5)
	r.CVFeedback = truncate(r.CVFeedback, maxFeedbackLen)
	r.OverallSummary = truncate(r.OverallSummary, maxFeedbackLen)
	switch r.Recommendation {
	case RecommendHire, RecommendConditionalHire, RecommendReject:
	default:
		r.Recommendation = RecommendConditionalHire
	}
}

// WeightedAggregate folds the headline numbers into a single [0,1] score for
// consumers: 0.4*cv + 0.35*(project-1)/4 + 0.25*matchRate. Not stored.
func (r EvaluationResult) WeightedAggregate() float64 {
	cv := (r.CVBreakdown.TechnicalSkills + r.CVBreakdown.ExperienceLevel +
		r.CVBreakdown.Achievements + r.CVBreakdown.CulturalFit) / 4
	return 0.4*cv + 0.35*(r.ProjectScore-1)/4 + 0.25*r.CVMatchRate
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// EvaluationJob is the durable record of one end-to-end scoring request.
// JobID is globally unique; Version strictly increases on every mutation.
type EvaluationJob struct {
	ID                    string // surrogate id
	JobID                 string
	OwnerID               string
	JobTitle              string
	CVID                  string
	ProjectID             string
	Status                JobStatus
	Version               int64
	RetryCount            int
	Error                 string
	Result                *EvaluationResult
	CreatedAt             time.Time
	ProcessingStartedAt   *time.Time
	ProcessingCompletedAt *time.Time
}

// EvaluateTaskPayload is the work item placed on the queue by the dispatcher.
type EvaluateTaskPayload struct {
	JobID       string `json:"job_id"`
	JobRecordID string `json:"job_record_id"`
	JobTitle    string `json:"job_title"`
	CVText      string `json:"cv_text"`
	ProjectText string `json:"project_text"`
	OwnerID     string `json:"owner_id"`
}

// ReferenceChunk is one indexed slice of a reference document.
type ReferenceChunk struct {
	ID         string
	SourceDoc  string
	Collection string
	Text       string
	Score      float64
	Metadata   map[string]any
}

// Context aliases context.Context so ports read uniformly.
type Context = context.Context
