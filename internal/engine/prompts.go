package engine

import (
	"fmt"
	"strings"

	"github.com/fairyhunter13/hireval/internal/adapter/llm"
	"github.com/fairyhunter13/hireval/internal/domain"
)

const (
	cvSystemPrompt = `You are a technical recruiter scoring a candidate CV against a role.
Respond with a single JSON object and nothing else. The object must have:
"matchRate" (0.0-1.0), "experienceMatch" (0.0-1.0), "strengths" (array of strings),
"weaknesses" (array of strings), "missingSkills" (array of strings),
"overallAssessment" (string).`

	projectSystemPrompt = `You are a senior engineer reviewing a candidate project report.
Respond with a single JSON object and nothing else. The object must have:
"overallScore" (1.0-5.0), "technicalQuality" (1.0-5.0), "complexityLevel" (1.0-5.0),
"innovationScore" (1.0-5.0), "documentationQuality" (1.0-5.0),
"strengths" (array of strings), "improvements" (array of strings).`

	recommendationSystemPrompt = `You are a hiring committee member producing the final verdict.
Respond in plain text with exactly three sections, in this order:
RECOMMENDATION: one of HIRE, CONDITIONAL_HIRE, REJECT
DETAILED FEEDBACK: a short paragraph justifying the verdict
SPECIFIC RECOMMENDATIONS: concrete next steps for the candidate`
)

// docBudget caps how many prompt tokens the candidate document itself may
// consume; the remainder of the budget is left for retrieved context and
// instructions.
func (e *Engine) docBudget() int {
	b := e.cfg.PromptTokenBudget
	if b <= 0 {
		b = 6000
	}
	return b / 2
}

func (e *Engine) clip(text string) string {
	return llm.TruncateToTokens(e.cfg.ChatModel, text, e.docBudget())
}

func (e *Engine) cvPrompt(task domain.EvaluateTaskPayload, ec evalContext) (system, user string) {
	var b strings.Builder
	fmt.Fprintf(&b, "Job title: %s\n\n", task.JobTitle)
	writeContext(&b, "Job requirements", ec.jobRequirements)
	writeContext(&b, "Scoring rubric", ec.cvRubric)
	writeContext(&b, "Comparable CVs", ec.similarCVs)
	writeContext(&b, "Case studies", ec.caseStudies)
	fmt.Fprintf(&b, "Candidate CV:\n%s\n", e.clip(task.CVText))
	return cvSystemPrompt, b.String()
}

func (e *Engine) projectPrompt(task domain.EvaluateTaskPayload, ec evalContext) (system, user string) {
	var b strings.Builder
	fmt.Fprintf(&b, "Job title: %s\n\n", task.JobTitle)
	writeContext(&b, "Technical requirements", ec.techReqs)
	writeContext(&b, "Scoring rubric", ec.projectRubric)
	writeContext(&b, "Comparable projects", ec.similarProjects)
	fmt.Fprintf(&b, "Candidate project report:\n%s\n", e.clip(task.ProjectText))
	return projectSystemPrompt, b.String()
}

func (e *Engine) recommendationPrompt(task domain.EvaluateTaskPayload, cv cvScores, project projectScores) (system, user string) {
	var b strings.Builder
	fmt.Fprintf(&b, "Job title: %s\n\n", task.JobTitle)
	fmt.Fprintf(&b, "CV match rate: %.2f\n", cv.matchRate)
	fmt.Fprintf(&b, "CV assessment: %s\n", cv.overallAssessment)
	if len(cv.strengths) > 0 {
		fmt.Fprintf(&b, "CV strengths: %s\n", strings.Join(cv.strengths, "; "))
	}
	if len(cv.missingSkills) > 0 {
		fmt.Fprintf(&b, "Missing skills: %s\n", strings.Join(cv.missingSkills, "; "))
	}
	fmt.Fprintf(&b, "\nProject score: %.1f/5\n", project.overallScore)
	fmt.Fprintf(&b, "Technical quality: %.1f, complexity: %.1f, innovation: %.1f, documentation: %.1f\n",
		project.technicalQuality, project.complexityLevel, project.innovationScore, project.documentationQuality)
	if len(project.improvements) > 0 {
		fmt.Fprintf(&b, "Suggested improvements: %s\n", strings.Join(project.improvements, "; "))
	}
	return recommendationSystemPrompt, b.String()
}

// writeContext appends retrieved chunks under a heading, skipping empty
// sections entirely so degraded retrieval leaves no trace in the prompt.
func writeContext(b *strings.Builder, heading string, chunks []domain.ReferenceChunk) {
	if len(chunks) == 0 {
		return
	}
	fmt.Fprintf(b, "%s:\n", heading)
	for _, c := range chunks {
		fmt.Fprintf(b, "- %s\n", c.Text)
	}
	b.WriteString("\n")
}
