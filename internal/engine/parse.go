package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/fairyhunter13/hireval/internal/domain"
)

// cvScores is the parsed (or fallback) outcome of the CV scoring stage.
type cvScores struct {
	matchRate         float64
	experienceMatch   float64
	strengths         []string
	weaknesses        []string
	missingSkills     []string
	overallAssessment string
}

func (s cvScores) feedback() string {
	var b strings.Builder
	b.WriteString(s.overallAssessment)
	if len(s.strengths) > 0 {
		fmt.Fprintf(&b, " Strengths: %s.", strings.Join(s.strengths, ", "))
	}
	if len(s.weaknesses) > 0 {
		fmt.Fprintf(&b, " Weaknesses: %s.", strings.Join(s.weaknesses, ", "))
	}
	if len(s.missingSkills) > 0 {
		fmt.Fprintf(&b, " Missing skills: %s.", strings.Join(s.missingSkills, ", "))
	}
	return strings.TrimSpace(b.String())
}

// projectScores is the parsed (or fallback) outcome of the project stage.
type projectScores struct {
	overallScore         float64
	technicalQuality     float64
	complexityLevel      float64
	innovationScore      float64
	documentationQuality float64
	strengths            []string
	improvements         []string
}

func (s projectScores) breakdown() domain.ProjectBreakdown {
	return domain.ProjectBreakdown{
		Correctness:   s.overallScore,
		CodeQuality:   s.technicalQuality,
		Resilience:    s.complexityLevel,
		Documentation: s.documentationQuality,
		Creativity:    s.innovationScore,
	}
}

// verdict is the parsed recommendation stage output.
type verdict struct {
	recommendation  string
	feedback        string
	recommendations string
}

func (v verdict) summary() string {
	out := strings.TrimSpace(v.feedback)
	if v.recommendations != "" {
		if out != "" {
			out += "\n\n"
		}
		out += "Recommendations: " + strings.TrimSpace(v.recommendations)
	}
	return out
}

// parseCVScores validates the model's JSON. A payload without a usable
// matchRate is rejected so the caller can fall back.
func parseCVScores(m map[string]any) (cvScores, bool) {
	rate, ok := toFloat(m["matchRate"])
	if !ok {
		return cvScores{}, false
	}
	exp, ok := toFloat(m["experienceMatch"])
	if !ok {
		exp = rate
	}
	return cvScores{
		matchRate:         rate,
		experienceMatch:   exp,
		strengths:         toStrings(m["strengths"]),
		weaknesses:        toStrings(m["weaknesses"]),
		missingSkills:     toStrings(m["missingSkills"]),
		overallAssessment: toString(m["overallAssessment"]),
	}, true
}

func parseProjectScores(m map[string]any) (projectScores, bool) {
	overall, ok := toFloat(m["overallScore"])
	if !ok {
		return projectScores{}, false
	}
	s := projectScores{
		overallScore: overall,
		strengths:    toStrings(m["strengths"]),
		improvements: toStrings(m["improvements"]),
	}
	s.technicalQuality = floatOr(m["technicalQuality"], overall)
	s.complexityLevel = floatOr(m["complexityLevel"], overall)
	s.innovationScore = floatOr(m["innovationScore"], overall)
	s.documentationQuality = floatOr(m["documentationQuality"], overall)
	return s, true
}

var (
	recommendationRe = regexp.MustCompile(`(?i)RECOMMENDATION:\s*(.+)`)
	feedbackRe       = regexp.MustCompile(`(?is)DETAILED FEEDBACK:\s*(.*?)(?:SPECIFIC RECOMMENDATIONS:|$)`)
	specificRe       = regexp.MustCompile(`(?is)SPECIFIC RECOMMENDATIONS:\s*(.*)`)
)

// parseVerdict extracts the three anchored sections of the recommendation
// stage output. A missing RECOMMENDATION header yields an empty verdict.
func parseVerdict(content string) verdict {
	var v verdict
	if m := recommendationRe.FindStringSubmatch(content); m != nil {
		v.recommendation = strings.TrimSpace(m[1])
	}
	if m := feedbackRe.FindStringSubmatch(content); m != nil {
		v.feedback = strings.TrimSpace(m[1])
	}
	if m := specificRe.FindStringSubmatch(content); m != nil {
		v.recommendations = strings.TrimSpace(m[1])
	}
	return v
}

// NormalizeRecommendation maps free-form verdict text onto the three allowed
// values by case-insensitive substring match.
func NormalizeRecommendation(s string) domain.Recommendation {
	u := strings.ToUpper(s)
	switch {
	case strings.Contains(u, "CONDITIONAL"), strings.Contains(u, "MAYBE"):
		return domain.RecommendConditionalHire
	case strings.Contains(u, "REJECT"):
		return domain.RecommendReject
	case strings.Contains(u, "HIRE"):
		return domain.RecommendHire
	case strings.Contains(u, "NO"):
		return domain.RecommendReject
	default:
		return domain.RecommendConditionalHire
	}
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func floatOr(v any, fallback float64) float64 {
	if f, ok := toFloat(v); ok {
		return f
	}
	return fallback
}

func toString(v any) string {
	s, _ := v.(string)
	return s
}

func toStrings(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
