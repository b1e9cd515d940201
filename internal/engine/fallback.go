package engine

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fairyhunter13/hireval/internal/domain"
)

// Keyword classes used by the deterministic scorers. They exist for liveness
// when the model is unreachable, not for evaluation quality.
var (
	experienceKeywords  = []string{"experience", "years", "worked", "developed"}
	skillKeywords       = []string{"javascript", "python", "java", "react", "node", "sql", "database"}
	achievementKeywords = []string{"led", "managed", "built", "created", "achieved", "improved"}

	codeKeywords = []string{"api", "endpoint", "service", "database", "queue", "test", "deploy"}
	docKeywords  = []string{"readme", "documentation", "documented", "setup", "instructions"}

	tokenRe = regexp.MustCompile(`[a-z0-9][a-z0-9.+#-]*`)
)

// FallbackCVScore scores a CV without the model: token overlap between the
// job title and the CV drives matchRate, keyword classes modulate the rest.
func FallbackCVScore(jobTitle, cvText string) cvScores {
	cvLower := strings.ToLower(cvText)
	jobTokens := tokenize(jobTitle)

	matched := 0
	for tok := range jobTokens {
		if strings.Contains(cvLower, tok) {
			matched++
		}
	}
	rate := 0.3
	if len(jobTokens) > 0 {
		rate = clampF(float64(matched)/float64(len(jobTokens)), 0.3, 0.9)
	}

	exp := rate
	if containsAny(cvLower, experienceKeywords) {
		exp = clampF(rate+0.1, 0, 1)
	}
	return cvScores{
		matchRate:       rate,
		experienceMatch: exp,
		overallAssessment: fmt.Sprintf(
			"Keyword-based assessment: %d of %d role terms found in the CV.", matched, len(jobTokens)),
	}
}

// FallbackProjectScore scores a project report from its length and keyword
// signals: base 3.0, up to +1.0 for substance, +0.5 for code vocabulary,
// +0.3 for documentation vocabulary, capped at 5.0.
func FallbackProjectScore(projectText string) projectScores {
	lower := strings.ToLower(projectText)
	score := 3.0
	lengthBonus := float64(len(projectText)) / 2000 * 0.5
	if lengthBonus > 1.0 {
		lengthBonus = 1.0
	}
	score += lengthBonus

	hasCode := containsAny(lower, codeKeywords)
	if hasCode {
		score += 0.5
	}
	hasDocs := containsAny(lower, docKeywords)
	if hasDocs {
		score += 0.3
	}
	if score > 5.0 {
		score = 5.0
	}

	docScore := 3.0
	if hasDocs {
		docScore = 4.0
	}
	return projectScores{
		overallScore:         score,
		technicalQuality:     score,
		complexityLevel:      score,
		innovationScore:      score,
		documentationQuality: docScore,
		improvements:         []string{"Resubmit when model-assisted review is available for a detailed assessment."},
	}
}

// deriveCVBreakdown spreads the headline match rate across the four
// sub-scores, nudged within ±0.15 by keyword-class presence in the CV.
func deriveCVBreakdown(matchRate, experienceMatch float64, cvText string) domain.CVBreakdown {
	lower := strings.ToLower(cvText)
	mod := func(present bool) float64 {
		if present {
			return clampF(matchRate+0.15, 0, 1)
		}
		return clampF(matchRate-0.15, 0, 1)
	}
	return domain.CVBreakdown{
		TechnicalSkills: mod(containsAny(lower, skillKeywords)),
		ExperienceLevel: clampF(experienceMatch, 0, 1),
		Achievements:    mod(containsAny(lower, achievementKeywords)),
		CulturalFit:     clampF(matchRate, 0, 1),
	}
}

// fallbackVerdict derives the hire decision from the numeric scores when the
// recommendation call fails for a non-quota reason.
func fallbackVerdict(cv cvScores, project projectScores) verdict {
	rec := domain.RecommendConditionalHire
	switch {
	case cv.matchRate >= 0.75 && project.overallScore >= 4.0:
		rec = domain.RecommendHire
	case cv.matchRate < 0.4 || project.overallScore < 2.5:
		rec = domain.RecommendReject
	}
	return verdict{
		recommendation: string(rec),
		feedback: fmt.Sprintf(
			"Automated verdict from scores: CV match %.2f, project %.1f/5.",
			cv.matchRate, project.overallScore),
	}
}

func tokenize(s string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, tok := range tokenRe.FindAllString(strings.ToLower(s), -1) {
		if len(tok) >= 2 {
			out[tok] = struct{}{}
		}
	}
	return out
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
