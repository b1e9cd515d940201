package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/hireval/internal/domain"
)

func TestParseVerdict_AllSections(t *testing.T) {
	t.Parallel()
	v := parseVerdict("RECOMMENDATION: CONDITIONAL_HIRE\nDETAILED FEEDBACK: Decent CV, thin project.\nSPECIFIC RECOMMENDATIONS: Ship a larger project.")
	assert.Equal(t, "CONDITIONAL_HIRE", v.recommendation)
	assert.Equal(t, "Decent CV, thin project.", v.feedback)
	assert.Equal(t, "Ship a larger project.", v.recommendations)
}

func TestParseVerdict_CaseInsensitiveAndMultiline(t *testing.T) {
	t.Parallel()
	v := parseVerdict("recommendation: hire\ndetailed feedback: Line one.\nLine two.\nspecific recommendations: None.")
	assert.Equal(t, "hire", v.recommendation)
	assert.Contains(t, v.feedback, "Line two.")
}

func TestParseVerdict_MissingHeader(t *testing.T) {
	t.Parallel()
	v := parseVerdict("The candidate seems fine overall.")
	assert.Empty(t, v.recommendation)
}

func TestNormalizeRecommendation(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   string
		want domain.Recommendation
	}{
		{"HIRE", domain.RecommendHire},
		{"Strong hire!", domain.RecommendHire},
		{"CONDITIONAL_HIRE", domain.RecommendConditionalHire},
		{"maybe hire later", domain.RecommendConditionalHire},
		{"REJECT", domain.RecommendReject},
		{"no, pass on this one", domain.RecommendReject},
		{"inconclusive", domain.RecommendConditionalHire},
		{"", domain.RecommendConditionalHire},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeRecommendation(tc.in), "input %q", tc.in)
	}
}

func TestParseCVScores(t *testing.T) {
	t.Parallel()
	s, ok := parseCVScores(map[string]any{
		"matchRate":         0.75,
		"strengths":         []any{"go", "sql"},
		"overallAssessment": "solid",
	})
	require.True(t, ok)
	assert.Equal(t, 0.75, s.matchRate)
	assert.Equal(t, 0.75, s.experienceMatch, "missing experienceMatch defaults to matchRate")
	assert.Equal(t, []string{"go", "sql"}, s.strengths)

	_, ok = parseCVScores(map[string]any{"strengths": []any{"go"}})
	assert.False(t, ok, "no usable matchRate means fallback")
}

func TestParseCVScores_StringNumbers(t *testing.T) {
	t.Parallel()
	s, ok := parseCVScores(map[string]any{"matchRate": "0.6"})
	require.True(t, ok)
	assert.Equal(t, 0.6, s.matchRate)
}

func TestParseProjectScores(t *testing.T) {
	t.Parallel()
	s, ok := parseProjectScores(map[string]any{"overallScore": 4.2, "documentationQuality": 3.1})
	require.True(t, ok)
	assert.Equal(t, 4.2, s.overallScore)
	assert.Equal(t, 4.2, s.technicalQuality, "missing sub-scores default to the overall score")
	assert.Equal(t, 3.1, s.documentationQuality)

	_, ok = parseProjectScores(map[string]any{"technicalQuality": 4.0})
	assert.False(t, ok)
}

func TestVerdictSummary(t *testing.T) {
	t.Parallel()
	v := verdict{feedback: "Good fit.", recommendations: "Mentor on infra."}
	assert.Equal(t, "Good fit.\n\nRecommendations: Mentor on infra.", v.summary())
	assert.Equal(t, "Only feedback.", verdict{feedback: "Only feedback."}.summary())
}
