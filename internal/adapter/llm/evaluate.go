package llm

import (
	"encoding/json"
	"strings"

	"log/slog"

	"github.com/fairyhunter13/hireval/internal/domain"
)

// Evaluate runs a chat call and attaches a best-effort JSON parse of the
// response. The raw text is always returned; Parsed stays nil when neither a
// strict parse nor balanced-object extraction yields an object. Callers
// schema-validate the parsed payload themselves.
func (c *Client) Evaluate(ctx domain.Context, systemPrompt, userPrompt string, opts domain.ChatOptions) (domain.Evaluation, error) {
	res, err := c.Chat(ctx, []domain.ChatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	}, opts)
	if err != nil {
		return domain.Evaluation{}, err
	}
	ev := domain.Evaluation{Raw: res.Content}
	ev.Parsed = ParseLooseJSON(res.Content)
	if ev.Parsed == nil {
		slog.Warn("evaluate response carried no parseable JSON object",
			slog.Int("response_length", len(res.Content)))
	}
	return ev, nil
}

// ParseLooseJSON attempts a strict parse first, then strips markdown fences,
// then extracts the largest balanced {...} substring. Returns nil on failure.
func ParseLooseJSON(s string) map[string]any {
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err == nil {
		return m
	}
	cleaned := stripMarkdownFences(s)
	if cleaned != s {
		if err := json.Unmarshal([]byte(cleaned), &m); err == nil {
			return m
		}
	}
	if obj := ExtractBalancedObject(cleaned); obj != "" {
		if err := json.Unmarshal([]byte(obj), &m); err == nil {
			return m
		}
	}
	return nil
}

func stripMarkdownFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// ExtractBalancedObject returns the largest balanced {...} substring of s,
// tracking string literals and escapes so braces inside values do not break
// the balance count. Empty string when none exists.
func ExtractBalancedObject(s string) string {
	best := ""
	for start := 0; start < len(s); start++ {
		if s[start] != '{' {
			continue
		}
		depth := 0
		inString := false
		escaped := false
		for i := start; i < len(s); i++ {
			ch := s[i]
			if inString {
				switch {
				case escaped:
					escaped = false
				case ch == '\\':
					escaped = true
				case ch == '"':
					inString = false
				}
				continue
			}
			switch ch {
			case '"':
				inString = true
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					if cand := s[start : i+1]; len(cand) > len(best) {
						best = cand
					}
					i = len(s) // done with this start
				}
			}
		}
	}
	return best
}
