package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	backoff "github.com/cenkalti/backoff/v4"

	"log/slog"

	"github.com/fairyhunter13/hireval/internal/adapter/observability"
	"github.com/fairyhunter13/hireval/internal/domain"
)

// HashDim is the dimension of fallback embeddings (chat-prompted and hashed).
const HashDim = 128

// Embed returns one vector per text. Strategy, in order: the dedicated
// embeddings endpoint; a chat prompt asking for 128 comma-separated floats;
// a deterministic hash embedding. The final fallback cannot fail, so Embed
// only errors on a cancelled context.
func (c *Client) Embed(ctx domain.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if vecs, err := c.embedEndpoint(ctx, texts); err == nil {
		return vecs, nil
	} else {
		slog.Warn("embeddings endpoint failed; degrading to chat embedding",
			slog.String("provider", string(c.provider)), slog.Any("error", err))
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vec, err := c.embedViaChat(ctx, text)
		if err != nil {
			slog.Warn("chat embedding failed; using hash embedding", slog.Any("error", err))
			vec = HashEmbed(text)
		}
		out[i] = vec
	}
	return out, nil
}

// embedEndpoint calls POST /embeddings with retry.
func (c *Client) embedEndpoint(ctx domain.Context, texts []string) ([][]float32, error) {
	if c.cfg.LLMAPIKey == "" {
		return nil, fmt.Errorf("%w: LLM_API_KEY missing", domain.ErrInvalidArgument)
	}
	body := map[string]any{
		"model": c.cfg.EmbeddingsModel,
		"input": texts,
	}
	b, _ := json.Marshal(body)
	var out struct {
		Data []struct {
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	op := func() error {
		if err := c.allow(ctx, "embed"); err != nil {
			return err
		}
		start := time.Now()
		r, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.LLMBaseURL+"/embeddings", bytes.NewReader(b))
		c.setHeaders(r)
		resp, err := c.embedHC.Do(r)
		observability.LLMRequestsTotal.WithLabelValues(string(c.provider), "embed").Inc()
		observability.LLMRequestDuration.WithLabelValues(string(c.provider), "embed").Observe(time.Since(start).Seconds())
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrUpstreamTransient, err)
		}
		defer func() { _ = resp.Body.Close() }()
		bodyBytes, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("%w: read body: %v", domain.ErrUpstreamTransient, err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return c.classifyHTTPError("embed", resp.StatusCode, resp.Header, bodyBytes, c.cfg.EmbeddingsModel)
		}
		if err := json.Unmarshal(bodyBytes, &out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode embeddings response: %w", err))
		}
		return nil
	}
	if err := c.retry(ctx, op); err != nil {
		return nil, fmt.Errorf("op=llm.embed: %w", err)
	}
	if len(out.Data) != len(texts) {
		return nil, fmt.Errorf("op=llm.embed: %w: got %d vectors for %d texts", domain.ErrUpstreamTransient, len(out.Data), len(texts))
	}
	vecs := make([][]float32, len(out.Data))
	for i, d := range out.Data {
		v := make([]float32, len(d.Embedding))
		for j, f := range d.Embedding {
			v[j] = float32(f)
		}
		vecs[i] = v
	}
	return vecs, nil
}

// embedViaChat prompts the chat endpoint for HashDim comma-separated floats
// and parses them defensively.
func (c *Client) embedViaChat(ctx domain.Context, text string) ([]float32, error) {
	prompt := fmt.Sprintf(
		"Output exactly %d comma-separated floating point numbers between -1 and 1 forming a semantic embedding of the text below. Output only the numbers, nothing else.\n\nTEXT:\n%s",
		HashDim, Head(text, 2000))
	res, err := c.Chat(ctx, []domain.ChatMessage{
		{Role: "system", Content: "You emit numeric vectors only."},
		{Role: "user", Content: prompt},
	}, domain.ChatOptions{MaxTokens: 1024, Temperature: 0.01})
	if err != nil {
		return nil, err
	}
	vec, err := parseFloatVector(res.Content, HashDim)
	if err != nil {
		return nil, err
	}
	l2normalize(vec)
	return vec, nil
}

// parseFloatVector pulls up to dim floats out of free-form model output,
// tolerating prose, brackets and newlines around the numbers.
func parseFloatVector(s string, dim int) ([]float32, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		switch r {
		case ',', '[', ']', '(', ')', '\n', '\r', '\t', ' ', ';':
			return true
		}
		return false
	})
	vec := make([]float32, 0, dim)
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		v, err := strconv.ParseFloat(f, 32)
		if err != nil {
			continue
		}
		vec = append(vec, float32(v))
		if len(vec) == dim {
			break
		}
	}
	if len(vec) < dim {
		return nil, fmt.Errorf("parsed %d floats, want %d", len(vec), dim)
	}
	return vec, nil
}

func l2normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
}

// Head bounds s to n bytes.
func Head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
