// Package llm implements the LLM client over OpenAI-style and
// OpenRouter-style chat/embedding backends. It is the single point of contact
// with the LLM: provider differences, retry-with-backoff, throttling and
// defensive output parsing all live here.
package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"log/slog"

	"github.com/fairyhunter13/hireval/internal/adapter/observability"
	"github.com/fairyhunter13/hireval/internal/config"
	"github.com/fairyhunter13/hireval/internal/domain"
)

// Provider classifies the chat backend dialect.
type Provider string

const (
	ProviderOpenAI     Provider = "openai"
	ProviderOpenRouter Provider = "openrouter"
)

// DetectProvider classifies the backend from the configured key and base URL.
// An explicit override wins. OpenRouter keys start with "sk-or-" and its base
// URL carries the vendor name.
func DetectProvider(apiKey, baseURL, override string) Provider {
	switch strings.ToLower(override) {
	case string(ProviderOpenAI):
		return ProviderOpenAI
	case string(ProviderOpenRouter):
		return ProviderOpenRouter
	}
	if strings.HasPrefix(apiKey, "sk-or-") || strings.Contains(strings.ToLower(baseURL), "openrouter") {
		return ProviderOpenRouter
	}
	return ProviderOpenAI
}

// Client implements domain.AIClient.
type Client struct {
	cfg      config.Config
	provider Provider
	chatHC   *http.Client
	embedHC  *http.Client
	throttle *Throttle // nil disables throttling
}

// New constructs a Client with per-operation timeouts from config. Outbound
// requests go through an otelhttp transport so LLM calls join the trace of
// the evaluation that triggered them.
func New(cfg config.Config, throttle *Throttle) *Client {
	transport := otelhttp.NewTransport(http.DefaultTransport)
	return &Client{
		cfg:      cfg,
		provider: DetectProvider(cfg.LLMAPIKey, cfg.LLMBaseURL, cfg.LLMProvider),
		chatHC:   &http.Client{Timeout: cfg.ChatTimeout, Transport: transport},
		embedHC:  &http.Client{Timeout: cfg.EmbedTimeout, Transport: transport},
		throttle: throttle,
	}
}

// Provider returns the detected backend dialect.
func (c *Client) Provider() Provider { return c.provider }

func (c *Client) defaultChatModel() string {
	if c.cfg.ChatModel != "" && c.modelFitsProvider(c.cfg.ChatModel) {
		return c.cfg.ChatModel
	}
	if c.provider == ProviderOpenRouter {
		return "openai/gpt-4o-mini"
	}
	return "gpt-4o-mini"
}

// modelFitsProvider checks the naming convention: OpenRouter model ids carry a
// vendor prefix ("vendor/model"), plain OpenAI ids do not.
func (c *Client) modelFitsProvider(model string) bool {
	hasVendor := strings.Contains(model, "/")
	if c.provider == ProviderOpenRouter {
		return hasVendor
	}
	return !hasVendor
}

// resolveModel returns the model to send, substituting the provider default
// when the requested model is clearly invalid for the detected provider.
func (c *Client) resolveModel(requested string) string {
	if requested == "" {
		return c.defaultChatModel()
	}
	if !c.modelFitsProvider(requested) {
		def := c.defaultChatModel()
		slog.Warn("model invalid for provider; substituting default",
			slog.String("requested", requested),
			slog.String("substituted", def),
			slog.String("provider", string(c.provider)))
		return def
	}
	return requested
}

// tokenLimitField is the provider-specific name of the completion budget.
func (c *Client) tokenLimitField() string {
	if c.provider == ProviderOpenRouter {
		return "max_tokens"
	}
	return "max_completion_tokens"
}

func (c *Client) setHeaders(r *http.Request) {
	r.Header.Set("Authorization", "Bearer "+c.cfg.LLMAPIKey)
	r.Header.Set("Content-Type", "application/json")
	if c.provider == ProviderOpenRouter {
		if c.cfg.HTTPReferer != "" {
			r.Header.Set("HTTP-Referer", c.cfg.HTTPReferer)
		}
		if c.cfg.AppTitle != "" {
			r.Header.Set("X-Title", c.cfg.AppTitle)
		}
	}
}

// Chat calls the chat-completions endpoint with bounded retry. Transient
// failures (5xx, network, plain 429) are retried up to the configured attempt
// count with exponential backoff; quota exhaustion is returned immediately as
// a typed *domain.QuotaError.
func (c *Client) Chat(ctx domain.Context, messages []domain.ChatMessage, opts domain.ChatOptions) (domain.ChatResult, error) {
	if c.cfg.LLMAPIKey == "" {
		return domain.ChatResult{}, fmt.Errorf("%w: LLM_API_KEY missing", domain.ErrInvalidArgument)
	}
	model := c.resolveModel(opts.Model)
	temperature := opts.Temperature
	if temperature == 0 {
		temperature = c.cfg.Temperature
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.cfg.MaxTokens
	}

	body := map[string]any{
		"model":       model,
		"temperature": temperature,
		"stream":      false,
		"messages":    messages,
	}
	body[c.tokenLimitField()] = maxTokens
	b, _ := json.Marshal(body)

	var out struct {
		Model   string `json:"model"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
		Usage domain.ChatUsage `json:"usage"`
	}

	op := func() error {
		if err := c.allow(ctx, "chat"); err != nil {
			return err
		}
		start := time.Now()
		// Recreate the request each attempt to avoid reusing consumed bodies.
		r, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.LLMBaseURL+"/chat/completions", bytes.NewReader(b))
		c.setHeaders(r)
		resp, err := c.chatHC.Do(r)
		observability.LLMRequestsTotal.WithLabelValues(string(c.provider), "chat").Inc()
		observability.LLMRequestDuration.WithLabelValues(string(c.provider), "chat").Observe(time.Since(start).Seconds())
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrUpstreamTransient, err)
		}
		defer func() { _ = resp.Body.Close() }()
		bodyBytes, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("%w: read body: %v", domain.ErrUpstreamTransient, err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return c.classifyHTTPError("chat", resp.StatusCode, resp.Header, bodyBytes, model)
		}
		if err := json.Unmarshal(bodyBytes, &out); err != nil {
			slog.Error("llm decode error", slog.String("provider", string(c.provider)), slog.String("op", "chat"), slog.Any("error", err))
			return backoff.Permanent(fmt.Errorf("decode chat response: %w", err))
		}
		return nil
	}

	if err := c.retry(ctx, op); err != nil {
		return domain.ChatResult{}, fmt.Errorf("op=llm.chat: %w", err)
	}
	if len(out.Choices) == 0 {
		return domain.ChatResult{}, fmt.Errorf("op=llm.chat: %w: empty choices", domain.ErrUpstreamTransient)
	}
	actualModel := model
	if out.Model != "" && out.Model != model {
		slog.Warn("model substitution by backend",
			slog.String("requested_model", model),
			slog.String("actual_model", out.Model),
			slog.String("provider", string(c.provider)))
		actualModel = out.Model
	}
	return domain.ChatResult{
		Content:      out.Choices[0].Message.Content,
		Model:        actualModel,
		FinishReason: out.Choices[0].FinishReason,
		Usage:        out.Usage,
	}, nil
}

// Ping hits /models; used by readiness checks at connect.
func (c *Client) Ping(ctx domain.Context) error {
	r, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.LLMBaseURL+"/models", nil)
	if err != nil {
		return err
	}
	c.setHeaders(r)
	resp, err := c.chatHC.Do(r)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUpstreamTransient, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: models status %d", domain.ErrUpstreamTransient, resp.StatusCode)
	}
	return nil
}

// retry wraps op with the configured bounded exponential backoff.
func (c *Client) retry(ctx domain.Context, op backoff.Operation) error {
	attempts, base := c.cfg.RetryPolicy()
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = base
	expo.Multiplier = 2
	expo.RandomizationFactor = 0
	expo.MaxElapsedTime = 0
	bo := backoff.WithContext(backoff.WithMaxRetries(expo, uint64(attempts-1)), ctx)
	return backoff.Retry(op, bo)
}

// allow consults the shared token bucket; a broken throttle never blocks calls.
func (c *Client) allow(ctx domain.Context, op string) error {
	if c.throttle == nil {
		return nil
	}
	ok, retryAfter, err := c.throttle.Allow(ctx, op)
	if err != nil {
		slog.Warn("llm throttle unavailable; allowing call", slog.Any("error", err))
		return nil
	}
	if !ok {
		return fmt.Errorf("%w: local throttle, retry in %s", domain.ErrUpstreamTransient, retryAfter)
	}
	return nil
}

// quotaSignals marks a rate-limit response as permanent quota exhaustion
// rather than transient throttling.
var quotaSignals = []string{"quota", "insufficient", "credit", "billing", "exceeded your current"}

func (c *Client) classifyHTTPError(op string, status int, hdr http.Header, body []byte, model string) error {
	snippet := string(body)
	if len(snippet) > 512 {
		snippet = snippet[:512]
	}
	lower := strings.ToLower(snippet)
	isQuota := false
	for _, sig := range quotaSignals {
		if strings.Contains(lower, sig) {
			isQuota = true
			break
		}
	}
	switch {
	case (status == http.StatusTooManyRequests || status == http.StatusPaymentRequired || status == http.StatusForbidden) && isQuota:
		qe := &domain.QuotaError{
			Message:    "LLM temporarily unavailable due to API usage limits",
			StatusCode: status,
			RetryAfter: parseRetryAfter(hdr.Get("Retry-After")),
		}
		slog.Warn("llm quota exhausted",
			slog.String("provider", string(c.provider)), slog.String("op", op),
			slog.Int("status", status), slog.Duration("retry_after", qe.RetryAfter))
		return backoff.Permanent(qe)
	case status == http.StatusTooManyRequests:
		slog.Warn("llm rate limited", slog.String("provider", string(c.provider)), slog.String("op", op), slog.Int("status", status))
		return fmt.Errorf("%w: rate limited: 429", domain.ErrUpstreamTransient)
	case status >= 400 && status < 500:
		slog.Warn("llm 4xx", slog.String("provider", string(c.provider)), slog.String("op", op),
			slog.Int("status", status), slog.String("model", model), slog.String("body", snippet))
		return backoff.Permanent(fmt.Errorf("%w: %s status %d", domain.ErrInvalidArgument, op, status))
	default:
		slog.Error("llm non-2xx", slog.String("provider", string(c.provider)), slog.String("op", op),
			slog.Int("status", status), slog.String("model", model), slog.String("body", snippet))
		return fmt.Errorf("%w: %s status %d", domain.ErrUpstreamTransient, op, status)
	}
}

// parseRetryAfter handles both delta-seconds and HTTP-date forms.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

var _ domain.AIClient = (*Client)(nil)
