package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"refinery/internal/services"
)

const (
	messagesPath       = "/v1/messages"
	anthropicVersion   = "2023-06-01"
	defaultHTTPTimeout = 60 * time.Second
)

// Config captures the runtime settings required to talk to the service.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	MaxTokens      int
	TimeoutSeconds int
}

// Client wraps the Messages API.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			Model:          strings.TrimSpace(cfg.Model),
			MaxTokens:      cfg.MaxTokens,
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = "https://api.anthropic.com"
	}
	return client
}

// Refine asks the model to improve a proposition. The stage index is carried
// for logging symmetry only; every stage applies the same instructions.
func (c *Client) Refine(ctx context.Context, proposition, domain string, stage int) (string, error) {
	proposition = strings.TrimSpace(proposition)
	if proposition == "" {
		return "", services.Wrap(services.ErrValidation, "llm", "refine", "empty proposition", nil)
	}
	if domain = strings.TrimSpace(domain); domain == "" {
		domain = "general"
	}
	op := fmt.Sprintf("refine stage %d", stage)
	return c.complete(ctx, op, refinementPrompt(proposition, domain), refineMaxTokens, refineTemperature)
}

// Compose asks the model for a brand-new proposition built around seed words.
func (c *Client) Compose(ctx context.Context, domain string, seeds []string) (string, error) {
	if domain = strings.TrimSpace(domain); domain == "" {
		domain = "general"
	}
	if len(seeds) == 0 {
		return "", services.Wrap(services.ErrValidation, "llm", "compose", "seed words required", nil)
	}
	return c.complete(ctx, "compose", compositionPrompt(domain, seeds), composeMaxTokens, composeTemperature)
}

type messagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	Messages    []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Error      *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) complete(ctx context.Context, op, prompt string, maxTokens int, temperature float64) (string, error) {
	if c.cfg.APIKey == "" {
		return "", services.Wrap(services.ErrConfiguration, "llm", op, "api key required", nil)
	}
	if c.cfg.MaxTokens > 0 && c.cfg.MaxTokens < maxTokens {
		maxTokens = c.cfg.MaxTokens
	}

	payload := messagesRequest{
		Model:       c.cfg.Model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		Messages:    []message{{Role: "user", Content: prompt}},
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "llm", op, "encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+messagesPath, bytes.NewReader(encoded))
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "llm", op, "build request", err)
	}
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", classifyTransportError(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "llm", op, "read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", classifyStatusError(op, resp.StatusCode, body)
	}

	var decoded messagesResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", services.Wrap(services.ErrValidation, "llm", op, "decode response", err)
	}
	if decoded.Error != nil {
		return "", services.Wrap(services.ErrValidation, "llm", op, fmt.Sprintf("api error: %s", decoded.Error.Message), nil)
	}

	for _, block := range decoded.Content {
		if text := strings.TrimSpace(block.Text); text != "" {
			return text, nil
		}
	}
	return "", services.Wrap(services.ErrValidation, "llm", op,
		fmt.Sprintf("empty content (stop_reason=%q)", decoded.StopReason), nil)
}

// classifyStatusError maps HTTP status codes onto the retryable/fatal
// taxonomy: 429 and 529 are rate limiting, 408 and 5xx are transient, other
// client errors are fatal.
func classifyStatusError(op string, status int, body []byte) error {
	detail := fmt.Sprintf("http %d: %s", status, summarizeBody(body))
	switch {
	case status == http.StatusTooManyRequests || status == 529:
		return services.Wrap(services.ErrRateLimited, "llm", op, detail, nil)
	case status == http.StatusRequestTimeout || status >= http.StatusInternalServerError:
		return services.Wrap(services.ErrTransient, "llm", op, detail, nil)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return services.Wrap(services.ErrConfiguration, "llm", op, detail, nil)
	default:
		return services.Wrap(services.ErrValidation, "llm", op, detail, nil)
	}
}

// classifyTransportError treats network-level failures as transient unless the
// context was cancelled.
func classifyTransportError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return services.Wrap(services.ErrTransient, "llm", op, "request timeout", err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return services.Wrap(services.ErrTransient, "llm", op, "http error", err)
	}
	return services.Wrap(services.ErrTransient, "llm", op, "http error", err)
}

func summarizeBody(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return "<empty>"
	}
	replacer := strings.NewReplacer("\r", " ", "\n", " ", "\t", " ")
	clean := strings.Join(strings.Fields(replacer.Replace(trimmed)), " ")
	const limit = 160
	runes := []rune(clean)
	if len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	return clean
}
