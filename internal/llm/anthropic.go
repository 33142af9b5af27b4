package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com"
	defaultAnthropicModel   = "claude-3-5-haiku-20241022"
	anthropicVersion        = "2023-06-01"
	anthropicMaxTokens      = 2048
	defaultRequestTimeout   = 60 * time.Second
)

// Rate limiter defaults: 50 requests per minute.
const (
	defaultRateLimit = 50.0 / 60.0
	defaultBurst     = 5
)

// AnthropicConfig configures the Anthropic provider.
type AnthropicConfig struct {
	Name        string // provider name used in routing chains
	Model       string
	BaseURL     string
	Credentials CredentialFunc
	Timeout     time.Duration
}

// AnthropicProvider calls the Anthropic messages API.
type AnthropicProvider struct {
	name        string
	model       string
	baseURL     string
	credentials CredentialFunc
	httpClient  *http.Client
	limiter     *rate.Limiter
}

// NewAnthropic creates an Anthropic provider. The credential is resolved
// per call, not at construction.
func NewAnthropic(cfg AnthropicConfig) *AnthropicProvider {
	name := cfg.Name
	if name == "" {
		name = "anthropic"
	}
	model := cfg.Model
	if model == "" {
		model = defaultAnthropicModel
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultAnthropicBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	creds := cfg.Credentials
	if creds == nil {
		creds = StaticCredential("")
	}
	return &AnthropicProvider{
		name:        name,
		model:       model,
		baseURL:     strings.TrimRight(baseURL, "/"),
		credentials: creds,
		httpClient:  &http.Client{Timeout: timeout},
		limiter:     rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
	}
}

func (p *AnthropicProvider) Name() string { return p.name }

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float32            `json:"temperature"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Generate sends one request to the messages API and classifies failures
// into the package error taxonomy.
func (p *AnthropicProvider) Generate(ctx context.Context, req Request) (string, error) {
	apiKey := p.credentials()
	if apiKey == "" {
		return "", fmt.Errorf("%w: anthropic API key not configured", ErrMissingCredential)
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	system := req.System
	if len(req.Schema) > 0 {
		system += "\n\nRespond with a single JSON object conforming to this JSON schema. Output only the JSON, no prose:\n" + string(req.Schema)
	}

	body, err := json.Marshal(anthropicRequest{
		Model:       p.model,
		MaxTokens:   anthropicMaxTokens,
		Temperature: req.Temperature,
		System:      system,
		Messages:    []anthropicMessage{{Role: "user", Content: req.User}},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("anthropic request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		// Fall through to decode below.
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", fmt.Errorf("%w: anthropic rejected credentials (status %d)", ErrMissingCredential, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", fmt.Errorf("%w: anthropic", ErrRateLimited)
	case resp.StatusCode >= 500:
		return "", &ServerError{Code: resp.StatusCode}
	default:
		return "", fmt.Errorf("anthropic: unexpected status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("%w: undecodable response body", ErrNoResponse)
	}
	var text strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	out := strings.TrimSpace(text.String())
	if out == "" {
		return "", fmt.Errorf("%w: empty content", ErrNoResponse)
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
