package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAIConfig configures the OpenAI-compatible provider. BaseURL may
// point at any OpenAI-compatible endpoint.
type OpenAIConfig struct {
	Name        string
	Model       string
	BaseURL     string
	Credentials CredentialFunc
	Timeout     time.Duration
}

// OpenAIProvider calls an OpenAI-compatible chat completion endpoint.
type OpenAIProvider struct {
	name        string
	model       string
	baseURL     string
	credentials CredentialFunc
	httpClient  *http.Client
}

// NewOpenAI creates an OpenAI provider. The credential is resolved per
// call so a rotated key applies to the next request.
func NewOpenAI(cfg OpenAIConfig) *OpenAIProvider {
	name := cfg.Name
	if name == "" {
		name = "openai"
	}
	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	creds := cfg.Credentials
	if creds == nil {
		creds = StaticCredential("")
	}
	return &OpenAIProvider{
		name:        name,
		model:       model,
		baseURL:     cfg.BaseURL,
		credentials: creds,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

func (p *OpenAIProvider) Name() string { return p.name }

// Generate sends one chat completion request. Schema-constrained requests
// use JSON response format with the schema appended to the system prompt.
func (p *OpenAIProvider) Generate(ctx context.Context, req Request) (string, error) {
	apiKey := p.credentials()
	if apiKey == "" {
		return "", fmt.Errorf("%w: openai API key not configured", ErrMissingCredential)
	}

	cfg := openai.DefaultConfig(apiKey)
	if p.baseURL != "" {
		cfg.BaseURL = p.baseURL
	}
	cfg.HTTPClient = p.httpClient
	client := openai.NewClientWithConfig(cfg)

	system := req.System
	chatReq := openai.ChatCompletionRequest{
		Model:       p.model,
		Temperature: req.Temperature,
	}
	if len(req.Schema) > 0 {
		system += "\n\nRespond with a single JSON object conforming to this JSON schema. Output only the JSON, no prose:\n" + string(req.Schema)
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	chatReq.Messages = []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: system},
		{Role: openai.ChatMessageRoleUser, Content: req.User},
	}

	resp, err := client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return "", classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", ErrNoResponse)
	}
	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "", fmt.Errorf("%w: empty content", ErrNoResponse)
	}
	return out, nil
}

// classifyOpenAIError maps go-openai errors onto the package taxonomy.
func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusUnauthorized || apiErr.HTTPStatusCode == http.StatusForbidden:
			return fmt.Errorf("%w: openai rejected credentials (status %d)", ErrMissingCredential, apiErr.HTTPStatusCode)
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("%w: openai", ErrRateLimited)
		case apiErr.HTTPStatusCode >= 500:
			return &ServerError{Code: apiErr.HTTPStatusCode}
		}
	}
	return fmt.Errorf("openai request: %w", err)
}
