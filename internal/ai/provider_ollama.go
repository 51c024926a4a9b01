package ai

import (
	"context"
	"net/http"
	"strings"
)

const defaultOllamaModel = "llama3:8b"

// OllamaProvider implements Provider for a local Ollama server through its
// OpenAI-compatible /v1/chat/completions endpoint.
type OllamaProvider struct {
	baseURL string
	model   string
	client  *http.Client
}

// OllamaOption configures an OllamaProvider.
type OllamaOption func(*OllamaProvider)

// WithOllamaModel sets the default model.
func WithOllamaModel(model string) OllamaOption {
	return func(p *OllamaProvider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithOllamaHTTPClient sets a custom HTTP client.
func WithOllamaHTTPClient(client *http.Client) OllamaOption {
	return func(p *OllamaProvider) {
		p.client = client
	}
}

// NewOllamaProvider creates a new Ollama provider.
func NewOllamaProvider(baseURL string, opts ...OllamaOption) *OllamaProvider {
	p := &OllamaProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   defaultOllamaModel,
		client:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *OllamaProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	return postChatCompletion(ctx, p.client, "ollama", p.baseURL+"/v1/chat/completions", nil, newOpenAIRequest(p.model, req))
}

func (p *OllamaProvider) HealthCheck(ctx context.Context) error {
	return getStatus(ctx, p.client, "ollama", p.baseURL+"/api/tags", nil)
}
