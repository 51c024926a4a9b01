package ai

import (
	"context"
	"sync"
)

// MockProvider is a test double for AI providers. Responses, when set, are
// returned in order before falling back to Response. Respond, when set,
// overrides both.
type MockProvider struct {
	Response    string
	Responses   []string
	Respond     func(req CompletionRequest) (string, error)
	Err         error
	LastRequest *CompletionRequest // captures the last request for inspection

	mu       sync.Mutex
	requests []CompletionRequest
}

// NewMockProvider creates a MockProvider that returns the given response.
func NewMockProvider(response string) *MockProvider {
	return &MockProvider{Response: response}
}

func (m *MockProvider) Complete(_ context.Context, req CompletionRequest) (CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LastRequest = &req
	m.requests = append(m.requests, req)
	if m.Err != nil {
		return CompletionResponse{}, m.Err
	}

	content := m.Response
	switch {
	case m.Respond != nil:
		var err error
		content, err = m.Respond(req)
		if err != nil {
			return CompletionResponse{}, err
		}
	case len(m.Responses) > 0:
		content = m.Responses[0]
		m.Responses = m.Responses[1:]
	}

	return CompletionResponse{
		Content:      content,
		Model:        "mock",
		InputTokens:  10,
		OutputTokens: len(content),
	}, nil
}

func (m *MockProvider) HealthCheck(_ context.Context) error {
	return m.Err
}

// Requests returns every request received so far.
func (m *MockProvider) Requests() []CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]CompletionRequest(nil), m.requests...)
}
