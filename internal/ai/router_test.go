package ai_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/p-n-ai/pai-studio/internal/ai"
)

func TestRouter_SingleProvider(t *testing.T) {
	router := ai.NewRouter()
	mock := ai.NewMockProvider("Hello!")
	router.Register("openrouter", mock)

	resp, err := router.Complete(context.Background(), ai.CompletionRequest{
		Messages: []ai.Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "Hello!" {
		t.Errorf("Content = %q, want %q", resp.Content, "Hello!")
	}
}

func TestRouter_Fallback(t *testing.T) {
	router := ai.NewRouter()

	failing := &ai.MockProvider{Err: errors.New("rate limited")}
	fallback := ai.NewMockProvider("Fallback response")

	router.Register("openrouter", failing)
	router.Register("ollama", fallback)

	resp, err := router.Complete(context.Background(), ai.CompletionRequest{
		Messages: []ai.Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "Fallback response" {
		t.Errorf("Content = %q, want %q", resp.Content, "Fallback response")
	}
}

func TestRouter_AllProvidersFail_WrapsLastError(t *testing.T) {
	router := ai.NewRouter()

	last := &ai.ServiceError{Provider: "ollama", Status: 503, Body: "down"}
	router.Register("openrouter", &ai.MockProvider{Err: errors.New("fail 1")})
	router.Register("ollama", &ai.MockProvider{Err: last})

	_, err := router.Complete(context.Background(), ai.CompletionRequest{
		Messages: []ai.Message{{Role: "user", Content: "hi"}},
	})

	var svc *ai.ServiceError
	if !errors.As(err, &svc) || svc != last {
		t.Fatalf("Complete() error = %v, want wrapped last ServiceError", err)
	}
}

func TestRouter_NoProviders(t *testing.T) {
	router := ai.NewRouter()

	_, err := router.Complete(context.Background(), ai.CompletionRequest{
		Messages: []ai.Message{{Role: "user", Content: "hi"}},
	})

	var cfg *ai.ConfigError
	if !errors.As(err, &cfg) {
		t.Fatalf("Complete() error = %v, want *ConfigError", err)
	}
	if err := router.HealthCheck(context.Background()); !errors.As(err, &cfg) {
		t.Errorf("HealthCheck() error = %v, want *ConfigError", err)
	}
}

func TestRouter_HasProvider(t *testing.T) {
	router := ai.NewRouter()
	if router.HasProvider() {
		t.Error("HasProvider() should be false with no providers")
	}

	router.Register("mock", ai.NewMockProvider("ok"))
	if !router.HasProvider() {
		t.Error("HasProvider() should be true after Register")
	}
}

func TestRouter_FallbackOrder(t *testing.T) {
	router := ai.NewRouter()

	// First registered should be tried first.
	router.Register("first", ai.NewMockProvider("first"))
	router.Register("second", ai.NewMockProvider("second"))

	resp, err := router.Complete(context.Background(), ai.CompletionRequest{
		Messages: []ai.Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "first" {
		t.Errorf("Content = %q, want %q (first registered should be tried first)", resp.Content, "first")
	}
}

func TestRouter_Generate(t *testing.T) {
	router := ai.NewRouter()
	mock := ai.NewMockProvider("explanation")
	router.Register("mock", mock)

	text, err := router.Generate(context.Background(), ai.GenerateRequest{
		Prompt:      "Explain tenses",
		MaxTokens:   800,
		Temperature: 0.7,
		Task:        ai.TaskStudy,
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if text != "explanation" {
		t.Errorf("Generate() = %q", text)
	}

	req := mock.LastRequest
	if len(req.Messages) != 1 || req.Messages[0].Role != "user" || req.Messages[0].Content != "Explain tenses" {
		t.Errorf("Messages = %+v", req.Messages)
	}
	if req.MaxTokens != 800 || req.Temperature != 0.7 || req.Task != ai.TaskStudy {
		t.Errorf("request = %+v", req)
	}
}

func TestRouter_Budget(t *testing.T) {
	router := ai.NewRouter()
	router.Register("mock", ai.NewMockProvider("12345"))
	budget := ai.NewInMemoryBudget(0)
	budget.SetBudget(ai.TaskChat, 20)
	router.UseBudget(budget)

	if _, err := router.Generate(context.Background(), ai.GenerateRequest{Prompt: "hi", Task: ai.TaskChat}); err != nil {
		t.Fatalf("first Generate() error = %v", err)
	}
	used, _, _ := budget.Usage(ai.TaskChat)
	if used != 15 {
		t.Errorf("used = %d, want 15 (10 input + 5 output)", used)
	}

	_, _ = router.Generate(context.Background(), ai.GenerateRequest{Prompt: "hi", Task: ai.TaskChat})
	_, err := router.Generate(context.Background(), ai.GenerateRequest{Prompt: "hi", Task: ai.TaskChat})

	var cfg *ai.ConfigError
	if !errors.As(err, &cfg) || !strings.Contains(cfg.Reason, "chat") {
		t.Fatalf("Generate() error = %v, want budget ConfigError", err)
	}
	if _, err := router.Generate(context.Background(), ai.GenerateRequest{Prompt: "hi", Task: ai.TaskStudy}); err != nil {
		t.Errorf("other task should not be limited: %v", err)
	}
}
