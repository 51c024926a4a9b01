package ai

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Router tries registered providers in order and enforces an optional
// token budget. It implements Generator.
type Router struct {
	providers map[string]Provider
	fallback  []string // ordered fallback chain
	budget    BudgetChecker
	mu        sync.RWMutex
}

// NewRouter creates a new AI router.
func NewRouter() *Router {
	return &Router{
		providers: make(map[string]Provider),
	}
}

// Register adds a provider to the router.
func (r *Router) Register(name string, provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = provider
	r.fallback = append(r.fallback, name)
}

// UseBudget makes the router check b before each completion and record
// usage after it.
func (r *Router) UseBudget(b BudgetChecker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.budget = b
}

// Complete routes a request to the first provider that succeeds. When all
// fail, the last provider error is wrapped.
func (r *Router) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.fallback) == 0 {
		return CompletionResponse{}, &ConfigError{Reason: "no AI provider configured"}
	}

	if r.budget != nil {
		ok, err := r.budget.Check(req.Task)
		if err != nil {
			return CompletionResponse{}, fmt.Errorf("budget check: %w", err)
		}
		if !ok {
			return CompletionResponse{}, &ConfigError{Reason: fmt.Sprintf("token budget exhausted for %s", req.Task)}
		}
	}

	var lastErr error
	for _, name := range r.fallback {
		provider := r.providers[name]

		resp, err := provider.Complete(ctx, req)
		if err != nil {
			slog.Warn("AI provider failed, trying next",
				"provider", name,
				"task", req.Task.String(),
				"error", err,
			)
			lastErr = err
			continue
		}

		slog.Debug("AI request completed",
			"provider", name,
			"task", req.Task.String(),
			"model", resp.Model,
			"input_tokens", resp.InputTokens,
			"output_tokens", resp.OutputTokens,
		)
		if r.budget != nil {
			if err := r.budget.Record(req.Task, resp.TotalTokens()); err != nil {
				slog.Warn("recording token usage failed", "task", req.Task.String(), "error", err)
			}
		}
		return resp, nil
	}

	return CompletionResponse{}, fmt.Errorf("all AI providers failed: %w", lastErr)
}

// Generate sends prompt as a single user message.
func (r *Router) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	resp, err := r.Complete(ctx, CompletionRequest{
		Messages:    []Message{{Role: "user", Content: req.Prompt}},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Task:        req.Task,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// HasProvider returns true if at least one provider is registered.
func (r *Router) HasProvider() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers) > 0
}

// HealthCheck reports whether any registered provider is reachable.
func (r *Router) HealthCheck(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.fallback) == 0 {
		return &ConfigError{Reason: "no AI provider configured"}
	}
	var lastErr error
	for _, name := range r.fallback {
		if err := r.providers[name].HealthCheck(ctx); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}
