// Package ai provides text generation behind a provider-agnostic interface,
// with provider fallback, token budgets and bounded fan-out.
package ai

import "context"

// TaskType identifies what a generation is for, for budgeting and logs.
type TaskType int

const (
	TaskStudy TaskType = iota
	TaskQuestion
	TaskModelAnswer
	TaskEvaluation
	TaskChat
)

func (t TaskType) String() string {
	switch t {
	case TaskStudy:
		return "study"
	case TaskQuestion:
		return "question"
	case TaskModelAnswer:
		return "model_answer"
	case TaskEvaluation:
		return "evaluation"
	case TaskChat:
		return "chat"
	default:
		return "unknown"
	}
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is the input to an AI completion.
type CompletionRequest struct {
	Messages    []Message `json:"messages"`
	Model       string    `json:"model,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	Task        TaskType  `json:"task,omitempty"`
}

// CompletionResponse is the output from an AI completion.
type CompletionResponse struct {
	Content      string `json:"content"`
	Model        string `json:"model"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}

// TotalTokens returns the sum of input and output tokens.
func (r CompletionResponse) TotalTokens() int {
	return r.InputTokens + r.OutputTokens
}

// Provider is the interface all AI providers must implement.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
	HealthCheck(ctx context.Context) error
}

// GenerateRequest is a single-prompt generation.
type GenerateRequest struct {
	Prompt      string
	MaxTokens   int
	Temperature float64
	Task        TaskType
}

// Generator turns a prompt into text. An empty result is valid.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}
