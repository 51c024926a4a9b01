package mcptools

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/p-n-ai/pai-studio/internal/progress"
	"github.com/p-n-ai/pai-studio/internal/session"
)

// StudyTool handles the studio_study MCP tool.
type StudyTool struct {
	b *Backend
}

// NewStudyTool creates a StudyTool.
func NewStudyTool(b *Backend) *StudyTool {
	return &StudyTool{b: b}
}

// Definition returns the MCP tool definition for studio_study.
func (t *StudyTool) Definition() mcp.Tool {
	return mcp.NewTool("studio_study",
		mcp.WithDescription("Get a lesson on a topic. The topic is marked as needing review."),
		mcp.WithString("topic",
			mcp.Required(),
			mcp.Description("Topic name exactly as listed by studio_topics"),
		),
	)
}

// Handle processes the studio_study tool call.
func (t *StudyTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	topic := req.GetString("topic", "")
	if topic == "" {
		return mcp.NewToolResultError("'topic' is required"), nil
	}

	var (
		content string
		err     error
	)
	t.b.do(func(s *session.Session) { content, err = s.Study(ctx, topic) })
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to study %q: %v", topic, err)), nil
	}
	return mcp.NewToolResultText(content), nil
}

// SetStatusTool handles the studio_set_status MCP tool.
type SetStatusTool struct {
	b *Backend
}

// NewSetStatusTool creates a SetStatusTool.
func NewSetStatusTool(b *Backend) *SetStatusTool {
	return &SetStatusTool{b: b}
}

// Definition returns the MCP tool definition for studio_set_status.
func (t *SetStatusTool) Definition() mcp.Tool {
	return mcp.NewTool("studio_set_status",
		mcp.WithDescription("Set the status of a topic directly."),
		mcp.WithString("topic",
			mcp.Required(),
			mcp.Description("Topic name"),
		),
		mcp.WithString("status",
			mcp.Required(),
			mcp.Description("New status"),
			mcp.Enum(progress.NotStarted.String(), progress.NeedsReview.String(), progress.Completed.String()),
		),
	)
}

// Handle processes the studio_set_status tool call.
func (t *SetStatusTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	topic := req.GetString("topic", "")
	if topic == "" {
		return mcp.NewToolResultError("'topic' is required"), nil
	}
	st, err := progress.ParseStatus(req.GetString("status", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var known bool
	t.b.do(func(s *session.Session) {
		if known = s.Catalog().Contains(topic); known {
			err = s.SetStatus(ctx, topic, st)
		}
	})
	if !known {
		return mcp.NewToolResultError(fmt.Sprintf("unknown topic %q", topic)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to set status: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("✅ Stato aggiornato: %s → %s", topic, st)), nil
}

// StartTestTool handles the studio_test_start MCP tool.
type StartTestTool struct {
	b *Backend
}

// NewStartTestTool creates a StartTestTool.
func NewStartTestTool(b *Backend) *StartTestTool {
	return &StartTestTool{b: b}
}

// Definition returns the MCP tool definition for studio_test_start.
func (t *StartTestTool) Definition() mcp.Tool {
	return mcp.NewTool("studio_test_start",
		mcp.WithDescription(
			"Start an oral exam test on a topic and return the question. "+
				"Answer it with studio_test_answer.",
		),
		mcp.WithString("topic",
			mcp.Required(),
			mcp.Description("Topic name exactly as listed by studio_topics"),
		),
	)
}

// Handle processes the studio_test_start tool call.
func (t *StartTestTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	topic := req.GetString("topic", "")
	if topic == "" {
		return mcp.NewToolResultError("'topic' is required"), nil
	}

	var (
		tc  session.TestContext
		err error
	)
	t.b.do(func(s *session.Session) { tc, err = s.StartTest(ctx, topic) })
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to start test: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("## Question on %s\n\n%s", tc.Topic, tc.Question)), nil
}

// AnswerTool handles the studio_test_answer MCP tool.
type AnswerTool struct {
	b *Backend
}

// NewAnswerTool creates an AnswerTool.
func NewAnswerTool(b *Backend) *AnswerTool {
	return &AnswerTool{b: b}
}

// Definition returns the MCP tool definition for studio_test_answer.
func (t *AnswerTool) Definition() mcp.Tool {
	return mcp.NewTool("studio_test_answer",
		mcp.WithDescription("Submit the answer to the pending test question and get the score."),
		mcp.WithString("answer",
			mcp.Required(),
			mcp.Description("The learner's answer"),
		),
	)
}

// Handle processes the studio_test_answer tool call.
func (t *AnswerTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	answer := req.GetString("answer", "")
	if answer == "" {
		return mcp.NewToolResultError("'answer' is required"), nil
	}

	var (
		eval  session.Evaluation
		model string
		err   error
	)
	t.b.do(func(s *session.Session) {
		eval, err = s.SubmitAnswer(ctx, answer)
		if tc, ok := s.ActiveTest(); ok {
			model = tc.ModelAnswer
		}
	})
	if errors.Is(err, session.ErrNoPendingQuestion) {
		return mcp.NewToolResultError("no pending question, start one with studio_test_start"), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to submit answer: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"## Score: %d/100\n\n%s\n\n### Model answer\n\n%s", eval.Score, eval.Comment, model,
	)), nil
}

// CloseTestTool handles the studio_test_close MCP tool.
type CloseTestTool struct {
	b *Backend
}

// NewCloseTestTool creates a CloseTestTool.
func NewCloseTestTool(b *Backend) *CloseTestTool {
	return &CloseTestTool{b: b}
}

// Definition returns the MCP tool definition for studio_test_close.
func (t *CloseTestTool) Definition() mcp.Tool {
	return mcp.NewTool("studio_test_close",
		mcp.WithDescription("Discard the current test. The topic keeps its needs-review status."),
	)
}

// Handle processes the studio_test_close tool call.
func (t *CloseTestTool) Handle(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var active bool
	t.b.do(func(s *session.Session) {
		_, active = s.ActiveTest()
		s.CloseTest()
	})
	if !active {
		return mcp.NewToolResultText("No test in progress."), nil
	}
	return mcp.NewToolResultText("Test closed."), nil
}
