package mcptools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/p-n-ai/pai-studio/internal/session"
)

// TodayTool handles the studio_today MCP tool.
type TodayTool struct {
	b *Backend
}

// NewTodayTool creates a TodayTool.
func NewTodayTool(b *Backend) *TodayTool {
	return &TodayTool{b: b}
}

// Definition returns the MCP tool definition for studio_today.
func (t *TodayTool) Definition() mcp.Tool {
	return mcp.NewTool("studio_today",
		mcp.WithDescription("Show the topics planned for today with their status and the days left before the exam."),
	)
}

// Handle processes the studio_today tool call.
func (t *TodayTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var view session.TodayView
	t.b.do(func(s *session.Session) { view = s.Today(ctx) })

	if !view.Scheduled {
		return mcp.NewToolResultText(view.Message), nil
	}

	var sb strings.Builder
	kind := "Study"
	if view.Review {
		kind = "Review"
	}
	sb.WriteString(fmt.Sprintf("## %s day %s (%d days to the exam)\n\n", kind, view.Date.Format("2006-01-02"), view.DaysLeft))
	for _, ts := range view.Topics {
		sb.WriteString(fmt.Sprintf("- %s %s\n", ts.Label, ts.Topic))
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// ProgressTool handles the studio_progress MCP tool.
type ProgressTool struct {
	b *Backend
}

// NewProgressTool creates a ProgressTool.
func NewProgressTool(b *Backend) *ProgressTool {
	return &ProgressTool{b: b}
}

// Definition returns the MCP tool definition for studio_progress.
func (t *ProgressTool) Definition() mcp.Tool {
	return mcp.NewTool("studio_progress",
		mcp.WithDescription("Show completion per status, remaining topics and test score statistics."),
	)
}

// Handle processes the studio_progress tool call.
func (t *ProgressTool) Handle(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var sb strings.Builder
	t.b.do(func(s *session.Session) {
		sum := s.Progress()
		stats := s.Stats()

		sb.WriteString("## Progress\n\n")
		sb.WriteString(fmt.Sprintf("- **Completed**: %d/%d (%.1f%%)\n", sum.Completed, sum.Total, sum.Percent))
		sb.WriteString(fmt.Sprintf("- **Needs review**: %d\n", sum.NeedsReview))
		sb.WriteString(fmt.Sprintf("- **Not started**: %d\n", sum.NotStarted))
		if stats.Count > 0 {
			sb.WriteString(fmt.Sprintf("- **Tests**: %d, mean %.1f, trend %+d\n", stats.Count, stats.Mean, stats.Trend))
		} else {
			sb.WriteString("- **Tests**: none\n")
		}
		if remaining := s.Remaining(); len(remaining) > 0 {
			sb.WriteString(fmt.Sprintf("\nRemaining: %s\n", strings.Join(remaining, ", ")))
		}
	})
	return mcp.NewToolResultText(sb.String()), nil
}

// TopicsTool handles the studio_topics MCP tool.
type TopicsTool struct {
	b *Backend
}

// NewTopicsTool creates a TopicsTool.
func NewTopicsTool(b *Backend) *TopicsTool {
	return &TopicsTool{b: b}
}

// Definition returns the MCP tool definition for studio_topics.
func (t *TopicsTool) Definition() mcp.Tool {
	return mcp.NewTool("studio_topics",
		mcp.WithDescription("List every exam topic grouped by category, with its status."),
	)
}

// Handle processes the studio_topics tool call.
func (t *TopicsTool) Handle(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var groups []session.TopicGroup
	t.b.do(func(s *session.Session) { groups = s.Topics() })

	var sb strings.Builder
	for _, g := range groups {
		sb.WriteString(fmt.Sprintf("### %s\n", g.Category))
		for _, ts := range g.Topics {
			sb.WriteString(fmt.Sprintf("- %s %s\n", ts.Label, ts.Topic))
		}
		sb.WriteString("\n")
	}
	return mcp.NewToolResultText(sb.String()), nil
}
