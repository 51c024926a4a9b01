package mcptools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/p-n-ai/pai-studio/internal/progress"
	"github.com/p-n-ai/pai-studio/internal/session"
)

// ScoresTool handles the studio_scores MCP tool.
type ScoresTool struct {
	b *Backend
}

// NewScoresTool creates a ScoresTool.
func NewScoresTool(b *Backend) *ScoresTool {
	return &ScoresTool{b: b}
}

// Definition returns the MCP tool definition for studio_scores.
func (t *ScoresTool) Definition() mcp.Tool {
	return mcp.NewTool("studio_scores",
		mcp.WithDescription("List recorded test scores, newest first."),
		mcp.WithString("topic",
			mcp.Description("Only scores of this topic"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of scores (default: 20)"),
		),
	)
}

// Handle processes the studio_scores tool call.
func (t *ScoresTool) Handle(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	topic := req.GetString("topic", "")
	limit := intArg(req, "limit", 20)

	var entries []progress.ScoreEntry
	t.b.do(func(s *session.Session) { entries = s.History() })

	var sb strings.Builder
	n := 0
	for _, e := range entries {
		if topic != "" && e.Topic != topic {
			continue
		}
		if n == limit {
			break
		}
		n++
		sb.WriteString(fmt.Sprintf("- #%d **%s** %d/100 (%s): %s\n", e.ID, e.Topic, e.Score, e.Key(), e.Comment))
	}
	if n == 0 {
		return mcp.NewToolResultText("No scores recorded."), nil
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// DeleteScoreTool handles the studio_delete_score MCP tool.
type DeleteScoreTool struct {
	b *Backend
}

// NewDeleteScoreTool creates a DeleteScoreTool.
func NewDeleteScoreTool(b *Backend) *DeleteScoreTool {
	return &DeleteScoreTool{b: b}
}

// Definition returns the MCP tool definition for studio_delete_score.
func (t *DeleteScoreTool) Definition() mcp.Tool {
	return mcp.NewTool("studio_delete_score",
		mcp.WithDescription("Delete a recorded score by the id shown by studio_scores."),
		mcp.WithNumber("id",
			mcp.Required(),
			mcp.Description("Score id"),
		),
		mcp.WithString("transcript",
			mcp.Description("Test transcript file to delete along with the score"),
		),
	)
}

// Handle processes the studio_delete_score tool call.
func (t *DeleteScoreTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := intArg(req, "id", 0)
	if id <= 0 {
		return mcp.NewToolResultError("'id' is required"), nil
	}

	var (
		ok  bool
		err error
	)
	t.b.do(func(s *session.Session) {
		ok, err = s.DeleteScoreByID(ctx, int64(id), req.GetString("transcript", ""))
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to delete score: %v", err)), nil
	}
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("score #%d not found", id)), nil
	}
	return mcp.NewToolResultText("✅ Test eliminato con successo"), nil
}
