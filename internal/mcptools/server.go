package mcptools

import (
	"github.com/mark3labs/mcp-go/server"
)

const instructions = `Study planner for an oral exam. Start with studio_today to see what to study,
use studio_study for lessons and studio_test_start / studio_test_answer to practise.
Scores and topic statuses are saved automatically.`

// NewServer creates an MCP server with every studio tool registered.
func NewServer(b *Backend, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"pai-studio",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)

	today := NewTodayTool(b)
	s.AddTool(today.Definition(), today.Handle)

	prog := NewProgressTool(b)
	s.AddTool(prog.Definition(), prog.Handle)

	topics := NewTopicsTool(b)
	s.AddTool(topics.Definition(), topics.Handle)

	study := NewStudyTool(b)
	s.AddTool(study.Definition(), study.Handle)

	setStatus := NewSetStatusTool(b)
	s.AddTool(setStatus.Definition(), setStatus.Handle)

	start := NewStartTestTool(b)
	s.AddTool(start.Definition(), start.Handle)

	answer := NewAnswerTool(b)
	s.AddTool(answer.Definition(), answer.Handle)

	closeTest := NewCloseTestTool(b)
	s.AddTool(closeTest.Definition(), closeTest.Handle)

	scores := NewScoresTool(b)
	s.AddTool(scores.Definition(), scores.Handle)

	deleteScore := NewDeleteScoreTool(b)
	s.AddTool(deleteScore.Definition(), deleteScore.Handle)

	return s
}
