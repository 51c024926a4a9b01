// Package mcptools exposes the study session as MCP tools.
//
// Each tool is a struct holding the shared Backend, with Definition()
// returning the mcp.Tool schema and Handle() serving the call. Session
// failures are reported as tool errors, never as protocol errors.
package mcptools

import (
	"sync"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/p-n-ai/pai-studio/internal/session"
)

// Backend serializes tool calls into one session.
type Backend struct {
	mu   sync.Mutex
	sess *session.Session
}

// NewBackend wraps sess.
func NewBackend(sess *session.Session) *Backend {
	return &Backend{sess: sess}
}

func (b *Backend) do(fn func(*session.Session)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b.sess)
}

// intArg extracts an integer argument from a tool request, returning
// defaultVal if the key is missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}
