package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// ChannelWebSocket is the gateway name of the WebSocket channel.
const ChannelWebSocket = "websocket"

const (
	wsMaxMessageLen = 8192
	wsWriteTimeout  = 5 * time.Second
	wsReadLimit     = 64 << 10
)

// Frame is the JSON envelope exchanged over the socket. Clients send
// {"type":"message","text":"..."}.
type Frame struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	Data any    `json:"data,omitempty"`
}

// FrameHello is the first frame sent on every connection; its data carries
// the client id.
const FrameHello = "hello"

// WebSocketChannel implements Channel over WebSocket connections accepted
// by its ServeHTTP method. Each connection is one user.
type WebSocketChannel struct {
	origins []string
	nextID  atomic.Int64

	mu      sync.Mutex
	handler func(InboundMessage)
	clients map[string]*wsClient
}

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// NewWebSocketChannel creates a channel accepting connections from the
// given origin patterns. Same-host requests are always accepted.
func NewWebSocketChannel(originPatterns []string) *WebSocketChannel {
	return &WebSocketChannel{
		origins: originPatterns,
		clients: make(map[string]*wsClient),
	}
}

func (c *WebSocketChannel) Start(_ context.Context, handler func(InboundMessage)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = handler
	return nil
}

// Stop closes every open connection.
func (c *WebSocketChannel) Stop() error {
	c.mu.Lock()
	clients := c.clients
	c.clients = make(map[string]*wsClient)
	c.mu.Unlock()

	for _, cl := range clients {
		_ = cl.conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
	return nil
}

// Clients returns the number of open connections.
func (c *WebSocketChannel) Clients() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.clients)
}

func (c *WebSocketChannel) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: c.origins})
	if err != nil {
		slog.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(wsReadLimit)

	id := fmt.Sprintf("ws-%d", c.nextID.Add(1))
	cl := &wsClient{conn: conn}
	c.mu.Lock()
	c.clients[id] = cl
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.clients, id)
		c.mu.Unlock()
	}()

	ctx := r.Context()
	if err := cl.write(ctx, Frame{Type: FrameHello, Data: map[string]string{"user_id": id}}); err != nil {
		slog.Warn("websocket hello failed", "client", id, "error", err)
		return
	}
	slog.Info("websocket client connected", "client", id)

	for {
		var f Frame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				slog.Info("websocket client disconnected", "client", id)
			default:
				if !errors.Is(err, context.Canceled) {
					slog.Warn("websocket read failed", "client", id, "error", err)
				}
			}
			return
		}

		text := strings.TrimSpace(f.Text)
		if text == "" {
			continue
		}

		c.mu.Lock()
		handler := c.handler
		c.mu.Unlock()
		if handler == nil {
			slog.Warn("websocket message dropped, channel not started", "client", id)
			continue
		}
		handler(InboundMessage{Channel: ChannelWebSocket, UserID: id, Text: text})
	}
}

// SendMessage writes msg to userID, or to every client when userID is empty.
// Long texts are split across several frames; Data rides on the first.
func (c *WebSocketChannel) SendMessage(ctx context.Context, userID string, msg OutboundMessage) error {
	kind := msg.Kind
	if kind == "" {
		kind = KindReply
	}

	frames := []Frame{{Type: kind, Text: msg.Text, Data: msg.Data}}
	if parts := SplitMessage(msg.Text, wsMaxMessageLen); len(parts) > 1 {
		frames = frames[:0]
		for i, part := range parts {
			f := Frame{Type: kind, Text: part}
			if i == 0 {
				f.Data = msg.Data
			}
			frames = append(frames, f)
		}
	}

	targets, err := c.targets(userID)
	if err != nil {
		return err
	}

	var errs []error
	for id, cl := range targets {
		for _, f := range frames {
			if err := cl.write(ctx, f); err != nil {
				errs = append(errs, fmt.Errorf("websocket client %s: %w", id, err))
				break
			}
		}
	}
	return errors.Join(errs...)
}

func (c *WebSocketChannel) SendTyping(ctx context.Context, userID string) error {
	targets, err := c.targets(userID)
	if err != nil {
		return err
	}
	for _, cl := range targets {
		_ = cl.write(ctx, Frame{Type: KindTyping})
	}
	return nil
}

func (c *WebSocketChannel) targets(userID string) (map[string]*wsClient, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if userID == "" {
		out := make(map[string]*wsClient, len(c.clients))
		for id, cl := range c.clients {
			out[id] = cl
		}
		return out, nil
	}

	cl, ok := c.clients[userID]
	if !ok {
		return nil, fmt.Errorf("websocket client %s not connected", userID)
	}
	return map[string]*wsClient{userID: cl}, nil
}

func (cl *wsClient) write(ctx context.Context, f Frame) error {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, cl.conn, f)
}
