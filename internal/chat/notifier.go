package chat

import (
	"context"
	"log/slog"

	"github.com/p-n-ai/pai-studio/internal/progress"
)

// Notifier broadcasts progress events through a gateway.
type Notifier struct {
	gw *Gateway
}

// NewNotifier creates a progress.Notifier backed by gw.
func NewNotifier(gw *Gateway) *Notifier {
	return &Notifier{gw: gw}
}

func (n *Notifier) Notify(ctx context.Context, event progress.Event) {
	err := n.gw.Broadcast(ctx, OutboundMessage{
		Kind: KindEvent,
		Text: event.Message,
		Data: event,
	})
	if err != nil {
		slog.Warn("failed to broadcast event", "kind", event.Kind, "topic", event.Topic, "error", err)
	}
}
