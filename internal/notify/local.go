package notify

import (
	"context"
	"log/slog"
	"sync"
)

// LocalNotifier delivers published messages to in-process handlers
// synchronously. It stands in for Redis when no server is configured.
type LocalNotifier struct {
	mu        sync.RWMutex
	listeners map[string]Handler
}

// NewLocal creates an in-process notifier.
func NewLocal() *LocalNotifier {
	return &LocalNotifier{listeners: make(map[string]Handler)}
}

func (n *LocalNotifier) Subscribe(ctx context.Context, channel string, h Handler) error {
	n.mu.Lock()
	n.listeners[channel] = h
	n.mu.Unlock()
	slog.Debug("subscribed to channel (local)", "channel", channel)
	return nil
}

func (n *LocalNotifier) Unsubscribe(ctx context.Context, channel string) error {
	n.mu.Lock()
	delete(n.listeners, channel)
	n.mu.Unlock()
	slog.Debug("unsubscribed from channel (local)", "channel", channel)
	return nil
}

// Publish invokes the handler for channel, if any, before returning.
func (n *LocalNotifier) Publish(ctx context.Context, channel string, message any) error {
	payload, err := encodeMessage(message)
	if err != nil {
		return err
	}

	n.mu.RLock()
	h := n.listeners[channel]
	n.mu.RUnlock()

	if h != nil {
		callHandler(h, channel, decodePayload(payload))
	}
	return nil
}

func (n *LocalNotifier) Running() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.listeners) > 0
}

func (n *LocalNotifier) Close() error {
	n.mu.Lock()
	n.listeners = make(map[string]Handler)
	n.mu.Unlock()
	return nil
}

var _ Notifier = (*LocalNotifier)(nil)
