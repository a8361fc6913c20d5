package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	goredis "github.com/redis/go-redis/v9"
)

// RedisNotifier implements Notifier on Redis PUBLISH/SUBSCRIBE.
//
// The first Subscribe starts a background listener; removing the last
// handler cancels it and waits for it to exit. Handlers run on the listener
// goroutine and must not call Unsubscribe or Close synchronously.
type RedisNotifier struct {
	client *goredis.Client

	mu        sync.RWMutex
	listeners map[string]Handler
	pubsub    *goredis.PubSub
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewRedis creates a notifier using client.
func NewRedis(client *goredis.Client) *RedisNotifier {
	return &RedisNotifier{
		client:    client,
		listeners: make(map[string]Handler),
	}
}

// Subscribe registers h for channel and starts the listener if needed.
func (n *RedisNotifier) Subscribe(ctx context.Context, channel string, h Handler) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	started := false
	if n.pubsub == nil {
		n.pubsub = n.client.Subscribe(ctx)
		started = true
	}
	if err := n.pubsub.Subscribe(ctx, channel); err != nil {
		if started {
			n.pubsub.Close()
			n.pubsub = nil
		}
		return fmt.Errorf("subscribe %s: %w", channel, err)
	}
	n.listeners[channel] = h

	if n.cancel == nil {
		lctx, cancel := context.WithCancel(context.Background())
		n.cancel = cancel
		n.done = make(chan struct{})
		go n.listen(lctx, n.pubsub.Channel(), n.done)
	}

	slog.Info("subscribed to channel", "channel", channel)
	return nil
}

// Unsubscribe removes the handler for channel. When no handlers remain the
// listener is stopped.
func (n *RedisNotifier) Unsubscribe(ctx context.Context, channel string) error {
	n.mu.Lock()
	if n.pubsub != nil {
		if err := n.pubsub.Unsubscribe(ctx, channel); err != nil {
			n.mu.Unlock()
			return fmt.Errorf("unsubscribe %s: %w", channel, err)
		}
	}
	delete(n.listeners, channel)
	var stop func()
	if len(n.listeners) == 0 {
		stop = n.detach()
	}
	n.mu.Unlock()

	if stop != nil {
		stop()
	}
	slog.Info("unsubscribed from channel", "channel", channel)
	return nil
}

// Publish sends message to channel.
func (n *RedisNotifier) Publish(ctx context.Context, channel string, message any) error {
	payload, err := encodeMessage(message)
	if err != nil {
		return err
	}
	if err := n.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	slog.Debug("published message", "channel", channel)
	return nil
}

// Running reports whether the listener is active.
func (n *RedisNotifier) Running() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.cancel != nil
}

// Close stops the listener and drops all handlers.
func (n *RedisNotifier) Close() error {
	n.mu.Lock()
	n.listeners = make(map[string]Handler)
	stop := n.detach()
	n.mu.Unlock()

	if stop != nil {
		stop()
	}
	return nil
}

// detach clears listener state and returns a func that shuts it down.
// Must be called with mu held; the returned func must be called without it.
func (n *RedisNotifier) detach() func() {
	cancel, done, ps := n.cancel, n.done, n.pubsub
	n.cancel, n.done, n.pubsub = nil, nil, nil
	if cancel == nil && ps == nil {
		return nil
	}
	return func() {
		if cancel != nil {
			cancel()
		}
		if ps != nil {
			ps.Close()
		}
		if done != nil {
			<-done
		}
	}
}

func (n *RedisNotifier) listen(ctx context.Context, ch <-chan *goredis.Message, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			n.dispatch(msg.Channel, msg.Payload)
		}
	}
}

func (n *RedisNotifier) dispatch(channel, payload string) {
	n.mu.RLock()
	h := n.listeners[channel]
	n.mu.RUnlock()
	if h == nil {
		return
	}
	callHandler(h, channel, decodePayload(payload))
}

func callHandler(h Handler, channel string, payload any) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("notification handler panicked", "channel", channel, "panic", r)
		}
	}()
	h(channel, payload)
}

var _ Notifier = (*RedisNotifier)(nil)
