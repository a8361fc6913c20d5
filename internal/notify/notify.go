// Package notify implements publish/subscribe notifications over Redis, with
// an in-process fallback used when no Redis client is configured.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
)

// Handler receives a decoded message. payload is the JSON-decoded value
// when the message is valid JSON, otherwise the raw string.
type Handler func(channel string, payload any)

// Notifier publishes messages and dispatches subscribed channels to handlers.
type Notifier interface {
	// Subscribe registers h for channel, replacing any previous handler.
	Subscribe(ctx context.Context, channel string, h Handler) error

	// Unsubscribe removes the handler for channel.
	Unsubscribe(ctx context.Context, channel string) error

	// Publish sends message to channel. Values other than string and []byte
	// are JSON-encoded.
	Publish(ctx context.Context, channel string, message any) error

	// Running reports whether any listener is registered.
	Running() bool

	// Close stops listening and releases resources.
	Close() error
}

// New returns a Redis notifier when client is non-nil and a local one otherwise.
func New(client *goredis.Client) Notifier {
	if client == nil {
		return NewLocal()
	}
	return NewRedis(client)
}

func encodeMessage(message any) (string, error) {
	switch m := message.(type) {
	case string:
		return m, nil
	case []byte:
		return string(m), nil
	}
	b, err := json.Marshal(message)
	if err != nil {
		return "", fmt.Errorf("encode message: %w", err)
	}
	return string(b), nil
}

func decodePayload(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	return v
}
