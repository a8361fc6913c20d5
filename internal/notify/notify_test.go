package notify

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type received struct {
	channel string
	payload any
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *RedisNotifier) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	n := NewRedis(client)
	t.Cleanup(func() { n.Close() })
	return mr, n
}

func waitSubscribed(t *testing.T, mr *miniredis.Miniredis, channel string, want int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return mr.PubSubNumSub(channel)[channel] == want
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRedisPublishSubscribe(t *testing.T) {
	mr, n := newRedis(t)
	ctx := t.Context()

	got := make(chan received, 4)
	require.NoError(t, n.Subscribe(ctx, "btagent:events", func(channel string, payload any) {
		got <- received{channel, payload}
	}))
	assert.True(t, n.Running())
	waitSubscribed(t, mr, "btagent:events", 1)

	require.NoError(t, n.Publish(ctx, "btagent:events", map[string]any{"type": "vector.added", "count": 1}))
	require.NoError(t, n.Publish(ctx, "btagent:events", "plain text"))

	select {
	case r := <-got:
		assert.Equal(t, "btagent:events", r.channel)
		assert.Equal(t, map[string]any{"type": "vector.added", "count": float64(1)}, r.payload)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for JSON message")
	}
	select {
	case r := <-got:
		assert.Equal(t, "plain text", r.payload)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for text message")
	}
}

func TestRedisListenerLifecycle(t *testing.T) {
	mr, n := newRedis(t)
	ctx := t.Context()
	noop := func(string, any) {}

	assert.False(t, n.Running())

	require.NoError(t, n.Subscribe(ctx, "a", noop))
	require.NoError(t, n.Subscribe(ctx, "b", noop))
	assert.True(t, n.Running())
	waitSubscribed(t, mr, "b", 1)

	require.NoError(t, n.Unsubscribe(ctx, "a"))
	assert.True(t, n.Running(), "listener must keep running while handlers remain")

	require.NoError(t, n.Unsubscribe(ctx, "b"))
	assert.False(t, n.Running())
	waitSubscribed(t, mr, "b", 0)

	// Restart after a full stop.
	require.NoError(t, n.Subscribe(ctx, "c", noop))
	assert.True(t, n.Running())
	require.NoError(t, n.Close())
	assert.False(t, n.Running())
}

func TestRedisHandlerPanicIsContained(t *testing.T) {
	mr, n := newRedis(t)
	ctx := t.Context()

	calls := make(chan struct{}, 2)
	require.NoError(t, n.Subscribe(ctx, "boom", func(string, any) {
		calls <- struct{}{}
		panic("handler failure")
	}))
	waitSubscribed(t, mr, "boom", 1)

	require.NoError(t, n.Publish(ctx, "boom", "1"))
	require.NoError(t, n.Publish(ctx, "boom", "2"))
	for range 2 {
		select {
		case <-calls:
		case <-time.After(2 * time.Second):
			t.Fatal("listener stopped after handler panic")
		}
	}
}

func TestRedisPublishFailure(t *testing.T) {
	mr, n := newRedis(t)
	mr.Close()
	err := n.Publish(context.Background(), "x", "y")
	assert.Error(t, err)
}

func TestLocalNotifier(t *testing.T) {
	n := NewLocal()
	ctx := t.Context()

	var got []received
	require.NoError(t, n.Subscribe(ctx, "ch", func(channel string, payload any) {
		got = append(got, received{channel, payload})
	}))
	assert.True(t, n.Running())

	require.NoError(t, n.Publish(ctx, "ch", []string{"x", "y"}))
	require.NoError(t, n.Publish(ctx, "other", "ignored"))
	require.Len(t, got, 1)
	assert.Equal(t, []any{"x", "y"}, got[0].payload)

	require.NoError(t, n.Unsubscribe(ctx, "ch"))
	assert.False(t, n.Running())
	require.NoError(t, n.Publish(ctx, "ch", "late"))
	assert.Len(t, got, 1)
}

func TestEncodeMessage(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"string", "hello", "hello"},
		{"bytes", []byte("raw"), "raw"},
		{"map", map[string]int{"n": 1}, `{"n":1}`},
		{"number", 42, "42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := encodeMessage(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := encodeMessage(make(chan int))
	assert.Error(t, err)
}

func TestNewSelectsImplementation(t *testing.T) {
	assert.IsType(t, &LocalNotifier{}, New(nil))

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()
	assert.IsType(t, &RedisNotifier{}, New(client))
}
