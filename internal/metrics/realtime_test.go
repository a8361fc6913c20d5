package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRealtime(t *testing.T) (*miniredis.Miniredis, *RedisRealtime) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	r := NewRedisRealtime(client, "")
	clock := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return clock }
	return mr, r
}

func TestRealtimeSnapshotEmpty(t *testing.T) {
	_, r := newRealtime(t)

	snap := r.Snapshot(t.Context())
	assert.Zero(t, snap.VehicleCount)
	assert.Empty(t, snap.VehicleCountByCategory)
	assert.Zero(t, snap.SearchCount)
	assert.Equal(t, "idle", snap.ScraperStatus)
	assert.Nil(t, snap.ScraperLastUpdate)
}

func TestRealtimeSnapshotCounts(t *testing.T) {
	mr, r := newRealtime(t)
	ctx := t.Context()

	mr.SAdd("btagent:vehicles", "v1", "v2", "v3")
	mr.SAdd("btagent:categories", "trucks", "vans")
	mr.SAdd("btagent:category:trucks", "v1", "v2")
	mr.SAdd("btagent:category:vans", "v3")

	require.NoError(t, r.RecordSearch(ctx, "volvo fh16"))
	require.NoError(t, r.RecordAgentTurn(ctx))
	require.NoError(t, r.RecordAgentTurn(ctx))
	require.NoError(t, r.UpdateScraperStatus(ctx, "running", 0.5))

	snap := r.Snapshot(ctx)
	assert.EqualValues(t, 3, snap.VehicleCount)
	assert.Equal(t, map[string]int64{"trucks": 2, "vans": 1}, snap.VehicleCountByCategory)
	assert.EqualValues(t, 1, snap.SearchCount)
	assert.EqualValues(t, 2, snap.ConversationCount)
	assert.EqualValues(t, 2, snap.MessageCount)
	assert.Equal(t, "running", snap.ScraperStatus)
	assert.InDelta(t, 0.5, snap.ScraperProgress, 1e-9)
	require.NotNil(t, snap.ScraperLastUpdate)
	assert.True(t, snap.ScraperLastUpdate.Equal(r.now()))
}

func TestRealtimeHistoryCapped(t *testing.T) {
	mr, r := newRealtime(t)
	ctx := t.Context()

	for i := range HistoryLimit + 20 {
		require.NoError(t, r.RecordSearch(ctx, fmt.Sprintf("q%d", i)))
	}

	stored, err := mr.List("btagent:search_history")
	require.NoError(t, err)
	assert.Len(t, stored, HistoryLimit)

	history, err := r.History(ctx, 5)
	require.NoError(t, err)
	require.Len(t, history, 5)
	assert.Equal(t, fmt.Sprintf("q%d", HistoryLimit+19), history[0].Query, "newest first")

	all, err := r.History(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, HistoryLimit)

	snap := r.Snapshot(ctx)
	assert.EqualValues(t, HistoryLimit+20, snap.SearchCount)
}

func TestRealtimeLegacyTimestamp(t *testing.T) {
	mr, r := newRealtime(t)
	require.NoError(t, mr.Set("btagent:scraper_last_update", "2025-03-30T14:22:01.500000"))

	snap := r.Snapshot(t.Context())
	require.NotNil(t, snap.ScraperLastUpdate)
	assert.Equal(t, 14, snap.ScraperLastUpdate.Hour())
	assert.Equal(t, "idle", snap.ScraperStatus)
}

func TestRealtimeFallsBackOnReadError(t *testing.T) {
	mr, r := newRealtime(t)
	// Wrong type makes SCARD fail.
	require.NoError(t, mr.Set("btagent:vehicles", "not-a-set"))

	snap := r.Snapshot(t.Context())
	assert.EqualValues(t, 120, snap.VehicleCount)
	assert.EqualValues(t, 250, snap.SearchCount)
}

func TestRealtimeCustomPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	r := NewRedisRealtime(client, "fleet:")
	require.NoError(t, r.RecordSearch(t.Context(), "x"))
	assert.True(t, mr.Exists("fleet:search_count"))
	assert.False(t, mr.Exists("btagent:search_count"))
}

func TestStaticRealtime(t *testing.T) {
	s := NewStaticRealtime()
	ctx := t.Context()

	snap := s.Snapshot(ctx)
	assert.EqualValues(t, 120, snap.VehicleCount)
	assert.EqualValues(t, 45, snap.VehicleCountByCategory["trucks"])
	assert.Equal(t, "idle", snap.ScraperStatus)

	assert.NoError(t, s.RecordSearch(ctx, "q"))
	assert.NoError(t, s.UpdateScraperStatus(ctx, "running", 1))
	assert.NoError(t, s.RecordAgentTurn(ctx))
	assert.EqualValues(t, 250, s.Snapshot(ctx).SearchCount, "updates are discarded")

	h, err := s.History(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, h)
}

func TestNewRealtimeWithoutClient(t *testing.T) {
	assert.IsType(t, &StaticRealtime{}, NewRealtime(nil, ""))
}
