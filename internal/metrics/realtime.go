package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/spetr/mcp-vecstore/pkg/types"
)

// HistoryLimit is the number of search history entries kept.
const HistoryLimit = 100

// Realtime is the dashboard counter store.
type Realtime interface {
	// Snapshot returns the current counters.
	Snapshot(ctx context.Context) types.MetricsSnapshot

	// RecordSearch increments the search counter and appends query to the history.
	RecordSearch(ctx context.Context, query string) error

	// History returns up to limit recent searches, newest first.
	History(ctx context.Context, limit int) ([]types.SearchHistoryEntry, error)

	// UpdateScraperStatus stores the scraper status and progress.
	UpdateScraperStatus(ctx context.Context, status string, progress float64) error

	// RecordAgentTurn increments the conversation and message counters.
	RecordAgentTurn(ctx context.Context) error
}

// NewRealtime returns a Redis-backed store when client is non-nil and the
// canned one otherwise.
func NewRealtime(client *goredis.Client, prefix string) Realtime {
	if client == nil {
		slog.Warn("redis client not available, using static realtime metrics")
		return NewStaticRealtime()
	}
	return NewRedisRealtime(client, prefix)
}

// RedisRealtime keeps counters in Redis under a key prefix.
type RedisRealtime struct {
	client *goredis.Client
	prefix string
	now    func() time.Time
}

// NewRedisRealtime creates a counter store. An empty prefix selects types.DefaultPrefix.
func NewRedisRealtime(client *goredis.Client, prefix string) *RedisRealtime {
	if prefix == "" {
		prefix = types.DefaultPrefix
	}
	return &RedisRealtime{client: client, prefix: prefix, now: time.Now}
}

func (r *RedisRealtime) key(name string) string { return r.prefix + name }

// Snapshot reads all counters. Any read failure falls back to the canned snapshot.
func (r *RedisRealtime) Snapshot(ctx context.Context) types.MetricsSnapshot {
	snap, err := r.read(ctx)
	if err != nil {
		slog.Error("failed to read realtime metrics", "error", err)
		return cannedSnapshot(r.now())
	}
	return snap
}

func (r *RedisRealtime) read(ctx context.Context) (types.MetricsSnapshot, error) {
	snap := types.MetricsSnapshot{
		VehicleCountByCategory: make(map[string]int64),
		ScraperStatus:          "idle",
		LastUpdate:             r.now(),
	}

	var err error
	if snap.VehicleCount, err = r.client.SCard(ctx, r.key("vehicles")).Result(); err != nil {
		return snap, fmt.Errorf("vehicles: %w", err)
	}

	categories, err := r.client.SMembers(ctx, r.key("categories")).Result()
	if err != nil {
		return snap, fmt.Errorf("categories: %w", err)
	}
	for _, c := range categories {
		n, err := r.client.SCard(ctx, r.key("category:"+c)).Result()
		if err != nil {
			return snap, fmt.Errorf("category %s: %w", c, err)
		}
		snap.VehicleCountByCategory[c] = n
	}

	for name, dst := range map[string]*int64{
		"search_count":       &snap.SearchCount,
		"conversation_count": &snap.ConversationCount,
		"message_count":      &snap.MessageCount,
	} {
		n, err := r.client.Get(ctx, r.key(name)).Int64()
		if err != nil && !errors.Is(err, goredis.Nil) {
			return snap, fmt.Errorf("%s: %w", name, err)
		}
		*dst = n
	}

	status, err := r.client.Get(ctx, r.key("scraper_status")).Result()
	switch {
	case err == nil:
		snap.ScraperStatus = status
	case !errors.Is(err, goredis.Nil):
		return snap, fmt.Errorf("scraper_status: %w", err)
	}

	progress, err := r.client.Get(ctx, r.key("scraper_progress")).Float64()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return snap, fmt.Errorf("scraper_progress: %w", err)
	}
	snap.ScraperProgress = progress

	last, err := r.client.Get(ctx, r.key("scraper_last_update")).Result()
	switch {
	case err == nil:
		t, perr := parseTimestamp(last)
		if perr != nil {
			return snap, fmt.Errorf("scraper_last_update: %w", perr)
		}
		snap.ScraperLastUpdate = &t
	case !errors.Is(err, goredis.Nil):
		return snap, fmt.Errorf("scraper_last_update: %w", err)
	}

	return snap, nil
}

func (r *RedisRealtime) RecordSearch(ctx context.Context, query string) error {
	entry, err := json.Marshal(types.SearchHistoryEntry{Query: query, Timestamp: r.now().UTC()})
	if err != nil {
		return fmt.Errorf("encode search entry: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.Incr(ctx, r.key("search_count"))
		p.LPush(ctx, r.key("search_history"), entry)
		p.LTrim(ctx, r.key("search_history"), 0, HistoryLimit-1)
		return nil
	})
	if err != nil {
		slog.Error("failed to update search stats", "query", query, "error", err)
		return fmt.Errorf("record search: %w", err)
	}
	slog.Debug("updated search stats", "query", query)
	return nil
}

func (r *RedisRealtime) History(ctx context.Context, limit int) ([]types.SearchHistoryEntry, error) {
	if limit <= 0 || limit > HistoryLimit {
		limit = HistoryLimit
	}
	raw, err := r.client.LRange(ctx, r.key("search_history"), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("search history: %w", err)
	}

	entries := make([]types.SearchHistoryEntry, 0, len(raw))
	for _, s := range raw {
		var e types.SearchHistoryEntry
		if err := json.Unmarshal([]byte(s), &e); err != nil {
			slog.Debug("skipping malformed search history entry", "error", err)
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (r *RedisRealtime) UpdateScraperStatus(ctx context.Context, status string, progress float64) error {
	_, err := r.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.Set(ctx, r.key("scraper_status"), status, 0)
		p.Set(ctx, r.key("scraper_progress"), strconv.FormatFloat(progress, 'f', -1, 64), 0)
		p.Set(ctx, r.key("scraper_last_update"), r.now().UTC().Format(time.RFC3339Nano), 0)
		return nil
	})
	if err != nil {
		slog.Error("failed to update scraper status", "status", status, "error", err)
		return fmt.Errorf("update scraper status: %w", err)
	}
	slog.Info("updated scraper status", "status", status, "progress", progress)
	return nil
}

func (r *RedisRealtime) RecordAgentTurn(ctx context.Context) error {
	_, err := r.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.Incr(ctx, r.key("conversation_count"))
		p.Incr(ctx, r.key("message_count"))
		return nil
	})
	if err != nil {
		slog.Error("failed to update agent stats", "error", err)
		return fmt.Errorf("record agent turn: %w", err)
	}
	return nil
}

// StaticRealtime serves a fixed snapshot. Updates are logged and discarded.
type StaticRealtime struct {
	now func() time.Time
}

func NewStaticRealtime() *StaticRealtime {
	return &StaticRealtime{now: time.Now}
}

func (s *StaticRealtime) Snapshot(context.Context) types.MetricsSnapshot {
	return cannedSnapshot(s.now())
}

func (s *StaticRealtime) RecordSearch(_ context.Context, query string) error {
	slog.Info("updated search stats (static)", "query", query)
	return nil
}

func (s *StaticRealtime) History(context.Context, int) ([]types.SearchHistoryEntry, error) {
	return []types.SearchHistoryEntry{}, nil
}

func (s *StaticRealtime) UpdateScraperStatus(_ context.Context, status string, progress float64) error {
	slog.Info("updated scraper status (static)", "status", status, "progress", progress)
	return nil
}

func (s *StaticRealtime) RecordAgentTurn(context.Context) error {
	slog.Info("updated agent stats (static)")
	return nil
}

func cannedSnapshot(now time.Time) types.MetricsSnapshot {
	return types.MetricsSnapshot{
		VehicleCount: 120,
		VehicleCountByCategory: map[string]int64{
			"trucks":       45,
			"vans":         35,
			"buses":        20,
			"tractors":     10,
			"construction": 5,
			"agricultural": 5,
			"trailers":     0,
		},
		SearchCount:       250,
		ScraperStatus:     "idle",
		ScraperLastUpdate: &now,
		LastUpdate:        now,
	}
}

// parseTimestamp accepts RFC 3339 and the zone-less ISO form other writers use.
func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02T15:04:05.999999999", s)
}

var (
	_ Realtime = (*RedisRealtime)(nil)
	_ Realtime = (*StaticRealtime)(nil)
)
