package mcp

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spetr/mcp-vecstore/builtin/embedding/hash"
	"github.com/spetr/mcp-vecstore/builtin/generation/canned"
	"github.com/spetr/mcp-vecstore/builtin/kv/bolt"
	"github.com/spetr/mcp-vecstore/internal/metrics"
	"github.com/spetr/mcp-vecstore/internal/notify"
	"github.com/spetr/mcp-vecstore/internal/vectorstore"
	"github.com/spetr/mcp-vecstore/pkg/types"
)

type recordingRealtime struct {
	*metrics.StaticRealtime
	mu       sync.Mutex
	searches []string
	turns    int
}

func (r *recordingRealtime) RecordSearch(ctx context.Context, query string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.searches = append(r.searches, query)
	return nil
}

func (r *recordingRealtime) RecordAgentTurn(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turns++
	return nil
}

type fixture struct {
	srv      *Server
	store    *vectorstore.Store
	realtime *recordingRealtime
	events   []map[string]any
}

func newFixture(t *testing.T, withGenerator bool) *fixture {
	t.Helper()
	backend, err := bolt.Open(filepath.Join(t.TempDir(), "mcp.bolt"))
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	f := &fixture{
		store:    vectorstore.New(vectorstore.Config{Backend: backend}),
		realtime: &recordingRealtime{StaticRealtime: metrics.NewStaticRealtime()},
	}

	n := notify.NewLocal()
	require.NoError(t, n.Subscribe(t.Context(), "btagent:events", func(_ string, payload any) {
		if m, ok := payload.(map[string]any); ok {
			f.events = append(f.events, m)
		}
	}))

	cfg := Config{
		Store:     f.store,
		Embedding: hash.New(hash.Config{Dimensions: 32}),
		Notifier:  n,
		Realtime:  f.realtime,
	}
	if withGenerator {
		cfg.Generator = canned.New(canned.Config{})
	}

	f.srv, err = New(cfg)
	require.NoError(t, err)
	return f
}

type handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

func call(t *testing.T, h handler, args map[string]any) (string, bool) {
	t.Helper()
	res, err := h(t.Context(), mcp.CallToolRequest{
		Params: mcp.CallToolParams{Arguments: args},
	})
	require.NoError(t, err)
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text, res.IsError
}

func decode(t *testing.T, s string) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &out), s)
	return out
}

func TestNewRequiresStore(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestAddGetCountList(t *testing.T) {
	f := newFixture(t, false)

	out, isErr := call(t, f.srv.handleAddVector, map[string]any{
		"id":       "truck-1",
		"vector":   []any{0.1, 0.2, 0.3, 0.4},
		"metadata": map[string]any{"make": "KAMAZ", "year": 2022},
	})
	require.False(t, isErr, out)
	assert.Equal(t, true, decode(t, out)["stored"])

	out, isErr = call(t, f.srv.handleAddVector, map[string]any{
		"id":       "truck-2",
		"vector":   "[0.4, 0.3, 0.2, 0.1]",
		"metadata": `{"make": "MAZ"}`,
	})
	require.False(t, isErr, out)

	out, isErr = call(t, f.srv.handleGetVector, map[string]any{"id": "truck-1"})
	require.False(t, isErr, out)
	rec := decode(t, out)
	assert.Equal(t, "truck-1", rec["id"])
	assert.Equal(t, "KAMAZ", rec["metadata"].(map[string]any)["make"])
	assert.Len(t, rec["vector"], 4)

	out, _ = call(t, f.srv.handleCountVectors, nil)
	assert.EqualValues(t, 2, decode(t, out)["count"])

	out, _ = call(t, f.srv.handleListVectors, map[string]any{"limit": 1})
	assert.EqualValues(t, 1, decode(t, out)["count"])

	require.Len(t, f.events, 2)
	assert.Equal(t, "vector.added", f.events[0]["type"])
	assert.Equal(t, []any{"truck-1"}, f.events[0]["ids"])
}

func TestAddVectorRejectsBadInput(t *testing.T) {
	f := newFixture(t, false)

	tests := []struct {
		name string
		args map[string]any
	}{
		{"missing vector", map[string]any{"id": "x"}},
		{"zero vector", map[string]any{"id": "x", "vector": []any{0.0, 0.0}}},
		{"non-numeric", map[string]any{"id": "x", "vector": []any{"a"}}},
		{"empty id", map[string]any{"id": "", "vector": []any{1.0}}},
		{"bad metadata", map[string]any{"id": "x", "vector": []any{1.0}, "metadata": "{nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, isErr := call(t, f.srv.handleAddVector, tt.args)
			assert.True(t, isErr)
		})
	}
	assert.Empty(t, f.events)
}

func TestGetMissing(t *testing.T) {
	f := newFixture(t, false)
	out, isErr := call(t, f.srv.handleGetVector, map[string]any{"id": "ghost"})
	assert.True(t, isErr)
	assert.Contains(t, out, "vector not found: ghost")
}

func TestAddTextAndSearchByText(t *testing.T) {
	f := newFixture(t, false)

	for id, text := range map[string]string{
		"kamaz": "KAMAZ 5490 tractor unit",
		"maz":   "MAZ 6312 dump truck",
		"gaz":   "GAZelle Next van",
	} {
		out, isErr := call(t, f.srv.handleAddText, map[string]any{"id": id, "text": text})
		require.False(t, isErr, out)
	}

	out, isErr := call(t, f.srv.handleSearchVectors, map[string]any{
		"text":      "MAZ 6312 dump truck",
		"limit":     1,
		"threshold": 0.5,
	})
	require.False(t, isErr, out)
	res := decode(t, out)
	require.EqualValues(t, 1, res["count"])
	top := res["results"].([]any)[0].(map[string]any)
	assert.Equal(t, "maz", top["id"])
	assert.InDelta(t, 1.0, top["similarity"], 1e-6)
	assert.Equal(t, "MAZ 6312 dump truck", top["metadata"].(map[string]any)["text"])

	assert.Equal(t, []string{"MAZ 6312 dump truck"}, f.realtime.searches)
}

func TestSearchRequiresQuery(t *testing.T) {
	f := newFixture(t, false)
	out, isErr := call(t, f.srv.handleSearchVectors, map[string]any{})
	assert.True(t, isErr)
	assert.Contains(t, out, "either vector or text")
}

func TestSearchByVectorDoesNotRecordQuery(t *testing.T) {
	f := newFixture(t, false)
	_, isErr := call(t, f.srv.handleAddVector, map[string]any{"id": "a", "vector": []any{1.0, 0.0}})
	require.False(t, isErr)

	out, isErr := call(t, f.srv.handleSearchVectors, map[string]any{"vector": []any{1.0, 0.0}})
	require.False(t, isErr, out)
	assert.EqualValues(t, 1, decode(t, out)["count"])
	assert.Empty(t, f.realtime.searches)
}

func TestDeleteAndClear(t *testing.T) {
	f := newFixture(t, false)
	for _, id := range []string{"a", "b", "c"} {
		_, isErr := call(t, f.srv.handleAddVector, map[string]any{"id": id, "vector": []any{1.0, 2.0}})
		require.False(t, isErr)
	}

	_, isErr := call(t, f.srv.handleDeleteVector, map[string]any{"id": "a"})
	require.False(t, isErr)

	out, isErr := call(t, f.srv.handleClearVectors, map[string]any{})
	assert.True(t, isErr)
	assert.Contains(t, out, "confirm")

	out, isErr = call(t, f.srv.handleClearVectors, map[string]any{"confirm": true})
	require.False(t, isErr, out)
	assert.EqualValues(t, 2, decode(t, out)["deleted"])

	out, _ = call(t, f.srv.handleCountVectors, nil)
	assert.EqualValues(t, 0, decode(t, out)["count"])

	got := make([]string, len(f.events))
	for i, e := range f.events {
		got[i] = e["type"].(string)
	}
	assert.Equal(t, []string{"vector.added", "vector.added", "vector.added", "vector.deleted", "vectors.cleared"}, got)
	assert.EqualValues(t, 2, f.events[4]["count"])
}

func TestAsk(t *testing.T) {
	f := newFixture(t, true)
	_, isErr := call(t, f.srv.handleAddText, map[string]any{
		"id":   "leasing",
		"text": "Leasing from 10% down payment",
	})
	require.False(t, isErr)

	out, isErr := call(t, f.srv.handleAsk, map[string]any{"question": "What financing options do you have?", "threshold": -1.0})
	require.False(t, isErr, out)
	res := decode(t, out)
	assert.Equal(t, canned.DefaultAnswers[3].Reply, res["answer"])
	assert.Equal(t, "canned", res["generator"])
	assert.Len(t, res["sources"], 1)
	assert.Equal(t, 1, f.realtime.turns)
}

func TestAskWithoutGenerator(t *testing.T) {
	f := newFixture(t, false)
	out, isErr := call(t, f.srv.handleAsk, map[string]any{"question": "hello"})
	assert.True(t, isErr)
	assert.Contains(t, out, "no generator")

	_, isErr = call(t, f.srv.handleAsk, map[string]any{"question": "  "})
	assert.True(t, isErr)
}

func TestGetMetrics(t *testing.T) {
	f := newFixture(t, false)
	out, isErr := call(t, f.srv.handleGetMetrics, nil)
	require.False(t, isErr, out)
	res := decode(t, out)

	rt := res["realtime"].(map[string]any)
	assert.EqualValues(t, 120, rt["vehicle_count"])
	store := res["store"].(map[string]any)
	assert.Equal(t, "bolt", store["backend"])
	assert.EqualValues(t, 0, store["vectors"])
}

func TestBuildPrompt(t *testing.T) {
	p := buildPrompt("Which van?", nil)
	assert.Equal(t, "Question: Which van?", p)

	p = buildPrompt("Which van?", []types.SearchResult{
		{ID: "gaz", Similarity: 0.91, Metadata: map[string]any{"text": "GAZelle Next"}},
		{ID: "ford", Similarity: 0.5, Metadata: map[string]any{"make": "Ford"}},
	})
	assert.True(t, strings.HasPrefix(p, "Context:\n[1] gaz (similarity 0.910): GAZelle Next\n[2] ford (similarity 0.500): {\"make\":\"Ford\"}\n"))
	assert.True(t, strings.HasSuffix(p, "Question: Which van?"))
}

func TestParseVector(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		want    []float32
		wantErr bool
	}{
		{"any slice", []any{1.0, 2, json.Number("3.5")}, []float32{1, 2, 3.5}, false},
		{"float64 slice", []float64{0.5}, []float32{0.5}, false},
		{"json string", "[1, -1]", []float32{1, -1}, false},
		{"nil", nil, nil, true},
		{"bad string", "[1,", nil, true},
		{"bad element", []any{true}, nil, true},
		{"wrong type", 42, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseVector(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
