package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spetr/mcp-vecstore/builtin/embedding/hash"
)

type memWriter struct {
	mu      sync.Mutex
	records map[string][]float32
	meta    map[string]map[string]any
	failIDs map[string]bool
}

func newMemWriter() *memWriter {
	return &memWriter{
		records: make(map[string][]float32),
		meta:    make(map[string]map[string]any),
		failIDs: make(map[string]bool),
	}
}

func (m *memWriter) Add(ctx context.Context, id string, vector []float32, metadata map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failIDs[id] {
		return errors.New("write refused")
	}
	m.records[id] = vector
	m.meta[id] = metadata
	return nil
}

func (m *memWriter) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	delete(m.meta, id)
	return nil
}

func (m *memWriter) ids() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.records))
	for id := range m.records {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadJSONArray(t *testing.T) {
	w := newMemWriter()
	l := NewLoader(Config{Store: w, Embedding: hash.New(hash.Config{Dimensions: 8, BatchSize: 2})})

	path := writeFile(t, t.TempDir(), "trucks.json", `[
		{"id": "v1", "vector": [1, 0, 0], "metadata": {"make": "Volvo"}},
		{"id": "v2", "text": "Scania R450 tractor"},
		{"id": "v3", "text": "MAN TGX", "metadata": {"text": "custom"}},
		{"id": "v4", "text": "DAF XF"},
		{"id": "", "vector": [1, 1]},
		{"id": "v5"}
	]`)

	stats, err := l.LoadFile(t.Context(), path)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Added)
	assert.Equal(t, 2, stats.Failed)
	assert.Equal(t, []string{"v1", "v2", "v3", "v4"}, stats.IDs)
	assert.NotEmpty(t, stats.Elapsed)

	assert.Equal(t, []float32{1, 0, 0}, w.records["v1"])
	assert.Equal(t, hash.Vector("Scania R450 tractor", 8), w.records["v2"])
	assert.Equal(t, "Scania R450 tractor", w.meta["v2"]["text"])
	assert.Equal(t, "custom", w.meta["v3"]["text"], "explicit metadata text wins")
	assert.Nil(t, w.meta["v1"]["text"])
}

func TestLoadJSONSingleObject(t *testing.T) {
	w := newMemWriter()
	l := NewLoader(Config{Store: w})

	path := writeFile(t, t.TempDir(), "one.json", `{"id": "solo", "vector": [0.5, 0.5]}`)
	stats, err := l.LoadFile(t.Context(), path)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Added)
	assert.Equal(t, []string{"solo"}, w.ids())
}

func TestLoadJSONL(t *testing.T) {
	w := newMemWriter()
	w.failIDs["refused"] = true
	l := NewLoader(Config{Store: w})

	path := writeFile(t, t.TempDir(), "records.jsonl", `{"id": "a", "vector": [1, 0]}

{"id": "b", "vector": [0, 1]}
not json at all
{"id": "refused", "vector": [1, 1]}
{"id": "text-only", "text": "no embedder configured"}
`)

	stats, err := l.LoadFile(t.Context(), path)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Added)
	assert.Equal(t, 3, stats.Failed, "malformed line, refused write and unembedded text")
	assert.Equal(t, []string{"a", "b"}, w.ids())
}

func TestLoadErrors(t *testing.T) {
	l := NewLoader(Config{Store: newMemWriter()})
	dir := t.TempDir()

	_, err := l.LoadFile(t.Context(), writeFile(t, dir, "notes.txt", "hello"))
	assert.ErrorIs(t, err, ErrUnsupportedFile)

	_, err = l.LoadFile(t.Context(), filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = l.LoadFile(t.Context(), writeFile(t, dir, "broken.json", `[{"id": `))
	assert.Error(t, err)
}

func TestLoadEmptyFile(t *testing.T) {
	l := NewLoader(Config{Store: newMemWriter()})
	stats, err := l.LoadFile(t.Context(), writeFile(t, t.TempDir(), "empty.json", "  \n"))
	require.NoError(t, err)
	assert.Zero(t, stats.Added)
	assert.Zero(t, stats.Failed)
}

func TestLoadCancelled(t *testing.T) {
	l := NewLoader(Config{Store: newMemWriter(), Embedding: hash.New(hash.Config{Dimensions: 4})})
	path := writeFile(t, t.TempDir(), "x.json", `[{"id": "a", "text": "t"}]`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := l.LoadFile(ctx, path)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSupported(t *testing.T) {
	tests := map[string]bool{
		"a.json":   true,
		"a.JSONL":  true,
		"a.ndjson": true,
		"a.csv":    false,
		"json":     false,
	}
	for path, want := range tests {
		assert.Equal(t, want, Supported(path), path)
	}
}
