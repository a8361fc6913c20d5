// Package ingest loads vector records from JSON and JSONL files into the
// vector store, embedding text entries on the way.
package ingest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/spetr/mcp-vecstore/pkg/provider"
	"github.com/spetr/mcp-vecstore/pkg/types"
)

// ErrUnsupportedFile is returned for files that are neither JSON nor JSONL.
var ErrUnsupportedFile = errors.New("unsupported file type")

// maxLineSize bounds a single JSONL line.
const maxLineSize = 16 << 20

// Entry is one record in an ingest file. Vector takes precedence over Text;
// entries with only Text are embedded.
type Entry struct {
	ID       string         `json:"id"`
	Vector   []float32      `json:"vector,omitempty"`
	Text     string         `json:"text,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Writer is the subset of the vector store the loader needs.
type Writer interface {
	Add(ctx context.Context, id string, vector []float32, metadata map[string]any) error
	Delete(ctx context.Context, id string) error
}

// Config contains loader configuration.
type Config struct {
	Store     Writer
	Embedding provider.EmbeddingProvider // Optional; text entries fail without it

	// Concurrency bounds parallel embedding batches. Default: 2.
	Concurrency int
}

// Loader reads record files and upserts them.
type Loader struct {
	store       Writer
	embedding   provider.EmbeddingProvider
	concurrency int
}

// NewLoader creates a loader.
func NewLoader(cfg Config) *Loader {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}
	return &Loader{
		store:       cfg.Store,
		embedding:   cfg.Embedding,
		concurrency: cfg.Concurrency,
	}
}

// Supported reports whether path has an extension the loader reads.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonl", ".ndjson":
		return true
	}
	return false
}

// LoadFile ingests every entry in path. Entries that cannot be parsed,
// embedded or stored are counted as failed; the error return is reserved
// for unreadable files and cancellation.
func (l *Loader) LoadFile(ctx context.Context, path string) (*types.IngestStats, error) {
	start := time.Now()

	entries, bad, err := ReadEntries(path)
	if err != nil {
		return nil, err
	}

	stats := &types.IngestStats{File: path, Failed: bad}
	if err := l.embedMissing(ctx, entries); err != nil {
		return nil, err
	}

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.ID == "" || len(e.Vector) == 0 {
			stats.Failed++
			continue
		}
		if err := l.store.Add(ctx, e.ID, e.Vector, e.Metadata); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			slog.Warn("failed to store record", "file", path, "id", e.ID, "error", err)
			stats.Failed++
			continue
		}
		stats.Added++
		stats.IDs = append(stats.IDs, e.ID)
	}

	stats.Elapsed = time.Since(start).Round(time.Millisecond).String()
	slog.Info("ingested file", "file", path, "added", stats.Added, "failed", stats.Failed)
	return stats, nil
}

// embedMissing fills Vector for entries that only carry Text. Batches run
// concurrently; a failed batch leaves its entries without vectors.
func (l *Loader) embedMissing(ctx context.Context, entries []Entry) error {
	var pending []int
	for i, e := range entries {
		if len(e.Vector) == 0 && e.Text != "" {
			pending = append(pending, i)
		}
	}
	if len(pending) == 0 {
		return nil
	}
	if l.embedding == nil {
		slog.Warn("no embedding provider configured, skipping text entries", "count", len(pending))
		return nil
	}

	batchSize := l.embedding.MaxBatchSize()
	if batchSize <= 0 {
		batchSize = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)

	for i := 0; i < len(pending); i += batchSize {
		batch := pending[i:min(i+batchSize, len(pending))]
		g.Go(func() error {
			texts := make([]string, len(batch))
			for j, idx := range batch {
				texts[j] = entries[idx].Text
			}

			vecs, err := l.embedding.Embed(gctx, texts)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				slog.Warn("embedding batch failed", "size", len(batch), "error", err)
				return nil
			}
			if len(vecs) != len(batch) {
				slog.Warn("embedding batch size mismatch", "want", len(batch), "got", len(vecs))
				return nil
			}
			// Each goroutine writes disjoint entries.
			for j, idx := range batch {
				entries[idx].Vector = vecs[j]
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// ReadEntries parses path. It returns the parsed entries and the number of
// malformed JSONL lines. Text entries get their text copied into metadata
// under "text" unless metadata already sets it.
func ReadEntries(path string) ([]Entry, int, error) {
	if !Supported(path) {
		return nil, 0, fmt.Errorf("%w: %s", ErrUnsupportedFile, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("read %s: %w", path, err)
	}

	var (
		entries []Entry
		bad     int
	)
	if strings.EqualFold(filepath.Ext(path), ".json") {
		entries, err = parseJSON(data)
		if err != nil {
			return nil, 0, fmt.Errorf("parse %s: %w", path, err)
		}
	} else {
		entries, bad, err = parseJSONL(data)
		if err != nil {
			return nil, 0, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	for i := range entries {
		e := &entries[i]
		if e.Text == "" {
			continue
		}
		if e.Metadata == nil {
			e.Metadata = make(map[string]any)
		}
		if _, ok := e.Metadata["text"]; !ok {
			e.Metadata["text"] = e.Text
		}
	}
	return entries, bad, nil
}

func parseJSON(data []byte) ([]Entry, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var entries []Entry
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, err
		}
		return entries, nil
	}
	var e Entry
	if err := json.Unmarshal(trimmed, &e); err != nil {
		return nil, err
	}
	return []Entry{e}, nil
}

func parseJSONL(data []byte) ([]Entry, int, error) {
	var (
		entries []Entry
		bad     int
	)
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	line := 0
	for sc.Scan() {
		line++
		text := bytes.TrimSpace(sc.Bytes())
		if len(text) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(text, &e); err != nil {
			slog.Debug("skipping malformed line", "line", line, "error", err)
			bad++
			continue
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return nil, 0, err
	}
	return entries, bad, nil
}
