// Package vectorstore implements a brute-force vector similarity store on
// top of a namespaced hash-map KeyValueBackend.
//
// Each record lives under the key <prefix>vector:<id> as a hash with the
// fields vector, metadata and created_at. Nothing is cached in memory; every
// call goes to the backend, and Search scans the full corpus.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/spetr/mcp-vecstore/internal/metrics"
	"github.com/spetr/mcp-vecstore/pkg/provider"
	"github.com/spetr/mcp-vecstore/pkg/types"
)

// Config contains vector store configuration.
type Config struct {
	Backend provider.KeyValueBackend

	// Prefix namespaces every key. Defaults to types.DefaultPrefix.
	Prefix string

	// Dimensions, when positive, is enforced on Add.
	Dimensions int

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time

	Logger *slog.Logger
}

// Store is the vector store. It holds no record state of its own and is
// safe for concurrent use as long as the backend is.
type Store struct {
	backend    provider.KeyValueBackend
	prefix     string
	dimensions int
	now        func() time.Time
	log        *slog.Logger
}

// New creates a store bound to cfg.Backend.
func New(cfg Config) *Store {
	if cfg.Prefix == "" {
		cfg.Prefix = types.DefaultPrefix
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Store{
		backend:    cfg.Backend,
		prefix:     cfg.Prefix,
		dimensions: cfg.Dimensions,
		now:        cfg.Now,
		log:        cfg.Logger.With("component", "vectorstore"),
	}
}

// Prefix returns the namespace prefix.
func (s *Store) Prefix() string {
	return s.prefix
}

// BackendName returns the name of the bound backend.
func (s *Store) BackendName() string {
	if s.backend == nil {
		return "none"
	}
	return s.backend.Name()
}

func (s *Store) keyPrefix() string {
	return s.prefix + "vector:"
}

func (s *Store) key(id string) string {
	return s.keyPrefix() + id
}

func (s *Store) idFromKey(key string) string {
	return strings.TrimPrefix(key, s.keyPrefix())
}

// Add inserts or overwrites the record for id. Metadata may be nil.
// The vector, metadata and created_at fields are written one after another,
// so a concurrent reader may observe a partially written record.
func (s *Store) Add(ctx context.Context, id string, vector []float32, metadata map[string]any) (err error) {
	start := time.Now()
	defer func() { s.observe("add", err, start) }()

	if err := s.ready(); err != nil {
		s.log.Warn("backend not available, skipping add", "id", id)
		return err
	}
	if id == "" {
		return types.ErrInvalidID
	}
	if err := validateVector(vector); err != nil {
		return err
	}
	if s.dimensions > 0 && len(vector) != s.dimensions {
		return fmt.Errorf("%w: got %d, want %d", types.ErrDimensionMismatch, len(vector), s.dimensions)
	}

	vecJSON, err := encodeVector(vector)
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrInvalidVector, err)
	}
	metaJSON, err := encodeMetadata(metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	key := s.key(id)

	_, exists, err := s.backend.HGet(ctx, key, types.FieldCreatedAt)
	if err != nil {
		return s.fail("add", backendErr("read created_at", err), "id", id)
	}
	if err := s.backend.HSet(ctx, key, types.FieldVector, vecJSON); err != nil {
		return s.fail("add", backendErr("write vector", err), "id", id)
	}
	if err := s.backend.HSet(ctx, key, types.FieldMetadata, metaJSON); err != nil {
		return s.fail("add", backendErr("write metadata", err), "id", id)
	}
	if !exists {
		if err := s.backend.HSet(ctx, key, types.FieldCreatedAt, encodeTime(s.now())); err != nil {
			return s.fail("add", backendErr("write created_at", err), "id", id)
		}
	}

	s.log.Debug("added vector", "id", id, "dims", len(vector), "overwrite", exists)
	return nil
}

// Get returns the record for id, or types.ErrNotFound when it has no
// vector field.
func (s *Store) Get(ctx context.Context, id string) (rec *types.VectorRecord, err error) {
	start := time.Now()
	defer func() { s.observe("get", err, start) }()

	if err := s.ready(); err != nil {
		s.log.Warn("backend not available, skipping get", "id", id)
		return nil, err
	}

	rec, err = s.read(ctx, s.key(id), id)
	if errors.Is(err, types.ErrNotFound) {
		s.log.Debug("vector not found", "id", id)
		return nil, err
	}
	if err != nil {
		return nil, s.fail("get", err, "id", id)
	}
	return rec, nil
}

// Delete removes the record for id. Deleting a missing id succeeds.
func (s *Store) Delete(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { s.observe("delete", err, start) }()

	if err := s.ready(); err != nil {
		s.log.Warn("backend not available, skipping delete", "id", id)
		return err
	}
	if err := s.backend.Del(ctx, s.key(id)); err != nil {
		return s.fail("delete", backendErr("delete", err), "id", id)
	}
	s.log.Debug("deleted vector", "id", id)
	return nil
}

// Search ranks every stored vector by cosine similarity to query and
// returns at most k results with similarity >= threshold, best first.
// Ties keep enumeration order.
func (s *Store) Search(ctx context.Context, query []float32, k int, threshold float64) (results []types.SearchResult, err error) {
	start := time.Now()
	defer func() { s.observe("search", err, start) }()

	if err := s.ready(); err != nil {
		s.log.Warn("backend not available, skipping search")
		return nil, err
	}
	if err := validateVector(query); err != nil {
		return nil, err
	}
	if k <= 0 {
		return []types.SearchResult{}, nil
	}

	keys, err := s.backend.Keys(ctx, s.keyPrefix())
	if err != nil {
		return nil, s.fail("search", backendErr("enumerate keys", err))
	}
	if len(keys) == 0 {
		s.log.Debug("no vectors in store")
		return []types.SearchResult{}, nil
	}

	q := unit(query)
	results = make([]types.SearchResult, 0, min(k, len(keys)))
	scanned := 0

	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return nil, s.fail("search", err)
		}

		rec, err := s.read(ctx, key, s.idFromKey(key))
		if err != nil {
			if s.skippable(err, key) {
				continue
			}
			return nil, s.fail("search", err)
		}
		scanned++

		if len(rec.Vector) != len(q) {
			s.skip("dimension_mismatch", key, "dims", len(rec.Vector), "query_dims", len(q))
			continue
		}
		if err := validateVector(rec.Vector); err != nil {
			s.skip("invalid_vector", key, "error", err)
			continue
		}

		sim := dot(q, unit(rec.Vector))
		if sim < threshold {
			continue
		}
		results = append(results, types.SearchResult{
			ID:         rec.ID,
			Similarity: sim,
			Metadata:   rec.Metadata,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if len(results) > k {
		results = results[:k]
	}

	metrics.SearchScannedRecords.Observe(float64(scanned))
	s.log.Debug("search complete", "scanned", scanned, "results", len(results))
	return results, nil
}

// List returns up to limit records in enumeration order. limit <= 0 means
// no limit. The key list is truncated before reading, so fewer than limit
// records may be returned when some keys have no vector.
func (s *Store) List(ctx context.Context, limit int) (records []types.VectorRecord, err error) {
	start := time.Now()
	defer func() { s.observe("list", err, start) }()

	if err := s.ready(); err != nil {
		s.log.Warn("backend not available, skipping list")
		return nil, err
	}

	keys, err := s.backend.Keys(ctx, s.keyPrefix())
	if err != nil {
		return nil, s.fail("list", backendErr("enumerate keys", err))
	}
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}

	records = make([]types.VectorRecord, 0, len(keys))
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return nil, s.fail("list", err)
		}
		rec, err := s.read(ctx, key, s.idFromKey(key))
		if err != nil {
			if s.skippable(err, key) {
				continue
			}
			return nil, s.fail("list", err)
		}
		records = append(records, *rec)
	}
	return records, nil
}

// Count returns the number of record keys under the namespace.
func (s *Store) Count(ctx context.Context) (n int, err error) {
	start := time.Now()
	defer func() { s.observe("count", err, start) }()

	if err := s.ready(); err != nil {
		s.log.Warn("backend not available, skipping count")
		return 0, err
	}
	keys, err := s.backend.Keys(ctx, s.keyPrefix())
	if err != nil {
		return 0, s.fail("count", backendErr("enumerate keys", err))
	}
	return len(keys), nil
}

// Clear deletes every record and returns how many keys were removed.
// A backend error stops the loop; keys deleted before it stay deleted.
func (s *Store) Clear(ctx context.Context) (deleted int, err error) {
	start := time.Now()
	defer func() { s.observe("clear", err, start) }()

	if err := s.ready(); err != nil {
		s.log.Warn("backend not available, skipping clear")
		return 0, err
	}
	keys, err := s.backend.Keys(ctx, s.keyPrefix())
	if err != nil {
		return 0, s.fail("clear", backendErr("enumerate keys", err))
	}

	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return deleted, s.fail("clear", err, "deleted", deleted)
		}
		if err := s.backend.Del(ctx, key); err != nil {
			return deleted, s.fail("clear", backendErr("delete", err), "key", key, "deleted", deleted)
		}
		deleted++
	}

	s.log.Info("cleared vectors", "count", deleted)
	return deleted, nil
}

// Stats returns a summary of the store.
func (s *Store) Stats(ctx context.Context) (*types.StoreStats, error) {
	n, err := s.Count(ctx)
	if err != nil {
		return nil, err
	}
	return &types.StoreStats{
		Backend: s.BackendName(),
		Prefix:  s.prefix,
		Vectors: n,
	}, nil
}

// read loads and decodes the record stored at key.
func (s *Store) read(ctx context.Context, key, id string) (*types.VectorRecord, error) {
	vecJSON, found, err := s.backend.HGet(ctx, key, types.FieldVector)
	if err != nil {
		return nil, backendErr("read vector", err)
	}
	if !found || vecJSON == "" {
		return nil, types.ErrNotFound
	}
	metaJSON, metaFound, err := s.backend.HGet(ctx, key, types.FieldMetadata)
	if err != nil {
		return nil, backendErr("read metadata", err)
	}
	created, createdFound, err := s.backend.HGet(ctx, key, types.FieldCreatedAt)
	if err != nil {
		return nil, backendErr("read created_at", err)
	}

	vector, err := decodeVector(vecJSON)
	if err != nil {
		return nil, err
	}
	metadata, err := decodeMetadata(metaJSON, metaFound)
	if err != nil {
		return nil, err
	}

	rec := &types.VectorRecord{
		ID:       id,
		Vector:   vector,
		Metadata: metadata,
	}
	if createdFound {
		rec.CreatedAt, _ = decodeTime(created)
	}
	return rec, nil
}

// skippable reports whether a per-record read error should skip the record
// during a scan rather than fail the whole operation.
func (s *Store) skippable(err error, key string) bool {
	switch {
	case errors.Is(err, types.ErrNotFound):
		// deleted between enumeration and read
		metrics.SearchSkippedRecords.WithLabelValues("vanished").Inc()
		return true
	case errors.Is(err, types.ErrMalformedRecord):
		s.skip("malformed", key, "error", err)
		return true
	}
	return false
}

func (s *Store) skip(reason, key string, args ...any) {
	metrics.SearchSkippedRecords.WithLabelValues(reason).Inc()
	s.log.Debug("skipping record", append([]any{"key", key, "reason", reason}, args...)...)
}

func (s *Store) ready() error {
	if s.backend == nil {
		return types.ErrBackendUnavailable
	}
	return nil
}

func (s *Store) fail(op string, err error, args ...any) error {
	s.log.Error("vector store operation failed", append([]any{"op", op, "error", err}, args...)...)
	return err
}

func (s *Store) observe(op string, err error, start time.Time) {
	status := metrics.StatusOK
	switch {
	case err == nil:
	case errors.Is(err, types.ErrNotFound):
		status = metrics.StatusNotFound
	default:
		status = metrics.StatusError
	}
	metrics.ObserveOp(op, status, start)
}

// backendErr tags err as a backend failure unless it already carries a
// more specific meaning.
func backendErr(what string, err error) error {
	if errors.Is(err, types.ErrBackendUnavailable) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", types.ErrBackend, what, err)
}
