package vectorstore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spetr/mcp-vecstore/pkg/types"
)

func encodeVector(v []float32) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeVector(s string) ([]float32, error) {
	var v []float32
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, fmt.Errorf("%w: vector: %w", types.ErrMalformedRecord, err)
	}
	return v, nil
}

func encodeMetadata(m map[string]any) (string, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// decodeMetadata returns an empty map for a missing or empty field.
func decodeMetadata(s string, found bool) (map[string]any, error) {
	if !found || s == "" {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, fmt.Errorf("%w: metadata: %w", types.ErrMalformedRecord, err)
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}

func encodeTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// decodeTime accepts RFC 3339 and the naive ISO-8601 form written by
// older clients (no zone, microseconds).
func decodeTime(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
