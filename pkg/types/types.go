// Package types contains shared data types used across the vecstore project.
package types

import (
	"time"
)

// Field names of a stored vector hash.
const (
	FieldVector    = "vector"
	FieldMetadata  = "metadata"
	FieldCreatedAt = "created_at"
)

// DefaultPrefix is the namespace prefix applied to every backend key.
const DefaultPrefix = "btagent:"

// VectorRecord is a stored vector with its metadata.
type VectorRecord struct {
	ID        string         `json:"id"`
	Vector    []float32      `json:"vector"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt time.Time      `json:"created_at,omitzero"`
}

// SearchResult is a single ranked match.
type SearchResult struct {
	ID         string         `json:"id"`
	Similarity float64        `json:"similarity"`
	Metadata   map[string]any `json:"metadata"`
}

// SearchRequest describes a similarity query.
// Either Vector or Text must be set; Text is embedded before searching.
type SearchRequest struct {
	Vector    []float32
	Text      string
	Limit     int
	Threshold float64
}

// StoreStats summarizes the contents of a vector store.
type StoreStats struct {
	Backend string `json:"backend"`
	Prefix  string `json:"prefix"`
	Vectors int    `json:"vectors"`
}

// Event is published on the notification channel when records change.
type Event struct {
	Type      string    `json:"type"`
	IDs       []string  `json:"ids,omitempty"`
	Count     int       `json:"count,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Event types.
const (
	EventVectorAdded    = "vector.added"
	EventVectorDeleted  = "vector.deleted"
	EventVectorsCleared = "vectors.cleared"
)

// SearchHistoryEntry is one recorded search query.
type SearchHistoryEntry struct {
	Query     string    `json:"query"`
	Timestamp time.Time `json:"timestamp"`
}

// MetricsSnapshot is a point-in-time view of the realtime counters.
type MetricsSnapshot struct {
	VehicleCount           int64            `json:"vehicle_count"`
	VehicleCountByCategory map[string]int64 `json:"vehicle_count_by_category"`
	SearchCount            int64            `json:"search_count"`
	ConversationCount      int64            `json:"conversation_count"`
	MessageCount           int64            `json:"message_count"`
	ScraperStatus          string           `json:"scraper_status"`
	ScraperProgress        float64          `json:"scraper_progress"`
	ScraperLastUpdate      *time.Time       `json:"scraper_last_update,omitempty"`
	LastUpdate             time.Time        `json:"last_update"`
}

// IngestStats reports the outcome of loading a record file.
type IngestStats struct {
	File    string   `json:"file"`
	Added   int      `json:"added"`
	Failed  int      `json:"failed"`
	IDs     []string `json:"ids,omitempty"`
	Elapsed string   `json:"elapsed"`
}
