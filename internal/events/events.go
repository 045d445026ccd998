// Package events defines the messages the indexer and the search service
// publish to Kafka and the buffered collector that ships them.
package events

import "time"

type Type string

const (
	TypeIndexBuilt Type = "index_built"
	TypeSearch     Type = "search"
	TypeZeroResult Type = "zero_result"
)

// IndexBuilt is published once per completed build.
type IndexBuilt struct {
	Type           Type      `json:"type"`
	IndexPath      string    `json:"index_path"`
	Scoring        string    `json:"scoring"`
	TermCount      int       `json:"term_count"`
	ReviewCount    int       `json:"review_count"`
	BlockCount     int       `json:"block_count"`
	SegmentCount   int       `json:"segment_count"`
	IndexSizeBytes int64     `json:"index_size_bytes"`
	ElapsedMs      int64     `json:"elapsed_ms"`
	Timestamp      time.Time `json:"timestamp"`
}

// SearchPerformed is published for every answered search request.
type SearchPerformed struct {
	Type      Type      `json:"type"`
	Query     string    `json:"query"`
	Limit     int       `json:"limit"`
	TotalHits int       `json:"total_hits"`
	Returned  int       `json:"returned"`
	LatencyMs int64     `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
