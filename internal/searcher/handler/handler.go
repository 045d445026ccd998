// Package handler exposes the query engine over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/review-search/internal/events"
	"github.com/Adithya-Monish-Kumar-K/review-search/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/review-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/review-search/internal/searcher/executor"
	apperrors "github.com/Adithya-Monish-Kumar-K/review-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/review-search/pkg/logger"
)

// maxBatchQueries bounds a single batch request.
const maxBatchQueries = 100

// CacheHeader reports HIT or MISS on searches answered with the cache enabled.
const CacheHeader = "X-Cache"

type SearchExecutor interface {
	Search(ctx context.Context, query string, limit int) (*executor.SearchResult, error)
	SearchBatch(ctx context.Context, queries []string, limit int) ([]*executor.SearchResult, error)
	Fingerprint(query string, limit int) string
	Props() store.Props
}

// Tracker receives one event per answered search.
type Tracker interface {
	Track(key string, value any)
}

type Handler struct {
	executor     SearchExecutor
	cache        *cache.QueryCache
	tracker      Tracker
	defaultLimit int
	maxResults   int
	logger       *slog.Logger
}

// New builds a Handler. queryCache and tracker may be nil.
func New(exec SearchExecutor, queryCache *cache.QueryCache, tracker Tracker, defaultLimit, maxResults int) *Handler {
	return &Handler{
		executor:     exec,
		cache:        queryCache,
		tracker:      tracker,
		defaultLimit: defaultLimit,
		maxResults:   maxResults,
		logger:       slog.Default().With("component", "search-handler"),
	}
}

// Register mounts every search route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("POST /api/v1/search/batch", h.SearchBatch)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	mux.HandleFunc("GET /api/v1/index", h.Props)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")
	if strings.TrimSpace(query) == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	limit, err := h.parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, cacheHit, err := h.execute(ctx, query, limit)
	if err != nil {
		log.Error("search execution failed", "query", query, "error", err)
		h.writeFailure(w, err)
		return
	}

	latencyMs := time.Since(start).Milliseconds()
	log.Info("search completed",
		"query", query,
		"total_hits", result.TotalHits,
		"returned", len(result.Results),
		"cache_hit", cacheHit,
		"latency_ms", latencyMs,
	)
	h.track(ctx, query, limit, result, cacheHit, latencyMs)
	if h.cache != nil {
		if cacheHit {
			w.Header().Set(CacheHeader, "HIT")
		} else {
			w.Header().Set(CacheHeader, "MISS")
		}
	}
	h.writeJSON(w, http.StatusOK, result)
}

type batchRequest struct {
	Queries []string `json:"queries"`
	Limit   *int     `json:"limit"`
}

type batchResponse struct {
	Results []*executor.SearchResult `json:"results"`
}

// SearchBatch answers several queries in one request. Results are returned
// in request order and bypass the cache.
func (h *Handler) SearchBatch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req batchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Queries) == 0 {
		h.writeError(w, http.StatusBadRequest, "at least one query is required")
		return
	}
	if len(req.Queries) > maxBatchQueries {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("at most %d queries per batch", maxBatchQueries))
		return
	}
	limit := h.defaultLimit
	if req.Limit != nil {
		var err error
		if limit, err = h.parseLimit(strconv.Itoa(*req.Limit)); err != nil {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	results, err := h.executor.SearchBatch(ctx, req.Queries, limit)
	if err != nil {
		log.Error("batch search failed", "queries", len(req.Queries), "error", err)
		h.writeFailure(w, err)
		return
	}

	latencyMs := time.Since(start).Milliseconds()
	log.Info("batch search completed", "queries", len(req.Queries), "latency_ms", latencyMs)
	for i, result := range results {
		h.track(ctx, req.Queries[i], limit, result, false, latencyMs)
	}
	h.writeJSON(w, http.StatusOK, batchResponse{Results: results})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}

	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

// Props reports the properties of the served index.
func (h *Handler) Props(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.executor.Props())
}

func (h *Handler) execute(ctx context.Context, query string, limit int) (*executor.SearchResult, bool, error) {
	if h.cache == nil {
		result, err := h.executor.Search(ctx, query, limit)
		return result, false, err
	}
	return h.cache.GetOrCompute(ctx, h.executor.Fingerprint(query, limit), func(ctx context.Context) (*executor.SearchResult, error) {
		return h.executor.Search(ctx, query, limit)
	})
}

// parseLimit accepts an empty value (default limit) or a positive integer,
// capped at maxResults.
func (h *Handler) parseLimit(raw string) (int, error) {
	if raw == "" {
		return h.defaultLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, errors.New("limit must be a positive integer")
	}
	if h.maxResults > 0 && limit > h.maxResults {
		limit = h.maxResults
	}
	return limit, nil
}

func (h *Handler) track(ctx context.Context, query string, limit int, result *executor.SearchResult, cacheHit bool, latencyMs int64) {
	if h.tracker == nil {
		return
	}
	eventType := events.TypeSearch
	if len(result.Results) == 0 {
		eventType = events.TypeZeroResult
	}
	h.tracker.Track(query, events.SearchPerformed{
		Type:      eventType,
		Query:     query,
		Limit:     limit,
		TotalHits: result.TotalHits,
		Returned:  len(result.Results),
		LatencyMs: latencyMs,
		CacheHit:  cacheHit,
		RequestID: logger.RequestID(ctx),
		Timestamp: time.Now().UTC(),
	})
}

func (h *Handler) writeFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		h.writeError(w, http.StatusServiceUnavailable, "search timed out")
	case errors.Is(err, context.Canceled):
		h.writeError(w, http.StatusServiceUnavailable, "search cancelled")
	default:
		status := apperrors.HTTPStatusCode(err)
		message := "search failed"
		if status < http.StatusInternalServerError {
			message = err.Error()
		}
		h.writeError(w, status, message)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
