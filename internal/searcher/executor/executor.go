// Package executor answers bag-of-terms queries against a built index. It
// reproduces the index's tokenization from its stored properties, locates
// every query term through the segment directory, accumulates per-document
// scores and resolves the best documents to review ids.
package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/review-search/internal/indexer/scoring"
	"github.com/Adithya-Monish-Kumar-K/review-search/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/review-search/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/review-search/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/review-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/review-search/pkg/metrics"
)

// Hit is one ranked document.
type Hit struct {
	ReviewID string  `json:"review_id"`
	DocID    int     `json:"doc_id"`
	Score    float64 `json:"score"`
}

type SearchResult struct {
	Query     string         `json:"query"`
	TotalHits int            `json:"total_hits"`
	Results   []Hit          `json:"results"`
	TermStats map[string]int `json:"term_stats"`
}

// Executor is safe for concurrent use.
type Executor struct {
	props         store.Props
	scheme        scoring.Scheme
	tokenizer     *tokenizer.Tokenizer
	segments      *segment.Directory
	reviewIDs     *store.ReviewIDIndex
	maxConcurrent int
	metrics       *metrics.Metrics
	logger        *slog.Logger
}

type Option func(*Executor)

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// WithMaxConcurrent bounds the number of queries SearchBatch runs at once.
func WithMaxConcurrent(n int) Option {
	return func(e *Executor) { e.maxConcurrent = n }
}

// Open loads the index at indexPath.
func Open(indexPath string, opts ...Option) (*Executor, error) {
	dir, err := store.Open(indexPath)
	if err != nil {
		return nil, err
	}
	props, err := store.ReadProps(dir.PropsPath())
	if err != nil {
		return nil, err
	}
	scheme, err := scoring.New(scoring.Format(props.Format), scoring.DefaultK1, scoring.DefaultB)
	if err != nil {
		return nil, apperrors.Corruptf("index properties: %v", err)
	}
	stemmer, err := tokenizer.StemmerByName(props.Stemmer)
	if err != nil {
		return nil, apperrors.Corruptf("index properties: %v", err)
	}
	segments, err := segment.OpenDirectory(dir.SegmentsPath())
	if err != nil {
		return nil, err
	}
	reviewIDs, err := store.OpenReviewIDs(dir.ReviewIDsPath(), props.DocIDOffset)
	if err != nil {
		segments.Close()
		return nil, err
	}
	if reviewIDs.Len() != props.ReviewCount {
		segments.Close()
		reviewIDs.Close()
		return nil, apperrors.Corruptf("%d review ids for %d reviews", reviewIDs.Len(), props.ReviewCount)
	}

	e := &Executor{
		props:  props,
		scheme: scheme,
		tokenizer: tokenizer.New(tokenizer.Config{
			MinTokenLength: props.MinTokenLength,
			Stopwords:      tokenizer.StopwordSet(props.Stopwords),
			Stemmer:        stemmer,
		}),
		segments:      segments,
		reviewIDs:     reviewIDs,
		maxConcurrent: 8,
		logger:        slog.Default().With("component", "query-executor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger.Info("index opened",
		"index_path", indexPath,
		"scoring", props.Format,
		"terms", props.TermCount,
		"reviews", props.ReviewCount,
		"segments", len(segments.Segments()),
	)
	return e, nil
}

func (e *Executor) Props() store.Props {
	return e.props
}

// Search scores every document sharing a term with query and returns the
// best limit of them. A limit below 1 returns every scored document.
func (e *Executor) Search(ctx context.Context, query string, limit int) (*SearchResult, error) {
	start := time.Now()
	result, err := e.search(ctx, query, limit)
	e.observe(start, result, err)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("query executed",
		"query", query,
		"terms", len(result.TermStats),
		"total_hits", result.TotalHits,
		"results", len(result.Results),
		"latency", time.Since(start),
	)
	return result, nil
}

func (e *Executor) search(ctx context.Context, query string, limit int) (*SearchResult, error) {
	termFreqs := e.tokenizer.Query(query).TermFreqs()
	terms := make([]string, 0, len(termFreqs))
	for term := range termFreqs {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	found := make(map[string]segment.VocabEntry, len(terms))
	idfs := make(map[string]float64, len(terms))
	for _, term := range terms {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entry, ok, err := e.segments.Lookup(term)
		if err != nil {
			return nil, fmt.Errorf("looking up %q: %w", term, err)
		}
		if !ok {
			continue
		}
		found[term] = entry
		idfs[term] = entry.IDF
	}

	queryWeights := e.scheme.QueryWeights(termFreqs, idfs)
	scores := make(map[int]float64)
	termStats := make(map[string]int, len(found))
	for _, term := range terms {
		entry, ok := found[term]
		if !ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		it, err := e.segments.Postings(entry)
		if err != nil {
			return nil, err
		}
		weight := queryWeights[term]
		for {
			p, err := it.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return nil, fmt.Errorf("decoding postings of %q: %w", term, err)
			}
			scores[p.DocID] += weight * p.Weight
			termStats[term]++
		}
	}

	hits := rank(scores, limit)
	for i := range hits {
		reviewID, err := e.reviewIDs.Lookup(hits[i].DocID)
		if err != nil {
			return nil, err
		}
		hits[i].ReviewID = reviewID
	}
	return &SearchResult{
		Query:     query,
		TotalHits: len(scores),
		Results:   hits,
		TermStats: termStats,
	}, nil
}

// rank orders scores by descending score. Equal scores keep corpus order,
// lower doc id first.
func rank(scores map[int]float64, limit int) []Hit {
	hits := make([]Hit, 0, len(scores))
	for docID, score := range scores {
		hits = append(hits, Hit{DocID: docID, Score: score})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].DocID < hits[j].DocID
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

// SearchBatch runs queries concurrently. Results are in query order; the
// first failing query cancels the rest.
func (e *Executor) SearchBatch(ctx context.Context, queries []string, limit int) ([]*SearchResult, error) {
	results := make([]*SearchResult, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	if e.maxConcurrent > 0 {
		g.SetLimit(e.maxConcurrent)
	}
	for i, query := range queries {
		g.Go(func() error {
			result, err := e.Search(gctx, query, limit)
			if err != nil {
				return fmt.Errorf("query %d: %w", i, err)
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Fingerprint identifies the answer to (query, limit) on this index. Two
// queries with the same fingerprint produce the same result.
func (e *Executor) Fingerprint(query string, limit int) string {
	termFreqs := e.tokenizer.Query(query).TermFreqs()
	terms := make([]string, 0, len(termFreqs))
	for term, tf := range termFreqs {
		terms = append(terms, term+"="+strconv.Itoa(tf))
	}
	sort.Strings(terms)
	if limit < 1 {
		limit = 0
	}
	return fmt.Sprintf("%s|%d|%d|%d|%s|limit=%d",
		e.props.Format, e.props.ReviewCount, e.props.TermCount, e.props.SizeOnDisk,
		strings.Join(terms, ","), limit)
}

func (e *Executor) observe(start time.Time, result *SearchResult, err error) {
	if e.metrics == nil {
		return
	}
	e.metrics.SearchLatency.WithLabelValues(e.props.Format).Observe(time.Since(start).Seconds())
	switch {
	case err != nil:
		e.metrics.SearchQueriesTotal.WithLabelValues("error").Inc()
	case len(result.Results) == 0:
		e.metrics.SearchQueriesTotal.WithLabelValues("zero_result").Inc()
		e.metrics.SearchResultsCount.Observe(0)
	default:
		e.metrics.SearchQueriesTotal.WithLabelValues("hit").Inc()
		e.metrics.SearchResultsCount.Observe(float64(len(result.Results)))
	}
}

func (e *Executor) Close() error {
	return errors.Join(e.segments.Close(), e.reviewIDs.Close())
}
