// Package indexer builds a disk-based inverted index from a review corpus
// with single-pass in-memory indexing: documents accumulate in memory until
// the memory monitor asks for a flush, each flush spills a sorted block, and
// the blocks are finally merged into term-range segments.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/Adithya-Monish-Kumar-K/review-search/internal/indexer/block"
	"github.com/Adithya-Monish-Kumar-K/review-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/review-search/internal/indexer/memory"
	"github.com/Adithya-Monish-Kumar-K/review-search/internal/indexer/scoring"
	"github.com/Adithya-Monish-Kumar-K/review-search/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/review-search/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/review-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/review-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/review-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/review-search/pkg/tracing"
)

// RecordReader yields raw reviews in ascending doc id order and io.EOF at
// the end of the corpus.
type RecordReader interface {
	Next() (index.RawReview, error)
}

// Stats summarises a completed build.
type Stats struct {
	Elapsed        time.Duration
	IndexSizeBytes int64
	TermCount      int
	ReviewCount    int
	BlockCount     int
	SegmentCount   int
}

type Builder struct {
	cfg       config.IndexerConfig
	scheme    scoring.Scheme
	tokenizer *tokenizer.Tokenizer
	stemmer   tokenizer.Stemmer
	stopwords []string
	checker   memory.Checker
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

type Option func(*Builder)

// WithChecker replaces the memory monitor that decides when to flush.
func WithChecker(c memory.Checker) Option {
	return func(b *Builder) { b.checker = c }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Builder) { b.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// NewBuilder validates cfg and prepares the tokenizer and scoring scheme.
// Nothing is written to the index path until Build.
func NewBuilder(cfg config.IndexerConfig, opts ...Option) (*Builder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	scheme, err := scoring.New(scoring.Format(cfg.Scoring), cfg.K1, cfg.B)
	if err != nil {
		return nil, err
	}
	stemmer, err := tokenizer.StemmerByName(cfg.Stemmer)
	if err != nil {
		return nil, err
	}
	stopwords := tokenizer.StopwordSet(cfg.Stopwords)
	if cfg.StopwordsPath != "" {
		loaded, err := tokenizer.LoadStopwords(cfg.StopwordsPath)
		if err != nil {
			return nil, err
		}
		for w := range loaded {
			stopwords[w] = struct{}{}
		}
	}

	b := &Builder{
		cfg:    cfg,
		scheme: scheme,
		tokenizer: tokenizer.New(tokenizer.Config{
			MinTokenLength: cfg.MinTokenLength,
			Stopwords:      stopwords,
			Stemmer:        stemmer,
		}),
		stemmer:   stemmer,
		stopwords: tokenizer.SortedStopwords(stopwords),
		logger:    slog.Default().With("component", "indexer"),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.checker == nil {
		var monitorOpts []memory.Option
		if b.metrics != nil {
			monitorOpts = append(monitorOpts, memory.WithGauge(b.metrics.MemoryUsageRatio))
		}
		monitor, err := memory.NewMonitor(cfg.MemoryThreshold, cfg.MemorySampleStride, monitorOpts...)
		if err != nil {
			return nil, err
		}
		b.checker = monitor
	}
	return b, nil
}

// Build indexes every record of r into a new index directory.
func (b *Builder) Build(ctx context.Context, r RecordReader) (Stats, error) {
	start := time.Now()
	dir, err := store.Create(b.cfg.IndexPath, b.cfg.Overwrite)
	if err != nil {
		return Stats{}, err
	}
	b.logger.Info("index build started",
		"index_path", b.cfg.IndexPath,
		"scoring", b.scheme.Format(),
		"stemmer", b.stemmer.Name(),
		"memory_threshold", b.cfg.MemoryThreshold,
	)

	ctx, trace := tracing.StartSpan(ctx, "index.build", "")
	defer func() {
		trace.End()
		trace.Log(b.logger)
	}()

	lengths := index.NewDocLengths()
	invertCtx, invertSpan := tracing.StartChildSpan(ctx, "invert")
	blocks, err := b.invert(invertCtx, r, dir, lengths)
	invertSpan.SetAttr("blocks", blocks)
	invertSpan.SetAttr("reviews", lengths.Count())
	invertSpan.End()
	if err != nil {
		return Stats{}, err
	}

	_, mergeSpan := tracing.StartChildSpan(ctx, "merge")
	termCount, segments, err := b.merge(dir, lengths)
	mergeSpan.SetAttr("terms", termCount)
	mergeSpan.SetAttr("segments", segments)
	mergeSpan.End()
	if err != nil {
		return Stats{}, err
	}

	_, finalizeSpan := tracing.StartChildSpan(ctx, "finalize")
	defer finalizeSpan.End()
	if !b.cfg.Debug {
		if err := dir.DeleteBlocks(); err != nil {
			return Stats{}, err
		}
	}

	size, err := dir.Size()
	if err != nil {
		return Stats{}, err
	}
	props := store.Props{
		Format:         string(b.scheme.Format()),
		SizeOnDisk:     size,
		TermCount:      termCount,
		ReviewCount:    lengths.Count(),
		MinTokenLength: b.cfg.MinTokenLength,
		Stopwords:      b.stopwords,
		Stemmer:        b.stemmer.Name(),
		DocIDOffset:    lengths.Base(),
	}
	if err := store.WriteProps(dir.PropsPath(), props); err != nil {
		return Stats{}, err
	}

	stats := Stats{
		Elapsed:        time.Since(start),
		IndexSizeBytes: size,
		TermCount:      termCount,
		ReviewCount:    lengths.Count(),
		BlockCount:     blocks,
		SegmentCount:   segments,
	}
	if b.metrics != nil {
		b.metrics.IndexBuildDuration.Observe(stats.Elapsed.Seconds())
	}
	b.logger.Info("index build complete",
		"elapsed", stats.Elapsed,
		"index_size_bytes", stats.IndexSizeBytes,
		"terms", stats.TermCount,
		"reviews", stats.ReviewCount,
		"blocks", stats.BlockCount,
		"segments", stats.SegmentCount,
	)
	return stats, nil
}

// invert runs the accumulation loop and returns the number of blocks
// written.
func (b *Builder) invert(ctx context.Context, r RecordReader, dir *store.Directory, lengths *index.DocLengths) (int, error) {
	acc := index.NewAccumulator()
	blocks := 0
	for {
		if err := ctx.Err(); err != nil {
			return blocks, err
		}
		review, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return blocks, fmt.Errorf("reading corpus: %w", err)
		}

		processed := b.tokenizer.Process(review, b.scheme)
		if err := lengths.Add(processed.DocID, processed.Length); err != nil {
			return blocks, err
		}
		acc.AddDocument(processed)
		if b.metrics != nil {
			b.metrics.DocsIndexedTotal.Inc()
		}

		if b.checker.HasReachedThreshold() {
			written, err := b.flush(dir, acc)
			if err != nil {
				return blocks, err
			}
			blocks += written
			acc = index.NewAccumulator()
			debug.FreeOSMemory()
		}
	}
	written, err := b.flush(dir, acc)
	if err != nil {
		return blocks, err
	}
	return blocks + written, nil
}

// flush spills acc to a new block and appends its review ids. An
// accumulator without terms produces no block.
func (b *Builder) flush(dir *store.Directory, acc *index.Accumulator) (int, error) {
	if acc.DocCount() == 0 {
		return 0, nil
	}
	written := 0
	if acc.Terms() > 0 {
		path := dir.NextBlockPath()
		if err := block.Write(path, acc.Snapshot()); err != nil {
			return 0, fmt.Errorf("flushing block: %w", err)
		}
		written = 1
		if b.metrics != nil {
			b.metrics.BlocksFlushedTotal.Inc()
		}
		b.logger.Info("block flushed",
			"block", path,
			"terms", acc.Terms(),
			"postings", acc.PostingCount(),
			"reviews", acc.DocCount(),
		)
	}
	if err := store.AppendReviewIDs(dir.ReviewIDsPath(), acc.ReviewIDs()); err != nil {
		return written, err
	}
	return written, nil
}

// merge streams the k-way merge of every block into the segment writer.
func (b *Builder) merge(dir *store.Directory, lengths *index.DocLengths) (terms int, segments int, err error) {
	paths, err := dir.BlockPaths()
	if err != nil {
		return 0, 0, err
	}
	merger, err := block.NewMerger(paths)
	if err != nil {
		return 0, 0, err
	}
	defer merger.Close()

	writer, err := segment.NewWriter(
		dir.SegmentsPath(),
		b.scheme,
		segment.CorpusStats{ReviewCount: lengths.Count(), DocLengths: lengths},
		b.cfg.TermsPerSegment,
		segment.WithMetrics(b.metrics),
		segment.WithLogger(b.logger.With("stage", "segment")),
	)
	if err != nil {
		return 0, 0, err
	}
	defer writer.Abort()
	for {
		entry, err := merger.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, 0, fmt.Errorf("merging blocks: %w", err)
		}
		if err := writer.Write(entry); err != nil {
			return 0, 0, err
		}
	}
	terms, err = writer.Close()
	if err != nil {
		return 0, 0, err
	}
	b.logger.Info("blocks merged",
		"blocks", len(paths),
		"terms", terms,
		"segments", writer.Segments(),
	)
	return terms, writer.Segments(), nil
}
