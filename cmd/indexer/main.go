package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/review-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/review-search/internal/events"
	"github.com/Adithya-Monish-Kumar-K/review-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/review-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/review-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/review-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/review-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/review-search/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	corpusPath := flag.String("corpus", "", "corpus file (overrides corpus.path)")
	indexPath := flag.String("index", "", "index directory (overrides indexer.indexPath)")
	scoring := flag.String("scoring", "", "tf_idf or bm25 (overrides indexer.scoring)")
	overwrite := flag.Bool("overwrite", false, "replace an existing index directory")
	debugMode := flag.Bool("debug", false, "keep intermediate blocks")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *corpusPath != "" {
		cfg.Corpus.Path = *corpusPath
	}
	if *indexPath != "" {
		cfg.Indexer.IndexPath = *indexPath
	}
	if *scoring != "" {
		cfg.Indexer.Scoring = *scoring
	}
	cfg.Indexer.Overwrite = cfg.Indexer.Overwrite || *overwrite
	cfg.Indexer.Debug = cfg.Indexer.Debug || *debugMode

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	if err := run(cfg); err != nil {
		slog.Error("index build failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := metrics.NewRegistry()
	m := metrics.New(reg)
	if cfg.Metrics.Enabled {
		shutdown, err := metrics.StartServer(cfg.Metrics.Port, reg)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdown(shutdownCtx)
		}()
	}

	builder, err := indexer.NewBuilder(cfg.Indexer, indexer.WithMetrics(m))
	if err != nil {
		return err
	}
	reader, err := corpus.Open(ctx, cfg.Corpus, cfg.Postgres)
	if err != nil {
		return err
	}
	defer reader.Close()

	slog.Info("starting indexer",
		"corpus_source", cfg.Corpus.Source,
		"corpus_path", cfg.Corpus.Path,
		"index_path", cfg.Indexer.IndexPath,
		"scoring", cfg.Indexer.Scoring,
	)
	stats, err := builder.Build(ctx, reader)
	if err != nil {
		return err
	}

	if cfg.Kafka.Enabled {
		publishBuilt(cfg, stats)
	}
	return nil
}

// publishBuilt announces the new index. Failure is logged, not fatal: the
// index on disk is complete either way.
func publishBuilt(cfg *config.Config, stats indexer.Stats) {
	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexBuilt)
	defer producer.Close()

	event := kafka.Event{
		Key: cfg.Indexer.IndexPath,
		Value: events.IndexBuilt{
			Type:           events.TypeIndexBuilt,
			IndexPath:      cfg.Indexer.IndexPath,
			Scoring:        cfg.Indexer.Scoring,
			TermCount:      stats.TermCount,
			ReviewCount:    stats.ReviewCount,
			BlockCount:     stats.BlockCount,
			SegmentCount:   stats.SegmentCount,
			IndexSizeBytes: stats.IndexSizeBytes,
			ElapsedMs:      stats.Elapsed.Milliseconds(),
			Timestamp:      time.Now().UTC(),
		},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	err := resilience.Retry(ctx, "publish-index-built", resilience.RetryConfig{MaxAttempts: 3, InitialDelay: time.Second},
		func(ctx context.Context) error {
			return producer.Publish(ctx, event)
		})
	if err != nil {
		slog.Warn("failed to publish index_built event", "topic", cfg.Kafka.Topics.IndexBuilt, "error", err)
		return
	}
	slog.Info("index_built event published", "topic", cfg.Kafka.Topics.IndexBuilt)
}
