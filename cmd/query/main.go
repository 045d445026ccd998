package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/review-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/review-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/review-search/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	indexPath := flag.String("index", "", "index directory (overrides indexer.indexPath)")
	queryFile := flag.String("file", "", "file with one query per line")
	limit := flag.Int("limit", 10, "results per query; below 1 returns every match")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *indexPath != "" {
		cfg.Indexer.IndexPath = *indexPath
	}
	// stdout carries results
	slog.SetDefault(logger.New(os.Stderr, cfg.Logging.Level, "text"))

	queries := flag.Args()
	if *queryFile != "" {
		fromFile, err := readQueries(*queryFile)
		if err != nil {
			slog.Error("failed to read queries", "error", err)
			os.Exit(1)
		}
		queries = append(queries, fromFile...)
	}
	if len(queries) == 0 {
		fmt.Fprintln(os.Stderr, "usage: query [-index dir] [-limit n] [-file queries.txt] [query ...]")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	exec, err := executor.Open(cfg.Indexer.IndexPath, executor.WithMaxConcurrent(cfg.Search.MaxConcurrentQueries))
	if err != nil {
		slog.Error("failed to open index", "error", err)
		os.Exit(1)
	}
	defer exec.Close()

	results, err := exec.SearchBatch(ctx, queries, *limit)
	if err != nil {
		slog.Error("query failed", "error", err)
		os.Exit(1)
	}
	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()
	if err := writeResults(out, results); err != nil {
		slog.Error("failed to write results", "error", err)
	}
}

// readQueries returns the non-blank lines of path.
func readQueries(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening query file: %w", err)
	}
	defer f.Close()

	var queries []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if q := strings.TrimSpace(scanner.Text()); q != "" {
			queries = append(queries, q)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading query file: %w", err)
	}
	return queries, nil
}

// writeResults prints a "# query" header per query followed by one
// "review_id score" line per hit.
func writeResults(w io.Writer, results []*executor.SearchResult) error {
	for _, result := range results {
		if _, err := fmt.Fprintf(w, "# %s\n", result.Query); err != nil {
			return err
		}
		for _, hit := range result.Results {
			if _, err := fmt.Fprintf(w, "%s %.6f\n", hit.ReviewID, hit.Score); err != nil {
				return err
			}
		}
	}
	return nil
}
