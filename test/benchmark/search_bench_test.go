package benchmark

import (
	"context"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/review-search/internal/indexer/scoring"
	"github.com/Adithya-Monish-Kumar-K/review-search/internal/searcher/executor"
)

var benchQueries = []string{
	"battery",
	"excellent sound quality",
	"cheap broken charger",
	"replacement warranty install shipping",
}

func openExecutor(b *testing.B, scheme string) *executor.Executor {
	b.Helper()
	path := buildIndex(b, b.TempDir(), scheme, 5000, 1000)
	exec, err := executor.Open(path)
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { exec.Close() })
	return exec
}

// BenchmarkSearch measures single-query latency over a 5 000 review index.
func BenchmarkSearch(b *testing.B) {
	for _, scheme := range []string{string(scoring.FormatTfIdf), string(scoring.FormatBM25)} {
		b.Run(scheme, func(b *testing.B) {
			exec := openExecutor(b, scheme)
			ctx := context.Background()
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := exec.Search(ctx, benchQueries[i%len(benchQueries)], 10); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkSearchParallel measures concurrent read throughput.
func BenchmarkSearchParallel(b *testing.B) {
	exec := openExecutor(b, string(scoring.FormatBM25))
	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			if _, err := exec.Search(ctx, benchQueries[i%len(benchQueries)], 10); err != nil {
				b.Fatal(err)
			}
			i++
		}
	})
}

// BenchmarkSearchBatch measures a batch of every benchmark query.
func BenchmarkSearchBatch(b *testing.B) {
	exec := openExecutor(b, string(scoring.FormatTfIdf))
	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := exec.SearchBatch(ctx, benchQueries, 10); err != nil {
			b.Fatal(err)
		}
	}
}
