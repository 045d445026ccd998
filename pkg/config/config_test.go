package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/review-search/pkg/errors"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "tf_idf", cfg.Indexer.Scoring)
	assert.Equal(t, 3, cfg.Indexer.MinTokenLength)
	assert.Equal(t, 100, cfg.Indexer.MemorySampleStride)
	assert.NoError(t, cfg.Indexer.Validate())
}

func TestLoadYAMLAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
indexer:
  indexPath: /tmp/reviews-index
  scoring: bm25
  k1: 1.5
  b: 0.5
  termsPerSegment: 500
corpus:
  source: sqlite
  path: reviews.db
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	t.Setenv("SP_INDEX_MEMORY_THRESHOLD", "0.25")
	t.Setenv("SP_KAFKA_BROKERS", "a:9092,b:9092")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/reviews-index", cfg.Indexer.IndexPath)
	assert.Equal(t, "bm25", cfg.Indexer.Scoring)
	assert.Equal(t, 1.5, cfg.Indexer.K1)
	assert.Equal(t, 500, cfg.Indexer.TermsPerSegment)
	assert.Equal(t, 0.25, cfg.Indexer.MemoryThreshold)
	assert.Equal(t, 3, cfg.Indexer.MinTokenLength)
	assert.Equal(t, "sqlite", cfg.Corpus.Source)
	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestIndexerValidate(t *testing.T) {
	base, err := Load("")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*IndexerConfig)
	}{
		{"threshold above one", func(c *IndexerConfig) { c.MemoryThreshold = 1.5 }},
		{"negative threshold", func(c *IndexerConfig) { c.MemoryThreshold = -0.1 }},
		{"zero token length", func(c *IndexerConfig) { c.MinTokenLength = 0 }},
		{"zero segment capacity", func(c *IndexerConfig) { c.TermsPerSegment = 0 }},
		{"zero stride", func(c *IndexerConfig) { c.MemorySampleStride = 0 }},
		{"unknown scheme", func(c *IndexerConfig) { c.Scoring = "lsi" }},
		{"bad b", func(c *IndexerConfig) { c.Scoring = "bm25"; c.B = 2 }},
		{"unknown stemmer", func(c *IndexerConfig) { c.Stemmer = "lancaster" }},
		{"empty path", func(c *IndexerConfig) { c.IndexPath = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base.Indexer
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrConfiguration))
		})
	}
}
