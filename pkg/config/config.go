// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Indexer, Corpus, Search, Server, Postgres, Kafka, Redis, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "github.com/Adithya-Monish-Kumar-K/review-search/pkg/errors"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Indexer  IndexerConfig  `yaml:"indexer"`
	Corpus   CorpusConfig   `yaml:"corpus"`
	Search   SearchConfig   `yaml:"search"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	RateLimitRPS    float64       `yaml:"rateLimitRps"` // per client; 0 disables limiting
	RateLimitBurst  int           `yaml:"rateLimitBurst"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled bool        `yaml:"enabled"`
	Brokers []string    `yaml:"brokers"`
	Topics  KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	IndexBuilt   string `yaml:"indexBuilt"`
	SearchEvents string `yaml:"searchEvents"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// IndexerConfig controls tokenisation, weighting, the memory threshold that
// triggers block flushes, and the segment layout of the final index.
type IndexerConfig struct {
	IndexPath          string   `yaml:"indexPath"`
	Scoring            string   `yaml:"scoring"`
	K1                 float64  `yaml:"k1"`
	B                  float64  `yaml:"b"`
	MinTokenLength     int      `yaml:"minTokenLength"`
	StopwordsPath      string   `yaml:"stopwordsPath"`
	Stopwords          []string `yaml:"stopwords"`
	Stemmer            string   `yaml:"stemmer"`
	MemoryThreshold    float64  `yaml:"memoryThreshold"`
	MemorySampleStride int      `yaml:"memorySampleStride"`
	TermsPerSegment    int      `yaml:"termsPerSegment"`
	Overwrite          bool     `yaml:"overwrite"`
	Debug              bool     `yaml:"debug"`
}

// CorpusConfig selects the raw-record source fed to the indexer.
type CorpusConfig struct {
	Source      string `yaml:"source"`
	Path        string `yaml:"path"`
	Query       string `yaml:"query"`
	DocIDOffset int    `yaml:"docIdOffset"`
}

// SearchConfig controls query execution limits.
type SearchConfig struct {
	MaxResults           int `yaml:"maxResults"`
	DefaultLimit         int `yaml:"defaultLimit"`
	MaxConcurrentQueries int `yaml:"maxConcurrentQueries"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// Validate checks the indexer settings. It never touches the filesystem.
func (c IndexerConfig) Validate() error {
	if c.IndexPath == "" {
		return apperrors.Configf("index path is required")
	}
	if c.MemoryThreshold < 0 || c.MemoryThreshold > 1 {
		return apperrors.Configf("memory threshold %v outside [0,1]", c.MemoryThreshold)
	}
	if c.MinTokenLength < 1 {
		return apperrors.Configf("min token length must be positive, got %d", c.MinTokenLength)
	}
	if c.TermsPerSegment < 1 {
		return apperrors.Configf("terms per segment must be positive, got %d", c.TermsPerSegment)
	}
	if c.MemorySampleStride < 1 {
		return apperrors.Configf("memory sample stride must be positive, got %d", c.MemorySampleStride)
	}
	switch c.Scoring {
	case "tf_idf":
	case "bm25":
		if c.K1 < 0 {
			return apperrors.Configf("bm25 k1 must be non-negative, got %v", c.K1)
		}
		if c.B < 0 || c.B > 1 {
			return apperrors.Configf("bm25 b %v outside [0,1]", c.B)
		}
	default:
		return apperrors.Configf("unknown scoring scheme %q", c.Scoring)
	}
	switch c.Stemmer {
	case "english", "none", "":
	default:
		return apperrors.Configf("unknown stemmer %q", c.Stemmer)
	}
	return nil
}

// defaultConfig returns a Config with defaults suitable for local runs.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RateLimitBurst:  20,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "reviews",
			User:            "reviews",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    4,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers: []string{"localhost:9092"},
			Topics: KafkaTopics{
				IndexBuilt:   "index.built",
				SearchEvents: "search-events",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Indexer: IndexerConfig{
			IndexPath:          "index",
			Scoring:            "tf_idf",
			K1:                 1.2,
			B:                  0.75,
			MinTokenLength:     3,
			Stemmer:            "none",
			MemoryThreshold:    0.8,
			MemorySampleStride: 100,
			TermsPerSegment:    10000,
		},
		Corpus: CorpusConfig{
			Source: "tsv",
			Query:  "SELECT review_id, product_title, review_headline, review_body FROM reviews ORDER BY id",
		},
		Search: SearchConfig{
			MaxResults:           1000,
			DefaultLimit:         100,
			MaxConcurrentQueries: 8,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads SP_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SP_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SP_SERVER_RATE_LIMIT_RPS"); v != "" {
		if rps, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Server.RateLimitRPS = rps
		}
	}
	if v := os.Getenv("SP_INDEX_PATH"); v != "" {
		cfg.Indexer.IndexPath = v
	}
	if v := os.Getenv("SP_INDEX_SCORING"); v != "" {
		cfg.Indexer.Scoring = v
	}
	if v := os.Getenv("SP_INDEX_MEMORY_THRESHOLD"); v != "" {
		if threshold, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Indexer.MemoryThreshold = threshold
		}
	}
	if v := os.Getenv("SP_INDEX_STEMMER"); v != "" {
		cfg.Indexer.Stemmer = v
	}
	if v := os.Getenv("SP_CORPUS_SOURCE"); v != "" {
		cfg.Corpus.Source = v
	}
	if v := os.Getenv("SP_CORPUS_PATH"); v != "" {
		cfg.Corpus.Path = v
	}
	if v := os.Getenv("SP_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("SP_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("SP_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("SP_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("SP_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("SP_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
		cfg.Kafka.Enabled = true
	}
	if v := os.Getenv("SP_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("SP_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SP_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SP_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
