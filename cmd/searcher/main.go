package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/review-search/internal/events"
	"github.com/Adithya-Monish-Kumar-K/review-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/review-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/review-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/review-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/review-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/review-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/review-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/review-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/review-search/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/review-search/pkg/redis"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	indexPath := flag.String("index", "", "index directory (overrides indexer.indexPath)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *indexPath != "" {
		cfg.Indexer.IndexPath = *indexPath
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service", "port", cfg.Server.Port, "index_path", cfg.Indexer.IndexPath)

	reg := metrics.NewRegistry()
	m := metrics.New(reg)
	exec, err := executor.Open(cfg.Indexer.IndexPath,
		executor.WithMetrics(m),
		executor.WithMaxConcurrent(cfg.Search.MaxConcurrentQueries),
	)
	if err != nil {
		slog.Error("failed to open index", "error", err)
		os.Exit(1)
	}
	defer exec.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var queryCache *cache.QueryCache
	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cfg.Redis.CacheTTL, m)
			slog.Info("search cache enabled",
				"addr", cfg.Redis.Addr,
				"ttl", cfg.Redis.CacheTTL,
			)
		}
	}

	var tracker handler.Tracker
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.SearchEvents)
		defer producer.Close()
		collectorCtx, cancelCollector := context.WithCancel(context.Background())
		collector := events.NewCollector(producer, 100, 5*time.Second)
		collector.Start(collectorCtx)
		defer func() {
			cancelCollector()
			collector.Close()
		}()
		tracker = collector
		slog.Info("search event collector started", "topic", cfg.Kafka.Topics.SearchEvents)
	}

	checker := health.NewChecker()
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		props := exec.Props()
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%s index, %d terms, %d reviews", props.Format, props.TermCount, props.ReviewCount),
		}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	h := handler.New(exec, queryCache, tracker, cfg.Search.DefaultLimit, cfg.Search.MaxResults)

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	mux.Handle("GET /metrics", metrics.Handler(reg))

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	if cfg.Server.RateLimitRPS > 0 {
		limiter := middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst, 10*time.Minute)
		go limiter.Cleanup(ctx, time.Minute)
		chain = middleware.RateLimit(limiter)(chain)
		slog.Info("rate limiting enabled", "rps", cfg.Server.RateLimitRPS, "burst", cfg.Server.RateLimitBurst)
	}
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search service stopped")
}
