// Command api runs the footprint retrieval HTTP service.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"golang.org/x/time/rate"

	"github.com/soleprint/hub/internal/api/handlers"
	"github.com/soleprint/hub/internal/api/middleware"
	"github.com/soleprint/hub/internal/config"
	"github.com/soleprint/hub/internal/embeddings"
	"github.com/soleprint/hub/internal/jobs"
	"github.com/soleprint/hub/internal/observability"
	"github.com/soleprint/hub/internal/retrieval"
	"github.com/soleprint/hub/internal/vectorstore"
	"github.com/soleprint/hub/pkg/database"
)

func main() {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Configure slog with the log level from config
	setupLogging(cfg.LogLevel)

	// Metrics: Prometheus-exported OTel meter plus the /metrics handler.
	meterProvider, metricsHandler, metrics, err := observability.NewMeterProvider(ctx, observability.MeterProviderConfig{})
	if err != nil {
		slog.Error("Failed to initialize metrics", "error", err)
		os.Exit(1)
	}

	// Initialize database connection with the pgvector codec registered.
	db, err := database.NewPostgresPool(ctx, cfg.DatabaseURL, database.WithVectorTypes())
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	store := vectorstore.NewPostgresStore(db, cfg.EmbeddingDimension, slog.Default())
	if err := store.CreateSchema(ctx, false); err != nil {
		slog.Error("Failed to create schema", "error", err)
		os.Exit(1)
	}

	embedder := buildEmbedder(cfg)

	aggregator := retrieval.NewAggregator(store, slog.Default())
	queryService := retrieval.NewService(embedder, aggregator, slog.Default())

	// Optional async embedding backfill via River.
	var riverClient *river.Client[pgx.Tx]
	if cfg.BackfillEnabled {
		riverClient, err = initRiver(ctx, db, cfg, embedder, store)
		if err != nil {
			slog.Error("Failed to initialize River job queue", "error", err)
			os.Exit(1)
		}
		slog.Info("River backfill enabled",
			"workers", cfg.BackfillWorkers,
			"max_attempts", cfg.BackfillMaxAttempts,
		)
	}

	healthHandler := handlers.NewHealthHandler()
	queryHandler := handlers.NewQueryHandler(queryService, metrics)
	footprintsHandler := handlers.NewFootprintsHandler(store, metrics, cfg.BatchSize)

	// Public endpoints (no authentication required)
	publicMux := http.NewServeMux()
	publicMux.HandleFunc("GET /health", healthHandler.Check)
	publicMux.Handle("GET /metrics", metricsHandler)

	// Protected endpoints (API key required)
	protectedMux := http.NewServeMux()
	protectedMux.HandleFunc("POST /v1/query", queryHandler.QueryByImage)
	protectedMux.HandleFunc("POST /v1/query/embedding", queryHandler.QueryByEmbedding)

	protectedMux.HandleFunc("POST /v1/footprints", footprintsHandler.Create)
	protectedMux.HandleFunc("POST /v1/footprints/batch", footprintsHandler.BatchInsert)
	protectedMux.HandleFunc("GET /v1/footprints/count", footprintsHandler.Count)
	protectedMux.HandleFunc("DELETE /v1/footprints/{id}", footprintsHandler.Delete)
	protectedMux.HandleFunc("DELETE /v1/footprints", footprintsHandler.Clear)

	// CORS wraps Auth so OPTIONS preflight requests bypass authentication.
	var protectedHandler http.Handler = protectedMux
	protectedHandler = middleware.MaxBody(int64(cfg.MaxRequestBodyBytes))(protectedHandler)
	protectedHandler = middleware.Auth(cfg.APIKey)(protectedHandler)
	protectedHandler = middleware.CORS(protectedHandler)

	mainMux := http.NewServeMux()
	mainMux.Handle("/v1/", protectedHandler)
	mainMux.Handle("/", publicMux)

	// Metrics outermost (full request time), then RequestID so every log line
	// inside carries the id.
	handler := middleware.Logging(mainMux)
	handler = middleware.Metrics(metrics)(handler)
	handler = middleware.RequestID(handler)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("Starting server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// 1. Stop accepting new HTTP requests
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	// 2. Stop River (waits for in-flight jobs to complete)
	if riverClient != nil {
		slog.Info("Stopping River job queue...")
		if err := riverClient.Stop(shutdownCtx); err != nil {
			slog.Error("River forced to shutdown", "error", err)
		}
		slog.Info("River job queue stopped")
	}

	// 3. Flush metrics
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		slog.Error("Meter provider forced to shutdown", "error", err)
	}

	slog.Info("Server exited")
}

// buildEmbedder assembles the embedding fallback chain: the OpenAI client
// (rate limited, LRU cached) when configured, the local pixel embedder always.
func buildEmbedder(cfg *config.Config) *embeddings.FallbackChain {
	chain := embeddings.NewFallbackChain(slog.Default())

	if cfg.OpenAIAPIKey != "" {
		remote := embeddings.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.EmbeddingDimension, float64(cfg.EmbeddingRateLimitRPS))

		cached, err := embeddings.NewCachingClient(remote, cfg.EmbeddingCacheSize)
		if err != nil {
			slog.Warn("embedding cache disabled", "error", err)
			chain.Add(embeddings.SourceOpenAI, remote)
		} else {
			chain.Add(embeddings.SourceOpenAI, cached)
		}

		slog.Info("remote embeddings enabled", "rate_limit_rps", cfg.EmbeddingRateLimitRPS)
	} else {
		slog.Info("remote embeddings disabled (OPENAI_API_KEY not set)")
	}

	chain.Add(embeddings.SourceLocal, embeddings.NewLocalClient(cfg.EmbeddingDimension))

	return chain
}

// setupLogging configures slog with the specified log level
func setupLogging(level string) {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	handler := slog.NewTextHandler(os.Stdout, opts)
	slog.SetDefault(slog.New(observability.NewRequestContextHandler(handler)))
}

// initRiver initializes the River job queue client and the embedding worker
func initRiver(
	ctx context.Context,
	db *pgxpool.Pool,
	cfg *config.Config,
	embedder jobs.Embedder,
	store *vectorstore.PostgresStore,
) (*river.Client[pgx.Tx], error) {
	rateLimiter := rate.NewLimiter(rate.Limit(cfg.EmbeddingRateLimitRPS), 1)

	embeddingWorker := jobs.NewEmbeddingWorker(jobs.EmbeddingWorkerDeps{
		Embedder:    embedder,
		Updater:     store,
		RateLimiter: rateLimiter,
	})

	workers := river.NewWorkers()
	river.AddWorker(workers, embeddingWorker)

	riverClient, err := river.NewClient(riverpgxv5.New(db), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: cfg.BackfillWorkers},
		},
		Workers:      workers,
		ErrorHandler: jobs.NewErrorHandler(slog.Default()),
		JobTimeout:   60 * time.Second,
		MaxAttempts:  cfg.BackfillMaxAttempts,
	})
	if err != nil {
		return nil, err
	}

	// Start River (begins processing jobs)
	if err := riverClient.Start(ctx); err != nil {
		return nil, err
	}

	return riverClient, nil
}
