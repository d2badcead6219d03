// backfill-embeddings enqueues River embedding jobs for footprints stored
// without an embedding (null vector column). Run this as a one-off or on a
// schedule; workers in the API process consume the jobs.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"

	"github.com/soleprint/hub/internal/jobs"
	"github.com/soleprint/hub/internal/vectorstore"
	"github.com/soleprint/hub/pkg/database"
)

const (
	exitSuccess = 0
	exitFailure = 1
)

func main() {
	os.Exit(run())
}

func run() int {
	// Load .env for consistency with the main API server (godotenv.Load() there).
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env file", "error", err)
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		slog.Error("DATABASE_URL is required")

		return exitFailure
	}

	ctx := context.Background()

	db, err := database.NewPostgresPool(ctx, databaseURL, database.WithVectorTypes())
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)

		return exitFailure
	}
	defer db.Close()

	// Insert-only client: no workers run here.
	riverClient, err := river.NewClient(riverpgxv5.New(db), &river.Config{})
	if err != nil {
		slog.Error("Failed to create River client", "error", err)

		return exitFailure
	}

	store := vectorstore.NewPostgresStore(db, vectorstore.DefaultDimension, slog.Default())
	inserter := jobs.NewRiverJobInserter(riverClient)

	stats, err := jobs.Backfill(ctx, store, inserter)
	if err != nil {
		slog.Error("Backfill failed", "error", err)

		return exitFailure
	}

	slog.Info("Backfill complete", "enqueued", stats.Enqueued, "errors", stats.Errors)

	fmt.Printf("Enqueued %d embedding job(s), %d failure(s).\n", stats.Enqueued, stats.Errors)

	return exitSuccess
}
