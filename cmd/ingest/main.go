// Command ingest loads a footprint dataset into the store: a zip archive of
// scan images (TIFF/PNG/JPEG, one per footprint, named by id) and a CSV or
// XLSX metadata sheet matched to images by id. Embeddings are generated
// locally; records whose image fails to embed are inserted without a vector
// so the River backfill can pick them up.
package main

import (
	"archive/zip"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/joho/godotenv"

	"github.com/soleprint/hub/internal/embeddings"
	"github.com/soleprint/hub/internal/models"
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
	imagesPath := flag.String("images", "", "path to a zip archive of footprint scans (required)")
	metadataPath := flag.String("metadata", "", "path to a .csv or .xlsx metadata sheet (required)")
	batchSize := flag.Int("batch-size", vectorstore.DefaultBatchSize, "records per insert chunk")
	dimension := flag.Int("dimension", vectorstore.DefaultDimension, "embedding dimension")
	dropExisting := flag.Bool("drop-existing", false, "drop and recreate the footprints table first")
	flag.Parse()

	if *imagesPath == "" || *metadataPath == "" {
		flag.Usage()

		return exitFailure
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env file", "error", err)
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		slog.Error("DATABASE_URL is required")

		return exitFailure
	}

	ctx := context.Background()

	metadata, err := loadMetadata(*metadataPath)
	if err != nil {
		slog.Error("Failed to load metadata", "path", *metadataPath, "error", err)

		return exitFailure
	}

	slog.Info("metadata loaded", "records", len(metadata))

	records, pending, err := buildRecords(ctx, *imagesPath, metadata, *dimension)
	if err != nil {
		slog.Error("Failed to read images", "path", *imagesPath, "error", err)

		return exitFailure
	}

	db, err := database.NewPostgresPool(ctx, databaseURL, database.WithVectorTypes())
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)

		return exitFailure
	}
	defer db.Close()

	store := vectorstore.NewPostgresStore(db, *dimension, slog.Default())
	if err := store.CreateSchema(ctx, *dropExisting); err != nil {
		slog.Error("Failed to create schema", "error", err)

		return exitFailure
	}

	result, err := store.InsertBatch(ctx, records, *batchSize)
	if err != nil {
		slog.Error("Batch insert aborted", "error", err)

		return exitFailure
	}

	for _, rec := range pending {
		if err := store.InsertPending(ctx, rec); err != nil {
			slog.Error("Failed to insert pending footprint", "id", rec.ID, "error", err)
			result.Failed++

			continue
		}
		result.Inserted++
	}

	slog.Info("ingest complete",
		"inserted", result.Inserted,
		"failed", result.Failed,
		"awaiting_backfill", len(pending),
	)

	for _, msg := range result.Errors {
		slog.Warn("record rejected", "detail", msg)
	}

	fmt.Printf("Inserted %d footprint(s), %d failure(s), %d awaiting embedding backfill.\n",
		result.Inserted, result.Failed, len(pending))

	if result.Failed > 0 {
		return exitFailure
	}

	return exitSuccess
}

// buildRecords walks the zip archive and pairs each image with its metadata
// row. Images that fail to embed become pending records (no vector) rather
// than being dropped.
func buildRecords(
	ctx context.Context,
	zipPath string,
	metadata map[string]map[string]any,
	dimension int,
) (records, pending []models.Footprint, err error) {
	archive, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open archive: %w", err)
	}
	defer archive.Close()

	embedder := embeddings.NewLocalClient(dimension)

	for _, entry := range archive.File {
		if entry.FileInfo().IsDir() || strings.HasPrefix(path.Base(entry.Name), ".") {
			continue
		}

		id := footprintID(entry.Name)

		meta, ok := metadata[id]
		if !ok {
			slog.Warn("no metadata for image, skipping", "image", entry.Name, "id", id)

			continue
		}

		image, err := readZipEntry(entry)
		if err != nil {
			slog.Warn("failed to read image, skipping", "image", entry.Name, "error", err)

			continue
		}

		rec := models.Footprint{
			ID:        id,
			ImagePath: entry.Name,
			Metadata:  meta,
		}

		embedding, err := embedder.Embed(ctx, image)
		if err != nil {
			slog.Warn("failed to embed image, queueing for backfill", "id", id, "error", err)
			pending = append(pending, rec)

			continue
		}

		rec.Embedding = embedding
		records = append(records, rec)
	}

	return records, pending, nil
}

// footprintID derives the record id from an archive entry name: the base name
// with the extension stripped (prints/fp-001.tiff -> fp-001).
func footprintID(name string) string {
	base := path.Base(name)

	return strings.TrimSuffix(base, path.Ext(base))
}

func readZipEntry(entry *zip.File) ([]byte, error) {
	rc, err := entry.Open()
	if err != nil {
		return nil, fmt.Errorf("open entry: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read entry: %w", err)
	}

	return data, nil
}
