package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// loadMetadata reads a metadata sheet into a map keyed by footprint id. The
// first row is the header; one column must be named "id" (case-insensitive),
// every other column becomes a metadata key.
func loadMetadata(path string) (map[string]map[string]any, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return loadCSV(path)
	case ".xlsx":
		return loadXLSX(path)
	default:
		return nil, fmt.Errorf("unsupported metadata format %q (want .csv or .xlsx)", filepath.Ext(path))
	}
}

func loadCSV(path string) (map[string]map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}

	return rowsToMetadata(rows)
}

func loadXLSX(path string) (map[string]map[string]any, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	// First sheet only; the original datasets ship single-sheet workbooks.
	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("read xlsx: %w", err)
	}

	return rowsToMetadata(rows)
}

func rowsToMetadata(rows [][]string) (map[string]map[string]any, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("metadata sheet is empty")
	}

	header := rows[0]
	idCol := -1

	for i, name := range header {
		if strings.EqualFold(strings.TrimSpace(name), "id") {
			idCol = i

			break
		}
	}

	if idCol < 0 {
		return nil, fmt.Errorf(`metadata sheet has no "id" column`)
	}

	metadata := make(map[string]map[string]any, len(rows)-1)

	for _, row := range rows[1:] {
		if idCol >= len(row) {
			continue
		}

		id := strings.TrimSpace(row[idCol])
		if id == "" {
			continue
		}

		meta := make(map[string]any, len(header)-1)

		for i, name := range header {
			if i == idCol || i >= len(row) {
				continue
			}
			meta[strings.TrimSpace(name)] = row[i]
		}

		metadata[id] = meta
	}

	return metadata, nil
}
