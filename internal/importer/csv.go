package importer

import (
	"fmt"
	"io"
	"os"

	"github.com/gocarina/gocsv"

	"hearthledger/internal/feed"
)

// ReadCSV decodes a bank statement CSV into feed rows.
func ReadCSV(r io.Reader) ([]feed.Row, error) {
	var rows []*feed.Row
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}

	out := make([]feed.Row, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row)
	}
	return out, nil
}

// ReadCSVFile decodes a bank statement CSV file into feed rows.
func ReadCSVFile(path string) ([]feed.Row, error) {
	file, err := os.Open(path) // #nosec G304 -- CLI takes user-provided file paths
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer func() { _ = file.Close() }()

	return ReadCSV(file)
}
