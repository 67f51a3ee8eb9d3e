// ReadNext - Collaborative Filtering Book Recommendations
// Copyright 2026 Nico Vollmar
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nvollmar/readnext

package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"golang.org/x/text/encoding/charmap"
)

// delimiter used by the raw dataset tables.
const delimiter = ';'

// ReadTable reads a semicolon-delimited, Latin-1 encoded CSV file into a
// RawTable. Rows with a field count different from the header are skipped
// and counted; the skip count is logged once per file.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func ReadTable(path string, logger zerolog.Logger) (*RawTable, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from resolved configuration
	if err != nil {
		return nil, fmt.Errorf("open table %s: %w", path, err)
	}
	defer func() { _ = f.Close() }() //nolint:errcheck // error on close after read is not actionable

	reader := csv.NewReader(charmap.ISO8859_1.NewDecoder().Reader(f))
	reader.Comma = delimiter
	reader.LazyQuotes = true
	// Field-count mismatches are handled below rather than aborting the read.
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}

	table := &RawTable{
		Name:    filepath.Base(path),
		Columns: header,
	}

	skipped := 0
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Unparseable line: skip it, matching the ingestion tolerance of
			// the raw dump which contains stray quote characters.
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				skipped++
				continue
			}
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if len(row) != len(header) {
			skipped++
			continue
		}
		table.Rows = append(table.Rows, row)
	}

	if skipped > 0 {
		logger.Warn().
			Str("table", table.Name).
			Int("skipped_rows", skipped).
			Msg("skipped malformed rows")
	}

	logger.Debug().
		Str("table", table.Name).
		Int("columns", len(table.Columns)).
		Int("rows", len(table.Rows)).
		Msg("table loaded")

	return table, nil
}
