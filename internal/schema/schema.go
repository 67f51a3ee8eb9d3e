// ReadNext - Collaborative Filtering Book Recommendations
// Copyright 2026 Nico Vollmar
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nvollmar/readnext

// Package schema validates raw tabular inputs against expected column
// schemas before any transformation runs.
//
// Validation is intentionally non-fatal at this layer: Validate returns
// false and logs the reason, leaving the decision to abort to the
// pipeline, which treats a false result as fatal for the run.
package schema

import (
	"strconv"

	"github.com/rs/zerolog"

	"github.com/nvollmar/readnext/internal/dataset"
)

// Kind is the logical column type the validator checks for.
type Kind int

const (
	// KindString accepts any value.
	KindString Kind = iota
	// KindInteger requires every non-empty value to parse as an integer.
	// All integer widths are treated as compatible: the check is on
	// parseability, not bit width.
	KindInteger
)

// String returns a human-readable kind name.
func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindString:
		return "string"
	default:
		return "unknown"
	}
}

// Schema maps column names to their expected logical type.
type Schema map[string]Kind

// Ratings is the expected schema of the raw ratings table.
var Ratings = Schema{
	dataset.ColUserID: KindInteger,
	dataset.ColISBN:   KindString,
	dataset.ColRating: KindInteger,
}

// Books is the expected schema of the raw books table.
var Books = Schema{
	dataset.ColISBN:      KindString,
	dataset.ColTitle:     KindString,
	dataset.ColAuthor:    KindString,
	dataset.ColYear:      KindString,
	dataset.ColPublisher: KindString,
	dataset.ColImageS:    KindString,
	dataset.ColImageM:    KindString,
	dataset.ColImageL:    KindString,
}

// Validate checks that every expected column is present and carries the
// expected logical type. It returns false and logs on the first failure;
// it never mutates the table and has no side effects beyond logging.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func Validate(table *dataset.RawTable, expected Schema, logger zerolog.Logger) bool {
	logger = logger.With().Str("table", table.Name).Logger()

	for name, kind := range expected {
		idx, ok := table.ColumnIndex(name)
		if !ok {
			logger.Error().Str("column", name).Msg("schema validation failed: missing column")
			return false
		}

		if kind == KindInteger && !columnIsInteger(table, idx) {
			logger.Error().
				Str("column", name).
				Str("expected", kind.String()).
				Msg("schema validation failed: type mismatch")
			return false
		}
	}

	logger.Debug().Int("columns", len(expected)).Msg("schema validation passed")
	return true
}

// columnIsInteger reports whether every non-empty value in the column
// parses as an integer. Empty tables validate vacuously.
func columnIsInteger(table *dataset.RawTable, idx int) bool {
	for _, row := range table.Rows {
		v := row[idx]
		if v == "" {
			continue
		}
		if _, err := strconv.ParseInt(v, 10, 64); err != nil {
			return false
		}
	}
	return true
}
