// ReadNext - Collaborative Filtering Book Recommendations
// Copyright 2026 Nico Vollmar
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nvollmar/readnext

package schema

import (
	"bytes"
	"strings"
	"testing"

	"github.com/nvollmar/readnext/internal/dataset"
	"github.com/nvollmar/readnext/internal/logging"
)

func ratingsTable(rows [][]string) *dataset.RawTable {
	return &dataset.RawTable{
		Name:    "ratings.csv",
		Columns: []string{"User-ID", "ISBN", "Book-Rating"},
		Rows:    rows,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		table    *dataset.RawTable
		expected Schema
		want     bool
		logPart  string
	}{
		{
			name: "valid ratings table",
			table: ratingsTable([][]string{
				{"1", "isbn-a", "5"},
				{"2", "isbn-b", "0"},
			}),
			expected: Ratings,
			want:     true,
		},
		{
			name: "missing column",
			table: &dataset.RawTable{
				Name:    "ratings.csv",
				Columns: []string{"User-ID", "ISBN"},
			},
			expected: Ratings,
			want:     false,
			logPart:  "missing column",
		},
		{
			name: "non-integer rating",
			table: ratingsTable([][]string{
				{"1", "isbn-a", "five"},
			}),
			expected: Ratings,
			want:     false,
			logPart:  "type mismatch",
		},
		{
			name: "empty values pass integer check",
			table: ratingsTable([][]string{
				{"1", "isbn-a", ""},
			}),
			expected: Ratings,
			want:     true,
		},
		{
			name:     "empty table validates vacuously",
			table:    ratingsTable(nil),
			expected: Ratings,
			want:     true,
		},
		{
			name: "negative integers are integers",
			table: ratingsTable([][]string{
				{"-7", "isbn-a", "3"},
			}),
			expected: Ratings,
			want:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			got := Validate(tt.table, tt.expected, logging.NewTestLogger(&buf))
			if got != tt.want {
				t.Errorf("Validate() = %v, want %v", got, tt.want)
			}
			if tt.logPart != "" && !strings.Contains(buf.String(), tt.logPart) {
				t.Errorf("log output missing %q: %s", tt.logPart, buf.String())
			}
		})
	}
}

func TestValidateBooksSchema(t *testing.T) {
	table := &dataset.RawTable{
		Name: "books.csv",
		Columns: []string{
			"ISBN", "Book-Title", "Book-Author", "Year-Of-Publication",
			"Publisher", "Image-URL-S", "Image-URL-M", "Image-URL-L",
		},
		Rows: [][]string{
			{"isbn-a", "Dune", "Frank Herbert", "1965", "Chilton", "s", "m", "l"},
		},
	}

	var buf bytes.Buffer
	if !Validate(table, Books, logging.NewTestLogger(&buf)) {
		t.Errorf("Validate() = false for valid books table; log: %s", buf.String())
	}
}
