// ReadNext - Collaborative Filtering Book Recommendations
// Copyright 2026 Nico Vollmar
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nvollmar/readnext

package dataset

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/nvollmar/readnext/internal/logging"
)

func writeTempCSV(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write temp csv: %v", err)
	}
	return path
}

func TestReadTable(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewTestLogger(&buf)

	// 0xE9 is 'é' in Latin-1; it must decode to the UTF-8 rune.
	content := []byte("\"User-ID\";\"ISBN\";\"Book-Rating\"\n" +
		"276725;\"034545104X\";0\n" +
		"276726;\"0155061224\";5\n" +
		"276727;\"2080674722\";8;extra;fields\n" + // wrong field count, skipped
		"276729;\"05217\xe95503\";6\n")

	path := writeTempCSV(t, "ratings.csv", content)

	table, err := ReadTable(path, logger)
	if err != nil {
		t.Fatalf("ReadTable() error = %v", err)
	}

	if got, want := len(table.Columns), 3; got != want {
		t.Errorf("columns = %d, want %d", got, want)
	}
	if got, want := len(table.Rows), 3; got != want {
		t.Fatalf("rows = %d, want %d (malformed row must be skipped)", got, want)
	}
	if got, want := table.Rows[2][1], "05217é5503"; got != want {
		t.Errorf("latin-1 decode = %q, want %q", got, want)
	}
	if !bytes.Contains(buf.Bytes(), []byte("skipped_rows")) {
		t.Errorf("expected skipped-row warning in log output: %s", buf.String())
	}
}

func TestReadTableMissingFile(t *testing.T) {
	var buf bytes.Buffer
	if _, err := ReadTable(filepath.Join(t.TempDir(), "missing.csv"), logging.NewTestLogger(&buf)); err == nil {
		t.Fatal("ReadTable() on missing file should error")
	}
}

func TestColumnIndex(t *testing.T) {
	table := &RawTable{Columns: []string{"User-ID", "ISBN", "Book-Rating"}}

	if idx, ok := table.ColumnIndex("ISBN"); !ok || idx != 1 {
		t.Errorf("ColumnIndex(ISBN) = %d, %v; want 1, true", idx, ok)
	}
	if _, ok := table.ColumnIndex("Publisher"); ok {
		t.Error("ColumnIndex(Publisher) should be absent")
	}
}

func TestRatingsProjection(t *testing.T) {
	table := &RawTable{
		Columns: []string{"User-ID", "ISBN", "Book-Rating"},
		Rows: [][]string{
			{"1", "isbn-a", "5"},
			{"not-a-number", "isbn-b", "3"}, // skipped
			{"2", "isbn-c", "bad"},          // skipped
			{"3", "isbn-d", "0"},
		},
	}

	records := Ratings(table)
	if len(records) != 2 {
		t.Fatalf("Ratings() returned %d records, want 2", len(records))
	}
	if records[0] != (RatingRecord{UserID: 1, ISBN: "isbn-a", Rating: 5}) {
		t.Errorf("unexpected first record: %+v", records[0])
	}
	if records[1] != (RatingRecord{UserID: 3, ISBN: "isbn-d", Rating: 0}) {
		t.Errorf("unexpected second record: %+v", records[1])
	}
}

func TestRatingsProjectionMissingColumn(t *testing.T) {
	table := &RawTable{Columns: []string{"User-ID", "ISBN"}}
	if got := Ratings(table); got != nil {
		t.Errorf("Ratings() without rating column = %v, want nil", got)
	}
}

func TestBooksProjection(t *testing.T) {
	table := &RawTable{
		Columns: []string{"ISBN", "Book-Title", "Book-Author", "Year-Of-Publication", "Publisher", "Image-URL-S", "Image-URL-M", "Image-URL-L"},
		Rows: [][]string{
			{"isbn-a", "Dune", "Frank Herbert", "1965", "Chilton", "s.jpg", "m.jpg", "l.jpg"},
		},
	}

	records := Books(table)
	if len(records) != 1 {
		t.Fatalf("Books() returned %d records, want 1", len(records))
	}
	want := BookRecord{
		ISBN:      "isbn-a",
		Title:     "Dune",
		Author:    "Frank Herbert",
		Year:      "1965",
		Publisher: "Chilton",
		ImageURL:  "l.jpg",
	}
	if records[0] != want {
		t.Errorf("Books()[0] = %+v, want %+v", records[0], want)
	}
}
