// ReadNext - Collaborative Filtering Book Recommendations
// Copyright 2026 Nico Vollmar
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nvollmar/readnext

// Package dataset handles raw dataset ingestion: downloading the archive,
// extracting it, and reading the ratings and books CSV tables.
//
// The source tables are semicolon-delimited, Latin-1 encoded, and contain
// the occasional malformed row; malformed rows are skipped during reading.
// Any row that survives ingestion is treated as well-typed by the rest of
// the system, which is why schema validation runs before transformation.
package dataset

import (
	"strconv"
)

// Column names of the raw ratings table.
const (
	ColUserID = "User-ID"
	ColISBN   = "ISBN"
	ColRating = "Book-Rating"
)

// Column names of the raw books table.
const (
	ColTitle     = "Book-Title"
	ColAuthor    = "Book-Author"
	ColYear      = "Year-Of-Publication"
	ColPublisher = "Publisher"
	ColImageS    = "Image-URL-S"
	ColImageM    = "Image-URL-M"
	ColImageL    = "Image-URL-L"
)

// RawTable is a parsed delimited table: a header and string-valued rows.
// Rows are guaranteed to have exactly len(Columns) fields.
type RawTable struct {
	Name    string
	Columns []string
	Rows    [][]string
}

// ColumnIndex returns the position of a named column, or false if absent.
func (t *RawTable) ColumnIndex(name string) (int, bool) {
	for i, c := range t.Columns {
		if c == name {
			return i, true
		}
	}
	return 0, false
}

// Empty reports whether the table has no data rows.
func (t *RawTable) Empty() bool {
	return len(t.Rows) == 0
}

// RatingRecord is one user-book rating event from the raw ratings table.
type RatingRecord struct {
	UserID int
	ISBN   string
	Rating int
}

// BookRecord is one book from the raw books table, projected to the
// columns the feature builder consumes. The large cover image is kept.
type BookRecord struct {
	ISBN      string
	Title     string
	Author    string
	Year      string
	Publisher string
	ImageURL  string
}

// Ratings projects a raw ratings table into typed records. Rows whose
// numeric fields do not parse are skipped; this mirrors the reader's
// malformed-row tolerance.
func Ratings(t *RawTable) []RatingRecord {
	userIdx, okUser := t.ColumnIndex(ColUserID)
	isbnIdx, okISBN := t.ColumnIndex(ColISBN)
	ratingIdx, okRating := t.ColumnIndex(ColRating)
	if !okUser || !okISBN || !okRating {
		return nil
	}

	records := make([]RatingRecord, 0, len(t.Rows))
	for _, row := range t.Rows {
		userID, err := strconv.Atoi(row[userIdx])
		if err != nil {
			continue
		}
		rating, err := strconv.Atoi(row[ratingIdx])
		if err != nil {
			continue
		}
		records = append(records, RatingRecord{
			UserID: userID,
			ISBN:   row[isbnIdx],
			Rating: rating,
		})
	}
	return records
}

// Books projects a raw books table into typed records, keeping the large
// cover image URL.
func Books(t *RawTable) []BookRecord {
	isbnIdx, okISBN := t.ColumnIndex(ColISBN)
	titleIdx, okTitle := t.ColumnIndex(ColTitle)
	authorIdx, okAuthor := t.ColumnIndex(ColAuthor)
	yearIdx, okYear := t.ColumnIndex(ColYear)
	pubIdx, okPub := t.ColumnIndex(ColPublisher)
	imgIdx, okImg := t.ColumnIndex(ColImageL)
	if !okISBN || !okTitle || !okAuthor || !okYear || !okPub || !okImg {
		return nil
	}

	records := make([]BookRecord, 0, len(t.Rows))
	for _, row := range t.Rows {
		records = append(records, BookRecord{
			ISBN:      row[isbnIdx],
			Title:     row[titleIdx],
			Author:    row[authorIdx],
			Year:      row[yearIdx],
			Publisher: row[pubIdx],
			ImageURL:  row[imgIdx],
		})
	}
	return records
}
