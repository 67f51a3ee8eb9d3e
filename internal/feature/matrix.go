// ReadNext - Collaborative Filtering Book Recommendations
// Copyright 2026 Nico Vollmar
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nvollmar/readnext

package feature

// Matrix is the dense title-by-user ratings matrix. Row order is the
// canonical title index: row i of Values belongs to Titles[i] everywhere
// downstream, including the fitted neighbor index. Cells with no source
// rating hold 0, never a missing value, because the distance computation
// requires a complete numeric matrix.
type Matrix struct {
	// Titles is the canonical ordered title index (lexicographic).
	Titles []string

	// UserIDs is the column order (ascending).
	UserIDs []int

	// Values holds one row per title, one column per user.
	Values [][]float64
}

// Row returns the rating vector for row i.
func (m *Matrix) Row(i int) []float64 {
	return m.Values[i]
}

// Rows returns the number of titles.
func (m *Matrix) Rows() int {
	return len(m.Titles)
}

// Cols returns the number of users.
func (m *Matrix) Cols() int {
	return len(m.UserIDs)
}

// TitleIndex returns the row index of a title, or false if absent.
func (m *Matrix) TitleIndex(title string) (int, bool) {
	// Titles are sorted, so a binary search would do, but the canonical
	// index is small enough that callers that care build a map once.
	for i, t := range m.Titles {
		if t == title {
			return i, true
		}
	}
	return 0, false
}

// MetadataRow is one surviving (user, title) rating event with the book
// metadata needed to resolve covers. NumOfRating is the title's surviving
// rating count before deduplication, as the source data defines it.
type MetadataRow struct {
	UserID      int
	Title       string
	Author      string
	Year        string
	Publisher   string
	ImageURL    string
	Rating      int
	NumOfRating int
}

// MetadataTable holds the deduplicated rating events in original source
// order. Poster resolution takes the first row matching a title, which
// makes the title-to-cover mapping deterministic even when ISBN editions
// carry different cover URLs.
type MetadataTable struct {
	Rows []MetadataRow
}

// PosterURL resolves a title to its cover URL using the first matching
// row. Returns false when the title has no row or the row has no URL.
func (t *MetadataTable) PosterURL(title string) (string, bool) {
	for i := range t.Rows {
		if t.Rows[i].Title == title {
			return t.Rows[i].ImageURL, t.Rows[i].ImageURL != ""
		}
	}
	return "", false
}

// First returns the first metadata row for a title, or false if absent.
func (t *MetadataTable) First(title string) (MetadataRow, bool) {
	for i := range t.Rows {
		if t.Rows[i].Title == title {
			return t.Rows[i], true
		}
	}
	return MetadataRow{}, false
}
