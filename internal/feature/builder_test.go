// ReadNext - Collaborative Filtering Book Recommendations
// Copyright 2026 Nico Vollmar
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nvollmar/readnext

package feature

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/rs/zerolog"

	"github.com/nvollmar/readnext/internal/dataset"
)

func testBuilder(minUsers, minTitles int) *Builder {
	return NewBuilder(Thresholds{
		MinUserRatings:  minUsers,
		MinTitleRatings: minTitles,
	}, zerolog.Nop())
}

// ratingsFor emits n ratings by one user across n distinct ISBNs.
func ratingsFor(userID, n int) []dataset.RatingRecord {
	out := make([]dataset.RatingRecord, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, dataset.RatingRecord{
			UserID: userID,
			ISBN:   fmt.Sprintf("u%d-isbn-%04d", userID, i),
			Rating: 5,
		})
	}
	return out
}

// booksFor emits one book per ISBN in the given ratings, all sharing a title.
func booksFor(ratings []dataset.RatingRecord, title string) []dataset.BookRecord {
	out := make([]dataset.BookRecord, 0, len(ratings))
	for i := range ratings {
		out = append(out, dataset.BookRecord{
			ISBN:     ratings[i].ISBN,
			Title:    title,
			Author:   "Author",
			ImageURL: "http://img/" + ratings[i].ISBN,
		})
	}
	return out
}

func TestBuildEmptyInputs(t *testing.T) {
	b := testBuilder(200, 50)

	_, _, err := b.Build(nil, []dataset.BookRecord{{ISBN: "x", Title: "X"}})
	if !errors.Is(err, ErrNoRatings) {
		t.Fatalf("empty ratings: got %v, want ErrNoRatings", err)
	}

	_, _, err = b.Build([]dataset.RatingRecord{{UserID: 1, ISBN: "x"}}, nil)
	if !errors.Is(err, ErrNoBooks) {
		t.Fatalf("empty books: got %v, want ErrNoBooks", err)
	}
}

func TestUserActivityBoundary(t *testing.T) {
	tests := []struct {
		name    string
		ratings int
		kept    bool
	}{
		{"at threshold excluded", 200, false},
		{"above threshold included", 201, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := testBuilder(200, 1)
			ratings := ratingsFor(7, tt.ratings)
			books := booksFor(ratings, "Solaris")

			matrix, _, err := b.Build(ratings, books)
			if !tt.kept {
				if !errors.Is(err, ErrNoActiveUsers) {
					t.Fatalf("got %v, want ErrNoActiveUsers", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if matrix.Cols() != 1 || matrix.UserIDs[0] != 7 {
				t.Fatalf("users = %v, want [7]", matrix.UserIDs)
			}
		})
	}
}

func TestTitlePopularityBoundary(t *testing.T) {
	build := func(perTitle map[string]int) (*Matrix, error) {
		var ratings []dataset.RatingRecord
		var books []dataset.BookRecord
		user := 100
		for title, n := range perTitle {
			for i := 0; i < n; i++ {
				isbn := fmt.Sprintf("%s-%d-%d", title, user, i)
				ratings = append(ratings, dataset.RatingRecord{UserID: user, ISBN: isbn, Rating: 8})
				books = append(books, dataset.BookRecord{ISBN: isbn, Title: title})
				user++
			}
		}
		b := testBuilder(0, 50)
		matrix, _, err := b.Build(ratings, books)
		return matrix, err
	}

	matrix, err := build(map[string]int{"Kept": 50, "Dropped": 49})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if matrix.Rows() != 1 || matrix.Titles[0] != "Kept" {
		t.Fatalf("titles = %v, want [Kept]", matrix.Titles)
	}

	_, err = build(map[string]int{"Dropped": 49})
	if !errors.Is(err, ErrNoPopularTitles) {
		t.Fatalf("got %v, want ErrNoPopularTitles", err)
	}
}

func TestJoinDropsUnknownISBNs(t *testing.T) {
	b := testBuilder(0, 1)
	ratings := []dataset.RatingRecord{
		{UserID: 1, ISBN: "known", Rating: 9},
		{UserID: 1, ISBN: "unknown", Rating: 9},
	}
	books := []dataset.BookRecord{{ISBN: "known", Title: "The Dispossessed"}}

	matrix, meta, err := b.Build(ratings, books)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if matrix.Rows() != 1 || len(meta.Rows) != 1 {
		t.Fatalf("rows = %d, meta = %d, want 1 and 1", matrix.Rows(), len(meta.Rows))
	}
}

func TestJoinEmptyFails(t *testing.T) {
	b := testBuilder(0, 1)
	ratings := []dataset.RatingRecord{{UserID: 1, ISBN: "a", Rating: 5}}
	books := []dataset.BookRecord{{ISBN: "b", Title: "B"}}

	_, _, err := b.Build(ratings, books)
	if !errors.Is(err, ErrEmptyJoin) {
		t.Fatalf("got %v, want ErrEmptyJoin", err)
	}
}

func TestDeduplicateKeepsFirst(t *testing.T) {
	b := testBuilder(0, 1)
	// Same user rates two editions of the same title; the first source
	// row must win, including its cover URL and rating value.
	ratings := []dataset.RatingRecord{
		{UserID: 42, ISBN: "dune-1965", Rating: 10},
		{UserID: 42, ISBN: "dune-1984", Rating: 3},
	}
	books := []dataset.BookRecord{
		{ISBN: "dune-1965", Title: "Dune", ImageURL: "http://img/first"},
		{ISBN: "dune-1984", Title: "Dune", ImageURL: "http://img/second"},
	}

	matrix, meta, err := b.Build(ratings, books)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(meta.Rows) != 1 {
		t.Fatalf("meta rows = %d, want 1", len(meta.Rows))
	}
	row := meta.Rows[0]
	if row.Rating != 10 || row.ImageURL != "http://img/first" {
		t.Fatalf("dedupe kept %+v, want first occurrence", row)
	}
	// NumOfRating counts rows before dedupe.
	if row.NumOfRating != 2 {
		t.Fatalf("NumOfRating = %d, want 2", row.NumOfRating)
	}
	if got := matrix.Values[0][0]; got != 10 {
		t.Fatalf("cell = %v, want 10", got)
	}
}

func TestPivotShapeAndOrder(t *testing.T) {
	b := testBuilder(0, 1)
	ratings := []dataset.RatingRecord{
		{UserID: 30, ISBN: "z", Rating: 7},
		{UserID: 10, ISBN: "a", Rating: 4},
		{UserID: 20, ISBN: "m", Rating: 9},
	}
	books := []dataset.BookRecord{
		{ISBN: "z", Title: "Zothique"},
		{ISBN: "a", Title: "Anathem"},
		{ISBN: "m", Title: "Middlemarch"},
	}

	matrix, _, err := b.Build(ratings, books)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantTitles := []string{"Anathem", "Middlemarch", "Zothique"}
	for i, w := range wantTitles {
		if matrix.Titles[i] != w {
			t.Fatalf("titles = %v, want %v", matrix.Titles, wantTitles)
		}
	}
	wantUsers := []int{10, 20, 30}
	for i, w := range wantUsers {
		if matrix.UserIDs[i] != w {
			t.Fatalf("users = %v, want %v", matrix.UserIDs, wantUsers)
		}
	}

	// One non-zero cell per row, zeros everywhere else.
	wantCells := map[[2]int]float64{
		{0, 0}: 4, // Anathem by user 10
		{1, 1}: 9, // Middlemarch by user 20
		{2, 2}: 7, // Zothique by user 30
	}
	for r := 0; r < matrix.Rows(); r++ {
		for c := 0; c < matrix.Cols(); c++ {
			want := wantCells[[2]int{r, c}]
			if matrix.Values[r][c] != want {
				t.Fatalf("cell (%d,%d) = %v, want %v", r, c, matrix.Values[r][c], want)
			}
		}
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	b := testBuilder(0, 1)
	ratings := []dataset.RatingRecord{
		{UserID: 30, ISBN: "z", Rating: 7},
		{UserID: 10, ISBN: "a", Rating: 4},
		{UserID: 10, ISBN: "m", Rating: 2},
		{UserID: 20, ISBN: "m", Rating: 9},
	}
	books := []dataset.BookRecord{
		{ISBN: "z", Title: "Zothique"},
		{ISBN: "a", Title: "Anathem"},
		{ISBN: "m", Title: "Middlemarch"},
	}

	first, _, err := b.Build(ratings, books)
	if err != nil {
		t.Fatalf("first build: %v", err)
	}
	second, _, err := b.Build(ratings, books)
	if err != nil {
		t.Fatalf("second build: %v", err)
	}

	// Identical inputs must produce an identical matrix: same titles,
	// same user ordering, same cell values.
	if !reflect.DeepEqual(first.Titles, second.Titles) {
		t.Fatalf("titles differ across builds: %v vs %v", first.Titles, second.Titles)
	}
	if !reflect.DeepEqual(first.UserIDs, second.UserIDs) {
		t.Fatalf("users differ across builds: %v vs %v", first.UserIDs, second.UserIDs)
	}
	if !reflect.DeepEqual(first.Values, second.Values) {
		t.Fatalf("values differ across builds: %v vs %v", first.Values, second.Values)
	}
}

func TestActivityCountedBeforeJoin(t *testing.T) {
	// User 5 has 3 raw ratings but only 1 matches a book. With a
	// threshold of 2 the user still qualifies: activity counts over the
	// raw table, not the joined one.
	b := testBuilder(2, 1)
	ratings := []dataset.RatingRecord{
		{UserID: 5, ISBN: "known", Rating: 6},
		{UserID: 5, ISBN: "gone-1", Rating: 6},
		{UserID: 5, ISBN: "gone-2", Rating: 6},
	}
	books := []dataset.BookRecord{{ISBN: "known", Title: "Hyperion"}}

	matrix, _, err := b.Build(ratings, books)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if matrix.Rows() != 1 || matrix.Titles[0] != "Hyperion" {
		t.Fatalf("titles = %v, want [Hyperion]", matrix.Titles)
	}
}

func TestPosterURLFirstOccurrence(t *testing.T) {
	meta := &MetadataTable{Rows: []MetadataRow{
		{Title: "Dune", ImageURL: "http://img/first"},
		{Title: "Dune", ImageURL: "http://img/second"},
		{Title: "Blank", ImageURL: ""},
	}}

	url, ok := meta.PosterURL("Dune")
	if !ok || url != "http://img/first" {
		t.Fatalf("PosterURL(Dune) = %q, %v", url, ok)
	}
	if _, ok := meta.PosterURL("Blank"); ok {
		t.Fatal("PosterURL(Blank) should report missing")
	}
	if _, ok := meta.PosterURL("Absent"); ok {
		t.Fatal("PosterURL(Absent) should report missing")
	}
}
