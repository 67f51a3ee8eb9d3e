// ReadNext - Collaborative Filtering Book Recommendations
// Copyright 2026 Nico Vollmar
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nvollmar/readnext

// Package feature transforms raw rating and book records into the dense
// title-by-user matrix the neighbor index trains on, plus the metadata
// table used for cover resolution. The transformation runs in a fixed
// order: user activity filter, ISBN join, title popularity filter,
// deduplication, pivot. Each stage that can empty the data fails with a
// distinct sentinel error so the pipeline can report the stage that
// starved it.
package feature

import (
	"errors"
	"sort"

	"github.com/rs/zerolog"

	"github.com/nvollmar/readnext/internal/dataset"
)

var (
	// ErrNoRatings indicates an empty ratings input table.
	ErrNoRatings = errors.New("feature: no rating records")

	// ErrNoBooks indicates an empty books input table.
	ErrNoBooks = errors.New("feature: no book records")

	// ErrNoActiveUsers indicates the activity filter removed every rating.
	ErrNoActiveUsers = errors.New("feature: no users above the activity threshold")

	// ErrEmptyJoin indicates no rating matched a known ISBN.
	ErrEmptyJoin = errors.New("feature: ratings and books share no ISBN")

	// ErrNoPopularTitles indicates the popularity filter removed every title.
	ErrNoPopularTitles = errors.New("feature: no titles above the popularity threshold")
)

// Thresholds are the two activity cutoffs applied during the build.
type Thresholds struct {
	// MinUserRatings keeps users with strictly more ratings than this.
	MinUserRatings int

	// MinTitleRatings keeps titles with at least this many surviving ratings.
	MinTitleRatings int
}

// Builder assembles the ratings matrix from raw records.
type Builder struct {
	thresholds Thresholds
	logger     zerolog.Logger
}

// NewBuilder creates a Builder with the given thresholds.
func NewBuilder(thresholds Thresholds, logger zerolog.Logger) *Builder {
	return &Builder{
		thresholds: thresholds,
		logger:     logger.With().Str("component", "feature").Logger(),
	}
}

// joinedRow is one rating merged with its book metadata, pre-pivot.
type joinedRow struct {
	userID int
	rating int
	book   dataset.BookRecord
}

// Build runs the full transformation and returns the pivoted matrix and
// the deduplicated metadata table. Both outputs are freshly allocated;
// the caller may retain them across retrains.
func (b *Builder) Build(ratings []dataset.RatingRecord, books []dataset.BookRecord) (*Matrix, *MetadataTable, error) {
	if len(ratings) == 0 {
		return nil, nil, ErrNoRatings
	}
	if len(books) == 0 {
		return nil, nil, ErrNoBooks
	}

	active := b.filterActiveUsers(ratings)
	if len(active) == 0 {
		return nil, nil, ErrNoActiveUsers
	}

	joined := b.joinBooks(active, books)
	if len(joined) == 0 {
		return nil, nil, ErrEmptyJoin
	}

	popular, titleCounts := b.filterPopularTitles(joined)
	if len(popular) == 0 {
		return nil, nil, ErrNoPopularTitles
	}

	meta := b.deduplicate(popular, titleCounts)
	matrix := b.pivot(meta)

	b.logger.Info().
		Int("titles", matrix.Rows()).
		Int("users", matrix.Cols()).
		Int("metadata_rows", len(meta.Rows)).
		Msg("Feature matrix built")

	return matrix, meta, nil
}

// filterActiveUsers keeps ratings by users with strictly more than
// MinUserRatings ratings in the raw table. The count is taken over the
// raw ratings, before the ISBN join, so an unmatched rating still counts
// toward its user's activity.
func (b *Builder) filterActiveUsers(ratings []dataset.RatingRecord) []dataset.RatingRecord {
	counts := make(map[int]int, 1024)
	for i := range ratings {
		counts[ratings[i].UserID]++
	}

	kept := make([]dataset.RatingRecord, 0, len(ratings))
	for i := range ratings {
		if counts[ratings[i].UserID] > b.thresholds.MinUserRatings {
			kept = append(kept, ratings[i])
		}
	}

	b.logger.Debug().
		Int("input", len(ratings)).
		Int("kept", len(kept)).
		Int("threshold", b.thresholds.MinUserRatings).
		Msg("User activity filter applied")

	return kept
}

// joinBooks inner-joins ratings with book metadata on ISBN. Ratings with
// no matching book are dropped silently; when the books table repeats an
// ISBN the first record wins.
func (b *Builder) joinBooks(ratings []dataset.RatingRecord, books []dataset.BookRecord) []joinedRow {
	byISBN := make(map[string]dataset.BookRecord, len(books))
	for i := range books {
		if _, seen := byISBN[books[i].ISBN]; !seen {
			byISBN[books[i].ISBN] = books[i]
		}
	}

	joined := make([]joinedRow, 0, len(ratings))
	for i := range ratings {
		book, ok := byISBN[ratings[i].ISBN]
		if !ok {
			continue
		}
		joined = append(joined, joinedRow{
			userID: ratings[i].UserID,
			rating: ratings[i].Rating,
			book:   book,
		})
	}

	b.logger.Debug().
		Int("input", len(ratings)).
		Int("joined", len(joined)).
		Msg("ISBN join applied")

	return joined
}

// filterPopularTitles keeps rows whose title accumulated at least
// MinTitleRatings rows after the join. It also returns the per-title
// counts, which surface as NumOfRating in the metadata table: the count
// is taken before deduplication, so repeat ratings by one user for
// different editions of a title all contribute.
func (b *Builder) filterPopularTitles(rows []joinedRow) ([]joinedRow, map[string]int) {
	counts := make(map[string]int, 512)
	for i := range rows {
		counts[rows[i].book.Title]++
	}

	kept := make([]joinedRow, 0, len(rows))
	for i := range rows {
		if counts[rows[i].book.Title] >= b.thresholds.MinTitleRatings {
			kept = append(kept, rows[i])
		}
	}

	b.logger.Debug().
		Int("input", len(rows)).
		Int("kept", len(kept)).
		Int("threshold", b.thresholds.MinTitleRatings).
		Msg("Title popularity filter applied")

	return kept, counts
}

// deduplicate collapses rows sharing a (user, title) pair, keeping the
// first occurrence in source order. Row order is otherwise preserved so
// the first row per title stays stable for poster resolution.
func (b *Builder) deduplicate(rows []joinedRow, titleCounts map[string]int) *MetadataTable {
	type pair struct {
		userID int
		title  string
	}

	seen := make(map[pair]struct{}, len(rows))
	meta := &MetadataTable{Rows: make([]MetadataRow, 0, len(rows))}
	for i := range rows {
		key := pair{userID: rows[i].userID, title: rows[i].book.Title}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		meta.Rows = append(meta.Rows, MetadataRow{
			UserID:      rows[i].userID,
			Title:       rows[i].book.Title,
			Author:      rows[i].book.Author,
			Year:        rows[i].book.Year,
			Publisher:   rows[i].book.Publisher,
			ImageURL:    rows[i].book.ImageURL,
			Rating:      rows[i].rating,
			NumOfRating: titleCounts[rows[i].book.Title],
		})
	}
	return meta
}

// pivot builds the dense matrix from the deduplicated rows. Titles sort
// lexicographically to form the canonical index, users sort ascending,
// and every cell without a rating stays 0.
func (b *Builder) pivot(meta *MetadataTable) *Matrix {
	titleSet := make(map[string]struct{}, 512)
	userSet := make(map[int]struct{}, 1024)
	for i := range meta.Rows {
		titleSet[meta.Rows[i].Title] = struct{}{}
		userSet[meta.Rows[i].UserID] = struct{}{}
	}

	titles := make([]string, 0, len(titleSet))
	for t := range titleSet {
		titles = append(titles, t)
	}
	sort.Strings(titles)

	users := make([]int, 0, len(userSet))
	for u := range userSet {
		users = append(users, u)
	}
	sort.Ints(users)

	titleIdx := make(map[string]int, len(titles))
	for i, t := range titles {
		titleIdx[t] = i
	}
	userIdx := make(map[int]int, len(users))
	for i, u := range users {
		userIdx[u] = i
	}

	values := make([][]float64, len(titles))
	for i := range values {
		values[i] = make([]float64, len(users))
	}
	for i := range meta.Rows {
		r := titleIdx[meta.Rows[i].Title]
		c := userIdx[meta.Rows[i].UserID]
		values[r][c] = float64(meta.Rows[i].Rating)
	}

	return &Matrix{Titles: titles, UserIDs: users, Values: values}
}
