// ReadNext - Collaborative Filtering Book Recommendations
// Copyright 2026 Nico Vollmar
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nvollmar/readnext

package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvollmar/readnext/internal/config"
	"github.com/nvollmar/readnext/internal/feature"
)

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Open(context.Background(), config.DatabaseConfig{
		Path:      filepath.Join(t.TempDir(), "test.duckdb"),
		MaxMemory: "256MB",
		Threads:   1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func sampleMeta() *feature.MetadataTable {
	return &feature.MetadataTable{Rows: []feature.MetadataRow{
		{UserID: 1, Title: "Dune", Author: "Frank Herbert", Year: "1965", Publisher: "Chilton", ImageURL: "http://img/dune-first", NumOfRating: 120},
		{UserID: 2, Title: "Dune", Author: "Frank Herbert", Year: "1984", Publisher: "Putnam", ImageURL: "http://img/dune-second", NumOfRating: 120},
		{UserID: 1, Title: "Hyperion", Author: "Dan Simmons", Year: "1989", Publisher: "Doubleday", ImageURL: "http://img/hyperion", NumOfRating: 75},
	}}
}

func TestReplaceAndList(t *testing.T) {
	c := testCatalog(t)
	ctx := context.Background()

	require.NoError(t, c.Replace(ctx, sampleMeta()))

	books, err := c.ListBooks(ctx)
	require.NoError(t, err)
	require.Len(t, books, 2, "one catalog row per distinct title")

	// Ordered by title; Dune keeps its first metadata row.
	assert.Equal(t, "Dune", books[0].Title)
	assert.Equal(t, "http://img/dune-first", books[0].ImageURL)
	assert.Equal(t, 120, books[0].NumOfRating)
	assert.Equal(t, "Hyperion", books[1].Title)

	n, err := c.CountBooks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestReplaceIsWholesale(t *testing.T) {
	c := testCatalog(t)
	ctx := context.Background()

	require.NoError(t, c.Replace(ctx, sampleMeta()))
	require.NoError(t, c.Replace(ctx, &feature.MetadataTable{Rows: []feature.MetadataRow{
		{UserID: 9, Title: "Solaris", Author: "Stanislaw Lem", NumOfRating: 60},
	}}))

	books, err := c.ListBooks(ctx)
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "Solaris", books[0].Title)

	_, err = c.GetBook(ctx, "Dune")
	assert.ErrorIs(t, err, ErrBookNotFound)
}

func TestGetBook(t *testing.T) {
	c := testCatalog(t)
	ctx := context.Background()

	require.NoError(t, c.Replace(ctx, sampleMeta()))

	book, err := c.GetBook(ctx, "Hyperion")
	require.NoError(t, err)
	assert.Equal(t, "Dan Simmons", book.Author)
	assert.Equal(t, 75, book.NumOfRating)

	_, err = c.GetBook(ctx, "Neuromancer")
	assert.ErrorIs(t, err, ErrBookNotFound)
}

func TestPing(t *testing.T) {
	c := testCatalog(t)
	assert.NoError(t, c.Ping(context.Background()))
}
