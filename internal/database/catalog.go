// ReadNext - Collaborative Filtering Book Recommendations
// Copyright 2026 Nico Vollmar
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nvollmar/readnext

// Package database provides the DuckDB-backed book catalog.
//
// Each training run replaces the catalog wholesale with the metadata
// table that survived filtering, so the catalog always mirrors exactly
// the titles the model can recommend. The replacement runs in a single
// transaction; readers never observe a half-written catalog.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"runtime"
	"time"

	// DuckDB driver registration.
	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/nvollmar/readnext/internal/config"
	"github.com/nvollmar/readnext/internal/feature"
	"github.com/nvollmar/readnext/internal/logging"
	"github.com/nvollmar/readnext/internal/models"
)

// ErrBookNotFound indicates the requested title is not in the catalog.
var ErrBookNotFound = errors.New("database: book not found")

const schemaSQL = `
CREATE TABLE IF NOT EXISTS books (
    title         VARCHAR NOT NULL,
    author        VARCHAR,
    year          VARCHAR,
    publisher     VARCHAR,
    image_url     VARCHAR,
    num_of_rating INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_books_title ON books(title);
`

// Catalog is the queryable book catalog behind the API.
type Catalog struct {
	conn *sql.DB
}

// Open opens (or creates) the catalog database and ensures its schema.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Catalog, error) {
	threads := cfg.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s",
		cfg.Path, threads, cfg.MaxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	conn.SetMaxOpenConns(threads)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(time.Hour)
	conn.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := conn.ExecContext(ctx, schemaSQL); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	logging.Info().Str("component", "database").Str("path", cfg.Path).Msg("Catalog database opened")
	return &Catalog{conn: conn}, nil
}

// Close closes the underlying connection pool.
func (c *Catalog) Close() error {
	return c.conn.Close()
}

// Ping verifies the connection is alive.
func (c *Catalog) Ping(ctx context.Context) error {
	return c.conn.PingContext(ctx)
}

// Replace swaps the catalog contents for the metadata of a new training
// run. One row per distinct title is kept, taken from the title's first
// metadata row, matching how covers are resolved at query time.
func (c *Catalog) Replace(ctx context.Context, meta *feature.MetadataTable) error {
	tx, err := c.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin catalog replace: %w", err)
	}
	defer func() { _ = tx.Rollback() }() //nolint:errcheck // rollback after commit is a no-op

	if _, err := tx.ExecContext(ctx, `DELETE FROM books`); err != nil {
		return fmt.Errorf("clear catalog: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO books (title, author, year, publisher, image_url, num_of_rating) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare catalog insert: %w", err)
	}
	defer closeQuietly(stmt)

	seen := make(map[string]struct{}, len(meta.Rows))
	inserted := 0
	for i := range meta.Rows {
		row := &meta.Rows[i]
		if _, dup := seen[row.Title]; dup {
			continue
		}
		seen[row.Title] = struct{}{}
		if _, err := stmt.ExecContext(ctx,
			row.Title, row.Author, row.Year, row.Publisher, row.ImageURL, row.NumOfRating); err != nil {
			return fmt.Errorf("insert catalog row %q: %w", row.Title, err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit catalog replace: %w", err)
	}

	logging.Info().Str("component", "database").Int("titles", inserted).Msg("Catalog replaced")
	return nil
}

// ListBooks returns every catalog entry ordered by title.
func (c *Catalog) ListBooks(ctx context.Context) ([]models.BookSummary, error) {
	rows, err := c.conn.QueryContext(ctx,
		`SELECT title, author, year, publisher, image_url, num_of_rating FROM books ORDER BY title`)
	if err != nil {
		return nil, fmt.Errorf("query books: %w", err)
	}
	defer closeQuietly(rows)

	var out []models.BookSummary
	for rows.Next() {
		var b models.BookSummary
		if err := rows.Scan(&b.Title, &b.Author, &b.Year, &b.Publisher, &b.ImageURL, &b.NumOfRating); err != nil {
			return nil, fmt.Errorf("scan book row: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate book rows: %w", err)
	}
	return out, nil
}

// GetBook returns the catalog entry for an exact title.
func (c *Catalog) GetBook(ctx context.Context, title string) (*models.BookSummary, error) {
	var b models.BookSummary
	err := c.conn.QueryRowContext(ctx,
		`SELECT title, author, year, publisher, image_url, num_of_rating FROM books WHERE title = ?`,
		title,
	).Scan(&b.Title, &b.Author, &b.Year, &b.Publisher, &b.ImageURL, &b.NumOfRating)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrBookNotFound, title)
	}
	if err != nil {
		return nil, fmt.Errorf("query book: %w", err)
	}
	return &b, nil
}

// CountBooks returns the number of catalog entries.
func (c *Catalog) CountBooks(ctx context.Context) (int, error) {
	var n int
	if err := c.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM books`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count books: %w", err)
	}
	return n, nil
}

// closeQuietly closes a resource where the error is not actionable.
func closeQuietly(closer io.Closer) {
	_ = closer.Close() //nolint:errcheck // close error after read is not actionable
}
