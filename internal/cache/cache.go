// ReadNext - Collaborative Filtering Book Recommendations
// Copyright 2026 Nico Vollmar
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nvollmar/readnext

// Package cache provides a BadgerDB-backed cache for recommendation
// responses. Entries carry a TTL and the whole cache is dropped when a
// new model is installed, since every cached answer is tied to the
// model that produced it.
package cache

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/nvollmar/readnext/internal/config"
	"github.com/nvollmar/readnext/internal/models"
)

const recKeyPrefix = "rec:"

// Cache stores recommendation sets keyed by query title and k.
type Cache struct {
	db     *badger.DB
	ttl    time.Duration
	logger zerolog.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

// Open creates the cache. An empty directory selects Badger's
// in-memory mode, which tests and ephemeral deployments use.
func Open(cfg config.CacheConfig, logger zerolog.Logger) (*Cache, error) {
	var opts badger.Options
	if cfg.Dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Dir)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}

	return &Cache{
		db:     db,
		ttl:    cfg.TTL,
		logger: logger.With().Str("component", "cache").Logger(),
	}, nil
}

// Close releases the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// key builds the storage key for a (title, k) query. The model version
// is not part of the key because installs drop the cache wholesale.
func key(title string, k int) []byte {
	return []byte(fmt.Sprintf("%s%d:%s", recKeyPrefix, k, title))
}

// Get returns the cached recommendation set for a query, or false on a
// miss. Decoding failures count as misses; the entry is left for the
// TTL to reap.
func (c *Cache) Get(title string, k int) (*models.RecommendationSet, bool) {
	var set models.RecommendationSet

	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(title, k))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &set)
		})
	})
	if err != nil {
		c.misses.Add(1)
		return nil, false
	}

	c.hits.Add(1)
	return &set, true
}

// Set stores a recommendation set. Failures are logged and swallowed;
// caching is best-effort and never fails a request.
func (c *Cache) Set(title string, k int, set *models.RecommendationSet) {
	data, err := json.Marshal(set)
	if err != nil {
		c.logger.Warn().Err(err).Str("title", title).Msg("Failed to encode cache entry")
		return
	}

	err = c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(key(title, k), data)
		if c.ttl > 0 {
			entry = entry.WithTTL(c.ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		c.logger.Warn().Err(err).Str("title", title).Msg("Failed to write cache entry")
	}
}

// InvalidateAll drops every cached entry. Called when a new model is
// installed.
func (c *Cache) InvalidateAll() error {
	if err := c.db.DropAll(); err != nil {
		return fmt.Errorf("drop cache entries: %w", err)
	}
	c.logger.Info().Msg("Recommendation cache invalidated")
	return nil
}

// Stats reports hit and miss counts since startup.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
