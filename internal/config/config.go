// ReadNext - Collaborative Filtering Book Recommendations
// Copyright 2026 Nico Vollmar
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nvollmar/readnext

// Package config provides layered configuration for ReadNext using koanf.
//
// Configuration is resolved in three layers, later layers overriding
// earlier ones:
//
//  1. Struct defaults (defaultConfig)
//  2. YAML config file (config.yaml, or READNEXT_CONFIG_PATH)
//  3. Environment variables (READNEXT_SECTION_KEY, e.g. READNEXT_MODEL_ALGORITHM)
//
// The resolved Config is an immutable value handed to each component's
// constructor; nothing in the application reads configuration ambiently.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the ReadNext server.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	Dataset   DatasetConfig   `koanf:"dataset"`
	Artifacts ArtifactsConfig `koanf:"artifacts"`
	Database  DatabaseConfig  `koanf:"database"`
	Cache     CacheConfig     `koanf:"cache"`
	Model     ModelConfig     `koanf:"model"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// ReadTimeout bounds request read time.
	ReadTimeout time.Duration `koanf:"read_timeout"`

	// WriteTimeout bounds response write time.
	WriteTimeout time.Duration `koanf:"write_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// CORSOrigins lists allowed CORS origins.
	CORSOrigins []string `koanf:"cors_origins"`

	// RateLimit is the per-client request limit per minute. 0 disables.
	RateLimit int `koanf:"rate_limit"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	// Level is the minimum log level (trace..fatal).
	Level string `koanf:"level"`

	// Format is json or console.
	Format string `koanf:"format"`

	// Caller includes file and line of the log call site.
	Caller bool `koanf:"caller"`
}

// DatasetConfig configures raw dataset ingestion.
type DatasetConfig struct {
	// URL is the dataset archive download location.
	URL string `koanf:"url"`

	// RawDir is where the downloaded archive is kept.
	RawDir string `koanf:"raw_dir"`

	// IngestedDir is where the archive is extracted.
	IngestedDir string `koanf:"ingested_dir"`

	// RatingsFile is the ratings CSV filename inside IngestedDir.
	RatingsFile string `koanf:"ratings_file"`

	// BooksFile is the books CSV filename inside IngestedDir.
	BooksFile string `koanf:"books_file"`

	// DownloadTimeout bounds the archive download.
	DownloadTimeout time.Duration `koanf:"download_timeout"`
}

// ArtifactsConfig configures persisted training artifacts.
type ArtifactsConfig struct {
	// Dir is the artifact store directory.
	Dir string `koanf:"dir"`

	// KeepVersions is how many versions to retain per artifact.
	KeepVersions int `koanf:"keep_versions"`
}

// DatabaseConfig configures the DuckDB book catalog.
type DatabaseConfig struct {
	// Path is the DuckDB database file. ":memory:" is accepted for tests.
	Path string `koanf:"path"`

	// MaxMemory is the DuckDB memory limit, e.g. "1GB".
	MaxMemory string `koanf:"max_memory"`

	// Threads is the DuckDB thread count. 0 uses runtime.NumCPU().
	Threads int `koanf:"threads"`
}

// CacheConfig configures the Badger recommendation cache.
type CacheConfig struct {
	// Enabled toggles response caching.
	Enabled bool `koanf:"enabled"`

	// Dir is the Badger data directory. Empty uses in-memory mode.
	Dir string `koanf:"dir"`

	// TTL is how long cached recommendations stay valid.
	TTL time.Duration `koanf:"ttl"`
}

// ModelConfig configures feature building and the neighbor index.
type ModelConfig struct {
	// Algorithm selects the neighbor search structure: auto, brute, balltree.
	// Results are identical across choices; only performance differs.
	Algorithm string `koanf:"algorithm"`

	// Name is the trained model artifact name.
	Name string `koanf:"name"`

	// MinUserRatings is the activity threshold: users with strictly more
	// ratings than this survive the filter.
	MinUserRatings int `koanf:"min_user_ratings"`

	// MinTitleRatings is the popularity threshold: titles with at least
	// this many surviving ratings are retained.
	MinTitleRatings int `koanf:"min_title_ratings"`

	// DefaultK is the neighbor count when a request omits k.
	DefaultK int `koanf:"default_k"`

	// MaxK caps the requested neighbor count.
	MaxK int `koanf:"max_k"`

	// PlaceholderPosterURL substitutes for titles with no resolvable cover.
	PlaceholderPosterURL string `koanf:"placeholder_poster_url"`

	// TrainTimeout bounds a full pipeline run.
	TrainTimeout time.Duration `koanf:"train_timeout"`
}

// defaultConfig returns a Config with all default values. These are
// applied first, then overridden by the config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimit:       120,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Dataset: DatasetConfig{
			URL:             "https://github.com/entbappy/Branching-tutorial/raw/master/data.zip",
			RawDir:          "data/raw",
			IngestedDir:     "data/ingested",
			RatingsFile:     "BX-Book-Ratings.csv",
			BooksFile:       "BX-Books.csv",
			DownloadTimeout: 10 * time.Minute,
		},
		Artifacts: ArtifactsConfig{
			Dir:          "data/artifacts",
			KeepVersions: 2,
		},
		Database: DatabaseConfig{
			Path:      "data/readnext.duckdb",
			MaxMemory: "1GB",
			Threads:   0,
		},
		Cache: CacheConfig{
			Enabled: true,
			Dir:     "data/cache",
			TTL:     time.Hour,
		},
		Model: ModelConfig{
			Algorithm:            "auto",
			Name:                 "knn",
			MinUserRatings:       200,
			MinTitleRatings:      50,
			DefaultK:             5,
			MaxK:                 20,
			PlaceholderPosterURL: "https://placehold.co/200x300?text=No+Cover",
			TrainTimeout:         30 * time.Minute,
		},
	}
}

// validAlgorithms lists the accepted neighbor search algorithm names.
var validAlgorithms = map[string]struct{}{
	"auto":     {},
	"brute":    {},
	"balltree": {},
}

// Validate checks the configuration for invalid or inconsistent values.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	if c.Dataset.URL == "" {
		return fmt.Errorf("dataset.url must not be empty")
	}
	if c.Dataset.RatingsFile == "" || c.Dataset.BooksFile == "" {
		return fmt.Errorf("dataset.ratings_file and dataset.books_file must not be empty")
	}
	if c.Artifacts.Dir == "" {
		return fmt.Errorf("artifacts.dir must not be empty")
	}
	if c.Artifacts.KeepVersions < 1 {
		return fmt.Errorf("artifacts.keep_versions must be >= 1, got %d", c.Artifacts.KeepVersions)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if _, ok := validAlgorithms[c.Model.Algorithm]; !ok {
		return fmt.Errorf("model.algorithm %q is not one of auto, brute, balltree", c.Model.Algorithm)
	}
	if c.Model.Name == "" {
		return fmt.Errorf("model.name must not be empty")
	}
	if c.Model.MinUserRatings < 0 {
		return fmt.Errorf("model.min_user_ratings must be >= 0, got %d", c.Model.MinUserRatings)
	}
	if c.Model.MinTitleRatings < 1 {
		return fmt.Errorf("model.min_title_ratings must be >= 1, got %d", c.Model.MinTitleRatings)
	}
	if c.Model.DefaultK < 1 {
		return fmt.Errorf("model.default_k must be >= 1, got %d", c.Model.DefaultK)
	}
	if c.Model.MaxK < c.Model.DefaultK {
		return fmt.Errorf("model.max_k (%d) must be >= model.default_k (%d)", c.Model.MaxK, c.Model.DefaultK)
	}
	if c.Cache.Enabled && c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive when cache is enabled")
	}
	return nil
}
