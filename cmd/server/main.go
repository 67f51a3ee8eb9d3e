// ReadNext - Collaborative Filtering Book Recommendations
// Copyright 2026 Nico Vollmar
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nvollmar/readnext

// Package main is the entry point for the ReadNext server.
//
// ReadNext serves collaborative-filtering book recommendations derived
// from the Book-Crossing dataset. The server initializes components in
// the following order:
//
//  1. Configuration: layered load from defaults, config file and
//     environment variables (Koanf v2)
//  2. Artifact store: versioned persistence for trained models
//  3. Catalog: DuckDB-backed book metadata for the API
//  4. Cache: BadgerDB response cache (optional)
//  5. Engine: restores the latest persisted model when one exists
//  6. Pipeline: on-demand training runs triggered over the API
//  7. HTTP server: REST API plus Prometheus metrics
//
// # Configuration
//
// Settings layer with the highest priority winning:
//   - Environment variables (READNEXT_ prefix, e.g. READNEXT_SERVER_ADDR)
//   - Config file (config.yaml, or READNEXT_CONFIG_PATH)
//   - Built-in defaults
//
// # Signal Handling
//
// The server shuts down gracefully on SIGINT and SIGTERM: it stops
// accepting connections, waits for in-flight requests up to the
// configured shutdown timeout, then closes the cache and catalog.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/nvollmar/readnext/internal/api"
	"github.com/nvollmar/readnext/internal/artifact"
	"github.com/nvollmar/readnext/internal/cache"
	"github.com/nvollmar/readnext/internal/config"
	"github.com/nvollmar/readnext/internal/database"
	"github.com/nvollmar/readnext/internal/dataset"
	"github.com/nvollmar/readnext/internal/logging"
	"github.com/nvollmar/readnext/internal/pipeline"
	"github.com/nvollmar/readnext/internal/recommend"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "readnext: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logger := logging.Logger()
	logger.Info().Str("addr", cfg.Server.Addr).Msg("Starting ReadNext server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := artifact.NewStore(cfg.Artifacts.Dir)
	if err != nil {
		return fmt.Errorf("initialize artifact store: %w", err)
	}

	catalog, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("initialize catalog: %w", err)
	}
	defer func() {
		if cerr := catalog.Close(); cerr != nil {
			logger.Warn().Err(cerr).Msg("Catalog close failed")
		}
	}()

	var respCache *cache.Cache
	var invalidator pipeline.Invalidator
	if cfg.Cache.Enabled {
		respCache, err = cache.Open(cfg.Cache, logger)
		if err != nil {
			return fmt.Errorf("initialize cache: %w", err)
		}
		defer func() {
			if cerr := respCache.Close(); cerr != nil {
				logger.Warn().Err(cerr).Msg("Cache close failed")
			}
		}()
		invalidator = respCache
	}

	engine := recommend.NewEngine(cfg.Model, store, logger)
	if err := engine.Load(ctx); err != nil {
		return fmt.Errorf("restore persisted model: %w", err)
	}

	fetcher := dataset.NewFetcher(cfg.Dataset, logger)
	trainer := pipeline.New(*cfg, fetcher, store, catalog, engine, invalidator, logger)

	server := api.NewServer(*cfg, engine, catalog, respCache, trainer, logger)
	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Server.Addr).Msg("HTTP server listening")
		if serveErr := httpServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- serveErr
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("Shutdown signal received")
	case serveErr := <-errCh:
		return fmt.Errorf("http server: %w", serveErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	logger.Info().Msg("Server stopped")
	return nil
}
