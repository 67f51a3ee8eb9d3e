// ReadNext - Collaborative Filtering Book Recommendations
// Copyright 2026 Nico Vollmar
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nvollmar/readnext

// Package recommend serves book recommendations from a trained model.
//
// The engine holds the currently installed model behind a read-write
// lock. Queries take the read lock; a retrain installs its result in
// one swap under the write lock, so in-flight queries always see a
// consistent model and never a mid-swap mixture of two.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nvollmar/readnext/internal/artifact"
	"github.com/nvollmar/readnext/internal/config"
	"github.com/nvollmar/readnext/internal/models"
)

var (
	// ErrNotReady indicates no model has been trained or loaded yet.
	ErrNotReady = errors.New("recommend: no model available")

	// ErrTitleNotFound indicates the query title is not in the model.
	ErrTitleNotFound = errors.New("recommend: title not found")

	// ErrInvalidK indicates the requested neighbor count cannot be served.
	ErrInvalidK = errors.New("recommend: k out of range")

	// ErrPosterNotFound indicates a recommended title has no usable cover
	// URL. Never surfaced to callers; the placeholder URL is substituted.
	ErrPosterNotFound = errors.New("recommend: poster not found")
)

// Engine answers recommendation queries against the installed model.
type Engine struct {
	cfg    config.ModelConfig
	store  *artifact.Store
	logger zerolog.Logger

	mu        sync.RWMutex
	model     *artifact.Model
	titleIdx  map[string]int
	version   int
	trainedAt time.Time
}

// NewEngine creates an engine without a model. Call Load to restore the
// latest persisted artifact, or Install after a training run.
func NewEngine(cfg config.ModelConfig, store *artifact.Store, logger zerolog.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		store:  store,
		logger: logger.With().Str("component", "recommend").Logger(),
	}
}

// Load restores the latest persisted model from the artifact store.
// A missing artifact is not an error at startup; the engine stays in
// the not-ready state until the first training run.
func (e *Engine) Load(ctx context.Context) error {
	var model artifact.Model
	meta, err := e.store.Load(ctx, e.cfg.Name, 0, &model)
	if errors.Is(err, artifact.ErrNotFound) {
		e.logger.Info().Msg("No persisted model found, engine starts untrained")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load model artifact: %w", err)
	}

	e.Install(&model, meta.Version, meta.TrainedAt)
	e.logger.Info().
		Int("version", meta.Version).
		Int("titles", len(model.Titles)).
		Msg("Persisted model restored")
	return nil
}

// Install swaps in a newly trained model.
func (e *Engine) Install(model *artifact.Model, version int, trainedAt time.Time) {
	titleIdx := make(map[string]int, len(model.Titles))
	for i, t := range model.Titles {
		titleIdx[t] = i
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.model = model
	e.titleIdx = titleIdx
	e.version = version
	e.trainedAt = trainedAt
}

// Ready reports whether a model is installed.
func (e *Engine) Ready() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.model != nil
}

// Info describes the currently installed model.
type Info struct {
	Version    int       `json:"version"`
	TrainedAt  time.Time `json:"trained_at"`
	TitleCount int       `json:"title_count"`
	UserCount  int       `json:"user_count"`
	Algorithm  string    `json:"algorithm"`
}

// ModelInfo returns metadata about the installed model.
func (e *Engine) ModelInfo() (Info, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.model == nil {
		return Info{}, false
	}
	return Info{
		Version:    e.version,
		TrainedAt:  e.trainedAt,
		TitleCount: len(e.model.Titles),
		UserCount:  len(e.model.UserIDs),
		Algorithm:  string(e.model.Index.Algorithm),
	}, true
}

// Titles returns a copy of the model's canonical title list.
func (e *Engine) Titles() ([]string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.model == nil {
		return nil, ErrNotReady
	}
	out := make([]string, len(e.model.Titles))
	copy(out, e.model.Titles)
	return out, nil
}

// Recommend returns the k titles nearest to the query title. k <= 0
// falls back to the configured default. The query title itself never
// appears in the result: the index is asked for k+1 neighbors and the
// self match is dropped.
func (e *Engine) Recommend(ctx context.Context, title string, k int) (*models.RecommendationSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.model == nil {
		return nil, ErrNotReady
	}

	if k <= 0 {
		k = e.cfg.DefaultK
	}
	if k > e.cfg.MaxK {
		return nil, fmt.Errorf("%w: %d exceeds maximum %d", ErrInvalidK, k, e.cfg.MaxK)
	}
	if k+1 > len(e.model.Titles) {
		return nil, fmt.Errorf("%w: %d neighbors requested of %d titles", ErrInvalidK, k, len(e.model.Titles))
	}

	row, ok := e.titleIdx[title]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTitleNotFound, title)
	}

	neighbors, err := e.model.Index.Query(row, k+1)
	if err != nil {
		return nil, fmt.Errorf("query neighbor index: %w", err)
	}

	recs := make([]models.Recommendation, 0, k)
	for _, n := range neighbors {
		if n.Index == row {
			continue
		}
		if len(recs) == k {
			break
		}
		neighborTitle := e.model.Titles[n.Index]
		recs = append(recs, models.Recommendation{
			Title:     neighborTitle,
			PosterURL: e.posterFor(neighborTitle),
			Distance:  n.Distance,
		})
	}

	return &models.RecommendationSet{
		QueryTitle:      title,
		Recommendations: recs,
		ModelVersion:    e.version,
		TrainedAt:       e.trainedAt,
	}, nil
}

// posterFor resolves a title's cover URL from the metadata table. A
// title with no usable cover gets the configured placeholder; the miss
// is logged but never fails the recommendation.
func (e *Engine) posterFor(title string) string {
	url, err := e.lookupPoster(title)
	if err != nil {
		e.logger.Warn().Err(err).Str("title", title).Msg("Using placeholder cover")
		return e.cfg.PlaceholderPosterURL
	}
	return url
}

// lookupPoster finds the first cover URL recorded for a title.
func (e *Engine) lookupPoster(title string) (string, error) {
	url, ok := e.model.Metadata.PosterURL(title)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrPosterNotFound, title)
	}
	return url, nil
}
