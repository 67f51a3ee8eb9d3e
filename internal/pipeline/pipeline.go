// ReadNext - Collaborative Filtering Book Recommendations
// Copyright 2026 Nico Vollmar
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nvollmar/readnext

// Package pipeline orchestrates the training runs that turn the raw
// dataset into a servable model.
//
// A run executes a fixed stage sequence: ingest, validate, transform,
// train. The first failing stage aborts the run and records the error;
// later stages never execute against suspect data. At most one run is
// in flight at a time, and each run rebuilds the model from scratch
// rather than updating the previous one, so a completed run always
// reflects exactly the current dataset.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nvollmar/readnext/internal/artifact"
	"github.com/nvollmar/readnext/internal/config"
	"github.com/nvollmar/readnext/internal/dataset"
	"github.com/nvollmar/readnext/internal/feature"
	"github.com/nvollmar/readnext/internal/knn"
	"github.com/nvollmar/readnext/internal/metrics"
	"github.com/nvollmar/readnext/internal/recommend"
	"github.com/nvollmar/readnext/internal/schema"
)

// Stage identifies where in the run the pipeline currently is.
type Stage string

const (
	StageIdle         Stage = "idle"
	StageIngesting    Stage = "ingesting"
	StageValidating   Stage = "validating"
	StageTransforming Stage = "transforming"
	StageTraining     Stage = "training"
	StageDone         Stage = "done"
	StageFailed       Stage = "failed"
)

var (
	// ErrAlreadyRunning indicates a training run is already in flight.
	ErrAlreadyRunning = errors.New("pipeline: training already running")

	// ErrSchemaInvalid indicates a raw table failed schema validation.
	ErrSchemaInvalid = errors.New("pipeline: raw table failed schema validation")
)

// Status is a point-in-time snapshot of the pipeline.
type Status struct {
	RunID        string    `json:"run_id,omitempty"`
	Stage        Stage     `json:"stage"`
	StartedAt    time.Time `json:"started_at,omitempty"`
	FinishedAt   time.Time `json:"finished_at,omitempty"`
	Error        string    `json:"error,omitempty"`
	ModelVersion int       `json:"model_version,omitempty"`
}

// Catalog is the slice of the database layer the pipeline needs.
type Catalog interface {
	Replace(ctx context.Context, meta *feature.MetadataTable) error
}

// Invalidator drops cached responses after a model install.
type Invalidator interface {
	InvalidateAll() error
}

// Pipeline runs the training stages and tracks their progress.
type Pipeline struct {
	cfg     config.Config
	fetcher *dataset.Fetcher
	builder *feature.Builder
	store   *artifact.Store
	catalog Catalog
	engine  *recommend.Engine
	cache   Invalidator
	logger  zerolog.Logger

	mu      sync.Mutex
	status  Status
	running bool
}

// New wires a pipeline. catalog and cache may be nil when the deployment
// runs without them.
func New(
	cfg config.Config,
	fetcher *dataset.Fetcher,
	store *artifact.Store,
	catalog Catalog,
	engine *recommend.Engine,
	cache Invalidator,
	logger zerolog.Logger,
) *Pipeline {
	return &Pipeline{
		cfg: cfg,
		fetcher: fetcher,
		builder: feature.NewBuilder(feature.Thresholds{
			MinUserRatings:  cfg.Model.MinUserRatings,
			MinTitleRatings: cfg.Model.MinTitleRatings,
		}, logger),
		store:   store,
		catalog: catalog,
		engine:  engine,
		cache:   cache,
		logger:  logger.With().Str("component", "pipeline").Logger(),
		status:  Status{Stage: StageIdle},
	}
}

// Status returns the current pipeline snapshot.
func (p *Pipeline) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Trigger starts a training run in the background and returns its run
// ID. ErrAlreadyRunning is returned while a run is in flight; the
// caller polls Status for progress.
func (p *Pipeline) Trigger() (string, error) {
	p.mu.Lock()
	if p.running {
		runID := p.status.RunID
		p.mu.Unlock()
		return runID, ErrAlreadyRunning
	}

	runID := uuid.NewString()
	p.running = true
	p.status = Status{
		RunID:     runID,
		Stage:     StageIngesting,
		StartedAt: time.Now(),
	}
	p.mu.Unlock()

	go p.run(runID)
	return runID, nil
}

// Run executes a training run synchronously; the HTTP path goes
// through Trigger.
func (p *Pipeline) Run(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return ErrAlreadyRunning
	}
	runID := uuid.NewString()
	p.running = true
	p.status = Status{RunID: runID, Stage: StageIngesting, StartedAt: time.Now()}
	p.mu.Unlock()

	return p.execute(ctx, runID)
}

func (p *Pipeline) run(runID string) {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.Model.TrainTimeout)
	defer cancel()
	_ = p.execute(ctx, runID) //nolint:errcheck // failures are recorded in the status and logged
}

func (p *Pipeline) execute(ctx context.Context, runID string) error {
	logger := p.logger.With().Str("run_id", runID).Logger()
	started := time.Now()

	err := p.stages(ctx, runID, logger)

	p.mu.Lock()
	p.running = false
	p.status.FinishedAt = time.Now()
	if err != nil {
		p.status.Stage = StageFailed
		p.status.Error = err.Error()
	} else {
		p.status.Stage = StageDone
	}
	p.mu.Unlock()

	if err != nil {
		metrics.TrainingRuns.WithLabelValues("failed").Inc()
		logger.Error().Err(err).Dur("elapsed", time.Since(started)).Msg("Training run failed")
		return err
	}

	metrics.TrainingRuns.WithLabelValues("completed").Inc()
	metrics.TrainingDuration.Observe(time.Since(started).Seconds())
	logger.Info().Dur("elapsed", time.Since(started)).Msg("Training run completed")
	return nil
}

//nolint:gocyclo // the stage sequence is linear, just long
func (p *Pipeline) stages(ctx context.Context, runID string, logger zerolog.Logger) error {
	// Stage 1: ingest.
	p.setStage(StageIngesting)
	stageStart := time.Now()
	if _, err := p.fetcher.Fetch(ctx); err != nil {
		return fmt.Errorf("ingest dataset: %w", err)
	}
	metrics.RecordStage(string(StageIngesting), time.Since(stageStart))

	// Stage 2: validate raw tables.
	p.setStage(StageValidating)
	stageStart = time.Now()

	ratingsTable, err := dataset.ReadTable(p.fetcher.RatingsPath(), logger)
	if err != nil {
		return fmt.Errorf("read ratings table: %w", err)
	}
	booksTable, err := dataset.ReadTable(p.fetcher.BooksPath(), logger)
	if err != nil {
		return fmt.Errorf("read books table: %w", err)
	}

	if !schema.Validate(ratingsTable, schema.Ratings, logger) {
		return fmt.Errorf("%w: %s", ErrSchemaInvalid, ratingsTable.Name)
	}
	if !schema.Validate(booksTable, schema.Books, logger) {
		return fmt.Errorf("%w: %s", ErrSchemaInvalid, booksTable.Name)
	}
	metrics.RecordStage(string(StageValidating), time.Since(stageStart))

	// Stage 3: transform into the ratings matrix.
	p.setStage(StageTransforming)
	stageStart = time.Now()

	ratings := dataset.Ratings(ratingsTable)
	books := dataset.Books(booksTable)
	matrix, meta, err := p.builder.Build(ratings, books)
	if err != nil {
		return fmt.Errorf("build feature matrix: %w", err)
	}
	metrics.RecordStage(string(StageTransforming), time.Since(stageStart))

	// Stage 4: fit, persist and install the model.
	p.setStage(StageTraining)
	stageStart = time.Now()

	index, err := knn.Fit(matrix.Values, knn.Algorithm(p.cfg.Model.Algorithm))
	if err != nil {
		return fmt.Errorf("fit neighbor index: %w", err)
	}

	trainedAt := time.Now()
	model := artifact.Model{
		Titles:   matrix.Titles,
		UserIDs:  matrix.UserIDs,
		Index:    index,
		Metadata: meta,
	}
	version, err := p.store.Save(ctx, p.cfg.Model.Name, model, artifact.Metadata{
		TrainedAt:          trainedAt,
		TitleCount:         matrix.Rows(),
		UserCount:          matrix.Cols(),
		RatingCount:        len(meta.Rows),
		Algorithm:          string(index.Algorithm),
		TrainingDurationMS: time.Since(stageStart).Milliseconds(),
	})
	if err != nil {
		return fmt.Errorf("persist model artifact: %w", err)
	}

	if p.catalog != nil {
		if err := p.catalog.Replace(ctx, meta); err != nil {
			return fmt.Errorf("replace book catalog: %w", err)
		}
	}

	p.engine.Install(&model, version, trainedAt)

	if p.cache != nil {
		if err := p.cache.InvalidateAll(); err != nil {
			logger.Warn().Err(err).Msg("Cache invalidation failed after model install")
		}
	}

	if err := p.store.Prune(ctx, p.cfg.Model.Name, p.cfg.Artifacts.KeepVersions); err != nil {
		logger.Warn().Err(err).Msg("Artifact pruning failed")
	}

	metrics.RecordStage(string(StageTraining), time.Since(stageStart))
	metrics.RecordModel(version, matrix.Rows(), matrix.Cols(), trainedAt)

	p.mu.Lock()
	p.status.ModelVersion = version
	p.mu.Unlock()

	logger.Info().
		Int("version", version).
		Int("titles", matrix.Rows()).
		Int("users", matrix.Cols()).
		Str("algorithm", string(index.Algorithm)).
		Msg("Model trained and installed")
	return nil
}

func (p *Pipeline) setStage(stage Stage) {
	p.mu.Lock()
	p.status.Stage = stage
	p.mu.Unlock()
}
