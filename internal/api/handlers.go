// ReadNext - Collaborative Filtering Book Recommendations
// Copyright 2026 Nico Vollmar
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nvollmar/readnext

// Package api provides the HTTP handlers and router for the
// recommendation service.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/nvollmar/readnext/internal/cache"
	"github.com/nvollmar/readnext/internal/config"
	"github.com/nvollmar/readnext/internal/metrics"
	"github.com/nvollmar/readnext/internal/models"
	"github.com/nvollmar/readnext/internal/pipeline"
	"github.com/nvollmar/readnext/internal/recommend"
	"github.com/nvollmar/readnext/internal/validation"
)

// Catalog is the slice of the database layer the handlers need.
type Catalog interface {
	ListBooks(ctx context.Context) ([]models.BookSummary, error)
	Ping(ctx context.Context) error
}

// Trainer is the slice of the pipeline the handlers need.
type Trainer interface {
	Trigger() (string, error)
	Status() pipeline.Status
}

// Server holds the handler dependencies. catalog and cache may be nil
// when the deployment runs without them.
type Server struct {
	cfg     config.Config
	engine  *recommend.Engine
	catalog Catalog
	cache   *cache.Cache
	trainer Trainer
	logger  zerolog.Logger
}

// NewServer creates the API server.
func NewServer(
	cfg config.Config,
	engine *recommend.Engine,
	catalog Catalog,
	respCache *cache.Cache,
	trainer Trainer,
	logger zerolog.Logger,
) *Server {
	return &Server{
		cfg:     cfg,
		engine:  engine,
		catalog: catalog,
		cache:   respCache,
		trainer: trainer,
		logger:  logger.With().Str("component", "api").Logger(),
	}
}

// recommendParams are the validated query parameters of the
// recommendations endpoint. K zero means "use the configured default".
type recommendParams struct {
	Title string `validate:"required,max=512"`
	K     int    `validate:"min=0"`
}

// handleRecommendations serves GET /api/v1/recommendations?title=&k=.
func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	params := recommendParams{Title: r.URL.Query().Get("title")}
	if raw := r.URL.Query().Get("k"); raw != "" {
		k, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "k must be an integer", nil)
			return
		}
		params.K = k
	}
	if verr := validation.ValidateStruct(&params); verr != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", verr.Error(), nil)
		return
	}

	if s.cache != nil {
		if set, ok := s.cache.Get(params.Title, params.K); ok {
			metrics.CacheHits.Inc()
			respondData(w, http.StatusOK, set, started, true)
			return
		}
		metrics.CacheMisses.Inc()
	}

	set, err := s.engine.Recommend(r.Context(), params.Title, params.K)
	if err != nil {
		s.respondRecommendError(w, params.Title, err)
		return
	}

	if s.cache != nil {
		s.cache.Set(params.Title, params.K, set)
	}

	metrics.RecommendationsServed.Inc()
	respondData(w, http.StatusOK, set, started, false)
}

// respondRecommendError maps engine errors onto HTTP status codes.
func (s *Server) respondRecommendError(w http.ResponseWriter, title string, err error) {
	switch {
	case errors.Is(err, recommend.ErrTitleNotFound):
		metrics.RecommendationErrors.WithLabelValues("not_found").Inc()
		respondError(w, http.StatusNotFound, "TITLE_NOT_FOUND",
			"title is not in the trained model", nil)
	case errors.Is(err, recommend.ErrInvalidK):
		metrics.RecommendationErrors.WithLabelValues("invalid_k").Inc()
		respondError(w, http.StatusUnprocessableEntity, "INVALID_K",
			"requested neighbor count cannot be served by the current model", nil)
	case errors.Is(err, recommend.ErrNotReady):
		metrics.RecommendationErrors.WithLabelValues("not_ready").Inc()
		respondError(w, http.StatusServiceUnavailable, "MODEL_NOT_READY",
			"no trained model is available yet", nil)
	default:
		metrics.RecommendationErrors.WithLabelValues("internal").Inc()
		s.logger.Error().Err(err).Str("title", sanitizeLogValue(title)).Msg("Recommendation failed")
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"failed to compute recommendations", err)
	}
}

// handleListBooks serves GET /api/v1/books.
func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	if s.catalog == nil {
		// Fall back to the model's title list when no catalog is wired.
		titles, err := s.engine.Titles()
		if errors.Is(err, recommend.ErrNotReady) {
			respondError(w, http.StatusServiceUnavailable, "MODEL_NOT_READY",
				"no trained model is available yet", nil)
			return
		}
		if err != nil {
			respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"failed to list books", err)
			return
		}
		books := make([]models.BookSummary, len(titles))
		for i, t := range titles {
			books[i] = models.BookSummary{Title: t}
		}
		respondData(w, http.StatusOK, books, started, false)
		return
	}

	books, err := s.catalog.ListBooks(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"failed to list books", err)
		return
	}
	respondData(w, http.StatusOK, books, started, false)
}

// handleTrain serves POST /api/v1/train.
func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	runID, err := s.trainer.Trigger()
	if errors.Is(err, pipeline.ErrAlreadyRunning) {
		respondError(w, http.StatusConflict, "TRAINING_IN_PROGRESS",
			"a training run is already in progress", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"failed to start training", err)
		return
	}

	s.logger.Info().Str("run_id", runID).Msg("Training run triggered")
	respondData(w, http.StatusAccepted, map[string]string{"run_id": runID}, started, false)
}

// handleTrainStatus serves GET /api/v1/train/status.
func (s *Server) handleTrainStatus(w http.ResponseWriter, r *http.Request) {
	respondData(w, http.StatusOK, s.trainer.Status(), time.Now(), false)
}

// healthStatus is the healthz payload.
type healthStatus struct {
	Status       string          `json:"status"`
	ModelReady   bool            `json:"model_ready"`
	Model        *recommend.Info `json:"model,omitempty"`
	CatalogAlive *bool           `json:"catalog_alive,omitempty"`
	Training     pipeline.Status `json:"training"`
}

// handleHealthz serves GET /api/v1/healthz. The endpoint reports
// degraded rather than failing when no model is installed yet; an
// untrained service is alive, just not serving recommendations.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	health := healthStatus{
		Status:     "ok",
		ModelReady: s.engine.Ready(),
		Training:   s.trainer.Status(),
	}
	if info, ok := s.engine.ModelInfo(); ok {
		health.Model = &info
	} else {
		health.Status = "degraded"
	}
	if s.catalog != nil {
		alive := s.catalog.Ping(r.Context()) == nil
		health.CatalogAlive = &alive
		if !alive {
			health.Status = "degraded"
		}
	}

	respondData(w, http.StatusOK, health, started, false)
}
