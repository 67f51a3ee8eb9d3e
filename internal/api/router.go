// ReadNext - Collaborative Filtering Book Recommendations
// Copyright 2026 Nico Vollmar
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nvollmar/readnext

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nvollmar/readnext/internal/metrics"
)

// Router assembles the HTTP routes and middleware stack.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.Server.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	if s.cfg.Server.RateLimit > 0 {
		r.Use(httprate.LimitByIP(s.cfg.Server.RateLimit, time.Minute))
	}
	r.Use(metricsMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/books", s.handleListBooks)
		r.Get("/recommendations", s.handleRecommendations)
		r.Post("/train", s.handleTrain)
		r.Get("/train/status", s.handleTrainStatus)
		r.Get("/healthz", s.handleHealthz)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

// metricsMiddleware records request counts and latency per route.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		endpoint := r.URL.Path
		if routePattern := chi.RouteContext(r.Context()).RoutePattern(); routePattern != "" {
			endpoint = routePattern
		}
		metrics.RecordAPIRequest(r.Method, endpoint, ww.Status(), time.Since(started))
	})
}
