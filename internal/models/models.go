// ReadNext - Collaborative Filtering Book Recommendations
// Copyright 2026 Nico Vollmar
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nvollmar/readnext

// Package models defines the shared API and domain types for ReadNext.
package models

import (
	"time"
)

// APIResponse is the standardized response wrapper used by all HTTP
// endpoints. Status is "success" or "error"; Error is populated only for
// error responses.
//
// Example successful response:
//
//	{
//	  "status": "success",
//	  "data": {"recommendations": [...]},
//	  "metadata": {"timestamp": "2026-08-28T12:00:00Z", "query_time_ms": 4}
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata carries response timing information for observability.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
	Cached      bool      `json:"cached,omitempty"`
}

// APIError describes a failed request.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// BookSummary is the per-title catalog entry exposed by the books endpoint.
type BookSummary struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	Year        string `json:"year"`
	Publisher   string `json:"publisher"`
	ImageURL    string `json:"image_url"`
	NumOfRating int    `json:"num_of_rating"`
}

// Recommendation is a single recommended title with its cover URL.
type Recommendation struct {
	Title     string  `json:"title"`
	PosterURL string  `json:"poster_url"`
	Distance  float64 `json:"distance"`
}

// RecommendationSet is the response payload for a recommendation query.
type RecommendationSet struct {
	QueryTitle      string           `json:"query_title"`
	Recommendations []Recommendation `json:"recommendations"`
	ModelVersion    int              `json:"model_version"`
	TrainedAt       time.Time        `json:"trained_at"`
}
