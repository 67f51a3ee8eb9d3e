// ReadNext - Collaborative Filtering Book Recommendations
// Copyright 2026 Nico Vollmar
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nvollmar/readnext

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := defaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "auto", cfg.Model.Algorithm)
	assert.Equal(t, 200, cfg.Model.MinUserRatings)
	assert.Equal(t, 50, cfg.Model.MinTitleRatings)
	assert.Equal(t, 5, cfg.Model.DefaultK)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty addr", func(c *Config) { c.Server.Addr = "" }},
		{"empty dataset url", func(c *Config) { c.Dataset.URL = "" }},
		{"empty ratings file", func(c *Config) { c.Dataset.RatingsFile = "" }},
		{"empty artifacts dir", func(c *Config) { c.Artifacts.Dir = "" }},
		{"zero keep versions", func(c *Config) { c.Artifacts.KeepVersions = 0 }},
		{"empty database path", func(c *Config) { c.Database.Path = "" }},
		{"unknown algorithm", func(c *Config) { c.Model.Algorithm = "kdtree" }},
		{"empty model name", func(c *Config) { c.Model.Name = "" }},
		{"negative user threshold", func(c *Config) { c.Model.MinUserRatings = -1 }},
		{"zero title threshold", func(c *Config) { c.Model.MinTitleRatings = 0 }},
		{"zero default k", func(c *Config) { c.Model.DefaultK = 0 }},
		{"max k below default k", func(c *Config) { c.Model.MaxK = 1; c.Model.DefaultK = 5 }},
		{"cache ttl zero while enabled", func(c *Config) { c.Cache.Enabled = true; c.Cache.TTL = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestEnvTransform(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"READNEXT_SERVER_ADDR", "server.addr"},
		{"READNEXT_MODEL_ALGORITHM", "model.algorithm"},
		{"READNEXT_MODEL_MIN_USER_RATINGS", "model.min_user_ratings"},
		{"READNEXT_DATASET_RAW_DIR", "dataset.raw_dir"},
		{"READNEXT_LOGGING_LEVEL", "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, envTransform(tt.in))
		})
	}
}

func TestLoadAppliesFileAndEnvLayers(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	yamlBody := `
server:
  addr: ":9090"
model:
  algorithm: brute
  default_k: 7
  max_k: 25
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(yamlBody), 0o600))

	t.Setenv(ConfigPathEnvVar, cfgPath)
	t.Setenv("READNEXT_LOGGING_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	// File layer overrides defaults.
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "brute", cfg.Model.Algorithm)
	assert.Equal(t, 7, cfg.Model.DefaultK)

	// Env layer overrides both.
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Untouched values keep defaults.
	assert.Equal(t, 200, cfg.Model.MinUserRatings)
}

func TestLoadRejectsInvalidFileValues(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("model:\n  algorithm: annoy\n"), 0o600))

	t.Setenv(ConfigPathEnvVar, cfgPath)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "algorithm")
}
