// ReadNext - Collaborative Filtering Book Recommendations
// Copyright 2026 Nico Vollmar
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nvollmar/readnext

package dataset

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/nvollmar/readnext/internal/config"
)

// Fetcher downloads and extracts the raw dataset archive. The download is
// idempotent: an archive already present on disk is never re-fetched, so
// re-running the pipeline does not hit the network.
type Fetcher struct {
	cfg    config.DatasetConfig
	client *http.Client
	logger zerolog.Logger
}

// NewFetcher creates a dataset fetcher.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewFetcher(cfg config.DatasetConfig, logger zerolog.Logger) *Fetcher {
	return &Fetcher{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.DownloadTimeout},
		logger: logger.With().Str("component", "dataset").Logger(),
	}
}

// Fetch ensures the dataset archive exists locally and is extracted.
// Returns the path of the archive. There is no retry: a failed download
// surfaces immediately and a rerun of the pipeline retries naturally.
func (f *Fetcher) Fetch(ctx context.Context) (string, error) {
	archivePath, err := f.download(ctx)
	if err != nil {
		return "", err
	}

	if err := f.extract(archivePath); err != nil {
		return "", err
	}

	return archivePath, nil
}

// RatingsPath returns the extracted ratings CSV path.
func (f *Fetcher) RatingsPath() string {
	return filepath.Join(f.cfg.IngestedDir, f.cfg.RatingsFile)
}

// BooksPath returns the extracted books CSV path.
func (f *Fetcher) BooksPath() string {
	return filepath.Join(f.cfg.IngestedDir, f.cfg.BooksFile)
}

// download fetches the archive unless it is already on disk.
func (f *Fetcher) download(ctx context.Context) (string, error) {
	parsed, err := url.Parse(f.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("parse dataset url: %w", err)
	}

	if err := os.MkdirAll(f.cfg.RawDir, 0o750); err != nil {
		return "", fmt.Errorf("create raw data dir: %w", err)
	}

	archivePath := filepath.Join(f.cfg.RawDir, filepath.Base(parsed.Path))
	if _, err := os.Stat(archivePath); err == nil {
		f.logger.Info().Str("archive", archivePath).Msg("archive already present, skipping download")
		return archivePath, nil
	}

	f.logger.Info().Str("url", f.cfg.URL).Str("archive", archivePath).Msg("downloading dataset")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.cfg.URL, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("build download request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download dataset from %s: %w", f.cfg.URL, err)
	}
	defer func() { _ = resp.Body.Close() }() //nolint:errcheck // error on close after read is not actionable

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download dataset from %s: unexpected status %s", f.cfg.URL, resp.Status)
	}

	// Write to a temp file first so a partial download never satisfies the
	// idempotence check on the next run.
	tmp, err := os.CreateTemp(f.cfg.RawDir, "download-*")
	if err != nil {
		return "", fmt.Errorf("create temp download file: %w", err)
	}

	written, err := io.Copy(tmp, resp.Body)
	closeErr := tmp.Close()
	if err != nil {
		_ = os.Remove(tmp.Name()) //nolint:errcheck // best-effort cleanup
		return "", fmt.Errorf("write archive: %w", err)
	}
	if closeErr != nil {
		_ = os.Remove(tmp.Name()) //nolint:errcheck // best-effort cleanup
		return "", fmt.Errorf("close archive: %w", closeErr)
	}

	if err := os.Rename(tmp.Name(), archivePath); err != nil {
		return "", fmt.Errorf("finalize archive: %w", err)
	}

	f.logger.Info().Str("archive", archivePath).Int64("bytes", written).Msg("download complete")
	return archivePath, nil
}

// extract unpacks the archive into the ingested directory.
func (f *Fetcher) extract(archivePath string) error {
	if err := os.MkdirAll(f.cfg.IngestedDir, 0o750); err != nil {
		return fmt.Errorf("create ingested dir: %w", err)
	}

	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open archive %s: %w", archivePath, err)
	}
	defer func() { _ = zr.Close() }() //nolint:errcheck // error on close after read is not actionable

	for _, file := range zr.File {
		if err := f.extractFile(file); err != nil {
			return err
		}
	}

	f.logger.Info().
		Str("archive", archivePath).
		Int("files", len(zr.File)).
		Str("dir", f.cfg.IngestedDir).
		Msg("archive extracted")

	return nil
}

// extractFile writes a single archive entry, rejecting paths that would
// escape the ingested directory.
func (f *Fetcher) extractFile(file *zip.File) error {
	dest := filepath.Join(f.cfg.IngestedDir, file.Name) //nolint:gosec // escape checked below
	cleanDir := filepath.Clean(f.cfg.IngestedDir) + string(os.PathSeparator)
	if !strings.HasPrefix(filepath.Clean(dest)+string(os.PathSeparator), cleanDir) {
		return fmt.Errorf("archive entry %q escapes extraction dir", file.Name)
	}

	if file.FileInfo().IsDir() {
		return os.MkdirAll(dest, 0o750)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return fmt.Errorf("create dir for %s: %w", file.Name, err)
	}

	src, err := file.Open()
	if err != nil {
		return fmt.Errorf("open archive entry %s: %w", file.Name, err)
	}
	defer func() { _ = src.Close() }() //nolint:errcheck // error on close after read is not actionable

	out, err := os.Create(dest) //nolint:gosec // dest validated against extraction dir above
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}

	//nolint:gosec // trusted first-party dataset archive; size bounded by download
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close() //nolint:errcheck // write error takes precedence
		return fmt.Errorf("extract %s: %w", file.Name, err)
	}

	return out.Close()
}
