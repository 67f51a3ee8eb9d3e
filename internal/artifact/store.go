// ReadNext - Collaborative Filtering Book Recommendations
// Copyright 2026 Nico Vollmar
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nvollmar/readnext

// Package artifact provides versioned persistence for trained model
// artifacts.
//
// Artifacts are serialized with Go's gob encoding, gzip-compressed and
// wrapped with metadata including version, timestamps and a SHA-256
// checksum. Versions are monotonically increasing per artifact name;
// loading version 0 resolves to the latest, which gives the serving
// layer crash-safe reloads and rollback to previous versions.
//
// # Thread Safety
//
// All store operations are safe for concurrent use.
package artifact

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ErrNotFound indicates no stored artifact matches the requested name.
var ErrNotFound = errors.New("artifact: not found")

// Metadata describes a stored artifact.
type Metadata struct {
	// Name is the artifact name (e.g., "book-knn").
	Name string `json:"name"`

	// Version is the artifact version (monotonically increasing).
	Version int `json:"version"`

	// TrainedAt is when the model was trained.
	TrainedAt time.Time `json:"trained_at"`

	// SavedAt is when the artifact was written.
	SavedAt time.Time `json:"saved_at"`

	// TitleCount and UserCount are the matrix dimensions.
	TitleCount int `json:"title_count"`
	UserCount  int `json:"user_count"`

	// RatingCount is the number of surviving rating events.
	RatingCount int `json:"rating_count"`

	// Algorithm is the neighbor search strategy that was fitted.
	Algorithm string `json:"algorithm"`

	// Checksum is the SHA-256 checksum of the uncompressed payload.
	Checksum string `json:"checksum"`

	// SizeBytes is the compressed payload size in bytes.
	SizeBytes int64 `json:"size_bytes"`

	// TrainingDurationMS is how long the training run took.
	TrainingDurationMS int64 `json:"training_duration_ms"`
}

// storedFile is the on-disk format for artifact files.
type storedFile struct {
	Metadata       Metadata
	CompressedData []byte
}

// Store manages artifact persistence under a single directory. Files
// are named {name}_v{version}.gob.gz.
type Store struct {
	baseDir string

	// versions tracks the latest version per artifact name. Guarded by
	// the store file operations being serialized through it.
	versions *versionTable
}

// NewStore creates an artifact store at the given directory, scanning
// it for versions left by previous runs.
func NewStore(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o750); err != nil { //nolint:gosec // 0750 is acceptable for artifact storage
		return nil, fmt.Errorf("create artifact directory: %w", err)
	}

	s := &Store{
		baseDir:  baseDir,
		versions: newVersionTable(),
	}
	if err := s.scan(); err != nil {
		return nil, fmt.Errorf("scan existing artifacts: %w", err)
	}
	return s, nil
}

// scan walks the storage directory and records the latest version per
// artifact name.
func (s *Store) scan() error {
	names, err := s.listFiles()
	if err != nil {
		return err
	}
	for _, name := range names {
		artName, version, ok := parseFilename(name)
		if !ok {
			continue
		}
		s.versions.observe(artName, version)
	}
	return nil
}

// listFiles returns the base names of regular files in the store directory.
func (s *Store) listFiles() ([]string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}

// parseFilename extracts artifact name and version from a filename like
// "book-knn_v3.gob.gz".
func parseFilename(name string) (artName string, version int, ok bool) {
	name, found := strings.CutSuffix(name, ".gob.gz")
	if !found {
		return "", 0, false
	}
	idx := strings.LastIndex(name, "_v")
	if idx < 1 {
		return "", 0, false
	}
	if _, err := fmt.Sscanf(name[idx+2:], "%d", &version); err != nil || version < 1 {
		return "", 0, false
	}
	return name[:idx], version, true
}

// Save stores an artifact payload under the given name, assigning the
// next version number. The write goes to a temp file first and renames
// into place so a crash mid-write never leaves a readable partial.
func (s *Store) Save(ctx context.Context, name string, payload interface{}, meta Metadata) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(payload); err != nil {
		return 0, fmt.Errorf("encode artifact: %w", err)
	}
	rawData := buf.Bytes()

	hash := sha256.Sum256(rawData)
	meta.Checksum = hex.EncodeToString(hash[:])

	var compressed bytes.Buffer
	gzw := gzip.NewWriter(&compressed)
	if _, err := gzw.Write(rawData); err != nil {
		return 0, fmt.Errorf("compress artifact: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return 0, fmt.Errorf("finalize compression: %w", err)
	}

	version := s.versions.next(name)
	meta.Name = name
	meta.Version = version
	meta.SavedAt = time.Now()
	meta.SizeBytes = int64(compressed.Len())

	path := s.artifactPath(name, version)
	tmp, err := os.CreateTemp(s.baseDir, name+"-*.tmp")
	if err != nil {
		return 0, fmt.Errorf("create artifact file: %w", err)
	}
	sf := storedFile{Metadata: meta, CompressedData: compressed.Bytes()}
	if err := gob.NewEncoder(tmp).Encode(sf); err != nil {
		_ = tmp.Close()              //nolint:errcheck // cleanup after write failure
		_ = os.Remove(tmp.Name())    //nolint:errcheck // cleanup after write failure
		return 0, fmt.Errorf("write artifact file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name()) //nolint:errcheck // cleanup after close failure
		return 0, fmt.Errorf("close artifact file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name()) //nolint:errcheck // cleanup after rename failure
		return 0, fmt.Errorf("publish artifact file: %w", err)
	}

	s.versions.observe(name, version)
	return version, nil
}

// Load reads an artifact by name and version into target, verifying the
// checksum. Version 0 resolves to the latest stored version.
func (s *Store) Load(ctx context.Context, name string, version int, target interface{}) (*Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if version == 0 {
		var ok bool
		version, ok = s.versions.latest(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
	}

	f, err := os.Open(s.artifactPath(name, version)) //nolint:gosec // path is built from a trusted artifact name
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s v%d", ErrNotFound, name, version)
		}
		return nil, fmt.Errorf("open artifact file: %w", err)
	}
	defer func() { _ = f.Close() }() //nolint:errcheck // error on close after read is not actionable

	var sf storedFile
	if err := gob.NewDecoder(f).Decode(&sf); err != nil {
		return nil, fmt.Errorf("read artifact file: %w", err)
	}

	gzr, err := gzip.NewReader(bytes.NewReader(sf.CompressedData))
	if err != nil {
		return nil, fmt.Errorf("decompress artifact: %w", err)
	}
	defer func() { _ = gzr.Close() }() //nolint:errcheck // error on gzip close after read is not actionable

	rawData, err := io.ReadAll(gzr)
	if err != nil {
		return nil, fmt.Errorf("read decompressed data: %w", err)
	}

	hash := sha256.Sum256(rawData)
	if checksum := hex.EncodeToString(hash[:]); checksum != sf.Metadata.Checksum {
		return nil, fmt.Errorf("checksum mismatch for %s v%d: expected %s, got %s",
			name, version, sf.Metadata.Checksum, checksum)
	}

	if err := gob.NewDecoder(bytes.NewReader(rawData)).Decode(target); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	return &sf.Metadata, nil
}

// LatestVersion returns the latest version number for an artifact.
func (s *Store) LatestVersion(name string) (int, bool) {
	return s.versions.latest(name)
}

// List returns metadata for the latest version of every stored artifact.
func (s *Store) List(ctx context.Context) ([]Metadata, error) {
	var out []Metadata
	for _, name := range s.versions.names() {
		version, ok := s.versions.latest(name)
		if !ok {
			continue
		}
		f, err := os.Open(s.artifactPath(name, version)) //nolint:gosec // path is built from a trusted artifact name
		if err != nil {
			continue
		}
		var sf storedFile
		err = gob.NewDecoder(f).Decode(&sf)
		_ = f.Close() //nolint:errcheck // error on close after read is not actionable
		if err != nil {
			continue
		}
		out = append(out, sf.Metadata)
	}
	return out, nil
}

// Prune removes old versions of an artifact, keeping the latest N.
func (s *Store) Prune(ctx context.Context, name string, keepVersions int) error {
	if keepVersions < 1 {
		keepVersions = 1
	}

	files, err := s.listFiles()
	if err != nil {
		return fmt.Errorf("read directory: %w", err)
	}

	var versions []int
	for _, file := range files {
		artName, v, ok := parseFilename(file)
		if !ok || artName != name {
			continue
		}
		versions = append(versions, v)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(versions)))

	for i := keepVersions; i < len(versions); i++ {
		_ = os.Remove(s.artifactPath(name, versions[i])) //nolint:errcheck // best-effort cleanup of old versions
	}
	return nil
}

// artifactPath returns the file path for an artifact version.
func (s *Store) artifactPath(name string, version int) string {
	return filepath.Join(s.baseDir, fmt.Sprintf("%s_v%d.gob.gz", name, version))
}
