// ReadNext - Collaborative Filtering Book Recommendations
// Copyright 2026 Nico Vollmar
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nvollmar/readnext

package artifact

import (
	"encoding/gob"

	"github.com/nvollmar/readnext/internal/feature"
	"github.com/nvollmar/readnext/internal/knn"
)

// Model is the complete serializable output of one training run: the
// fitted neighbor index (which carries the sparse matrix), the canonical
// title and user orderings, and the metadata table for cover resolution.
// Everything the serving layer needs travels in one artifact so a reload
// is atomic.
type Model struct {
	Titles   []string
	UserIDs  []int
	Index    *knn.Index
	Metadata *feature.MetadataTable
}

// Register gob types for serialization.
//
//nolint:gochecknoinits // gob.Register must be called in init for type registration
func init() {
	gob.Register(Model{})
	gob.Register(Metadata{})
	gob.Register(storedFile{})
}
