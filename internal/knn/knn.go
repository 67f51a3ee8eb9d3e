// ReadNext - Collaborative Filtering Book Recommendations
// Copyright 2026 Nico Vollmar
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nvollmar/readnext

// Package knn implements exact k-nearest-neighbor search over the rows
// of a sparse ratings matrix using euclidean distance. Two search
// strategies are available, a brute-force scan and a ball tree; both
// return identical neighbor sets, with ties broken toward the lower row
// index, so the choice is purely a performance decision.
package knn

import (
	"errors"
	"fmt"
	"sort"
)

// Algorithm selects the search strategy.
type Algorithm string

const (
	// AlgorithmAuto picks brute force for small matrices, ball tree otherwise.
	AlgorithmAuto Algorithm = "auto"

	// AlgorithmBrute scans every row per query.
	AlgorithmBrute Algorithm = "brute"

	// AlgorithmBallTree prunes the scan with a metric tree.
	AlgorithmBallTree Algorithm = "balltree"
)

// autoBruteThreshold is the row count below which auto prefers the
// brute scan; tree construction does not pay off on tiny matrices.
const autoBruteThreshold = 256

var (
	// ErrInvalidK indicates k is non-positive or exceeds the row count.
	ErrInvalidK = errors.New("knn: k out of range")

	// ErrRowOutOfRange indicates a query row index outside the matrix.
	ErrRowOutOfRange = errors.New("knn: row index out of range")

	// ErrEmptyMatrix indicates a fit over a matrix with no rows or columns.
	ErrEmptyMatrix = errors.New("knn: matrix has no rows or columns")
)

// Neighbor is one search result. Distance is the euclidean distance
// between the query vector and the matrix row at Index.
type Neighbor struct {
	Index    int
	Distance float64
}

// Index is a fitted neighbor index over a sparse matrix. The CSR matrix
// and the chosen algorithm are exported so the index survives gob
// round-trips; the ball tree itself is rebuilt on first use after a
// decode, which is deterministic and cheaper than serializing the tree.
type Index struct {
	Matrix    *CSR
	Algorithm Algorithm

	tree *ballTree
}

// Fit builds an index over the given dense matrix. AlgorithmAuto
// resolves to a concrete strategy at fit time so the stored artifact
// records what actually ran.
func Fit(values [][]float64, algorithm Algorithm) (*Index, error) {
	matrix := NewCSRFromDense(values)
	if matrix.NumRows == 0 || matrix.NumCols == 0 {
		return nil, ErrEmptyMatrix
	}

	switch algorithm {
	case AlgorithmAuto:
		if matrix.NumRows < autoBruteThreshold {
			algorithm = AlgorithmBrute
		} else {
			algorithm = AlgorithmBallTree
		}
	case AlgorithmBrute, AlgorithmBallTree:
	default:
		return nil, fmt.Errorf("knn: unknown algorithm %q", algorithm)
	}

	idx := &Index{Matrix: matrix, Algorithm: algorithm}
	if algorithm == AlgorithmBallTree {
		idx.tree = buildBallTree(matrix)
	}
	return idx, nil
}

// Rows returns the number of indexed rows.
func (idx *Index) Rows() int {
	return idx.Matrix.NumRows
}

// Query returns the k nearest rows to row i, ascending by distance with
// ties broken toward the lower row index. Row i itself is a candidate
// like any other, at distance zero; callers that want it excluded ask
// for k+1 and drop it.
func (idx *Index) Query(i, k int) ([]Neighbor, error) {
	if i < 0 || i >= idx.Matrix.NumRows {
		return nil, fmt.Errorf("%w: %d", ErrRowOutOfRange, i)
	}
	if k <= 0 || k > idx.Matrix.NumRows {
		return nil, fmt.Errorf("%w: %d of %d rows", ErrInvalidK, k, idx.Matrix.NumRows)
	}

	buf := make([]float64, idx.Matrix.NumCols)
	return idx.search(idx.Matrix.RowDense(i, buf), k), nil
}

// QueryVector returns the k nearest rows to an arbitrary dense vector.
func (idx *Index) QueryVector(vec []float64, k int) ([]Neighbor, error) {
	if len(vec) != idx.Matrix.NumCols {
		return nil, fmt.Errorf("knn: vector length %d, matrix has %d columns", len(vec), idx.Matrix.NumCols)
	}
	if k <= 0 || k > idx.Matrix.NumRows {
		return nil, fmt.Errorf("%w: %d of %d rows", ErrInvalidK, k, idx.Matrix.NumRows)
	}
	return idx.search(vec, k), nil
}

func (idx *Index) search(vec []float64, k int) []Neighbor {
	heap := newCandidateHeap(k)

	switch idx.Algorithm {
	case AlgorithmBallTree:
		if idx.tree == nil {
			idx.tree = buildBallTree(idx.Matrix)
		}
		idx.tree.search(vec, heap)
	default:
		for r := 0; r < idx.Matrix.NumRows; r++ {
			heap.offer(Neighbor{Index: r, Distance: idx.Matrix.VectorDistance(r, vec)})
		}
	}

	return heap.sorted()
}

// candidateHeap keeps the k best neighbors seen so far as a max-heap
// ordered worst-first, so the next eviction candidate sits at the root.
type candidateHeap struct {
	k     int
	items []Neighbor
}

func newCandidateHeap(k int) *candidateHeap {
	return &candidateHeap{k: k, items: make([]Neighbor, 0, k)}
}

// worse reports whether a is a worse candidate than b: farther away, or
// equally far with a higher row index.
func worse(a, b Neighbor) bool {
	if a.Distance != b.Distance {
		return a.Distance > b.Distance
	}
	return a.Index > b.Index
}

func (h *candidateHeap) full() bool {
	return len(h.items) == h.k
}

func (h *candidateHeap) worst() Neighbor {
	return h.items[0]
}

func (h *candidateHeap) offer(n Neighbor) {
	if len(h.items) < h.k {
		h.items = append(h.items, n)
		h.siftUp(len(h.items) - 1)
		return
	}
	if !worse(n, h.items[0]) {
		h.items[0] = n
		h.siftDown(0)
	}
}

func (h *candidateHeap) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !worse(h.items[i], h.items[parent]) {
			return
		}
		h.items[i], h.items[parent] = h.items[parent], h.items[i]
		i = parent
	}
}

func (h *candidateHeap) siftDown(i int) {
	n := len(h.items)
	for {
		left, right := 2*i+1, 2*i+2
		worstIdx := i
		if left < n && worse(h.items[left], h.items[worstIdx]) {
			worstIdx = left
		}
		if right < n && worse(h.items[right], h.items[worstIdx]) {
			worstIdx = right
		}
		if worstIdx == i {
			return
		}
		h.items[i], h.items[worstIdx] = h.items[worstIdx], h.items[i]
		i = worstIdx
	}
}

// sorted returns the collected neighbors ascending by distance, ties by
// lower row index. The heap is consumed.
func (h *candidateHeap) sorted() []Neighbor {
	out := h.items
	sort.Slice(out, func(i, j int) bool {
		return worse(out[j], out[i])
	})
	h.items = nil
	return out
}
