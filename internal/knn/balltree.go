// ReadNext - Collaborative Filtering Book Recommendations
// Copyright 2026 Nico Vollmar
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nvollmar/readnext

package knn

import "math"

// defaultLeafSize bounds the linear scan at the leaves. Small enough to
// keep pruning effective, large enough that interior nodes stay cheap.
const defaultLeafSize = 40

// ballTree is an exact metric tree over matrix rows. Every node covers a
// ball around the mean of its points; a subtree is skipped only when the
// triangle inequality proves it cannot improve the current candidates,
// so results match a brute-force scan exactly. Construction is fully
// deterministic: the split pivots come from farthest-point sweeps, never
// random sampling.
type ballTree struct {
	matrix *CSR
	root   *ballNode
}

type ballNode struct {
	// rows holds the matrix row indices covered by this node.
	rows     []int
	centroid []float64
	radius   float64
	left     *ballNode
	right    *ballNode
}

func (n *ballNode) leaf() bool {
	return n.left == nil
}

func buildBallTree(matrix *CSR) *ballTree {
	rows := make([]int, matrix.NumRows)
	for i := range rows {
		rows[i] = i
	}
	t := &ballTree{matrix: matrix}
	t.root = t.build(rows)
	return t
}

func (t *ballTree) build(rows []int) *ballNode {
	node := &ballNode{rows: rows}
	node.centroid = t.centroidOf(rows)
	node.radius = t.radiusOf(rows, node.centroid)

	if len(rows) <= defaultLeafSize {
		return node
	}

	left, right := t.split(rows, node.centroid)
	if len(left) == 0 || len(right) == 0 {
		// Degenerate split (all points coincide); keep as a leaf.
		return node
	}
	node.left = t.build(left)
	node.right = t.build(right)
	node.rows = nil
	return node
}

func (t *ballTree) centroidOf(rows []int) []float64 {
	c := make([]float64, t.matrix.NumCols)
	for _, r := range rows {
		for p := t.matrix.RowPtr[r]; p < t.matrix.RowPtr[r+1]; p++ {
			c[t.matrix.ColIdx[p]] += t.matrix.Data[p]
		}
	}
	inv := 1 / float64(len(rows))
	for i := range c {
		c[i] *= inv
	}
	return c
}

func (t *ballTree) radiusOf(rows []int, centroid []float64) float64 {
	var radius float64
	for _, r := range rows {
		if d := t.matrix.VectorDistance(r, centroid); d > radius {
			radius = d
		}
	}
	return radius
}

// split partitions rows around two pivots found by farthest-point
// sweeps: the point farthest from the centroid, then the point farthest
// from that. Equidistant points go left so the partition is stable.
func (t *ballTree) split(rows []int, centroid []float64) (left, right []int) {
	pivotA := rows[0]
	var best float64 = -1
	for _, r := range rows {
		if d := t.matrix.VectorDistance(r, centroid); d > best {
			best = d
			pivotA = r
		}
	}

	pivotB := rows[0]
	best = -1
	for _, r := range rows {
		if d := t.matrix.RowDistance(pivotA, r); d > best {
			best = d
			pivotB = r
		}
	}

	for _, r := range rows {
		da := t.matrix.RowDistance(pivotA, r)
		db := t.matrix.RowDistance(pivotB, r)
		if da <= db {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	return left, right
}

// search accumulates the k nearest rows to vec into heap, descending
// into the closer child first and pruning subtrees that provably cannot
// beat the current worst candidate. The prune test is strict so that
// equal-distance candidates with lower row indices are never skipped.
func (t *ballTree) search(vec []float64, heap *candidateHeap) {
	t.searchNode(t.root, vec, heap)
}

func (t *ballTree) searchNode(node *ballNode, vec []float64, heap *candidateHeap) {
	centroidDist := denseDistance(vec, node.centroid)
	if heap.full() && centroidDist-node.radius > heap.worst().Distance {
		return
	}

	if node.leaf() {
		for _, r := range node.rows {
			heap.offer(Neighbor{Index: r, Distance: t.matrix.VectorDistance(r, vec)})
		}
		return
	}

	leftDist := denseDistance(vec, node.left.centroid)
	rightDist := denseDistance(vec, node.right.centroid)
	if leftDist <= rightDist {
		t.searchNode(node.left, vec, heap)
		t.searchNode(node.right, vec, heap)
	} else {
		t.searchNode(node.right, vec, heap)
		t.searchNode(node.left, vec, heap)
	}
}

func denseDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
