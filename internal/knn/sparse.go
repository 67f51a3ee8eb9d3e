// ReadNext - Collaborative Filtering Book Recommendations
// Copyright 2026 Nico Vollmar
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nvollmar/readnext

package knn

import "math"

// CSR is a compressed sparse row matrix. The ratings matrix is mostly
// zeros, so distance computation walks only the stored entries instead
// of the full dense rows. Fields are exported for gob serialization.
type CSR struct {
	NumRows int
	NumCols int

	// RowPtr has NumRows+1 entries; row i occupies ColIdx/Data in the
	// half-open range [RowPtr[i], RowPtr[i+1]).
	RowPtr []int
	ColIdx []int
	Data   []float64
}

// NewCSRFromDense compresses a dense row-major matrix, dropping zeros.
func NewCSRFromDense(values [][]float64) *CSR {
	rows := len(values)
	cols := 0
	if rows > 0 {
		cols = len(values[0])
	}

	nnz := 0
	for r := range values {
		for c := range values[r] {
			if values[r][c] != 0 {
				nnz++
			}
		}
	}

	m := &CSR{
		NumRows: rows,
		NumCols: cols,
		RowPtr:  make([]int, rows+1),
		ColIdx:  make([]int, 0, nnz),
		Data:    make([]float64, 0, nnz),
	}
	for r := range values {
		for c := range values[r] {
			if v := values[r][c]; v != 0 {
				m.ColIdx = append(m.ColIdx, c)
				m.Data = append(m.Data, v)
			}
		}
		m.RowPtr[r+1] = len(m.ColIdx)
	}
	return m
}

// RowNNZ returns the number of stored entries in row i.
func (m *CSR) RowNNZ(i int) int {
	return m.RowPtr[i+1] - m.RowPtr[i]
}

// RowDense expands row i into buf, which must have NumCols capacity.
// buf is zeroed first so it can be reused across rows.
func (m *CSR) RowDense(i int, buf []float64) []float64 {
	buf = buf[:m.NumCols]
	for j := range buf {
		buf[j] = 0
	}
	for p := m.RowPtr[i]; p < m.RowPtr[i+1]; p++ {
		buf[m.ColIdx[p]] = m.Data[p]
	}
	return buf
}

// RowDistance returns the euclidean distance between rows a and b using
// a merge walk over their stored entries.
func (m *CSR) RowDistance(a, b int) float64 {
	pa, ea := m.RowPtr[a], m.RowPtr[a+1]
	pb, eb := m.RowPtr[b], m.RowPtr[b+1]

	var sum float64
	for pa < ea && pb < eb {
		ca, cb := m.ColIdx[pa], m.ColIdx[pb]
		switch {
		case ca == cb:
			d := m.Data[pa] - m.Data[pb]
			sum += d * d
			pa++
			pb++
		case ca < cb:
			sum += m.Data[pa] * m.Data[pa]
			pa++
		default:
			sum += m.Data[pb] * m.Data[pb]
			pb++
		}
	}
	for ; pa < ea; pa++ {
		sum += m.Data[pa] * m.Data[pa]
	}
	for ; pb < eb; pb++ {
		sum += m.Data[pb] * m.Data[pb]
	}
	return math.Sqrt(sum)
}

// VectorDistance returns the euclidean distance between row i and a
// dense query vector of NumCols length.
func (m *CSR) VectorDistance(i int, vec []float64) float64 {
	var sum float64
	p := m.RowPtr[i]
	end := m.RowPtr[i+1]
	for c := 0; c < m.NumCols; c++ {
		var stored float64
		if p < end && m.ColIdx[p] == c {
			stored = m.Data[p]
			p++
		}
		d := stored - vec[c]
		sum += d * d
	}
	return math.Sqrt(sum)
}
