package matrix

import "sort"

// Complex is a square complex sparse matrix in compressed sparse row form.
// It carries the bus admittance matrix and the dS/dV derivative matrices.
// RowPtr, ColIdx and Data are exposed so assembly code can walk the nonzero
// pattern directly.
type Complex struct {
	N      int
	RowPtr []int
	ColIdx []int
	Data   []complex128
}

type triplet struct {
	row, col int
	val      complex128
}

// NewComplex builds an n x n CSR matrix from coordinate triplets.
// Duplicate coordinates are summed, columns are sorted within each row.
func NewComplex(n int, rows, cols []int, vals []complex128) *Complex {
	ts := make([]triplet, len(vals))
	for k := range vals {
		ts[k] = triplet{rows[k], cols[k], vals[k]}
	}
	sort.Slice(ts, func(a, b int) bool {
		if ts[a].row != ts[b].row {
			return ts[a].row < ts[b].row
		}
		return ts[a].col < ts[b].col
	})

	m := &Complex{N: n, RowPtr: make([]int, n+1)}
	for k := 0; k < len(ts); {
		t := ts[k]
		v := t.val
		k++
		for k < len(ts) && ts[k].row == t.row && ts[k].col == t.col {
			v += ts[k].val
			k++
		}
		m.ColIdx = append(m.ColIdx, t.col)
		m.Data = append(m.Data, v)
		m.RowPtr[t.row+1]++
	}
	for i := 0; i < n; i++ {
		m.RowPtr[i+1] += m.RowPtr[i]
	}
	return m
}

// SamePattern returns an empty matrix sharing this matrix's nonzero
// structure. Data is freshly allocated and zeroed.
func (m *Complex) SamePattern() *Complex {
	return &Complex{
		N:      m.N,
		RowPtr: m.RowPtr,
		ColIdx: m.ColIdx,
		Data:   make([]complex128, len(m.Data)),
	}
}

func (m *Complex) NNZ() int { return len(m.Data) }

func (m *Complex) At(i, j int) complex128 {
	for k := m.RowPtr[i]; k < m.RowPtr[i+1]; k++ {
		if m.ColIdx[k] == j {
			return m.Data[k]
		}
	}
	return 0
}

// MulVec computes y = M x as one sparse matrix-vector product.
func (m *Complex) MulVec(x []complex128) []complex128 {
	y := make([]complex128, m.N)
	for i := 0; i < m.N; i++ {
		var s complex128
		for k := m.RowPtr[i]; k < m.RowPtr[i+1]; k++ {
			s += m.Data[k] * x[m.ColIdx[k]]
		}
		y[i] = s
	}
	return y
}

// Plus returns m+b, merging the two nonzero patterns.
func (m *Complex) Plus(b *Complex) *Complex {
	var rows, cols []int
	var vals []complex128
	for _, src := range []*Complex{m, b} {
		for i := 0; i < src.N; i++ {
			for k := src.RowPtr[i]; k < src.RowPtr[i+1]; k++ {
				rows = append(rows, i)
				cols = append(cols, src.ColIdx[k])
				vals = append(vals, src.Data[k])
			}
		}
	}
	return NewComplex(m.N, rows, cols, vals)
}

// Scale returns s*M with the same pattern.
func (m *Complex) Scale(s complex128) *Complex {
	out := m.SamePattern()
	for k, v := range m.Data {
		out.Data[k] = s * v
	}
	return out
}
