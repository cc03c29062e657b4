package matrix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewComplexAccumulatesDuplicates(t *testing.T) {
	m := NewComplex(2,
		[]int{0, 0, 1, 0},
		[]int{0, 1, 1, 0},
		[]complex128{1 + 1i, 2, 3i, 4},
	)

	assert.Equal(t, 3, m.NNZ())
	assert.Equal(t, complex128(5+1i), m.At(0, 0))
	assert.Equal(t, complex128(2), m.At(0, 1))
	assert.Equal(t, complex128(3i), m.At(1, 1))
	assert.Equal(t, complex128(0), m.At(1, 0))
}

func TestComplexMulVec(t *testing.T) {
	// [[2, -1], [-1, 2]] * [1, i]
	m := NewComplex(2,
		[]int{0, 0, 1, 1},
		[]int{0, 1, 0, 1},
		[]complex128{2, -1, -1, 2},
	)
	y := m.MulVec([]complex128{1, 1i})
	require.Len(t, y, 2)
	assert.Equal(t, complex128(2-1i), y[0])
	assert.Equal(t, complex128(-1+2i), y[1])
}

func TestComplexPlusMergesPatterns(t *testing.T) {
	a := NewComplex(2, []int{0}, []int{0}, []complex128{1})
	b := NewComplex(2, []int{0, 1}, []int{1, 0}, []complex128{2i, 3})

	s := a.Plus(b)
	assert.Equal(t, complex128(1), s.At(0, 0))
	assert.Equal(t, complex128(2i), s.At(0, 1))
	assert.Equal(t, complex128(3), s.At(1, 0))
}

func TestComplexScaleAndSamePattern(t *testing.T) {
	a := NewComplex(2, []int{0, 1}, []int{1, 1}, []complex128{1 + 1i, 2})

	s := a.Scale(2i)
	assert.Equal(t, complex128(-2+2i), s.At(0, 1))
	assert.Equal(t, complex128(4i), s.At(1, 1))
	// original untouched
	assert.Equal(t, complex128(1+1i), a.At(0, 1))

	z := a.SamePattern()
	assert.Equal(t, a.NNZ(), z.NNZ())
	assert.Equal(t, complex128(0), z.At(0, 1))
}
