package matrix

import (
	"errors"
	"fmt"

	"github.com/edp1096/sparse"
)

// ErrSingular is reported when LU factorization meets a structurally
// singular or numerically unusable matrix.
var ErrSingular = errors.New("matrix: singular matrix")

// Jacobian is a real square sparse matrix with an attached right-hand side,
// backed by a Sparse 1.3 LU factorization. Indices are 0-based on this API
// and translated to the solver's 1-based layout internally. The matrix is
// cleared and restamped on every Newton iteration; the nonzero structure is
// reused across iterations.
type Jacobian struct {
	Size   int
	matrix *sparse.Matrix
	rhs    []float64
	config *sparse.Configuration
}

func NewJacobian(size int) (*Jacobian, error) {
	config := &sparse.Configuration{
		Real:           true,
		Expandable:     true,
		Translate:      true, // stamping continues after the first factorization reorders
		ModifiedNodal:  false,
		TiesMultiplier: 5,
		PrinterWidth:   140,
	}

	mat, err := sparse.Create(int64(size), config)
	if err != nil {
		return nil, fmt.Errorf("creating sparse matrix: %v", err)
	}

	return &Jacobian{
		Size:   size,
		matrix: mat,
		rhs:    make([]float64, size+1), // 1-based indexing
		config: config,
	}, nil
}

func (m *Jacobian) Add(i, j int, value float64) {
	if i < 0 || j < 0 || i >= m.Size || j >= m.Size {
		panic(fmt.Sprintf("matrix: index out of bounds (i=%d, j=%d, size=%d)", i, j, m.Size))
	}
	m.matrix.GetElement(int64(i+1), int64(j+1)).Real += value
}

// Set overwrites the entry instead of accumulating. Augmentation blocks that
// own their entries outright stamp through Set.
func (m *Jacobian) Set(i, j int, value float64) {
	if i < 0 || j < 0 || i >= m.Size || j >= m.Size {
		panic(fmt.Sprintf("matrix: index out of bounds (i=%d, j=%d, size=%d)", i, j, m.Size))
	}
	m.matrix.GetElement(int64(i+1), int64(j+1)).Real = value
}

// At reads an entry. Reading an absent entry materializes a structural zero,
// which is harmless for the inspection and test paths this serves.
func (m *Jacobian) At(i, j int) float64 {
	if i < 0 || j < 0 || i >= m.Size || j >= m.Size {
		return 0
	}
	return m.matrix.GetElement(int64(i+1), int64(j+1)).Real
}

// LoadRHS replaces the right-hand side with the given 0-based vector.
func (m *Jacobian) LoadRHS(b []float64) {
	for i := range m.rhs {
		m.rhs[i] = 0
	}
	for i, v := range b {
		if i >= m.Size {
			break
		}
		m.rhs[i+1] = v
	}
}

func (m *Jacobian) Clear() {
	m.matrix.Clear()
	for i := range m.rhs {
		m.rhs[i] = 0
	}
}

// Solve factors the matrix and solves for the loaded right-hand side,
// returning a 0-based solution vector. A failed factorization surfaces as
// ErrSingular; there is no internal retry.
func (m *Jacobian) Solve() ([]float64, error) {
	if err := m.matrix.Factor(); err != nil {
		return nil, fmt.Errorf("%w: factorization failed: %v", ErrSingular, err)
	}

	solution, err := m.matrix.Solve(m.rhs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingular, err)
	}

	x := make([]float64, m.Size)
	copy(x, solution[1:m.Size+1])
	return x, nil
}

// Dense expands the matrix into a row-major dense form. Intended for tests
// and debug dumps of small systems only.
func (m *Jacobian) Dense() [][]float64 {
	d := make([][]float64, m.Size)
	for i := range d {
		d[i] = make([]float64, m.Size)
		for j := range d[i] {
			d[i][j] = m.At(i, j)
		}
	}
	return d
}

func (m *Jacobian) Destroy() {
	if m.matrix != nil {
		m.matrix.Destroy()
	}
}
