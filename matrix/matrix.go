package matrix

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ColSums returns a slice containing m column sums.
// It panics if m is nil.
func ColSums(m *mat.Dense) []float64 {
	_, cols := m.Dims()
	sum := make([]float64, cols)

	for i := 0; i < cols; i++ {
		sum[i] = mat.Sum(m.ColView(i))
	}

	return sum
}

// FlattenCol returns the elements of m in column-major order.
func FlattenCol(m mat.Matrix) []float64 {
	rows, cols := m.Dims()
	data := make([]float64, rows*cols)

	for j := 0; j < cols; j++ {
		mat.Col(data[j*rows:(j+1)*rows], j, m)
	}

	return data
}

// ReshapeCol creates a rows x cols matrix from data stored in column-major order.
// It returns error if data length does not match the requested dimensions.
func ReshapeCol(rows, cols int, data []float64) (*mat.Dense, error) {
	if rows <= 0 || cols <= 0 || len(data) != rows*cols {
		return nil, fmt.Errorf("invalid dimensions: [%d x %d] for %d elements", rows, cols, len(data))
	}

	// data read row-major as cols x rows is the transpose of the result
	m := mat.DenseCopyOf(mat.NewDense(cols, rows, data).T())

	return m, nil
}

// Stack stacks matrices ms on top of each other.
// It returns error if ms is empty or the matrices differ in column count.
func Stack(ms ...mat.Matrix) (*mat.Dense, error) {
	if len(ms) == 0 {
		return nil, fmt.Errorf("no matrices to stack")
	}

	_, cols := ms[0].Dims()
	rows := 0
	for i, m := range ms {
		r, c := m.Dims()
		if c != cols {
			return nil, fmt.Errorf("invalid matrix %d dimensions: [%d x %d]", i, r, c)
		}
		rows += r
	}

	out := mat.NewDense(rows, cols, nil)
	row := 0
	for _, m := range ms {
		r, _ := m.Dims()
		out.Slice(row, row+r, 0, cols).(*mat.Dense).Copy(m)
		row += r
	}

	return out, nil
}

// EqualCol reports whether data holds the elements of m in column-major order
// within the absolute tolerance tol.
func EqualCol(m mat.Matrix, data []float64, tol float64) bool {
	rows, cols := m.Dims()
	if len(data) != rows*cols {
		return false
	}

	return floats.EqualApprox(FlattenCol(m), data, tol)
}
