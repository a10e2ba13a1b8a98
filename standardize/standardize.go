package standardize

import (
	"fmt"
	"math"

	"github.com/milosgajdos/go-mpc/matrix"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Standard removes column mean and scales columns to unit variance
type Standard struct {
	// mean stores column means
	mean []float64
	// scale stores column standard deviations
	scale []float64
}

// New creates new Standard from column means and scales and returns it.
// It returns error if mean and scale lengths differ or any scale is zero.
func New(mean, scale []float64) (*Standard, error) {
	if len(mean) == 0 || len(mean) != len(scale) {
		return nil, fmt.Errorf("invalid standardizer dimensions: %d != %d", len(mean), len(scale))
	}

	for i, s := range scale {
		if s == 0 {
			return nil, fmt.Errorf("invalid scale %d: %v", i, s)
		}
	}

	m := make([]float64, len(mean))
	copy(m, mean)
	s := make([]float64, len(scale))
	copy(s, scale)

	return &Standard{mean: m, scale: s}, nil
}

// Fit creates new Standard fitted to samples stored in rows of x.
// Columns with zero variance are centered but not scaled.
func Fit(x *mat.Dense) (*Standard, error) {
	rows, cols := x.Dims()
	if rows == 0 {
		return nil, fmt.Errorf("no samples to fit")
	}

	mean := matrix.ColSums(x)
	scale := make([]float64, cols)
	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mean[j] /= float64(rows)
		mat.Col(col, j, x)
		scale[j] = math.Sqrt(stat.PopVariance(col, nil))
		if scale[j] == 0 {
			scale[j] = 1.0
		}
	}

	return &Standard{mean: mean, scale: scale}, nil
}

// Dim returns standardizer dimension.
func (s *Standard) Dim() int {
	return len(s.mean)
}

// Mean returns column means.
func (s *Standard) Mean() []float64 {
	mean := make([]float64, len(s.mean))
	copy(mean, s.mean)

	return mean
}

// Scale returns column scales.
func (s *Standard) Scale() []float64 {
	scale := make([]float64, len(s.scale))
	copy(scale, s.scale)

	return scale
}

// Transform maps rows of x to standardized values.
// It returns error if x column count does not match standardizer dimension.
func (s *Standard) Transform(x mat.Matrix) (*mat.Dense, error) {
	out, err := s.clone(x)
	if err != nil {
		return nil, err
	}

	out.Apply(func(i, j int, v float64) float64 {
		return (v - s.mean[j]) / s.scale[j]
	}, out)

	return out, nil
}

// InverseTransform maps standardized rows of x back to physical units.
// It returns error if x column count does not match standardizer dimension.
func (s *Standard) InverseTransform(x mat.Matrix) (*mat.Dense, error) {
	out, err := s.clone(x)
	if err != nil {
		return nil, err
	}

	out.Apply(func(i, j int, v float64) float64 {
		return v*s.scale[j] + s.mean[j]
	}, out)

	return out, nil
}

func (s *Standard) clone(x mat.Matrix) (*mat.Dense, error) {
	if x == nil {
		return nil, fmt.Errorf("invalid matrix: %v", x)
	}

	rows, cols := x.Dims()
	if cols != len(s.mean) {
		return nil, fmt.Errorf("invalid matrix dimensions: [%d x %d], expected %d columns", rows, cols, len(s.mean))
	}

	return mat.DenseCopyOf(x), nil
}

// String implements the Stringer interface.
func (s *Standard) String() string {
	return fmt.Sprintf("Standard{\nMean=%v\nScale=%v\n}", s.mean, s.scale)
}
