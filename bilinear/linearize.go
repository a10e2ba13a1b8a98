package bilinear

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrShape is returned when a buffer disagrees with the problem dimensions.
var ErrShape = errors.New("shape mismatch")

// Linearization is a time-varying linearization of bilinear dynamics along a trajectory.
type Linearization struct {
	// A stores N column-major nx x nx transition matrices one step after another
	A []float64
	// B stores N column-major nx x nu input sensitivity matrices one step after another
	B []float64
	// R stores N one-step defects A_i*z_i - z_{i+1}
	R []float64
}

// Linearizer linearizes bilinear dynamics into preallocated buffers.
type Linearizer struct {
	nx, nu, n int
	// a is N x nx*nx matrix of flattened transition matrices
	a *mat.Dense
	// blocks shares a data reshaped to N*nx x nx
	blocks *mat.Dense
	// b is N x nu*nx matrix of flattened input sensitivities
	b *mat.Dense
	// r is the defect vector
	r *mat.VecDense
	// aFlat is scratch copy of the flattened system matrix
	aFlat []float64
}

// NewLinearizer creates new Linearizer for nx lifted states, nu inputs and horizon n.
// It returns error if nx or n is not positive or nu is negative.
func NewLinearizer(nx, nu, n int) (*Linearizer, error) {
	if nx <= 0 || nu < 0 || n <= 0 {
		return nil, fmt.Errorf("%w: invalid dimensions nx=%d nu=%d N=%d", ErrShape, nx, nu, n)
	}

	a := mat.NewDense(n, nx*nx, nil)
	blocks := mat.NewDense(n*nx, nx, a.RawMatrix().Data)

	var b *mat.Dense
	if nu > 0 {
		b = mat.NewDense(n, nu*nx, nil)
	}

	return &Linearizer{
		nx:     nx,
		nu:     nu,
		n:      n,
		a:      a,
		blocks: blocks,
		b:      b,
		r:      mat.NewVecDense(n*nx, nil),
		aFlat:  make([]float64, nx*nx),
	}, nil
}

// Dims returns lifted state length, input length and horizon length.
func (l *Linearizer) Dims() (nx, nu, n int) {
	return l.nx, l.nu, l.n
}

// Linearize computes the linearization of bilinear dynamics along trajectory z, u.
// It accepts the following parameters:
//   - aFlat: column-major flattened system matrix A, length nx*nx
//   - bFlat: nu x nx*nx matrix whose rows are column-major flattened B_i; nil if nu is 0
//   - bArr:  nx x nu*nx matrix [B_0; ...; B_{nu-1}]^T; nil if nu is 0
//   - z:     (N+1) x nx lifted state trajectory
//   - u:     N x nu control trajectory; nil if nu is 0
//
// The returned slices are owned by l and overwritten by the next call.
// It returns ErrShape if any buffer disagrees with the Linearizer dimensions.
func (l *Linearizer) Linearize(aFlat mat.Vector, bFlat, bArr, z, u *mat.Dense) (*Linearization, error) {
	if err := l.check(aFlat, bFlat, bArr, z, u); err != nil {
		return nil, err
	}

	nx := l.nx

	// A_i = A + sum_j u[i,j]*B_j for all steps at once
	if l.nu > 0 {
		l.a.Mul(u, bFlat)
	} else {
		l.a.Zero()
	}
	for k := range l.aFlat {
		l.aFlat[k] = aFlat.AtVec(k)
	}
	for i := 0; i < l.n; i++ {
		floats.Add(l.a.RawRowView(i), l.aFlat)
	}

	// input sensitivities [B_0*z_i ... B_{nu-1}*z_i] for all steps at once
	if l.nu > 0 {
		l.b.Mul(z.Slice(0, l.n, 0, nx), bArr)
	}

	// row-major block i of the reshaped matrix is A_i^T so z_i*block = (A_i*z_i)^T
	for i := 0; i < l.n; i++ {
		ri := l.r.SliceVec(i*nx, (i+1)*nx).(*mat.VecDense)
		ri.MulVec(l.blocks.Slice(i*nx, (i+1)*nx, 0, nx).T(), z.RowView(i))
		ri.SubVec(ri, z.RowView(i+1))
	}

	lin := &Linearization{
		A: l.a.RawMatrix().Data,
		B: []float64{},
		R: l.r.RawVector().Data,
	}
	if l.nu > 0 {
		lin.B = l.b.RawMatrix().Data
	}

	return lin, nil
}

func (l *Linearizer) check(aFlat mat.Vector, bFlat, bArr, z, u *mat.Dense) error {
	nx, nu, n := l.nx, l.nu, l.n

	if aFlat == nil || aFlat.Len() != nx*nx {
		return fmt.Errorf("%w: A_flat must have length %d", ErrShape, nx*nx)
	}

	if err := checkDims("z_init", z, n+1, nx); err != nil {
		return err
	}

	if nu == 0 {
		names := []string{"B_flat", "B_arr", "u_init"}
		for i, m := range []*mat.Dense{bFlat, bArr, u} {
			if m != nil && !m.IsEmpty() {
				r, c := m.Dims()
				return fmt.Errorf("%w: %s is [%d x %d], expected empty for no inputs", ErrShape, names[i], r, c)
			}
		}
		return nil
	}

	if err := checkDims("B_flat", bFlat, nu, nx*nx); err != nil {
		return err
	}

	if err := checkDims("B_arr", bArr, nx, nu*nx); err != nil {
		return err
	}

	return checkDims("u_init", u, n, nu)
}

func checkDims(name string, m *mat.Dense, rows, cols int) error {
	if m == nil || m.IsEmpty() {
		return fmt.Errorf("%w: %s is empty, expected [%d x %d]", ErrShape, name, rows, cols)
	}

	if r, c := m.Dims(); r != rows || c != cols {
		return fmt.Errorf("%w: %s is [%d x %d], expected [%d x %d]", ErrShape, name, r, c, rows, cols)
	}

	return nil
}

// Linearize computes the linearization of bilinear dynamics for nx lifted states
// and horizon n along trajectory z, u into newly allocated buffers.
// The number of inputs is the row count of bFlat.
// See Linearizer.Linearize for the parameters.
func Linearize(aFlat mat.Vector, bFlat, bArr, z, u *mat.Dense, nx, n int) (*Linearization, error) {
	nu := 0
	if bFlat != nil && !bFlat.IsEmpty() {
		nu, _ = bFlat.Dims()
	}

	l, err := NewLinearizer(nx, nu, n)
	if err != nil {
		return nil, err
	}

	return l.Linearize(aFlat, bFlat, bArr, z, u)
}
