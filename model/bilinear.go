package model

import (
	"fmt"
	"strings"

	mpc "github.com/milosgajdos/go-mpc"
	"github.com/milosgajdos/matrix"
	"gonum.org/v1/gonum/mat"
)

// Bilinear is a lifted bilinear model of a dynamical system
type Bilinear struct {
	// A is lifted state matrix
	A *mat.Dense
	// B are control direction matrices, one per input
	B []*mat.Dense
	// C maps lifted state to physical state
	C *mat.Dense
	// StandardizerX is optional state standardizer
	StandardizerX mpc.Standardizer
	// StandardizerU is optional control standardizer
	StandardizerU mpc.Standardizer
}

// NewBilinear creates new bilinear model and returns it.
// It returns error if either of the following conditions is met:
//   - A is nil or not square
//   - any of B is not the same size as A
//   - C column count does not match A
func NewBilinear(A *mat.Dense, B []*mat.Dense, C *mat.Dense) (*Bilinear, error) {
	if A == nil || A.IsEmpty() {
		return nil, fmt.Errorf("system matrix must be defined for a model")
	}

	nx, cols := A.Dims()
	if nx != cols {
		return nil, fmt.Errorf("invalid system matrix dimensions: [%d x %d]", nx, cols)
	}

	bs := make([]*mat.Dense, len(B))
	for i, b := range B {
		if b == nil {
			return nil, fmt.Errorf("bilinear matrix %d is nil", i)
		}
		rows, cols := b.Dims()
		if rows != nx || cols != nx {
			return nil, fmt.Errorf("invalid bilinear matrix %d dimensions: [%d x %d]", i, rows, cols)
		}
		bs[i] = mat.DenseCopyOf(b)
	}

	if C == nil {
		eye, err := matrix.NewDenseValIdentity(nx, 1.0)
		if err != nil {
			return nil, fmt.Errorf("failed to create output matrix: %v", err)
		}
		C = mat.DenseCopyOf(eye)
	}

	if _, cols := C.Dims(); cols != nx {
		rows, _ := C.Dims()
		return nil, fmt.Errorf("invalid output matrix dimensions: [%d x %d]", rows, cols)
	}

	return &Bilinear{
		A: mat.DenseCopyOf(A),
		B: bs,
		C: mat.DenseCopyOf(C),
	}, nil
}

// SystemDims returns lifted state length (nx), input vector length (nu)
// and physical state length (ny).
func (b *Bilinear) SystemDims() (nx, nu, ny int) {
	nx, _ = b.A.Dims()
	ny, _ = b.C.Dims()

	return nx, len(b.B), ny
}

// Transition returns the instantaneous state transition matrix A + sum_i u_i*B_i.
// It returns error if u length does not match the number of inputs.
func (b *Bilinear) Transition(u mat.Vector) (*mat.Dense, error) {
	nu := len(b.B)
	if (u == nil && nu != 0) || (u != nil && u.Len() != nu) {
		return nil, fmt.Errorf("invalid input vector")
	}

	a := mat.DenseCopyOf(b.A)
	tmp := &mat.Dense{}
	for i, bi := range b.B {
		tmp.Scale(u.AtVec(i), bi)
		a.Add(a, tmp)
	}

	return a, nil
}

// Propagate propagates lifted state z to the next step given input u.
func (b *Bilinear) Propagate(z, u mat.Vector) (mat.Vector, error) {
	nx, _, _ := b.SystemDims()
	if z.Len() != nx {
		return nil, fmt.Errorf("invalid state vector")
	}

	a, err := b.Transition(u)
	if err != nil {
		return nil, err
	}

	out := mat.NewVecDense(nx, nil)
	out.MulVec(a, z)

	return out, nil
}

// Observe maps lifted state z to physical state.
func (b *Bilinear) Observe(z mat.Vector) (mat.Vector, error) {
	nx, _, ny := b.SystemDims()
	if z.Len() != nx {
		return nil, fmt.Errorf("invalid state vector")
	}

	out := mat.NewVecDense(ny, nil)
	out.MulVec(b.C, z)

	return out, nil
}

// SystemMatrix returns lifted state matrix
func (b *Bilinear) SystemMatrix() mat.Matrix {
	return b.A
}

// BilinearMatrices returns control direction matrices
func (b *Bilinear) BilinearMatrices() []mat.Matrix {
	ms := make([]mat.Matrix, len(b.B))
	for i := range b.B {
		ms[i] = b.B[i]
	}

	return ms
}

// OutputMatrix returns lifted-to-physical state matrix
func (b *Bilinear) OutputMatrix() mat.Matrix {
	return b.C
}

// StateStandardizer returns state standardizer
func (b *Bilinear) StateStandardizer() mpc.Standardizer {
	return b.StandardizerX
}

// ControlStandardizer returns control standardizer
func (b *Bilinear) ControlStandardizer() mpc.Standardizer {
	return b.StandardizerU
}

// String implements the Stringer interface.
func (b *Bilinear) String() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Bilinear{\nA=%v\n", matrix.Format(b.A))
	for i := range b.B {
		fmt.Fprintf(&sb, "B%d=%v\n", i, matrix.Format(b.B[i]))
	}
	fmt.Fprintf(&sb, "C=%v\n}", matrix.Format(b.C))

	return sb.String()
}
