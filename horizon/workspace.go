package horizon

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Workspace holds the receding horizon buffers of an MPC problem
// and the sparse constraint matrix of its dynamics and box constraints.
//
// Decision variables are ordered z_0..z_N followed by u_0..u_{N-1}.
// Constraint rows are the N dynamics blocks A_i*z_i + B_i*u_i - z_{i+1}
// followed by one box constraint row per variable.
// The constraint matrix is stored in compressed sparse column (CSC) format.
type Workspace struct {
	nx, nu, n int
	// zInit and uInit is the trajectory to linearize around
	zInit *mat.Dense
	uInit *mat.Dense
	// curZ and curU is the current optimized trajectory
	curZ *mat.Dense
	curU *mat.Dense
	// r is the dynamics defect vector
	r []float64
	// data, indices and indptr store constraint matrix in CSC format
	data    []float64
	indices []int
	indptr  []int
	// aInds and bInds are positions of A-block and B-block entries in data
	aInds []int
	bInds []int
}

// New creates new Workspace for nx lifted states, nu inputs and horizon n and returns it.
// It returns error if nx or n is not positive or nu is negative.
func New(nx, nu, n int) (*Workspace, error) {
	if nx <= 0 || nu < 0 || n <= 0 {
		return nil, fmt.Errorf("invalid workspace dimensions: nx=%d nu=%d N=%d", nx, nu, n)
	}

	w := &Workspace{
		nx:    nx,
		nu:    nu,
		n:     n,
		zInit: mat.NewDense(n+1, nx, nil),
		curZ:  mat.NewDense(n+1, nx, nil),
		r:     make([]float64, n*nx),
	}

	if nu > 0 {
		w.uInit = mat.NewDense(n, nu, nil)
		w.curU = mat.NewDense(n, nu, nil)
	}

	w.layout()

	return w, nil
}

// layout builds the CSC structure and the A-block and B-block index sets.
func (w *Workspace) layout() {
	nx, nu, n := w.nx, w.nu, w.n
	nz := (n + 1) * nx
	eq := n * nx

	w.indptr = append(w.indptr, 0)
	w.aInds = make([]int, n*nx*nx)
	w.bInds = make([]int, n*nu*nx)

	// state columns
	for i := 0; i <= n; i++ {
		for c := 0; c < nx; c++ {
			if i > 0 {
				w.push((i-1)*nx+c, -1.0)
			}
			if i < n {
				for r := 0; r < nx; r++ {
					w.aInds[i*nx*nx+c*nx+r] = len(w.data)
					w.push(i*nx+r, 0.0)
				}
			}
			w.push(eq+i*nx+c, 1.0)
			w.indptr = append(w.indptr, len(w.data))
		}
	}

	// control columns
	for i := 0; i < n; i++ {
		for j := 0; j < nu; j++ {
			for r := 0; r < nx; r++ {
				w.bInds[i*nu*nx+j*nx+r] = len(w.data)
				w.push(i*nx+r, 0.0)
			}
			w.push(eq+nz+i*nu+j, 1.0)
			w.indptr = append(w.indptr, len(w.data))
		}
	}
}

func (w *Workspace) push(row int, val float64) {
	w.indices = append(w.indices, row)
	w.data = append(w.data, val)
}

// Dims returns lifted state length, input length and horizon length.
func (w *Workspace) Dims() (nx, nu, n int) {
	return w.nx, w.nu, w.n
}

// Shape returns constraint matrix dimensions.
func (w *Workspace) Shape() (rows, cols int) {
	vars := (w.n+1)*w.nx + w.n*w.nu
	return w.n*w.nx + vars, vars
}

// ZInit returns the state trajectory to linearize around.
func (w *Workspace) ZInit() *mat.Dense {
	return w.zInit
}

// UInit returns the control trajectory to linearize around.
func (w *Workspace) UInit() *mat.Dense {
	return w.uInit
}

// Residual returns dynamics defect vector.
func (w *Workspace) Residual() []float64 {
	return w.r
}

// ConstraintData returns constraint matrix data.
func (w *Workspace) ConstraintData() []float64 {
	return w.data
}

// ConstraintStructure returns CSC row indices and column pointers of the constraint matrix.
func (w *Workspace) ConstraintStructure() (indices, indptr []int) {
	return w.indices, w.indptr
}

// ConstraintIndex returns positions of A-block and B-block entries in constraint data.
func (w *Workspace) ConstraintIndex() (a, b []int) {
	return w.aInds, w.bInds
}

// Constraint returns dense copy of the constraint matrix.
func (w *Workspace) Constraint() *mat.Dense {
	rows, cols := w.Shape()
	m := mat.NewDense(rows, cols, nil)
	for c := 0; c < cols; c++ {
		for k := w.indptr[c]; k < w.indptr[c+1]; k++ {
			m.Set(w.indices[k], c, w.data[k])
		}
	}

	return m
}

// CurZ returns current optimized state trajectory.
func (w *Workspace) CurZ() *mat.Dense {
	return w.curZ
}

// CurU returns current optimized control trajectory.
func (w *Workspace) CurU() *mat.Dense {
	return w.curU
}

// SetSolution installs optimized trajectory z, u as the current prediction
// and as the next linearization point.
// It returns error if z or u dimensions do not match the workspace.
func (w *Workspace) SetSolution(z, u mat.Matrix) error {
	if z == nil {
		return fmt.Errorf("invalid state trajectory: %v", z)
	}

	if r, c := z.Dims(); r != w.n+1 || c != w.nx {
		return fmt.Errorf("invalid state trajectory dimensions: [%d x %d]", r, c)
	}

	if w.nu > 0 {
		if u == nil {
			return fmt.Errorf("invalid control trajectory: %v", u)
		}
		if r, c := u.Dims(); r != w.n || c != w.nu {
			return fmt.Errorf("invalid control trajectory dimensions: [%d x %d]", r, c)
		}
	}

	w.curZ.Copy(z)
	w.zInit.Copy(z)
	if w.nu > 0 {
		w.curU.Copy(u)
		w.uInit.Copy(u)
	}

	return nil
}

// Shift moves the linearization point one step forward in time.
// The last state and control are repeated.
func (w *Workspace) Shift() {
	shift(w.zInit.RawMatrix().Data, w.nx)
	if w.nu > 0 {
		shift(w.uInit.RawMatrix().Data, w.nu)
	}
}

func shift(data []float64, width int) {
	copy(data[:len(data)-width], data[width:])
}
