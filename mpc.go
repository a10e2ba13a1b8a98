package mpc

import "gonum.org/v1/gonum/mat"

// Standardizer is a reversible scaling of states or controls
type Standardizer interface {
	// Transform maps physical values stored in rows of x to solver space
	Transform(x mat.Matrix) (*mat.Dense, error)
	// InverseTransform maps solver space values stored in rows of x back to physical units
	InverseTransform(x mat.Matrix) (*mat.Dense, error)
}

// Dynamics is a lifted bilinear model of a dynamical system:
//
//	z[k+1] = (A + sum_i u[k,i]*B_i) * z[k]
//	x[k]   = C * z[k]
type Dynamics interface {
	// SystemDims returns lifted state length (nx), input vector length (nu)
	// and physical state length (ny).
	SystemDims() (nx, nu, ny int)
	// SystemMatrix returns the fixed lifted state matrix A
	SystemMatrix() mat.Matrix
	// BilinearMatrices returns the control direction matrices B_i
	BilinearMatrices() []mat.Matrix
	// OutputMatrix returns the lifted-to-physical state map C
	OutputMatrix() mat.Matrix
	// StateStandardizer returns state standardizer or nil
	StateStandardizer() Standardizer
	// ControlStandardizer returns control standardizer or nil
	ControlStandardizer() Standardizer
}

// Base is the receding horizon QP machinery a controller is composed with.
// It owns the trajectory buffers and the QP constraint data.
type Base interface {
	// Dims returns lifted state length, input length and horizon length
	Dims() (nx, nu, n int)
	// ZInit returns the (N+1) x nx state trajectory to linearize around
	ZInit() *mat.Dense
	// UInit returns the N x nu control trajectory to linearize around.
	// It returns nil when nu is 0.
	UInit() *mat.Dense
	// Residual returns the preallocated N*nx defect vector
	Residual() []float64
	// ConstraintData returns the QP constraint matrix data array
	ConstraintData() []float64
	// ConstraintIndex returns positions in ConstraintData reserved
	// for the A-block and B-block entries of the dynamics constraints
	ConstraintIndex() (a, b []int)
	// CurZ returns the current optimized (N+1) x nx lifted state prediction
	CurZ() *mat.Dense
	// CurU returns the current optimized N x nu control prediction
	CurU() *mat.Dense
}

// Controller is a model predictive controller
type Controller interface {
	// Update relinearizes the dynamics around the current trajectory
	// and writes the result into the QP constraint data
	Update() error
	// StatePrediction returns predicted states in physical units
	StatePrediction() (*mat.Dense, error)
	// ControlPrediction returns predicted controls in physical units
	ControlPrediction() (*mat.Dense, error)
}

// Noise is dynamical system noise
type Noise interface {
	// Mean returns noise mean
	Mean() []float64
	// Cov returns covariance matrix of the noise
	Cov() mat.Symmetric
	// Sample returns a sample of the noise
	Sample() mat.Vector
	// Reset resets the noise
	Reset() error
}
