package observer

import (
	"fmt"

	mpc "github.com/milosgajdos/go-mpc"
	"gonum.org/v1/gonum/mat"
)

// Model is a lifted model whose transition matrix depends on the applied input
type Model interface {
	// SystemDims returns lifted state, input and output vector lengths
	SystemDims() (nx, nu, ny int)
	// Transition returns the lifted transition matrix for input u
	Transition(u mat.Vector) (*mat.Dense, error)
	// OutputMatrix returns the lifted-to-physical state map
	OutputMatrix() mat.Matrix
}

// KF is Kalman Filter of the lifted state.
// Bilinear dynamics are linear in the lifted state once the input is known,
// so every prediction uses the transition matrix of the applied input.
type KF struct {
	// m is KF system model
	m Model
	// q is state noise a.k.a. process noise
	q mpc.Noise
	// r is output noise a.k.a. measurement noise
	r mpc.Noise
	// p is the KF covariance matrix
	p *mat.SymDense
	// pNext is the KF predicted covariance matrix
	pNext *mat.SymDense
	// inn is innovation vector
	inn *mat.VecDense
	// k is Kalman gain
	k *mat.Dense
}

// New creates new KF and returns it.
// It accepts the following parameters:
//   - m:    lifted dynamical system model
//   - init: initial estimate
//   - q:    process noise; nil means no noise
//   - r:    measurement noise; nil means no noise
//
// It returns error if either of the following conditions is met:
//   - invalid model is given: model dimensions must be positive integers
//   - init dimension does not match the model
//   - invalid state or output noise is given: noise covariance must either be nil or match the model dimensions
func New(m Model, init *Estimate, q, r mpc.Noise) (*KF, error) {
	if m == nil || init == nil {
		return nil, fmt.Errorf("model and initial estimate must be defined for a filter")
	}

	nx, _, ny := m.SystemDims()
	if nx <= 0 || ny <= 0 {
		return nil, fmt.Errorf("invalid model dimensions: [%d x %d]", nx, ny)
	}

	if n := init.cov.SymmetricDim(); n != nx {
		return nil, fmt.Errorf("invalid initial estimate dimension: %d != %d", n, nx)
	}

	if q != nil && q.Cov().SymmetricDim() != nx {
		return nil, fmt.Errorf("invalid state noise dimension: %d != %d", q.Cov().SymmetricDim(), nx)
	}

	if r != nil && r.Cov().SymmetricDim() != ny {
		return nil, fmt.Errorf("invalid output noise dimension: %d != %d", r.Cov().SymmetricDim(), ny)
	}

	rows, cols := m.OutputMatrix().Dims()
	if rows != ny || cols != nx {
		return nil, fmt.Errorf("invalid observation matrix dimensions: [%d x %d]", rows, cols)
	}

	// initialize covariance matrix to initial condition covariance
	p := mat.NewSymDense(nx, nil)
	p.CopySym(init.cov)

	// Update without a preceding Predict corrects the initial estimate
	pNext := mat.NewSymDense(nx, nil)
	pNext.CopySym(init.cov)

	return &KF{
		m:     m,
		q:     q,
		r:     r,
		p:     p,
		pNext: pNext,
		inn:   mat.NewVecDense(ny, nil),
		k:     mat.NewDense(nx, ny, nil),
	}, nil
}

// Predict propagates lifted state z with input u to the next step and returns its estimate.
// It returns error if it fails to build the transition matrix for u.
func (k *KF) Predict(z, u mat.Vector) (*Estimate, error) {
	nx, _, _ := k.m.SystemDims()
	if z == nil || z.Len() != nx {
		return nil, fmt.Errorf("invalid state supplied: %v", z)
	}

	a, err := k.m.Transition(u)
	if err != nil {
		return nil, fmt.Errorf("failed to build transition matrix: %w", err)
	}

	zNext := mat.NewVecDense(nx, nil)
	zNext.MulVec(a, z)

	cov := &mat.Dense{}
	cov.Mul(a, k.p)
	cov.Mul(cov, a.T())

	if k.q != nil {
		cov.Add(cov, k.q.Cov())
	}

	// update KF predicted covariance matrix
	setSym(k.pNext, cov)

	return NewEstimate(zNext, k.pNext)
}

// Update corrects predicted lifted state z using the measurement y and returns corrected estimate.
// It uses the covariance of the last Predict, or the initial covariance if Predict was never called.
// It returns error if y has invalid dimension
// or the innovation covariance is singular.
func (k *KF) Update(z, y mat.Vector) (*Estimate, error) {
	nx, _, ny := k.m.SystemDims()

	if z == nil || z.Len() != nx {
		return nil, fmt.Errorf("invalid state supplied: %v", z)
	}

	if y == nil || y.Len() != ny {
		return nil, fmt.Errorf("invalid measurement supplied: %v", y)
	}

	c := k.m.OutputMatrix()

	// P*C'
	pxy := mat.NewDense(nx, ny, nil)
	pxy.Mul(k.pNext, c.T())

	// C*P*C' + R
	pyy := mat.NewDense(ny, ny, nil)
	pyy.Mul(c, pxy)
	if k.r != nil {
		pyy.Add(pyy, k.r.Cov())
	}

	// calculate Kalman gain
	pyyInv := &mat.Dense{}
	if err := pyyInv.Inverse(pyy); err != nil {
		return nil, fmt.Errorf("failed to calculate Pyy inverse: %w", err)
	}
	gain := &mat.Dense{}
	gain.Mul(pxy, pyyInv)

	// innovation vector
	yPred := mat.NewVecDense(ny, nil)
	yPred.MulVec(c, z)
	inn := mat.NewVecDense(ny, nil)
	inn.SubVec(y, yPred)

	// correct state z
	zCorr := mat.NewVecDense(nx, nil)
	zCorr.MulVec(gain, inn)
	zCorr.AddVec(zCorr, z)

	// Joseph form update
	a := &mat.Dense{}
	a.Mul(gain, c)
	a.Scale(-1, a)
	for i := 0; i < nx; i++ {
		a.Set(i, i, 1.0+a.At(i, i))
	}

	pCorr := &mat.Dense{}
	pCorr.Mul(a, k.pNext)
	pCorr.Mul(pCorr, a.T())

	if k.r != nil {
		// K*R*K'
		kr := &mat.Dense{}
		kr.Mul(gain, k.r.Cov())
		krk := &mat.Dense{}
		krk.Mul(kr, gain.T())
		pCorr.Add(pCorr, krk)
	}

	k.inn.CopyVec(inn)
	k.k.Copy(gain)
	setSym(k.p, pCorr)

	return NewEstimate(zCorr, k.p)
}

// Run runs one step of KF for given lifted state z, input u and measurement y.
// It returns the corrected estimate of the next lifted state.
func (k *KF) Run(z, u, y mat.Vector) (*Estimate, error) {
	pred, err := k.Predict(z, u)
	if err != nil {
		return nil, err
	}

	return k.Update(pred.val, y)
}

// Cov returns KF covariance
func (k *KF) Cov() mat.Symmetric {
	cov := mat.NewSymDense(k.p.SymmetricDim(), nil)
	cov.CopySym(k.p)

	return cov
}

// SetCov sets KF covariance matrix to cov.
// It returns error if either cov is nil or its dimensions are not the same as KF covariance dimensions.
func (k *KF) SetCov(cov mat.Symmetric) error {
	if cov == nil {
		return fmt.Errorf("invalid covariance matrix: %v", cov)
	}

	if cov.SymmetricDim() != k.p.SymmetricDim() {
		return fmt.Errorf("invalid covariance matrix dims: [%d x %d]", cov.SymmetricDim(), cov.SymmetricDim())
	}

	k.p.CopySym(cov)

	return nil
}

// Gain returns Kalman gain
func (k *KF) Gain() mat.Matrix {
	gain := &mat.Dense{}
	gain.CloneFrom(k.k)

	return gain
}

// Innovation returns the last measurement innovation
func (k *KF) Innovation() mat.Vector {
	inn := &mat.VecDense{}
	inn.CloneFromVec(k.inn)

	return inn
}

// setSym stores the symmetric part of m in s
func setSym(s *mat.SymDense, m mat.Matrix) {
	n := s.SymmetricDim()
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			s.SetSym(i, j, 0.5*(m.At(i, j)+m.At(j, i)))
		}
	}
}
