package observer

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Estimate is lifted state estimate
type Estimate struct {
	// val is estimated lifted state
	val *mat.VecDense
	// cov is estimate covariance
	cov *mat.SymDense
}

// NewEstimate returns new estimate of val with covariance cov.
// It returns error if val and cov dimensions do not match.
func NewEstimate(val mat.Vector, cov mat.Symmetric) (*Estimate, error) {
	if val == nil || cov == nil {
		return nil, fmt.Errorf("invalid estimate: val=%v cov=%v", val, cov)
	}

	if n, c := val.Len(), cov.SymmetricDim(); n != c {
		return nil, fmt.Errorf("invalid dimensions. Val: %d, Cov: %d x %d", n, c, c)
	}

	v := &mat.VecDense{}
	v.CloneFromVec(val)

	c := mat.NewSymDense(cov.SymmetricDim(), nil)
	c.CopySym(cov)

	return &Estimate{
		val: v,
		cov: c,
	}, nil
}

// Val returns estimated lifted state
func (e *Estimate) Val() mat.Vector {
	v := &mat.VecDense{}
	v.CloneFromVec(e.val)

	return v
}

// Cov returns covariance estimate
func (e *Estimate) Cov() mat.Symmetric {
	cov := mat.NewSymDense(e.cov.SymmetricDim(), nil)
	cov.CopySym(e.cov)

	return cov
}
