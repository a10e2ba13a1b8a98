package bilinear

import (
	"fmt"

	mpc "github.com/milosgajdos/go-mpc"
	"github.com/milosgajdos/go-mpc/config"
	"github.com/milosgajdos/go-mpc/matrix"
	"github.com/milosgajdos/go-mpc/scatter"
	"gonum.org/v1/gonum/mat"
)

var _ mpc.Controller = (*Controller)(nil)

// Controller is bilinear MPC controller.
// It relinearizes bilinear dynamics around the predicted trajectory of base
// and writes the linearization into the base QP constraint data.
type Controller struct {
	// base is the receding horizon QP machinery
	base mpc.Base
	// dyn is the bilinear dynamics model
	dyn mpc.Dynamics
	// cfg is controller configuration
	cfg *config.Config
	// tag identifies the problem size
	tag string
	// aFlat is column-major flattened A
	aFlat *mat.VecDense
	// bFlat rows are column-major flattened B_i
	bFlat *mat.Dense
	// bArr is [B_0; ...; B_{nu-1}]^T
	bArr *mat.Dense
	// lin computes linearizations
	lin *Linearizer
	// aTable and bTable scatter A-blocks and B-blocks into constraint data
	aTable *scatter.Table
	bTable *scatter.Table
}

// New creates new bilinear MPC controller and returns it.
// It accepts the following parameters:
//   - base: receding horizon QP machinery owning trajectory and constraint buffers
//   - dyn:  bilinear dynamics model
//   - cfg:  controller configuration; defaults are used if nil
//
// It returns error if either of the following conditions is met:
//   - base and dyn dimensions disagree or cfg horizon differs from base horizon
//   - cfg is invalid for the model dimensions
//   - base constraint index sets do not match the problem size
func New(base mpc.Base, dyn mpc.Dynamics, cfg *config.Config) (*Controller, error) {
	if base == nil || dyn == nil {
		return nil, fmt.Errorf("base and dynamics must be defined for a controller")
	}

	nx, nu, n := base.Dims()
	dx, du, ny := dyn.SystemDims()
	if nx != dx || nu != du {
		return nil, fmt.Errorf("%w: model dimensions [nx=%d nu=%d] do not match base [nx=%d nu=%d]", ErrShape, dx, du, nx, nu)
	}

	if cfg == nil {
		cfg = config.DefaultConfig()
		cfg.Horizon = n
	}

	if cfg.Horizon != n {
		return nil, fmt.Errorf("%w: config horizon %d does not match base horizon %d", ErrShape, cfg.Horizon, n)
	}

	if err := cfg.Validate(nu, ny); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	aFlat, bFlat, bArr, err := flatten(dyn, nx, nu)
	if err != nil {
		return nil, err
	}

	lin, err := NewLinearizer(nx, nu, n)
	if err != nil {
		return nil, err
	}

	aInds, bInds := base.ConstraintIndex()
	if len(aInds) != n*nx*nx || len(bInds) != n*nu*nx {
		return nil, fmt.Errorf("%w: constraint index sizes [%d, %d], expected [%d, %d]",
			ErrShape, len(aInds), len(bInds), n*nx*nx, n*nu*nx)
	}

	aTable, err := scatter.New(aInds)
	if err != nil {
		return nil, fmt.Errorf("invalid A-block index: %w", err)
	}

	bTable, err := scatter.New(bInds)
	if err != nil {
		return nil, fmt.Errorf("invalid B-block index: %w", err)
	}

	return &Controller{
		base:   base,
		dyn:    dyn,
		cfg:    cfg,
		tag:    fmt.Sprintf("knmpc_%d_%d_%d", nx, nu, n),
		aFlat:  aFlat,
		bFlat:  bFlat,
		bArr:   bArr,
		lin:    lin,
		aTable: aTable,
		bTable: bTable,
	}, nil
}

// flatten builds column-major model buffers from dyn.
func flatten(dyn mpc.Dynamics, nx, nu int) (*mat.VecDense, *mat.Dense, *mat.Dense, error) {
	a := dyn.SystemMatrix()
	if r, c := a.Dims(); r != nx || c != nx {
		return nil, nil, nil, fmt.Errorf("%w: system matrix is [%d x %d]", ErrShape, r, c)
	}
	aFlat := mat.NewVecDense(nx*nx, matrix.FlattenCol(a))

	out := dyn.OutputMatrix()
	if out == nil {
		return nil, nil, nil, fmt.Errorf("%w: output matrix is missing", ErrShape)
	}
	if _, cols := out.Dims(); cols != nx {
		return nil, nil, nil, fmt.Errorf("%w: output matrix has %d columns, expected %d", ErrShape, cols, nx)
	}

	bs := dyn.BilinearMatrices()
	if len(bs) != nu {
		return nil, nil, nil, fmt.Errorf("%w: %d bilinear matrices for %d inputs", ErrShape, len(bs), nu)
	}

	if nu == 0 {
		return aFlat, nil, nil, nil
	}

	bFlat := mat.NewDense(nu, nx*nx, nil)
	for i, b := range bs {
		if r, c := b.Dims(); r != nx || c != nx {
			return nil, nil, nil, fmt.Errorf("%w: bilinear matrix %d is [%d x %d]", ErrShape, i, r, c)
		}
		bFlat.SetRow(i, matrix.FlattenCol(b))
	}

	stack, err := matrix.Stack(bs...)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: %v", ErrShape, err)
	}
	bArr := mat.DenseCopyOf(stack.T())

	return aFlat, bFlat, bArr, nil
}

// Tag returns problem size tag.
func (c *Controller) Tag() string {
	return c.tag
}

// Dims returns lifted state length, input length and horizon length.
func (c *Controller) Dims() (nx, nu, n int) {
	return c.lin.Dims()
}

// Config returns controller configuration.
func (c *Controller) Config() *config.Config {
	return c.cfg
}

// Dynamics returns controller dynamics model.
func (c *Controller) Dynamics() mpc.Dynamics {
	return c.dyn
}

// UpdateConstraintMatrixData writes transition matrices aLst and input sensitivities bLst
// into the A-block and B-block positions of the base constraint data.
// It returns error if aLst or bLst length does not match the problem size.
func (c *Controller) UpdateConstraintMatrixData(aLst, bLst []float64) error {
	data := c.base.ConstraintData()

	if err := c.aTable.Check(data, aLst); err != nil {
		return fmt.Errorf("%w: A-block: %v", ErrShape, err)
	}

	if err := c.bTable.Check(data, bLst); err != nil {
		return fmt.Errorf("%w: B-block: %v", ErrShape, err)
	}

	// both checks passed so neither write can fail
	_ = c.aTable.Apply(data, aLst)
	_ = c.bTable.Apply(data, bLst)

	return nil
}

// UpdateLinearization linearizes dynamics around the base predicted trajectory,
// writes the defect vector into the base residual and returns flattened
// transition matrices and input sensitivities.
// The returned slices are overwritten by the next call.
// It returns error and leaves the residual intact if the base buffers have invalid dimensions.
func (c *Controller) UpdateLinearization() (aLst, bLst []float64, err error) {
	lin, err := c.lin.Linearize(c.aFlat, c.bFlat, c.bArr, c.base.ZInit(), c.base.UInit())
	if err != nil {
		return nil, nil, err
	}

	r := c.base.Residual()
	if len(r) != len(lin.R) {
		return nil, nil, fmt.Errorf("%w: residual length %d, expected %d", ErrShape, len(r), len(lin.R))
	}
	copy(r, lin.R)

	return lin.A, lin.B, nil
}

// Update runs one receding horizon linearization update: it relinearizes
// the dynamics and writes the result into the base constraint data.
func (c *Controller) Update() error {
	aLst, bLst, err := c.UpdateLinearization()
	if err != nil {
		return err
	}

	return c.UpdateConstraintMatrixData(aLst, bLst)
}

// StatePrediction returns the predicted state trajectory in physical units:
// (C * cur_z^T)^T passed through the inverse state standardizer if the model has one.
func (c *Controller) StatePrediction() (*mat.Dense, error) {
	z := c.base.CurZ()
	if z == nil {
		return nil, fmt.Errorf("no state prediction available")
	}

	nx, _, _ := c.Dims()
	if _, cols := z.Dims(); cols != nx {
		return nil, fmt.Errorf("%w: state prediction has %d columns, expected %d", ErrShape, cols, nx)
	}

	x := &mat.Dense{}
	x.Mul(z, c.dyn.OutputMatrix().T())

	if s := c.dyn.StateStandardizer(); s != nil {
		return s.InverseTransform(x)
	}

	return x, nil
}

// ControlPrediction returns the predicted control trajectory in physical units:
// cur_u passed through the inverse control standardizer if the model has one.
func (c *Controller) ControlPrediction() (*mat.Dense, error) {
	u := c.base.CurU()
	if u == nil {
		return nil, fmt.Errorf("no control prediction available")
	}

	if s := c.dyn.ControlStandardizer(); s != nil {
		return s.InverseTransform(u)
	}

	return mat.DenseCopyOf(u), nil
}
