package bilinear

import (
	"errors"
	"math"
	"os"
	"testing"

	"github.com/milosgajdos/go-mpc/matrix"
	"github.com/milosgajdos/go-mpc/model"
	"github.com/milosgajdos/go-mpc/sim"
	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

const (
	nx = 3
	nu = 2
	n  = 5
)

var (
	A, C   *mat.Dense
	B      []*mat.Dense
	bm     *model.Bilinear
	zInit  *mat.Dense
	uInit  *mat.Dense
	aFlat  *mat.VecDense
	bFlat  *mat.Dense
	bArr   *mat.Dense
	almost = 1e-12
)

func setup() {
	A = mat.NewDense(nx, nx, []float64{
		0.9, 0.1, 0.0,
		-0.2, 0.8, 0.3,
		0.05, 0.0, 0.7,
	})
	B = []*mat.Dense{
		mat.NewDense(nx, nx, []float64{
			0.1, 0.0, 0.2,
			0.0, -0.1, 0.0,
			0.3, 0.0, 0.0,
		}),
		mat.NewDense(nx, nx, []float64{
			0.0, 0.05, 0.0,
			0.1, 0.0, -0.2,
			0.0, 0.4, 0.1,
		}),
	}
	C = mat.NewDense(2, nx, []float64{
		1.0, 0.0, 0.0,
		0.0, 1.0, 1.0,
	})

	bm, _ = model.NewBilinear(A, B, C)

	zInit = mat.NewDense(n+1, nx, nil)
	zInit.Apply(func(i, j int, _ float64) float64 { return math.Sin(float64(i+2*j) + 0.3) }, zInit)
	uInit = mat.NewDense(n, nu, nil)
	uInit.Apply(func(i, j int, _ float64) float64 { return math.Cos(float64(3*i+j)) }, uInit)

	aFlat, bFlat, bArr, _ = flatten(bm, nx, nu)
}

func TestMain(m *testing.M) {
	// set up tests
	setup()
	// run the tests
	retCode := m.Run()
	// call with result of m.Run()
	os.Exit(retCode)
}

func TestFlatten(t *testing.T) {
	assert := assert.New(t)

	// A_flat is column-major
	assert.Equal(nx*nx, aFlat.Len())
	assert.True(matrix.EqualCol(A, aFlat.RawVector().Data, 0))

	// B_flat rows are column-major B_i
	r, c := bFlat.Dims()
	assert.Equal(nu, r)
	assert.Equal(nx*nx, c)
	for i := range B {
		assert.True(matrix.EqualCol(B[i], bFlat.RawRowView(i), 0))
	}

	// B_arr is [B_0; B_1]^T
	r, c = bArr.Dims()
	assert.Equal(nx, r)
	assert.Equal(nu*nx, c)
	for j := range B {
		assert.True(mat.Equal(B[j].T(), bArr.Slice(0, nx, j*nx, (j+1)*nx)))
	}
}

func TestLinearizeShape(t *testing.T) {
	assert := assert.New(t)

	lin, err := Linearize(aFlat, bFlat, bArr, zInit, uInit, nx, n)
	assert.NoError(err)
	assert.Len(lin.A, 45)
	assert.Len(lin.B, 30)
	assert.Len(lin.R, 15)
}

func TestLinearizeTransition(t *testing.T) {
	assert := assert.New(t)

	lin, err := Linearize(aFlat, bFlat, bArr, zInit, uInit, nx, n)
	assert.NoError(err)

	for i := 0; i < n; i++ {
		// flatten -> reshape round trip of every step
		ai, err := matrix.ReshapeCol(nx, nx, lin.A[i*nx*nx:(i+1)*nx*nx])
		assert.NoError(err)

		exp, err := bm.Transition(uInit.RowView(i))
		assert.NoError(err)
		assert.True(mat.EqualApprox(exp, ai, almost), "step %d", i)
	}
}

func TestLinearizeSensitivity(t *testing.T) {
	assert := assert.New(t)

	lin, err := Linearize(aFlat, bFlat, bArr, zInit, uInit, nx, n)
	assert.NoError(err)

	bz := mat.NewVecDense(nx, nil)
	for i := 0; i < n; i++ {
		// step i holds nx x nu matrix [B_0*z_i B_1*z_i] in column-major order
		bi, err := matrix.ReshapeCol(nx, nu, lin.B[i*nu*nx:(i+1)*nu*nx])
		assert.NoError(err)

		for j := range B {
			bz.MulVec(B[j], zInit.RowView(i))
			assert.True(mat.EqualApprox(bz, bi.ColView(j), almost), "step %d input %d", i, j)
		}
	}
}

func TestLinearizeResidual(t *testing.T) {
	assert := assert.New(t)

	lin, err := Linearize(aFlat, bFlat, bArr, zInit, uInit, nx, n)
	assert.NoError(err)

	next := mat.NewVecDense(nx, nil)
	for i := 0; i < n; i++ {
		ai, err := matrix.ReshapeCol(nx, nx, lin.A[i*nx*nx:(i+1)*nx*nx])
		assert.NoError(err)

		next.MulVec(ai, zInit.RowView(i))
		next.SubVec(next, zInit.RowView(i+1))
		assert.InDeltaSlice(next.RawVector().Data, lin.R[i*nx:(i+1)*nx], almost, "step %d", i)
	}

	// exact rollout has no defect
	z, err := sim.Rollout(bm, zInit.RowView(0), uInit, n, nil)
	assert.NoError(err)

	lin, err = Linearize(aFlat, bFlat, bArr, z, uInit, nx, n)
	assert.NoError(err)
	assert.InDelta(0.0, mat.Norm(mat.NewVecDense(len(lin.R), lin.R), 2), 1e-10)
}

func TestLinearizeNoInputs(t *testing.T) {
	assert := assert.New(t)

	lin, err := Linearize(aFlat, nil, nil, zInit, nil, nx, n)
	assert.NoError(err)
	assert.Len(lin.A, n*nx*nx)
	assert.Empty(lin.B)
	assert.Len(lin.R, n*nx)

	for i := 0; i < n; i++ {
		assert.Equal(aFlat.RawVector().Data, lin.A[i*nx*nx:(i+1)*nx*nx])
	}

	// inputs are rejected when the model has none
	lin, err = Linearize(aFlat, nil, nil, zInit, uInit, nx, n)
	assert.Nil(lin)
	assert.True(errors.Is(err, ErrShape))
}

func TestLinearizeIdentity(t *testing.T) {
	assert := assert.New(t)

	eye := mat.NewDense(2, 2, []float64{1, 0, 0, 1})
	m, err := model.NewBilinear(eye, []*mat.Dense{mat.NewDense(2, 2, nil)}, nil)
	assert.NoError(err)

	af, bf, ba, err := flatten(m, 2, 1)
	assert.NoError(err)

	z := mat.NewDense(2, 2, []float64{1, 0, 1, 0})
	u := mat.NewDense(1, 1, []float64{0})

	lin, err := Linearize(af, bf, ba, z, u, 2, 1)
	assert.NoError(err)
	assert.Equal([]float64{1, 0, 0, 1}, lin.A)
	assert.Equal([]float64{0, 0}, lin.B)
	assert.Equal([]float64{0, 0}, lin.R)
}

func TestLinearizeShapeErrors(t *testing.T) {
	assert := assert.New(t)

	tests := map[string]func() (*Linearization, error){
		"A_flat": func() (*Linearization, error) {
			return Linearize(mat.NewVecDense(4, nil), bFlat, bArr, zInit, uInit, nx, n)
		},
		"B_flat": func() (*Linearization, error) {
			return Linearize(aFlat, mat.NewDense(nu, 4, nil), bArr, zInit, uInit, nx, n)
		},
		"B_arr": func() (*Linearization, error) {
			return Linearize(aFlat, bFlat, mat.NewDense(nx, nx, nil), zInit, uInit, nx, n)
		},
		"B_arr missing": func() (*Linearization, error) {
			return Linearize(aFlat, bFlat, nil, zInit, uInit, nx, n)
		},
		"z_init rows": func() (*Linearization, error) {
			return Linearize(aFlat, bFlat, bArr, mat.NewDense(n, nx, nil), uInit, nx, n)
		},
		"z_init cols": func() (*Linearization, error) {
			return Linearize(aFlat, bFlat, bArr, mat.NewDense(n+1, 2, nil), uInit, nx, n)
		},
		"u_init": func() (*Linearization, error) {
			return Linearize(aFlat, bFlat, bArr, zInit, mat.NewDense(n, 1, nil), nx, n)
		},
		"u_init missing": func() (*Linearization, error) {
			return Linearize(aFlat, bFlat, bArr, zInit, nil, nx, n)
		},
		"horizon": func() (*Linearization, error) {
			return Linearize(aFlat, bFlat, bArr, zInit, uInit, nx, 0)
		},
	}

	for name, fn := range tests {
		lin, err := fn()
		assert.Nil(lin, name)
		assert.True(errors.Is(err, ErrShape), name)
	}
}

func TestLinearizerReuse(t *testing.T) {
	assert := assert.New(t)

	l, err := NewLinearizer(nx, nu, n)
	assert.NoError(err)

	dx, du, dn := l.Dims()
	assert.Equal(nx, dx)
	assert.Equal(nu, du)
	assert.Equal(n, dn)

	exp, err := Linearize(aFlat, bFlat, bArr, zInit, uInit, nx, n)
	assert.NoError(err)

	for k := 0; k < 2; k++ {
		lin, err := l.Linearize(aFlat, bFlat, bArr, zInit, uInit)
		assert.NoError(err)
		assert.InDeltaSlice(exp.A, lin.A, almost)
		assert.InDeltaSlice(exp.B, lin.B, almost)
		assert.InDeltaSlice(exp.R, lin.R, almost)
	}

	l, err = NewLinearizer(nx, -1, n)
	assert.Nil(l)
	assert.True(errors.Is(err, ErrShape))
}
