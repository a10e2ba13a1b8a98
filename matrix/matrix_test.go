package matrix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestColSums(t *testing.T) {
	assert := assert.New(t)

	data := []float64{1.2, 3.4, 4.5, 6.7, 8.9, 10.0}
	colSums := []float64{14.6, 20.1}
	delta := 0.001

	m := mat.NewDense(3, 2, data)
	assert.NotNil(m)

	resCols := ColSums(m)
	assert.NotNil(resCols)
	assert.InDeltaSlice(colSums, resCols, delta)
	// should panic
	assert.Panics(func() { ColSums(nil) })
}

func TestFlattenCol(t *testing.T) {
	assert := assert.New(t)

	m := mat.NewDense(2, 3, []float64{
		1, 2, 3,
		4, 5, 6,
	})

	assert.Equal([]float64{1, 4, 2, 5, 3, 6}, FlattenCol(m))
	assert.Equal([]float64{1, 2, 3, 4, 5, 6}, FlattenCol(m.T()))
}

func TestReshapeCol(t *testing.T) {
	assert := assert.New(t)

	m := mat.NewDense(3, 2, []float64{
		1.5, -2.0,
		0.3, 4.0,
		7.0, 0.1,
	})

	// flatten -> reshape round trip
	r, err := ReshapeCol(3, 2, FlattenCol(m))
	assert.NoError(err)
	assert.True(mat.Equal(m, r))
	assert.True(EqualCol(m, FlattenCol(r), 0))

	r, err = ReshapeCol(2, 2, []float64{1, 2, 3})
	assert.Nil(r)
	assert.Error(err)

	r, err = ReshapeCol(0, 2, nil)
	assert.Nil(r)
	assert.Error(err)
}

func TestStack(t *testing.T) {
	assert := assert.New(t)

	a := mat.NewDense(1, 2, []float64{1, 2})
	b := mat.NewDense(2, 2, []float64{3, 4, 5, 6})

	s, err := Stack(a, b)
	assert.NoError(err)
	assert.True(mat.Equal(mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6}), s))

	s, err = Stack()
	assert.Nil(s)
	assert.Error(err)

	s, err = Stack(a, mat.NewDense(1, 3, nil))
	assert.Nil(s)
	assert.Error(err)
}

func TestEqualCol(t *testing.T) {
	assert := assert.New(t)

	m := mat.NewDense(2, 2, []float64{1, 2, 3, 4})

	assert.True(EqualCol(m, []float64{1, 3, 2, 4}, 1e-12))
	assert.False(EqualCol(m, []float64{1, 2, 3, 4}, 1e-12))
	assert.False(EqualCol(m, []float64{1, 3, 2}, 1e-12))
}
