package noise

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestNewGaussian(t *testing.T) {
	assert := assert.New(t)

	mean := []float64{2, 3}
	cov := mat.NewSymDense(2, []float64{1, 0.1, 0.1, 1})

	g, err := NewGaussian(mean, cov)
	assert.NotNil(g)
	assert.NoError(err)

	// mismatched dimensions
	g, err = NewGaussian([]float64{1}, cov)
	assert.Nil(g)
	assert.Error(err)

	// not positive definite
	g, err = NewGaussian(mean, mat.NewSymDense(2, []float64{1, 2, 2, 1}))
	assert.Nil(g)
	assert.Error(err)
}

func TestGaussianMeanCov(t *testing.T) {
	assert := assert.New(t)

	mean := []float64{2, 3}
	cov := mat.NewSymDense(2, []float64{1, 0.1, 0.1, 1})

	g, err := NewGaussian(mean, cov)
	assert.NotNil(g)
	assert.NoError(err)

	gCov := g.Cov()
	assert.Equal(cov.SymmetricDim(), gCov.SymmetricDim())
	assert.True(mat.Equal(cov, gCov))
	assert.EqualValues(mean, g.Mean())

	// returned values are copies
	g.Mean()[0] = 100
	assert.EqualValues(mean, g.Mean())
}

func TestGaussianSample(t *testing.T) {
	assert := assert.New(t)

	mean := []float64{2, 3}
	cov := mat.NewSymDense(2, []float64{1, 0.1, 0.1, 1})

	g, err := NewGaussian(mean, cov)
	assert.NoError(err)

	sample := g.Sample()
	assert.Equal(len(mean), sample.Len())
}

func TestGaussianReset(t *testing.T) {
	assert := assert.New(t)

	mean := []float64{2, 3}
	cov := mat.NewSymDense(2, []float64{1, 0.1, 0.1, 1})

	g, err := NewGaussianWithSeed(mean, cov, 42)
	assert.NotNil(g)
	assert.NoError(err)

	sample1 := g.Sample()
	sample2 := g.Sample()
	assert.False(mat.Equal(sample1, sample2))

	// seeded noise restarts its sequence
	err = g.Reset()
	assert.NoError(err)
	assert.True(mat.Equal(sample1, g.Sample()))
}

func TestGaussianString(t *testing.T) {
	assert := assert.New(t)

	mean := []float64{2, 3}
	cov := mat.NewSymDense(2, []float64{1, 0.1, 0.1, 1})

	g, err := NewGaussian(mean, cov)
	assert.NoError(err)
	assert.Contains(g.String(), "Gaussian{\nMean=[2 3]\nCov=")
}
