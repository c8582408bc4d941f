package autograd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CoderZ865/WhyteBox/tensor"
)

func TestBackwardRequiresScalarRoot(t *testing.T) {
	vec, err := tensor.NewTensor([]int{2}, []float64{1, 2})
	require.NoError(t, err)
	vec.RequiresGrad = true
	assert.Error(t, Backward(vec))

	detached, err := tensor.NewTensor([]int{1}, []float64{1})
	require.NoError(t, err)
	assert.Error(t, Backward(detached))
}

func TestGradThroughChain(t *testing.T) {
	x, err := tensor.NewTensor([]int{4}, []float64{1, 2, 3, 4})
	require.NoError(t, err)
	x.RequiresGrad = true

	// d/dx mean(3x) = 3/4 everywhere
	scaled, err := tensor.ScaleTensor(x, 3)
	require.NoError(t, err)
	m, err := tensor.Mean(scaled)
	require.NoError(t, err)

	g, err := Grad(m, x)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.75, 0.75, 0.75, 0.75}, g.GetData())
	assert.False(t, g.RequiresGrad)
}

func TestGradClearsStaleGradient(t *testing.T) {
	x, err := tensor.NewTensor([]int{2}, []float64{1, 2})
	require.NoError(t, err)
	x.RequiresGrad = true

	first, err := tensor.Mean(x)
	require.NoError(t, err)
	g1, err := Grad(first, x)
	require.NoError(t, err)

	second, err := tensor.Mean(x)
	require.NoError(t, err)
	g2, err := Grad(second, x)
	require.NoError(t, err)

	// No accumulation across calls.
	assert.Equal(t, g1.GetData(), g2.GetData())
}

func TestGradWithoutPathFails(t *testing.T) {
	x, err := tensor.NewTensor([]int{2}, []float64{1, 2})
	require.NoError(t, err)
	x.RequiresGrad = true

	unrelated, err := tensor.NewTensor([]int{1}, []float64{5})
	require.NoError(t, err)
	unrelated.RequiresGrad = true

	_, err = Grad(unrelated, x)
	assert.Error(t, err)
}
