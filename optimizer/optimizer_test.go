package optimizer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CoderZ865/WhyteBox/tensor"
)

func param(t *testing.T, data, grad []float64) *tensor.Tensor {
	t.Helper()
	p, err := tensor.NewTensor([]int{len(data)}, data)
	require.NoError(t, err)
	p.RequiresGrad = true
	if grad != nil {
		g, err := tensor.NewTensor([]int{len(grad)}, grad)
		require.NoError(t, err)
		p.Grad = g
	}
	return p
}

func TestValidate(t *testing.T) {
	p := param(t, []float64{1}, nil)

	_, err := NewSGD([]*tensor.Tensor{p}, 0)
	assert.Error(t, err)

	_, err = NewSGD(nil, 0.1)
	assert.Error(t, err)

	frozen := param(t, []float64{1}, nil)
	frozen.RequiresGrad = false
	_, err = NewAscent([]*tensor.Tensor{frozen}, 0.1)
	assert.Error(t, err)
}

func TestSGDDescends(t *testing.T) {
	p := param(t, []float64{1, 2}, []float64{10, -10})

	opt, err := NewSGD([]*tensor.Tensor{p}, 0.1)
	require.NoError(t, err)
	require.NoError(t, opt.Step())

	data := p.GetData()
	assert.InDelta(t, 0.0, data[0], 1e-9)
	assert.InDelta(t, 3.0, data[1], 1e-9)
}

func TestAscentNormalizesByRMS(t *testing.T) {
	p := param(t, []float64{0, 0}, []float64{3, 4})

	opt, err := NewAscent([]*tensor.Tensor{p}, 1.0)
	require.NoError(t, err)
	require.NoError(t, opt.Step())

	// rms([3,4]) = sqrt(25/2)
	rms := math.Sqrt(12.5) + tensor.Epsilon
	data := p.GetData()
	assert.InDelta(t, 3/rms, data[0], 1e-9)
	assert.InDelta(t, 4/rms, data[1], 1e-9)
}

func TestAscentScaleInvariance(t *testing.T) {
	small := param(t, []float64{0, 0}, []float64{0.001, 0.002})
	large := param(t, []float64{0, 0}, []float64{100, 200})

	optSmall, err := NewAscent([]*tensor.Tensor{small}, 0.1)
	require.NoError(t, err)
	optLarge, err := NewAscent([]*tensor.Tensor{large}, 0.1)
	require.NoError(t, err)

	require.NoError(t, optSmall.Step())
	require.NoError(t, optLarge.Step())

	// Same direction, near-identical magnitude despite a 1e5 gradient gap.
	assert.InDelta(t, small.GetData()[0], large.GetData()[0], 1e-2)
	assert.InDelta(t, small.GetData()[1], large.GetData()[1], 1e-2)
}

func TestStepSkipsMissingGradients(t *testing.T) {
	p := param(t, []float64{5}, nil)

	opt, err := NewSGD([]*tensor.Tensor{p}, 0.1)
	require.NoError(t, err)
	require.NoError(t, opt.Step())
	assert.Equal(t, []float64{5}, p.GetData())
}
