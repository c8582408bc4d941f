package tensor

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinMax(t *testing.T) {
	a := mustTensor(t, []int{4}, []float64{3, -1, 7, 0})
	lo, hi, err := MinMax(a)
	require.NoError(t, err)
	assert.Equal(t, -1.0, lo)
	assert.Equal(t, 7.0, hi)
}

func TestNormalizeUnit(t *testing.T) {
	a := mustTensor(t, []int{3}, []float64{0, 5, 10})
	n, err := NormalizeUnit(a)
	require.NoError(t, err)

	data := n.GetData()
	assert.InDelta(t, 0.0, data[0], 1e-9)
	assert.InDelta(t, 0.5, data[1], 1e-5)
	assert.InDelta(t, 1.0, data[2], 1e-5)
}

func TestNormalizeUnitConstantMap(t *testing.T) {
	a := mustTensor(t, []int{4}, []float64{2, 2, 2, 2})
	n, err := NormalizeUnit(a)
	require.NoError(t, err)
	for _, v := range n.GetData() {
		assert.Equal(t, 0.0, v)
	}
}

func TestReLUMap(t *testing.T) {
	a := mustTensor(t, []int{4}, []float64{-1, 0, 2, -3})
	r, err := ReLUMap(a)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 2, 0}, r.GetData())
}

func TestChannelSpatialMeans(t *testing.T) {
	a := mustTensor(t, []int{1, 2, 2, 2}, []float64{
		1, 2, 3, 4,
		10, 10, 10, 10,
	})
	means, err := ChannelSpatialMeans(a)
	require.NoError(t, err)
	assert.Equal(t, []float64{2.5, 10}, means)

	_, err = ChannelSpatialMeans(mustTensor(t, []int{2, 2}, []float64{1, 2, 3, 4}))
	assert.Error(t, err)
}

func TestWeightedChannelSum(t *testing.T) {
	a := mustTensor(t, []int{1, 2, 1, 2}, []float64{
		1, 2,
		3, 4,
	})
	out, err := WeightedChannelSum(a, []float64{2, -1})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, out.GetShape())
	assert.Equal(t, []float64{-1, 0}, out.GetData())

	_, err = WeightedChannelSum(a, []float64{1})
	assert.Error(t, err)
}

func TestAbsSumChannels(t *testing.T) {
	a := mustTensor(t, []int{1, 2, 1, 2}, []float64{
		-1, 2,
		3, -4,
	})
	out, err := AbsSumChannels(a)
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 6}, out.GetData())
}

func TestResizeBilinear2D(t *testing.T) {
	a := mustTensor(t, []int{2, 2}, []float64{0, 1, 2, 3})

	same, err := ResizeBilinear2D(a, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, a.GetData(), same.GetData())

	up, err := ResizeBilinear2D(a, 3, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 3}, up.GetShape())
	// Corners are preserved, the center interpolates all four.
	data := up.GetData()
	assert.Equal(t, 0.0, data[0])
	assert.Equal(t, 1.0, data[2])
	assert.Equal(t, 2.0, data[6])
	assert.Equal(t, 3.0, data[8])
	assert.InDelta(t, 1.5, data[4], 1e-9)
}

func TestResizeBilinearNCHW(t *testing.T) {
	a := mustTensor(t, []int{1, 2, 2, 2}, []float64{
		0, 1, 2, 3,
		4, 5, 6, 7,
	})
	out, err := ResizeBilinearNCHW(a, 4, 4)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 4, 4}, out.GetShape())

	data := out.GetData()
	assert.Equal(t, 0.0, data[0])
	assert.Equal(t, 3.0, data[15])
	assert.Equal(t, 4.0, data[16])
	assert.Equal(t, 7.0, data[31])
}

func TestUniformRandBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	a, err := UniformRand([]int{100}, -0.1, 0.1, rng)
	require.NoError(t, err)
	for _, v := range a.GetData() {
		assert.GreaterOrEqual(t, v, -0.1)
		assert.Less(t, v, 0.1)
	}
}
