package inspect

import (
	"context"
	"image"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CoderZ865/WhyteBox/model"
	"github.com/CoderZ865/WhyteBox/nn"
	"github.com/CoderZ865/WhyteBox/tensor"
	"github.com/CoderZ865/WhyteBox/utility"
)

// captureScopes swaps the scope seam so tests can assert that every
// per-request scope ends with zero live tensors.
func captureScopes(t *testing.T) *[]*tensor.Scope {
	t.Helper()
	var scopes []*tensor.Scope
	orig := newScope
	newScope = func() *tensor.Scope {
		s := orig()
		scopes = append(scopes, s)
		return s
	}
	t.Cleanup(func() { newScope = orig })
	return &scopes
}

func assertScopesDrained(t *testing.T, scopes *[]*tensor.Scope) {
	t.Helper()
	require.NotEmpty(t, *scopes)
	for _, s := range *scopes {
		assert.Equal(t, 0, s.Live())
	}
	*scopes = nil
}

func testModel(t *testing.T) *model.Model {
	t.Helper()
	rng := rand.New(rand.NewSource(17))

	m, err := model.New("inspect-test", model.FamilyGeneric, []int{1, 3, 8, 8})
	require.NoError(t, err)

	conv, err := nn.NewConv2D(3, 6, 3, 1, 1, rng)
	require.NoError(t, err)
	require.NoError(t, m.Append("conv", model.KindConv, conv))
	require.NoError(t, m.Append("relu", model.KindActivation, nn.NewRELU6()))
	require.NoError(t, m.Append("pool", model.KindPool, nn.NewGlobalAvgPool2D()))

	fc, err := nn.NewLinear(6, 2, rng)
	require.NoError(t, err)
	require.NoError(t, m.Append("fc", model.KindDense, fc))

	m.Freeze()
	return m
}

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Pix[(y*16+x)*4] = uint8(x * 16)
			img.Pix[(y*16+x)*4+1] = uint8(y * 16)
			img.Pix[(y*16+x)*4+3] = 255
		}
	}
	return img
}

func TestFiltersRendersTiles(t *testing.T) {
	ins := NewInspector(testModel(t), utility.NopLogger())

	tiles, err := ins.Filters("conv", FilterOptions{MaxFilters: 4, Size: 32})
	require.NoError(t, err)
	require.Len(t, tiles, 4)
	for _, tile := range tiles {
		assert.Equal(t, 32, tile.Image.Bounds().Dx())
		assert.Equal(t, 32, tile.Image.Bounds().Dy())
		assert.NotEmpty(t, tile.Label)
	}
}

func TestFiltersCapsAtLayerWidth(t *testing.T) {
	ins := NewInspector(testModel(t), utility.NopLogger())

	tiles, err := ins.Filters("conv", FilterOptions{MaxFilters: 100, Size: 16})
	require.NoError(t, err)
	assert.Len(t, tiles, 6)
}

func TestFiltersErrors(t *testing.T) {
	ins := NewInspector(testModel(t), utility.NopLogger())

	_, err := ins.Filters("missing", DefaultFilterOptions())
	assert.ErrorIs(t, err, model.ErrLayerNotFound)

	_, err = ins.Filters("pool", DefaultFilterOptions())
	assert.ErrorIs(t, err, model.ErrUnsupportedLayerKind)

	_, err = ins.Filters("fc", DefaultFilterOptions())
	assert.ErrorIs(t, err, model.ErrUnsupportedLayerKind)

	empty := NewInspector(nil, utility.NopLogger())
	_, err = empty.Filters("conv", DefaultFilterOptions())
	assert.ErrorIs(t, err, model.ErrModelUnavailable)
}

func TestActivationsRendersChannels(t *testing.T) {
	ins := NewInspector(testModel(t), utility.NopLogger())

	tiles, err := ins.Activations(context.Background(), testImage(), "relu", ActivationOptions{MaxChannels: 4, Size: 24})
	require.NoError(t, err)
	require.Len(t, tiles, 4)
	for _, tile := range tiles {
		assert.Equal(t, 24, tile.Image.Bounds().Dx())
	}
}

func TestActivationsRejectsNonSpatialLayer(t *testing.T) {
	ins := NewInspector(testModel(t), utility.NopLogger())

	_, err := ins.Activations(context.Background(), testImage(), "pool", DefaultActivationOptions())
	assert.ErrorIs(t, err, model.ErrUnsupportedLayerKind)
}

func TestInspectionLeavesNoLiveTensors(t *testing.T) {
	ins := NewInspector(testModel(t), utility.NopLogger())
	scopes := captureScopes(t)

	_, err := ins.Filters("conv", FilterOptions{MaxFilters: 2, Size: 16})
	require.NoError(t, err)
	assertScopesDrained(t, scopes)

	_, err = ins.Activations(context.Background(), testImage(), "relu", ActivationOptions{MaxChannels: 2, Size: 16})
	require.NoError(t, err)
	assertScopesDrained(t, scopes)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = ins.Activations(ctx, testImage(), "relu", DefaultActivationOptions())
	require.ErrorIs(t, err, context.Canceled)
	assertScopesDrained(t, scopes)
}

func TestActivationsHonorsCancellation(t *testing.T) {
	ins := NewInspector(testModel(t), utility.NopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ins.Activations(ctx, testImage(), "relu", DefaultActivationOptions())
	assert.ErrorIs(t, err, context.Canceled)
}
