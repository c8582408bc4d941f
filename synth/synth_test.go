package synth

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CoderZ865/WhyteBox/model"
	"github.com/CoderZ865/WhyteBox/nn"
	"github.com/CoderZ865/WhyteBox/tensor"
	"github.com/CoderZ865/WhyteBox/utility"
)

func testModel(t *testing.T) *model.Model {
	t.Helper()
	rng := rand.New(rand.NewSource(23))

	m, err := model.New("synth-test", model.FamilyGeneric, []int{1, 3, 8, 8})
	require.NoError(t, err)

	conv, err := nn.NewConv2D(3, 4, 3, 1, 1, rng)
	require.NoError(t, err)
	require.NoError(t, m.Append("conv", model.KindConv, conv))
	require.NoError(t, m.Append("relu", model.KindActivation, nn.NewRELU6()))
	require.NoError(t, m.Append("pool", model.KindPool, nn.NewGlobalAvgPool2D()))

	m.Freeze()
	return m
}

func fastOptions() Options {
	return Options{
		Iterations:     5,
		LearningRate:   0.1,
		Regularization: 0.001,
		Width:          16,
		Height:         16,
	}
}

func newTestSynthesizer(t *testing.T) *Synthesizer {
	t.Helper()
	return NewSynthesizer(testModel(t), utility.NopLogger(), rand.New(rand.NewSource(29)))
}

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

func TestVisualizeFilterLeavesNoLiveTensors(t *testing.T) {
	s := newTestSynthesizer(t)
	scopes := captureScopes(t)

	out, err := s.VisualizeFilter(context.Background(), "conv", 0, fastOptions())
	require.NoError(t, err)
	out.Release()
	assertScopesDrained(t, scopes)

	_, err = s.VisualizeFilter(context.Background(), "conv", 4, fastOptions())
	require.ErrorIs(t, err, model.ErrIndexOutOfRange)
	assertScopesDrained(t, scopes)
}

func TestVisualizeFilterOutput(t *testing.T) {
	s := newTestSynthesizer(t)

	out, err := s.VisualizeFilter(context.Background(), "conv", 0, fastOptions())
	require.NoError(t, err)
	defer out.Release()

	assert.Equal(t, []int{1, 3, 16, 16}, out.GetShape())
	for _, v := range out.GetData() {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}

func TestVisualizeFilterZeroIterationsReturnsNoise(t *testing.T) {
	s := newTestSynthesizer(t)

	opts := fastOptions()
	opts.Iterations = 0
	out, err := s.VisualizeFilter(context.Background(), "conv", 0, opts)
	require.NoError(t, err)
	defer out.Release()

	assert.Equal(t, []int{1, 3, 16, 16}, out.GetShape())
	for _, v := range out.GetData() {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}

func TestVisualizeFilterReportsMonotoneBest(t *testing.T) {
	s := newTestSynthesizer(t)

	opts := fastOptions()
	opts.Iterations = 10
	var bests []float64
	opts.Progress = func(iteration, total int, objective, best float64) {
		assert.Equal(t, 10, total)
		assert.GreaterOrEqual(t, best, objective)
		bests = append(bests, best)
	}

	out, err := s.VisualizeFilter(context.Background(), "conv", 1, opts)
	require.NoError(t, err)
	out.Release()

	require.Len(t, bests, 10)
	for i := 1; i < len(bests); i++ {
		assert.GreaterOrEqual(t, bests[i], bests[i-1])
	}
}

// meanActivation recomputes the synthesis objective's activation term for
// an arbitrary input.
func meanActivation(t *testing.T, m *model.Model, x *tensor.Tensor, filterIndex int) float64 {
	t.Helper()
	act, err := m.ForwardTo(tensor.CloneTensor(x), "conv")
	require.NoError(t, err)
	defer act.Release()
	slice, err := tensor.SliceChannel(act, filterIndex)
	require.NoError(t, err)
	defer slice.Release()
	mean, err := tensor.Mean(slice)
	require.NoError(t, err)
	defer mean.Release()
	return mean.GetData()[0]
}

func TestVisualizeFilterKeepsPeakIterate(t *testing.T) {
	m := testModel(t)

	// A step this large overshoots badly, so the only iterate whose
	// objective is ever measured is the initial noise. The result must
	// match a zero-iteration run from the same seed exactly.
	opts := fastOptions()
	opts.LearningRate = 50
	opts.Regularization = 10

	opts.Iterations = 0
	base := NewSynthesizer(m, utility.NopLogger(), rand.New(rand.NewSource(53)))
	want, err := base.VisualizeFilter(context.Background(), "conv", 0, opts)
	require.NoError(t, err)
	defer want.Release()

	opts.Iterations = 1
	stepped := NewSynthesizer(m, utility.NopLogger(), rand.New(rand.NewSource(53)))
	got, err := stepped.VisualizeFilter(context.Background(), "conv", 0, opts)
	require.NoError(t, err)
	defer got.Release()

	assert.Equal(t, want.GetData(), got.GetData())
}

func TestVisualizeFilterImprovesActivation(t *testing.T) {
	m := testModel(t)
	const filterIndex = 2

	opts := fastOptions()
	opts.Width = 8
	opts.Height = 8

	opts.Iterations = 0
	initial := NewSynthesizer(m, utility.NopLogger(), rand.New(rand.NewSource(41)))
	noise, err := initial.VisualizeFilter(context.Background(), "conv", filterIndex, opts)
	require.NoError(t, err)
	defer noise.Release()

	opts.Iterations = 40
	opts.LearningRate = 0.5
	ascended := NewSynthesizer(m, utility.NopLogger(), rand.New(rand.NewSource(41)))
	out, err := ascended.VisualizeFilter(context.Background(), "conv", filterIndex, opts)
	require.NoError(t, err)
	defer out.Release()

	assert.GreaterOrEqual(t,
		meanActivation(t, m, out, filterIndex),
		meanActivation(t, m, noise, filterIndex))
}

func TestVisualizeFilterErrors(t *testing.T) {
	s := newTestSynthesizer(t)

	_, err := s.VisualizeFilter(context.Background(), "missing", 0, fastOptions())
	assert.ErrorIs(t, err, model.ErrLayerNotFound)

	_, err = s.VisualizeFilter(context.Background(), "conv", 4, fastOptions())
	assert.ErrorIs(t, err, model.ErrIndexOutOfRange)

	_, err = s.VisualizeFilter(context.Background(), "conv", -1, fastOptions())
	assert.ErrorIs(t, err, model.ErrIndexOutOfRange)

	empty := NewSynthesizer(nil, utility.NopLogger(), nil)
	_, err = empty.VisualizeFilter(context.Background(), "conv", 0, fastOptions())
	assert.ErrorIs(t, err, model.ErrModelUnavailable)
}

func TestVisualizeFilterHonorsCancellation(t *testing.T) {
	s := newTestSynthesizer(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.VisualizeFilter(ctx, "conv", 0, fastOptions())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestVisualizeLayerFiltersGrid(t *testing.T) {
	s := newTestSynthesizer(t)

	opts := GridOptions{
		NumFilters: 100, // capped at the layer's 4 channels
		GridWidth:  2,
		Filter:     fastOptions(),
	}
	grid, tiles, err := s.VisualizeLayerFilters(context.Background(), "conv", opts)
	require.NoError(t, err)

	assert.Len(t, tiles, 4)
	assert.Equal(t, 2*16, grid.Bounds().Dx())
	assert.Equal(t, 2*16, grid.Bounds().Dy())
}

func TestVisualizeLayerFiltersErrors(t *testing.T) {
	s := newTestSynthesizer(t)

	_, _, err := s.VisualizeLayerFilters(context.Background(), "missing", DefaultGridOptions())
	assert.ErrorIs(t, err, model.ErrLayerNotFound)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = s.VisualizeLayerFilters(ctx, "conv", DefaultGridOptions())
	assert.ErrorIs(t, err, context.Canceled)
}
