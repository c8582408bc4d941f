package predict

import (
	"fmt"
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

func testModel(t *testing.T, withSoftmax bool) *model.Model {
	t.Helper()
	rng := rand.New(rand.NewSource(31))

	m, err := model.New("predict-test", model.FamilyMobileNet, []int{1, 3, 8, 8})
	require.NoError(t, err)

	conv, err := nn.NewConv2D(3, 4, 3, 1, 1, rng)
	require.NoError(t, err)
	require.NoError(t, m.Append("conv", model.KindConv, conv))
	require.NoError(t, m.Append("pool", model.KindPool, nn.NewGlobalAvgPool2D()))

	fc, err := nn.NewLinear(4, 6, rng)
	require.NoError(t, err)
	require.NoError(t, m.Append("fc", model.KindDense, fc))
	if withSoftmax {
		require.NoError(t, m.Append("softmax", model.KindActivation, nn.NewSoftmaxLayer()))
	}

	m.Freeze()
	return m
}

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = uint8(i % 256)
		img.Pix[i+3] = 255
	}
	return img
}

func TestPredictRanksDescending(t *testing.T) {
	h := NewHelper(testModel(t, true), nil, utility.NopLogger())

	result, err := h.Predict(testImage())
	require.NoError(t, err)

	require.Len(t, result.TopPredictions, 5)
	assert.Equal(t, result.TopPredictions[0], result.TopPrediction)
	for i := 1; i < len(result.TopPredictions); i++ {
		assert.GreaterOrEqual(t,
			result.TopPredictions[i-1].Probability,
			result.TopPredictions[i].Probability)
	}

	sum := 0.0
	for _, p := range result.RawProbabilities {
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Len(t, result.RawProbabilities, 6)
}

func TestPredictNormalizesLogits(t *testing.T) {
	h := NewHelper(testModel(t, false), nil, utility.NopLogger())

	result, err := h.Predict(testImage())
	require.NoError(t, err)

	sum := 0.0
	for _, p := range result.RawProbabilities {
		assert.GreaterOrEqual(t, p, 0.0)
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-3)
}

func TestPredictLabelFallback(t *testing.T) {
	labels := []string{"cat", "dog"}
	h := NewHelper(testModel(t, true), labels, utility.NopLogger()).WithTopK(6)

	result, err := h.Predict(testImage())
	require.NoError(t, err)
	require.Len(t, result.TopPredictions, 6)

	for _, p := range result.TopPredictions {
		if p.ClassIndex < len(labels) {
			assert.Equal(t, labels[p.ClassIndex], p.ClassName)
		} else {
			assert.Equal(t, fmt.Sprintf("Class %d", p.ClassIndex), p.ClassName)
		}
	}
}

func TestPredictTopKCappedAtClassCount(t *testing.T) {
	h := NewHelper(testModel(t, true), nil, utility.NopLogger()).WithTopK(50)

	result, err := h.Predict(testImage())
	require.NoError(t, err)
	assert.Len(t, result.TopPredictions, 6)
}

func TestPredictNilModel(t *testing.T) {
	h := NewHelper(nil, nil, utility.NopLogger())
	_, err := h.Predict(testImage())
	assert.ErrorIs(t, err, model.ErrModelUnavailable)
}

func TestPreprocessorFor(t *testing.T) {
	mob := PreprocessorFor(model.FamilyMobileNet)
	assert.Equal(t, 0.5, mob.Mean[0])
	assert.Equal(t, 0.5, mob.Std[0])

	inc := PreprocessorFor(model.FamilyInception)
	assert.InDelta(t, 0.485, inc.Mean[0], 1e-9)
	assert.InDelta(t, 0.229, inc.Std[0], 1e-9)

	gen := PreprocessorFor(model.Family("other"))
	assert.Equal(t, 0.0, gen.Mean[0])
	assert.Equal(t, 1.0, gen.Std[0])
}

func TestPredictLeavesNoLiveTensors(t *testing.T) {
	var scopes []*tensor.Scope
	orig := newScope
	newScope = func() *tensor.Scope {
		s := orig()
		scopes = append(scopes, s)
		return s
	}
	t.Cleanup(func() { newScope = orig })

	h := NewHelper(testModel(t, true), nil, utility.NopLogger())
	_, err := h.Predict(testImage())
	require.NoError(t, err)
	require.NotEmpty(t, scopes)
	for _, s := range scopes {
		assert.Equal(t, 0, s.Live())
	}
	scopes = nil

	// A model with no layers fails the forward pass mid-request.
	empty, err := model.New("empty", model.FamilyGeneric, []int{1, 3, 8, 8})
	require.NoError(t, err)
	h = NewHelper(empty, nil, utility.NopLogger())
	_, err = h.Predict(testImage())
	require.ErrorIs(t, err, model.ErrModelUnavailable)
	require.NotEmpty(t, scopes)
	for _, s := range scopes {
		assert.Equal(t, 0, s.Live())
	}
}

func TestRankIndices(t *testing.T) {
	assert.Equal(t, []int{1, 2, 0}, rankIndices([]float64{0.1, 0.7, 0.2}))

	// Ties keep ascending index order.
	assert.Equal(t, []int{0, 2, 1}, rankIndices([]float64{0.4, 0.2, 0.4}))
	assert.Empty(t, rankIndices(nil))
}

func TestEnsureDistribution(t *testing.T) {
	already := []float64{0.2, 0.3, 0.5}
	ensureDistribution(already)
	assert.Equal(t, []float64{0.2, 0.3, 0.5}, already)

	logits := []float64{-1, 0, 3}
	ensureDistribution(logits)
	sum := 0.0
	for _, v := range logits {
		assert.Greater(t, v, 0.0)
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Greater(t, logits[2], logits[1])
}
