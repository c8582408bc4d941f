// Package predict runs classification over a model and shapes the output
// for display: family-specific input preprocessing, ranked top-K classes
// and human-readable labels.
package predict

import (
	"fmt"
	"image"
	"math"
	"sort"

	"github.com/CoderZ865/WhyteBox/model"
	"github.com/CoderZ865/WhyteBox/tensor"
	"github.com/CoderZ865/WhyteBox/utility"
	"github.com/CoderZ865/WhyteBox/vis"
)

// DefaultTopK is how many ranked classes a result carries.
const DefaultTopK = 5

// newScope is a seam for tests to observe per-request scopes.
var newScope = tensor.NewScope

// Preprocessor holds the per-channel affine applied after scaling pixels
// to [0, 1]: value = (pixel - Mean[c]) / Std[c].
type Preprocessor struct {
	Mean [3]float64
	Std  [3]float64
}

// Families normalize the way their training pipelines did; anything
// unrecognized keeps plain [0, 1] pixels.
var preprocessors = map[model.Family]Preprocessor{
	model.FamilyMobileNet: {Mean: [3]float64{0.5, 0.5, 0.5}, Std: [3]float64{0.5, 0.5, 0.5}},
	model.FamilyInception: {Mean: [3]float64{0.485, 0.456, 0.406}, Std: [3]float64{0.229, 0.224, 0.225}},
	model.FamilyGeneric:   {Mean: [3]float64{0, 0, 0}, Std: [3]float64{1, 1, 1}},
}

// PreprocessorFor returns the input normalization for a model family.
func PreprocessorFor(family model.Family) Preprocessor {
	if p, ok := preprocessors[family]; ok {
		return p
	}
	return preprocessors[model.FamilyGeneric]
}

// Prediction is one ranked class.
type Prediction struct {
	ClassIndex  int
	ClassName   string
	Probability float64
}

// Result is the full outcome of one classification.
type Result struct {
	TopPrediction    Prediction
	TopPredictions   []Prediction
	RawProbabilities []float64
}

// Helper classifies images against one model.
type Helper struct {
	model  *model.Model
	labels []string
	logger utility.Logger
	topK   int
}

// NewHelper builds a classification helper. labels may be nil or shorter
// than the class count; missing entries fall back to "Class {index}".
func NewHelper(m *model.Model, labels []string, logger utility.Logger) *Helper {
	if logger == nil {
		logger = utility.DefaultLogger()
	}
	return &Helper{model: m, labels: labels, logger: logger, topK: DefaultTopK}
}

// WithTopK overrides how many ranked classes results carry.
func (h *Helper) WithTopK(k int) *Helper {
	if k > 0 {
		h.topK = k
	}
	return h
}

func (h *Helper) className(index int) string {
	if index >= 0 && index < len(h.labels) && h.labels[index] != "" {
		return h.labels[index]
	}
	return fmt.Sprintf("Class %d", index)
}

// Preprocess converts an image to the model's input tensor: resize to the
// input resolution, scale to [0, 1], then apply the family normalization.
func (h *Helper) Preprocess(img image.Image) (*tensor.Tensor, error) {
	in := h.model.InputShape()
	resized := vis.ResizeImage(img, in[3], in[2])
	x, err := vis.TensorFromImage(resized)
	if err != nil {
		return nil, err
	}

	p := PreprocessorFor(h.model.Family())
	data := x.GetData()
	plane := in[2] * in[3]
	for c := 0; c < 3; c++ {
		for i := c * plane; i < (c+1)*plane; i++ {
			data[i] = (data[i] - p.Mean[c]) / p.Std[c]
		}
	}
	return x, nil
}

// Predict classifies an image and returns the ranked result. Ties in
// probability rank by ascending class index, so ordering is deterministic.
func (h *Helper) Predict(img image.Image) (*Result, error) {
	if h.model == nil {
		return nil, model.ErrModelUnavailable
	}

	scope := newScope()
	defer scope.Release()

	x, err := h.Preprocess(img)
	if err != nil {
		return nil, fmt.Errorf("predict input: %w", err)
	}
	scope.Track(x)

	out, err := h.model.Predict(x)
	if err != nil {
		return nil, err
	}
	scope.Track(out)

	probs := append([]float64(nil), out.GetData()...)
	ensureDistribution(probs)

	order := rankIndices(probs)

	k := h.topK
	if k > len(order) {
		k = len(order)
	}
	ranked := make([]Prediction, 0, k)
	for _, idx := range order[:k] {
		ranked = append(ranked, Prediction{
			ClassIndex:  idx,
			ClassName:   h.className(idx),
			Probability: probs[idx],
		})
	}
	if len(ranked) == 0 {
		return nil, fmt.Errorf("predict: model produced no outputs")
	}

	return &Result{
		TopPrediction:    ranked[0],
		TopPredictions:   ranked,
		RawProbabilities: probs,
	}, nil
}

// rankIndices returns class indices ordered by descending probability,
// ties broken by ascending index.
func rankIndices(probs []float64) []int {
	order := make([]int, len(probs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return probs[order[a]] > probs[order[b]]
	})
	return order
}

// ensureDistribution leaves softmax output alone and converts raw logits
// in place when the model's head does not normalize.
func ensureDistribution(values []float64) {
	sum := 0.0
	negative := false
	for _, v := range values {
		if v < 0 {
			negative = true
		}
		sum += v
	}
	if !negative && math.Abs(sum-1) < 1e-3 {
		return
	}

	max := math.Inf(-1)
	for _, v := range values {
		if v > max {
			max = v
		}
	}
	total := 0.0
	for i, v := range values {
		values[i] = math.Exp(v - max)
		total += values[i]
	}
	for i := range values {
		values[i] /= total
	}
}
