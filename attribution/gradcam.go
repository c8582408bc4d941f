package attribution

import (
	"context"
	"fmt"
	"image"

	"github.com/CoderZ865/WhyteBox/autograd"
	"github.com/CoderZ865/WhyteBox/model"
	"github.com/CoderZ865/WhyteBox/tensor"
	"github.com/CoderZ865/WhyteBox/vis"
)

// Heatmap computes a GradCAM map for the given class over the named
// convolutional layer. The input is a preprocessed [1, C, H, W] tensor.
// A negative classIndex selects the model's own top prediction.
//
// The returned tensor has shape [tapH, tapW] with values in [0, 1]; it is
// owned by the caller.
func (e *Engine) Heatmap(ctx context.Context, input *tensor.Tensor, layerName string, classIndex int) (*tensor.Tensor, error) {
	if e.model == nil {
		return nil, model.ErrModelUnavailable
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("heatmap: %w", err)
	}

	scope := newScope()
	defer scope.Release()

	if classIndex < 0 {
		out, err := e.model.Predict(tensor.CloneTensor(input))
		if err != nil {
			return nil, fmt.Errorf("heatmap class selection: %w", err)
		}
		scope.Track(out)
		classIndex = argmax(out.GetData())
		e.logger.Printf("heatmap: selected class %d", classIndex)
	}

	// Fresh clone so gradient bookkeeping never leaks into the caller's
	// tensor across requests.
	x := tensor.CloneTensor(input)
	scope.Track(x)

	tap, out, err := e.model.ForwardWithTap(x, layerName)
	if err != nil {
		return nil, err
	}
	scope.Track(tap, out)

	if shape := tap.GetShape(); len(shape) != 4 {
		return nil, fmt.Errorf("layer %q output has shape %v, not a spatial feature map: %w",
			layerName, shape, model.ErrUnsupportedLayerKind)
	}

	if classIndex >= tensor.Numel(out) {
		return nil, fmt.Errorf("class %d of %d outputs: %w", classIndex, tensor.Numel(out), model.ErrIndexOutOfRange)
	}

	score, err := tensor.SelectIndex(out, classIndex)
	if err != nil {
		return nil, fmt.Errorf("heatmap score: %w", err)
	}
	scope.Track(score)

	grads, err := autograd.Grad(score, tap)
	if err != nil {
		return nil, fmt.Errorf("heatmap gradients: %w", err)
	}
	scope.Track(grads)

	weights, err := tensor.ChannelSpatialMeans(grads)
	if err != nil {
		return nil, fmt.Errorf("heatmap weights: %w", err)
	}

	raw, err := tensor.WeightedChannelSum(tap, weights)
	if err != nil {
		return nil, fmt.Errorf("heatmap combine: %w", err)
	}
	scope.Track(raw)

	rectified, err := tensor.ReLUMap(raw)
	if err != nil {
		return nil, err
	}
	scope.Track(rectified)

	heat, err := tensor.NormalizeUnit(rectified)
	if err != nil {
		return nil, err
	}
	scope.Track(heat)
	return scope.Detach(heat), nil
}

// ApplyHeatmap resizes the heatmap to the original image and blends the
// two. An alpha of 0 selects DefaultAlpha.
func ApplyHeatmap(original image.Image, heatmap *tensor.Tensor, alpha float64) (*image.RGBA, error) {
	if alpha == 0 {
		alpha = DefaultAlpha
	}
	return vis.Overlay(original, heatmap, alpha, vis.HeatRedBlack)
}
