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

// Attributions computes Integrated Gradients for the given class against a
// zero baseline. The input is a preprocessed [1, C, H, W] tensor; steps
// controls the path resolution (steps+1 gradient evaluations). A negative
// classIndex selects the model's own top prediction, and steps of 0
// degenerates to a single gradient at the input.
//
// The returned tensor has shape [H, W]: the per-pixel attribution summed
// over channels as absolute values. Values are not normalized; use
// ColorizeAttributions to render them.
func (e *Engine) Attributions(ctx context.Context, input *tensor.Tensor, classIndex, steps int) (*tensor.Tensor, error) {
	if e.model == nil {
		return nil, model.ErrModelUnavailable
	}
	if steps < 0 {
		return nil, fmt.Errorf("attributions: negative steps %d", steps)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	scope := newScope()
	defer scope.Release()

	if classIndex < 0 {
		out, err := e.model.Predict(tensor.CloneTensor(input))
		if err != nil {
			return nil, fmt.Errorf("attributions class selection: %w", err)
		}
		scope.Track(out)
		classIndex = argmax(out.GetData())
		e.logger.Printf("attributions: selected class %d", classIndex)
	}

	attr, err := e.signedAttributions(ctx, input, classIndex, steps)
	if err != nil {
		return nil, err
	}

	signed, err := tensor.NewTensor(input.GetShape(), attr)
	if err != nil {
		return nil, err
	}
	scope.Track(signed)

	m, err := tensor.AbsSumChannels(signed)
	if err != nil {
		return nil, fmt.Errorf("attributions reduce: %w", err)
	}
	scope.Track(m)
	return scope.Detach(m), nil
}

// signedAttributions returns the per-element signed attribution
// input * mean(grad along the path). For a well-behaved model the sum of
// these values approaches out(input)[class] - out(baseline)[class] as
// steps grows.
func (e *Engine) signedAttributions(ctx context.Context, input *tensor.Tensor, classIndex, steps int) ([]float64, error) {
	n := tensor.Numel(input)
	sum := make([]float64, n)

	for i := 0; i <= steps; i++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("attributions at step %d: %w", i, ctx.Err())
		default:
		}

		ratio := 1.0
		if steps > 0 {
			ratio = float64(i) / float64(steps)
		}

		g, err := e.gradientAt(input, ratio, classIndex)
		if err != nil {
			return nil, err
		}
		for j, v := range g {
			sum[j] += v
		}
	}

	inputData := input.GetData()
	attr := make([]float64, n)
	for j := range attr {
		// Zero baseline: input - baseline is the input itself.
		attr[j] = inputData[j] * sum[j] / float64(steps+1)
	}
	return attr, nil
}

// gradientAt evaluates d out[class] / d x at x = ratio * input. Everything
// allocated for the pass is released before returning.
func (e *Engine) gradientAt(input *tensor.Tensor, ratio float64, classIndex int) ([]float64, error) {
	scope := newScope()
	defer scope.Release()

	x, err := tensor.ScaleTensor(input, ratio)
	if err != nil {
		return nil, err
	}
	x.RequiresGrad = true
	scope.Track(x)

	out, err := e.model.Predict(x)
	if err != nil {
		return nil, err
	}
	scope.Track(out)

	if classIndex >= tensor.Numel(out) {
		return nil, fmt.Errorf("class %d of %d outputs: %w", classIndex, tensor.Numel(out), model.ErrIndexOutOfRange)
	}

	score, err := tensor.SelectIndex(out, classIndex)
	if err != nil {
		return nil, err
	}
	scope.Track(score)

	g, err := autograd.Grad(score, x)
	if err != nil {
		return nil, err
	}
	scope.Track(g)
	return append([]float64(nil), g.GetData()...), nil
}

// ColorizeAttributions normalizes an attribution map and renders it with
// the blue-yellow-red colormap.
func ColorizeAttributions(attr *tensor.Tensor) (*image.RGBA, error) {
	normalized, err := tensor.NormalizeUnit(attr)
	if err != nil {
		return nil, err
	}
	defer normalized.Release()
	return vis.MapToRGBA(normalized, vis.BlueYellowRed)
}
