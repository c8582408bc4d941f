package tensor

import (
	"fmt"
	"math"
	"math/rand"
)

// Epsilon guards min-max style normalizations against division by zero on
// constant maps.
const Epsilon = 1e-5

// The helpers in this file are forward-only: they operate on tensor values
// that have already left the autograd graph (heatmaps, kernel slices,
// readback buffers) and never attach backward functions.

// MinMax returns the smallest and largest element.
func MinMax(t *Tensor) (float64, float64, error) {
	if len(t.data) == 0 {
		return 0, 0, fmt.Errorf("minmax of empty tensor")
	}
	lo, hi := t.data[0], t.data[0]
	for _, v := range t.data {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi, nil
}

// NormalizeUnit rescales values into [0, 1] via (v - min) / (max - min + ε).
// A constant tensor comes out all zero rather than NaN.
func NormalizeUnit(t *Tensor) (*Tensor, error) {
	lo, hi, err := MinMax(t)
	if err != nil {
		return nil, err
	}
	span := hi - lo + Epsilon

	outData := make([]float64, len(t.data))
	for i, v := range t.data {
		outData[i] = (v - lo) / span
	}
	return NewTensor(t.GetShape(), outData)
}

// ReLUMap clamps negative values to zero without touching the graph.
func ReLUMap(t *Tensor) (*Tensor, error) {
	outData := make([]float64, len(t.data))
	for i, v := range t.data {
		if v > 0 {
			outData[i] = v
		}
	}
	return NewTensor(t.GetShape(), outData)
}

// ChannelSpatialMeans reduces a [1, C, H, W] tensor to per-channel means
// over the spatial axes.
func ChannelSpatialMeans(t *Tensor) ([]float64, error) {
	shape := t.GetShape()
	if len(shape) != 4 || shape[0] != 1 {
		return nil, fmt.Errorf("channel means expect a [1, C, H, W] tensor, got %v", shape)
	}
	c, plane := shape[1], shape[2]*shape[3]

	means := make([]float64, c)
	for j := 0; j < c; j++ {
		sum := 0.0
		for _, v := range t.data[j*plane : (j+1)*plane] {
			sum += v
		}
		means[j] = sum / float64(plane)
	}
	return means, nil
}

// WeightedChannelSum collapses a [1, C, H, W] tensor to a [H, W] map as
// sum_c(weights[c] * t[0, c, :, :]).
func WeightedChannelSum(t *Tensor, weights []float64) (*Tensor, error) {
	shape := t.GetShape()
	if len(shape) != 4 || shape[0] != 1 {
		return nil, fmt.Errorf("weighted channel sum expects a [1, C, H, W] tensor, got %v", shape)
	}
	c, h, w := shape[1], shape[2], shape[3]
	if len(weights) != c {
		return nil, fmt.Errorf("got %d weights for %d channels", len(weights), c)
	}

	plane := h * w
	outData := make([]float64, plane)
	for j := 0; j < c; j++ {
		wv := weights[j]
		if wv == 0 {
			continue
		}
		src := t.data[j*plane : (j+1)*plane]
		for p := range src {
			outData[p] += wv * src[p]
		}
	}
	return NewTensor([]int{h, w}, outData)
}

// AbsSumChannels collapses a [1, C, H, W] tensor to a [H, W] map by summing
// absolute values across the channel axis. Sign information is discarded.
func AbsSumChannels(t *Tensor) (*Tensor, error) {
	shape := t.GetShape()
	if len(shape) != 4 || shape[0] != 1 {
		return nil, fmt.Errorf("abs-sum expects a [1, C, H, W] tensor, got %v", shape)
	}
	c, h, w := shape[1], shape[2], shape[3]

	plane := h * w
	outData := make([]float64, plane)
	for j := 0; j < c; j++ {
		src := t.data[j*plane : (j+1)*plane]
		for p := range src {
			outData[p] += math.Abs(src[p])
		}
	}
	return NewTensor([]int{h, w}, outData)
}

// ResizeBilinear2D resamples a [H, W] tensor to [outH, outW] with bilinear
// interpolation. Matching dimensions return a plain copy.
func ResizeBilinear2D(t *Tensor, outH, outW int) (*Tensor, error) {
	shape := t.GetShape()
	if len(shape) != 2 {
		return nil, fmt.Errorf("bilinear resize expects a 2D tensor, got %v", shape)
	}
	if outH <= 0 || outW <= 0 {
		return nil, fmt.Errorf("invalid resize target %dx%d", outH, outW)
	}
	h, w := shape[0], shape[1]
	if h == outH && w == outW {
		return CloneTensor(t), nil
	}

	outData := make([]float64, outH*outW)
	for y := 0; y < outH; y++ {
		srcY := float64(y) * float64(h-1) / float64(max(outH-1, 1))
		y0 := int(math.Floor(srcY))
		y1 := min(y0+1, h-1)
		fy := srcY - float64(y0)
		for x := 0; x < outW; x++ {
			srcX := float64(x) * float64(w-1) / float64(max(outW-1, 1))
			x0 := int(math.Floor(srcX))
			x1 := min(x0+1, w-1)
			fx := srcX - float64(x0)

			top := t.data[y0*w+x0]*(1-fx) + t.data[y0*w+x1]*fx
			bot := t.data[y1*w+x0]*(1-fx) + t.data[y1*w+x1]*fx
			outData[y*outW+x] = top*(1-fy) + bot*fy
		}
	}
	return NewTensor([]int{outH, outW}, outData)
}

// ResizeBilinearNCHW resamples the spatial axes of a [B, C, H, W] tensor.
func ResizeBilinearNCHW(t *Tensor, outH, outW int) (*Tensor, error) {
	shape := t.GetShape()
	if len(shape) != 4 {
		return nil, fmt.Errorf("bilinear resize expects a 4D tensor, got %v", shape)
	}
	b, c, h, w := shape[0], shape[1], shape[2], shape[3]
	if h == outH && w == outW {
		return CloneTensor(t), nil
	}

	plane := h * w
	outPlane := outH * outW
	outData := make([]float64, b*c*outPlane)
	for i := 0; i < b*c; i++ {
		src := &Tensor{shape: []int{h, w}, data: t.data[i*plane : (i+1)*plane]}
		resized, err := ResizeBilinear2D(src, outH, outW)
		if err != nil {
			return nil, err
		}
		copy(outData[i*outPlane:(i+1)*outPlane], resized.data)
	}
	return NewTensor([]int{b, c, outH, outW}, outData)
}

// UniformRand fills a new tensor with uniform values in [lo, hi) drawn from
// rng, or the shared source when rng is nil.
func UniformRand(shape []int, lo, hi float64, rng *rand.Rand) (*Tensor, error) {
	t, err := NewTensor(shape, nil)
	if err != nil {
		return nil, err
	}
	for i := range t.data {
		var u float64
		if rng != nil {
			u = rng.Float64()
		} else {
			u = rand.Float64()
		}
		t.data[i] = lo + u*(hi-lo)
	}
	return t, nil
}
