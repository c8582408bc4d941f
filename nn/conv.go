package nn

import (
	"fmt"
	"math/rand"

	"github.com/CoderZ865/WhyteBox/tensor"
)

// Conv2D is a 2D convolution implemented as im2col + matmul, wired into the
// autograd graph so gradients can flow back to the layer input even when
// the weights themselves are frozen.
type Conv2D struct {
	Weight  *tensor.Tensor // [outChannels, inChannels, kH, kW]
	Bias    *tensor.Tensor // [outChannels]
	Stride  int
	Padding int
}

// NewConv2D creates a convolution with small random weights. rng may be nil
// for a non-deterministic source.
func NewConv2D(inChannels, outChannels, kernelSize, stride, padding int, rng *rand.Rand) (*Conv2D, error) {
	if inChannels <= 0 || outChannels <= 0 || kernelSize <= 0 {
		return nil, fmt.Errorf("conv2d dimensions must be positive, got in=%d out=%d k=%d", inChannels, outChannels, kernelSize)
	}
	weights, err := tensor.UniformRand([]int{outChannels, inChannels, kernelSize, kernelSize}, -0.1, 0.1, rng)
	if err != nil {
		return nil, fmt.Errorf("failed to create weight tensor: %w", err)
	}
	weights.RequiresGrad = true

	bias, err := tensor.NewTensor([]int{outChannels}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create bias tensor: %w", err)
	}
	bias.RequiresGrad = true

	return &Conv2D{Weight: weights, Bias: bias, Stride: stride, Padding: padding}, nil
}

func (c *Conv2D) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	wShape := c.Weight.GetShape()
	outChannels, kernelHeight, kernelWidth := wShape[0], wShape[2], wShape[3]

	inputCols, err := tensor.Im2Col(input, kernelHeight, kernelWidth, c.Stride, c.Padding)
	if err != nil {
		return nil, fmt.Errorf("conv forward failed during im2col: %w", err)
	}

	kernelMatrix, err := tensor.Reshape(c.Weight, []int{outChannels, tensor.Numel(c.Weight) / outChannels})
	if err != nil {
		return nil, fmt.Errorf("conv forward failed reshaping kernel: %w", err)
	}

	outputMatMul, err := tensor.MatMulTensor(kernelMatrix, inputCols)
	if err != nil {
		return nil, fmt.Errorf("conv forward failed during matmul: %w", err)
	}

	// im2col is graph-blind, so the link from the matmul gradient back to
	// the original input goes through an explicit col2im here. The kernel
	// branch reuses the standard matmul rule.
	if input.RequiresGrad || kernelMatrix.RequiresGrad {
		outputMatMul.RequiresGrad = true
		outputMatMul.Parents = []*tensor.Tensor{kernelMatrix, inputCols}
		outputMatMul.Operation = "conv_matmul"
		outputMatMul.BackwardFunc = func(grad *tensor.Tensor) {
			if kernelMatrix.RequiresGrad {
				colsT, err := tensor.Transpose(inputCols)
				if err == nil {
					if g, err := tensor.MatMulTensor(grad, colsT); err == nil {
						kernelMatrix.Backward(g)
					}
				}
			}
			if input.RequiresGrad {
				kernelT, err := tensor.Transpose(kernelMatrix)
				if err != nil {
					return
				}
				gradCols, err := tensor.MatMulTensor(kernelT, grad)
				if err != nil {
					return
				}
				gradInput, err := tensor.Col2Im(gradCols, input.GetShape(), kernelHeight, kernelWidth, c.Stride, c.Padding)
				if err != nil {
					return
				}
				input.Backward(gradInput)
			}
		}
	}

	inShape := input.GetShape()
	batchSize := inShape[0]
	outHeight := (inShape[2]+2*c.Padding-kernelHeight)/c.Stride + 1
	outWidth := (inShape[3]+2*c.Padding-kernelWidth)/c.Stride + 1

	reshaped, err := tensor.Reshape(outputMatMul, []int{outChannels, batchSize, outHeight, outWidth})
	if err != nil {
		return nil, fmt.Errorf("conv forward failed reshaping output: %w", err)
	}
	permuted, err := tensor.Permute(reshaped, []int{1, 0, 2, 3})
	if err != nil {
		return nil, fmt.Errorf("conv forward failed during permute: %w", err)
	}
	out, err := tensor.AddTensorBroadcast(permuted, c.Bias)
	if err != nil {
		return nil, fmt.Errorf("conv forward failed during bias add: %w", err)
	}
	return out, nil
}

func (c *Conv2D) Parameters() []*tensor.Tensor {
	return []*tensor.Tensor{c.Weight, c.Bias}
}

func (c *Conv2D) ZeroGrad() {
	c.Weight.ZeroGrad()
	c.Bias.ZeroGrad()
}

func (c *Conv2D) Name() string { return "Conv2D" }
