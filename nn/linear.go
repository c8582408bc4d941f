package nn

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/CoderZ865/WhyteBox/tensor"
)

// Linear is a dense layer: output = input @ weight + bias.
type Linear struct {
	Weight *tensor.Tensor // [inputDimensions, outputDimensions]
	Bias   *tensor.Tensor // [outputDimensions]
}

// NewLinear creates a dense layer with scaled random weights.
func NewLinear(inputDimensions, outputDimensions int, rng *rand.Rand) (*Linear, error) {
	if inputDimensions <= 0 || outputDimensions <= 0 {
		return nil, fmt.Errorf("linear layer dimensions must be positive, got input %d, output %d", inputDimensions, outputDimensions)
	}

	scale := math.Sqrt(1.0 / float64(inputDimensions))
	weights, err := tensor.UniformRand([]int{inputDimensions, outputDimensions}, -scale, scale, rng)
	if err != nil {
		return nil, fmt.Errorf("linear layer failed to create weight tensor: %w", err)
	}
	weights.RequiresGrad = true

	bias, err := tensor.NewTensor([]int{outputDimensions}, nil)
	if err != nil {
		return nil, fmt.Errorf("linear layer failed to create bias tensor: %w", err)
	}
	bias.RequiresGrad = true

	return &Linear{Weight: weights, Bias: bias}, nil
}

func (l *Linear) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	inputShape := input.GetShape()
	if len(inputShape) != 2 {
		return nil, fmt.Errorf("linear layer expects 2D input [batch, features], got shape %v", inputShape)
	}
	if inputShape[1] != l.Weight.GetShape()[0] {
		return nil, fmt.Errorf("linear layer input dimension mismatch: input %d, weight expects %d", inputShape[1], l.Weight.GetShape()[0])
	}

	step, err := tensor.MatMulTensor(input, l.Weight)
	if err != nil {
		return nil, fmt.Errorf("linear layer matmul failed: %w", err)
	}
	out, err := tensor.AddTensorBroadcast(step, l.Bias)
	if err != nil {
		return nil, fmt.Errorf("linear layer bias addition failed: %w", err)
	}
	return out, nil
}

func (l *Linear) Parameters() []*tensor.Tensor {
	return []*tensor.Tensor{l.Weight, l.Bias}
}

func (l *Linear) ZeroGrad() {
	l.Weight.ZeroGrad()
	l.Bias.ZeroGrad()
}

func (l *Linear) Name() string { return "Linear" }
