package nn

import (
	"fmt"
	"math"

	"github.com/CoderZ865/WhyteBox/tensor"
)

// BatchNorm2D applies the inference-mode normalization
// y = gamma * (x - mean) / sqrt(var + eps) + beta per channel, using frozen
// running statistics. With statistics fixed the op is an affine map, so the
// backward pass is just a per-channel rescale of the gradient.
type BatchNorm2D struct {
	Gamma       *tensor.Tensor // [C]
	Beta        *tensor.Tensor // [C]
	RunningMean *tensor.Tensor // [C]
	RunningVar  *tensor.Tensor // [C]
	Eps         float64
}

func NewBatchNorm2D(channels int) (*BatchNorm2D, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("batchnorm channel count must be positive, got %d", channels)
	}
	ones := make([]float64, channels)
	for i := range ones {
		ones[i] = 1
	}
	gamma, err := tensor.NewTensor([]int{channels}, ones)
	if err != nil {
		return nil, err
	}
	beta, err := tensor.NewTensor([]int{channels}, nil)
	if err != nil {
		return nil, err
	}
	mean, err := tensor.NewTensor([]int{channels}, nil)
	if err != nil {
		return nil, err
	}
	variance, err := tensor.NewTensor([]int{channels}, append([]float64{}, ones...))
	if err != nil {
		return nil, err
	}
	return &BatchNorm2D{Gamma: gamma, Beta: beta, RunningMean: mean, RunningVar: variance, Eps: 1e-3}, nil
}

func (bn *BatchNorm2D) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	inputShape := input.GetShape()
	if len(inputShape) != 4 {
		return nil, fmt.Errorf("batchnorm expects a 4D input, got %dD", len(inputShape))
	}
	b, c, h, w := inputShape[0], inputShape[1], inputShape[2], inputShape[3]
	if bn.Gamma.GetShape()[0] != c {
		return nil, fmt.Errorf("batchnorm has %d channels but input has %d", bn.Gamma.GetShape()[0], c)
	}

	plane := h * w
	inData := input.GetData()
	gamma := bn.Gamma.GetData()
	beta := bn.Beta.GetData()
	mean := bn.RunningMean.GetData()
	variance := bn.RunningVar.GetData()

	scale := make([]float64, c)
	for ci := 0; ci < c; ci++ {
		scale[ci] = gamma[ci] / math.Sqrt(variance[ci]+bn.Eps)
	}

	outData := make([]float64, len(inData))
	for bi := 0; bi < b; bi++ {
		for ci := 0; ci < c; ci++ {
			base := (bi*c + ci) * plane
			for p := 0; p < plane; p++ {
				outData[base+p] = scale[ci]*(inData[base+p]-mean[ci]) + beta[ci]
			}
		}
	}

	out, err := tensor.NewTensor(inputShape, outData)
	if err != nil {
		return nil, err
	}

	if input.RequiresGrad {
		out.RequiresGrad = true
		out.Parents = []*tensor.Tensor{input}
		out.Operation = "batchnorm"
		out.BackwardFunc = func(grad *tensor.Tensor) {
			gradData := grad.GetData()
			gi := make([]float64, len(gradData))
			for bi := 0; bi < b; bi++ {
				for ci := 0; ci < c; ci++ {
					base := (bi*c + ci) * plane
					for p := 0; p < plane; p++ {
						gi[base+p] = gradData[base+p] * scale[ci]
					}
				}
			}
			gt, _ := tensor.NewTensor(inputShape, gi)
			input.Backward(gt)
		}
	}
	return out, nil
}

func (bn *BatchNorm2D) Parameters() []*tensor.Tensor {
	return []*tensor.Tensor{bn.Gamma, bn.Beta, bn.RunningMean, bn.RunningVar}
}

func (bn *BatchNorm2D) ZeroGrad() {}

func (bn *BatchNorm2D) Name() string { return "BatchNorm2D" }
