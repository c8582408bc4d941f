package nn

import (
	"fmt"
	"math"

	"github.com/CoderZ865/WhyteBox/tensor"
)

// MaxPooling2D downsamples by taking the window maximum. Argmax positions
// recorded in the forward pass route the gradient in the backward pass.
type MaxPooling2D struct {
	KernelSize int
	Stride     int
}

func NewMaxPooling2D(kernelSize, stride int) *MaxPooling2D {
	return &MaxPooling2D{KernelSize: kernelSize, Stride: stride}
}

func (p *MaxPooling2D) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	inputShape := input.GetShape()
	if len(inputShape) != 4 {
		return nil, fmt.Errorf("maxpool expects a 4D input, got %dD", len(inputShape))
	}
	b, c, h, w := inputShape[0], inputShape[1], inputShape[2], inputShape[3]

	outH := (h-p.KernelSize)/p.Stride + 1
	outW := (w-p.KernelSize)/p.Stride + 1
	if outH <= 0 || outW <= 0 {
		return nil, fmt.Errorf("maxpool produces invalid output size %dx%d", outH, outW)
	}

	outData := make([]float64, b*c*outH*outW)
	maxIndices := make([]int, len(outData))
	inputData := input.GetData()

	for bi := 0; bi < b; bi++ {
		for ci := 0; ci < c; ci++ {
			for oh := 0; oh < outH; oh++ {
				for ow := 0; ow < outW; ow++ {
					maxVal := -math.MaxFloat64
					maxIdx := -1
					for y := 0; y < p.KernelSize; y++ {
						for x := 0; x < p.KernelSize; x++ {
							src := bi*(c*h*w) + ci*(h*w) + (oh*p.Stride+y)*w + ow*p.Stride + x
							if inputData[src] > maxVal {
								maxVal = inputData[src]
								maxIdx = src
							}
						}
					}
					dst := bi*(c*outH*outW) + ci*(outH*outW) + oh*outW + ow
					outData[dst] = maxVal
					maxIndices[dst] = maxIdx
				}
			}
		}
	}

	out, err := tensor.NewTensor([]int{b, c, outH, outW}, outData)
	if err != nil {
		return nil, err
	}

	if input.RequiresGrad {
		out.RequiresGrad = true
		out.Parents = []*tensor.Tensor{input}
		out.Operation = "maxpool"
		out.BackwardFunc = func(grad *tensor.Tensor) {
			gi := make([]float64, tensor.Numel(input))
			for i, g := range grad.GetData() {
				gi[maxIndices[i]] += g
			}
			gt, _ := tensor.NewTensor(inputShape, gi)
			input.Backward(gt)
		}
	}
	return out, nil
}

func (p *MaxPooling2D) Parameters() []*tensor.Tensor { return nil }
func (p *MaxPooling2D) ZeroGrad()                    {}
func (p *MaxPooling2D) Name() string                 { return "MaxPooling2D" }

// AveragePooling2D downsamples by taking the window mean.
type AveragePooling2D struct {
	KernelSize int
	Stride     int
}

func NewAveragePooling2D(kernelSize, stride int) *AveragePooling2D {
	return &AveragePooling2D{KernelSize: kernelSize, Stride: stride}
}

func (p *AveragePooling2D) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	inputShape := input.GetShape()
	if len(inputShape) != 4 {
		return nil, fmt.Errorf("avgpool expects a 4D input, got %dD", len(inputShape))
	}
	b, c, h, w := inputShape[0], inputShape[1], inputShape[2], inputShape[3]

	outH := (h-p.KernelSize)/p.Stride + 1
	outW := (w-p.KernelSize)/p.Stride + 1
	if outH <= 0 || outW <= 0 {
		return nil, fmt.Errorf("avgpool produces invalid output size %dx%d", outH, outW)
	}

	window := float64(p.KernelSize * p.KernelSize)
	outData := make([]float64, b*c*outH*outW)
	inputData := input.GetData()

	for bi := 0; bi < b; bi++ {
		for ci := 0; ci < c; ci++ {
			for oh := 0; oh < outH; oh++ {
				for ow := 0; ow < outW; ow++ {
					sum := 0.0
					for y := 0; y < p.KernelSize; y++ {
						for x := 0; x < p.KernelSize; x++ {
							sum += inputData[bi*(c*h*w)+ci*(h*w)+(oh*p.Stride+y)*w+ow*p.Stride+x]
						}
					}
					outData[bi*(c*outH*outW)+ci*(outH*outW)+oh*outW+ow] = sum / window
				}
			}
		}
	}

	out, err := tensor.NewTensor([]int{b, c, outH, outW}, outData)
	if err != nil {
		return nil, err
	}

	if input.RequiresGrad {
		out.RequiresGrad = true
		out.Parents = []*tensor.Tensor{input}
		out.Operation = "avgpool"
		out.BackwardFunc = func(grad *tensor.Tensor) {
			gi := make([]float64, tensor.Numel(input))
			gradData := grad.GetData()
			for bi := 0; bi < b; bi++ {
				for ci := 0; ci < c; ci++ {
					for oh := 0; oh < outH; oh++ {
						for ow := 0; ow < outW; ow++ {
							g := gradData[bi*(c*outH*outW)+ci*(outH*outW)+oh*outW+ow] / window
							for y := 0; y < p.KernelSize; y++ {
								for x := 0; x < p.KernelSize; x++ {
									gi[bi*(c*h*w)+ci*(h*w)+(oh*p.Stride+y)*w+ow*p.Stride+x] += g
								}
							}
						}
					}
				}
			}
			gt, _ := tensor.NewTensor(inputShape, gi)
			input.Backward(gt)
		}
	}
	return out, nil
}

func (p *AveragePooling2D) Parameters() []*tensor.Tensor { return nil }
func (p *AveragePooling2D) ZeroGrad()                    {}
func (p *AveragePooling2D) Name() string                 { return "AveragePooling2D" }

// GlobalAvgPool2D collapses [B, C, H, W] to [B, C], the head pooling of
// MobileNet-family classifiers.
type GlobalAvgPool2D struct{}

func NewGlobalAvgPool2D() *GlobalAvgPool2D { return &GlobalAvgPool2D{} }

func (p *GlobalAvgPool2D) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	inputShape := input.GetShape()
	if len(inputShape) != 4 {
		return nil, fmt.Errorf("global avgpool expects a 4D input, got %dD", len(inputShape))
	}
	b, c, h, w := inputShape[0], inputShape[1], inputShape[2], inputShape[3]
	plane := h * w

	outData := make([]float64, b*c)
	inputData := input.GetData()
	for i := 0; i < b*c; i++ {
		sum := 0.0
		for _, v := range inputData[i*plane : (i+1)*plane] {
			sum += v
		}
		outData[i] = sum / float64(plane)
	}

	out, err := tensor.NewTensor([]int{b, c}, outData)
	if err != nil {
		return nil, err
	}

	if input.RequiresGrad {
		out.RequiresGrad = true
		out.Parents = []*tensor.Tensor{input}
		out.Operation = "global_avgpool"
		out.BackwardFunc = func(grad *tensor.Tensor) {
			gi := make([]float64, tensor.Numel(input))
			gradData := grad.GetData()
			for i := 0; i < b*c; i++ {
				g := gradData[i] / float64(plane)
				for p := 0; p < plane; p++ {
					gi[i*plane+p] = g
				}
			}
			gt, _ := tensor.NewTensor(inputShape, gi)
			input.Backward(gt)
		}
	}
	return out, nil
}

func (p *GlobalAvgPool2D) Parameters() []*tensor.Tensor { return nil }
func (p *GlobalAvgPool2D) ZeroGrad()                    {}
func (p *GlobalAvgPool2D) Name() string                 { return "GlobalAvgPool2D" }
