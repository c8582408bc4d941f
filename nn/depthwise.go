package nn

import (
	"fmt"
	"math/rand"

	"github.com/CoderZ865/WhyteBox/tensor"
)

// DepthwiseConv2D convolves each input channel with its own single kernel,
// the spatial half of the separable convolutions MobileNet-family nets are
// built from. Implemented as a direct sliding window; the channel count is
// small enough in this setting that im2col buys nothing.
type DepthwiseConv2D struct {
	Weight  *tensor.Tensor // [channels, 1, kH, kW]
	Bias    *tensor.Tensor // [channels]
	Stride  int
	Padding int
}

func NewDepthwiseConv2D(channels, kernelSize, stride, padding int, rng *rand.Rand) (*DepthwiseConv2D, error) {
	if channels <= 0 || kernelSize <= 0 {
		return nil, fmt.Errorf("depthwise conv dimensions must be positive, got c=%d k=%d", channels, kernelSize)
	}
	weights, err := tensor.UniformRand([]int{channels, 1, kernelSize, kernelSize}, -0.1, 0.1, rng)
	if err != nil {
		return nil, fmt.Errorf("failed to create weight tensor: %w", err)
	}
	weights.RequiresGrad = true

	bias, err := tensor.NewTensor([]int{channels}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create bias tensor: %w", err)
	}
	bias.RequiresGrad = true

	return &DepthwiseConv2D{Weight: weights, Bias: bias, Stride: stride, Padding: padding}, nil
}

func (d *DepthwiseConv2D) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	inShape := input.GetShape()
	if len(inShape) != 4 {
		return nil, fmt.Errorf("depthwise conv expects a 4D input, got %dD", len(inShape))
	}
	b, c, h, w := inShape[0], inShape[1], inShape[2], inShape[3]

	wShape := d.Weight.GetShape()
	if wShape[0] != c {
		return nil, fmt.Errorf("depthwise conv has %d kernels but input has %d channels", wShape[0], c)
	}
	kH, kW := wShape[2], wShape[3]

	outH := (h+2*d.Padding-kH)/d.Stride + 1
	outW := (w+2*d.Padding-kW)/d.Stride + 1
	if outH <= 0 || outW <= 0 {
		return nil, fmt.Errorf("depthwise conv produces invalid output size %dx%d", outH, outW)
	}

	inData := input.GetData()
	wData := d.Weight.GetData()
	bData := d.Bias.GetData()
	outData := make([]float64, b*c*outH*outW)

	for bi := 0; bi < b; bi++ {
		for ci := 0; ci < c; ci++ {
			inPlane := inData[(bi*c+ci)*h*w : (bi*c+ci+1)*h*w]
			kernel := wData[ci*kH*kW : (ci+1)*kH*kW]
			outPlane := outData[(bi*c+ci)*outH*outW : (bi*c+ci+1)*outH*outW]
			for oh := 0; oh < outH; oh++ {
				for ow := 0; ow < outW; ow++ {
					sum := bData[ci]
					for kh := 0; kh < kH; kh++ {
						ih := oh*d.Stride + kh - d.Padding
						if ih < 0 || ih >= h {
							continue
						}
						for kw := 0; kw < kW; kw++ {
							iw := ow*d.Stride + kw - d.Padding
							if iw < 0 || iw >= w {
								continue
							}
							sum += inPlane[ih*w+iw] * kernel[kh*kW+kw]
						}
					}
					outPlane[oh*outW+ow] = sum
				}
			}
		}
	}

	out, err := tensor.NewTensor([]int{b, c, outH, outW}, outData)
	if err != nil {
		return nil, err
	}

	if input.RequiresGrad || d.Weight.RequiresGrad || d.Bias.RequiresGrad {
		out.RequiresGrad = true
		out.Parents = []*tensor.Tensor{input, d.Weight, d.Bias}
		out.Operation = "depthwise_conv"
		out.BackwardFunc = func(grad *tensor.Tensor) {
			gData := grad.GetData()

			if input.RequiresGrad {
				gi := make([]float64, len(inData))
				for bi := 0; bi < b; bi++ {
					for ci := 0; ci < c; ci++ {
						kernel := wData[ci*kH*kW : (ci+1)*kH*kW]
						gPlane := gData[(bi*c+ci)*outH*outW : (bi*c+ci+1)*outH*outW]
						giPlane := gi[(bi*c+ci)*h*w : (bi*c+ci+1)*h*w]
						for oh := 0; oh < outH; oh++ {
							for ow := 0; ow < outW; ow++ {
								g := gPlane[oh*outW+ow]
								if g == 0 {
									continue
								}
								for kh := 0; kh < kH; kh++ {
									ih := oh*d.Stride + kh - d.Padding
									if ih < 0 || ih >= h {
										continue
									}
									for kw := 0; kw < kW; kw++ {
										iw := ow*d.Stride + kw - d.Padding
										if iw < 0 || iw >= w {
											continue
										}
										giPlane[ih*w+iw] += g * kernel[kh*kW+kw]
									}
								}
							}
						}
					}
				}
				gt, _ := tensor.NewTensor(inShape, gi)
				input.Backward(gt)
			}

			if d.Weight.RequiresGrad {
				gw := make([]float64, len(wData))
				for bi := 0; bi < b; bi++ {
					for ci := 0; ci < c; ci++ {
						inPlane := inData[(bi*c+ci)*h*w : (bi*c+ci+1)*h*w]
						gPlane := gData[(bi*c+ci)*outH*outW : (bi*c+ci+1)*outH*outW]
						gKernel := gw[ci*kH*kW : (ci+1)*kH*kW]
						for oh := 0; oh < outH; oh++ {
							for ow := 0; ow < outW; ow++ {
								g := gPlane[oh*outW+ow]
								if g == 0 {
									continue
								}
								for kh := 0; kh < kH; kh++ {
									ih := oh*d.Stride + kh - d.Padding
									if ih < 0 || ih >= h {
										continue
									}
									for kw := 0; kw < kW; kw++ {
										iw := ow*d.Stride + kw - d.Padding
										if iw < 0 || iw >= w {
											continue
										}
										gKernel[kh*kW+kw] += g * inPlane[ih*w+iw]
									}
								}
							}
						}
					}
				}
				gt, _ := tensor.NewTensor(wShape, gw)
				d.Weight.Backward(gt)
			}

			if d.Bias.RequiresGrad {
				gb := make([]float64, c)
				for bi := 0; bi < b; bi++ {
					for ci := 0; ci < c; ci++ {
						for _, g := range gData[(bi*c+ci)*outH*outW : (bi*c+ci+1)*outH*outW] {
							gb[ci] += g
						}
					}
				}
				gt, _ := tensor.NewTensor([]int{c}, gb)
				d.Bias.Backward(gt)
			}
		}
	}
	return out, nil
}

func (d *DepthwiseConv2D) Parameters() []*tensor.Tensor {
	return []*tensor.Tensor{d.Weight, d.Bias}
}

func (d *DepthwiseConv2D) ZeroGrad() {
	d.Weight.ZeroGrad()
	d.Bias.ZeroGrad()
}

func (d *DepthwiseConv2D) Name() string { return "DepthwiseConv2D" }
