package tensor

import (
	"fmt"
	"runtime"
	"sync"
)

// Im2Col unrolls a [B, C, H, W] tensor into a column matrix of shape
// [C*kH*kW, B*outH*outW] so convolution becomes a single matmul. Work is
// split across cores over the batch dimension.
func Im2Col(input *Tensor, kernelHeight, kernelWidth, stride, padding int) (*Tensor, error) {
	shape := input.GetShape()
	if len(shape) != 4 {
		return nil, fmt.Errorf("im2col expects a 4D input tensor, got %dD", len(shape))
	}
	batchSize, channels, height, width := shape[0], shape[1], shape[2], shape[3]

	outHeight := (height+2*padding-kernelHeight)/stride + 1
	outWidth := (width+2*padding-kernelWidth)/stride + 1
	if outHeight <= 0 || outWidth <= 0 {
		return nil, fmt.Errorf("convolution produces invalid output size %dx%d", outHeight, outWidth)
	}

	kernelSize := channels * kernelHeight * kernelWidth
	outputCols := outHeight * outWidth
	colShape := []int{kernelSize, batchSize * outputCols}
	colData := make([]float64, colShape[0]*colShape[1])

	inputData := input.GetData()
	workers := runtime.NumCPU()
	batchesPer := (batchSize + workers - 1) / workers

	var wg sync.WaitGroup
	for g := 0; g < workers; g++ {
		start, end := g*batchesPer, (g+1)*batchesPer
		if end > batchSize {
			end = batchSize
		}
		if start >= end {
			continue
		}
		wg.Add(1)
		go func(sB, eB int) {
			defer wg.Done()
			for b := sB; b < eB; b++ {
				for c := 0; c < channels; c++ {
					for kh := 0; kh < kernelHeight; kh++ {
						for kw := 0; kw < kernelWidth; kw++ {
							colRow := c*(kernelHeight*kernelWidth) + kh*kernelWidth + kw
							for oh := 0; oh < outHeight; oh++ {
								inRow := kh - padding + oh*stride
								if inRow < 0 || inRow >= height {
									continue
								}
								for ow := 0; ow < outWidth; ow++ {
									inCol := kw - padding + ow*stride
									if inCol < 0 || inCol >= width {
										continue
									}
									src := b*(channels*height*width) + c*(height*width) + inRow*width + inCol
									dst := colRow*colShape[1] + b*outputCols + oh*outWidth + ow
									colData[dst] = inputData[src]
								}
							}
						}
					}
				}
			}
		}(start, end)
	}
	wg.Wait()

	return NewTensor(colShape, colData)
}

// Col2Im folds a column matrix back into image layout, accumulating
// overlapping contributions. Used by the backward pass of convolution.
func Col2Im(cols *Tensor, inputShape []int, kernelHeight, kernelWidth, stride, padding int) (*Tensor, error) {
	if len(inputShape) != 4 {
		return nil, fmt.Errorf("col2im requires a 4D target shape, got %dD", len(inputShape))
	}
	batchSize, channels, height, width := inputShape[0], inputShape[1], inputShape[2], inputShape[3]

	outHeight := (height+2*padding-kernelHeight)/stride + 1
	outWidth := (width+2*padding-kernelWidth)/stride + 1

	imgData := make([]float64, batchSize*channels*height*width)
	colsData := cols.GetData()
	colsShape := cols.GetShape()

	workers := runtime.NumCPU()
	totalJobs := batchSize * channels
	jobsPer := (totalJobs + workers - 1) / workers

	var wg sync.WaitGroup
	for g := 0; g < workers; g++ {
		start, end := g*jobsPer, (g+1)*jobsPer
		if end > totalJobs {
			end = totalJobs
		}
		if start >= end {
			continue
		}
		wg.Add(1)
		// each goroutine owns a disjoint set of (batch, channel) planes,
		// so the accumulation below is race-free
		go func(sJ, eJ int) {
			defer wg.Done()
			for job := sJ; job < eJ; job++ {
				b := job / channels
				c := job % channels
				for kh := 0; kh < kernelHeight; kh++ {
					for kw := 0; kw < kernelWidth; kw++ {
						colRow := c*(kernelHeight*kernelWidth) + kh*kernelWidth + kw
						for oh := 0; oh < outHeight; oh++ {
							inRow := kh - padding + oh*stride
							if inRow < 0 || inRow >= height {
								continue
							}
							for ow := 0; ow < outWidth; ow++ {
								inCol := kw - padding + ow*stride
								if inCol < 0 || inCol >= width {
									continue
								}
								src := colRow*colsShape[1] + b*outHeight*outWidth + oh*outWidth + ow
								dst := b*(channels*height*width) + c*(height*width) + inRow*width + inCol
								imgData[dst] += colsData[src]
							}
						}
					}
				}
			}
		}(start, end)
	}
	wg.Wait()

	return NewTensor(inputShape, imgData)
}
