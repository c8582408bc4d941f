package nn

import (
	"fmt"
	"math"

	"github.com/CoderZ865/WhyteBox/tensor"
)

// RELU: out = max(0, t).
func RELU(t *tensor.Tensor) (*tensor.Tensor, error) {
	tData := t.GetData()
	outData := make([]float64, len(tData))
	for i, v := range tData {
		if v > 0 {
			outData[i] = v
		}
	}

	r, err := tensor.NewTensor(t.GetShape(), outData)
	if err != nil {
		return nil, fmt.Errorf("relu failed to create output tensor: %w", err)
	}

	if t.RequiresGrad {
		r.RequiresGrad = true
		r.Parents = []*tensor.Tensor{t}
		r.Operation = "relu"
		r.BackwardFunc = func(grad *tensor.Tensor) {
			gradData := grad.GetData()
			g := make([]float64, len(gradData))
			for i := range g {
				if tData[i] > 0 {
					g[i] = gradData[i]
				}
			}
			gt, err := tensor.NewTensor(t.GetShape(), g)
			if err != nil {
				return
			}
			t.Backward(gt)
		}
	}
	return r, nil
}

// RELU6: out = min(max(0, t), 6). Gradient passes only inside (0, 6).
func RELU6(t *tensor.Tensor) (*tensor.Tensor, error) {
	tData := t.GetData()
	outData := make([]float64, len(tData))
	for i, v := range tData {
		switch {
		case v <= 0:
			outData[i] = 0
		case v >= 6:
			outData[i] = 6
		default:
			outData[i] = v
		}
	}

	r, err := tensor.NewTensor(t.GetShape(), outData)
	if err != nil {
		return nil, fmt.Errorf("relu6 failed to create output tensor: %w", err)
	}

	if t.RequiresGrad {
		r.RequiresGrad = true
		r.Parents = []*tensor.Tensor{t}
		r.Operation = "relu6"
		r.BackwardFunc = func(grad *tensor.Tensor) {
			gradData := grad.GetData()
			g := make([]float64, len(gradData))
			for i := range g {
				if tData[i] > 0 && tData[i] < 6 {
					g[i] = gradData[i]
				}
			}
			gt, err := tensor.NewTensor(t.GetShape(), g)
			if err != nil {
				return
			}
			t.Backward(gt)
		}
	}
	return r, nil
}

// Sigmoid: out = 1 / (1 + exp(-t)).
func Sigmoid(t *tensor.Tensor) (*tensor.Tensor, error) {
	tData := t.GetData()
	outData := make([]float64, len(tData))
	for i, v := range tData {
		outData[i] = 1.0 / (1.0 + math.Exp(-v))
	}

	r, err := tensor.NewTensor(t.GetShape(), outData)
	if err != nil {
		return nil, fmt.Errorf("sigmoid failed to create output tensor: %w", err)
	}

	if t.RequiresGrad {
		r.RequiresGrad = true
		r.Parents = []*tensor.Tensor{t}
		r.Operation = "sigmoid"
		r.BackwardFunc = func(grad *tensor.Tensor) {
			gradData := grad.GetData()
			g := make([]float64, len(gradData))
			for i := range g {
				s := outData[i]
				g[i] = gradData[i] * s * (1 - s)
			}
			gt, err := tensor.NewTensor(t.GetShape(), g)
			if err != nil {
				return
			}
			t.Backward(gt)
		}
	}
	return r, nil
}

// Softmax over the flattened tensor, stabilized with the max-subtraction
// trick. For batched logits the predict package applies it per row.
func Softmax(t *tensor.Tensor) (*tensor.Tensor, error) {
	tData := t.GetData()
	if len(tData) == 0 {
		return nil, fmt.Errorf("softmax of empty tensor")
	}
	outData := make([]float64, len(tData))

	maxv := tData[0]
	for _, v := range tData {
		if v > maxv {
			maxv = v
		}
	}
	var sum float64
	for i, v := range tData {
		e := math.Exp(v - maxv)
		outData[i] = e
		sum += e
	}
	if sum == 0 {
		return nil, fmt.Errorf("softmax sum is zero, cannot normalize")
	}
	for i := range outData {
		outData[i] /= sum
	}

	r, err := tensor.NewTensor(t.GetShape(), outData)
	if err != nil {
		return nil, fmt.Errorf("softmax failed to create output tensor: %w", err)
	}

	if t.RequiresGrad {
		r.RequiresGrad = true
		r.Parents = []*tensor.Tensor{t}
		r.Operation = "softmax"
		r.BackwardFunc = func(grad *tensor.Tensor) {
			// dL/dx_j = y_j * (dL/dy_j - sum_i(dL/dy_i * y_i))
			gradData := grad.GetData()
			dot := 0.0
			for i := range gradData {
				dot += gradData[i] * outData[i]
			}
			g := make([]float64, len(gradData))
			for i := range g {
				g[i] = outData[i] * (gradData[i] - dot)
			}
			gt, err := tensor.NewTensor(t.GetShape(), g)
			if err != nil {
				return
			}
			t.Backward(gt)
		}
	}
	return r, nil
}
