package tensor

import (
	"fmt"
)

// AddTensor adds two tensors element-wise.
func AddTensor(t1, t2 *Tensor) (*Tensor, error) {
	if !IsSameSize(t1, t2) {
		return nil, fmt.Errorf("tensors of shape %v and %v differ in size for addition", t1.shape, t2.shape)
	}

	outData := make([]float64, len(t1.data))
	for i := range t1.data {
		outData[i] = t1.data[i] + t2.data[i]
	}

	out, err := NewTensor(t1.shape, outData)
	if err != nil {
		return nil, err
	}

	if t1.RequiresGrad || t2.RequiresGrad {
		out.RequiresGrad = true
		out.Parents = []*Tensor{t1, t2}
		out.Operation = "add"
		out.BackwardFunc = func(grad *Tensor) {
			if t1.RequiresGrad {
				t1.Backward(CloneTensor(grad))
			}
			if t2.RequiresGrad {
				t2.Backward(CloneTensor(grad))
			}
		}
	}
	return out, nil
}

// SubTensor computes t1 - t2 element-wise.
func SubTensor(t1, t2 *Tensor) (*Tensor, error) {
	if !IsSameSize(t1, t2) {
		return nil, fmt.Errorf("tensors of shape %v and %v differ in size for subtraction", t1.shape, t2.shape)
	}

	outData := make([]float64, len(t1.data))
	for i := range t1.data {
		outData[i] = t1.data[i] - t2.data[i]
	}

	out, err := NewTensor(t1.shape, outData)
	if err != nil {
		return nil, err
	}

	if t1.RequiresGrad || t2.RequiresGrad {
		out.RequiresGrad = true
		out.Parents = []*Tensor{t1, t2}
		out.Operation = "sub"
		out.BackwardFunc = func(grad *Tensor) {
			if t1.RequiresGrad {
				t1.Backward(CloneTensor(grad))
			}
			if t2.RequiresGrad {
				negData := make([]float64, len(grad.data))
				for i := range negData {
					negData[i] = -grad.data[i]
				}
				neg, _ := NewTensor(t2.shape, negData)
				t2.Backward(neg)
			}
		}
	}
	return out, nil
}

// MulTensor multiplies two tensors element-wise.
func MulTensor(t1, t2 *Tensor) (*Tensor, error) {
	if !IsSameSize(t1, t2) {
		return nil, fmt.Errorf("tensors of shape %v and %v differ in size for multiplication", t1.shape, t2.shape)
	}

	outData := make([]float64, len(t1.data))
	for i := range t1.data {
		outData[i] = t1.data[i] * t2.data[i]
	}

	out, err := NewTensor(t1.shape, outData)
	if err != nil {
		return nil, err
	}

	if t1.RequiresGrad || t2.RequiresGrad {
		out.RequiresGrad = true
		out.Parents = []*Tensor{t1, t2}
		out.Operation = "mul"
		out.BackwardFunc = func(grad *Tensor) {
			if t1.RequiresGrad {
				g := make([]float64, len(grad.data))
				for i := range g {
					g[i] = grad.data[i] * t2.data[i]
				}
				gt, _ := NewTensor(t1.shape, g)
				t1.Backward(gt)
			}
			if t2.RequiresGrad {
				g := make([]float64, len(grad.data))
				for i := range g {
					g[i] = grad.data[i] * t1.data[i]
				}
				gt, _ := NewTensor(t2.shape, g)
				t2.Backward(gt)
			}
		}
	}
	return out, nil
}

// ScaleTensor multiplies every element by a scalar.
func ScaleTensor(t *Tensor, s float64) (*Tensor, error) {
	outData := make([]float64, len(t.data))
	for i := range t.data {
		outData[i] = t.data[i] * s
	}

	out, err := NewTensor(t.shape, outData)
	if err != nil {
		return nil, err
	}

	if t.RequiresGrad {
		out.RequiresGrad = true
		out.Parents = []*Tensor{t}
		out.Operation = "scale"
		out.BackwardFunc = func(grad *Tensor) {
			g := make([]float64, len(grad.data))
			for i := range g {
				g[i] = grad.data[i] * s
			}
			gt, _ := NewTensor(t.shape, g)
			t.Backward(gt)
		}
	}
	return out, nil
}

// Reshape returns a view-copy of t with a new shape of equal element count.
func Reshape(t *Tensor, newShape []int) (*Tensor, error) {
	originalNumel := Numel(t)
	reshapedNumel := 1
	for _, dim := range newShape {
		if dim <= 0 {
			return nil, fmt.Errorf("newShape %v contains non-positive dimension", newShape)
		}
		reshapedNumel *= dim
	}
	if originalNumel != reshapedNumel {
		return nil, fmt.Errorf("cannot reshape tensor with %d elements to shape %v (requires %d elements)", originalNumel, newShape, reshapedNumel)
	}

	outData := make([]float64, len(t.data))
	copy(outData, t.data)

	out, err := NewTensor(newShape, outData)
	if err != nil {
		return nil, err
	}

	if t.RequiresGrad {
		out.RequiresGrad = true
		out.Parents = []*Tensor{t}
		out.Operation = "reshape"
		out.BackwardFunc = func(grad *Tensor) {
			reshaped, _ := NewTensor(append([]int{}, t.shape...), append([]float64{}, grad.data...))
			t.Backward(reshaped)
		}
	}
	return out, nil
}

// Transpose swaps the two dimensions of a 2D tensor.
func Transpose(t *Tensor) (*Tensor, error) {
	shape := t.GetShape()
	if len(shape) != 2 {
		return nil, fmt.Errorf("transpose supports 2D tensors, got %v", shape)
	}
	m, n := shape[0], shape[1]

	outData := make([]float64, m*n)
	for r := 0; r < m; r++ {
		for c := 0; c < n; c++ {
			outData[c*m+r] = t.data[r*n+c]
		}
	}

	out, err := NewTensor([]int{n, m}, outData)
	if err != nil {
		return nil, err
	}

	if t.RequiresGrad {
		out.RequiresGrad = true
		out.Parents = []*Tensor{t}
		out.Operation = "transpose"
		out.BackwardFunc = func(grad *Tensor) {
			// grad(transpose) = transpose(grad)
			tg, err := Transpose(grad)
			if err != nil {
				return
			}
			t.Backward(tg)
		}
	}
	return out, nil
}

// Permute reorders the axes of a 4D tensor. perm must be a permutation of
// {0,1,2,3}. The backward pass applies the inverse permutation.
func Permute(t *Tensor, perm []int) (*Tensor, error) {
	shape := t.GetShape()
	if len(shape) != 4 || len(perm) != 4 {
		return nil, fmt.Errorf("permute supports 4D tensors, got shape %v perm %v", shape, perm)
	}
	seen := [4]bool{}
	for _, p := range perm {
		if p < 0 || p > 3 || seen[p] {
			return nil, fmt.Errorf("invalid permutation %v", perm)
		}
		seen[p] = true
	}

	newShape := []int{shape[perm[0]], shape[perm[1]], shape[perm[2]], shape[perm[3]]}

	srcStrides := strides(shape)
	outData := make([]float64, Numel(t))
	idx := 0
	var src [4]int
	for a := 0; a < newShape[0]; a++ {
		for b := 0; b < newShape[1]; b++ {
			for c := 0; c < newShape[2]; c++ {
				for d := 0; d < newShape[3]; d++ {
					src[perm[0]] = a
					src[perm[1]] = b
					src[perm[2]] = c
					src[perm[3]] = d
					outData[idx] = t.data[src[0]*srcStrides[0]+src[1]*srcStrides[1]+src[2]*srcStrides[2]+src[3]*srcStrides[3]]
					idx++
				}
			}
		}
	}

	out, err := NewTensor(newShape, outData)
	if err != nil {
		return nil, err
	}

	if t.RequiresGrad {
		out.RequiresGrad = true
		out.Parents = []*Tensor{t}
		out.Operation = "permute"
		out.BackwardFunc = func(grad *Tensor) {
			inverse := make([]int, 4)
			for i, p := range perm {
				inverse[p] = i
			}
			gt, err := Permute(grad, inverse)
			if err != nil {
				return
			}
			t.Backward(gt)
		}
	}
	return out, nil
}

func strides(shape []int) []int {
	s := make([]int, len(shape))
	stride := 1
	for i := len(shape) - 1; i >= 0; i-- {
		s[i] = stride
		stride *= shape[i]
	}
	return s
}

// MatMulTensor multiplies two 2D matrices: [M, K] @ [K, N] -> [M, N].
func MatMulTensor(t1, t2 *Tensor) (*Tensor, error) {
	shape1 := t1.GetShape()
	shape2 := t2.GetShape()
	if len(shape1) != 2 || len(shape2) != 2 {
		return nil, fmt.Errorf("matmul supports 2D tensors ([M, K] @ [K, N]), got %v and %v", shape1, shape2)
	}

	m, k := shape1[0], shape1[1]
	k2, n := shape2[0], shape2[1]
	if k != k2 {
		return nil, fmt.Errorf("matmul inner dimensions mismatch: %v and %v", shape1, shape2)
	}

	outData := make([]float64, m*n)
	for i := 0; i < m; i++ {
		for kk := 0; kk < k; kk++ {
			a := t1.data[i*k+kk]
			if a == 0 {
				continue
			}
			row := t2.data[kk*n : kk*n+n]
			outRow := outData[i*n : i*n+n]
			for j := range row {
				outRow[j] += a * row[j]
			}
		}
	}

	out, err := NewTensor([]int{m, n}, outData)
	if err != nil {
		return nil, err
	}

	if t1.RequiresGrad || t2.RequiresGrad {
		out.RequiresGrad = true
		out.Parents = []*Tensor{t1, t2}
		out.Operation = "matmul"
		out.BackwardFunc = func(grad *Tensor) {
			// dL/dX = dL/dO @ W^T, dL/dW = X^T @ dL/dO
			if t1.RequiresGrad {
				t2T, err := Transpose(t2)
				if err == nil {
					if g, err := MatMulTensor(grad, t2T); err == nil {
						t1.Backward(g)
					}
				}
			}
			if t2.RequiresGrad {
				t1T, err := Transpose(t1)
				if err == nil {
					if g, err := MatMulTensor(t1T, grad); err == nil {
						t2.Backward(g)
					}
				}
			}
		}
	}
	return out, nil
}

// AddTensorBroadcast adds a 1D bias to t along the channel axis. For a 4D
// tensor [B, C, H, W] the bias must have shape [C]; for a 2D tensor [B, N]
// the bias must have shape [N]. The backward pass sums the gradient over
// the broadcast axes for the bias.
func AddTensorBroadcast(t, bias *Tensor) (*Tensor, error) {
	bShape := bias.GetShape()
	if len(bShape) != 1 {
		return nil, fmt.Errorf("broadcast add expects 1D bias, got %v", bShape)
	}
	shape := t.GetShape()

	outData := make([]float64, len(t.data))
	switch len(shape) {
	case 2:
		b, n := shape[0], shape[1]
		if bShape[0] != n {
			return nil, fmt.Errorf("bias [%d] does not match last axis of %v", bShape[0], shape)
		}
		for i := 0; i < b; i++ {
			for j := 0; j < n; j++ {
				outData[i*n+j] = t.data[i*n+j] + bias.data[j]
			}
		}
	case 4:
		b, c, h, w := shape[0], shape[1], shape[2], shape[3]
		if bShape[0] != c {
			return nil, fmt.Errorf("bias [%d] does not match channel axis of %v", bShape[0], shape)
		}
		plane := h * w
		for i := 0; i < b; i++ {
			for j := 0; j < c; j++ {
				base := i*c*plane + j*plane
				bv := bias.data[j]
				for p := 0; p < plane; p++ {
					outData[base+p] = t.data[base+p] + bv
				}
			}
		}
	default:
		return nil, fmt.Errorf("broadcast add supports 2D or 4D tensors, got %v", shape)
	}

	out, err := NewTensor(shape, outData)
	if err != nil {
		return nil, err
	}

	if t.RequiresGrad || bias.RequiresGrad {
		out.RequiresGrad = true
		out.Parents = []*Tensor{t, bias}
		out.Operation = "broadcast_add"
		out.BackwardFunc = func(grad *Tensor) {
			if t.RequiresGrad {
				t.Backward(CloneTensor(grad))
			}
			if bias.RequiresGrad {
				bg := make([]float64, bShape[0])
				if len(shape) == 2 {
					b, n := shape[0], shape[1]
					for i := 0; i < b; i++ {
						for j := 0; j < n; j++ {
							bg[j] += grad.data[i*n+j]
						}
					}
				} else {
					b, c, plane := shape[0], shape[1], shape[2]*shape[3]
					for i := 0; i < b; i++ {
						for j := 0; j < c; j++ {
							base := i*c*plane + j*plane
							for p := 0; p < plane; p++ {
								bg[j] += grad.data[base+p]
							}
						}
					}
				}
				bt, _ := NewTensor(bShape, bg)
				bias.Backward(bt)
			}
		}
	}
	return out, nil
}

// Mean reduces a tensor to its scalar mean (shape [1]).
func Mean(t *Tensor) (*Tensor, error) {
	n := Numel(t)
	if n == 0 {
		return nil, fmt.Errorf("mean of empty tensor")
	}
	sum := 0.0
	for _, v := range t.data {
		sum += v
	}

	out, err := NewTensor([]int{1}, []float64{sum / float64(n)})
	if err != nil {
		return nil, err
	}

	if t.RequiresGrad {
		out.RequiresGrad = true
		out.Parents = []*Tensor{t}
		out.Operation = "mean"
		out.BackwardFunc = func(grad *Tensor) {
			g := grad.data[0] / float64(n)
			gd := make([]float64, n)
			for i := range gd {
				gd[i] = g
			}
			gt, _ := NewTensor(append([]int{}, t.shape...), gd)
			t.Backward(gt)
		}
	}
	return out, nil
}

// SelectIndex picks a single element of the flattened tensor as a scalar
// (shape [1]). The backward pass scatters the gradient into that position.
func SelectIndex(t *Tensor, index int) (*Tensor, error) {
	if index < 0 || index >= len(t.data) {
		return nil, fmt.Errorf("index %d out of range for tensor with %d elements", index, len(t.data))
	}

	out, err := NewTensor([]int{1}, []float64{t.data[index]})
	if err != nil {
		return nil, err
	}

	if t.RequiresGrad {
		out.RequiresGrad = true
		out.Parents = []*Tensor{t}
		out.Operation = "select"
		out.BackwardFunc = func(grad *Tensor) {
			gd := make([]float64, len(t.data))
			gd[index] = grad.data[0]
			gt, _ := NewTensor(append([]int{}, t.shape...), gd)
			t.Backward(gt)
		}
	}
	return out, nil
}

// SliceChannel extracts channel c of a 4D [B, C, H, W] tensor as
// [B, 1, H, W]. The backward pass scatters the gradient back into the
// source channel.
func SliceChannel(t *Tensor, c int) (*Tensor, error) {
	shape := t.GetShape()
	if len(shape) != 4 {
		return nil, fmt.Errorf("slice channel expects a 4D tensor, got %v", shape)
	}
	b, channels, h, w := shape[0], shape[1], shape[2], shape[3]
	if c < 0 || c >= channels {
		return nil, fmt.Errorf("channel %d out of range for %d channels", c, channels)
	}

	plane := h * w
	outData := make([]float64, b*plane)
	for i := 0; i < b; i++ {
		src := t.data[i*channels*plane+c*plane : i*channels*plane+(c+1)*plane]
		copy(outData[i*plane:(i+1)*plane], src)
	}

	out, err := NewTensor([]int{b, 1, h, w}, outData)
	if err != nil {
		return nil, err
	}

	if t.RequiresGrad {
		out.RequiresGrad = true
		out.Parents = []*Tensor{t}
		out.Operation = "slice_channel"
		out.BackwardFunc = func(grad *Tensor) {
			gd := make([]float64, len(t.data))
			for i := 0; i < b; i++ {
				copy(gd[i*channels*plane+c*plane:i*channels*plane+(c+1)*plane], grad.data[i*plane:(i+1)*plane])
			}
			gt, _ := NewTensor(append([]int{}, t.shape...), gd)
			t.Backward(gt)
		}
	}
	return out, nil
}
