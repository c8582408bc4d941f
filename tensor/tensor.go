package tensor

import (
	"fmt"
)

// Tensor is an n-dimensional float64 array with optional reverse-mode
// autograd bookkeeping. Ops return new tensors; when an op's inputs require
// gradients, the output carries a BackwardFunc that propagates the incoming
// gradient to its parents.
type Tensor struct {
	shape        []int
	data         []float64
	Grad         *Tensor
	RequiresGrad bool
	Parents      []*Tensor
	Operation    string
	BackwardFunc func(*Tensor)

	released bool
}

// IsSameSize reports whether two tensors have identical shapes.
func IsSameSize(a, b *Tensor) bool {
	if len(a.shape) != len(b.shape) {
		return false
	}
	for i := range a.shape {
		if a.shape[i] != b.shape[i] {
			return false
		}
	}
	return true
}

// NewTensor builds a tensor with the given shape. An empty data slice
// allocates a zero-filled buffer of the implied size.
func NewTensor(shape []int, data []float64) (*Tensor, error) {
	total := 1
	for _, dim := range shape {
		if dim <= 0 {
			return nil, fmt.Errorf("shape %v contains non-positive dimension", shape)
		}
		total *= dim
	}
	if len(data) > 0 && total != len(data) {
		return nil, fmt.Errorf("shape %v implies %d elements but data has length %d", shape, total, len(data))
	}
	if len(data) == 0 && total > 0 {
		data = make([]float64, total)
	}

	return &Tensor{
		shape: append([]int{}, shape...),
		data:  append([]float64{}, data...),
	}, nil
}

// CloneTensor copies shape and data. The clone is detached from any graph.
func CloneTensor(t *Tensor) *Tensor {
	clonedData := make([]float64, len(t.data))
	copy(clonedData, t.data)

	return &Tensor{
		data:         clonedData,
		shape:        append([]int{}, t.shape...),
		RequiresGrad: t.RequiresGrad,
	}
}

// Numel returns the number of elements implied by the tensor's shape.
func Numel(t *Tensor) int {
	if t == nil {
		return 0
	}
	if len(t.shape) == 0 {
		if len(t.data) == 1 {
			return 1
		}
		return 0
	}
	n := 1
	for _, s := range t.shape {
		if s <= 0 {
			return 0
		}
		n *= s
	}
	return n
}

func (t *Tensor) GetData() []float64 {
	return t.data
}

func (t *Tensor) GetShape() []int {
	return t.shape
}

// Released reports whether the tensor's buffer has been dropped via a Scope.
func (t *Tensor) Released() bool {
	return t.released
}

// Release drops the tensor's buffer and detaches it from any autograd graph.
// A released tensor must not be used again; it exists so request-scoped code
// can prove it freed everything it created (see Scope).
func (t *Tensor) Release() {
	t.data = nil
	t.Grad = nil
	t.Parents = nil
	t.BackwardFunc = nil
	t.released = true
}

// OnesLike returns a tensor of the same shape filled with 1.
func OnesLike(t *Tensor) (*Tensor, error) {
	data := make([]float64, Numel(t))
	for i := range data {
		data[i] = 1
	}
	return NewTensor(append([]int{}, t.shape...), data)
}

// ZeroGrad clears the accumulated gradient, allocating a zero buffer when
// the tensor requires gradients but has none yet.
func (t *Tensor) ZeroGrad() {
	if t.Grad != nil {
		for i := range t.Grad.data {
			t.Grad.data[i] = 0
		}
	} else if t.RequiresGrad {
		zero, err := NewTensor(append([]int{}, t.shape...), nil)
		if err == nil {
			t.Grad = zero
		}
	}
}

// Backward accumulates grad into t.Grad and propagates through BackwardFunc.
// A nil grad is allowed for scalar tensors and seeds the pass with 1.
func (t *Tensor) Backward(grad *Tensor) {
	if !t.RequiresGrad {
		return
	}

	if grad == nil {
		if Numel(t) != 1 {
			return
		}
		grad, _ = NewTensor(append([]int{}, t.shape...), []float64{1.0})
	} else if !IsSameSize(t, grad) {
		return
	}

	if t.Grad == nil {
		gradCopy := make([]float64, len(grad.data))
		copy(gradCopy, grad.data)
		accum, err := NewTensor(append([]int{}, t.shape...), gradCopy)
		if err != nil {
			return
		}
		t.Grad = accum
	} else {
		for i := range t.Grad.data {
			t.Grad.data[i] += grad.data[i]
		}
	}

	if t.BackwardFunc != nil {
		t.BackwardFunc(grad)
	}
}

// String renders shape, a data preview and grad status for debugging.
func (t *Tensor) String() string {
	if t == nil {
		return "<nil tensor>"
	}
	preview := t.data
	if len(preview) > 8 {
		preview = preview[:8]
	}
	s := fmt.Sprintf("Tensor(shape=%v, data=%v", t.shape, preview)
	if len(t.data) > 8 {
		s += "..."
	}
	if t.RequiresGrad {
		s += ", requires_grad"
	}
	if t.Operation != "" {
		s += ", op=" + t.Operation
	}
	return s + ")"
}
