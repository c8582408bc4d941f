// Package autograd provides the gradient entry points used by the
// attribution and synthesis components. The graph itself is recorded by the
// ops in the tensor package; this package only seeds and reads it out.
package autograd

import (
	"fmt"

	"github.com/CoderZ865/WhyteBox/tensor"
)

// Backward seeds a ones-gradient on a scalar root and runs the recursive
// backward pass through the recorded graph.
func Backward(root *tensor.Tensor) error {
	if !root.RequiresGrad {
		return fmt.Errorf("backward: root does not require grad")
	}
	if tensor.Numel(root) != 1 {
		return fmt.Errorf("backward: root must be scalar, got shape %v", root.GetShape())
	}
	root.Backward(nil)
	return nil
}

// Grad computes d(scalar)/d(wrt) and returns it as a detached tensor. Any
// gradient already accumulated on wrt is cleared first, so repeated calls
// within one request never observe stale values from a previous pass.
func Grad(scalar, wrt *tensor.Tensor) (*tensor.Tensor, error) {
	if !wrt.RequiresGrad {
		return nil, fmt.Errorf("grad: target tensor does not require grad")
	}
	wrt.Grad = nil
	if err := Backward(scalar); err != nil {
		return nil, err
	}
	if wrt.Grad == nil {
		return nil, fmt.Errorf("grad: no gradient path from objective to target")
	}
	g := tensor.CloneTensor(wrt.Grad)
	g.RequiresGrad = false
	return g, nil
}
