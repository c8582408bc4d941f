package nn

import (
	"fmt"

	"github.com/CoderZ865/WhyteBox/tensor"
)

// Residual runs its body layers and adds the block input to their output,
// the inverted-residual skip connection of MobileNetV2. The body must
// preserve the input shape.
type Residual struct {
	Body []Layer
}

func NewResidual(body ...Layer) *Residual {
	return &Residual{Body: body}
}

func (r *Residual) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	y := input
	var err error
	for _, layer := range r.Body {
		y, err = layer.Forward(y)
		if err != nil {
			return nil, fmt.Errorf("residual body %s failed: %w", layer.Name(), err)
		}
	}
	if !tensor.IsSameSize(input, y) {
		return nil, fmt.Errorf("residual body changed shape from %v to %v", input.GetShape(), y.GetShape())
	}
	// AddTensor accumulates gradients into the input along both paths
	return tensor.AddTensor(input, y)
}

func (r *Residual) Parameters() []*tensor.Tensor {
	var params []*tensor.Tensor
	for _, layer := range r.Body {
		params = append(params, layer.Parameters()...)
	}
	return params
}

func (r *Residual) ZeroGrad() {
	for _, layer := range r.Body {
		layer.ZeroGrad()
	}
}

func (r *Residual) Name() string { return "Residual" }
