package nn

import "github.com/CoderZ865/WhyteBox/tensor"

// Layer is the interface all network layers implement.
type Layer interface {
	Forward(input *tensor.Tensor) (*tensor.Tensor, error)
	Parameters() []*tensor.Tensor
	ZeroGrad()
	Name() string
}

// Freeze marks every parameter of a layer as not requiring gradients. The
// visualizer never trains, so models freeze all weights at build time and
// gradients flow only through tensors a component explicitly enables
// (inputs, tapped activations).
func Freeze(l Layer) {
	for _, p := range l.Parameters() {
		p.RequiresGrad = false
	}
}

// --- Activation layers ---

type RELUActivation struct{}

func NewRELU() *RELUActivation { return &RELUActivation{} }

func (r *RELUActivation) Forward(input *tensor.Tensor) (*tensor.Tensor, error) { return RELU(input) }
func (r *RELUActivation) Parameters() []*tensor.Tensor                         { return nil }
func (r *RELUActivation) ZeroGrad()                                            {}
func (r *RELUActivation) Name() string                                         { return "ReLU" }

// ReLU6Activation is the clipped rectifier MobileNet-family nets use.
type ReLU6Activation struct{}

func NewRELU6() *ReLU6Activation { return &ReLU6Activation{} }

func (r *ReLU6Activation) Forward(input *tensor.Tensor) (*tensor.Tensor, error) { return RELU6(input) }
func (r *ReLU6Activation) Parameters() []*tensor.Tensor                         { return nil }
func (r *ReLU6Activation) ZeroGrad()                                            {}
func (r *ReLU6Activation) Name() string                                         { return "ReLU6" }

type SoftmaxActivation struct{}

func NewSoftmaxLayer() *SoftmaxActivation { return &SoftmaxActivation{} }

func (s *SoftmaxActivation) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	return Softmax(input)
}
func (s *SoftmaxActivation) Parameters() []*tensor.Tensor { return nil }
func (s *SoftmaxActivation) ZeroGrad()                    {}
func (s *SoftmaxActivation) Name() string                 { return "Softmax" }

// Dropout is an identity at inference time; it exists so ingested layer
// lists keep their positions and the recorded rate stays inspectable.
type Dropout struct {
	Rate float64
}

func NewDropout(rate float64) *Dropout { return &Dropout{Rate: rate} }

func (d *Dropout) Forward(input *tensor.Tensor) (*tensor.Tensor, error) { return input, nil }
func (d *Dropout) Parameters() []*tensor.Tensor                         { return nil }
func (d *Dropout) ZeroGrad()                                            {}
func (d *Dropout) Name() string                                         { return "Dropout" }
