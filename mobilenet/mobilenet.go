// Package mobilenet assembles the reference MobileNetV2-style architecture
// the visualizer ships with: a conv stem, inverted-residual blocks built
// from expand / depthwise / project convolutions, and a pooled dense head.
// The network is intentionally narrow so pure-Go gradient passes stay
// interactive; the explanation algorithms do not care about scale.
package mobilenet

import (
	"fmt"
	"math/rand"

	"github.com/CoderZ865/WhyteBox/model"
	"github.com/CoderZ865/WhyteBox/nn"
)

const (
	// InputSize is the spatial resolution the reference model expects.
	InputSize = 32
	// NumClasses is the width of the classifier head.
	NumClasses = 10
)

// New builds the reference model with random frozen weights. rng may be nil.
func New(rng *rand.Rand) (*model.Model, error) {
	m, err := model.New("mobilenetv2-small", model.FamilyMobileNet, []int{1, 3, InputSize, InputSize})
	if err != nil {
		return nil, err
	}

	type step struct {
		name  string
		kind  model.LayerKind
		build func() (nn.Layer, error)
	}

	conv := func(in, out, k, stride int) func() (nn.Layer, error) {
		return func() (nn.Layer, error) { return nn.NewConv2D(in, out, k, stride, k/2, rng) }
	}
	depthwise := func(c, stride int) func() (nn.Layer, error) {
		return func() (nn.Layer, error) { return nn.NewDepthwiseConv2D(c, 3, stride, 1, rng) }
	}
	batchnorm := func(c int) func() (nn.Layer, error) {
		return func() (nn.Layer, error) { return nn.NewBatchNorm2D(c) }
	}
	relu6 := func() (nn.Layer, error) { return nn.NewRELU6(), nil }

	steps := []step{
		// stem: 3 -> 8 channels, 32 -> 16 spatial
		{"stem_conv", model.KindConv, conv(3, 8, 3, 2)},
		{"stem_bn", model.KindBatchNorm, batchnorm(8)},
		{"stem_relu", model.KindActivation, relu6},

		// block1: expand 8 -> 16, depthwise, project back to 8
		{"block1_expand", model.KindConv, conv(8, 16, 1, 1)},
		{"block1_expand_relu", model.KindActivation, relu6},
		{"block1_depthwise", model.KindDepthwiseConv, depthwise(16, 1)},
		{"block1_depthwise_relu", model.KindActivation, relu6},
		{"block1_project", model.KindConv, conv(16, 8, 1, 1)},
		{"block1_bn", model.KindBatchNorm, batchnorm(8)},

		// block2: same expansion with a residual skip (stride 1, matching
		// channels, so the add is well-formed)
		{"block2_add", model.KindAdd, func() (nn.Layer, error) {
			expand, err := nn.NewConv2D(8, 16, 1, 1, 0, rng)
			if err != nil {
				return nil, err
			}
			dw, err := nn.NewDepthwiseConv2D(16, 3, 1, 1, rng)
			if err != nil {
				return nil, err
			}
			project, err := nn.NewConv2D(16, 8, 1, 1, 0, rng)
			if err != nil {
				return nil, err
			}
			return nn.NewResidual(expand, nn.NewRELU6(), dw, nn.NewRELU6(), project), nil
		}},

		// block3: downsampling block, 16 -> 8 spatial, widen to 16 channels
		{"block3_expand", model.KindConv, conv(8, 16, 1, 1)},
		{"block3_expand_relu", model.KindActivation, relu6},
		{"block3_depthwise", model.KindDepthwiseConv, depthwise(16, 2)},
		{"block3_depthwise_relu", model.KindActivation, relu6},
		{"block3_project", model.KindConv, conv(16, 16, 1, 1)},
		{"block3_bn", model.KindBatchNorm, batchnorm(16)},

		// head
		{"head_pool", model.KindPool, func() (nn.Layer, error) { return nn.NewGlobalAvgPool2D(), nil }},
		{"head_fc", model.KindDense, func() (nn.Layer, error) { return nn.NewLinear(16, NumClasses, rng) }},
		{"head_softmax", model.KindActivation, func() (nn.Layer, error) { return nn.NewSoftmaxLayer(), nil }},
	}

	for _, s := range steps {
		layer, err := s.build()
		if err != nil {
			return nil, fmt.Errorf("building %s: %w", s.name, err)
		}
		if err := m.Append(s.name, s.kind, layer); err != nil {
			return nil, err
		}
	}

	m.Freeze()
	return m, nil
}

// DefaultDescriptors is the embedded last-resort architecture for the
// loader chain: a plain small CNN without skip connections, expressible as
// a flat descriptor list.
func DefaultDescriptors() []model.Descriptor {
	return []model.Descriptor{
		{Type: "conv2d", Name: "conv1", Filters: 8, KernelSize: 3, Strides: 1},
		{Type: "activation", Name: "relu1", Activation: "relu6"},
		{Type: "maxpooling2d", Name: "pool1", PoolSize: 2},
		{Type: "depthwiseconv2d", Name: "dw1", KernelSize: 3, Strides: 1},
		{Type: "activation", Name: "relu2", Activation: "relu6"},
		{Type: "conv2d", Name: "conv2", Filters: 16, KernelSize: 1, Strides: 1},
		{Type: "globalaveragepooling2d", Name: "pool2"},
		{Type: "dense", Name: "fc", Units: NumClasses},
		{Type: "activation", Name: "softmax", Activation: "softmax"},
	}
}

// Strategies returns the loader chain the demo uses: descriptor files in
// preference order, then the embedded reference model.
func Strategies(descriptorPaths []string, rng *rand.Rand) []model.LoaderStrategy {
	var chain []model.LoaderStrategy
	for _, p := range descriptorPaths {
		chain = append(chain, model.FileStrategy{
			Path:       p,
			ModelName:  "mobilenetv2-small",
			Family:     model.FamilyMobileNet,
			InputShape: []int{1, 3, InputSize, InputSize},
			Rng:        rng,
		})
	}
	chain = append(chain, model.BuilderStrategy{
		StrategyName: "embedded-default",
		Build:        func() (*model.Model, error) { return New(rng) },
	})
	return chain
}
