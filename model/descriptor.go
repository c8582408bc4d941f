package model

import (
	"encoding/json"
	"fmt"
	"io"
	"math/rand"

	"github.com/CoderZ865/WhyteBox/nn"
)

// Descriptor is one entry of the ingested layer-list format. The format is
// consumed, never produced; unknown fields are ignored.
type Descriptor struct {
	Type       string  `json:"type"`
	Name       string  `json:"name"`
	Filters    int     `json:"filters,omitempty"`
	KernelSize int     `json:"kernel_size,omitempty"`
	Units      int     `json:"units,omitempty"`
	Activation string  `json:"activation,omitempty"`
	Strides    int     `json:"strides,omitempty"`
	PoolSize   int     `json:"pool_size,omitempty"`
	Rate       float64 `json:"rate,omitempty"`
}

// ReadDescriptors decodes a JSON array of layer descriptors.
func ReadDescriptors(r io.Reader) ([]Descriptor, error) {
	var descs []Descriptor
	if err := json.NewDecoder(r).Decode(&descs); err != nil {
		return nil, fmt.Errorf("failed to parse layer descriptors: %w", err)
	}
	return descs, nil
}

// FromDescriptors builds a model from a linear descriptor list. Spatial
// layers use "same" padding. Kinds that need graph structure (add, concat)
// cannot be expressed by a flat list and are rejected; models with skip
// connections are assembled programmatically instead (see the mobilenet
// package).
func FromDescriptors(name string, family Family, inputShape []int, descs []Descriptor, rng *rand.Rand) (*Model, error) {
	m, err := New(name, family, inputShape)
	if err != nil {
		return nil, err
	}

	c, h, w := inputShape[1], inputShape[2], inputShape[3]
	features := 0 // set after flatten / global pool

	for i, d := range descs {
		layerName := d.Name
		if layerName == "" {
			layerName = fmt.Sprintf("%s_%d", d.Type, i)
		}
		kind := ParseLayerKind(d.Type)

		stride := d.Strides
		if stride <= 0 {
			stride = 1
		}

		var layer nn.Layer
		switch kind {
		case KindConv:
			k := d.KernelSize
			if k <= 0 {
				k = 3
			}
			conv, err := nn.NewConv2D(c, d.Filters, k, stride, k/2, rng)
			if err != nil {
				return nil, fmt.Errorf("descriptor %q: %w", layerName, err)
			}
			layer = conv
			c = d.Filters
			h = (h+2*(k/2)-k)/stride + 1
			w = (w+2*(k/2)-k)/stride + 1
		case KindDepthwiseConv:
			k := d.KernelSize
			if k <= 0 {
				k = 3
			}
			dw, err := nn.NewDepthwiseConv2D(c, k, stride, k/2, rng)
			if err != nil {
				return nil, fmt.Errorf("descriptor %q: %w", layerName, err)
			}
			layer = dw
			h = (h+2*(k/2)-k)/stride + 1
			w = (w+2*(k/2)-k)/stride + 1
		case KindPool:
			k := d.PoolSize
			if k <= 0 {
				k = 2
			}
			if stride == 1 && d.Strides <= 0 {
				stride = k
			}
			switch d.Type {
			case "averagepooling2d":
				layer = nn.NewAveragePooling2D(k, stride)
			case "globalaveragepooling2d":
				layer = nn.NewGlobalAvgPool2D()
				features = c
			default:
				layer = nn.NewMaxPooling2D(k, stride)
			}
			if features == 0 {
				h = (h-k)/stride + 1
				w = (w-k)/stride + 1
			}
		case KindBatchNorm:
			bn, err := nn.NewBatchNorm2D(c)
			if err != nil {
				return nil, fmt.Errorf("descriptor %q: %w", layerName, err)
			}
			layer = bn
		case KindFlatten:
			layer = nn.NewFlatten()
			features = c * h * w
		case KindDense:
			if features == 0 {
				return nil, fmt.Errorf("descriptor %q: dense layer before flatten or global pooling", layerName)
			}
			lin, err := nn.NewLinear(features, d.Units, rng)
			if err != nil {
				return nil, fmt.Errorf("descriptor %q: %w", layerName, err)
			}
			layer = lin
			features = d.Units
		case KindDropout:
			layer = nn.NewDropout(d.Rate)
		case KindActivation:
			switch d.Activation {
			case "relu6":
				layer = nn.NewRELU6()
			case "softmax":
				layer = nn.NewSoftmaxLayer()
			default:
				layer = nn.NewRELU()
			}
		case KindAdd, KindConcat:
			return nil, fmt.Errorf("descriptor %q: %s layers need graph structure a flat list cannot express", layerName, kind)
		default:
			return nil, fmt.Errorf("descriptor %q: unknown layer type %q", layerName, d.Type)
		}

		if err := m.Append(layerName, kind, layer); err != nil {
			return nil, err
		}
	}

	m.Freeze()
	return m, nil
}
