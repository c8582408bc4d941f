// Package model wraps an ordered set of named layers with the operations
// the visualization components need: plain inference, inference truncated
// at an internal layer, and a single-pass forward that taps an intermediate
// activation for gradient computation.
package model

import (
	"fmt"

	"github.com/CoderZ865/WhyteBox/nn"
	"github.com/CoderZ865/WhyteBox/tensor"
)

// Family tags the preprocessing convention a model was trained with.
type Family string

const (
	FamilyMobileNet Family = "mobilenet"
	FamilyInception Family = "inception"
	FamilyGeneric   Family = "generic"
)

// NamedLayer pairs a layer with its unique name and ingestion-time kind.
type NamedLayer struct {
	Name  string
	Kind  LayerKind
	Layer nn.Layer
}

// LayerHandle is the read-only view of a layer handed to inspectors.
// Weights is nil for kinds without a weight tensor.
type LayerHandle struct {
	Name        string
	Kind        LayerKind
	Weights     *tensor.Tensor
	OutChannels int
}

// Model is an ordered, named sequence of layers. It is read-only after
// construction and safe to share across requests; per-request state lives
// entirely in the tensors flowing through it.
type Model struct {
	name       string
	family     Family
	inputShape []int // [1, C, H, W]
	layers     []NamedLayer
	byName     map[string]int
}

func New(name string, family Family, inputShape []int) (*Model, error) {
	if len(inputShape) != 4 || inputShape[0] != 1 {
		return nil, fmt.Errorf("model input shape must be [1, C, H, W], got %v", inputShape)
	}
	return &Model{
		name:       name,
		family:     family,
		inputShape: append([]int{}, inputShape...),
		byName:     make(map[string]int),
	}, nil
}

// Append adds a named layer. Names must be unique within the model.
func (m *Model) Append(name string, kind LayerKind, layer nn.Layer) error {
	if _, dup := m.byName[name]; dup {
		return fmt.Errorf("duplicate layer name %q", name)
	}
	m.byName[name] = len(m.layers)
	m.layers = append(m.layers, NamedLayer{Name: name, Kind: kind, Layer: layer})
	return nil
}

// Freeze marks every parameter as not requiring gradients. Called once
// after construction; the visualizer only ever differentiates with respect
// to inputs and tapped activations.
func (m *Model) Freeze() {
	for _, nl := range m.layers {
		nn.Freeze(nl.Layer)
	}
}

func (m *Model) Name() string        { return m.name }
func (m *Model) Family() Family      { return m.family }
func (m *Model) Layers() []NamedLayer {
	return m.layers
}

// InputShape returns a copy of the expected input shape [1, C, H, W].
func (m *Model) InputShape() []int {
	return append([]int{}, m.inputShape...)
}

// Layer resolves a layer name to a handle, or ErrLayerNotFound.
func (m *Model) Layer(name string) (LayerHandle, error) {
	idx, ok := m.byName[name]
	if !ok {
		return LayerHandle{}, fmt.Errorf("%w: %q", ErrLayerNotFound, name)
	}
	nl := m.layers[idx]
	h := LayerHandle{Name: nl.Name, Kind: nl.Kind}

	switch l := nl.Layer.(type) {
	case *nn.Conv2D:
		h.Weights = l.Weight
		h.OutChannels = l.Weight.GetShape()[0]
	case *nn.DepthwiseConv2D:
		h.Weights = l.Weight
		h.OutChannels = l.Weight.GetShape()[0]
	case *nn.Linear:
		h.Weights = l.Weight
		h.OutChannels = l.Weight.GetShape()[1]
	}
	return h, nil
}

// Predict runs a full forward pass.
func (m *Model) Predict(x *tensor.Tensor) (*tensor.Tensor, error) {
	if len(m.layers) == 0 {
		return nil, fmt.Errorf("%w: model %q has no layers", ErrModelUnavailable, m.name)
	}
	var err error
	for _, nl := range m.layers {
		x, err = nl.Layer.Forward(x)
		if err != nil {
			return nil, fmt.Errorf("layer %q forward failed: %w", nl.Name, err)
		}
	}
	return x, nil
}

// ForwardTo runs the model truncated at the named layer and returns that
// layer's activation.
func (m *Model) ForwardTo(x *tensor.Tensor, layerName string) (*tensor.Tensor, error) {
	idx, ok := m.byName[layerName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrLayerNotFound, layerName)
	}
	var err error
	for i := 0; i <= idx; i++ {
		x, err = m.layers[i].Layer.Forward(x)
		if err != nil {
			return nil, fmt.Errorf("layer %q forward failed: %w", m.layers[i].Name, err)
		}
	}
	return x, nil
}

// ForwardWithTap runs one full forward pass and returns both the named
// layer's activation and the final output. The tap is marked as requiring
// gradients before the remaining layers consume it, so a backward pass from
// any scalar of the output deposits d(scalar)/d(tap) on the tap tensor.
// Both values come from the same pass: attribution code must never pair an
// activation from one pass with gradients from another.
func (m *Model) ForwardWithTap(x *tensor.Tensor, layerName string) (tap, out *tensor.Tensor, err error) {
	idx, ok := m.byName[layerName]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrLayerNotFound, layerName)
	}
	for i, nl := range m.layers {
		x, err = nl.Layer.Forward(x)
		if err != nil {
			return nil, nil, fmt.Errorf("layer %q forward failed: %w", nl.Name, err)
		}
		if i == idx {
			tap = x
			tap.RequiresGrad = true
		}
	}
	return tap, x, nil
}
