// Package optimizer provides the parameter-update rules used in this
// repository: plain SGD and the RMS-normalized gradient ascent that drives
// activation maximization.
package optimizer

import (
	"fmt"
	"math"

	"github.com/CoderZ865/WhyteBox/tensor"
)

// Optimizer is the common contract for update rules.
type Optimizer interface {
	Step() error
	ZeroGrad()
	Parameters() []*tensor.Tensor
}

func validate(parameters []*tensor.Tensor, learningRate float64) ([]*tensor.Tensor, error) {
	if learningRate <= 0 {
		return nil, fmt.Errorf("optimizer: learning rate must be positive, got %f", learningRate)
	}
	valid := make([]*tensor.Tensor, 0, len(parameters))
	for _, p := range parameters {
		if p != nil && p.RequiresGrad {
			valid = append(valid, p)
		}
	}
	if len(valid) == 0 {
		return nil, fmt.Errorf("optimizer: no parameters requiring gradients provided")
	}
	return valid, nil
}

// SGD applies parameter = parameter - learningRate * gradient.
type SGD struct {
	learningRate float64
	parameters   []*tensor.Tensor
}

func NewSGD(parameters []*tensor.Tensor, learningRate float64) (*SGD, error) {
	valid, err := validate(parameters, learningRate)
	if err != nil {
		return nil, err
	}
	return &SGD{learningRate: learningRate, parameters: valid}, nil
}

func (s *SGD) Step() error {
	for _, p := range s.parameters {
		if p.Grad == nil {
			continue
		}
		if !tensor.IsSameSize(p, p.Grad) {
			return fmt.Errorf("optimizer: gradient shape %v does not match parameter shape %v", p.Grad.GetShape(), p.GetShape())
		}
		paramData := p.GetData()
		gradData := p.Grad.GetData()
		for i := range paramData {
			paramData[i] -= s.learningRate * gradData[i]
		}
	}
	return nil
}

func (s *SGD) ZeroGrad() {
	for _, p := range s.parameters {
		p.ZeroGrad()
	}
}

func (s *SGD) Parameters() []*tensor.Tensor { return s.parameters }

// Ascent applies parameter += learningRate * grad / (rms(grad) + ε).
// Normalizing by the RMS magnitude makes the step size scale-invariant,
// which keeps gradient ascent stable across layers whose raw gradient
// magnitudes differ by orders of magnitude.
type Ascent struct {
	learningRate float64
	parameters   []*tensor.Tensor
}

func NewAscent(parameters []*tensor.Tensor, learningRate float64) (*Ascent, error) {
	valid, err := validate(parameters, learningRate)
	if err != nil {
		return nil, err
	}
	return &Ascent{learningRate: learningRate, parameters: valid}, nil
}

func (a *Ascent) Step() error {
	for _, p := range a.parameters {
		if p.Grad == nil {
			continue
		}
		if !tensor.IsSameSize(p, p.Grad) {
			return fmt.Errorf("optimizer: gradient shape %v does not match parameter shape %v", p.Grad.GetShape(), p.GetShape())
		}
		gradData := p.Grad.GetData()
		sumSq := 0.0
		for _, g := range gradData {
			sumSq += g * g
		}
		norm := math.Sqrt(sumSq/float64(len(gradData))) + tensor.Epsilon

		paramData := p.GetData()
		for i := range paramData {
			paramData[i] += a.learningRate * gradData[i] / norm
		}
	}
	return nil
}

func (a *Ascent) ZeroGrad() {
	for _, p := range a.parameters {
		p.ZeroGrad()
	}
}

func (a *Ascent) Parameters() []*tensor.Tensor { return a.parameters }
