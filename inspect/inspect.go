// Package inspect renders what a model has learned without touching
// gradients: raw convolution kernels as grayscale tiles, and the feature
// maps a specific image produces at an internal layer.
package inspect

import (
	"github.com/CoderZ865/WhyteBox/model"
	"github.com/CoderZ865/WhyteBox/tensor"
	"github.com/CoderZ865/WhyteBox/utility"
)

// newScope is a seam for tests to observe per-request scopes.
var newScope = tensor.NewScope

// Inspector reads weights and activations out of one model. Inspection is
// read-only, so unlike the gradient engines it needs no serialization.
type Inspector struct {
	model  *model.Model
	logger utility.Logger
}

func NewInspector(m *model.Model, logger utility.Logger) *Inspector {
	if logger == nil {
		logger = utility.DefaultLogger()
	}
	return &Inspector{model: m, logger: logger}
}
