// Package attribution computes class-evidence maps for a model and input:
// GradCAM heatmaps over a chosen internal layer and Integrated Gradients
// attribution maps over the input pixels.
package attribution

import (
	"sync"

	"github.com/CoderZ865/WhyteBox/model"
	"github.com/CoderZ865/WhyteBox/tensor"
	"github.com/CoderZ865/WhyteBox/utility"
)

// newScope is a seam for tests to observe per-request scopes.
var newScope = tensor.NewScope

// DefaultAlpha is the blend factor for heatmap overlays.
const DefaultAlpha = 0.6

// DefaultSteps is the Integrated Gradients path resolution, the standard
// accuracy/cost compromise from the method's paper.
const DefaultSteps = 50

// Engine owns the attribution computations for one model. The mutex
// serializes requests: concurrent gradient passes over the same model
// session would race on the shared activation buffers, so a second request
// queues behind the one in flight.
type Engine struct {
	model  *model.Model
	logger utility.Logger
	mu     sync.Mutex
}

func NewEngine(m *model.Model, logger utility.Logger) *Engine {
	if logger == nil {
		logger = utility.DefaultLogger()
	}
	return &Engine{model: m, logger: logger}
}

func argmax(data []float64) int {
	best := 0
	for i := 1; i < len(data); i++ {
		if data[i] > data[best] {
			best = i
		}
	}
	return best
}
