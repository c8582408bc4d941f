// Package synth generates inputs that maximally excite a chosen filter:
// gradient ascent from uniform noise on the objective
// mean(activation[filter]) - lambda * mean(input^2).
package synth

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/CoderZ865/WhyteBox/autograd"
	"github.com/CoderZ865/WhyteBox/model"
	"github.com/CoderZ865/WhyteBox/optimizer"
	"github.com/CoderZ865/WhyteBox/tensor"
	"github.com/CoderZ865/WhyteBox/utility"
)

// newScope is a seam for tests to observe per-request scopes.
var newScope = tensor.NewScope

// ProgressFunc is called once per ascent iteration with the current and
// best objective values seen so far.
type ProgressFunc func(iteration, totalIterations int, objective, best float64)

// Options controls one synthesis run. A zero field selects its default,
// except Iterations where an explicit 0 is honored and returns the
// normalized initial noise.
type Options struct {
	Iterations     int
	LearningRate   float64
	Regularization float64
	// Width and Height are the output resolution; the ascent itself runs
	// at the model's native input resolution.
	Width  int
	Height int
	// Progress, when set, observes every iteration.
	Progress ProgressFunc
}

func DefaultOptions() Options {
	return Options{
		Iterations:     150,
		LearningRate:   0.1,
		Regularization: 0.001,
		Width:          224,
		Height:         224,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Iterations < 0 {
		o.Iterations = d.Iterations
	}
	if o.LearningRate <= 0 {
		o.LearningRate = d.LearningRate
	}
	if o.Regularization <= 0 {
		o.Regularization = d.Regularization
	}
	if o.Width <= 0 {
		o.Width = d.Width
	}
	if o.Height <= 0 {
		o.Height = d.Height
	}
	return o
}

// Synthesizer owns activation-maximization runs for one model. Runs mutate
// per-run state only, but share the model's forward pass, so the mutex
// queues concurrent requests.
type Synthesizer struct {
	model  *model.Model
	logger utility.Logger
	rng    *rand.Rand
	mu     sync.Mutex
}

func NewSynthesizer(m *model.Model, logger utility.Logger, rng *rand.Rand) *Synthesizer {
	if logger == nil {
		logger = utility.DefaultLogger()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &Synthesizer{model: m, logger: logger, rng: rng}
}

// channelsAt reports how many channels the named layer produces, probing
// with a zero input.
func (s *Synthesizer) channelsAt(layerName string) (int, error) {
	scope := newScope()
	defer scope.Release()

	zero, err := scope.NewTensor(s.model.InputShape(), nil)
	if err != nil {
		return 0, err
	}
	act, err := s.model.ForwardTo(zero, layerName)
	if err != nil {
		return 0, err
	}
	scope.Track(act)

	shape := act.GetShape()
	if len(shape) != 4 {
		return 0, fmt.Errorf("layer %q output has shape %v, not a spatial feature map: %w",
			layerName, shape, model.ErrUnsupportedLayerKind)
	}
	return shape[1], nil
}

// VisualizeFilter synthesizes the input pattern the given filter responds
// to most strongly. It returns a [1, C, Height, Width] tensor normalized to
// [0, 1]; with Iterations of 0 that is the normalized initial noise. The
// best iterate by objective value is returned, not necessarily the last.
func (s *Synthesizer) VisualizeFilter(ctx context.Context, layerName string, filterIndex int, opts Options) (*tensor.Tensor, error) {
	if s.model == nil {
		return nil, model.ErrModelUnavailable
	}
	opts = opts.withDefaults()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.model.Layer(layerName); err != nil {
		return nil, err
	}
	channels, err := s.channelsAt(layerName)
	if err != nil {
		return nil, err
	}
	if filterIndex < 0 || filterIndex >= channels {
		return nil, fmt.Errorf("filter %d of %d at layer %q: %w",
			filterIndex, channels, layerName, model.ErrIndexOutOfRange)
	}

	x, err := tensor.UniformRand(s.model.InputShape(), -0.1, 0.1, s.rng)
	if err != nil {
		return nil, err
	}
	defer x.Release()
	x.RequiresGrad = true

	opt, err := optimizer.NewAscent([]*tensor.Tensor{x}, opts.LearningRate)
	if err != nil {
		return nil, err
	}

	best := tensor.CloneTensor(x)
	best.RequiresGrad = false
	defer func() { best.Release() }()
	bestObjective := math.Inf(-1)

	for i := 0; i < opts.Iterations; i++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("synthesis at iteration %d: %w", i, ctx.Err())
		default:
		}

		objective, err := s.evaluate(x, layerName, filterIndex, opts.Regularization)
		if err != nil {
			return nil, fmt.Errorf("synthesis iteration %d: %w", i, err)
		}
		// Snapshot before stepping so the retained iterate is the one the
		// objective was measured at.
		if objective > bestObjective {
			bestObjective = objective
			best.Release()
			best = tensor.CloneTensor(x)
			best.RequiresGrad = false
		}
		if err := opt.Step(); err != nil {
			return nil, fmt.Errorf("synthesis iteration %d: %w", i, err)
		}
		if opts.Progress != nil {
			opts.Progress(i+1, opts.Iterations, objective, bestObjective)
		}
	}

	return s.finalize(best, opts)
}

// evaluate computes the objective at x and backpropagates it, leaving the
// ascent gradient in x.Grad. It does not step.
func (s *Synthesizer) evaluate(x *tensor.Tensor, layerName string, filterIndex int, regularization float64) (float64, error) {
	scope := newScope()
	defer scope.Release()

	act, err := s.model.ForwardTo(x, layerName)
	if err != nil {
		return 0, err
	}
	scope.Track(act)

	slice, err := tensor.SliceChannel(act, filterIndex)
	if err != nil {
		return 0, err
	}
	scope.Track(slice)

	mean, err := tensor.Mean(slice)
	if err != nil {
		return 0, err
	}
	scope.Track(mean)

	squared, err := tensor.MulTensor(x, x)
	if err != nil {
		return 0, err
	}
	scope.Track(squared)

	meanSquared, err := tensor.Mean(squared)
	if err != nil {
		return 0, err
	}
	scope.Track(meanSquared)

	penalty, err := tensor.ScaleTensor(meanSquared, regularization)
	if err != nil {
		return 0, err
	}
	scope.Track(penalty)

	objective, err := tensor.SubTensor(mean, penalty)
	if err != nil {
		return 0, err
	}
	scope.Track(objective)
	value := objective.GetData()[0]

	x.Grad = nil
	if err := autograd.Backward(objective); err != nil {
		return 0, err
	}
	return value, nil
}

func (s *Synthesizer) finalize(best *tensor.Tensor, opts Options) (*tensor.Tensor, error) {
	scope := newScope()
	defer scope.Release()

	shape := best.GetShape()
	out := tensor.CloneTensor(best)
	scope.Track(out)

	if shape[2] != opts.Height || shape[3] != opts.Width {
		resized, err := tensor.ResizeBilinearNCHW(out, opts.Height, opts.Width)
		if err != nil {
			return nil, err
		}
		scope.Track(resized)
		out = resized
	}

	normalized, err := tensor.NormalizeUnit(out)
	if err != nil {
		return nil, err
	}
	scope.Track(normalized)
	return scope.Detach(normalized), nil
}
