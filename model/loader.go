package model

import (
	"fmt"
	"math/rand"
	"os"
)

// LoaderStrategy is one rung of the fallback chain: try remote, then local,
// then an embedded default. Each strategy either produces a complete model
// or an error explaining why it could not.
type LoaderStrategy interface {
	Name() string
	Load() (*Model, error)
}

// FileStrategy builds a model from a JSON descriptor file on disk.
type FileStrategy struct {
	Path       string
	ModelName  string
	Family     Family
	InputShape []int
	Rng        *rand.Rand
}

func (s FileStrategy) Name() string { return "file:" + s.Path }

func (s FileStrategy) Load() (*Model, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("descriptor file unavailable: %w", err)
	}
	defer f.Close()

	descs, err := ReadDescriptors(f)
	if err != nil {
		return nil, err
	}
	return FromDescriptors(s.ModelName, s.Family, s.InputShape, descs, s.Rng)
}

// BuilderStrategy wraps a programmatic constructor, used as the embedded
// last resort of the chain.
type BuilderStrategy struct {
	StrategyName string
	Build        func() (*Model, error)
}

func (s BuilderStrategy) Name() string { return s.StrategyName }

func (s BuilderStrategy) Load() (*Model, error) { return s.Build() }

// LoadFirst tries each strategy in order and returns the first model that
// loads, along with the index of the strategy that served it. A non-zero
// index tells the caller it is running on a degraded fallback. All
// strategies failing is reported with every underlying reason.
func LoadFirst(strategies ...LoaderStrategy) (*Model, int, error) {
	if len(strategies) == 0 {
		return nil, -1, fmt.Errorf("%w: no loader strategies configured", ErrModelUnavailable)
	}
	var failures []error
	for i, s := range strategies {
		m, err := s.Load()
		if err == nil {
			return m, i, nil
		}
		failures = append(failures, fmt.Errorf("%s: %w", s.Name(), err))
	}
	return nil, -1, fmt.Errorf("%w: all loader strategies failed: %v", ErrModelUnavailable, failures)
}
