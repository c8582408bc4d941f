package tensor

// Scope is a per-request arena. Every tensor a component creates while
// serving one user action is tracked here; when the request finishes (on
// success or failure) Release drops everything that was not explicitly
// detached as the result. This replaces the convention-based disposal of
// the original engine with an ownership contract tests can verify.
type Scope struct {
	tracked  []*Tensor
	detached map[*Tensor]bool
	high     int
	released bool
}

func NewScope() *Scope {
	return &Scope{detached: make(map[*Tensor]bool)}
}

// Track registers tensors the scope owns. Nil entries are ignored so call
// sites can track op results before checking their errors.
func (s *Scope) Track(ts ...*Tensor) {
	for _, t := range ts {
		if t == nil {
			continue
		}
		s.tracked = append(s.tracked, t)
	}
	if live := s.Live(); live > s.high {
		s.high = live
	}
}

// NewTensor allocates and tracks in one step.
func (s *Scope) NewTensor(shape []int, data []float64) (*Tensor, error) {
	t, err := NewTensor(shape, data)
	if err != nil {
		return nil, err
	}
	s.Track(t)
	return t, nil
}

// Detach transfers ownership of t to the caller: Release will skip it.
// Returns t for convenient use in return statements.
func (s *Scope) Detach(t *Tensor) *Tensor {
	if t != nil {
		s.detached[t] = true
	}
	return t
}

// Live counts tracked tensors that are neither detached nor released.
func (s *Scope) Live() int {
	n := 0
	for _, t := range s.tracked {
		if !t.released && !s.detached[t] {
			n++
		}
	}
	return n
}

// HighWater reports the peak live count seen by this scope. It is an
// advisory signal only: a caller seeing unexpectedly large values should
// split the work or lower batch knobs, nothing in the engine enforces it.
func (s *Scope) HighWater() int {
	return s.high
}

// Release frees every tracked, non-detached tensor. Safe to defer and safe
// to call more than once.
func (s *Scope) Release() {
	if s.released {
		return
	}
	s.released = true
	for _, t := range s.tracked {
		if s.detached[t] {
			continue
		}
		t.Release()
	}
}
