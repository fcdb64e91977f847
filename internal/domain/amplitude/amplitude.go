// Package amplitude defines the contract of the external amplitude model and
// the evaluator that applies it to single events.
package amplitude

import (
	"context"
	"errors"
	"math/cmplx"
	"sync"

	"github.com/okian/amplike/internal/domain/model"
)

// Amplitude is the external physics model.
//
// Evaluate must be deterministic and free of side effects. When
// ConcurrencySafe reports true, Evaluate may be called from many goroutines at
// once with no synchronization; an implementation that shares mutable state
// between calls must report false (or be wrapped with Serialized).
type Amplitude interface {
	Evaluate(s, t, u, p float64) (complex128, error)
	ConcurrencySafe() bool
}

// WarmUpper is implemented by models that need a one-time diagnostic or
// initialization call before their first evaluation.
type WarmUpper interface {
	WarmUp(ctx context.Context) error
}

// Func adapts a plain function to Amplitude. The function is asserted to be
// safe for concurrent use.
type Func func(s, t, u, p float64) (complex128, error)

// Evaluate calls f.
func (f Func) Evaluate(s, t, u, p float64) (complex128, error) { return f(s, t, u, p) }

// ConcurrencySafe always reports true.
func (Func) ConcurrencySafe() bool { return true }

// serialized guards a model that is not safe for concurrent use.
type serialized struct {
	mu    sync.Mutex
	inner Amplitude
}

// Serialized wraps a with a mutex so it can be shared by parallel workers.
// Throughput drops to that of a single worker.
func Serialized(a Amplitude) Amplitude {
	if a.ConcurrencySafe() {
		return a
	}
	return &serialized{inner: a}
}

func (s *serialized) Evaluate(sv, t, u, p float64) (complex128, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Evaluate(sv, t, u, p)
}

func (s *serialized) ConcurrencySafe() bool { return true }

func (s *serialized) WarmUp(ctx context.Context) error {
	if w, ok := s.inner.(WarmUpper); ok {
		s.mu.Lock()
		defer s.mu.Unlock()
		return w.WarmUp(ctx)
	}
	return nil
}

// Evaluator applies a model to individual events and converts model failures
// into index-carrying errors.
type Evaluator struct {
	amp     Amplitude
	warm    sync.Once
	warmErr error
}

// NewEvaluator creates an evaluator for a.
func NewEvaluator(a Amplitude) *Evaluator {
	return &Evaluator{amp: a}
}

// Model returns the wrapped model.
func (e *Evaluator) Model() Amplitude { return e.amp }

// CheckParallel returns ErrNotConcurrencySafe if the model cannot be shared
// by threads workers.
func (e *Evaluator) CheckParallel(threads int) error {
	if threads > 1 && !e.amp.ConcurrencySafe() {
		return ErrNotConcurrencySafe
	}
	return nil
}

// WarmUp performs the model's one-time setup call. Later calls return the
// first result without calling the model again.
func (e *Evaluator) WarmUp(ctx context.Context) error {
	e.warm.Do(func() {
		if w, ok := e.amp.(WarmUpper); ok {
			e.warmErr = w.WarmUp(ctx)
		}
	})
	return e.warmErr
}

// Evaluate computes the amplitude of event index. A model error or a
// non-finite result is reported as an *EvaluationError.
func (e *Evaluator) Evaluate(index int, s, t, u float64, p model.Params) (complex128, error) {
	a, err := e.amp.Evaluate(s, t, u, p.P)
	if err != nil {
		return 0, &EvaluationError{Index: index, Err: err}
	}
	if cmplx.IsNaN(a) || cmplx.IsInf(a) {
		return 0, &EvaluationError{Index: index, Err: errors.New("non-finite amplitude")}
	}
	return a, nil
}
