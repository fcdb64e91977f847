package likelihood

import (
	"errors"
	"fmt"
)

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrDegenerateAmplitude = errors.New("degenerate amplitude")
	ErrAllExcluded         = errors.New("every event was excluded")
	ErrNonFiniteResult     = errors.New("non-finite likelihood")
	ErrUnknownPolicy       = errors.New("unknown degenerate policy")
	ErrNoBlocks            = errors.New("no blocks to combine")
)

// DegenerateError reports a zero-magnitude amplitude at an event index.
type DegenerateError struct {
	Index int
}

func (e *DegenerateError) Error() string {
	return fmt.Sprintf("event %d: zero-magnitude amplitude", e.Index)
}

// Unwrap lets errors.Is match ErrDegenerateAmplitude.
func (e *DegenerateError) Unwrap() error { return ErrDegenerateAmplitude }
