package amplitude

import (
	"errors"
	"fmt"
)

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrAmplitudeEvaluationFailed = errors.New("amplitude evaluation failed")
	ErrNotConcurrencySafe        = errors.New("amplitude model is not safe for concurrent use")
	ErrUnknownModel              = errors.New("unknown amplitude model")
	ErrDomain                    = errors.New("argument outside model domain")
)

// EvaluationError identifies the event whose amplitude could not be computed.
type EvaluationError struct {
	Index int
	Err   error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("event %d: %v", e.Index, e.Err)
}

// Unwrap lets errors.Is match ErrAmplitudeEvaluationFailed and the model error.
func (e *EvaluationError) Unwrap() []error {
	return []error{ErrAmplitudeEvaluationFailed, e.Err}
}
