package exec

import (
	"errors"
	"fmt"
)

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrClosed         = errors.New("execution context closed")
	ErrNotAttached    = errors.New("no event data attached")
	ErrUnknownContext = errors.New("unknown execution context")
	ErrBlockPanic     = errors.New("block panicked")
)

// panicError converts a recovered panic value into an error.
func panicError(block int, v any) error {
	return fmt.Errorf("%w: block %d: %v", ErrBlockPanic, block, v)
}
