package events

import (
	"errors"
	"fmt"
)

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrMalformedRecord  = errors.New("malformed record")
	ErrInputExhausted   = errors.New("input exhausted")
	ErrCapacityExceeded = errors.New("capacity exceeded")
	ErrAlreadyLoaded    = errors.New("store already loaded")
	ErrInvalidCount     = errors.New("invalid event count")
)

// RecordError reports which record and field of the input failed to parse.
type RecordError struct {
	Record int    // zero-based record index
	Field  string // one of s, t, u, p
	Token  string // offending token, empty when the input ended mid-record
	Err    error  // underlying parse error, may be nil
}

func (e *RecordError) Error() string {
	if e.Token == "" {
		return fmt.Sprintf("record %d: missing field %s", e.Record, e.Field)
	}
	return fmt.Sprintf("record %d: field %s: cannot parse %q", e.Record, e.Field, e.Token)
}

// Unwrap lets errors.Is match ErrMalformedRecord.
func (e *RecordError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrMalformedRecord}
	}
	return []error{ErrMalformedRecord, e.Err}
}
