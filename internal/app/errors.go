package service

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrEmptyStore = errors.New("event store is empty")
	ErrNotStarted = errors.New("service not started")
)
