package events

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/okian/amplike/internal/domain/model"
	"github.com/okian/amplike/pkg/metrics"
)

// Default store configuration constants.
const (
	DefaultCapacity    = 1_000_000
	cancelCheckEvery   = 1 << 16
	bytesPerEventField = 8
)

// Source yields events one at a time. Next returns io.EOF once the source
// is exhausted on a record boundary.
type Source interface {
	Next() (model.Event, error)
}

// Columns is a read-only structure-of-arrays view of the loaded events.
// Callers must not modify the slices.
type Columns struct {
	S []float64
	T []float64
	U []float64
	P []float64
}

// Len returns the number of events in the view.
func (c Columns) Len() int { return len(c.S) }

// Bytes returns the memory footprint of the view.
func (c Columns) Bytes() int { return 4 * len(c.S) * bytesPerEventField }

// Store holds up to capacity events in contiguous parallel arrays. It is
// populated once by Load and read-only afterwards, so any number of
// goroutines may read it concurrently.
type Store struct {
	mu       sync.RWMutex
	capacity int
	loaded   bool
	cols     Columns
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{capacity: DefaultCapacity}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads exactly count events from src. On failure the store stays
// empty and may be loaded again.
func (s *Store) Load(ctx context.Context, src Source, count int) (int, error) {
	if count < 1 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidCount, count)
	}
	if count > s.capacity {
		metrics.RecordLoadError("capacity_exceeded")
		return 0, fmt.Errorf("%w: %d events requested, capacity is %d", ErrCapacityExceeded, count, s.capacity)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return 0, ErrAlreadyLoaded
	}

	cols := Columns{
		S: make([]float64, count),
		T: make([]float64, count),
		U: make([]float64, count),
		P: make([]float64, count),
	}
	for i := 0; i < count; i++ {
		if i%cancelCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return 0, fmt.Errorf("load cancelled: %w", err)
			}
		}
		ev, err := src.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				metrics.RecordLoadError("input_exhausted")
				return 0, fmt.Errorf("%w: got %d of %d events", ErrInputExhausted, i, count)
			}
			if errors.Is(err, ErrMalformedRecord) {
				metrics.RecordLoadError("malformed_record")
			}
			return 0, err
		}
		cols.S[i], cols.T[i], cols.U[i], cols.P[i] = ev.S, ev.T, ev.U, ev.P
	}

	s.cols = cols
	s.loaded = true
	metrics.RecordEventsLoaded(count)
	return count, nil
}

// Size returns the number of events currently loaded.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cols.Len()
}

// Capacity returns the maximum number of events the store accepts.
func (s *Store) Capacity() int { return s.capacity }

// At returns event i. It panics if i is out of range, like a slice index.
func (s *Store) At(i int) model.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.Event{S: s.cols.S[i], T: s.cols.T[i], U: s.cols.U[i], P: s.cols.P[i]}
}

// Columns returns the read-only column view.
func (s *Store) Columns() Columns {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cols
}

// Snapshot returns a deep copy of the columns.
func (s *Store) Snapshot() Columns {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Columns{
		S: append([]float64(nil), s.cols.S...),
		T: append([]float64(nil), s.cols.T...),
		U: append([]float64(nil), s.cols.U...),
		P: append([]float64(nil), s.cols.P...),
	}
}
