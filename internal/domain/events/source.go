package events

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"math/rand"
	"strconv"

	"golang.org/x/exp/mmap"

	"github.com/okian/amplike/internal/domain/model"
)

// Default random source constants.
const (
	defaultSeed      = 42
	defaultSMin      = 1.0
	defaultSMax      = 100.0
	defaultTFraction = 1.0
	maxTokenSize     = 1 << 20
)

var fieldNames = [4]string{"s", "t", "u", "p"}

// ReaderSource tokenizes whitespace and newline delimited numbers, four per
// record in the order s t u p.
type ReaderSource struct {
	scanner *bufio.Scanner
	record  int
}

// NewReaderSource creates a source over r.
func NewReaderSource(r io.Reader) *ReaderSource {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxTokenSize)
	sc.Split(bufio.ScanWords)
	return &ReaderSource{scanner: sc}
}

// Next parses the next record.
func (r *ReaderSource) Next() (model.Event, error) {
	var vals [4]float64
	for f := range vals {
		if !r.scanner.Scan() {
			if err := r.scanner.Err(); err != nil {
				return model.Event{}, fmt.Errorf("read record %d: %w", r.record, err)
			}
			if f == 0 {
				return model.Event{}, io.EOF
			}
			return model.Event{}, &RecordError{Record: r.record, Field: fieldNames[f]}
		}
		tok := r.scanner.Text()
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return model.Event{}, &RecordError{Record: r.record, Field: fieldNames[f], Token: tok, Err: err}
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return model.Event{}, &RecordError{Record: r.record, Field: fieldNames[f], Token: tok}
		}
		vals[f] = v
	}
	r.record++
	return model.Event{S: vals[0], T: vals[1], U: vals[2], P: vals[3]}, nil
}

// FileSource reads records from a memory-mapped input file.
type FileSource struct {
	*ReaderSource
	m    *mmap.ReaderAt
	path string
}

// OpenFile maps path read-only. Close releases the mapping.
func OpenFile(path string) (*FileSource, error) {
	m, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input %s: %w", path, err)
	}
	return &FileSource{
		ReaderSource: NewReaderSource(io.NewSectionReader(m, 0, int64(m.Len()))),
		m:            m,
		path:         path,
	}, nil
}

// Path returns the mapped file path.
func (f *FileSource) Path() string { return f.path }

// Close unmaps the file.
func (f *FileSource) Close() error {
	return f.m.Close()
}

// RandomSource generates an unbounded stream of pseudo-random events with
// s in [sMin, sMax), t in (-tFrac*s, 0] and u = massSum - s - t.
// It is deterministic for a given seed and not safe for concurrent use.
type RandomSource struct {
	seed    int64
	sMin    float64
	sMax    float64
	tFrac   float64
	massSum float64
	param   float64
	rng     *rand.Rand
}

// NewRandomSource creates a seeded generator.
func NewRandomSource(opts ...RandomOption) *RandomSource {
	r := &RandomSource{
		seed:  defaultSeed,
		sMin:  defaultSMin,
		sMax:  defaultSMax,
		tFrac: defaultTFraction,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.rng = rand.New(rand.NewSource(r.seed)) //nolint:gosec // reproducible event sets
	return r
}

// Next draws the next event. It never returns an error.
func (r *RandomSource) Next() (model.Event, error) {
	s := r.sMin + r.rng.Float64()*(r.sMax-r.sMin)
	t := -r.rng.Float64() * r.tFrac * s
	return model.Event{S: s, T: t, U: r.massSum - s - t, P: r.param}, nil
}

// SliceSource replays a fixed list of events.
type SliceSource struct {
	events []model.Event
	next   int
}

// NewSliceSource creates a source over evs.
func NewSliceSource(evs []model.Event) *SliceSource {
	return &SliceSource{events: evs}
}

// Next returns the next event or io.EOF.
func (s *SliceSource) Next() (model.Event, error) {
	if s.next >= len(s.events) {
		return model.Event{}, io.EOF
	}
	ev := s.events[s.next]
	s.next++
	return ev, nil
}
