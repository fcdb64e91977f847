// Package likelihood turns per-event amplitudes into the likelihood scalar.
//
// Summation order is fixed and independent of how many goroutines evaluate
// the events: the event range is cut into blocks of BlockSize events, each
// block is summed left to right, and the block sums are combined by a
// pairwise tree in block order. For a fixed input and block size the result
// is bit-identical for any thread count.
package likelihood

import (
	"fmt"
	"math"
	"math/cmplx"
	"strings"

	"github.com/okian/amplike/pkg/metrics"
)

// DefaultBlockSize is the number of events per reduction block.
const DefaultBlockSize = 4096

// Policy selects the handling of zero-magnitude amplitudes.
type Policy int

const (
	// PolicyFail aborts the computation at the lowest degenerate index.
	PolicyFail Policy = iota
	// PolicyExclude drops degenerate events from the sum and reports them.
	PolicyExclude
)

func (p Policy) String() string {
	switch p {
	case PolicyFail:
		return "fail"
	case PolicyExclude:
		return "exclude"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy accepts "fail" or "exclude" (case-insensitive).
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fail":
		return PolicyFail, nil
	case "exclude":
		return PolicyExclude, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}

// Transform returns (ln|a|)^2. ok is false when |a| is zero.
func Transform(a complex128) (v float64, ok bool) {
	m := cmplx.Abs(a)
	if m == 0 {
		return 0, false
	}
	l := math.Log(m)
	return l * l, true
}

// Partial is the reduction of one block.
type Partial struct {
	Block    int
	Sum      float64
	Excluded []int // absolute event indices, ascending
}

// Sum is the combined reduction of all blocks.
type Sum struct {
	Value    float64
	Events   int
	Excluded []int
}

// Reducer sums transformed amplitudes block by block.
type Reducer struct {
	policy    Policy
	blockSize int
}

// NewReducer creates a reducer. The defaults are PolicyFail and
// DefaultBlockSize.
func NewReducer(opts ...Option) *Reducer {
	r := &Reducer{policy: PolicyFail, blockSize: DefaultBlockSize}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Policy returns the degenerate policy.
func (r *Reducer) Policy() Policy { return r.policy }

// BlockSize returns the number of events per block.
func (r *Reducer) BlockSize() int { return r.blockSize }

// Blocks returns how many blocks cover n events.
func (r *Reducer) Blocks(n int) int {
	return (n + r.blockSize - 1) / r.blockSize
}

// Bounds returns the half-open event range [lo, hi) of block b out of n events.
func (r *Reducer) Bounds(b, n int) (lo, hi int) {
	lo = b * r.blockSize
	return lo, min(lo+r.blockSize, n)
}

// SumBlock reduces the amplitudes of block b, which start at event index lo.
// Under PolicyFail the first zero-magnitude amplitude returns a
// *DegenerateError and no partial.
func (r *Reducer) SumBlock(b, lo int, amps []complex128) (Partial, error) {
	p := Partial{Block: b}
	for j, a := range amps {
		v, ok := Transform(a)
		if !ok {
			metrics.RecordDegenerateAmplitude()
			if r.policy == PolicyFail {
				return Partial{}, &DegenerateError{Index: lo + j}
			}
			p.Excluded = append(p.Excluded, lo+j)
			continue
		}
		p.Sum += v
	}
	return p, nil
}

// Finalize combines block partials, which must be ordered by block, into the
// likelihood for n events.
func (r *Reducer) Finalize(partials []Partial, n int) (Sum, error) {
	if len(partials) == 0 {
		return Sum{}, ErrNoBlocks
	}
	sums := make([]float64, len(partials))
	var excluded []int
	for i, p := range partials {
		sums[i] = p.Sum
		excluded = append(excluded, p.Excluded...)
	}
	if len(excluded) > 0 {
		metrics.RecordExcludedEvents(len(excluded))
	}
	if len(excluded) == n {
		return Sum{}, fmt.Errorf("%w: %d events", ErrAllExcluded, n)
	}

	v := Combine(sums)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Sum{}, fmt.Errorf("%w: %v", ErrNonFiniteResult, v)
	}
	return Sum{Value: v, Events: n, Excluded: excluded}, nil
}

// Combine adds values with a pairwise tree in index order: each level adds
// neighbours (2k, 2k+1) and carries an odd tail unchanged. The input is not
// modified. Combine of an empty slice is 0.
func Combine(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	buf := append([]float64(nil), values...)
	for n := len(buf); n > 1; n = (n + 1) / 2 {
		half := n / 2
		for k := 0; k < half; k++ {
			buf[k] = buf[2*k] + buf[2*k+1]
		}
		if n%2 == 1 {
			buf[half] = buf[n-1]
		}
	}
	return buf[0]
}
