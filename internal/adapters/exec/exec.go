// Package exec provides the execution contexts a likelihood computation runs
// in: plain host goroutines, or an offload region with its own worker pool
// and its own copy of the event data.
//
// Every context runs one BlockFunc per block. A block writes only its own
// slice of the amplitude buffer and its own partial slot, so no locking is
// needed on the outputs. When blocks fail, the error of the lowest failing
// block is returned: blocks above a known failure are skipped, blocks below
// it always run.
package exec

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/okian/amplike/internal/domain/events"
	"github.com/okian/amplike/internal/domain/likelihood"
)

// Context kinds.
const (
	KindHost    = "host"
	KindOffload = "offload"
)

// BlockFunc evaluates block b of the attached columns. amps is the block's
// own window of the amplitude buffer (len = events in the block) and lo the
// index of its first event.
type BlockFunc func(cols events.Columns, b, lo int, amps []complex128) (likelihood.Partial, error)

// Task describes one computation.
type Task struct {
	BlockSize int
	Block     BlockFunc
}

// Output is what a computation hands back to the host.
type Output struct {
	Amplitudes []complex128
	Partials   []likelihood.Partial
}

// Context runs tasks over attached event data.
//
// Precondition: the amplitude model behind Task.Block must be safe for
// concurrent use whenever Threads() > 1. Contexts do not synchronize calls.
type Context interface {
	Name() string
	Threads() int
	// Attach makes the store's events available to later Run calls.
	Attach(ctx context.Context, store *events.Store) error
	// Run executes task over every block and returns the outputs, or the
	// error of the lowest failing block. No output accompanies an error.
	Run(ctx context.Context, task Task) (Output, error)
	// Close releases the context. Run fails with ErrClosed afterwards.
	Close(ctx context.Context) error
}

// New builds the context of the given kind.
func New(kind string, opts ...Option) (Context, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", KindHost:
		return NewHost(opts...), nil
	case KindOffload:
		return NewOffload(opts...), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownContext, kind)
	}
}

// batch holds the per-call state shared by the goroutines of one Run.
type batch struct {
	cols      events.Columns
	task      Task
	amps      []complex128
	partials  []likelihood.Partial
	errs      []error
	lowestErr atomic.Int64
}

func newBatch(cols events.Columns, task Task) *batch {
	n := cols.Len()
	blocks := (n + task.BlockSize - 1) / task.BlockSize
	b := &batch{
		cols:     cols,
		task:     task,
		amps:     make([]complex128, n),
		partials: make([]likelihood.Partial, blocks),
		errs:     make([]error, blocks),
	}
	b.lowestErr.Store(math.MaxInt64)
	return b
}

func (b *batch) blocks() int { return len(b.partials) }

// run executes block blk unless a lower block has already failed.
func (b *batch) run(ctx context.Context, blk int) {
	if int64(blk) > b.lowestErr.Load() {
		return
	}
	if err := ctx.Err(); err != nil {
		b.fail(blk, err)
		return
	}
	defer func() {
		if r := recover(); r != nil {
			b.fail(blk, panicError(blk, r))
		}
	}()

	lo := blk * b.task.BlockSize
	hi := min(lo+b.task.BlockSize, len(b.amps))
	p, err := b.task.Block(b.cols, blk, lo, b.amps[lo:hi])
	if err != nil {
		b.fail(blk, err)
		return
	}
	b.partials[blk] = p
}

func (b *batch) fail(blk int, err error) {
	b.errs[blk] = err
	for {
		cur := b.lowestErr.Load()
		if int64(blk) >= cur || b.lowestErr.CompareAndSwap(cur, int64(blk)) {
			return
		}
	}
}

// err returns the lowest block's error, or the context error if ctx ended.
func (b *batch) err(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, err := range b.errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// forkJoin runs fn over [0, blocks) with threads goroutines, each taking a
// contiguous range of blocks.
func forkJoin(blocks, threads int, fn func(blk int)) {
	threads = max(1, min(threads, blocks))
	if threads == 1 {
		for blk := 0; blk < blocks; blk++ {
			fn(blk)
		}
		return
	}

	chunk := (blocks + threads - 1) / threads
	var wg sync.WaitGroup
	for w := 0; w < threads; w++ {
		start := w * chunk
		end := min(start+chunk, blocks)
		if start >= end {
			break
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for blk := start; blk < end; blk++ {
				fn(blk)
			}
		}(start, end)
	}
	wg.Wait()
}
