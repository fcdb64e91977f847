package exec

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/okian/amplike/internal/adapters/mq/queue"
	"github.com/okian/amplike/internal/adapters/mq/worker"
	"github.com/okian/amplike/internal/domain/events"
	"github.com/okian/amplike/internal/domain/likelihood"
	"github.com/okian/amplike/pkg/logger"
	"github.com/okian/amplike/pkg/metrics"
)

// Offload defaults.
const (
	DefaultOffloadThreads = 240
	queueSlotsPerThread   = 4
	complexBytes          = 16
	partialBytes          = 8
	countBytes            = 8
)

// Offload models a coprocessor region. Attach copies the event columns into
// the region once; each Run sends block tasks through a bounded queue to the
// region's own persistent worker pool, which writes into region-side
// buffers that are copied back to the host when every block has finished.
type Offload struct {
	threads       int
	queueCapacity int
	logger        logger.Logger
	seq           atomic.Uint64

	mu     sync.RWMutex
	cols   events.Columns // region copy
	queue  *queue.InMemoryQueue
	pool   *worker.Pool
	region context.Context // canceled once Close gives up on the workers
	stop   context.CancelFunc
	closed bool
}

// NewOffload creates an offload context. The default degree of parallelism
// is DefaultOffloadThreads.
func NewOffload(opts ...Option) *Offload {
	s := settings{threads: DefaultOffloadThreads}
	for _, opt := range opts {
		opt(&s)
	}
	if s.queueCapacity == 0 {
		s.queueCapacity = s.threads * queueSlotsPerThread
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("exec.offload")
	}
	metrics.UpdateThreads(KindOffload, s.threads)
	return &Offload{threads: s.threads, queueCapacity: s.queueCapacity, logger: s.logger}
}

// Name returns "offload".
func (o *Offload) Name() string { return KindOffload }

// Threads returns the size of the region's worker pool.
func (o *Offload) Threads() int { return o.threads }

// Attach transfers a copy of the store's columns and the event count into
// the region and starts the worker pool on first use.
func (o *Offload) Attach(ctx context.Context, store *events.Store) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrClosed
	}

	o.cols = store.Snapshot()
	metrics.RecordOffloadTransfer("in", o.cols.Bytes()+countBytes)

	if o.pool == nil {
		poolCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		o.region, o.stop = poolCtx, cancel
		o.queue = queue.NewInMemoryQueue(queue.WithCapacity(o.queueCapacity))
		o.pool = worker.NewPool(o.threads, o.queue,
			worker.WithPoolName("offload"),
			worker.WithPoolLogger(o.logger),
		)
		o.pool.Start(poolCtx)
	}
	o.logger.Debug(ctx, "transferred events to offload region",
		logger.Int("events", o.cols.Len()),
		logger.Int("bytes", o.cols.Bytes()+countBytes),
		logger.Int("workers", o.threads),
	)
	return nil
}

// Run enqueues one task per block in block order and waits for all of them.
// Enqueueing stops once a block has failed.
func (o *Offload) Run(ctx context.Context, task Task) (Output, error) {
	o.mu.RLock()
	cols, q, region, closed := o.cols, o.queue, o.region, o.closed
	o.mu.RUnlock()

	switch {
	case closed:
		return Output{}, ErrClosed
	case cols.Len() == 0 || q == nil:
		return Output{}, ErrNotAttached
	case task.BlockSize < 1:
		return Output{}, errBadBlockSize
	}

	b := newBatch(cols, task)
	seq := o.seq.Add(1)

	var wg sync.WaitGroup
	var enqueueErr error
	for blk := 0; blk < b.blocks(); blk++ {
		if int64(blk) > b.lowestErr.Load() {
			break
		}
		wg.Add(1)
		err := q.Enqueue(ctx, queue.Task{
			Batch: seq,
			Block: blk,
			Exec: func(blk int) {
				defer wg.Done()
				if region.Err() != nil {
					b.fail(blk, ErrClosed)
					return
				}
				b.run(ctx, blk)
			},
		})
		if err != nil {
			wg.Done()
			enqueueErr = err
			if errors.Is(err, queue.ErrClosed) {
				enqueueErr = fmt.Errorf("%w: %w", ErrClosed, err)
			}
			break
		}
	}
	wg.Wait()

	if enqueueErr != nil {
		return Output{}, enqueueErr
	}
	if err := b.err(ctx); err != nil {
		return Output{}, err
	}
	return o.transferOut(b), nil
}

// transferOut copies the region-side results into fresh host buffers.
func (o *Offload) transferOut(b *batch) Output {
	out := Output{
		Amplitudes: append([]complex128(nil), b.amps...),
		Partials:   make([]likelihood.Partial, len(b.partials)),
	}
	for i, p := range b.partials {
		p.Excluded = append([]int(nil), p.Excluded...)
		out.Partials[i] = p
	}
	metrics.RecordOffloadTransfer("out", len(out.Amplitudes)*complexBytes+len(out.Partials)*partialBytes)
	return out
}

// Close drains and stops the worker pool and releases the region copy.
// If the workers do not finish before ctx ends, the region is canceled and
// every task still queued fails with ErrClosed, so no Run is left waiting
// on blocks that will never execute.
func (o *Offload) Close(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil
	}
	o.closed = true
	o.cols = events.Columns{}

	if o.pool == nil {
		return nil
	}
	err := o.pool.Shutdown(ctx)
	o.stop()
	if err != nil {
		for t := range o.queue.Dequeue() {
			t.Exec(t.Block)
		}
		o.logger.Warn(ctx, "offload region closed with blocks in flight", logger.Error(err))
	}
	return err
}
