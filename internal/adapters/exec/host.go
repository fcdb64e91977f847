package exec

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"golang.org/x/sys/cpu"

	"github.com/okian/amplike/internal/domain/events"
	"github.com/okian/amplike/pkg/logger"
	"github.com/okian/amplike/pkg/metrics"
)

// errBadBlockSize is returned for a task without a positive block size.
var errBadBlockSize = errors.New("block size must be positive")

// Host runs blocks on goroutines of the calling process, reading the store
// in place. Each Run forks one goroutine per thread and joins them before
// returning.
type Host struct {
	threads int
	logger  logger.Logger

	mu     sync.RWMutex
	cols   events.Columns
	closed bool
}

// NewHost creates a host context. The default degree of parallelism is
// runtime.NumCPU().
func NewHost(opts ...Option) *Host {
	s := settings{threads: runtime.NumCPU()}
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("exec.host")
	}
	metrics.UpdateThreads(KindHost, s.threads)
	return &Host{threads: s.threads, logger: s.logger}
}

// Name returns "host".
func (h *Host) Name() string { return KindHost }

// Threads returns the number of goroutines used per Run.
func (h *Host) Threads() int { return h.threads }

// Attach references the store's columns without copying them.
func (h *Host) Attach(ctx context.Context, store *events.Store) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	h.cols = store.Columns()
	h.logger.Debug(ctx, "attached events", logger.Int("events", h.cols.Len()), logger.Any("cpu_features", HostFeatures()))
	return nil
}

// Run evaluates every block with a fork-join over contiguous block ranges.
func (h *Host) Run(ctx context.Context, task Task) (Output, error) {
	h.mu.RLock()
	cols, closed := h.cols, h.closed
	h.mu.RUnlock()

	switch {
	case closed:
		return Output{}, ErrClosed
	case cols.Len() == 0:
		return Output{}, ErrNotAttached
	case task.BlockSize < 1:
		return Output{}, errBadBlockSize
	}

	b := newBatch(cols, task)
	forkJoin(b.blocks(), h.threads, func(blk int) { b.run(ctx, blk) })
	if err := b.err(ctx); err != nil {
		return Output{}, err
	}
	return Output{Amplitudes: b.amps, Partials: b.partials}, nil
}

// Close detaches the data.
func (h *Host) Close(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	h.cols = events.Columns{}
	return nil
}

// HostFeatures lists the vector extensions the host CPU reports.
func HostFeatures() []string {
	var f []string
	switch runtime.GOARCH {
	case "amd64", "386":
		if cpu.X86.HasSSE42 {
			f = append(f, "sse4.2")
		}
		if cpu.X86.HasAVX2 {
			f = append(f, "avx2")
		}
		if cpu.X86.HasFMA {
			f = append(f, "fma")
		}
		if cpu.X86.HasAVX512F {
			f = append(f, "avx512f")
		}
	case "arm64":
		if cpu.ARM64.HasASIMD {
			f = append(f, "asimd")
		}
		if cpu.ARM64.HasASIMDDP {
			f = append(f, "asimddp")
		}
		if cpu.ARM64.HasSVE {
			f = append(f, "sve")
		}
	}
	return f
}
