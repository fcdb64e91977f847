// Package service wires the event store, the amplitude evaluator, an
// execution context and the likelihood reducer into one computation.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/amplike/internal/adapters/exec"
	"github.com/okian/amplike/internal/domain/amplitude"
	"github.com/okian/amplike/internal/domain/events"
	"github.com/okian/amplike/internal/domain/likelihood"
	"github.com/okian/amplike/internal/domain/model"
	"github.com/okian/amplike/pkg/logger"
	"github.com/okian/amplike/pkg/metrics"
)

// Result is the outcome of one likelihood computation.
type Result struct {
	RunID      string
	Value      float64
	Events     int
	Excluded   []int
	Blocks     int
	Threads    int
	Context    string
	Elapsed    time.Duration
	Amplitudes []complex128
}

// Throughput returns evaluated events per second.
func (r Result) Throughput() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Events) / r.Elapsed.Seconds()
}

// Service computes likelihoods over a loaded event store.
type Service struct {
	mu sync.RWMutex

	// Core components
	store     *events.Store
	evaluator *amplitude.Evaluator
	reducer   *likelihood.Reducer
	exec      exec.Context

	// Configuration
	contextKind string
	threads     int

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the loaded event store.
func WithStore(store *events.Store) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithModel sets the amplitude model.
func WithModel(a amplitude.Amplitude) Option {
	return func(s *Service) {
		if a != nil {
			s.evaluator = amplitude.NewEvaluator(a)
		}
	}
}

// WithReducer sets the likelihood reducer.
func WithReducer(r *likelihood.Reducer) Option {
	return func(s *Service) {
		if r != nil {
			s.reducer = r
		}
	}
}

// WithContextKind selects the execution context by name.
func WithContextKind(kind string) Option {
	return func(s *Service) {
		s.contextKind = kind
	}
}

// WithThreads sets the degree of parallelism of the execution context.
// Zero keeps the context's default.
func WithThreads(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.threads = n
		}
	}
}

// WithExecContext sets a ready-made execution context. The service takes
// ownership and closes it on Stop.
func WithExecContext(c exec.Context) Option {
	return func(s *Service) {
		s.exec = c
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		evaluator:   amplitude.NewEvaluator(amplitude.NewPole()),
		reducer:     likelihood.NewReducer(),
		contextKind: exec.KindHost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start creates the execution context, checks the model may be called from
// its threads, warms the model up and attaches the events.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.store == nil || s.store.Size() == 0 {
		return ErrEmptyStore
	}

	c := s.exec
	if c == nil {
		var err error
		c, err = exec.New(s.contextKind,
			exec.WithThreads(s.threads),
			exec.WithLogger(s.logger.Named("exec."+s.contextKind)),
		)
		if err != nil {
			return err
		}
	}

	if err := s.setup(ctx, c); err != nil {
		_ = c.Close(ctx)
		return err
	}

	s.exec = c
	s.started = true
	s.logger.Info(ctx, "likelihood service started",
		logger.String("context", c.Name()),
		logger.Int("threads", c.Threads()),
		logger.Int("events", s.store.Size()),
		logger.Int("block_size", s.reducer.BlockSize()),
		logger.String("policy", s.reducer.Policy().String()),
	)
	return nil
}

func (s *Service) setup(ctx context.Context, c exec.Context) error {
	if err := s.evaluator.CheckParallel(c.Threads()); err != nil {
		return fmt.Errorf("%s context with %d threads: %w", c.Name(), c.Threads(), err)
	}
	if err := s.evaluator.WarmUp(ctx); err != nil {
		return fmt.Errorf("warm up model: %w", err)
	}
	if err := c.Attach(ctx, s.store); err != nil {
		return fmt.Errorf("attach events: %w", err)
	}
	return nil
}

// Stop releases the execution context.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	if err := s.exec.Close(ctx); err != nil {
		s.logger.Warn(ctx, "error closing execution context", logger.Error(err))
	}
	s.exec = nil
	s.started = false
	s.logger.Info(ctx, "likelihood service stopped")
}

// Likelihood evaluates the model for every event with params and returns the
// sum of (ln|a|)^2. The whole computation is redone on each call; the
// result does not depend on the context or its thread count.
func (s *Service) Likelihood(ctx context.Context, params model.Params) (Result, error) {
	s.mu.RLock()
	c, started := s.exec, s.started
	s.mu.RUnlock()
	if !started {
		return Result{}, ErrNotStarted
	}

	runID := uuid.NewString()
	start := time.Now()

	out, err := c.Run(ctx, exec.Task{
		BlockSize: s.reducer.BlockSize(),
		Block:     s.kernel(params),
	})
	var sum likelihood.Sum
	if err == nil {
		sum, err = s.reducer.Finalize(out.Partials, len(out.Amplitudes))
	}
	elapsed := time.Since(start)

	if err != nil {
		metrics.RecordComputation(c.Name(), "error", elapsed.Seconds())
		s.logger.Error(ctx, "likelihood computation failed",
			logger.String("run_id", runID),
			logger.String("context", c.Name()),
			logger.Error(err),
		)
		return Result{}, fmt.Errorf("compute likelihood: %w", err)
	}

	metrics.RecordComputation(c.Name(), "ok", elapsed.Seconds())
	metrics.UpdateLastLikelihood(sum.Value)

	res := Result{
		RunID:      runID,
		Value:      sum.Value,
		Events:     sum.Events,
		Excluded:   sum.Excluded,
		Blocks:     len(out.Partials),
		Threads:    c.Threads(),
		Context:    c.Name(),
		Elapsed:    elapsed,
		Amplitudes: out.Amplitudes,
	}
	s.logger.Debug(ctx, "likelihood computed",
		logger.String("run_id", runID),
		logger.Float64("likelihood", res.Value),
		logger.Int("excluded", len(res.Excluded)),
		logger.Duration("elapsed", elapsed),
	)
	return res, nil
}

// kernel evaluates one block of amplitudes and reduces it. Under the fail
// policy a degenerate amplitude before an evaluation failure in the same
// block is reported first, so the error always names the lowest index.
func (s *Service) kernel(params model.Params) exec.BlockFunc {
	ev, r := s.evaluator, s.reducer
	return func(cols events.Columns, b, lo int, amps []complex128) (likelihood.Partial, error) {
		for j := range amps {
			i := lo + j
			a, err := ev.Evaluate(i, cols.S[i], cols.T[i], cols.U[i], params)
			if err != nil {
				metrics.RecordEvaluations(j)
				metrics.RecordEvaluationFailure()
				if r.Policy() == likelihood.PolicyFail {
					if _, derr := r.SumBlock(b, lo, amps[:j]); derr != nil {
						return likelihood.Partial{}, derr
					}
				}
				return likelihood.Partial{}, err
			}
			amps[j] = a
		}
		metrics.RecordEvaluations(len(amps))
		return r.SumBlock(b, lo, amps)
	}
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":   s.started,
		"context":   s.contextKind,
		"blockSize": s.reducer.BlockSize(),
		"policy":    s.reducer.Policy().String(),
	}
	if s.store != nil {
		stats["events"] = s.store.Size()
		stats["capacity"] = s.store.Capacity()
	}
	if s.started {
		stats["context"] = s.exec.Name()
		stats["threads"] = s.exec.Threads()
	}
	return stats
}
