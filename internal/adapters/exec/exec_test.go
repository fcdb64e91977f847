package exec_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"testing"
	"time"

	"github.com/okian/amplike/internal/adapters/exec"
	"github.com/okian/amplike/internal/domain/events"
	"github.com/okian/amplike/internal/domain/likelihood"
	"github.com/okian/amplike/internal/domain/model"
	"github.com/okian/amplike/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func loadStore(n int) *events.Store {
	evs := make([]model.Event, n)
	for i := range evs {
		s := 1 + float64(i%97)*0.731
		evs[i] = model.Event{S: s, T: -0.25 * s, U: 4 - 0.75*s, P: 1.3}
	}
	store := events.New(events.WithCapacity(n))
	if _, err := store.Load(context.Background(), events.NewSliceSource(evs), n); err != nil {
		panic(err)
	}
	return store
}

// poleBlock evaluates a simple pole at p = 1.3 and reduces with r.
func poleBlock(r *likelihood.Reducer) exec.BlockFunc {
	return func(cols events.Columns, b, lo int, amps []complex128) (likelihood.Partial, error) {
		for j := range amps {
			i := lo + j
			amps[j] = 1/complex(1.3-cols.S[i], -0.5) + cmplx.Rect(0.1, cols.T[i])
		}
		return r.SumBlock(b, lo, amps)
	}
}

func run(ctx context.Context, c exec.Context, task exec.Task) (float64, exec.Output, error) {
	out, err := c.Run(ctx, task)
	if err != nil {
		return 0, out, err
	}
	sum, err := likelihood.NewReducer(likelihood.WithBlockSize(task.BlockSize)).Finalize(out.Partials, len(out.Amplitudes))
	return sum.Value, out, err
}

func TestNew(t *testing.T) {
	convey.Convey("Given context kinds", t, func() {
		_ = logger.Init()

		convey.Convey("Host is the default", func() {
			c, err := exec.New("")
			convey.So(err, convey.ShouldBeNil)
			convey.So(c.Name(), convey.ShouldEqual, exec.KindHost)
		})

		convey.Convey("Offload defaults to 240 threads", func() {
			c, err := exec.New("Offload")
			convey.So(err, convey.ShouldBeNil)
			convey.So(c.Name(), convey.ShouldEqual, exec.KindOffload)
			convey.So(c.Threads(), convey.ShouldEqual, exec.DefaultOffloadThreads)
			convey.So(c.Close(context.Background()), convey.ShouldBeNil)
		})

		convey.Convey("Unknown kinds are rejected", func() {
			_, err := exec.New("gpu")
			convey.So(errors.Is(err, exec.ErrUnknownContext), convey.ShouldBeTrue)
		})
	})
}

func TestDeterminism(t *testing.T) {
	convey.Convey("Given 10 000 events in blocks of 64", t, func() {
		_ = logger.Init()
		ctx := context.Background()
		store := loadStore(10_000)
		r := likelihood.NewReducer(likelihood.WithBlockSize(64))
		task := exec.Task{BlockSize: 64, Block: poleBlock(r)}

		ref, _, err := run(ctx, attach(ctx, exec.NewHost(exec.WithThreads(1)), store), task)
		convey.So(err, convey.ShouldBeNil)
		convey.So(math.IsInf(ref, 0) || math.IsNaN(ref), convey.ShouldBeFalse)

		for _, threads := range []int{2, 3, 8, 17} {
			for _, kind := range []string{exec.KindHost, exec.KindOffload} {
				convey.Convey(fmt.Sprintf("%s with %d threads matches bit for bit", kind, threads), func() {
					c, err := exec.New(kind, exec.WithThreads(threads))
					convey.So(err, convey.ShouldBeNil)
					defer func() { _ = c.Close(ctx) }()
					convey.So(c.Attach(ctx, store), convey.ShouldBeNil)

					got, out, err := run(ctx, c, task)
					convey.So(err, convey.ShouldBeNil)
					convey.So(math.Float64bits(got), convey.ShouldEqual, math.Float64bits(ref))
					convey.So(len(out.Amplitudes), convey.ShouldEqual, 10_000)
					convey.So(len(out.Partials), convey.ShouldEqual, r.Blocks(10_000))
				})
			}
		}
	})
}

// attach is a helper that attaches store to c and returns c.
func attach(ctx context.Context, c exec.Context, store *events.Store) exec.Context {
	if err := c.Attach(ctx, store); err != nil {
		panic(err)
	}
	return c
}

func TestFailures(t *testing.T) {
	convey.Convey("Given blocks 3 and 9 failing", t, func() {
		_ = logger.Init()
		ctx := context.Background()
		store := loadStore(1_000)
		errBlock := errors.New("bad block")
		task := exec.Task{BlockSize: 50, Block: func(_ events.Columns, b, lo int, amps []complex128) (likelihood.Partial, error) {
			if b == 3 || b == 9 {
				return likelihood.Partial{}, fmt.Errorf("%w %d", errBlock, b)
			}
			return likelihood.Partial{Block: b, Sum: float64(len(amps))}, nil
		}}

		for _, kind := range []string{exec.KindHost, exec.KindOffload} {
			for _, threads := range []int{1, 4, 20} {
				convey.Convey(fmt.Sprintf("%s/%d reports the lowest block", kind, threads), func() {
					c, _ := exec.New(kind, exec.WithThreads(threads))
					defer func() { _ = c.Close(ctx) }()
					convey.So(c.Attach(ctx, store), convey.ShouldBeNil)

					out, err := c.Run(ctx, task)
					convey.So(errors.Is(err, errBlock), convey.ShouldBeTrue)
					convey.So(err.Error(), convey.ShouldEqual, "bad block 3")
					convey.So(out.Partials, convey.ShouldBeNil)
				})
			}
		}

		convey.Convey("A panicking block becomes an error", func() {
			c := exec.NewHost(exec.WithThreads(4))
			convey.So(c.Attach(ctx, store), convey.ShouldBeNil)
			_, err := c.Run(ctx, exec.Task{BlockSize: 100, Block: func(_ events.Columns, b, _ int, _ []complex128) (likelihood.Partial, error) {
				if b == 5 {
					panic("boom")
				}
				return likelihood.Partial{Block: b}, nil
			}})
			convey.So(errors.Is(err, exec.ErrBlockPanic), convey.ShouldBeTrue)
		})

		convey.Convey("A canceled context stops the run", func() {
			c := exec.NewOffload(exec.WithThreads(2))
			defer func() { _ = c.Close(ctx) }()
			convey.So(c.Attach(ctx, store), convey.ShouldBeNil)
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := c.Run(cctx, task)
			convey.So(errors.Is(err, context.Canceled), convey.ShouldBeTrue)
		})
	})
}

func TestLifecycle(t *testing.T) {
	convey.Convey("Given fresh contexts", t, func() {
		_ = logger.Init()
		ctx := context.Background()
		store := loadStore(10)
		task := exec.Task{BlockSize: 4, Block: func(_ events.Columns, b, _ int, _ []complex128) (likelihood.Partial, error) {
			return likelihood.Partial{Block: b}, nil
		}}

		for _, kind := range []string{exec.KindHost, exec.KindOffload} {
			convey.Convey(kind+" rejects Run before Attach", func() {
				c, _ := exec.New(kind, exec.WithThreads(2))
				defer func() { _ = c.Close(ctx) }()
				_, err := c.Run(ctx, task)
				convey.So(errors.Is(err, exec.ErrNotAttached), convey.ShouldBeTrue)
			})

			convey.Convey(kind+" rejects Run and Attach after Close", func() {
				c, _ := exec.New(kind, exec.WithThreads(2))
				convey.So(c.Attach(ctx, store), convey.ShouldBeNil)
				convey.So(c.Close(ctx), convey.ShouldBeNil)
				_, err := c.Run(ctx, task)
				convey.So(errors.Is(err, exec.ErrClosed), convey.ShouldBeTrue)
				convey.So(errors.Is(c.Attach(ctx, store), exec.ErrClosed), convey.ShouldBeTrue)
				convey.So(c.Close(ctx), convey.ShouldBeNil)
			})

			convey.Convey(kind+" can run many times", func() {
				c, _ := exec.New(kind, exec.WithThreads(3))
				defer func() { _ = c.Close(ctx) }()
				convey.So(c.Attach(ctx, store), convey.ShouldBeNil)
				for i := 0; i < 5; i++ {
					out, err := c.Run(ctx, task)
					convey.So(err, convey.ShouldBeNil)
					convey.So(len(out.Partials), convey.ShouldEqual, 3)
				}
			})
		}

		convey.Convey("Offload close with a stuck block releases the waiting Run", func() {
			c := exec.NewOffload(exec.WithThreads(1))
			convey.So(c.Attach(ctx, store), convey.ShouldBeNil)

			started := make(chan struct{})
			release := make(chan struct{})
			stuck := exec.Task{BlockSize: 2, Block: func(_ events.Columns, b, _ int, _ []complex128) (likelihood.Partial, error) {
				if b == 0 {
					close(started)
					<-release
				}
				return likelihood.Partial{Block: b}, nil
			}}

			done := make(chan error, 1)
			go func() {
				_, err := c.Run(ctx, stuck)
				done <- err
			}()
			<-started

			closeCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
			defer cancel()
			convey.So(c.Close(closeCtx), convey.ShouldNotBeNil)
			close(release)

			var err error
			select {
			case err = <-done:
			case <-time.After(5 * time.Second):
				err = errors.New("run still waiting")
			}
			convey.So(errors.Is(err, exec.ErrClosed), convey.ShouldBeTrue)
		})

		convey.Convey("Offload works on its own copy of the events", func() {
			c := exec.NewOffload(exec.WithThreads(2))
			defer func() { _ = c.Close(ctx) }()
			convey.So(c.Attach(ctx, store), convey.ShouldBeNil)

			store.Columns().S[0] = -1 // host-side change after transfer
			var seen float64
			_, err := c.Run(ctx, exec.Task{BlockSize: 10, Block: func(cols events.Columns, b, _ int, _ []complex128) (likelihood.Partial, error) {
				seen = cols.S[0]
				return likelihood.Partial{Block: b}, nil
			}})
			convey.So(err, convey.ShouldBeNil)
			convey.So(seen, convey.ShouldNotEqual, -1)
		})
	})
}

func TestHostFeatures(t *testing.T) {
	convey.Convey("HostFeatures never panics", t, func() {
		convey.So(func() { _ = exec.HostFeatures() }, convey.ShouldNotPanic)
	})
}
