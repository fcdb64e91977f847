package worker_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	queue "github.com/okian/amplike/internal/adapters/mq/queue"
	worker "github.com/okian/amplike/internal/adapters/mq/worker"
	logging "github.com/okian/amplike/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a new InMemoryWorker", t, func() {
		_ = logging.Init()
		q := queue.NewInMemoryQueue(queue.WithCapacity(8))

		convey.Convey("When creating a worker with custom options", func() {
			w := worker.NewInMemoryWorker(q, worker.WithName("test-worker"), worker.WithLogger(logging.Get()))

			convey.Convey("Then it should carry the name", func() {
				convey.So(w, convey.ShouldNotBeNil)
				convey.So(w.Name(), convey.ShouldEqual, "test-worker")
			})
		})

		convey.Convey("When running a worker", func() {
			w := worker.NewInMemoryWorker(q)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go w.Run(ctx)

			var sum atomic.Int64
			var wg sync.WaitGroup
			for b := 1; b <= 4; b++ {
				wg.Add(1)
				err := q.Enqueue(ctx, queue.Task{Block: b, Exec: func(block int) {
					defer wg.Done()
					sum.Add(int64(block))
				}})
				convey.So(err, convey.ShouldBeNil)
			}
			wg.Wait()

			convey.Convey("Then every task should be executed with its block", func() {
				convey.So(sum.Load(), convey.ShouldEqual, int64(10))
				convey.So(w.Processed(), convey.ShouldBeGreaterThanOrEqualTo, int64(3))
			})

			convey.Convey("And when shutting down", func() {
				err := w.Shutdown(context.Background())

				convey.Convey("Then it should stop", func() {
					convey.So(err, convey.ShouldBeNil)
					<-w.Done()
				})
			})
		})

		convey.Convey("When the context is cancelled", func() {
			w := worker.NewInMemoryWorker(q)
			ctx, cancel := context.WithCancel(context.Background())
			go w.Run(ctx)
			cancel()

			convey.Convey("Then the worker should stop", func() {
				select {
				case <-w.Done():
				case <-time.After(time.Second):
					convey.So("worker did not stop", convey.ShouldBeEmpty)
				}
			})
		})

		convey.Convey("When the queue is closed", func() {
			w := worker.NewInMemoryWorker(q)
			go w.Run(context.Background())
			_ = q.Close()

			convey.Convey("Then the worker should stop", func() {
				select {
				case <-w.Done():
				case <-time.After(time.Second):
					convey.So("worker did not stop", convey.ShouldBeEmpty)
				}
			})
		})
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a worker pool", t, func() {
		_ = logging.Init()
		q := queue.NewInMemoryQueue(queue.WithCapacity(4))

		convey.Convey("When creating a pool with a non-positive count", func() {
			p := worker.NewPool(0, q)

			convey.Convey("Then it should default to one worker per CPU", func() {
				convey.So(p.Size(), convey.ShouldBeGreaterThan, 0)
			})
		})

		convey.Convey("When many tasks run on the pool", func() {
			p := worker.NewPool(6, q, worker.WithPoolName("offload"), worker.WithPoolLogger(logging.Get()))
			ctx := context.Background()
			p.Start(ctx)
			p.Start(ctx)

			const blocks = 200
			hits := make([]int32, blocks)
			var wg sync.WaitGroup
			for b := 0; b < blocks; b++ {
				wg.Add(1)
				convey.So(q.Enqueue(ctx, queue.Task{Block: b, Exec: func(block int) {
					defer wg.Done()
					atomic.AddInt32(&hits[block], 1)
				}}), convey.ShouldBeNil)
			}
			wg.Wait()
			err := p.Shutdown(ctx)

			convey.Convey("Then each block should run exactly once", func() {
				convey.So(err, convey.ShouldBeNil)
				for b := 0; b < blocks; b++ {
					convey.So(hits[b], convey.ShouldEqual, int32(1))
				}
				convey.So(p.Processed(), convey.ShouldEqual, int64(blocks))
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When shutting down a pool that never started", func() {
			p := worker.NewPool(2, q)

			convey.Convey("Then it should close the queue and return", func() {
				convey.So(p.Shutdown(context.Background()), convey.ShouldBeNil)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})
	})
}
