package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func task(b int) Task {
	return Task{Batch: 1, Block: b, Exec: func(int) {}}
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
	if c := q.Capacity(); c != 2 {
		t.Errorf("expected capacity 2, got %d", c)
	}

	if err := q.Enqueue(ctx, task(7)); err != nil {
		t.Fatalf("expected enqueue to succeed: %v", err)
	}
	if l := q.Len(); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	got := <-q.Dequeue()
	if got.Block != 7 || got.Batch != 1 {
		t.Errorf("expected block 7 of batch 1, got %+v", got)
	}
	if l := q.Len(); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
}

func TestInMemoryQueue_BlocksWhenFull(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(1))
	ctx := context.Background()

	if err := q.Enqueue(ctx, task(0)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	// A full queue waits for the context.
	tctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := q.Enqueue(tctx, task(1)); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}

	// Draining unblocks a waiting producer.
	done := make(chan error, 1)
	go func() { done <- q.Enqueue(ctx, task(2)) }()
	<-q.Dequeue()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected enqueue to succeed after drain: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("enqueue did not unblock after drain")
	}
}

func TestInMemoryQueue_CloseUnblocksProducers(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(1))
	ctx := context.Background()
	_ = q.Enqueue(ctx, task(0))

	done := make(chan error, 1)
	go func() { done <- q.Enqueue(ctx, task(1)) }()

	time.Sleep(10 * time.Millisecond)
	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	select {
	case err := <-done:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("expected ErrClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("close did not unblock producer")
	}

	if !q.IsClosed() {
		t.Error("expected queue to be closed")
	}
	if err := q.Enqueue(ctx, task(2)); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed after close, got %v", err)
	}
	// Closing twice is a no-op.
	if err := q.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}

	// Queued tasks are still delivered, then the channel closes.
	count := 0
	for range q.Dequeue() {
		count++
	}
	if count != 1 {
		t.Errorf("expected 1 remaining task, got %d", count)
	}
}

func TestInMemoryQueue_ConcurrentAccess(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(8))
	ctx := context.Background()
	producers, perProducer := 10, 100

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				if err := q.Enqueue(ctx, task(p*perProducer+j)); err != nil {
					t.Errorf("enqueue: %v", err)
				}
			}
		}(p)
	}

	seen := make(map[int]bool)
	consumed := make(chan struct{})
	go func() {
		defer close(consumed)
		for tk := range q.Dequeue() {
			seen[tk.Block] = true
		}
	}()

	wg.Wait()
	_ = q.Close()
	<-consumed

	if len(seen) != producers*perProducer {
		t.Errorf("expected %d distinct tasks, got %d", producers*perProducer, len(seen))
	}
}
