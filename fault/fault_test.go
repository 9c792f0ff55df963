package fault

import (
	"context"
	"testing"
	"time"

	"github.com/cs452bohanli/phase3vm/vmerr"
)

func TestEnqueueDequeueOrder(t *testing.T) {
	q := NewQueue(4)
	a := NewRecord(1, 0, CausePageFault)
	b := NewRecord(2, 16, CausePageFault)

	if code := q.Enqueue(a); !code.Ok() {
		t.Fatalf("Enqueue a failed: %v", code)
	}
	if code := q.Enqueue(b); !code.Ok() {
		t.Fatalf("Enqueue b failed: %v", code)
	}

	ctx := context.Background()
	if err := q.Wait(ctx); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	got := q.Dequeue()
	if got != a {
		t.Fatal("Dequeue should return records in FIFO order")
	}

	if err := q.Wait(ctx); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if got := q.Dequeue(); got != b {
		t.Fatal("Dequeue should return b second")
	}
}

func TestEnqueueFullQueue(t *testing.T) {
	q := NewQueue(1)
	if code := q.Enqueue(NewRecord(1, 0, CausePageFault)); !code.Ok() {
		t.Fatalf("first Enqueue should succeed: %v", code)
	}
	if code := q.Enqueue(NewRecord(2, 0, CausePageFault)); code != vmerr.OutOfPages {
		t.Fatalf("Enqueue on full queue = %v, want OutOfPages", code)
	}
}

func TestWaitBlocksUntilEnqueue(t *testing.T) {
	q := NewQueue(1)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := q.Wait(ctx); err == nil {
		t.Fatal("Wait should time out on an empty queue")
	}
}

func TestPostShutdownUnblocksWaiters(t *testing.T) {
	q := NewQueue(2)
	done := make(chan error, 1)
	go func() {
		done <- q.Wait(context.Background())
	}()
	q.PostShutdown(1)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Wait after PostShutdown returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait did not unblock after PostShutdown")
	}
}

func TestRecordSignalWait(t *testing.T) {
	r := NewRecord(1, 20, CausePageFault)
	if got := r.Page(16); got != 1 {
		t.Fatalf("Page() = %d, want 1", got)
	}
	done := make(chan struct{})
	go func() {
		r.Wait()
		close(done)
	}()
	r.Signal()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after Signal")
	}
}
