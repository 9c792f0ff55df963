// Package fault implements the fault queue and the fault handler: a
// bounded ring of fault records, a counting signal tracking queued items,
// and each record's own single-slot rendezvous for unblocking the
// faulting caller once service completes.
package fault

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/cs452bohanli/phase3vm/vmerr"
)

/// Cause distinguishes an ordinary page fault from an access violation:
/// the pager loop kills the faulting process on the latter instead of
/// servicing it.
type Cause int

const (
	CausePageFault Cause = iota
	CauseAccessViolation
)

/// Record is a fault record: it lives on the queue from the moment the
/// interrupt handler enqueues it until exactly one pager dequeues and
/// eventually signals Reply.
type Record struct {
	ID     uuid.UUID
	Pid    int
	Offset int
	Cause  Cause

	reply chan struct{}
}

/// Page returns the faulting page number for the given page size.
func (r *Record) Page(pageSize int) int { return r.Offset / pageSize }

/// Wait blocks until the pager servicing this fault calls Signal.
func (r *Record) Wait() { <-r.reply }

/// Signal unblocks the faulting caller. It must be called exactly once
/// per Record.
func (r *Record) Signal() { close(r.reply) }

/// Queue is the bounded ring of fault records plus its counting signal.
/// The ring's head/tail bookkeeping is itself serialized by an internal
/// mutex for atomic enqueue; the semaphore tracks how many queued items
/// are waiting for a pager.
type Queue struct {
	capacity int
	ring     []*Record
	head     int
	tail     int
	count    int

	enqueueMu chan struct{} // 1-buffered mutex guarding ring bookkeeping
	sem       *semaphore.Weighted
}

/// NewQueue constructs a fault queue with the given ring capacity. The
/// semaphore starts fully drained (no permits outstanding) so pagers
/// block until Enqueue posts an item, then Release tops it back up --
/// the acquire/release pattern below turns golang.org/x/sync/semaphore's
/// resource-pool semantics into a classic counting signal: one permit per
/// queued fault record.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		panic("fault: queue capacity must be positive")
	}
	q := &Queue{
		capacity:  capacity,
		ring:      make([]*Record, capacity),
		enqueueMu: make(chan struct{}, 1),
		sem:       semaphore.NewWeighted(int64(capacity)),
	}
	q.enqueueMu <- struct{}{}
	// Drain all permits so the pool starts at zero available items.
	_ = q.sem.Acquire(context.Background(), int64(capacity))
	return q
}

/// NewRecord builds a fault record ready to enqueue, stamping it with a
/// correlation id for cross-pager log tracing.
func NewRecord(pid, offset int, cause Cause) *Record {
	return &Record{ID: uuid.New(), Pid: pid, Offset: offset, Cause: cause, reply: make(chan struct{})}
}

/// Enqueue appends f to the ring and posts one permit to the counting
/// signal. It returns vmerr.OutOfPages if the ring is full -- a
/// structural condition that should not arise with a ring sized to the
/// workload, but is reported rather than silently dropping the fault.
func (q *Queue) Enqueue(f *Record) vmerr.Code {
	<-q.enqueueMu
	if q.count == q.capacity {
		q.enqueueMu <- struct{}{}
		return vmerr.OutOfPages
	}
	q.ring[q.tail] = f
	q.tail = (q.tail + 1) % q.capacity
	q.count++
	q.enqueueMu <- struct{}{}

	q.sem.Release(1)
	return vmerr.OK
}

/// Dequeue pops the oldest fault record. Callers must have already
/// consumed a permit via Wait, and must only call Dequeue when the
/// permit corresponds to a real enqueued item (not a shutdown post) --
/// the pager loop checks the shutdown flag before dequeuing.
func (q *Queue) Dequeue() *Record {
	<-q.enqueueMu
	f := q.ring[q.head]
	q.ring[q.head] = nil
	q.head = (q.head + 1) % q.capacity
	q.count--
	q.enqueueMu <- struct{}{}
	return f
}

/// Wait blocks until a permit is available: either a real enqueued fault
/// or one of the extra shutdown posts. It does not dequeue.
func (q *Queue) Wait(ctx context.Context) error {
	return q.sem.Acquire(ctx, 1)
}

/// PostShutdown posts one permit per pager so that every pager's next
/// wait returns and observes the shutdown flag.
func (q *Queue) PostShutdown(pagers int) {
	q.sem.Release(int64(pagers))
}
