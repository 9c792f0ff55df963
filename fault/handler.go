package fault

import "github.com/cs452bohanli/phase3vm/vmerr"

// Handler is the fault handler: it runs on the faulting process's own
// stack (in this simulation: the faulting goroutine calls it directly,
// standing in for "interrupt context"), captures the fault, enqueues it,
// and blocks until a pager signals completion. It never touches the
// global VM mutex -- only the queue's own synchronization and its own
// reply handle, which is what keeps a faulting caller from deadlocking
// against the pager that services it.
type Handler struct {
	queue *Queue
}

/// NewHandler binds a fault handler to the pool's queue.
func NewHandler(queue *Queue) *Handler {
	return &Handler{queue: queue}
}

/// Handle captures (pid, offset, cause), enqueues a fault record, and
/// blocks until the pager servicing it signals completion. The faulting
/// instruction should only be retried after this returns OK.
func (h *Handler) Handle(pid, offset int, cause Cause) vmerr.Code {
	f := NewRecord(pid, offset, cause)
	if code := h.queue.Enqueue(f); !code.Ok() {
		return code
	}
	f.Wait()
	return vmerr.OK
}
