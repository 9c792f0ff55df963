package fault

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/cs452bohanli/phase3vm/clock"
	"github.com/cs452bohanli/phase3vm/diag"
	"github.com/cs452bohanli/phase3vm/frametable"
	"github.com/cs452bohanli/phase3vm/kernelproc"
	"github.com/cs452bohanli/phase3vm/mmu"
	"github.com/cs452bohanli/phase3vm/pagetable"
	"github.com/cs452bohanli/phase3vm/stats"
	"github.com/cs452bohanli/phase3vm/swapstore"
	"github.com/cs452bohanli/phase3vm/vmerr"
	"github.com/cs452bohanli/phase3vm/vmmutex"
)

/// MaxPagers is P3_MAX_PAGERS: the upper bound on "pagers number
/// 1..P3_MAX_PAGERS".
const MaxPagers = 3

/// Pool is the fault queue's pager pool: a fixed set of worker goroutines
/// that serialize fault handling through Queue and the shared VM mutex.
type Pool struct {
	vmu      *vmmutex.Mutex
	queue    *Queue
	frames   *frametable.Table
	swap     *swapstore.Store
	engine   *clock.Engine
	pts      *pagetable.Store
	adapter  *mmu.Adapter
	st       *stats.Counters
	term     kernelproc.Terminator
	log      *diag.Logger
	pageSize int

	numPagers int
	running   []chan struct{}
	shutdown  atomic.Bool
	wg        sync.WaitGroup
}

/// NewPool validates pagers against MaxPagers and constructs a pager pool
/// over the given collaborators; it does not yet start the worker
/// goroutines (see Start).
func NewPool(
	vmu *vmmutex.Mutex,
	queueCapacity int,
	pagers int,
	frames *frametable.Table,
	swap *swapstore.Store,
	engine *clock.Engine,
	pts *pagetable.Store,
	adapter *mmu.Adapter,
	st *stats.Counters,
	term kernelproc.Terminator,
	log *diag.Logger,
	pageSize int,
) (*Pool, vmerr.Code) {
	if pagers <= 0 || pagers > MaxPagers {
		return nil, vmerr.InvalidNumPagers
	}
	running := make([]chan struct{}, pagers)
	for i := range running {
		running[i] = make(chan struct{})
	}
	return &Pool{
		vmu:       vmu,
		queue:     NewQueue(queueCapacity),
		frames:    frames,
		swap:      swap,
		engine:    engine,
		pts:       pts,
		adapter:   adapter,
		st:        st,
		term:      term,
		log:       log,
		pageSize:  pageSize,
		numPagers: pagers,
		running:   running,
	}, vmerr.OK
}

/// Queue exposes the underlying Fault Queue so the Fault Handler can
/// enqueue records.
func (p *Pool) Queue() *Queue { return p.queue }

/// Start forks the pager goroutines and blocks until each has signaled it
/// is running, matching the "P(pagerIsRunning[i])" barrier P3PagerInit
/// uses to know every pager is up before VmInit returns.
func (p *Pool) Start() {
	for i := 0; i < p.numPagers; i++ {
		p.wg.Add(1)
		go p.loop(i)
	}
	for _, r := range p.running {
		<-r
	}
}

/// Shutdown posts one extra fault-available signal per pager so each
/// observes the shutdown flag and exits, then waits for every pager
/// goroutine to return. It is idempotent.
func (p *Pool) Shutdown() {
	if !p.shutdown.CompareAndSwap(false, true) {
		p.wg.Wait()
		return
	}
	p.queue.PostShutdown(p.numPagers)
	p.wg.Wait()
}

func (p *Pool) loop(index int) {
	defer p.wg.Done()
	close(p.running[index])

	ctx := context.Background()
	for {
		if err := p.queue.Wait(ctx); err != nil {
			return
		}
		if p.shutdown.Load() {
			return
		}
		f := p.queue.Dequeue()
		p.service(index, f)
	}
}

// service runs the per-fault algorithm under the global VM mutex, held for
// the fault's entire service -- allocate/evict, swap read or zero-fill,
// PTE install -- the same way P3SwapIn holds its mutex across disk I/O
// "to keep things simple."
func (p *Pool) service(pagerIndex int, f *Record) {
	p.vmu.Lock()
	defer p.vmu.Unlock()

	p.st.IncFaults()
	p.log.Debugf("pager %d servicing fault %s pid=%d offset=%d cause=%v", pagerIndex, f.ID, f.Pid, f.Offset, f.Cause)

	if f.Cause == CauseAccessViolation {
		p.log.Warnf("pid %d: access violation, terminating", f.Pid)
		p.term.Terminate(f.Pid)
		f.Signal()
		return
	}

	page := f.Page(p.pageSize)

	table, code := p.pts.Get(f.Pid)
	if !code.Ok() {
		p.log.Errorf("pid %d: page table vanished mid-fault", f.Pid)
		f.Signal()
		return
	}
	if page < 0 || page >= len(table.Entries) {
		p.log.Warnf("pid %d: page %d out of range, fault not serviced", f.Pid, page)
		f.Signal()
		return
	}

	frame, ok := p.frames.AllocateFree()
	if !ok {
		var code vmerr.Code
		frame, code = p.engine.Evict(pagerIndex)
		if !code.Ok() {
			p.log.Warnf("pid %d: eviction failed (%v), terminating", f.Pid, code)
			p.term.Terminate(f.Pid)
			f.Signal()
			return
		}
	}

	rc := p.loadOrReserve(pagerIndex, f.Pid, page, frame)
	switch rc {
	case vmerr.EmptyPage:
		scratch, code := p.frames.Map(pagerIndex, frame)
		if code.Ok() {
			for i := range scratch {
				scratch[i] = 0
			}
			p.frames.Unmap(pagerIndex)
		}
		p.st.IncNew()
	case vmerr.OutOfSwap:
		p.frames.Release(frame)
		p.log.Warnf("pid %d: out of swap, terminating", f.Pid)
		p.term.Terminate(f.Pid)
		f.Signal()
		return
	default:
		p.st.IncPageIns()
	}

	table.Entries[page] = pagetable.PTE{Incore: true, Read: true, Write: true, Frame: frame}
	p.frames.Reserve(frame, f.Pid, page)
	// Reserve marks the frame busy; a frame from Evict was already busy
	// pending this install, while one from AllocateFree was never marked.
	// Once the PTE is committed it is an ordinary resident, occupied frame
	// again: eligible for a future eviction.
	p.frames.MarkBusy(frame, false)
	p.adapter.Map(page, frame, mmu.ProtRW)

	f.Signal()
}

// loadOrReserve mirrors P3SwapIn: if the page already has a swap slot,
// read it into frame and report a page-in; if not, report EMPTY_PAGE only
// when the swap pool still has room to eventually hold this page, else
// OUT_OF_SWAP.
func (p *Pool) loadOrReserve(pagerIndex, pid, page, frame int) vmerr.Code {
	if idx, ok := p.swap.FindSlot(pid, page); ok {
		buf := make([]byte, p.pageSize)
		if code := p.swap.ReadSlot(idx, buf); !code.Ok() {
			return vmerr.OutOfSwap
		}
		scratch, code := p.frames.Map(pagerIndex, frame)
		if !code.Ok() {
			return code
		}
		copy(scratch, buf)
		p.frames.Unmap(pagerIndex)
		return vmerr.OK
	}
	if !p.swap.HasFree() {
		return vmerr.OutOfSwap
	}
	return vmerr.EmptyPage
}
