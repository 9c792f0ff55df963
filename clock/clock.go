// Package clock implements the replacement engine: the clock
// (second-chance) algorithm over the frame table, with dirty write-back
// into the swap store.
package clock

import (
	"github.com/cs452bohanli/phase3vm/frametable"
	"github.com/cs452bohanli/phase3vm/mmu"
	"github.com/cs452bohanli/phase3vm/pagetable"
	"github.com/cs452bohanli/phase3vm/stats"
	"github.com/cs452bohanli/phase3vm/swapstore"
	"github.com/cs452bohanli/phase3vm/vmerr"
	"github.com/cs452bohanli/phase3vm/vmmutex"
)

/// Engine runs the clock algorithm over a frame table shared with the
/// rest of the VM subsystem. The hand is process-wide static: it survives
/// across faults rather than restarting from zero each time.
type Engine struct {
	vmu     *vmmutex.Mutex
	frames  *frametable.Table
	swap    *swapstore.Store
	adapter *mmu.Adapter
	pts     *pagetable.Store
	st      *stats.Counters

	hand int
}

/// NewEngine constructs a replacement engine over the given collaborators.
/// The caller retains ownership of vmu; Evict asserts it is held
/// throughout -- the whole eviction holds the global VM mutex, scan to
/// write-back.
func NewEngine(vmu *vmmutex.Mutex, frames *frametable.Table, swap *swapstore.Store, adapter *mmu.Adapter, pts *pagetable.Store, st *stats.Counters) *Engine {
	return &Engine{vmu: vmu, frames: frames, swap: swap, adapter: adapter, pts: pts, st: st, hand: -1}
}

/// Evict selects a victim frame via the clock algorithm, writes it back
/// to swap if dirty, clears its owning PTE's incore bit, marks it busy
/// (reserved for the caller), and returns its index. pagerTag identifies
/// the calling pager's scratch slot for the dirty-page bounce copy.
///
/// The caller must already hold the VM mutex; Evict does not acquire it,
/// matching the rest of the package's AssertHeld convention and the
/// pager loop's single critical section per fault.
func (e *Engine) Evict(pagerTag int) (victim int, code vmerr.Code) {
	e.vmu.AssertHeld()

	numFrames := e.frames.NumFrames()
	for {
		e.hand = (e.hand + 1) % numFrames
		fr, frCode := e.frames.Get(e.hand)
		if !frCode.Ok() {
			return 0, frCode
		}
		if fr.Busy {
			continue
		}
		ref, _, accCode := e.adapter.GetAccess(e.hand)
		if !accCode.Ok() {
			return 0, accCode
		}
		if !ref {
			victim = e.hand
			break
		}
		if code := e.adapter.SetAccess(e.hand, false, mustDirty(e.adapter, e.hand)); !code.Ok() {
			return 0, code
		}
	}

	fr, _ := e.frames.Get(victim)
	_, dirty, accCode := e.adapter.GetAccess(victim)
	if !accCode.Ok() {
		return 0, accCode
	}

	if dirty {
		if code := e.writeBack(pagerTag, victim, fr); !code.Ok() {
			// Propagate OUT_OF_SWAP without mutating the victim's state.
			return 0, code
		}
	}

	// Locate the owning PTE and clear its incore bit.
	table, ptCode := e.pts.Get(fr.Pid)
	if ptCode.Ok() && fr.Page >= 0 && fr.Page < len(table.Entries) {
		table.Entries[fr.Page].Incore = false
	}
	// Drop the hardware mapping that still points that page at the victim,
	// so the next touch of the page faults instead of reading the frame's
	// new contents.
	if mapped, _, ok := e.adapter.Mapped(fr.Page); ok && mapped == victim {
		e.adapter.Unmap(fr.Page)
	}

	if code := e.frames.MarkBusy(victim, true); !code.Ok() {
		return 0, code
	}
	e.st.IncReplaced()
	return victim, vmerr.OK
}

// mustDirty preserves the dirty bit while the reference bit is cleared,
// since SetAccess overwrites both.
func mustDirty(a *mmu.Adapter, frame int) bool {
	_, dirty, _ := a.GetAccess(frame)
	return dirty
}

// writeBack reuses the swap slot already holding the victim's current
// occupant, or allocates one if it has none, copies its contents through
// the pager's scratch mapping into a bounce buffer, writes the slot, and
// records the occupant.
func (e *Engine) writeBack(pagerTag, frame int, fr frametable.Frame) vmerr.Code {
	idx, ok := e.swap.FindSlot(fr.Pid, fr.Page)
	if !ok {
		idx, ok = e.swap.AllocateSlot()
	}
	if !ok {
		return vmerr.OutOfSwap
	}

	scratch, code := e.frames.Map(pagerTag, frame)
	if !code.Ok() {
		return code
	}
	bounce := make([]byte, len(scratch))
	copy(bounce, scratch)
	e.frames.Unmap(pagerTag)

	if code := e.swap.WriteSlot(idx, bounce); !code.Ok() {
		e.swap.FreeSlotOf(idx)
		return vmerr.OutOfSwap
	}
	if code := e.swap.Claim(idx, fr.Pid, fr.Page); !code.Ok() {
		return code
	}
	e.adapter.SetAccess(frame, false, false)
	e.st.IncPageOuts()
	return vmerr.OK
}
