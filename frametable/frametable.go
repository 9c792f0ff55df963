// Package frametable implements the frame table: a fixed-size array of
// frame descriptors with a reverse mapping to the (pid, page) currently
// occupying each frame.
package frametable

import (
	"github.com/cs452bohanli/phase3vm/mmu"
	"github.com/cs452bohanli/phase3vm/pagetable"
	"github.com/cs452bohanli/phase3vm/stats"
	"github.com/cs452bohanli/phase3vm/vmerr"
	"github.com/cs452bohanli/phase3vm/vmmutex"
)

/// noOccupant is the sentinel pid/page pair meaning a frame holds no page.
const noOccupant = -1

/// Frame is one frame descriptor.
type Frame struct {
	Busy bool
	Pid  int
	Page int
}

func (f Frame) hasOccupant() bool { return f.Pid != noOccupant }

/// Table is the frame table. All mutating methods assert that the VM
/// mutex is held by the caller.
type Table struct {
	vmu     *vmmutex.Mutex
	adapter *mmu.Adapter
	pts     *pagetable.Store
	st      *stats.Counters

	frames []Frame
}

/// NewTable constructs a frame table of numFrames frames, all initially
/// free. vmu is the shared global VM mutex; adapter is the MMU interface
/// adapter used for scratch mapping; pts is the page table store,
/// consulted by FreeAll.
func NewTable(vmu *vmmutex.Mutex, adapter *mmu.Adapter, pts *pagetable.Store, st *stats.Counters) *Table {
	frames := make([]Frame, adapter.NumFrames())
	for i := range frames {
		frames[i] = Frame{Pid: noOccupant, Page: noOccupant}
	}
	return &Table{vmu: vmu, adapter: adapter, pts: pts, st: st, frames: frames}
}

/// NumFrames returns the total number of frames managed by this table.
func (t *Table) NumFrames() int { return len(t.frames) }

/// Get returns a copy of frame f's descriptor.
func (t *Table) Get(f int) (Frame, vmerr.Code) {
	t.vmu.AssertHeld()
	if f < 0 || f >= len(t.frames) {
		return Frame{}, vmerr.InvalidFrame
	}
	return t.frames[f], vmerr.OK
}

/// AllocateFree returns the lowest-indexed frame with busy=false and no
/// occupant, or ok=false if every frame is busy or occupied. It does not
/// run replacement and does not itself mark the frame busy -- the caller
/// (the pager) commits the frame once its contents are final, exactly as
/// P3FrameMap only flips `used` once the PTE is installed.
func (t *Table) AllocateFree() (frame int, ok bool) {
	t.vmu.AssertHeld()
	for i, fr := range t.frames {
		if !fr.Busy && !fr.hasOccupant() {
			return i, true
		}
	}
	return 0, false
}

/// Reserve marks frame busy and records its new (pid, page) occupant,
/// removing it from the free pool. Used once a pager commits a frame to
/// a page; the replacement engine uses MarkBusy instead.
func (t *Table) Reserve(frame, pid, page int) vmerr.Code {
	t.vmu.AssertHeld()
	if frame < 0 || frame >= len(t.frames) {
		return vmerr.InvalidFrame
	}
	wasFree := !t.frames[frame].Busy && !t.frames[frame].hasOccupant()
	t.frames[frame] = Frame{Busy: true, Pid: pid, Page: page}
	if wasFree {
		t.st.AddFreeFrames(-1)
	}
	return vmerr.OK
}

/// Release clears frame's busy flag and occupant, returning it to the
/// free pool.
func (t *Table) Release(frame int) vmerr.Code {
	t.vmu.AssertHeld()
	if frame < 0 || frame >= len(t.frames) {
		return vmerr.InvalidFrame
	}
	wasOccupied := t.frames[frame].Busy || t.frames[frame].hasOccupant()
	t.frames[frame] = Frame{Pid: noOccupant, Page: noOccupant}
	if wasOccupied {
		t.st.AddFreeFrames(1)
	}
	return vmerr.OK
}

/// MarkBusy sets or clears frame's busy flag without touching its
/// occupant, for the replacement engine's "belongs to the caller until
/// mapped to a new page" transitional state.
func (t *Table) MarkBusy(frame int, busy bool) vmerr.Code {
	t.vmu.AssertHeld()
	if frame < 0 || frame >= len(t.frames) {
		return vmerr.InvalidFrame
	}
	t.frames[frame].Busy = busy
	return vmerr.OK
}

/// FreeAll walks pid's page table; for every incore PTE it clears incore
/// and returns the frame to the pool. It is called at process quit only.
func (t *Table) FreeAll(pid int) vmerr.Code {
	t.vmu.AssertHeld()
	table, code := t.pts.Get(pid)
	if !code.Ok() {
		return code
	}
	for page := range table.Entries {
		pte := &table.Entries[page]
		if pte.Incore {
			frame := pte.Frame
			pte.Incore = false
			t.Release(frame)
		}
	}
	return vmerr.OK
}

/// Map wires frame into the calling pager's scratch slot (tag) so its
/// contents can be read or written without installing it in any
/// process's address space.
func (t *Table) Map(tag, frame int) ([]byte, vmerr.Code) {
	return t.adapter.MapScratch(tag, frame)
}

/// Unmap releases the calling pager's scratch slot.
func (t *Table) Unmap(tag int) vmerr.Code {
	return t.adapter.UnmapScratch(tag)
}
