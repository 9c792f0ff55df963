// Package mmu implements the MMU interface adapter: it owns the contract
// with the hardware, tracking which pages are currently visible to the
// running process, the reference/dirty bits of each frame, and the
// scratch-mapping mechanism pagers use to touch a frame's contents
// without installing it in a faulting process's address space.
//
// There is no real hardware underneath this simulated kernel, so Adapter
// also stands in for physical memory itself: each frame is backed by a
// fixed-size byte slice, and Map/Unmap/MapScratch manipulate views onto
// that storage the way a real MMU would manipulate TLB/page-table state.
package mmu

import (
	"sync"

	"github.com/cs452bohanli/phase3vm/pagetable"
	"github.com/cs452bohanli/phase3vm/vmerr"
)

/// Prot is a bitmask of page protection flags, matching USLOSS_MMU_PROT_*.
type Prot int

const (
	ProtRead  Prot = 1 << 0
	ProtWrite Prot = 1 << 1
	ProtRW         = ProtRead | ProtWrite
)

type hwEntry struct {
	frame int
	prot  Prot
}

/// Adapter is the MMU interface adapter plus its simulated physical
/// memory. The zero value is not usable; construct with NewAdapter.
type Adapter struct {
	mu sync.Mutex

	pageSize int
	frames   [][]byte
	ref      []bool
	dirty    []bool

	// hw is the hardware view: pages currently mapped for whichever
	// process is "running". Only one process's mappings are installed
	// at a time, matching USLOSS's single shared MMU region.
	hw map[int]hwEntry

	// scratch holds the one-scratch-slot-per-pager mappings. Keyed by an
	// opaque tag the caller picks (the pager index).
	scratch map[int]int // tag -> frame
}

/// NewAdapter allocates simulated physical memory for numFrames frames of
/// pageSize bytes each.
func NewAdapter(numFrames, pageSize int) *Adapter {
	if numFrames <= 0 || pageSize <= 0 {
		panic("mmu: numFrames and pageSize must be positive")
	}
	frames := make([][]byte, numFrames)
	for i := range frames {
		frames[i] = make([]byte, pageSize)
	}
	return &Adapter{
		pageSize: pageSize,
		frames:   frames,
		ref:      make([]bool, numFrames),
		dirty:    make([]bool, numFrames),
		hw:       make(map[int]hwEntry),
		scratch:  make(map[int]int),
	}
}

/// PageSize returns the configured page size in bytes.
func (a *Adapter) PageSize() int { return a.pageSize }

/// NumFrames returns the number of simulated physical frames.
func (a *Adapter) NumFrames() int { return len(a.frames) }

func (a *Adapter) validFrame(frame int) bool {
	return frame >= 0 && frame < len(a.frames)
}

/// InstallPageTable replaces the hardware view with exactly table's
/// incore pages, mapped read-write. Called on context switch-in and
/// wherever a page table needs installing wholesale.
func (a *Adapter) InstallPageTable(table *pagetable.Table) vmerr.Code {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.hw = make(map[int]hwEntry, len(table.Entries))
	for page, pte := range table.Entries {
		if pte.Incore {
			a.hw[page] = hwEntry{frame: pte.Frame, prot: ProtRW}
		}
	}
	return vmerr.OK
}

/// Map installs a single page->frame mapping in the hardware view with
/// the given protection.
func (a *Adapter) Map(page, frame int, prot Prot) vmerr.Code {
	if !a.validFrame(frame) {
		return vmerr.InvalidFrame
	}
	a.mu.Lock()
	a.hw[page] = hwEntry{frame: frame, prot: prot}
	a.mu.Unlock()
	return vmerr.OK
}

/// Unmap removes page's mapping from the hardware view, if any.
func (a *Adapter) Unmap(page int) vmerr.Code {
	a.mu.Lock()
	delete(a.hw, page)
	a.mu.Unlock()
	return vmerr.OK
}

/// MapScratch wires frame into the caller's scratch slot (tagged by an
/// opaque id, typically a pager index) and returns a slice viewing the
/// frame's bytes directly -- writes through the slice are writes to
/// physical memory, matching what a real scratch VA mapping would give a
/// pager. Only one scratch mapping per tag is permitted at a time.
func (a *Adapter) MapScratch(tag, frame int) ([]byte, vmerr.Code) {
	if !a.validFrame(frame) {
		return nil, vmerr.InvalidFrame
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.scratch[tag] = frame
	return a.frames[frame], vmerr.OK
}

/// UnmapScratch releases the caller's scratch slot.
func (a *Adapter) UnmapScratch(tag int) vmerr.Code {
	a.mu.Lock()
	if _, ok := a.scratch[tag]; !ok {
		a.mu.Unlock()
		return vmerr.FrameNotMapped
	}
	delete(a.scratch, tag)
	a.mu.Unlock()
	return vmerr.OK
}

/// GetAccess reads frame's reference and dirty bits. Callers must hold
/// the VM mutex across the read-then-clear sequence the replacement
/// engine performs; Adapter's own lock only protects the
/// simulated-hardware bookkeeping underneath that external contract.
func (a *Adapter) GetAccess(frame int) (ref, dirty bool, code vmerr.Code) {
	if !a.validFrame(frame) {
		return false, false, vmerr.InvalidFrame
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ref[frame], a.dirty[frame], vmerr.OK
}

/// SetAccess overwrites frame's reference and dirty bits.
func (a *Adapter) SetAccess(frame int, ref, dirty bool) vmerr.Code {
	if !a.validFrame(frame) {
		return vmerr.InvalidFrame
	}
	a.mu.Lock()
	a.ref[frame] = ref
	a.dirty[frame] = dirty
	a.mu.Unlock()
	return vmerr.OK
}

/// TouchRead marks the frame currently mapped at page as referenced, the
/// way a real MMU sets the access bit on any load through a valid PTE.
func (a *Adapter) TouchRead(page int) vmerr.Code {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.hw[page]
	if !ok {
		return vmerr.InvalidPage
	}
	a.ref[e.frame] = true
	return vmerr.OK
}

/// TouchWrite marks the frame currently mapped at page as referenced and
/// dirty. It fails if page is mapped read-only.
func (a *Adapter) TouchWrite(page int) vmerr.Code {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.hw[page]
	if !ok {
		return vmerr.InvalidPage
	}
	if e.prot&ProtWrite == 0 {
		return vmerr.InvalidPage
	}
	a.ref[e.frame] = true
	a.dirty[e.frame] = true
	return vmerr.OK
}

/// ReadByte reads one byte from page at offset through the hardware
/// view, as a load instruction in the faulting process would.
func (a *Adapter) ReadByte(page, offset int) (byte, vmerr.Code) {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.hw[page]
	if !ok {
		return 0, vmerr.InvalidPage
	}
	a.ref[e.frame] = true
	return a.frames[e.frame][offset], vmerr.OK
}

/// WriteByte writes one byte to page at offset through the hardware
/// view, setting reference and dirty bits as a store instruction would.
func (a *Adapter) WriteByte(page, offset int, b byte) vmerr.Code {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.hw[page]
	if !ok {
		return vmerr.InvalidPage
	}
	if e.prot&ProtWrite == 0 {
		return vmerr.InvalidPage
	}
	a.ref[e.frame] = true
	a.dirty[e.frame] = true
	a.frames[e.frame][offset] = b
	return vmerr.OK
}

/// Mapped reports whether page currently has a hardware mapping, and if
/// so, the frame and protection it is mapped with.
func (a *Adapter) Mapped(page int) (frame int, prot Prot, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.hw[page]
	return e.frame, e.prot, ok
}
