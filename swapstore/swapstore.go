// Package swapstore implements the swap store: a pool of fixed-size disk
// slots, each a contiguous run of sectors covering exactly one page,
// allocated first-fit and addressed by (track, first sector).
package swapstore

import (
	"github.com/cs452bohanli/phase3vm/stats"
	"github.com/cs452bohanli/phase3vm/vmerr"
	"github.com/cs452bohanli/phase3vm/vmmutex"
)

const noOccupant = -1

/// slot records the (pid, page) currently occupying a swap slot, or the
/// sentinel pair meaning free.
type slot struct {
	pid  int
	page int
}

func (s slot) free() bool { return s.pid == noOccupant }

/// Store is the swap store. All mutating methods assert the VM mutex is
/// held, matching the "pagers hold the mutex across disk I/O" contract.
type Store struct {
	vmu  *vmmutex.Mutex
	disk Disk
	st   *stats.Counters

	pageSize        int
	sectorSize      int
	sectorsPerTrack int
	sectorsPerSlot  int

	slots []slot
}

/// Init queries disk's geometry and derives the slot pool: total slots =
/// floor(diskCapacity / pageSize). Slot count is governed entirely by
/// disk capacity, independent of the page table's own page/frame counts.
func Init(vmu *vmmutex.Mutex, disk Disk, pageSize int, st *stats.Counters) *Store {
	sectorSize, sectorsPerTrack, tracks := disk.Geometry()
	if pageSize%sectorSize != 0 {
		panic("swapstore: page size must be a multiple of sector size")
	}
	capacity := sectorSize * sectorsPerTrack * tracks
	numSlots := capacity / pageSize

	s := &Store{
		vmu:             vmu,
		disk:            disk,
		st:              st,
		pageSize:        pageSize,
		sectorSize:      sectorSize,
		sectorsPerTrack: sectorsPerTrack,
		sectorsPerSlot:  pageSize / sectorSize,
		slots:           make([]slot, numSlots),
	}
	for i := range s.slots {
		s.slots[i] = slot{pid: noOccupant, page: noOccupant}
	}
	return s
}

/// NumSlots returns the total number of swap slots.
func (s *Store) NumSlots() int { return len(s.slots) }

func (s *Store) slotGeometry(idx int) (track, firstSector int) {
	sector := idx * s.sectorsPerSlot
	return sector / s.sectorsPerTrack, sector % s.sectorsPerTrack
}

/// FindSlot returns the index of the slot holding (pid, page), or
/// ok=false if no such slot exists.
func (s *Store) FindSlot(pid, page int) (idx int, ok bool) {
	s.vmu.AssertHeld()
	for i, sl := range s.slots {
		if sl.pid == pid && sl.page == page {
			return i, true
		}
	}
	return 0, false
}

/// HasFree reports whether any slot is currently free, without
/// allocating one. Used by the pager loop's first-touch check: a page
/// with no existing slot can still be served as EMPTY_PAGE only if swap
/// has room to eventually hold it once evicted -- mirroring P3SwapIn,
/// which rejects first-touch faults with OUT_OF_SWAP when the slot pool
/// is already exhausted.
func (s *Store) HasFree() bool {
	s.vmu.AssertHeld()
	for _, sl := range s.slots {
		if sl.free() {
			return true
		}
	}
	return false
}

/// AllocateSlot scans for a free descriptor (first-fit) and returns its
/// index, or ok=false if every slot is occupied (OUT_OF_SWAP upward).
func (s *Store) AllocateSlot() (idx int, ok bool) {
	s.vmu.AssertHeld()
	for i, sl := range s.slots {
		if sl.free() {
			return i, true
		}
	}
	return 0, false
}

/// Claim records (pid, page) as the occupant of slot idx, after a
/// successful write.
func (s *Store) Claim(idx, pid, page int) vmerr.Code {
	s.vmu.AssertHeld()
	if idx < 0 || idx >= len(s.slots) {
		return vmerr.InvalidParams
	}
	wasFree := s.slots[idx].free()
	s.slots[idx] = slot{pid: pid, page: page}
	if wasFree {
		s.st.AddFreeBlocks(-1)
	}
	return vmerr.OK
}

/// FreeSlots clears every slot belonging to pid, called at process quit.
func (s *Store) FreeSlots(pid int) vmerr.Code {
	s.vmu.AssertHeld()
	for i, sl := range s.slots {
		if sl.pid == pid {
			s.slots[i] = slot{pid: noOccupant, page: noOccupant}
			s.st.AddFreeBlocks(1)
		}
	}
	return vmerr.OK
}

/// WriteSlot writes buf (exactly one page) to slot idx's sectors.
func (s *Store) WriteSlot(idx int, buf []byte) vmerr.Code {
	s.vmu.AssertHeld()
	if idx < 0 || idx >= len(s.slots) || len(buf) != s.pageSize {
		return vmerr.InvalidParams
	}
	track, first := s.slotGeometry(idx)
	return s.disk.WriteSectors(track, first, s.sectorsPerSlot, buf)
}

/// ReadSlot reads slot idx's sectors into buf (exactly one page).
func (s *Store) ReadSlot(idx int, buf []byte) vmerr.Code {
	s.vmu.AssertHeld()
	if idx < 0 || idx >= len(s.slots) || len(buf) != s.pageSize {
		return vmerr.InvalidParams
	}
	track, first := s.slotGeometry(idx)
	return s.disk.ReadSectors(track, first, s.sectorsPerSlot, buf)
}

/// FreeSlotOf frees a single occupied slot regardless of owner, used when
/// an eviction's write fails partway and the reservation must be undone.
func (s *Store) FreeSlotOf(idx int) vmerr.Code {
	s.vmu.AssertHeld()
	if idx < 0 || idx >= len(s.slots) {
		return vmerr.InvalidParams
	}
	if !s.slots[idx].free() {
		s.slots[idx] = slot{pid: noOccupant, page: noOccupant}
		s.st.AddFreeBlocks(1)
	}
	return vmerr.OK
}
