// Package pagetable implements the page table store: a per-process array
// of page table entries indexed by page number, created at fork and
// destroyed at quit.
package pagetable

import (
	"sync"

	"github.com/cs452bohanli/phase3vm/vmerr"
)

/// PTE is a single page table entry. Read and write are always 1 in this
/// design; dirty and reference bits live in the MMU, not here.
type PTE struct {
	Incore bool
	Read   bool
	Write  bool
	Frame  int
}

/// Table is one process's page table: numPages PTEs plus the mutex-free
/// bookkeeping needed to look entries up by page number. Callers that
/// mutate Entries concurrently with pagers must hold the VM subsystem's
/// global mutex; Table itself does no locking.
type Table struct {
	Pid     int
	Entries []PTE
}

/// NumPages returns the number of entries in the table.
func (t *Table) NumPages() int {
	return len(t.Entries)
}

/// Store is the page table store: a lookup from pid to Table. Allocate
/// out-of-memory is fatal; Store itself never runs out of memory for the
/// fixed-size workloads this kernel targets, so that fatal path is
/// represented by a panic rather than a Code, matching the "aborts the
/// kernel" contract.
type Store struct {
	mu     sync.Mutex
	tables map[int]*Table
}

/// NewStore constructs an empty page table store.
func NewStore() *Store {
	return &Store{tables: make(map[int]*Table)}
}

/// Allocate creates a fresh, all-zero (incore=0, read=1, write=1) page
/// table of numPages entries for pid and installs it in the store.
func (s *Store) Allocate(pid, numPages int) *Table {
	if numPages <= 0 {
		panic("pagetable: numPages must be positive")
	}
	entries := make([]PTE, numPages)
	for i := range entries {
		entries[i] = PTE{Incore: false, Read: true, Write: true}
	}
	t := &Table{Pid: pid, Entries: entries}

	s.mu.Lock()
	s.tables[pid] = t
	s.mu.Unlock()
	return t
}

/// Free releases pid's page table. It is a precondition for quit to
/// complete.
func (s *Store) Free(pid int) {
	s.mu.Lock()
	delete(s.tables, pid)
	s.mu.Unlock()
}

/// Get returns a stable reference to pid's table, valid until Free(pid).
/// It returns (nil, vmerr.InvalidPid) if pid has no table.
func (s *Store) Get(pid int) (*Table, vmerr.Code) {
	s.mu.Lock()
	t, ok := s.tables[pid]
	s.mu.Unlock()
	if !ok {
		return nil, vmerr.InvalidPid
	}
	return t, vmerr.OK
}
