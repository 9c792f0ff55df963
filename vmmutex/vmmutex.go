// Package vmmutex provides the VM subsystem's single global mutex: it
// covers the clock hand, frame busy/occupancy fields, swap slot
// descriptors, and the incore/frame fields of page tables whenever a pager
// writes them. Modeled on a kernel's Vm_t.Lock_pmap / Unlock_pmap /
// Lockassert_pmap trio, which serves the same "one mutex, asserted by its
// mutating methods" role for pmap updates.
package vmmutex

import "sync"

/// Mutex is the VM subsystem's single global lock. held is only ever
/// written by whichever goroutine currently owns the underlying
/// sync.Mutex, so it is safe without its own synchronization.
type Mutex struct {
	mu   sync.Mutex
	held bool
}

/// Lock acquires the VM mutex.
func (m *Mutex) Lock() {
	m.mu.Lock()
	m.held = true
}

/// Unlock releases the VM mutex.
func (m *Mutex) Unlock() {
	m.held = false
	m.mu.Unlock()
}

/// AssertHeld panics if the VM mutex is not held. It does not check which
/// goroutine holds it, so a caller is not caught while another goroutine
/// holds the lock. Every
/// mutating method on the frame table, swap store, replacement engine, and
/// page table entries calls this first, the way Lockassert_pmap guards
/// pmap mutation in the kernel it's modeled on.
func (m *Mutex) AssertHeld() {
	if !m.held {
		panic("vmmutex: VM mutex must be held")
	}
}
