package frametable

import (
	"testing"

	"github.com/cs452bohanli/phase3vm/mmu"
	"github.com/cs452bohanli/phase3vm/pagetable"
	"github.com/cs452bohanli/phase3vm/stats"
	"github.com/cs452bohanli/phase3vm/vmerr"
	"github.com/cs452bohanli/phase3vm/vmmutex"
)

func newFixture(numFrames int) (*Table, *vmmutex.Mutex, *pagetable.Store, *stats.Counters) {
	var vmu vmmutex.Mutex
	adapter := mmu.NewAdapter(numFrames, 16)
	pts := pagetable.NewStore()
	var st stats.Counters
	st.Reset(4, numFrames, 4)
	return NewTable(&vmu, adapter, pts, &st), &vmu, pts, &st
}

func TestAllocateReserveRelease(t *testing.T) {
	ft, vmu, _, st := newFixture(2)
	vmu.Lock()
	defer vmu.Unlock()

	frame, ok := ft.AllocateFree()
	if !ok || frame != 0 {
		t.Fatalf("AllocateFree() = %d,%v want 0,true", frame, ok)
	}
	if code := ft.Reserve(frame, 1, 0); !code.Ok() {
		t.Fatalf("Reserve failed: %v", code)
	}
	if b := st.Snapshot(); b.FreeFrames != 1 {
		t.Fatalf("FreeFrames after Reserve = %d, want 1", b.FreeFrames)
	}

	fr, code := ft.Get(frame)
	if !code.Ok() || !fr.Busy || fr.Pid != 1 || fr.Page != 0 {
		t.Fatalf("Get after Reserve = %+v,%v", fr, code)
	}

	if code := ft.Release(frame); !code.Ok() {
		t.Fatalf("Release failed: %v", code)
	}
	if b := st.Snapshot(); b.FreeFrames != 2 {
		t.Fatalf("FreeFrames after Release = %d, want 2", b.FreeFrames)
	}
}

func TestAllocateFreeExhausted(t *testing.T) {
	ft, vmu, _, _ := newFixture(1)
	vmu.Lock()
	defer vmu.Unlock()

	frame, _ := ft.AllocateFree()
	ft.Reserve(frame, 1, 0)
	if _, ok := ft.AllocateFree(); ok {
		t.Fatal("AllocateFree should fail when all frames are occupied")
	}
}

func TestFreeAllReleasesIncorePages(t *testing.T) {
	ft, vmu, pts, st := newFixture(2)
	table := pts.Allocate(7, 2)

	vmu.Lock()
	defer vmu.Unlock()

	table.Entries[0] = pagetable.PTE{Incore: true, Frame: 0}
	table.Entries[1] = pagetable.PTE{Incore: true, Frame: 1}
	ft.Reserve(0, 7, 0)
	ft.Reserve(1, 7, 1)

	if code := ft.FreeAll(7); !code.Ok() {
		t.Fatalf("FreeAll failed: %v", code)
	}
	if b := st.Snapshot(); b.FreeFrames != 2 {
		t.Fatalf("FreeFrames after FreeAll = %d, want 2", b.FreeFrames)
	}
	for i, pte := range table.Entries {
		if pte.Incore {
			t.Errorf("entry %d still incore after FreeAll", i)
		}
	}
}

func TestReserveInvalidFrame(t *testing.T) {
	ft, vmu, _, _ := newFixture(1)
	vmu.Lock()
	defer vmu.Unlock()
	if code := ft.Reserve(5, 1, 0); code != vmerr.InvalidFrame {
		t.Fatalf("Reserve(invalid) = %v, want InvalidFrame", code)
	}
}

func TestMethodsPanicWithoutMutex(t *testing.T) {
	ft, _, _, _ := newFixture(1)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic calling AllocateFree without holding the mutex")
		}
	}()
	ft.AllocateFree()
}
