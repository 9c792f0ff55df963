package swapstore

import (
	"testing"

	"github.com/cs452bohanli/phase3vm/stats"
	"github.com/cs452bohanli/phase3vm/vmmutex"
)

func newFixture(sectorSize, sectorsPerTrack, tracks, pageSize int) (*Store, *vmmutex.Mutex) {
	var vmu vmmutex.Mutex
	disk := NewMemDisk(sectorSize, sectorsPerTrack, tracks)
	var st stats.Counters
	s := Init(&vmu, disk, pageSize, &st)
	st.Reset(4, 4, s.NumSlots())
	return s, &vmu
}

func TestNumSlotsDerivedFromGeometry(t *testing.T) {
	s, _ := newFixture(512, 8, 64, 4096) // capacity = 512*8*64 = 262144; /4096 = 64
	if s.NumSlots() != 64 {
		t.Fatalf("NumSlots() = %d, want 64", s.NumSlots())
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	s, vmu := newFixture(512, 8, 8, 4096)
	vmu.Lock()
	defer vmu.Unlock()

	idx, ok := s.AllocateSlot()
	if !ok {
		t.Fatal("AllocateSlot failed on empty store")
	}
	want := make([]byte, 4096)
	for i := range want {
		want[i] = byte(i)
	}
	if code := s.WriteSlot(idx, want); !code.Ok() {
		t.Fatalf("WriteSlot failed: %v", code)
	}
	s.Claim(idx, 1, 2)

	got := make([]byte, 4096)
	if code := s.ReadSlot(idx, got); !code.Ok() {
		t.Fatalf("ReadSlot failed: %v", code)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d: got %d want %d", i, got[i], want[i])
			break
		}
	}

	if foundIdx, ok := s.FindSlot(1, 2); !ok || foundIdx != idx {
		t.Fatalf("FindSlot = %d,%v want %d,true", foundIdx, ok, idx)
	}
}

func TestHasFreeAndExhaustion(t *testing.T) {
	s, vmu := newFixture(512, 8, 1, 4096) // 512*8 = 4096 bytes = exactly 1 slot
	vmu.Lock()
	defer vmu.Unlock()

	if !s.HasFree() {
		t.Fatal("HasFree should be true before any allocation")
	}
	idx, ok := s.AllocateSlot()
	if !ok {
		t.Fatal("AllocateSlot should succeed for the only slot")
	}
	s.Claim(idx, 1, 0)
	if s.HasFree() {
		t.Fatal("HasFree should be false once the only slot is claimed")
	}
	if _, ok := s.AllocateSlot(); ok {
		t.Fatal("AllocateSlot should fail once exhausted")
	}
}

func TestFreeSlotsByPid(t *testing.T) {
	s, vmu := newFixture(512, 8, 2, 4096)
	vmu.Lock()
	defer vmu.Unlock()

	idx1, _ := s.AllocateSlot()
	s.Claim(idx1, 1, 0)
	idx2, _ := s.AllocateSlot()
	s.Claim(idx2, 2, 0)

	s.FreeSlots(1)
	if _, ok := s.FindSlot(1, 0); ok {
		t.Fatal("slot for pid 1 should be freed")
	}
	if _, ok := s.FindSlot(2, 0); !ok {
		t.Fatal("slot for pid 2 should remain")
	}
}
