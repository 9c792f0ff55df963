package vm

import (
	"testing"

	"github.com/cs452bohanli/phase3vm/diag"
	"github.com/cs452bohanli/phase3vm/fault"
	"github.com/cs452bohanli/phase3vm/kernelproc"
	"github.com/cs452bohanli/phase3vm/swapstore"
	"github.com/cs452bohanli/phase3vm/vmerr"
)

func newTestSystem(t *testing.T) (*System, *kernelproc.SimKernel) {
	t.Helper()
	kernel := kernelproc.NewSimKernel()
	sys := NewSystem(kernel, diag.New(nil))
	kernel.SetOnTerminate(func(pid int) { sys.Quit(pid) })
	return sys, kernel
}

func TestVmInitRejectsDoubleInit(t *testing.T) {
	sys, _ := newTestSystem(t)
	disk := swapstore.NewMemDisk(16, 8, 8)

	if code := sys.VmInit(0, 2, 2, 1, disk, 16, nil); !code.Ok() {
		t.Fatalf("first VmInit failed: %v", code)
	}
	defer sys.VmDestroy()

	if code := sys.VmInit(0, 2, 2, 1, disk, 16, nil); code != vmerr.AlreadyInitialized {
		t.Fatalf("second VmInit = %v, want AlreadyInitialized", code)
	}
}

func TestVmInitRejectsInvalidParams(t *testing.T) {
	sys, _ := newTestSystem(t)
	disk := swapstore.NewMemDisk(16, 8, 8)

	if code := sys.VmInit(0, 0, 2, 1, disk, 16, nil); code != vmerr.InvalidParams {
		t.Fatalf("VmInit(pages=0) = %v, want InvalidParams", code)
	}
	if code := sys.VmInit(-1, 2, 2, 1, disk, 16, nil); code != vmerr.InvalidParams {
		t.Fatalf("VmInit(mappings=-1) = %v, want InvalidParams", code)
	}
}

func TestVmInitRejectsBadPagerCount(t *testing.T) {
	sys, _ := newTestSystem(t)
	disk := swapstore.NewMemDisk(16, 8, 8)
	if code := sys.VmInit(0, 2, 2, 0, disk, 16, nil); code != vmerr.InvalidNumPagers {
		t.Fatalf("VmInit(pagers=0) = %v, want InvalidNumPagers", code)
	}
}

func TestVmDestroyIsIdempotent(t *testing.T) {
	sys, _ := newTestSystem(t)
	disk := swapstore.NewMemDisk(16, 8, 8)
	sys.VmInit(0, 2, 2, 1, disk, 16, nil)
	sys.VmDestroy()
	sys.VmDestroy() // must not panic or block
}

func TestForkAllocatesPageTable(t *testing.T) {
	sys, _ := newTestSystem(t)
	disk := swapstore.NewMemDisk(16, 8, 8)
	sys.VmInit(0, 4, 4, 1, disk, 16, nil)
	defer sys.VmDestroy()

	table, code := sys.Fork(1)
	if !code.Ok() {
		t.Fatalf("Fork failed: %v", code)
	}
	if table.NumPages() != 4 {
		t.Fatalf("NumPages() = %d, want 4", table.NumPages())
	}
}

func TestForkBeforeInitFails(t *testing.T) {
	sys, _ := newTestSystem(t)
	if _, code := sys.Fork(1); code != vmerr.NotInitialized {
		t.Fatalf("Fork before VmInit = %v, want NotInitialized", code)
	}
}

func TestReadByteZeroFillsOnFirstTouch(t *testing.T) {
	sys, _ := newTestSystem(t)
	disk := swapstore.NewMemDisk(16, 8, 8)
	sys.VmInit(0, 2, 2, 1, disk, 16, nil)
	defer sys.VmDestroy()

	sys.Fork(1)
	v, code := sys.ReadByte(1, 0)
	if !code.Ok() || v != 0 {
		t.Fatalf("ReadByte first touch = %d,%v want 0,OK", v, code)
	}
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	sys, _ := newTestSystem(t)
	disk := swapstore.NewMemDisk(16, 8, 8)
	sys.VmInit(0, 2, 2, 1, disk, 16, nil)
	defer sys.VmDestroy()

	sys.Fork(1)
	if code := sys.WriteByte(1, 4, 'x'); !code.Ok() {
		t.Fatalf("WriteByte failed: %v", code)
	}
	v, code := sys.ReadByte(1, 4)
	if !code.Ok() || v != 'x' {
		t.Fatalf("ReadByte = %d,%v want 'x',OK", v, code)
	}
}

func TestQuitReleasesFramesForReuse(t *testing.T) {
	sys, _ := newTestSystem(t)
	disk := swapstore.NewMemDisk(16, 8, 8)
	sys.VmInit(0, 1, 1, 1, disk, 16, nil)
	defer sys.VmDestroy()

	sys.Fork(1)
	sys.WriteByte(1, 0, 1) // occupies the only frame

	if code := sys.Quit(1); !code.Ok() {
		t.Fatalf("Quit failed: %v", code)
	}

	sys.Fork(2)
	if code := sys.WriteByte(2, 0, 2); !code.Ok() {
		t.Fatalf("WriteByte for pid 2 after pid 1 quit should succeed: %v", code)
	}
}

func TestSwitchInstallsIncorePages(t *testing.T) {
	sys, _ := newTestSystem(t)
	disk := swapstore.NewMemDisk(16, 8, 8)
	sys.VmInit(0, 2, 4, 1, disk, 16, nil)
	defer sys.VmDestroy()

	sys.Fork(1)
	sys.Fork(2)
	sys.WriteByte(1, 0, 'a')
	sys.WriteByte(2, 0, 'b')

	// WriteByte already installed pid 2 last; switching back to pid 1 must
	// bring its page back into the hardware view.
	if code := sys.Switch(2, 1); !code.Ok() {
		t.Fatalf("Switch failed: %v", code)
	}
	v, code := sys.ReadByte(1, 0)
	if !code.Ok() || v != 'a' {
		t.Fatalf("ReadByte after switch = %d,%v want 'a',OK", v, code)
	}
	b := sys.Stats()
	if b.Switches == 0 {
		t.Fatalf("Switches = %d, want > 0", b.Switches)
	}
}

// TestConcurrentPidsDoNotAliasSamePageNumber guards against the single
// shared hardware view letting two pids alias the same page number: before
// Switch/InstallPageTable were wired into every access, pid 2's write to
// page 0 would silently land in pid 1's frame instead of faulting.
func TestConcurrentPidsDoNotAliasSamePageNumber(t *testing.T) {
	sys, _ := newTestSystem(t)
	disk := swapstore.NewMemDisk(16, 8, 8)
	sys.VmInit(0, 1, 4, 1, disk, 16, nil)
	defer sys.VmDestroy()

	sys.Fork(1)
	sys.Fork(2)

	if code := sys.WriteByte(1, 0, 'a'); !code.Ok() {
		t.Fatalf("pid 1 write failed: %v", code)
	}
	if code := sys.WriteByte(2, 0, 'b'); !code.Ok() {
		t.Fatalf("pid 2 write failed: %v", code)
	}

	if v, code := sys.ReadByte(1, 0); !code.Ok() || v != 'a' {
		t.Fatalf("pid 1 read = %d,%v want 'a',OK -- page 0 aliased across pids", v, code)
	}
	if v, code := sys.ReadByte(2, 0); !code.Ok() || v != 'b' {
		t.Fatalf("pid 2 read = %d,%v want 'b',OK", v, code)
	}
}

func TestOutOfRangeOffsetReturnsInvalidPage(t *testing.T) {
	sys, _ := newTestSystem(t)
	disk := swapstore.NewMemDisk(16, 8, 8)
	sys.VmInit(0, 2, 2, 1, disk, 16, nil)
	defer sys.VmDestroy()

	sys.Fork(1)
	if _, code := sys.ReadByte(1, 2*16); code != vmerr.InvalidPage {
		t.Fatalf("ReadByte past the mapped address space = %v, want InvalidPage", code)
	}
	if code := sys.WriteByte(1, 2*16, 'z'); code != vmerr.InvalidPage {
		t.Fatalf("WriteByte past the mapped address space = %v, want InvalidPage", code)
	}
}

func TestMustKernelModePanicsOutsideKernel(t *testing.T) {
	kernel := kernelproc.NewSimKernel()
	kernel.SetKernelMode(false)
	sys := NewSystem(kernel, diag.New(nil))

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic when VmInit is called outside kernel mode")
		}
	}()
	disk := swapstore.NewMemDisk(16, 8, 8)
	sys.VmInit(0, 2, 2, 1, disk, 16, nil)
}

func TestAccessViolationTerminatesProcess(t *testing.T) {
	sys, kernel := newTestSystem(t)
	disk := swapstore.NewMemDisk(16, 8, 8)
	sys.VmInit(0, 2, 2, 1, disk, 16, kernel)
	defer sys.VmDestroy()

	p := kernel.Register(1, 5)
	sys.Fork(1)

	sys.HandleFault(1, 0, fault.CauseAccessViolation)
	if p.Alive() {
		t.Fatal("process should be terminated after an access violation fault")
	}
}
