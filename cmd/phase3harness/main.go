// Command phase3harness drives the VM subsystem through a battery of
// fault-pattern scenarios against a simulated kernel, the way a course's
// test programs (test1..testN) once drove the USLOSS assignment through
// grading scenarios.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/cs452bohanli/phase3vm/config"
	"github.com/cs452bohanli/phase3vm/diag"
	"github.com/cs452bohanli/phase3vm/kernelproc"
	"github.com/cs452bohanli/phase3vm/swapstore"
	"github.com/cs452bohanli/phase3vm/vm"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML boot-config file (defaults baked in if omitted)")
	debug := flag.Bool("debug", false, "enable debug-level logging")
	scenario := flag.String("scenario", "s1", "scenario to run: s1..s6")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		cfg = loaded
	}

	log := diag.New(os.Stdout)
	log.SetDebug(*debug || cfg.Debug)

	kernel := kernelproc.NewSimKernel()
	system := vm.NewSystem(kernel, log)
	kernel.SetOnTerminate(func(pid int) { system.Quit(pid) })

	disk := swapstore.NewMemDisk(cfg.Disk.SectorSize, cfg.Disk.SectorsPerTrack, cfg.Disk.Tracks)

	c := cron.New()
	id, err := c.AddFunc("@every 2s", func() {
		b := system.Stats()
		log.Infof("periodic: faults=%d pageIns=%d pageOuts=%d replaced=%d freeFrames=%d", b.Faults, b.PageIns, b.PageOuts, b.Replaced, b.FreeFrames)
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	c.Start()
	defer func() { c.Remove(id); c.Stop() }()

	h := &harness{system: system, kernel: kernel, log: log, cfg: cfg}

	switch *scenario {
	case "s1":
		h.zeroFill()
	case "s2":
		h.noFaultCoexistence()
	case "s3":
		h.purePaging()
	case "s4":
		h.chaos()
	case "s5":
		h.churnUnderForking()
	case "s6":
		h.outOfSwap(disk)
	default:
		fmt.Fprintf(os.Stderr, "unknown scenario %q\n", *scenario)
		os.Exit(1)
	}
}

type harness struct {
	system *vm.System
	kernel *kernelproc.SimKernel
	log    *diag.Logger
	cfg    config.VM

	nextPid int
	pidMu   sync.Mutex
}

func (h *harness) allocPid() int {
	h.pidMu.Lock()
	defer h.pidMu.Unlock()
	h.nextPid++
	return h.nextPid
}

// forkChild allocates a pid and a page table for it. mappings is the
// caller's expectation of the table's page count; per-process table size
// is actually fixed once, by VmInit's pages argument, so a mismatch here
// means the scenario's own bookkeeping is wrong rather than anything
// forkChild can correct.
func (h *harness) forkChild(mappings int) int {
	pid := h.allocPid()
	h.kernel.Register(pid, 10)
	if mappings != h.system.NumPages() {
		h.log.Warnf("forkChild pid=%d: mappings=%d does not match VmInit pages=%d", pid, mappings, h.system.NumPages())
	}
	if _, code := h.system.Fork(pid); !code.Ok() {
		h.log.Errorf("fork pid=%d failed: %v", pid, code)
	}
	return pid
}

func (h *harness) quitChild(pid int) {
	h.system.Quit(pid)
	h.kernel.Terminate(pid)
}

// zeroFill is S1: two children, each touches two pages read-only and
// expects every byte to read zero.
func (h *harness) zeroFill() {
	disk := swapstore.NewMemDisk(512, 8, 64)
	h.system.VmInit(0, 2, 4, 2, disk, 4096, h.kernel)
	defer h.system.VmDestroy()

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pid := h.forkChild(2)
			defer h.quitChild(pid)
			for page := 0; page < 2; page++ {
				for off := 0; off < 4096; off += 512 {
					v, code := h.system.ReadByte(pid, page*4096+off)
					if !code.Ok() || v != 0 {
						h.log.Errorf("zero-fill violated: pid=%d page=%d off=%d v=%d code=%v", pid, page, off, v, code)
					}
				}
			}
		}()
	}
	wg.Wait()
	h.log.Infof("s1 done: %+v", h.system.Stats())
}

// noFaultCoexistence is S2: two children share frames=4 with pages=1 each,
// writing their own letter and reading it back across 10 iterations.
func (h *harness) noFaultCoexistence() {
	disk := swapstore.NewMemDisk(512, 8, 64)
	h.system.VmInit(0, 1, 4, 2, disk, 4096, h.kernel)
	defer h.system.VmDestroy()

	var wg sync.WaitGroup
	letters := []byte{'A', 'B'}
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(letter byte) {
			defer wg.Done()
			pid := h.forkChild(1)
			defer h.quitChild(pid)
			for iter := 0; iter < 10; iter++ {
				if code := h.system.WriteByte(pid, 0, letter); !code.Ok() {
					h.log.Errorf("pid=%d write failed: %v", pid, code)
				}
				time.Sleep(time.Second)
				v, code := h.system.ReadByte(pid, 0)
				if !code.Ok() || v != letter {
					h.log.Errorf("pid=%d expected %c got %d (%v)", pid, letter, v, code)
				}
			}
		}(letters[i])
	}
	wg.Wait()
	h.log.Infof("s2 done: %+v", h.system.Stats())
}

// purePaging is S3: two children share pages=4, frames=4 and write-then-read
// across 100 iterations, forcing steady page-out/page-in traffic.
func (h *harness) purePaging() {
	disk := swapstore.NewMemDisk(512, 8, 512)
	h.system.VmInit(0, 4, 4, 2, disk, 4096, h.kernel)
	defer h.system.VmDestroy()

	var wg sync.WaitGroup
	letters := []byte{'A', 'B'}
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(letter byte) {
			defer wg.Done()
			pid := h.forkChild(4)
			defer h.quitChild(pid)
			for iter := 0; iter < 100; iter++ {
				page := iter % 4
				if code := h.system.WriteByte(pid, page*4096, letter); !code.Ok() {
					h.log.Errorf("pid=%d write failed: %v", pid, code)
					return
				}
				v, code := h.system.ReadByte(pid, page*4096)
				if !code.Ok() || v != letter {
					h.log.Errorf("pid=%d expected %c got %d (%v)", pid, letter, v, code)
				}
			}
		}(letters[i])
	}
	wg.Wait()
	b := h.system.Stats()
	if b.PageOuts == 0 || b.PageIns == 0 {
		h.log.Warnf("s3: expected pageOuts>0 and pageIns>0, got %+v", b)
	}
	h.log.Infof("s3 done: %+v", b)
}

// chaos is S4: four concurrent children, random op mix, verifying every
// read matches the last write to that (child, page) pair.
func (h *harness) chaos() {
	disk := swapstore.NewMemDisk(512, 8, 512)
	h.system.VmInit(0, 4, 4, 3, disk, 4096, h.kernel)
	defer h.system.VmDestroy()

	var wg sync.WaitGroup
	var mu sync.Mutex
	last := make(map[[2]int]byte)

	for k := 0; k < 4; k++ {
		wg.Add(1)
		go func(k int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(int64(k) + 1))
			pid := h.forkChild(4)
			defer h.quitChild(pid)
			for iter := 0; iter < 100; iter++ {
				page := rng.Intn(4)
				switch rng.Intn(3) {
				case 0:
					letter := byte('a' + k)
					if code := h.system.WriteByte(pid, page*4096, letter); code.Ok() {
						mu.Lock()
						last[[2]int{pid, page}] = letter
						mu.Unlock()
					}
				case 1:
					v, code := h.system.ReadByte(pid, page*4096)
					if code.Ok() {
						mu.Lock()
						want, ok := last[[2]int{pid, page}]
						mu.Unlock()
						if !ok {
							want = 0
						}
						if v != want {
							h.log.Errorf("chaos mismatch: pid=%d page=%d got=%d want=%d", pid, page, v, want)
						}
					}
				case 2:
					time.Sleep(time.Millisecond)
				}
			}
		}(k)
	}
	wg.Wait()
	h.log.Infof("s4 done: %+v", h.system.Stats())
}

// churnUnderForking is S5: 100 sequential children, 4 concurrent at a time.
// After each child quits it checks only that freeFrames does not exceed
// frames; the busy-frame count is not checked.
func (h *harness) churnUnderForking() {
	disk := swapstore.NewMemDisk(512, 8, 512)
	h.system.VmInit(0, 4, 4, 2, disk, 4096, h.kernel)
	defer h.system.VmDestroy()

	sem := make(chan struct{}, 4)
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		sem <- struct{}{}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			pid := h.forkChild(4)
			rng := rand.New(rand.NewSource(int64(i) + 1))
			for iter := 0; iter < 20; iter++ {
				page := rng.Intn(4)
				h.system.WriteByte(pid, page*4096, byte(i))
				h.system.ReadByte(pid, page*4096)
			}
			h.quitChild(pid)

			b := h.system.Stats()
			if b.FreeFrames > b.Frames {
				h.log.Errorf("s5: freeFrames %d exceeds frames %d", b.FreeFrames, b.Frames)
			}
		}(i)
	}
	wg.Wait()
	h.log.Infof("s5 done: %+v", h.system.Stats())
}

// outOfSwap is S6: pages (16) far exceed both frames (4) and swap slots
// (2), so a hog that dirties one page per frame forces eviction from its
// very first few faults, and once every slot holds a displaced page the
// next eviction has nowhere to write back to. That fault is serviced with
// OUT_OF_SWAP and the hog is terminated while the victim, whose own pages
// may have been evicted and paged back in along the way, continues.
func (h *harness) outOfSwap(disk *swapstore.MemDisk) {
	const pages, frames, swapSlots = 16, 4, 2
	small := swapstore.NewMemDisk(4096, 1, swapSlots) // 1*swapSlots*4096 / 4096 == swapSlots slots
	h.system.VmInit(0, pages, frames, 1, small, 4096, h.kernel)
	defer h.system.VmDestroy()

	victim := h.forkChild(pages)
	defer h.quitChild(victim)
	if code := h.system.WriteByte(victim, 0, 'v'); !code.Ok() {
		h.log.Errorf("s6: victim priming write failed: %v", code)
	}

	hog := h.forkChild(pages)

	done := make(chan struct{})
	go func() {
		for page := 0; page < pages; page++ {
			if code := h.system.WriteByte(hog, page*4096, byte(page)); !code.Ok() {
				h.log.Infof("hog pid=%d terminated at page=%d with %v", hog, page, code)
				break
			}
		}
		close(done)
	}()
	<-done

	if h.kernel.InKernelMode() {
		v, code := h.system.ReadByte(victim, 0)
		if !code.Ok() {
			h.log.Errorf("s6: victim process unexpectedly affected: %v", code)
		} else {
			h.log.Infof("s6: victim read %d after hog's eviction, process continues", v)
		}
	}
	h.log.Infof("s6 done: %+v", h.system.Stats())
}
