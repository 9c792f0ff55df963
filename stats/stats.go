// Package stats holds the VM subsystem's global statistics block.
// Event counters are monotonic for the lifetime of one VmInit/VmDestroy
// cycle (the free frame/block counts move both ways), and all of them are
// read by the test harness through Snapshot.
package stats

import "sync/atomic"

/// Block is the read-only snapshot of the global counters, laid out to
/// match the kernel-facing P3_vmStats statistics block.
type Block struct {
	Pages      int
	Frames     int
	Blocks     int
	FreeFrames int
	FreeBlocks int
	Switches   int64
	Faults     int64
	New        int64
	PageIns    int64
	PageOuts   int64
	Replaced   int64
}

/// Counters is the live, concurrently-updated statistics block. Pages,
/// Frames, and Blocks are set once at Init; FreeFrames/FreeBlocks and the
/// event counters are updated at the authoritative site of each event
/// under atomic operations so pagers never need the global VM mutex just
/// to bump a counter.
type Counters struct {
	pages  int32
	frames int32
	blocks int32

	freeFrames int64
	freeBlocks int64
	switches   int64
	faults     int64
	new        int64
	pageIns    int64
	pageOuts   int64
	replaced   int64
}

/// Reset zeroes every counter and records the fixed dimensions, as
/// VmInit does to P3_vmStats before forking pagers.
func (c *Counters) Reset(pages, frames, blocks int) {
	atomic.StoreInt32(&c.pages, int32(pages))
	atomic.StoreInt32(&c.frames, int32(frames))
	atomic.StoreInt32(&c.blocks, int32(blocks))
	atomic.StoreInt64(&c.freeFrames, int64(frames))
	atomic.StoreInt64(&c.freeBlocks, int64(blocks))
	atomic.StoreInt64(&c.switches, 0)
	atomic.StoreInt64(&c.faults, 0)
	atomic.StoreInt64(&c.new, 0)
	atomic.StoreInt64(&c.pageIns, 0)
	atomic.StoreInt64(&c.pageOuts, 0)
	atomic.StoreInt64(&c.replaced, 0)
}

func (c *Counters) AddFreeFrames(delta int)  { atomic.AddInt64(&c.freeFrames, int64(delta)) }
func (c *Counters) AddFreeBlocks(delta int)  { atomic.AddInt64(&c.freeBlocks, int64(delta)) }
func (c *Counters) IncSwitches()             { atomic.AddInt64(&c.switches, 1) }
func (c *Counters) IncFaults()               { atomic.AddInt64(&c.faults, 1) }
func (c *Counters) IncNew()                  { atomic.AddInt64(&c.new, 1) }
func (c *Counters) IncPageIns()              { atomic.AddInt64(&c.pageIns, 1) }
func (c *Counters) IncPageOuts()             { atomic.AddInt64(&c.pageOuts, 1) }
func (c *Counters) IncReplaced()             { atomic.AddInt64(&c.replaced, 1) }

/// Snapshot copies the current counters into a Block for reporting.
func (c *Counters) Snapshot() Block {
	return Block{
		Pages:      int(atomic.LoadInt32(&c.pages)),
		Frames:     int(atomic.LoadInt32(&c.frames)),
		Blocks:     int(atomic.LoadInt32(&c.blocks)),
		FreeFrames: int(atomic.LoadInt64(&c.freeFrames)),
		FreeBlocks: int(atomic.LoadInt64(&c.freeBlocks)),
		Switches:   atomic.LoadInt64(&c.switches),
		Faults:     atomic.LoadInt64(&c.faults),
		New:        atomic.LoadInt64(&c.new),
		PageIns:    atomic.LoadInt64(&c.pageIns),
		PageOuts:   atomic.LoadInt64(&c.pageOuts),
		Replaced:   atomic.LoadInt64(&c.replaced),
	}
}
