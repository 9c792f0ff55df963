package diag

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/cs452bohanli/phase3vm/stats"
)

// PrintStats renders the statistics block the way VmDestroy prints
// P3_vmStats: one line per counter, numbers formatted with locale-aware
// thousands separators via golang.org/x/text/message -- a kernel shutdown
// banner that stays readable even with large fault counts from a
// long-running chaos scenario.
func (l *Logger) PrintStats(b stats.Block) {
	p := message.NewPrinter(language.English)
	lines := []string{
		p.Sprintf("pages:       %d", b.Pages),
		p.Sprintf("frames:      %d", b.Frames),
		p.Sprintf("blocks:      %d", b.Blocks),
		p.Sprintf("freeFrames:  %d", b.FreeFrames),
		p.Sprintf("freeBlocks:  %d", b.FreeBlocks),
		p.Sprintf("switches:    %d", b.Switches),
		p.Sprintf("faults:      %d", b.Faults),
		p.Sprintf("new:         %d", b.New),
		p.Sprintf("pageIns:     %d", b.PageIns),
		p.Sprintf("pageOuts:    %d", b.PageOuts),
		p.Sprintf("replaced:    %d", b.Replaced),
	}
	l.Infof("P3_vmStats:")
	for _, line := range lines {
		l.Infof("%s", line)
	}
}
