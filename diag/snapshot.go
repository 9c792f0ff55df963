package diag

import (
	"bytes"
	"fmt"
	"runtime/pprof"

	"github.com/google/pprof/profile"
)

// Snapshot captures a goroutine profile (runtime/pprof) and summarizes it
// through github.com/google/pprof/profile -- a diagnostic for the test
// harness when it suspects a wedged pager pool (every frame busy, clock
// hand not advancing -- a pager that spins briefly while another pager
// completes should never park there for long). It reports how many
// goroutines are stuck in each distinct stack, which is enough to tell
// "all N pagers parked on the same mutex" apart from "pagers progressing
// normally".
type Snapshot struct {
	TotalGoroutines int
	StackCounts     map[string]int64
}

/// CaptureGoroutines writes a goroutine profile, parses it back with
/// github.com/google/pprof/profile, and returns a Snapshot.
func CaptureGoroutines() (Snapshot, error) {
	var buf bytes.Buffer
	if err := pprof.Lookup("goroutine").WriteTo(&buf, 0); err != nil {
		return Snapshot{}, fmt.Errorf("diag: capture goroutine profile: %w", err)
	}
	prof, err := profile.Parse(&buf)
	if err != nil {
		return Snapshot{}, fmt.Errorf("diag: parse goroutine profile: %w", err)
	}

	snap := Snapshot{StackCounts: make(map[string]int64)}
	for _, sample := range prof.Sample {
		key := stackKey(sample)
		var count int64
		if len(sample.Value) > 0 {
			count = sample.Value[0]
		}
		snap.StackCounts[key] += count
		snap.TotalGoroutines += int(count)
	}
	return snap, nil
}

func stackKey(sample *profile.Sample) string {
	var buf bytes.Buffer
	for _, loc := range sample.Location {
		for _, line := range loc.Line {
			if line.Function != nil {
				fmt.Fprintf(&buf, "%s;", line.Function.Name)
			}
		}
	}
	if buf.Len() == 0 {
		return "<unknown>"
	}
	return buf.String()
}

/// LogSummary writes the snapshot's stack histogram through l at Warn
/// level, the level the harness uses when it believes pagers are stuck.
func (s Snapshot) LogSummary(l *Logger) {
	l.Warnf("goroutine snapshot: %d goroutines across %d distinct stacks", s.TotalGoroutines, len(s.StackCounts))
	for stack, count := range s.StackCounts {
		l.Warnf("  x%d: %s", count, stack)
	}
}
