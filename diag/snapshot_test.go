package diag

import (
	"bytes"
	"testing"
)

func TestCaptureGoroutinesReturnsAtLeastSelf(t *testing.T) {
	snap, err := CaptureGoroutines()
	if err != nil {
		t.Fatalf("CaptureGoroutines failed: %v", err)
	}
	if snap.TotalGoroutines < 1 {
		t.Fatalf("TotalGoroutines = %d, want at least 1", snap.TotalGoroutines)
	}
	if len(snap.StackCounts) == 0 {
		t.Fatal("StackCounts should not be empty")
	}
}

func TestLogSummaryDoesNotPanic(t *testing.T) {
	snap, err := CaptureGoroutines()
	if err != nil {
		t.Fatalf("CaptureGoroutines failed: %v", err)
	}
	var buf bytes.Buffer
	l := New(&buf)
	snap.LogSummary(l)
	if buf.Len() == 0 {
		t.Fatal("LogSummary should write at least one line")
	}
}
