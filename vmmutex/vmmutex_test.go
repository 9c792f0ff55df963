package vmmutex

import "testing"

func TestAssertHeldPanicsWithoutLock(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic when mutex is not held")
		}
	}()
	var m Mutex
	m.AssertHeld()
}

func TestLockUnlockAssertHeld(t *testing.T) {
	var m Mutex
	m.Lock()
	m.AssertHeld() // should not panic
	m.Unlock()

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic after unlock")
		}
	}()
	m.AssertHeld()
}
