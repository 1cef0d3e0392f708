package loop

import "sync"

// current holds the process-wide "current loop" registry. Tornado keys
// this per OS thread; Go goroutines aren't pinned to OS threads by
// default, so this package exposes the same contract (Current/MakeCurrent)
// against an explicit, mutex-guarded slot instead of real thread-local
// storage. Callers that need one loop per OS thread should pin their own
// goroutine with runtime.LockOSThread before calling MakeCurrent.
var currentReg struct {
	mu   sync.Mutex
	loop *Loop
}

// Current returns the registered current Loop, or nil if none has called
// MakeCurrent (or NewLoop with its default make-current behavior).
func Current() *Loop {
	currentReg.mu.Lock()
	defer currentReg.mu.Unlock()
	return currentReg.loop
}

// MakeCurrent registers l as the current loop. If force is true and a
// loop is already current, MakeCurrent panics (mirroring
// IOLoop.make_current(force=True) semantics) rather than silently
// overwriting it.
func (l *Loop) MakeCurrent(force bool) {
	currentReg.mu.Lock()
	defer currentReg.mu.Unlock()
	if force && currentReg.loop != nil && currentReg.loop != l {
		panic("loop: a current Loop already exists")
	}
	currentReg.loop = l
}

// ClearCurrent clears the current-loop registry. Intended primarily for
// use by test frameworks in between tests.
func ClearCurrent() {
	currentReg.mu.Lock()
	defer currentReg.mu.Unlock()
	currentReg.loop = nil
}
