package loop

import (
	"os"
	"testing"
	"time"
)

func newTestLoop(t *testing.T) *Loop {
	t.Helper()
	l, err := NewLoop()
	if err != nil {
		t.Fatalf("NewLoop: %v", err)
	}
	t.Cleanup(func() { l.Close(false) })
	return l
}

func TestLoop_ImmediateCallback(t *testing.T) {
	l := newTestLoop(t)
	var trace []string

	l.AddCallback(func() {
		trace = append(trace, "a")
		l.Stop()
	})
	l.Start()

	if len(trace) != 1 || trace[0] != "a" {
		t.Fatalf("trace = %v, want [a]", trace)
	}
}

func TestLoop_OrderedTimers(t *testing.T) {
	l := newTestLoop(t)
	var trace []string

	l.CallLater(20*time.Millisecond, func() { trace = append(trace, "A") })
	l.CallLater(20*time.Millisecond, func() { trace = append(trace, "B") })
	l.CallLater(60*time.Millisecond, func() { l.Stop() })
	l.Start()

	if len(trace) != 2 || trace[0] != "A" || trace[1] != "B" {
		t.Fatalf("trace = %v, want [A B]", trace)
	}
}

func TestLoop_TimerCancellation(t *testing.T) {
	l := newTestLoop(t)
	fired := false

	handle := l.CallLater(30*time.Millisecond, func() { fired = true })
	l.CallLater(5*time.Millisecond, func() { l.RemoveTimeout(handle) })
	l.CallLater(60*time.Millisecond, func() { l.Stop() })
	l.Start()

	if fired {
		t.Fatal("cancelled timer fired")
	}
}

func TestLoop_CrossThreadWakeup(t *testing.T) {
	l := newTestLoop(t)
	done := make(chan struct{})

	go func() {
		time.Sleep(30 * time.Millisecond)
		l.AddCallback(func() {
			l.Stop()
			close(done)
		})
	}()

	start := time.Now()
	l.Start()
	<-done
	if time.Since(start) > time.Second {
		t.Fatal("cross-thread wakeup took too long")
	}
}

func TestLoop_ReadinessDispatch(t *testing.T) {
	l := newTestLoop(t)
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	defer w.Close()

	invoked := make(chan Event, 1)
	if err := l.AddHandler(r, func(fd int, events Event) {
		var buf [1]byte
		r.Read(buf[:])
		invoked <- events
		l.RemoveHandler(r)
		l.Stop()
	}, EventRead); err != nil {
		t.Fatalf("AddHandler: %v", err)
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		w.Write([]byte("x"))
	}()

	l.Start()

	select {
	case ev := <-invoked:
		if ev&EventRead == 0 {
			t.Fatalf("events = %v, want READ set", ev)
		}
	default:
		t.Fatal("handler was never invoked")
	}
}

func TestLoop_FairnessSelfEnqueueDoesNotStarveTimer(t *testing.T) {
	l := newTestLoop(t)
	timerFired := false
	var iterations int

	var reenqueue func()
	reenqueue = func() {
		iterations++
		if timerFired {
			l.Stop()
			return
		}
		if iterations > 100000 {
			// safety valve: fail loudly rather than spin forever
			t.Error("timer starved by self-re-enqueueing callback")
			l.Stop()
			return
		}
		l.AddCallback(reenqueue)
	}

	l.AddCallback(reenqueue)
	l.CallLater(5*time.Millisecond, func() { timerFired = true })
	l.Start()

	if !timerFired {
		t.Fatal("timer never fired: self-re-enqueueing callback starved it")
	}
}

func TestLoop_DueTimerCancelsSiblingAtSameDeadline(t *testing.T) {
	l := newTestLoop(t)
	bRan := false
	deadline := l.Time()

	var handleB *Timeout
	// Scheduled first, so it gets the lower sequence number and runs before
	// B at the same deadline (ties break FIFO by insertion order).
	l.CallAt(deadline, func() { l.RemoveTimeout(handleB) })
	handleB = l.CallAt(deadline, func() { bRan = true })
	l.CallLater(20*time.Millisecond, func() { l.Stop() })
	l.Start()

	if bRan {
		t.Fatal("timer cancelled by a same-deadline sibling still fired")
	}
}

func TestLoop_RunSyncTimeout(t *testing.T) {
	l := newTestLoop(t)

	// fn never stops the loop itself, so only the timeout can end RunSync.
	err := l.RunSync(func() {}, 20*time.Millisecond)
	if err != ErrTimeout {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}

func TestLoop_StartPanicsWhenAlreadyRunning(t *testing.T) {
	l := newTestLoop(t)
	done := make(chan struct{})

	l.AddCallback(func() {
		defer close(done)
		defer func() {
			if r := recover(); r == nil {
				t.Error("expected panic calling Start while already running")
			}
		}()
		l.Start()
	})
	l.CallLater(10*time.Millisecond, func() { l.Stop() })
	l.Start()
	<-done
}
