package loop

import (
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

// pollCapSeconds bounds how long a single Poll call may block: with no
// timers and no pending callbacks the loop still wakes at least this
// often, matching Tornado's _POLL_TIMEOUT.
const pollCapSeconds = 3600.0

// Loop is a single-threaded, level-triggered I/O event loop: a readiness
// Poller, a timer min-heap, a callback FIFO, and a handler table,
// sequenced by Start's Reactor algorithm. Exactly one goroutine — the one
// that calls Start — may run callbacks, handlers, or touch anything below
// except AddCallback (and its signal-safe variant), which are safe from
// any goroutine.
type Loop struct {
	poller    Poller
	waker     *waker
	wakerFD   int
	timers    *timerHeap
	callbacks *callbackQueue
	handlers  *handlerTable

	pendingEvents map[int]Event

	mu      sync.Mutex
	running bool
	stopped bool
	closing bool

	ownerGoroutine atomic.Int64

	pid int

	timeFunc func() float64

	exceptionHandler CallbackExceptionHandler
	defaultExecutor  Executor

	blockingWatchdog time.Duration
	watchdogTimer    *time.Timer
	watchdogFired    atomic.Bool
}

// Option configures a Loop at construction time.
type Option func(*Loop)

// WithClock overrides the loop's time source. The default is wall-clock
// (time.Now()); pass MonotonicTime to use a monotonic clock instead.
func WithClock(fn func() float64) Option {
	return func(l *Loop) { l.timeFunc = fn }
}

// WithBlockingWatchdog arms the optional blocking-timeout watchdog: if a
// single iteration (everything except the Poll wait itself) runs longer
// than d, a warning is logged. d <= 0 disables it.
func WithBlockingWatchdog(d time.Duration) Option {
	return func(l *Loop) { l.blockingWatchdog = d }
}

// WithExceptionHandler overrides the default panic logger.
func WithExceptionHandler(h CallbackExceptionHandler) Option {
	return func(l *Loop) { l.exceptionHandler = h }
}

var processStart = time.Now()

// MonotonicTime returns seconds elapsed since package initialization,
// derived from time.Since (which retains the runtime's monotonic clock
// reading), for use as a Loop's time source via WithClock.
func MonotonicTime() float64 {
	return time.Since(processStart).Seconds()
}

func wallClockTime() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// NewLoop constructs a Loop with its own Poller and Waker. The new Loop
// becomes the current loop for the process-wide registry (see
// current.go) unless one already exists, mirroring Tornado's
// initialize(make_current=None) default.
func NewLoop(opts ...Option) (*Loop, error) {
	p, err := NewPoller()
	if err != nil {
		return nil, err
	}
	w, err := newWaker()
	if err != nil {
		p.Close()
		return nil, err
	}

	l := &Loop{
		poller:        p,
		waker:         w,
		wakerFD:       w.fileno(),
		timers:        newTimerHeap(),
		callbacks:     newCallbackQueue(),
		pendingEvents: make(map[int]Event),
		pid:           os.Getpid(),
		timeFunc:      wallClockTime,
	}
	l.handlers = newHandlerTable(p)
	l.exceptionHandler = defaultExceptionHandler

	for _, opt := range opts {
		opt(l)
	}

	if _, err := l.handlers.Add(w.fileno(), func(fd int, events Event) {
		w.consume()
	}, EventRead); err != nil {
		w.close()
		p.Close()
		return nil, err
	}

	if Current() == nil {
		l.MakeCurrent(false)
	}

	return l, nil
}

// Time returns the loop's clock, in seconds. Deadlines passed to
// AddTimeout must be computed on this same scale.
func (l *Loop) Time() float64 {
	return l.timeFunc()
}

func (l *Loop) assertOnLoopThread(op string) {
	l.mu.Lock()
	running := l.running
	l.mu.Unlock()
	if !running {
		return
	}
	if goroutineID() != l.ownerGoroutine.Load() {
		panic("loop: " + op + " must be called on the loop's own goroutine")
	}
}

// AddHandler registers interest in fd (an int or a Fd() uintptr
// accessor); handler(fd, events) runs on readiness. Must be called on the
// loop goroutine once the loop is running.
func (l *Loop) AddHandler(fdOrObj any, handler HandlerFunc, mask Event) error {
	l.assertOnLoopThread("AddHandler")
	_, err := l.handlers.Add(fdOrObj, handler, mask)
	return err
}

// UpdateHandler replaces the event mask for fd. ERROR is always re-added.
func (l *Loop) UpdateHandler(fdOrObj any, mask Event) error {
	l.assertOnLoopThread("UpdateHandler")
	return l.handlers.Update(fdOrObj, mask)
}

// RemoveHandler stops listening on fd and discards any of its events
// still pending dispatch in the current iteration.
func (l *Loop) RemoveHandler(fdOrObj any) {
	l.assertOnLoopThread("RemoveHandler")
	fd, _ := splitFD(fdOrObj)
	l.handlers.Remove(fd)
	delete(l.pendingEvents, fd)
}

// AddTimeout schedules cb to run once the loop's clock reaches deadline
// (on the same scale as Time). Returns an opaque handle for RemoveTimeout.
func (l *Loop) AddTimeout(deadline float64, cb func()) *Timeout {
	return l.timers.Push(deadline, cb)
}

// CallLater schedules cb to run after delay seconds have elapsed.
func (l *Loop) CallLater(delay time.Duration, cb func()) *Timeout {
	return l.AddTimeout(l.Time()+delay.Seconds(), cb)
}

// CallAt is an alias for AddTimeout using an absolute deadline, provided
// for symmetry with CallLater.
func (l *Loop) CallAt(when float64, cb func()) *Timeout {
	return l.AddTimeout(when, cb)
}

// RemoveTimeout cancels a pending timeout. Idempotent: safe to call more
// than once, or after the timer has already fired.
func (l *Loop) RemoveTimeout(t *Timeout) {
	l.timers.Cancel(t)
}

// AddCallback schedules cb to run on the next iteration. Safe to call
// from any goroutine; if the caller isn't the loop goroutine, it also
// wakes a blocked Poll.
func (l *Loop) AddCallback(cb func()) {
	l.mu.Lock()
	closing := l.closing
	l.mu.Unlock()
	if closing {
		return
	}
	l.callbacks.Push(cb)
	if goroutineID() != l.ownerGoroutine.Load() {
		l.waker.wake()
	}
}

// AddCallbackFromSignal is the signal-safe variant of AddCallback: it
// must not allocate outside the queue push, and the callback runs without
// any propagated caller context, so it shouldn't close over goroutine-local
// assumptions the signal interrupted. In practice, on this runtime, Go
// never invokes user code directly inside a real OS signal handler, so
// this is equivalent to AddCallback; it exists to mark call sites that
// intend to be signal-safe and to preserve the contract from spec.md.
func (l *Loop) AddCallbackFromSignal(cb func()) {
	l.AddCallback(cb)
}

// SpawnCallback is a fire-and-forget variant of AddCallback: its failure
// (if cb panics) is reported the same way as any other callback, but
// callers don't get a handle back, matching Tornado's spawn_callback.
func (l *Loop) SpawnCallback(cb func()) {
	l.AddCallback(cb)
}

// SetExceptionHandler overrides the default panic logger used by the
// error-guarded runner.
func (l *Loop) SetExceptionHandler(h CallbackExceptionHandler) {
	l.exceptionHandler = h
}

// runGuarded executes fn, recovering any panic and routing it to the
// exception handler instead of letting it escape and kill the loop.
func (l *Loop) runGuarded(where string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			if err, ok := r.(error); ok && isEPIPE(err) {
				return
			}
			l.exceptionHandler(where, r)
		}
	}()
	fn()
}

func isEPIPE(err error) bool {
	for e := err; e != nil; {
		if e == syscall.EPIPE {
			return true
		}
		u, ok := e.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		e = u.Unwrap()
	}
	return false
}

// Start runs the Reactor loop until Stop is called. It blocks the calling
// goroutine; only one goroutine may ever be inside Start for a given Loop.
//
// Calling Start a second time after an earlier Stop()/Start() cycle is
// valid and resumes iterating; calling it while already running panics
// (ErrAlreadyRunning), and calling it from a different process than the
// one that constructed the Loop panics (ErrForkedProcess), since a Loop
// cannot survive fork.
func (l *Loop) Start() {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		panic(ErrAlreadyRunning)
	}
	if os.Getpid() != l.pid {
		l.mu.Unlock()
		panic(ErrForkedProcess)
	}
	if l.stopped {
		l.stopped = false
		l.mu.Unlock()
		return
	}
	l.running = true
	l.mu.Unlock()

	l.ownerGoroutine.Store(goroutineID())
	l.MakeCurrent(false)

	restoreSignal := l.maybeInstallSignalWaker()

	defer func() {
		l.mu.Lock()
		l.stopped = false
		l.running = false
		l.mu.Unlock()
		restoreSignal()
	}()

	for {
		l.armWatchdog()

		ncallbacks := l.callbacks.Len()

		now := l.Time()
		due := l.timers.PopDue(now, nil)
		l.timers.CompactIfNeeded()

		for _, cb := range l.callbacks.DrainSnapshot(ncallbacks) {
			l.runGuarded("callback", cb)
		}

		// A due entry's cb can still be cleared by an earlier due entry's
		// callback (e.g. it cancels a sibling timeout scheduled for the
		// same instant) before this loop reaches it, so recheck per-entry
		// instead of trusting membership in due.
		for _, entry := range due {
			if entry.cb == nil {
				continue
			}
			cb := entry.cb
			entry.cb = nil
			l.runGuarded("timeout", cb)
		}
		due = nil

		var timeoutMillis int
		switch {
		case l.callbacks.Len() > 0:
			timeoutMillis = 0
		default:
			if deadline, ok := l.timers.PeekDeadline(); ok {
				remaining := deadline - l.Time()
				if remaining < 0 {
					remaining = 0
				}
				if remaining > pollCapSeconds {
					remaining = pollCapSeconds
				}
				timeoutMillis = int(remaining * 1000)
			} else {
				timeoutMillis = int(pollCapSeconds * 1000)
			}
		}

		l.mu.Lock()
		stillRunning := l.running
		l.mu.Unlock()
		if !stillRunning {
			break
		}

		l.disarmWatchdog()
		events, err := l.poller.Wait(timeoutMillis)
		if err != nil {
			panic(err)
		}

		for _, e := range events {
			l.pendingEvents[e.fd] |= e.events
		}
		for len(l.pendingEvents) > 0 {
			var fd int
			for k := range l.pendingEvents {
				fd = k
				break
			}
			mask := l.pendingEvents[fd]
			delete(l.pendingEvents, fd)

			entry, ok := l.handlers.Lookup(fd)
			if !ok {
				continue
			}
			l.runGuarded("handler", func() { entry.handler(fd, mask) })
		}
	}
}

// Stop sets running=false and wakes a blocked Poll so Start returns after
// completing the current iteration; any callbacks already drained for
// this iteration still run. Calling Stop before Start is sticky: the next
// Start returns immediately and clears the stopped flag.
func (l *Loop) Stop() {
	l.mu.Lock()
	l.running = false
	l.stopped = true
	l.mu.Unlock()
	l.waker.wake()
}

// Close releases the Loop's resources: the Poller backend and the Waker
// pipe, plus (if allFDs is true) every owning-object still registered in
// the handler table. The Loop must be fully stopped (Start must have
// returned) before calling Close; calling Close while running, or calling
// it twice, is undefined, matching Tornado's IOLoop.close contract.
func (l *Loop) Close(allFDs bool) {
	l.mu.Lock()
	l.closing = true
	l.mu.Unlock()

	l.handlers.Remove(l.wakerFD)
	if allFDs {
		l.handlers.CloseOwners()
	}
	l.waker.close()
	l.poller.Close()
}

// RunSync schedules fn as a callback, starts the loop, and returns once
// the loop stops. fn returning does not stop the loop: fn is expected to
// arrange for Stop() to be called, typically via a callback it schedules.
// If timeout is positive and elapses first, the loop is stopped early and
// RunSync returns ErrTimeout.
func (l *Loop) RunSync(fn func(), timeout time.Duration) error {
	timedOut := false
	l.AddCallback(fn)
	var to *Timeout
	if timeout > 0 {
		to = l.CallLater(timeout, func() {
			timedOut = true
			l.Stop()
		})
	}
	l.Start()
	if to != nil {
		l.RemoveTimeout(to)
	}
	if timedOut {
		return ErrTimeout
	}
	return nil
}

// maybeInstallSignalWaker tries to route signal delivery into the Waker
// so a blocked Poll wakes up promptly when a signal arrives, the way
// Tornado installs itself as signal.set_wakeup_fd unless one is already
// present. Go has no public equivalent of set_wakeup_fd, so this is
// approximated with signal.Notify(ch) (which, called with no signals
// listed, relays every incoming signal) forwarding into waker.wake() from
// a dedicated goroutine; a process-wide flag avoids two Loops both
// installing a relay. Returns a function that undoes the installation.
func (l *Loop) maybeInstallSignalWaker() func() {
	if !signalWakerSlot.CompareAndSwap(false, true) {
		return func() {}
	}
	ch := make(chan os.Signal, 16)
	signal.Notify(ch)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ch:
				l.waker.wake()
			case <-done:
				return
			}
		}
	}()
	return func() {
		signal.Stop(ch)
		close(done)
		signalWakerSlot.Store(false)
	}
}

var signalWakerSlot atomic.Bool

func (l *Loop) armWatchdog() {
	if l.blockingWatchdog <= 0 {
		return
	}
	l.watchdogTimer = time.AfterFunc(l.blockingWatchdog, func() {
		l.watchdogFired.Store(true)
	})
}

func (l *Loop) disarmWatchdog() {
	if l.watchdogTimer == nil {
		return
	}
	l.watchdogTimer.Stop()
	if l.watchdogFired.CompareAndSwap(true, false) {
		l.exceptionHandler("blocking-watchdog", ErrIterationBlocked)
	}
}
