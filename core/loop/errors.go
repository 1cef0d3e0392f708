package loop

import (
	"errors"
	"log"
)

// Misuse errors are programming errors: duplicate start, post-fork
// sharing, illegal add_handler from a non-loop goroutine, an unsupported
// deadline type. They panic rather than return, because silent
// continuation would mask a bug in the caller.
var (
	ErrAlreadyRunning = errors.New("loop: already running")
	ErrForkedProcess  = errors.New("loop: cannot share a Loop across processes (fork detected)")
	ErrClosing        = errors.New("loop: closed or closing")
	ErrNotStopped     = errors.New("loop: Close requires the loop be fully stopped")
)

// ErrTimeout is returned by RunSync when its deadline elapses before fn
// completes.
var ErrTimeout = errors.New("loop: run_sync timed out")

// ErrExecutorRejected is delivered to RunInExecutor's done callback when
// the Executor refused the work.
var ErrExecutorRejected = errors.New("loop: executor rejected work")

// ErrIterationBlocked is reported to the exception handler when an
// iteration's callback/timer/dispatch work runs longer than the
// configured blocking watchdog threshold.
var ErrIterationBlocked = errors.New("loop: iteration exceeded blocking watchdog threshold")

// CallbackExceptionHandler is invoked whenever a callback or handler run
// by the loop panics. The default implementation logs the panic value and
// does not propagate it; the loop continues. Installed via
// Loop.SetExceptionHandler.
type CallbackExceptionHandler func(where string, recovered any)

func defaultExceptionHandler(where string, recovered any) {
	log.Printf("loop: recovered panic in %s: %v", where, recovered)
}
