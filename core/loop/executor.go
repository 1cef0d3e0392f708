package loop

// Executor is the sole boundary interface the loop has to a thread pool,
// matching Tornado's IOLoop.run_in_executor / concurrent.futures.Executor
// split: the loop never owns worker goroutines, it only hands work to one
// supplied by the caller (typically a *pools.WorkerPool) and gets notified
// back on the loop goroutine when the work completes.
type Executor interface {
	// Submit runs fn on the executor's own goroutine(s). It returns false
	// if the work could not be accepted (e.g. the executor is closed).
	Submit(fn func()) bool
}

// RunInExecutor runs fn on exec (or the loop's default executor, set via
// SetDefaultExecutor, if exec is nil) and schedules done to run back on
// the loop goroutine, via AddCallback, once fn returns. It does not block
// the loop: fn runs on the executor's own goroutine.
func (l *Loop) RunInExecutor(exec Executor, fn func() error, done func(error)) {
	if exec == nil {
		exec = l.defaultExecutor
	}
	if exec == nil {
		panic("loop: RunInExecutor requires an Executor (none supplied and no default set)")
	}
	accepted := exec.Submit(func() {
		err := fn()
		l.AddCallback(func() { done(err) })
	})
	if !accepted {
		l.AddCallback(func() { done(ErrExecutorRejected) })
	}
}

// SetDefaultExecutor installs the Executor used by RunInExecutor calls
// that don't supply one explicitly.
func (l *Loop) SetDefaultExecutor(exec Executor) {
	l.defaultExecutor = exec
}
