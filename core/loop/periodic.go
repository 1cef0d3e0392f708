package loop

import "math"

// PeriodicTimer schedules a callback to run every period, catching up by
// skipping missed ticks (rather than bursting) when a single invocation
// runs long — the phase of the original schedule is preserved.
type PeriodicTimer struct {
	loop     *Loop
	period   float64 // seconds
	callback func() error

	running  bool
	nextTime float64
	timeout  *Timeout
}

// NewPeriodicTimer builds a PeriodicTimer that invokes cb every period.
// Start must be called to begin firing. Errors returned by cb are routed
// through the loop's exception handler, the same as any other callback.
func NewPeriodicTimer(l *Loop, period float64, cb func() error) *PeriodicTimer {
	if period <= 0 {
		panic("loop: PeriodicTimer period must be positive")
	}
	return &PeriodicTimer{loop: l, period: period, callback: cb}
}

// Start captures the current time as the first firing time and schedules
// the first tick.
func (p *PeriodicTimer) Start() {
	p.running = true
	p.nextTime = p.loop.Time()
	p.scheduleNext()
}

// Stop clears the running flag and cancels any outstanding timer handle.
func (p *PeriodicTimer) Stop() {
	p.running = false
	if p.timeout != nil {
		p.loop.RemoveTimeout(p.timeout)
		p.timeout = nil
	}
}

// IsRunning reports whether Start has been called without a matching Stop.
func (p *PeriodicTimer) IsRunning() bool {
	return p.running
}

func (p *PeriodicTimer) fire() {
	if !p.running {
		return
	}
	if err := p.callback(); err != nil {
		p.loop.exceptionHandler("periodic", err)
	}
	p.scheduleNext()
}

func (p *PeriodicTimer) scheduleNext() {
	if !p.running {
		return
	}
	now := p.loop.Time()
	if p.nextTime <= now {
		// Fallen behind: jump to the next tick on the original phase grid
		// instead of bursting through every missed one, e.g. a callback
		// that runs 35ms over on a 10ms period advances by ceil(35/10)*10
		// = 40ms, not 10ms.
		advance := math.Ceil((now-p.nextTime)/p.period) * p.period
		if advance <= 0 {
			// now landed exactly on an existing tick boundary; ceil(0) is
			// 0, which would reschedule at the same instant and spin.
			// Advance by one full period instead.
			advance = p.period
		}
		p.nextTime += advance
	}
	p.timeout = p.loop.AddTimeout(p.nextTime, p.fire)
}
