package loop

import (
	"testing"
	"time"
)

func TestPeriodicTimer_FiresRepeatedly(t *testing.T) {
	l := newTestLoop(t)
	var fires int

	p := NewPeriodicTimer(l, 0.01, func() error {
		fires++
		if fires >= 3 {
			l.Stop()
		}
		return nil
	})
	p.Start()
	l.CallLater(500*time.Millisecond, func() { l.Stop() })
	l.Start()

	if fires < 3 {
		t.Fatalf("fires = %d, want at least 3", fires)
	}
}

func TestPeriodicTimer_StopPreventsFurtherTicks(t *testing.T) {
	l := newTestLoop(t)
	var fires, firesAtStop int

	p := NewPeriodicTimer(l, 0.005, func() error {
		fires++
		return nil
	})
	p.Start()
	l.CallLater(20*time.Millisecond, func() {
		p.Stop()
		firesAtStop = fires
		if p.IsRunning() {
			t.Error("IsRunning true after Stop")
		}
	})
	l.CallLater(60*time.Millisecond, func() { l.Stop() })
	l.Start()

	if firesAtStop == 0 {
		t.Fatal("periodic timer never fired before Stop")
	}
	if fires != firesAtStop {
		t.Fatalf("fires = %d at loop exit, want %d (no ticks after Stop)", fires, firesAtStop)
	}
}

func TestPeriodicTimer_CatchesUpWithoutBursting(t *testing.T) {
	l := newTestLoop(t)
	var fires int
	var firstTick float64

	p := &PeriodicTimer{loop: l, period: 0.01}
	p.callback = func() error {
		fires++
		if fires == 1 {
			firstTick = p.nextTime
			// Simulate an overrun: consume several ticks' worth of time
			// inside the callback itself.
			time.Sleep(35 * time.Millisecond)
		}
		if fires >= 2 {
			// Skipping the missed ticks puts the second tick at least 40ms
			// after the first; bursting would put it only 10ms after.
			if advance := p.nextTime - firstTick; advance < 0.035 {
				t.Errorf("second tick scheduled %.3fs after the first, want >= 0.040s", advance)
			}
			l.Stop()
		}
		return nil
	}
	p.Start()
	l.CallLater(time.Second, func() { l.Stop() })
	l.Start()

	if fires != 2 {
		t.Fatalf("fires = %d, want exactly 2 (catch-up should skip missed ticks, not burst)", fires)
	}
}

func TestPeriodicTimer_PanicsOnNonPositivePeriod(t *testing.T) {
	l := newTestLoop(t)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic constructing PeriodicTimer with period <= 0")
		}
	}()
	NewPeriodicTimer(l, 0, func() error { return nil })
}
