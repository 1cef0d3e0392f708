//go:build darwin || freebsd || netbsd || openbsd || dragonfly

package loop

import (
	"log"

	"golang.org/x/sys/unix"
)

// kqueuePoller is a kqueue-based I/O multiplexer, level-triggered: kqueue
// reports EVFILT_READ/WRITE again on every Wait as long as the condition
// holds, since registrations omit EV_CLEAR.
type kqueuePoller struct {
	kqfd   int
	events []unix.Kevent_t
	// masks tracks the last mask registered per fd so Modify can compute
	// which filters to add/delete without the caller re-stating both.
	masks map[int]Event
}

func newPlatformPoller() (Poller, error) {
	kqfd, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	unix.CloseOnExec(kqfd)
	return &kqueuePoller{
		kqfd:   kqfd,
		events: make([]unix.Kevent_t, 1024),
		masks:  make(map[int]Event),
	}, nil
}

func (p *kqueuePoller) changelist(fd int, old, mask Event) []unix.Kevent_t {
	var changes []unix.Kevent_t
	addDel := func(filter int16, want bool) {
		flags := uint16(unix.EV_ADD | unix.EV_ENABLE)
		if !want {
			flags = unix.EV_DELETE
		}
		changes = append(changes, unix.Kevent_t{
			Ident:  uint64(fd),
			Filter: filter,
			Flags:  flags,
		})
	}
	wantRead := mask&EventRead != 0
	wantWrite := mask&EventWrite != 0
	hadRead := old&EventRead != 0
	hadWrite := old&EventWrite != 0
	if wantRead != hadRead {
		addDel(unix.EVFILT_READ, wantRead)
	}
	if wantWrite != hadWrite {
		addDel(unix.EVFILT_WRITE, wantWrite)
	}
	return changes
}

func (p *kqueuePoller) Register(fd int, mask Event) error {
	changes := p.changelist(fd, 0, mask)
	if len(changes) == 0 {
		return nil
	}
	if _, err := unix.Kevent(p.kqfd, changes, nil, nil); err != nil {
		return err
	}
	p.masks[fd] = mask
	return nil
}

func (p *kqueuePoller) Modify(fd int, mask Event) error {
	changes := p.changelist(fd, p.masks[fd], mask)
	if len(changes) > 0 {
		if _, err := unix.Kevent(p.kqfd, changes, nil, nil); err != nil {
			return err
		}
	}
	p.masks[fd] = mask
	return nil
}

func (p *kqueuePoller) Unregister(fd int) error {
	changes := p.changelist(fd, p.masks[fd], 0)
	delete(p.masks, fd)
	if len(changes) == 0 {
		return nil
	}
	if _, err := unix.Kevent(p.kqfd, changes, nil, nil); err != nil {
		// fd may already be closed; swallow per the Poller contract.
		log.Printf("loop: kevent(DELETE, %d): %v", fd, err)
	}
	return nil
}

func (p *kqueuePoller) Wait(timeoutMillis int) ([]readyEvent, error) {
	var ts *unix.Timespec
	if timeoutMillis >= 0 {
		ts = &unix.Timespec{
			Sec:  int64(timeoutMillis / 1000),
			Nsec: int64((timeoutMillis % 1000) * 1_000_000),
		}
	}
	n, err := unix.Kevent(p.kqfd, nil, p.events, ts)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}
	byFD := make(map[int]Event, n)
	for i := 0; i < n; i++ {
		ev := p.events[i]
		fd := int(ev.Ident)
		var mask Event
		switch ev.Filter {
		case unix.EVFILT_READ:
			mask = EventRead
		case unix.EVFILT_WRITE:
			mask = EventWrite
		}
		if ev.Flags&unix.EV_EOF != 0 || ev.Flags&unix.EV_ERROR != 0 {
			mask |= EventError
		}
		byFD[fd] |= mask
	}
	out := make([]readyEvent, 0, len(byFD))
	for fd, mask := range byFD {
		out = append(out, readyEvent{fd: fd, events: mask})
	}
	return out, nil
}

func (p *kqueuePoller) Close() error {
	return unix.Close(p.kqfd)
}
