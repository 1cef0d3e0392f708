//go:build linux

package loop

import (
	"log"

	"golang.org/x/sys/unix"
)

// epollPoller is an epoll-based I/O multiplexer, level-triggered (no
// EPOLLET) so readiness keeps reporting until the caller drains the fd.
type epollPoller struct {
	epfd   int
	events []unix.EpollEvent
}

func newPlatformPoller() (Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &epollPoller{
		epfd:   epfd,
		events: make([]unix.EpollEvent, 1024),
	}, nil
}

func toEpollEvents(mask Event) uint32 {
	var ev uint32
	if mask&EventRead != 0 {
		ev |= unix.EPOLLIN
	}
	if mask&EventWrite != 0 {
		ev |= unix.EPOLLOUT
	}
	// EPOLLERR and EPOLLHUP are always reported by the kernel regardless of
	// the requested mask; EPOLLRDHUP catches peer half-close explicitly.
	ev |= unix.EPOLLERR | unix.EPOLLHUP | unix.EPOLLRDHUP
	return ev
}

func fromEpollEvents(ev uint32) Event {
	var mask Event
	if ev&unix.EPOLLIN != 0 {
		mask |= EventRead
	}
	if ev&unix.EPOLLOUT != 0 {
		mask |= EventWrite
	}
	if ev&(unix.EPOLLERR|unix.EPOLLHUP|unix.EPOLLRDHUP) != 0 {
		mask |= EventError
	}
	return mask
}

func (p *epollPoller) Register(fd int, mask Event) error {
	ev := unix.EpollEvent{Events: toEpollEvents(mask), Fd: int32(fd)}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev)
}

func (p *epollPoller) Modify(fd int, mask Event) error {
	ev := unix.EpollEvent{Events: toEpollEvents(mask), Fd: int32(fd)}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &ev)
}

func (p *epollPoller) Unregister(fd int) error {
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		// The fd may already have been closed by the caller; don't let a
		// stale registration error propagate out of the Reactor.
		log.Printf("loop: epoll_ctl(DEL, %d): %v", fd, err)
	}
	return nil
}

func (p *epollPoller) Wait(timeoutMillis int) ([]readyEvent, error) {
	n, err := unix.EpollWait(p.epfd, p.events, timeoutMillis)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}
	out := make([]readyEvent, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, readyEvent{
			fd:     int(p.events[i].Fd),
			events: fromEpollEvents(p.events[i].Events),
		})
	}
	return out, nil
}

func (p *epollPoller) Close() error {
	return unix.Close(p.epfd)
}
