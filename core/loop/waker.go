package loop

import (
	"syscall"
)

// waker is a self-pipe whose read-end is registered with the Poller for
// READ; writing one byte from any thread (or a signal handler) causes a
// blocked poll to return promptly. The byte content is never interpreted.
type waker struct {
	readFD  int
	writeFD int
}

func newWaker() (*waker, error) {
	var fds [2]int
	if err := syscall.Pipe(fds[:]); err != nil {
		return nil, err
	}
	if err := syscall.SetNonblock(fds[0], true); err != nil {
		return nil, err
	}
	if err := syscall.SetNonblock(fds[1], true); err != nil {
		return nil, err
	}
	syscall.CloseOnExec(fds[0])
	syscall.CloseOnExec(fds[1])
	return &waker{readFD: fds[0], writeFD: fds[1]}, nil
}

// fileno returns the read-end fd, the one registered with the Poller.
func (w *waker) fileno() int {
	return w.readFD
}

// writeFileno returns the write-end fd of the pipe.
func (w *waker) writeFileno() int {
	return w.writeFD
}

// wake writes a single byte to the write-end. Safe to call from any thread
// and from a signal handler: a one-byte write to a pipe is atomic on every
// platform this package supports.
func (w *waker) wake() {
	var b [1]byte
	for {
		_, err := syscall.Write(w.writeFD, b[:])
		if err == syscall.EINTR {
			continue
		}
		// EAGAIN means the pipe is already full of wakeup bytes, which is
		// fine: the reader will still see readiness.
		return
	}
}

// consume drains the read-end in a loop until it would block. The byte
// content is never interpreted; this is purely readiness plumbing.
func (w *waker) consume() {
	var buf [128]byte
	for {
		n, err := syscall.Read(w.readFD, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

func (w *waker) close() error {
	err1 := syscall.Close(w.readFD)
	err2 := syscall.Close(w.writeFD)
	if err1 != nil {
		return err1
	}
	return err2
}
