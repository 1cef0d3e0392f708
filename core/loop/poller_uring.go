//go:build linux

package loop

// io_uring backend (Linux 5.1+) is a placeholder. The epoll backend is used
// in its place until this is implemented; NewPoller never selects it.

// newURingPoller would construct an io_uring-based Poller.
// Currently unimplemented, so NewPoller falls back to epoll.
func newURingPoller() (Poller, error) {
	return nil, nil
}
