package loop

import "io"

// HandlerFunc is invoked when fd becomes ready; events is the observed
// mask (a subset of the registered mask, plus EventError).
type HandlerFunc func(fd int, events Event)

// fdSource is the duck-typed file-like input AddHandler accepts in
// addition to a raw int fd, mirroring Tornado's split_fd: anything that
// can hand back a descriptor and, optionally, be closed.
type fdSource interface {
	Fd() uintptr
}

// handlerEntry is the (fd, owning-object, callback) tuple HandlerTable
// keeps. owner is whatever the caller passed to AddHandler — an int, or a
// file-like object — retained only so Close(true) can close it.
type handlerEntry struct {
	owner   any
	handler HandlerFunc
}

// splitFD extracts an integer fd and the owning value from whatever was
// passed to AddHandler. Raw ints pass through unchanged; anything
// implementing fdSource yields its descriptor while the original value is
// retained as the owner (so it can be closed later).
func splitFD(fdOrObj any) (int, any) {
	switch v := fdOrObj.(type) {
	case int:
		return v, v
	case fdSource:
		return int(v.Fd()), v
	default:
		panic("loop: add_handler requires an int fd or a Fd() uintptr accessor")
	}
}

// handlerTable is the authoritative registry of which fds the loop owns.
// Invariant: for every fd present in the Poller there is exactly one entry
// here, and vice versa.
type handlerTable struct {
	poller  Poller
	entries map[int]*handlerEntry
}

func newHandlerTable(p Poller) *handlerTable {
	return &handlerTable{poller: p, entries: make(map[int]*handlerEntry)}
}

// Add inserts fd into the table and registers it with the Poller.
// Duplicate registrations overwrite the prior entry — callers must Remove
// first if they want the old registration's owner closed.
func (t *handlerTable) Add(fdOrObj any, handler HandlerFunc, mask Event) (int, error) {
	fd, owner := splitFD(fdOrObj)
	_, existed := t.entries[fd]
	t.entries[fd] = &handlerEntry{owner: owner, handler: handler}
	register := t.poller.Register
	if existed {
		register = t.poller.Modify
	}
	if err := register(fd, mask|EventError); err != nil {
		delete(t.entries, fd)
		return fd, err
	}
	return fd, nil
}

// Update replaces the event mask for fd. ERROR is always re-added.
func (t *handlerTable) Update(fdOrObj any, mask Event) error {
	fd, _ := splitFD(fdOrObj)
	return t.poller.Modify(fd, mask|EventError)
}

// Remove deletes fd's entry and unregisters it from the Poller, swallowing
// backend errors since the fd may already be closed externally.
func (t *handlerTable) Remove(fdOrObj any) {
	fd, _ := splitFD(fdOrObj)
	delete(t.entries, fd)
	_ = t.poller.Unregister(fd)
}

// Lookup returns the entry for fd, if any is still registered.
func (t *handlerTable) Lookup(fd int) (*handlerEntry, bool) {
	e, ok := t.entries[fd]
	return e, ok
}

// CloseOwners closes every owning-object currently registered, used by
// Loop.Close(allFDs=true). Raw int fds are closed via the OS; anything
// implementing io.Closer is closed directly.
func (t *handlerTable) CloseOwners() {
	for fd, e := range t.entries {
		switch v := e.owner.(type) {
		case io.Closer:
			_ = v.Close()
		case int:
			closeRawFD(v)
		default:
			closeRawFD(fd)
		}
	}
}
