package loop

import "syscall"

// closeRawFD closes an integer file descriptor directly, for the
// HandlerTable.CloseOwners case where no higher-level io.Closer wraps it.
func closeRawFD(fd int) {
	_ = syscall.Close(fd)
}
