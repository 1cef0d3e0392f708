package loop

import (
	"bytes"
	"runtime"
	"strconv"
)

// goroutineID returns the calling goroutine's runtime id by parsing the
// "goroutine N [...]" header of a short stack trace. This is the one
// place Go's lack of a first-class thread-local forces a pragmatic
// workaround for the misuse checks spec.md requires (duplicate start,
// add_handler off the loop goroutine): there is no supported API for this,
// so it is derived the same way a handful of production goroutine-local
// shims do. Besides those assertions, AddCallback compares it with the
// loop's owner goroutine to decide whether to wake a blocked poll.
func goroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := buf[:n]
	const prefix = "goroutine "
	if !bytes.HasPrefix(b, []byte(prefix)) {
		return -1
	}
	b = b[len(prefix):]
	end := bytes.IndexByte(b, ' ')
	if end < 0 {
		return -1
	}
	id, err := strconv.ParseInt(string(b[:end]), 10, 64)
	if err != nil {
		return -1
	}
	return id
}
