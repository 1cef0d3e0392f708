package loop

import "container/heap"

// timerEntry is a pending timeout: (deadline, sequence) ordered with
// sequence breaking ties so timers scheduled for the same instant run in
// FIFO order. A cancelled entry has cb cleared but stays in the heap until
// popped or compacted away.
type timerEntry struct {
	deadline float64
	seq      uint64
	cb       func()
}

// Timeout is the opaque handle returned by TimerHeap.Push, sufficient to
// cancel the timer via TimerHeap.Cancel.
type Timeout struct {
	entry *timerEntry
}

// timerHeapData implements heap.Interface over []*timerEntry.
type timerHeapData []*timerEntry

func (h timerHeapData) Len() int { return len(h) }
func (h timerHeapData) Less(i, j int) bool {
	if h[i].deadline != h[j].deadline {
		return h[i].deadline < h[j].deadline
	}
	return h[i].seq < h[j].seq
}
func (h timerHeapData) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *timerHeapData) Push(x any) {
	*h = append(*h, x.(*timerEntry))
}
func (h *timerHeapData) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// compactThreshold, together with the more-than-half-the-heap check in
// CompactIfNeeded, gates compaction: the heap is only swept when there are
// enough dead entries to be worth the O(n) pass, and they make up a
// meaningful share of the heap.
const compactThreshold = 512

// timerHeap is a min-heap of pending timeouts ordered by (deadline,
// sequence). Cancellation is O(1) and lazy: Cancel clears the callback but
// leaves the entry in place, since removing an arbitrary element from a
// binary heap is O(n).
type timerHeap struct {
	data          timerHeapData
	seq           uint64
	cancellations int
}

func newTimerHeap() *timerHeap {
	return &timerHeap{}
}

// Push assigns the next sequence number, pushes the entry, and returns an
// opaque handle aliasing it.
func (h *timerHeap) Push(deadline float64, cb func()) *Timeout {
	e := &timerEntry{deadline: deadline, seq: h.seq, cb: cb}
	h.seq++
	heap.Push(&h.data, e)
	return &Timeout{entry: e}
}

// Cancel clears the entry's callback and bumps the cancellation counter.
// Safe to call after the entry has already run, or more than once.
func (h *timerHeap) Cancel(t *Timeout) {
	if t == nil || t.entry == nil || t.entry.cb == nil {
		return
	}
	t.entry.cb = nil
	h.cancellations++
}

// Len reports the number of entries still in the heap, live and dead.
func (h *timerHeap) Len() int { return len(h.data) }

// PopDue pops entries whose deadline has passed (or whose callback was
// already cleared) and returns the live ones in due order, appended to
// dst, as their *timerEntry handles rather than bare callback values: a
// sibling due entry popped in the same call can still be cancelled (its
// cb set to nil) by an earlier entry's callback before the batch runs, and
// the caller must recheck entry.cb at run time to honor that. Dead entries
// encountered at the top are discarded and decrement the cancellation
// counter; popping stops as soon as the top entry's deadline is still in
// the future.
func (h *timerHeap) PopDue(now float64, dst []*timerEntry) []*timerEntry {
	for len(h.data) > 0 {
		top := h.data[0]
		switch {
		case top.cb == nil:
			heap.Pop(&h.data)
			h.cancellations--
		case top.deadline <= now:
			heap.Pop(&h.data)
			dst = append(dst, top)
		default:
			return dst
		}
	}
	return dst
}

// PeekDeadline returns the top entry's deadline and whether the heap is
// non-empty. Used to compute the Reactor's poll timeout.
func (h *timerHeap) PeekDeadline() (float64, bool) {
	if len(h.data) == 0 {
		return 0, false
	}
	return h.data[0].deadline, true
}

// CompactIfNeeded filters out cancelled entries and re-heapifies once
// cancellations exceed both compactThreshold and half the heap's size,
// bounding memory to O(live entries) regardless of cancellation churn.
func (h *timerHeap) CompactIfNeeded() {
	if h.cancellations > compactThreshold && h.cancellations > len(h.data)/2 {
		live := h.data[:0]
		for _, e := range h.data {
			if e.cb != nil {
				live = append(live, e)
			}
		}
		h.data = live
		h.cancellations = 0
		heap.Init(&h.data)
	}
}
