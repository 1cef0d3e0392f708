package loop

import "testing"

func TestTimerHeap_OrderByDeadline(t *testing.T) {
	h := newTimerHeap()
	var order []string

	h.Push(1.0, func() { order = append(order, "b") })
	h.Push(0.5, func() { order = append(order, "a") })
	h.Push(1.5, func() { order = append(order, "c") })

	due := h.PopDue(10.0, nil)
	for _, entry := range due {
		entry.cb()
	}

	want := []string{"a", "b", "c"}
	if len(order) != len(want) {
		t.Fatalf("got %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want[i])
		}
	}
}

func TestTimerHeap_SameDeadlineFIFO(t *testing.T) {
	h := newTimerHeap()
	var order []int

	h.Push(1.0, func() { order = append(order, 1) })
	h.Push(1.0, func() { order = append(order, 2) })
	h.Push(1.0, func() { order = append(order, 3) })

	due := h.PopDue(1.0, nil)
	for _, entry := range due {
		entry.cb()
	}

	want := []int{1, 2, 3}
	for i, v := range want {
		if order[i] != v {
			t.Errorf("order[%d] = %d, want %d", i, order[i], v)
		}
	}
}

func TestTimerHeap_CancelNeverRuns(t *testing.T) {
	h := newTimerHeap()
	ran := false

	handle := h.Push(1.0, func() { ran = true })
	h.Cancel(handle)

	due := h.PopDue(10.0, nil)
	for _, entry := range due {
		entry.cb()
	}

	if ran {
		t.Fatal("cancelled timer ran")
	}
	// Cancelling an already-fired (or already-cancelled) handle is a no-op.
	h.Cancel(handle)
}

func TestTimerHeap_CancelInSameBatchNeverRuns(t *testing.T) {
	h := newTimerHeap()
	var ranB bool

	handleB := h.Push(1.0, func() { ranB = true })
	// A's callback cancels B; both are due in the same PopDue call, so the
	// caller must recheck entry.cb before running it instead of trusting
	// membership in the returned batch.
	h.Push(1.0, func() { h.Cancel(handleB) })

	due := h.PopDue(10.0, nil)
	if len(due) != 2 {
		t.Fatalf("expected both entries due, got %d", len(due))
	}
	for _, entry := range due {
		if entry.cb == nil {
			continue
		}
		cb := entry.cb
		entry.cb = nil
		cb()
	}

	if ranB {
		t.Fatal("timer cancelled by a same-batch sibling still ran")
	}
}

func TestTimerHeap_PopDueStopsAtFuture(t *testing.T) {
	h := newTimerHeap()
	h.Push(1.0, func() {})
	h.Push(5.0, func() {})

	due := h.PopDue(2.0, nil)
	if len(due) != 1 {
		t.Fatalf("expected 1 due entry at t=2.0, got %d", len(due))
	}
	if h.Len() != 1 {
		t.Fatalf("expected 1 entry remaining in heap, got %d", h.Len())
	}
}

func TestTimerHeap_CompactionBoundsMemory(t *testing.T) {
	h := newTimerHeap()
	handles := make([]*Timeout, 0, 2000)
	for i := 0; i < 2000; i++ {
		handles = append(handles, h.Push(float64(i)+1000, func() {}))
	}
	for _, hd := range handles[:1500] {
		h.Cancel(hd)
	}
	h.CompactIfNeeded()
	if h.Len() != 500 {
		t.Fatalf("expected compaction to shrink heap to 500 live entries, got %d", h.Len())
	}
	if h.cancellations != 0 {
		t.Fatalf("expected cancellation counter reset, got %d", h.cancellations)
	}
}

func TestTimerHeap_NoCompactionBelowThreshold(t *testing.T) {
	h := newTimerHeap()
	handles := make([]*Timeout, 0, 100)
	for i := 0; i < 100; i++ {
		handles = append(handles, h.Push(float64(i)+1000, func() {}))
	}
	for _, hd := range handles[:60] {
		h.Cancel(hd)
	}
	h.CompactIfNeeded()
	if h.Len() != 100 {
		t.Fatalf("expected no compaction below the 512 threshold, got len=%d", h.Len())
	}
}
