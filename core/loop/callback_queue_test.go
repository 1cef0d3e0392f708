package loop

import (
	"sync"
	"testing"
)

func TestCallbackQueue_FIFOOrder(t *testing.T) {
	q := newCallbackQueue()
	var order []int
	for i := 0; i < 5; i++ {
		i := i
		q.Push(func() { order = append(order, i) })
	}

	cbs := q.DrainSnapshot(q.Len())
	for _, cb := range cbs {
		cb()
	}
	for i, v := range order {
		if v != i {
			t.Errorf("order[%d] = %d, want %d", i, v, i)
		}
	}
}

func TestCallbackQueue_SnapshotExcludesConcurrentPush(t *testing.T) {
	q := newCallbackQueue()
	q.Push(func() {})
	q.Push(func() {})

	n := q.Len()
	q.Push(func() {}) // pushed after the snapshot size was captured

	drained := q.DrainSnapshot(n)
	if len(drained) != n {
		t.Fatalf("expected exactly %d items drained, got %d", n, len(drained))
	}
	if q.Len() != 1 {
		t.Fatalf("expected 1 item left for the next iteration, got %d", q.Len())
	}
}

func TestCallbackQueue_ConcurrentPush(t *testing.T) {
	q := newCallbackQueue()
	var wg sync.WaitGroup
	const n = 200
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			q.Push(func() {})
		}()
	}
	wg.Wait()
	if q.Len() != n {
		t.Fatalf("expected %d queued callbacks, got %d", n, q.Len())
	}
}
