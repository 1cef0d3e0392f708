package loop

import "testing"

func TestWaker_ConsumeDrainsPendingWakes(t *testing.T) {
	w, err := newWaker()
	if err != nil {
		t.Fatalf("newWaker: %v", err)
	}
	defer w.close()

	for i := 0; i < 5; i++ {
		w.wake()
	}
	// consume must not block regardless of how many wakes are pending.
	w.consume()
}

func TestWaker_FilenoDiffersFromWriteFileno(t *testing.T) {
	w, err := newWaker()
	if err != nil {
		t.Fatalf("newWaker: %v", err)
	}
	defer w.close()

	if w.fileno() == w.writeFileno() {
		t.Fatal("read and write ends of the waker pipe must be distinct fds")
	}
}
