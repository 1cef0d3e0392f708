package sse

import (
	"testing"
	"time"

	"github.com/searchktools/ioreactor/core/loop"
)

func TestBroker_KeepaliveDrivenByLoop(t *testing.T) {
	l, err := loop.NewLoop()
	if err != nil {
		t.Fatalf("NewLoop: %v", err)
	}
	defer l.Close(false)

	broker := NewBroker(10, 10*time.Millisecond, l)
	defer broker.Close()

	client := NewClient("c1", 10)
	if err := broker.Register(client); err != nil {
		t.Fatalf("Register: %v", err)
	}

	l.CallLater(60*time.Millisecond, func() { l.Stop() })
	l.Start()

	select {
	case ev := <-client.Channel:
		if ev.Event != "keepalive" {
			t.Fatalf("event = %q, want keepalive", ev.Event)
		}
	default:
		t.Fatal("expected at least one keepalive event to have been broadcast")
	}
}
