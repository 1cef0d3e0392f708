package websocket

import (
	"testing"
	"time"

	"github.com/searchktools/ioreactor/core/loop"
)

func TestHub_PingTimerBroadcastsPing(t *testing.T) {
	l, err := loop.NewLoop()
	if err != nil {
		t.Fatalf("NewLoop: %v", err)
	}
	defer l.Close(false)

	hub := NewHub(10)
	hub.StartPingTimer(l, 10*time.Millisecond)
	defer hub.StopPingTimer()

	client := &Client{ID: "c1", Send: make(chan []byte, 10)}
	hub.clients.Store(client.ID, client)

	l.CallLater(60*time.Millisecond, func() { l.Stop() })
	l.Start()

	select {
	case <-client.Send:
	default:
		t.Fatal("expected at least one ping frame to have been delivered")
	}
}
