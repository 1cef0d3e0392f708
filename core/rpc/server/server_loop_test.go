package server

import (
	"bytes"
	"context"
	"log"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/searchktools/ioreactor/core/loop"
)

func TestServer_StatsReporterRunsOnLoop(t *testing.T) {
	l, err := loop.NewLoop()
	if err != nil {
		t.Fatalf("NewLoop: %v", err)
	}
	defer l.Close(true)

	s := NewServer()
	var logs bytes.Buffer
	log.SetOutput(&logs)
	defer log.SetOutput(os.Stderr)

	s.StartStatsReporter(l, 10*time.Millisecond)

	fired := false
	l.CallLater(15*time.Millisecond, func() { fired = true })
	l.CallLater(40*time.Millisecond, func() { l.Stop() })
	l.Start()

	if !fired {
		t.Fatal("marker callback never ran")
	}
	if !strings.Contains(logs.String(), "rpc: connections=0") {
		t.Fatalf("stats reporter never logged from the loop; log output: %q", logs.String())
	}
	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}
