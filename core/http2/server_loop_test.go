package http2

import (
	"bytes"
	"log"
	"net/http"
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
	defer l.Close(false)

	s := NewServer(Config{Addr: ":0", Handler: http.NotFoundHandler()})
	s.stats.totalConnections = 3
	var logs bytes.Buffer
	log.SetOutput(&logs)
	defer log.SetOutput(os.Stderr)
	s.StartStatsReporter(l, 10*time.Millisecond)

	fired := false
	l.CallLater(15*time.Millisecond, func() { fired = true })
	l.CallLater(40*time.Millisecond, func() { l.Stop() })
	l.Start()

	if !fired {
		t.Fatal("timer scheduled after StartStatsReporter never ran")
	}
	if !strings.Contains(logs.String(), "total_connections=3") {
		t.Fatalf("stats reporter never logged from the loop; log output: %q", logs.String())
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
