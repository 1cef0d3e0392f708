package http2

import (
	"crypto/tls"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/searchktools/ioreactor/core/loop"
)

// Server provides HTTP/2 support with multiplexing and HPACK compression
type Server struct {
	addr    string
	handler http.Handler
	server  *http.Server
	h2      *http2.Server

	// TLS configuration for ALPN negotiation
	tlsConfig *tls.Config

	// Statistics
	stats struct {
		activeStreams    sync.Map // connection -> stream count
		totalConnections uint64
		totalStreams     uint64
	}

	mu     sync.RWMutex
	closed bool

	statsTimer *loop.PeriodicTimer
}

// Config contains HTTP/2 server configuration
type Config struct {
	Addr                 string
	Handler              http.Handler
	TLSConfig            *tls.Config
	MaxConcurrentStreams uint32
	MaxReadFrameSize     uint32
	IdleTimeout          time.Duration
}

// NewServer creates a new HTTP/2 server
func NewServer(cfg Config) *Server {
	if cfg.MaxConcurrentStreams == 0 {
		cfg.MaxConcurrentStreams = 250
	}
	if cfg.MaxReadFrameSize == 0 {
		cfg.MaxReadFrameSize = 1 << 20 // 1MB
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 120 * time.Second
	}

	s := &Server{
		addr:    cfg.Addr,
		handler: cfg.Handler,
	}

	// Configure HTTP/2 server
	s.h2 = &http2.Server{
		MaxConcurrentStreams: cfg.MaxConcurrentStreams,
		MaxReadFrameSize:     cfg.MaxReadFrameSize,
		IdleTimeout:          cfg.IdleTimeout,
	}

	// Create HTTP server
	s.server = &http.Server{
		Addr:    cfg.Addr,
		Handler: cfg.Handler,
	}

	// Configure TLS with ALPN for HTTP/2
	if cfg.TLSConfig != nil {
		s.tlsConfig = cfg.TLSConfig.Clone()
		s.tlsConfig.NextProtos = []string{"h2", "http/1.1"}
		s.server.TLSConfig = s.tlsConfig
	} else {
		// h2c (HTTP/2 cleartext)
		s.server.Handler = h2c.NewHandler(s.server.Handler, s.h2)
	}

	return s
}

// ListenAndServe starts the HTTP/2 server
func (s *Server) ListenAndServe() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("server is closed")
	}

	log.Printf("ðŸš€ HTTP/2 Server starting on %s", s.addr)
	if s.tlsConfig != nil {
		log.Printf("   Protocol: h2 (TLS with ALPN)")
		return s.server.ListenAndServeTLS("", "")
	}

	log.Printf("   Protocol: h2c (cleartext)")
	return s.server.ListenAndServe()
}

// StartStatsReporter logs the server's active stream/connection counters
// on a fixed interval, driven by a loop.PeriodicTimer on l instead of a
// dedicated time.Ticker goroutine. The HTTP/2 connection and stream
// handling itself stays on net/http's own goroutine-per-connection model
// (golang.org/x/net/http2 owns that dispatch loop internally, and
// replacing it would mean reimplementing HPACK/stream-multiplexing rather
// than driving an existing poll loop) — this only moves the server's
// periodic bookkeeping onto the shared reactor.
func (s *Server) StartStatsReporter(l *loop.Loop, interval time.Duration) {
	if s.statsTimer != nil {
		s.statsTimer.Stop()
	}
	s.statsTimer = loop.NewPeriodicTimer(l, interval.Seconds(), func() error {
		var streams, conns uint64
		s.stats.activeStreams.Range(func(_, v any) bool {
			if n, ok := v.(int); ok {
				streams += uint64(n)
			}
			return true
		})
		conns = s.stats.totalConnections
		log.Printf("http2: active_streams=%d total_connections=%d total_streams=%d",
			streams, conns, s.stats.totalStreams)
		return nil
	})
	s.statsTimer.Start()
}

// Close gracefully shuts down the server
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.statsTimer != nil {
		s.statsTimer.Stop()
	}

	return s.server.Close()
}
