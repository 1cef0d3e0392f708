/*
Package ioreactor is a high-performance HTTP/WebSocket/SSE/RPC server built
on a single-threaded, level-triggered I/O event loop.

The reactor lives in core/loop: a readiness Poller (epoll on Linux, kqueue
on BSD/macOS, a select fallback elsewhere), a self-pipe Waker for
cross-goroutine and signal wakeups, a timer min-heap with lazy
cancellation, a FIFO callback queue, and a handler table mapping each
registered file descriptor to exactly one callback. The HTTP engine
registers its listening and connection descriptors with that loop. The
WebSocket hub, the SSE broker, the HTTP/2 server and the RPC server keep
their own connection goroutines and can schedule their periodic work
(ping, keepalive, stats reporting) on it.

Features

  - I/O multiplexing: epoll (Linux), kqueue (BSD/macOS), select fallback
  - Single-threaded reactor: core/loop.Loop sequences callbacks, timers,
    and readiness dispatch fairly, so no one source starves another
  - Zero-allocation HTTP path: minimized allocations per request
  - Complete protocol support: HTTP/1.1, HTTP/2, WebSocket, SSE
  - Advanced routing: radix tree router with compiled routes
  - Smart pooling: worker pools, buffer pools, connection pools with GC tuning
  - Observability: built-in performance monitoring
  - Middleware pipeline: flexible middleware system

Quick Start

Basic usage example:

package main

import (
    "github.com/searchktools/ioreactor/app"
    "github.com/searchktools/ioreactor/config"
    "github.com/searchktools/ioreactor/core/http"
)

func main() {
    cfg := config.New()
    application := app.New(cfg)

    engine := application.Engine()
    engine.GET("/hello", func(ctx http.Context) {
        ctx.String(200, "Hello, World!")
    })

    engine.GET("/json", func(ctx http.Context) {
        ctx.JSON(200, map[string]string{
            "message": "ioreactor",
            "status":  "running",
        })
    })

    application.Run()
}

Modules

The module is organized into several packages:

  - app: application lifecycle management
  - config: configuration loading and management
  - core: HTTP engine wired against the reactor
  - core/loop: the reactor itself (Poller, Waker, TimerHeap, CallbackQueue,
    HandlerTable, Loop, PeriodicTimer)
  - core/http: HTTP request/response handling
  - core/router: high-performance routing
  - core/middleware: middleware pipeline
  - core/pools: object pooling (workers, buffers, connections)
  - core/poller: the original epoll/kqueue bindings core/loop's own
    backends were grounded on; superseded as the engine's runtime poller
  - core/websocket: WebSocket support, with an optional loop.PeriodicTimer
    ping sweep
  - core/sse: Server-Sent Events, with an optional loop.PeriodicTimer
    keepalive
  - core/http2: HTTP/2 support
  - core/rpc: RPC framework, with an optional loop.PeriodicTimer stats
    reporter on its server
  - core/observability: performance monitoring, including reactor
    exceptions forwarded from core/loop

For more information, see https://github.com/searchktools/ioreactor
*/
package ioreactor
