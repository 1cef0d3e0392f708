package http

import (
	"net"
	"path/filepath"
)

// Context defines the HTTP request context interface. core/engine.go's
// per-connection dispatch only ever constructs the fd-based FDContext
// implementation (see context_fd.go); the interface exists so handlers
// registered through Engine.GET/POST/etc. stay decoupled from that.
type Context interface {
	// Request information
	Method() string
	Path() string
	Param(key string) string
	Query(key string) string
	Header(key string) string
	Body() []byte
	SetParam(key, value string)

	// Response methods
	String(code int, s string)
	JSON(code int, v any)
	Bytes(code int, data []byte)
	Data(code int, contentType string, data []byte)
	Error(code int, message string)
	Success(data any)
	ServeFile(filePath string) error

	// Binding
	Bind(v any) error

	// Connection access
	Conn() net.Conn
}

// getContentType maps a file extension to a response Content-Type, shared
// by FDContext.ServeFile.
func getContentType(filename string) string {
	ext := filepath.Ext(filename)
	switch ext {
	case ".html", ".htm":
		return "text/html"
	case ".css":
		return "text/css"
	case ".js":
		return "application/javascript"
	case ".json":
		return "application/json"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".svg":
		return "image/svg+xml"
	case ".txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}

// appendInt appends the decimal representation of i to b.
func appendInt(b []byte, i int) []byte {
	if i == 0 {
		return append(b, '0')
	}

	if i < 0 {
		b = append(b, '-')
		i = -i
	}

	digits := 0
	tmp := i
	for tmp > 0 {
		digits++
		tmp /= 10
	}

	start := len(b)
	for j := 0; j < digits; j++ {
		b = append(b, '0')
	}

	for j := digits - 1; j >= 0; j-- {
		b[start+j] = byte('0' + i%10)
		i /= 10
	}

	return b
}

// statusText returns the HTTP reason phrase for code.
func statusText(code int) string {
	switch code {
	case 200:
		return "OK"
	case 201:
		return "Created"
	case 400:
		return "Bad Request"
	case 404:
		return "Not Found"
	case 500:
		return "Internal Server Error"
	default:
		return "Unknown"
	}
}
