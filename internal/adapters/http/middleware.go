package httpadapter

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-Id"

type requestIDContextKey struct{}

// requestIDMiddleware tags every request with an id, honoring one the
// caller already set so ids survive across service hops. The id is
// echoed back in the response header and stored on the context for the
// access log.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}

		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(
			context.WithValue(r.Context(), requestIDContextKey{}, id),
		))
	})
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDContextKey{}).(string)
	return id
}

// accessLogMiddleware writes one structured line per request. The log
// level follows the response class so 5xx responses surface in
// error-level views without a separate alerting pipeline.
func accessLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		trace := &responseTrace{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(trace, r)

		remote := r.RemoteAddr
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			remote = host
		}

		attrs := []any{
			"request_id", requestIDFromContext(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", trace.status,
			"duration_ms", float64(time.Since(start).Microseconds()) / 1000.0,
			"bytes", trace.written,
			"remote_addr", remote,
			"user_agent", r.UserAgent(),
		}

		switch {
		case trace.status >= http.StatusInternalServerError:
			slog.Error("http_request", attrs...)
		case trace.status >= http.StatusBadRequest:
			slog.Warn("http_request", attrs...)
		default:
			slog.Info("http_request", attrs...)
		}
	})
}

// responseTrace records the status code and body size while passing
// the optional ResponseWriter capabilities through to the underlying
// writer.
type responseTrace struct {
	http.ResponseWriter
	status  int
	written int
}

func (t *responseTrace) WriteHeader(statusCode int) {
	t.status = statusCode
	t.ResponseWriter.WriteHeader(statusCode)
}

func (t *responseTrace) Write(b []byte) (int, error) {
	n, err := t.ResponseWriter.Write(b)
	t.written += n
	return n, err
}

func (t *responseTrace) Flush() {
	if flusher, ok := t.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (t *responseTrace) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := t.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (t *responseTrace) Push(target string, opts *http.PushOptions) error {
	pusher, ok := t.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
