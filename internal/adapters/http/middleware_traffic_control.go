package httpadapter

import (
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// rateLimitMiddleware applies a process-wide token bucket. A rejected
// request gets 429 with a Retry-After hint so well-behaved clients can
// back off instead of hammering the API.
func rateLimitMiddleware(next http.Handler, rps float64, burst int) http.Handler {
	if rps <= 0 {
		return next
	}
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			retryAfter := time.Second
			if rps < 1 {
				retryAfter = time.Duration(float64(time.Second) / rps)
			}
			w.Header().Set("Retry-After", retryAfter.Round(time.Second).String())
			writeJSON(w, http.StatusTooManyRequests, map[string]string{
				"error": "rate limit exceeded",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// backpressureMiddleware bounds the number of concurrently served
// requests. When the gate stays full for longer than waitFor, the
// request is shed with 503 rather than queued unbounded.
func backpressureMiddleware(next http.Handler, maxInFlight int, waitFor time.Duration) http.Handler {
	if maxInFlight <= 0 {
		return next
	}
	gate := make(chan struct{}, maxInFlight)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timer := time.NewTimer(waitFor)
		defer timer.Stop()

		select {
		case gate <- struct{}{}:
			defer func() { <-gate }()
			next.ServeHTTP(w, r)
		case <-timer.C:
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"error": "server is overloaded, try again later",
			})
		case <-r.Context().Done():
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"error": "request cancelled while waiting for capacity",
			})
		}
	})
}
