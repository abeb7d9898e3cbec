package statusserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/oxleyk/drawhub/internal/telemetry/logger"
	"github.com/oxleyk/drawhub/pkg/shortid"
)

// Context keys for request-scoped values.
type contextKey string

const (
	// ContextKeyRequestID is the context key for request ID.
	ContextKeyRequestID contextKey = "request_id"

	// ContextKeyStartTime is the context key for request start time.
	ContextKeyStartTime contextKey = "start_time"
)

// Middleware wraps an http.Handler with additional functionality.
type Middleware func(http.Handler) http.Handler

// Chain chains multiple middlewares together.
func Chain(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// RequestID adds a unique request ID to each request.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = "req-" + shortid.New()
			}

			w.Header().Set("X-Request-ID", requestID)

			ctx := context.WithValue(r.Context(), ContextKeyRequestID, requestID)
			ctx = context.WithValue(ctx, ContextKeyStartTime, time.Now())
			ctx = logger.WithRequestID(ctx, requestID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// limiterRegistry manages one token-bucket limiter per client IP.
type limiterRegistry struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newLimiterRegistry(perSecond float64, burst int) *limiterRegistry {
	if burst < 1 {
		burst = 1
	}
	return &limiterRegistry{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(perSecond),
		burst:    burst,
	}
}

func (lr *limiterRegistry) get(ip string) *rate.Limiter {
	lr.mu.Lock()
	defer lr.mu.Unlock()

	l, ok := lr.limiters[ip]
	if !ok {
		l = rate.NewLimiter(lr.limit, lr.burst)
		lr.limiters[ip] = l
	}
	return l
}

// RateLimit applies per-IP rate limiting with a token bucket.
func RateLimit(perSecond float64, burst int) Middleware {
	registry := newLimiterRegistry(perSecond, burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !registry.get(getClientIP(r)).Allow() {
				w.Header().Set("Retry-After", "1")
				writeMiddlewareError(w, http.StatusTooManyRequests,
					"DH-SYS-4290", "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Recover recovers from handler panics and returns a 500 response.
func Recover(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic in status handler",
						"panic", rec,
						"path", r.URL.Path,
						"stack", string(debug.Stack()))
					writeMiddlewareError(w, http.StatusInternalServerError,
						"DH-SYS-5000", "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func writeMiddlewareError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", code)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(NewErrorResponse("", code, message, nil))
}

// getClientIP extracts the client IP from a request.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
