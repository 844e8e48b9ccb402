package apihttp

import (
	"context"
	"log/slog"
	"math"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"playresolver/internal/metrics"
)

const (
	requestIDHeader = "X-Request-ID"
	maxRequestIDLen = 128
	unknownRoute    = "/other"
)

type exchangeKey struct{}

// exchange is the per-request record shared between accessMiddleware and the
// handlers. Handlers note resolution outcomes on it; the access log and the
// outcome counters read them back once the handler returns.
type exchange struct {
	id string

	mu       sync.Mutex
	outcomes map[string]int
}

func (e *exchange) note(outcome string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.outcomes == nil {
		e.outcomes = make(map[string]int)
	}
	e.outcomes[outcome]++
}

func (e *exchange) tally() map[string]int {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]int, len(e.outcomes))
	for outcome, n := range e.outcomes {
		out[outcome] = n
	}
	return out
}

func exchangeFromContext(ctx context.Context) *exchange {
	ex, _ := ctx.Value(exchangeKey{}).(*exchange)
	return ex
}

func requestIDFromContext(ctx context.Context) string {
	if ex := exchangeFromContext(ctx); ex != nil {
		return ex.id
	}
	return ""
}

// recordOutcome attributes one resolution outcome to the current request.
func recordOutcome(ctx context.Context, outcome string) {
	if ex := exchangeFromContext(ctx); ex != nil {
		ex.note(outcome)
	}
}

func incomingRequestID(r *http.Request) string {
	id := strings.TrimSpace(r.Header.Get(requestIDHeader))
	if id == "" || len(id) > maxRequestIDLen {
		return uuid.NewString()
	}
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status  int
	written int
	sent    bool
}

func (sr *statusRecorder) WriteHeader(code int) {
	if !sr.sent {
		sr.status = code
		sr.sent = true
	}
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if !sr.sent {
		sr.WriteHeader(http.StatusOK)
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.written += n
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

// routeLabel reports the mux pattern serving r, so metric and log labels
// follow the registered routes instead of raw paths.
func routeLabel(mux *http.ServeMux) func(*http.Request) string {
	return func(r *http.Request) string {
		if _, pattern := mux.Handler(r); pattern != "" {
			return pattern
		}
		return unknownRoute
	}
}

// accessMiddleware assigns the request ID, then emits the request metrics,
// the per-outcome counters and one access log line after next returns.
func accessMiddleware(logger *slog.Logger, routeOf func(*http.Request) string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ex := &exchange{id: incomingRequestID(r)}
		w.Header().Set(requestIDHeader, ex.id)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), exchangeKey{}, ex)))

		elapsed := time.Since(start)
		route := routeOf(r)
		outcomes := ex.tally()
		if route != "/metrics" {
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())
			for outcome, n := range outcomes {
				metrics.HTTPOutcomesTotal.WithLabelValues(route, outcome).Add(float64(n))
			}
		}

		attrs := []slog.Attr{
			slog.String("requestId", ex.id),
			slog.String("method", r.Method),
			slog.String("route", route),
			slog.Int("status", rec.status),
			slog.Int("bytes", rec.written),
			slog.Int64("durationMs", elapsed.Milliseconds()),
			slog.String("clientIP", clientIP(r)),
		}
		switch len(outcomes) {
		case 0:
		case 1:
			for outcome := range outcomes {
				attrs = append(attrs, slog.String("outcome", outcome))
			}
		default:
			attrs = append(attrs, slog.Any("outcomes", outcomes))
		}
		if route == unknownRoute {
			attrs = append(attrs, slog.String("path", shorten(r.URL.Path, 120)))
		}
		if agent := strings.TrimSpace(r.UserAgent()); agent != "" {
			attrs = append(attrs, slog.String("userAgent", shorten(agent, 120)))
		}
		logger.LogAttrs(r.Context(), accessLogLevel(route, rec.status), "http request", attrs...)
	})
}

func accessLogLevel(route string, status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	case route == "/health" || route == "/metrics":
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// recoveryMiddleware turns a handler panic into a 500 carrying the request
// ID, so the access log still records the failed request.
func recoveryMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}
			if recovered == http.ErrAbortHandler {
				panic(recovered)
			}
			logger.Error("handler panic",
				slog.String("requestId", requestIDFromContext(r.Context())),
				slog.Any("error", recovered),
				slog.String("path", r.URL.Path),
				slog.String("stack", string(debug.Stack())),
			)
			recordOutcome(r.Context(), "internal_error")
			writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		}()
		next.ServeHTTP(w, r)
	})
}

// rateLimitMiddleware charges resolution endpoints against a shared token
// bucket. Health, metrics and host diagnostics stay unmetered. A rejected
// caller is told via Retry-After when the next token frees up.
func rateLimitMiddleware(limiter *rate.Limiter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isResolveRoute(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		now := time.Now()
		reservation := limiter.ReserveN(now, 1)
		if !reservation.OK() {
			rejectRateLimited(w, r, time.Second)
			return
		}
		if delay := reservation.DelayFrom(now); delay > 0 {
			reservation.CancelAt(now)
			rejectRateLimited(w, r, delay)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isResolveRoute(path string) bool {
	return path == "/resolve" || path == "/resolve/batch"
}

func rejectRateLimited(w http.ResponseWriter, r *http.Request, wait time.Duration) {
	recordOutcome(r.Context(), "rate_limited")
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(wait)))
	writeError(w, http.StatusTooManyRequests, "rate_limited", "too many resolve requests")
}

func retryAfterSeconds(wait time.Duration) int {
	seconds := int(math.Ceil(wait.Seconds()))
	if seconds < 1 {
		return 1
	}
	return seconds
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// socket peer.
func clientIP(r *http.Request) string {
	if first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ","); strings.TrimSpace(first) != "" {
		return strings.TrimSpace(first)
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	remote := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(remote); err == nil && host != "" {
		return host
	}
	return remote
}

func shorten(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit-3] + "..."
}
