package api

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/cuemby/hutch/pkg/metrics"
	"github.com/cuemby/hutch/pkg/ratelimit"
	"github.com/cuemby/hutch/pkg/types"
)

type contextKey string

const userContextKey contextKey = "user"

// currentUser returns the authenticated user installed by requireUser.
// It panics when called off an authenticated route.
func currentUser(ctx context.Context) *types.User {
	return ctx.Value(userContextKey).(*types.User)
}

// requireUser authenticates the bearer token and installs the user on
// the request context.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			s.renderError(w, r, types.NewError(types.KindAuthRequired, "authentication required"))
			return
		}

		user, err := s.auth.Authenticate(r.Context(), token)
		if err != nil {
			s.renderError(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userContextKey, user)))
	})
}

// rateLimit enforces a per-IP limit. Retry-After advertises one refill
// interval.
func (s *Server) rateLimit(limiter *ratelimit.Limiter, limit int, window time.Duration) func(http.Handler) http.Handler {
	retryAfter := "1"
	if limit > 0 {
		secs := (int(window.Seconds()) + limit - 1) / limit
		if secs < 1 {
			secs = 1
		}
		retryAfter = strconv.Itoa(secs)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(clientIP(r)) {
				w.Header().Set("Retry-After", retryAfter)
				s.renderError(w, r, types.NewError(types.KindRateLimited, "rate limit exceeded"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP returns the caller's address without the port. RealIP runs
// earlier in the chain, so forwarded headers are already applied.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// limitBody caps JSON request bodies. Oversized reads surface as
// *http.MaxBytesError from the decoder.
func (s *Server) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

// requestLogger emits one structured line per request. Credentials
// travel in headers, never in URLs, so the path is safe to log.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("request_id", chimiddleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", clientIP(r)).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

// recoverer converts handler panics into 500 envelopes.
// http.ErrAbortHandler passes through untouched so aborted proxy
// streams keep their net/http semantics.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			s.log.Error().
				Interface("panic", rec).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Msg("handler panicked")
			s.renderError(w, r, types.NewError(types.KindInternal, "internal server error"))
		}()
		next.ServeHTTP(w, r)
	})
}

// observeRequests records the request counter, the latency histogram,
// and the proxy passthrough counter, labelled by route pattern so
// metric cardinality stays bounded.
func (s *Server) observeRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		timer := metrics.NewTimer()

		next.ServeHTTP(ww, r)

		path := chi.RouteContext(r.Context()).RoutePattern()
		if path == "" {
			path = "unmatched"
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(status)).Inc()
		timer.ObserveDurationVec(metrics.HTTPRequestDuration, r.Method, path)
		if strings.HasPrefix(path, "/api/proxy/") {
			metrics.ProxyRequestsTotal.WithLabelValues(statusClass(status)).Inc()
		}
	})
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
