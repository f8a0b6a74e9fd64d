package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/tradepairs/pairs-backend/internal/auth"
)

// TokenVerifier checks operator tokens.
type TokenVerifier interface {
	RequireOperator(token string) (*auth.Claims, error)
}

type Middleware struct {
	logger   *zap.SugaredLogger
	metrics  MetricsInterface
	verifier TokenVerifier
}

// NewMiddleware creates the middleware set. A nil verifier disables the
// admin routes.
func NewMiddleware(logger *zap.SugaredLogger, metrics MetricsInterface, verifier TokenVerifier) *Middleware {
	return &Middleware{
		logger:   logger,
		metrics:  metrics,
		verifier: verifier,
	}
}

// CORS middleware
func (m *Middleware) CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}

// Rate limiting middleware
func (m *Middleware) RateLimit(rpm int) func(http.Handler) http.Handler {
	burst := rpm / 6 // Allow burst of 1/6th of rpm
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(float64(rpm)/60.0), burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				writeErrorResponse(w, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Request logging middleware
func (m *Middleware) RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			duration := time.Since(start)

			m.logger.Infow("HTTP request",
				"request_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"query", r.URL.RawQuery,
				"status", ww.Status(),
				"size", ww.BytesWritten(),
				"duration", duration,
				"remote_addr", r.RemoteAddr,
				"user_agent", r.UserAgent(),
			)

			m.metrics.RecordHTTPRequest(r.Context(), r.Method, routePattern(r), ww.Status(), duration)
		}()

		next.ServeHTTP(ww, r)
	})
}

// routePattern labels metrics by chi route to keep path cardinality bounded.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

// Security headers middleware
func (m *Middleware) SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains; preload")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		next.ServeHTTP(w, r)
	})
}

// Compress gzips JSON responses.
func (m *Middleware) Compress(next http.Handler) http.Handler {
	return middleware.Compress(5, "application/json")(next)
}

// Recovery middleware with structured logging
func (m *Middleware) Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}
				m.logger.Errorw("Panic recovered",
					"panic", rvr,
					"method", r.Method,
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
				)

				writeErrorResponse(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// Request ID middleware
func (m *Middleware) RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(middleware.RequestIDHeader)
		if requestID == "" || len(requestID) > 64 {
			requestID = uuid.NewString()
		}

		ctx := context.WithValue(r.Context(), middleware.RequestIDKey, requestID)
		w.Header().Set(middleware.RequestIDHeader, requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Timeout middleware
func (m *Middleware) Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, timeout, "Request timeout")
	}
}

type claimsKey struct{}

// ClaimsFromContext returns the operator claims set by AdminOnly.
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*auth.Claims)
	return claims, ok
}

// AdminOnly requires a bearer token carrying an operator role.
func (m *Middleware) AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.verifier == nil {
			writeErrorResponse(w, http.StatusServiceUnavailable, "ADMIN_DISABLED", "admin endpoints are not configured")
			return
		}

		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			writeErrorResponse(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
			return
		}

		claims, err := m.verifier.RequireOperator(strings.TrimSpace(token))
		if err != nil {
			if errors.Is(err, auth.ErrForbidden) {
				writeErrorResponse(w, http.StatusForbidden, "FORBIDDEN", "operator role required")
				return
			}
			m.logger.Warnw("Rejected admin token", "error", err, "remote_addr", r.RemoteAddr)
			writeErrorResponse(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
