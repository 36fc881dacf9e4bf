package middleware

import (
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ronerog/furia-app/internal/services"
	"github.com/ronerog/furia-app/pkg/utils"
)

// CORS creates CORS middleware for the view layer origins.
//
// Configuration:
//   - Allowed methods: GET, POST, PUT, DELETE, OPTIONS
//   - Allowed headers: Accept, Content-Type, X-Request-ID
//   - Exposed headers: X-Request-ID
//   - Max age: 300 seconds (5 minutes)
//
// The bridge holds the bearer token itself, so the view layer never sends
// credentials and AllowCredentials stays off.
//
// Example:
//
//	r.Use(middleware.CORS([]string{"http://localhost:5173"}))
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300, // Maximum value not ignored by any of major browsers
	})
}

// Logger creates structured logging middleware with request ID correlation.
//
// The request ID (taken from X-Request-ID or generated) is put in the
// request context, so backend calls made while serving the request carry
// the same ID upstream.
//
// Log fields:
//   - request_id: Unique identifier for request tracing
//   - method, path: Request line
//   - client_ip: Caller address (X-Forwarded-For aware)
//   - device: Parsed User-Agent, e.g. "Chrome 120.0 · Windows 10 · Desktop"
//   - status, bytes, duration: Response summary
//
// Example logs:
//
//	{"level":"info","request_id":"abc-123","method":"POST","path":"/api/v1/session/login","msg":"Request started"}
//	{"level":"info","request_id":"abc-123","status":200,"bytes":156,"duration":45,"msg":"Request completed"}
//
// Usage:
//
//	r.Use(middleware.Logger())
func Logger() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.New().String()
			}

			ctx := utils.WithRequestID(r.Context(), requestID)
			r = r.WithContext(ctx)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			ww.Header().Set("X-Request-ID", requestID)

			log.Info().
				Str("request_id", requestID).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("client_ip", utils.ExtractClientIP(r)).
				Str("device", services.ExtractDeviceInfo(r.UserAgent())).
				Msg("Request started")

			next.ServeHTTP(ww, r)

			log.Info().
				Str("request_id", requestID).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("Request completed")
		})
	}
}

// Recoverer recovers from panics, logs them, and answers with a JSON 500.
// Register it first so it wraps every other middleware.
//
// Usage:
//
//	r.Use(middleware.Recoverer())
//	r.Use(middleware.Logger())
func Recoverer() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.Error().
						Interface("error", err).
						Str("request_id", utils.GetRequestID(r.Context())).
						Str("method", r.Method).
						Str("path", r.URL.Path).
						Msg("Panic recovered")

					utils.RespondWithError(w, r, http.StatusInternalServerError, "internal_error", "Internal Server Error")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// SecurityHeaders adds response headers suited to a JSON-only API.
//
// Headers added:
//   - X-Content-Type-Options: nosniff
//   - X-Frame-Options: DENY
//   - Content-Security-Policy: default-src 'none'; frame-ancestors 'none'
//   - Referrer-Policy: no-referrer
//   - Cache-Control: no-store (responses carry personal data)
//
// Usage:
//
//	r.Use(middleware.SecurityHeaders())
func SecurityHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			w.Header().Set("Referrer-Policy", "no-referrer")
			w.Header().Set("Cache-Control", "no-store")

			next.ServeHTTP(w, r)
		})
	}
}

// LoopbackOnly rejects callers that are not on this machine. The bridge
// acts with the fan's credentials, so it must not be reachable from the
// network even when bound to a non-loopback interface.
//
// Usage:
//
//	if cfg.Bridge.IsProduction() {
//	    r.Use(middleware.LoopbackOnly())
//	}
func LoopbackOnly() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Forwarding headers are caller controlled; only the socket peer counts.
			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}
			if !utils.IsLoopback(ip) {
				log.Warn().
					Str("client_ip", ip).
					Str("path", r.URL.Path).
					Msg("Rejected non-local bridge request")
				utils.RespondWithError(w, r, http.StatusForbidden, "forbidden", "Bridge is only available locally")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
