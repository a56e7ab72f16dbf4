package api

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/johnwards/dealerhub/internal/metrics"
	"github.com/johnwards/dealerhub/internal/store"
)

type contextKey int

const correlationIDKey contextKey = iota

// maxLoggedBody caps the request and response bodies kept in request_log.
const maxLoggedBody = 4096

// CorrelationID returns the correlation ID from the request context.
func CorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey).(string); ok {
		return id
	}
	return ""
}

// unguarded reports paths that bypass auth and JSON content typing.
func unguarded(path string) bool {
	return strings.HasPrefix(path, "/_ui") || path == "/metrics"
}

// Recovery returns middleware that recovers from panics and returns a 500
// error envelope.
func Recovery() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					slog.Error("panic recovered",
						"error", rec,
						"method", r.Method,
						"path", r.URL.Path,
					)
					WriteError(w, http.StatusInternalServerError,
						NewInternalError("Internal Server Error", CorrelationID(r.Context())))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// RequestID returns middleware that generates a UUID v4 correlation ID, stores
// it in the request context, and adds it to the response headers.
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := uuid.NewString()
			ctx := context.WithValue(r.Context(), correlationIDKey, id)
			w.Header().Set("X-Correlation-Id", id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Auth returns middleware that validates the Bearer token if authToken is
// non-empty. If authToken is empty, all requests pass through.
func Auth(authToken string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if authToken == "" || unguarded(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			token := strings.TrimPrefix(header, "Bearer ")
			if header == "" || token != authToken {
				WriteError(w, http.StatusUnauthorized, &Error{
					Status:        "error",
					Message:       "Authentication credentials not found",
					CorrelationID: CorrelationID(r.Context()),
					Category:      CategoryValidationError,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Actor returns middleware that attaches the X-User-Id header to the request
// context so the store can attribute audit entries.
func Actor() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id := strings.TrimSpace(r.Header.Get("X-User-Id")); id != "" {
				r = r.WithContext(store.WithActor(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// JSONContentType returns middleware that sets the Content-Type header to
// application/json. Handlers serving files override it.
func JSONContentType() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !unguarded(r.URL.Path) {
				w.Header().Set("Content-Type", "application/json")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// statusWriter wraps http.ResponseWriter to capture the status code and,
// optionally, the start of the response body.
type statusWriter struct {
	http.ResponseWriter
	code    int
	capture *bytes.Buffer
}

// WriteHeader captures the status code and delegates to the wrapped writer.
func (sw *statusWriter) WriteHeader(code int) {
	sw.code = code
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	if sw.capture != nil && sw.capture.Len() < maxLoggedBody {
		n := min(len(b), maxLoggedBody-sw.capture.Len())
		sw.capture.Write(b[:n])
	}
	return sw.ResponseWriter.Write(b)
}

// Logging returns middleware that logs each request with slog.
func Logging() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
			next.ServeHTTP(sw, r)
			slog.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.code,
				"duration", time.Since(start).String(),
				"correlationId", CorrelationID(r.Context()),
			)
		})
	}
}

// RequestLog returns middleware that records dealer API and console requests
// in the request_log table, which the admin API pages through.
func RequestLog(db *sql.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, "/api/") && !strings.HasPrefix(r.URL.Path, "/console/") {
				next.ServeHTTP(w, r)
				return
			}

			var reqBody []byte
			if r.Body != nil && r.Body != http.NoBody {
				b, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
				if err != nil {
					WriteError(w, http.StatusBadRequest, NewValidationError("Unable to read request body", CorrelationID(r.Context()), nil))
					return
				}
				_ = r.Body.Close()
				reqBody = b
				r.Body = io.NopCloser(bytes.NewReader(b))
			}

			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, code: http.StatusOK, capture: &bytes.Buffer{}}
			next.ServeHTTP(sw, r)

			respBody := ""
			if strings.HasPrefix(sw.Header().Get("Content-Type"), "application/json") {
				respBody = sw.capture.String()
			}
			if len(reqBody) > maxLoggedBody {
				reqBody = reqBody[:maxLoggedBody]
			}

			// The request context may already be cancelled by the client.
			ctx := context.WithoutCancel(r.Context())
			if _, err := db.ExecContext(ctx,
				`INSERT INTO request_log (method, path, status_code, request_body, response_body, duration_ms, correlation_id, created_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				r.Method, r.URL.RequestURI(), sw.code, string(reqBody), respBody,
				time.Since(start).Milliseconds(), CorrelationID(r.Context()),
				time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
			); err != nil {
				slog.Error("failed to record request", "error", err)
			}
		})
	}
}

// Metrics returns middleware that records request counts and latency. It
// must be the innermost middleware so the mux's matched pattern is visible
// on the request after it returns.
func Metrics(c *metrics.Collector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
			next.ServeHTTP(sw, r)
			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			c.RecordHTTPRequest(r.Method, route, sw.code, time.Since(start))
		})
	}
}

// Chain applies middleware in order so that the first middleware is the
// outermost handler.
func Chain(handler http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return handler
}
