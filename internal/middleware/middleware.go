package middleware

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/aiserve/modelserver/internal/logging"
	"github.com/aiserve/modelserver/internal/metrics"
)

func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RequestID injects a fresh request ID into the context for every
// inbound request, so Logger and downstream handlers can correlate a
// request across structured log lines (spec ambient logging stack).
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := logging.NewRequestID()
		ctx := context.WithValue(r.Context(), logging.RequestIDKey, id)
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(logging.RequestIDKey).(string)
	return id
}

func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		metrics.RequestsInFlight.Inc()
		defer metrics.RequestsInFlight.Dec()

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)
		route := r.URL.Path

		metrics.RequestDuration.WithLabelValues(route).Observe(duration.Seconds())
		metrics.RequestsTotal.WithLabelValues(route, statusClass(wrapped.statusCode)).Inc()

		fields := map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status_code": wrapped.statusCode,
			"duration":    duration,
			"remote_addr": r.RemoteAddr,
		}
		if requestID := GetRequestID(r.Context()); requestID != "" {
			fields["request_id"] = requestID
		}

		if wrapped.statusCode >= 400 {
			logging.Error("request failed", fields)
		} else {
			logging.Info("request completed", fields)
		}
	})
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// RespondJSON writes data as a JSON response body with statusCode,
// shared by every HTTP handler in internal/api/httpapi.
func RespondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				requestID := GetRequestID(r.Context())
				stackTrace := string(debug.Stack())

				logging.Error("panic recovered", map[string]interface{}{
					"method":      r.Method,
					"path":        r.URL.Path,
					"error":       err,
					"stack_trace": stackTrace,
					"request_id":  requestID,
				})
				log.Printf("panic: %v\n%s", err, stackTrace)

				RespondJSON(w, http.StatusInternalServerError, map[string]string{
					"error":      "internal server error",
					"request_id": requestID,
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
