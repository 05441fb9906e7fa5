package logger

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

const RequestIDHeader = "X-Request-ID"

// HTTPLogger logs one line per request and tags the request context with
// its request id so downstream log lines can be correlated.
func HTTPLogger(l Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			reqID := r.Header.Get(RequestIDHeader)
			if reqID == "" {
				reqID = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, reqID)
			ctx := l.WithFields(r.Context(), "request_id", reqID)

			ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(ww, r.WithContext(ctx))

			l.Infof(ctx, "HTTP request method=%s path=%s status=%d duration_ms=%d remote_addr=%s",
				r.Method, r.URL.Path, ww.statusCode, time.Since(start).Milliseconds(), r.RemoteAddr)
		})
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
