// Package httputil holds the HTTP server plumbing shared by the service:
// h2c support, request logging and authentication.
package httputil

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/pitabwire/frame/security"
	securityhttp "github.com/pitabwire/frame/security/interceptors/httptor"
)

// Authenticated wraps handler with frame's authentication middleware,
// validating bearer tokens. A nil authenticator leaves handler open.
func Authenticated(handler http.Handler, authenticator security.Authenticator) http.Handler {
	if authenticator == nil {
		return handler
	}
	return securityhttp.AuthenticationMiddleware(handler, authenticator)
}

// statusRecorder captures the response status for logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// Flush lets server-sent event handlers stream through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Logging logs method, path, status and duration of every request. Server
// errors are logged at warn level.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		attrs := []any{
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Int("bytes", rec.bytes),
			slog.Duration("duration", time.Since(start)),
		}
		if rec.status >= http.StatusInternalServerError {
			slog.WarnContext(r.Context(), "http request failed", attrs...)
			return
		}
		slog.DebugContext(r.Context(), "http request", attrs...)
	})
}
