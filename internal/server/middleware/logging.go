package middleware

import (
	"net/http"
	"time"

	"github.com/jonathan/candidate-intake/internal/logging"
)

// statusRecorder captures the status code written by a handler.
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

// Flush lets SSE handlers stream through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// AccessLog logs one line per request and attaches a request-scoped logger to the
// context. Run it inside SessionMiddleware so the session ID is known.
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		fields := map[string]any{
			"method": r.Method,
			"path":   r.URL.Path,
		}
		if sessionID, err := GetSessionID(r); err == nil {
			fields["session"] = sessionID
		}
		ctx := logging.WithContext(r.Context(), fields)

		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r.WithContext(ctx))

		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}

		event := logging.Ctx(ctx).Info()
		if status >= http.StatusInternalServerError {
			event = logging.Ctx(ctx).Error()
		} else if status >= http.StatusBadRequest {
			event = logging.Ctx(ctx).Warn()
		}
		event.
			Int("status", status).
			Int("bytes", rec.bytes).
			Dur("duration", time.Since(start)).
			Str("remote", r.RemoteAddr).
			Msg("request completed")
	})
}
