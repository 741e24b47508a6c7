package middleware

import (
	"net/http"
	"time"

	"clarte-be/internal/logger"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// statusWriter remembers the status code and body size written.
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// LoggingMiddleware logs every request once it completes. Server errors log
// at error level. Caller fields come from the request context.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}

		next.ServeHTTP(sw, r)

		if sw.status == 0 {
			sw.status = http.StatusOK
		}
		level := zapcore.InfoLevel
		if sw.status >= http.StatusInternalServerError {
			level = zapcore.ErrorLevel
		}

		logger.FromCtx(r.Context()).Check(level, "HTTP Request").Write(
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", sw.status),
			zap.Int("bytes", sw.bytes),
			zap.String("ip", r.RemoteAddr),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}
