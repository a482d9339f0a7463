package middleware

import (
	"log/slog"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// RequestLog logs each request with request_id, method, path, status, duration, size
// and, when authenticated, the username. Use after RequestID middleware so the ID is available.
func RequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		var username string
		next.ServeHTTP(ww, r.WithContext(withUserSink(r.Context(), &username)))

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		attrs := []any{
			"request_id", chimw.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"size", ww.BytesWritten(),
		}
		if username != "" {
			attrs = append(attrs, "user", username)
		}
		level := slog.LevelInfo
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		slog.Log(r.Context(), level, "request", attrs...)
	})
}
