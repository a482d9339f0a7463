package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/crucial707/logsink/internal/metrics"
)

// Prometheus records request duration and count for each request, labelled by
// the matched chi route pattern so free-text path segments do not explode cardinality.
func Prometheus(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		if r.URL.Path == "/metrics" {
			return
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.RecordRequest(r.Method, routePattern(r), status, time.Since(start).Seconds())
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return metrics.NormalizePath(r.URL.Path)
}
