package middleware

import (
	"net/http"
	"time"

	"pet-care-tracker/internal/platform/logger"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// RequestLog loguea una línea por request (debug para /health y /metrics).
func RequestLog(log logger.Logger) func(http.Handler) http.Handler {
	log = logger.OrNop(log)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := map[string]any{
				"request_id":  chimw.GetReqID(r.Context()),
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      status,
				"duration_ms": time.Since(start).Milliseconds(),
			}

			switch {
			case r.URL.Path == "/health" || r.URL.Path == "/metrics":
				log.Debug("http request", fields)
			case status >= 500:
				log.Error("http request", fields)
			default:
				log.Info("http request", fields)
			}
		})
	}
}
