package middleware

import (
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
)

const requestIDHeader = "X-Request-ID"

// RequestID usa el id de chi (respeta el header entrante) y lo devuelve en
// la respuesta para poder correlacionar con los logs.
func RequestID(next http.Handler) http.Handler {
	return chimw.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := chimw.GetReqID(r.Context()); id != "" {
			w.Header().Set(requestIDHeader, id)
		}
		next.ServeHTTP(w, r)
	}))
}
