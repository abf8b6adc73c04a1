package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"pet-care-tracker/internal/platform/logger"
	"pet-care-tracker/internal/ports/auth"
)

// DevUserHeader identifica al usuario cuando no hay verificador configurado.
const DevUserHeader = "X-Debug-User-ID"

type claimsKey struct{}

// Identity resuelve quién hace el request.
//
// Sin verifier: toma DevUserHeader. Con verifier: un request sin token sigue
// anónimo (lecturas), un token rechazado corta con 401 y una falla del
// verificador con 503. Así un token malo nunca termina en un registro anónimo.
func Identity(verifier auth.Verifier, log logger.Logger) func(http.Handler) http.Handler {
	log = logger.OrNop(log)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifier == nil {
				if uid := strings.TrimSpace(r.Header.Get(DevUserHeader)); uid != "" {
					r = r.WithContext(WithClaims(r.Context(), auth.Claims{UserID: uid}))
				}
				next.ServeHTTP(w, r)
				return
			}

			token := bearerToken(r.Header.Get("Authorization"))
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := verifier.Verify(r.Context(), token)
			switch {
			case err == nil && claims.Valid():
				next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
			case err == nil || errors.Is(err, auth.ErrInvalidToken):
				http.Error(w, "invalid token", http.StatusUnauthorized)
			default:
				log.Warn("token verification failed", map[string]any{
					"path":  r.URL.Path,
					"error": err.Error(),
				})
				http.Error(w, "auth unavailable", http.StatusServiceUnavailable)
			}
		})
	}
}

func WithClaims(ctx context.Context, c auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

func GetClaims(ctx context.Context) (auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(auth.Claims)
	return c, ok && c.Valid()
}

// CreatorID es el usuario que firma los registros; "" si el request es anónimo.
func CreatorID(ctx context.Context) string {
	c, ok := GetClaims(ctx)
	if !ok {
		return ""
	}
	return strings.TrimSpace(c.UserID)
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
