package auth

import (
	"context"
	"errors"
	"strings"
)

// ErrInvalidToken: el token llegó pero el verificador lo rechazó.
// Cualquier otro error de Verify se trata como falla del verificador.
var ErrInvalidToken = errors.New("invalid token")

// Claims del usuario que opera el tracker. UserID queda como creator_id de
// cada registro.
type Claims struct {
	UserID   string
	Email    string
	TenantID string
}

func (c Claims) Valid() bool { return strings.TrimSpace(c.UserID) != "" }

// Verifier resuelve un bearer token a claims.
type Verifier interface {
	Verify(ctx context.Context, token string) (Claims, error)
}

type VerifierFunc func(ctx context.Context, token string) (Claims, error)

func (f VerifierFunc) Verify(ctx context.Context, token string) (Claims, error) {
	return f(ctx, token)
}
