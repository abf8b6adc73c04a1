package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"pet-care-tracker/internal/platform/httpclient"
	"pet-care-tracker/internal/ports/auth"
)

// ErrTokenEmpty y ErrUnauthorized envuelven auth.ErrInvalidToken (401);
// ErrUpstream no (503).
var (
	ErrNotConfigured = errors.New("token verifier not configured")
	ErrTokenEmpty    = fmt.Errorf("%w: token is empty", auth.ErrInvalidToken)
	ErrUnauthorized  = fmt.Errorf("%w: token rejected", auth.ErrInvalidToken)
	ErrUpstream      = errors.New("token verifier upstream error")
)

// Config del verificador remoto. Vacío => el router queda en modo dev.
type Config struct {
	URL    string // endpoint completo, p.ej. https://iam.example.com/v1/tokens/verify
	APIKey string

	// Si está vacío se usa "X-Api-Key".
	APIKeyHeader string
}

// Verifier implementa auth.Verifier contra un servicio de identidad HTTP.
type Verifier struct {
	client       *httpclient.Client
	url          string
	apiKey       string
	apiKeyHeader string
}

func NewVerifier(client *httpclient.Client, cfg Config) (*Verifier, error) {
	u := strings.TrimSpace(cfg.URL)
	if u == "" {
		return nil, ErrNotConfigured
	}
	if err := httpclient.ValidateURL(u); err != nil {
		return nil, err
	}
	if client == nil {
		client = httpclient.New(httpclient.DefaultTimeout)
	}
	h := strings.TrimSpace(cfg.APIKeyHeader)
	if h == "" {
		h = "X-Api-Key"
	}
	return &Verifier{
		client:       client,
		url:          u,
		apiKey:       strings.TrimSpace(cfg.APIKey),
		apiKeyHeader: h,
	}, nil
}

type verifyResponse struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	TenantID string `json:"tenant_id"`
}

func (v *Verifier) Verify(ctx context.Context, token string) (auth.Claims, error) {
	if v == nil || v.client == nil {
		return auth.Claims{}, ErrNotConfigured
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return auth.Claims{}, ErrTokenEmpty
	}

	headers := map[string]string{"Authorization": "Bearer " + token}
	if v.apiKey != "" {
		headers[v.apiKeyHeader] = v.apiKey
	}

	var out verifyResponse
	err := v.client.DoJSON(ctx, http.MethodPost, v.url, headers, map[string]string{"token": token}, &out)
	if err != nil {
		var he *httpclient.HTTPError
		if errors.As(err, &he) && (he.StatusCode == http.StatusUnauthorized || he.StatusCode == http.StatusForbidden) {
			return auth.Claims{}, ErrUnauthorized
		}
		return auth.Claims{}, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	out.UserID = strings.TrimSpace(out.UserID)
	if out.UserID == "" {
		return auth.Claims{}, fmt.Errorf("%w: response missing user_id", ErrUpstream)
	}

	return auth.Claims{
		UserID:   out.UserID,
		Email:    strings.TrimSpace(out.Email),
		TenantID: strings.TrimSpace(out.TenantID),
	}, nil
}
