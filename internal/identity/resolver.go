// Package identity resolves bearer credentials into stable subjects using
// the OIDC identity provider.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/rs/zerolog"
)

// ErrUnauthenticated indicates the bearer credential is missing or invalid,
// or the resolved principal has no verified email.
var ErrUnauthenticated = errors.New("unauthenticated")

// Identity is the stable subject resolved from a bearer credential.
// It is never persisted by this subsystem beyond masking for logs.
type Identity struct {
	SubjectID string
	Email     string
}

// MaskedEmail returns the identity's email masked for logs and audit records.
func (i Identity) MaskedEmail() string {
	return MaskEmail(i.Email)
}

// Config holds identity provider configuration.
type Config struct {
	Issuer   string
	ClientID string
}

// Resolver verifies bearer tokens against the identity provider and yields
// the subject they belong to. It is read-only against the provider.
type Resolver struct {
	verifier *oidc.IDTokenVerifier
	logger   zerolog.Logger
}

// NewResolver creates a Resolver backed by the OIDC provider's verifier.
// Discovery happens once at construction so startup fails fast on a
// misconfigured issuer.
func NewResolver(ctx context.Context, cfg Config, logger zerolog.Logger) (*Resolver, error) {
	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("create OIDC provider: %w", err)
	}

	r := &Resolver{
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		logger:   logger.With().Str("component", "identity_resolver").Logger(),
	}

	r.logger.Info().Str("issuer", cfg.Issuer).Msg("identity resolver initialized")
	return r, nil
}

// tokenClaims holds the claims required to resolve a subject.
type tokenClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
}

// Resolve verifies the raw bearer token and returns the subject it belongs
// to. The token itself is never logged.
func (r *Resolver) Resolve(ctx context.Context, rawToken string) (Identity, error) {
	if strings.TrimSpace(rawToken) == "" {
		return Identity{}, ErrUnauthenticated
	}

	idToken, err := r.verifier.Verify(ctx, rawToken)
	if err != nil {
		r.logger.Debug().Err(err).Msg("bearer token verification failed")
		return Identity{}, ErrUnauthenticated
	}

	var claims tokenClaims
	if err := idToken.Claims(&claims); err != nil {
		r.logger.Debug().Err(err).Msg("failed to extract token claims")
		return Identity{}, ErrUnauthenticated
	}

	if claims.Email == "" || !claims.EmailVerified {
		r.logger.Debug().Str("subject", idToken.Subject).Msg("principal has no verified email")
		return Identity{}, ErrUnauthenticated
	}

	return Identity{
		SubjectID: idToken.Subject,
		Email:     claims.Email,
	}, nil
}
