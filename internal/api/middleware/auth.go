// Package middleware provides HTTP middleware for the plantae API.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/plantaehq/plantae/internal/identity"
)

// ContextKey is the type for context keys used by this package.
type ContextKey string

// IdentityContextKey is the context key for the resolved caller identity.
const IdentityContextKey ContextKey = "identity"

// TokenResolver resolves a bearer credential into a stable subject.
type TokenResolver interface {
	Resolve(ctx context.Context, rawToken string) (identity.Identity, error)
}

// RequireAuth returns a Gin middleware that resolves the Authorization
// bearer token and stores the identity in the request context. The raw
// token is never logged.
func RequireAuth(resolver TokenResolver, logger zerolog.Logger) gin.HandlerFunc {
	log := logger.With().Str("component", "auth_middleware").Logger()

	return func(c *gin.Context) {
		token, ok := BearerToken(c)
		if !ok {
			log.Debug().Str("path", c.Request.URL.Path).Msg("missing bearer token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		ident, err := resolver.Resolve(c.Request.Context(), token)
		if err != nil {
			log.Debug().Err(err).Str("path", c.Request.URL.Path).Msg("unauthenticated request")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		c.Set(string(IdentityContextKey), ident)
		c.Next()
	}
}

// BearerToken extracts the bearer token from the Authorization header.
func BearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

// RequireIdentity returns the resolved identity from the Gin context,
// responding 401 and aborting when it is absent.
func RequireIdentity(c *gin.Context) (identity.Identity, bool) {
	val, exists := c.Get(string(IdentityContextKey))
	if !exists {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return identity.Identity{}, false
	}
	ident, ok := val.(identity.Identity)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return identity.Identity{}, false
	}
	return ident, true
}
