// Package auth provides authentication and authorization mechanisms for the
// record repository API.
//
// This file implements Gin middleware for bearer-token validation and the
// superuser-gated authorization helpers built on top of it.
package auth

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/recordkeeper/api/internal/db"
	apierrors "github.com/recordkeeper/api/internal/errors"
	"github.com/recordkeeper/api/internal/models"
)

const principalKey = "principal"

// Middleware validates the bearer token and populates the request's
// Principal. Requests without a valid token are rejected with AuthInvalid.
// For kind=apiKey tokens, the ApiKey row backing the token is also loaded
// and must still be active and unexpired, and the token must not predate
// the key's last rotation — a rotated or deleted key stops authenticating
// its earlier tokens immediately, without waiting for them to expire.
func Middleware(signer *Signer, apiKeyDB *db.ApiKeyDB) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			apierrors.AbortWithError(c, apierrors.AuthInvalid())
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			apierrors.AbortWithError(c, apierrors.AuthInvalid())
			return
		}

		claims, err := signer.Verify(parts[1])
		if err != nil {
			apierrors.AbortWithError(c, apierrors.AuthInvalid())
			return
		}

		if claims.Kind == TokenKindAPIKey {
			key, err := apiKeyDB.GetApiKey(c.Request.Context(), claims.ApiKeyID)
			if err != nil {
				apierrors.AbortWithError(c, apierrors.AuthRevoked())
				return
			}
			if !key.Active || !key.ExpiresAt.After(time.Now()) {
				apierrors.AbortWithError(c, apierrors.AuthRevoked())
				return
			}
			if key.RotatedAt != nil && (claims.IssuedAt == nil || claims.IssuedAt.Time.Before(key.RotatedAt.Truncate(time.Second))) {
				apierrors.AbortWithError(c, apierrors.AuthRevoked())
				return
			}
		}

		c.Set(principalKey, &models.Principal{
			UserID:      claims.Subject,
			Username:    claims.Username,
			IsSuperuser: claims.IsSuperuser,
			TokenKind:   string(claims.Kind),
			ApiKeyID:    claims.ApiKeyID,
		})
		c.Next()
	}
}

// CurrentPrincipal returns the authenticated principal attached by
// Middleware. Only call after Middleware has run.
func CurrentPrincipal(c *gin.Context) *models.Principal {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil
	}
	p, _ := v.(*models.Principal)
	return p
}

// RequireSuperuser aborts with Forbidden unless the caller is a superuser.
func RequireSuperuser() gin.HandlerFunc {
	return func(c *gin.Context) {
		p := CurrentPrincipal(c)
		if p == nil || !p.IsSuperuser {
			apierrors.AbortWithError(c, apierrors.Forbidden("superuser access required"))
			return
		}
		c.Next()
	}
}
