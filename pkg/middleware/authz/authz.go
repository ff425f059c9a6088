// Package authz provides authentication and authorization middleware components.
package authz

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/learnhub/learnhub/pkg/auth"
	"github.com/learnhub/learnhub/pkg/controller"
)

// ClaimsKey is the gin context key for storing JWT claims.
const ClaimsKey = "claims"

// Authenticate validates the Bearer token from the Authorization header and
// stores the claims on both the gin context and the request context.
func Authenticate(validator auth.JWTValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if strings.TrimSpace(header) == "" {
			controller.Error(c, controller.NewUnauthorizedError("missing authorization header"))
			return
		}
		token, ok := auth.BearerToken(header)
		if !ok {
			controller.Error(c, controller.NewUnauthorizedError("invalid authorization header format"))
			return
		}

		claims, err := validator.Validate(c.Request.Context(), token)
		if err != nil {
			controller.Error(c, controller.NewUnauthorizedError("invalid token"))
			return
		}

		c.Set(ClaimsKey, claims)
		c.Request = c.Request.WithContext(auth.WithClaims(c.Request.Context(), claims))
		c.Next()
	}
}

// RequireRole rejects authenticated callers lacking role with 403. It must
// run after Authenticate; without claims the request is 401.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := Claims(c)
		if claims == nil {
			controller.Error(c, controller.NewUnauthorizedError("missing authentication"))
			return
		}
		if !claims.HasRole(role) {
			controller.Error(c, controller.NewForbiddenError("insufficient permissions"))
			return
		}
		c.Next()
	}
}

// Claims returns the claims stored by Authenticate, or nil.
func Claims(c *gin.Context) *auth.Claims {
	value, ok := c.Get(ClaimsKey)
	if !ok {
		return nil
	}
	claims, _ := value.(*auth.Claims)
	return claims
}
