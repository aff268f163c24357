package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/nuxtbe/core-api/internal/models"
	appErrors "github.com/nuxtbe/core-api/pkg/errors"
	"github.com/nuxtbe/core-api/pkg/response"
)

// RequireAdmin blocks callers without the admin role. Must run after JWT.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims, ok := claimsValue.(*models.AuthClaims)
		if !ok || !claims.IsAdmin() {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "admin role required"))
			c.Abort()
			return
		}
		c.Next()
	}
}
