package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/nuxtbe/core-api/internal/middleware"
	"github.com/nuxtbe/core-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.AuthClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.AuthClaims)
	if !ok {
		return nil
	}
	return claims
}

func userIDFromContext(c *gin.Context) string {
	if claims := claimsFromContext(c); claims != nil {
		return claims.UserID
	}
	return ""
}
