package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nuxtbe/core-api/internal/models"
	"github.com/nuxtbe/core-api/pkg/config"
)

func signToken(t *testing.T, secret string, role models.UserRole) string {
	t.Helper()
	claims := models.AuthClaims{
		UserID: "user-1",
		Email:  "user@example.com",
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func newAuthRouter(validator *TokenValidator, adminOnly bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handlers := []gin.HandlerFunc{JWT(validator)}
	if adminOnly {
		handlers = append(handlers, RequireAdmin())
	}
	handlers = append(handlers, func(c *gin.Context) {
		claims := c.MustGet(ContextUserKey).(*models.AuthClaims)
		c.String(http.StatusOK, claims.UserID)
	})
	router.GET("/protected", handlers...)
	return router
}

func TestJWTAcceptsValidToken(t *testing.T) {
	validator := NewTokenValidator(config.JWTConfig{Secret: "secret"})
	router := newAuthRouter(validator, false)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "secret", models.RoleUser))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", rec.Body.String())
}

func TestJWTRejectsMissingHeader(t *testing.T) {
	validator := NewTokenValidator(config.JWTConfig{Secret: "secret"})
	router := newAuthRouter(validator, false)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/protected", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTRejectsWrongSecret(t *testing.T) {
	validator := NewTokenValidator(config.JWTConfig{Secret: "secret"})
	router := newAuthRouter(validator, false)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "other", models.RoleUser))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAdminBlocksMembers(t *testing.T) {
	validator := NewTokenValidator(config.JWTConfig{Secret: "secret"})
	router := newAuthRouter(validator, true)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "secret", models.RoleUser))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req.Header.Set("Authorization", "Bearer "+signToken(t, "secret", models.RoleAdmin))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOptionalJWTAllowsAnonymous(t *testing.T) {
	validator := NewTokenValidator(config.JWTConfig{Secret: "secret"})
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/items", OptionalJWT(validator), func(c *gin.Context) {
		_, authed := c.Get(ContextUserKey)
		c.JSON(http.StatusOK, gin.H{"authenticated": authed})
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "false")
}
