package middleware

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/nuxtbe/core-api/internal/models"
	"github.com/nuxtbe/core-api/pkg/config"
	appErrors "github.com/nuxtbe/core-api/pkg/errors"
	"github.com/nuxtbe/core-api/pkg/response"
)

// ContextUserKey is the gin context key storing validated claims.
const ContextUserKey = "currentUser"

// TokenValidator checks access tokens minted by the external auth provider.
type TokenValidator struct {
	secret   []byte
	audience string
}

// NewTokenValidator constructs a validator from the JWT config.
func NewTokenValidator(cfg config.JWTConfig) *TokenValidator {
	return &TokenValidator{secret: []byte(cfg.Secret), audience: cfg.Audience}
}

// Validate parses and verifies a bearer token.
func (v *TokenValidator) Validate(token string) (*models.AuthClaims, error) {
	claims := &models.AuthClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid access token")
	}
	if v.audience != "" {
		audiences, err := claims.GetAudience()
		if err != nil || !containsAudience(audiences, v.audience) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token audience mismatch")
		}
	}
	return claims, nil
}

func containsAudience(audiences jwt.ClaimStrings, wanted string) bool {
	for _, a := range audiences {
		if a == wanted {
			return true
		}
	}
	return false
}

// JWT protects routes by requiring a valid access token.
func JWT(validator *TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		claims, err := validator.Validate(token)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextUserKey, claims)
		c.Next()
	}
}

// OptionalJWT attaches claims when a valid token is present but never blocks.
// Anonymous callers proceed with no identity, which downstream code treats as
// published-only visibility.
func OptionalJWT(validator *TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.Next()
			return
		}

		claims, err := validator.Validate(token)
		if err != nil {
			c.Next()
			return
		}

		c.Set(ContextUserKey, claims)
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}
