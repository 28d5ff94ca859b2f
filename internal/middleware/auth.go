package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/amrrdev/docflow/internal/jwt"
)

type AuthMiddleware struct {
	jwtService *jwt.Service
	enabled    bool
}

// NewAuthMiddleware returns a middleware that lets every request through when
// enabled is false.
func NewAuthMiddleware(jwtService *jwt.Service, enabled bool) *AuthMiddleware {
	return &AuthMiddleware{
		jwtService: jwtService,
		enabled:    enabled,
	}
}

// RequireAuth is a middleware that validates JWT tokens
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.enabled {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "Authorization header required")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			abortUnauthorized(c, "Invalid authorization format. Use: Bearer <token>")
			return
		}

		claims, err := m.jwtService.ValidateToken(parts[1])
		if err != nil {
			abortUnauthorized(c, "Invalid or expired token")
			return
		}

		c.Set(clientIDKey, claims.ClientID)

		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"code":    http.StatusUnauthorized,
		"message": message,
	})
}
