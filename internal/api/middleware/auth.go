// server/internal/api/middleware/auth.go
package middleware

import (
	"net/http"
	"strings"

	"site-procurement-api-server/internal/auth"
	"site-procurement-api-server/internal/models"

	"github.com/gin-gonic/gin"
)

// Authenticate validates the bearer token and puts the actor into the
// request context.
func Authenticate(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token format"})
			return
		}

		claims, err := auth.ParseToken(secret, tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("user_name", claims.Name)
		c.Set("user_role", claims.Role)

		c.Next()
	}
}

// Authorize is a middleware factory checking the actor's role against the
// allowed list. It fails closed.
func Authorize(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole := c.GetString("user_role")
		if userRole == "" {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "User role not found in context"})
			return
		}

		for _, role := range allowedRoles {
			if role == userRole {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "You do not have permission to access this resource"})
	}
}

// Actor builds the engine actor from the authenticated context.
func Actor(c *gin.Context) models.Actor {
	return models.Actor{
		UserID: c.GetString("user_id"),
		Name:   c.GetString("user_name"),
		Role:   c.GetString("user_role"),
	}
}
