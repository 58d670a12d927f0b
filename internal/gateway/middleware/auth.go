package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"loomstore/internal/database/models"
	"loomstore/internal/utils"
)

const (
	ContextUserID = "userID"
	ContextRole   = "role"
)

func JWTAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Access token required"})
			return
		}

		claims, err := utils.ParseToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Invalid token"})
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextRole, claims.Role)
		c.Next()
	}
}

func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ContextRole) != models.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Admin access required"})
			return
		}
		c.Next()
	}
}

func RequireEmployeeOrAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(ContextRole)
		if role != models.RoleAdmin && role != models.RoleEmployee {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Employee or Admin access required"})
			return
		}
		c.Next()
	}
}

// UserID returns the authenticated caller's id set by JWTAuth.
func UserID(c *gin.Context) uint {
	if v, ok := c.Get(ContextUserID); ok {
		if id, ok := v.(uint); ok {
			return id
		}
	}
	return 0
}
