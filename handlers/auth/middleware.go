package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"inua-fund-server/utils"
)

const AdminKey = "admin"

// AdminMiddleware only lets through requests bearing an admin JWT.
func AdminMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(secret) == 0 {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Admin access is not configured"})
			c.Abort()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is missing"})
			c.Abort()
			return
		}

		subject, err := utils.ExtractAdminFromToken(authHeader, secret)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			c.Abort()
			return
		}

		c.Set(AdminKey, subject)
		c.Next()
	}
}
