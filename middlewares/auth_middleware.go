package middlewares

import (
	"net/http"
	"strings"

	"github.com/F1H444/si-kalori-sub000/utils"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware validates the bearer token and stores userID, email and role in
// the context. Websocket clients may pass the token as ?token= instead.
func AuthMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ""
		if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
			tokenString = strings.TrimPrefix(h, "Bearer ")
		} else if c.IsWebsocket() {
			tokenString = c.Query("token")
		}
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}
		if len(secret) == 0 {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "server misconfigured: JWT_SECRET not set"})
			return
		}

		claims, err := utils.ParseJWT(secret, tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		if claims.Role != utils.RoleAdmin && claims.UserID() == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid claims"})
			return
		}

		c.Set("userID", claims.UserID())
		c.Set("email", claims.Email)
		c.Set("role", claims.Role)
		c.Next()
	}
}

// RequireAdmin must run after AuthMiddleware.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString("role") != utils.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin only"})
			return
		}
		c.Next()
	}
}

// RequireUser rejects admin tokens on routes that act on the caller's own data.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetUint("userID") == 0 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "user account required"})
			return
		}
		c.Next()
	}
}
