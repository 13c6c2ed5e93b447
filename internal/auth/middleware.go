package auth

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// RequireAuth ensures the caller is signed in before reaching loyalty
// endpoints. The API is JSON-only, so unauthenticated calls get a 401
// instead of a redirect.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		userID := session.Get("user_id")

		if userID == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		c.Set("user_id", userID)
		c.Set("user_email", session.Get("user_email"))
		c.Set("user_name", session.Get("user_name"))

		c.Next()
	}
}

// Identify exposes the signed-in identity to handlers that work for both
// anonymous and authenticated callers (the chat endpoints link sessions to
// users when one is present).
func Identify() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		if userID := session.Get("user_id"); userID != nil {
			c.Set("user_id", userID)
		}
		c.Next()
	}
}
