package middleware

import (
	"net/http"
	"strings"

	"estate-backend/services"

	"github.com/gin-gonic/gin"
)

const sessionKey = "session"

// Session attaches the admin session of a valid bearer token. Requests
// without one pass through unauthenticated.
func Session(auth *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			if session, err := auth.Authenticate(c.Request.Context(), strings.TrimSpace(token)); err == nil {
				c.Set(sessionKey, session)
			}
		}
		c.Next()
	}
}

func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentSession(c) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}

// CurrentSession returns nil for anonymous requests.
func CurrentSession(c *gin.Context) *services.Session {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil
	}
	session, _ := v.(*services.Session)
	return session
}
