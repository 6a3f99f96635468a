package middleware

import (
	"net/http"
	"strings"

	"blogapi/models"
	"blogapi/observability"
	"blogapi/utils"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	SessionCookie = "token"
	userIDKey     = "user_id"
)

// AuthRequired resolves the session token from the cookie, the Authorization
// header, or for websocket upgrades the token query parameter.
func AuthRequired(tokens *utils.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := sessionToken(c)
		if token == "" {
			abortUnauthorized(c, "Authentication required")
			return
		}

		userID, err := tokens.ValidateJWT(token)
		if err != nil {
			observability.FromContext(c.Request.Context()).Debug("token validation failed", "error", err)
			abortUnauthorized(c, "Invalid or expired token")
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

func sessionToken(c *gin.Context) string {
	if cookie, err := c.Cookie(SessionCookie); err == nil && cookie != "" {
		return cookie
	}
	if authHeader := c.GetHeader("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(authHeader[len("Bearer "):])
	}
	if websocket.IsWebSocketUpgrade(c.Request) {
		return c.Query("token")
	}
	return ""
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": message, "code": models.KindAuth})
}

// CurrentUserID returns the id AuthRequired stored on the context.
func CurrentUserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(userIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok && id != 0
}
