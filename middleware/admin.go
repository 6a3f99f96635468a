package middleware

import (
	"context"
	"net/http"

	"blogapi/models"
	"blogapi/observability"

	"github.com/gin-gonic/gin"
)

// AdminChecker decides whether a user holds the admin capability.
type AdminChecker interface {
	IsAdmin(ctx context.Context, userID uint) (bool, error)
}

// AdminRequired must run after AuthRequired.
func AdminRequired(checker AdminChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := CurrentUserID(c)
		if !ok {
			abortUnauthorized(c, "Authentication required")
			return
		}

		isAdmin, err := checker.IsAdmin(c.Request.Context(), userID)
		if err != nil {
			observability.FromContext(c.Request.Context()).Error("admin check failed", "user_id", userID, "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Internal server error", "code": models.KindInternal})
			return
		}
		if !isAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Admin access required", "code": models.KindForbidden})
			return
		}

		c.Next()
	}
}
