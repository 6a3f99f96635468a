package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"blogapi/middleware"
	"blogapi/models"
	"blogapi/observability"

	"github.com/gin-gonic/gin"
)

var statusByKind = map[models.ErrorKind]int{
	models.KindValidation: http.StatusBadRequest,
	models.KindAuth:       http.StatusUnauthorized,
	models.KindForbidden:  http.StatusForbidden,
	models.KindNotFound:   http.StatusNotFound,
	models.KindConflict:   http.StatusConflict,
	models.KindInternal:   http.StatusInternalServerError,
}

// respondWithError maps a service error to its status code. Internal details
// are logged and never sent to the client.
func respondWithError(c *gin.Context, err error) {
	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		appErr = models.NewInternalError(err)
	}

	status, ok := statusByKind[appErr.Kind]
	if !ok {
		status = http.StatusInternalServerError
	}

	if status >= http.StatusInternalServerError {
		observability.FromContext(c.Request.Context()).Error("request failed",
			"method", c.Request.Method,
			"route", c.FullPath(),
			"error", err,
		)
		c.JSON(status, gin.H{"message": "Internal server error", "code": models.KindInternal})
		return
	}

	c.JSON(status, gin.H{"message": appErr.Message, "code": appErr.Kind})
}

func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		respondWithError(c, models.NewValidationError("Invalid request body"))
		return false
	}
	return true
}

// userID reads the authenticated caller; routes using it sit behind AuthRequired.
func userID(c *gin.Context) (uint, bool) {
	id, ok := middleware.CurrentUserID(c)
	if !ok {
		respondWithError(c, models.NewAuthError("Authentication required"))
	}
	return id, ok
}

func idParam(c *gin.Context, name, resource string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		respondWithError(c, models.NewValidationError("Invalid "+resource+" ID"))
		return 0, false
	}
	return uint(id), true
}

func queryInt(c *gin.Context, name string) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return 0
	}
	return v
}

// queryBool returns nil unless the parameter is exactly "true" or "false".
func queryBool(c *gin.Context, name string) *bool {
	switch c.Query(name) {
	case "true":
		v := true
		return &v
	case "false":
		v := false
		return &v
	default:
		return nil
	}
}
