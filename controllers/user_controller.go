package controllers

import (
	"net/http"

	"blogapi/models"
	"blogapi/services"

	"github.com/gin-gonic/gin"
)

type UserController struct {
	userService *services.UserService
}

func NewUserController(userService *services.UserService) *UserController {
	return &UserController{userService: userService}
}

// GetProfile godoc
// @Summary Current user's profile
// @Tags auth
// @Produce json
// @Security CookieAuth
// @Success 200 {object} map[string]models.UserResponse
// @Router /auth/profile [get]
func (uc *UserController) GetProfile(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}

	user, err := uc.userService.GetProfile(c.Request.Context(), id)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user.ToResponse()})
}

// GetUserProfile godoc
// @Summary Another user's profile
// @Tags auth
// @Produce json
// @Security CookieAuth
// @Param userId path int true "User ID"
// @Success 200 {object} map[string]models.UserResponse
// @Failure 404 {object} map[string]string
// @Router /auth/{userId} [get]
func (uc *UserController) GetUserProfile(c *gin.Context) {
	id, ok := idParam(c, "userId", "user")
	if !ok {
		return
	}

	user, err := uc.userService.GetUserProfile(c.Request.Context(), id)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user.ToResponse()})
}

// UpdateAbout godoc
// @Summary Replace the caller's about text
// @Tags auth
// @Accept json
// @Produce json
// @Security CookieAuth
// @Param body body models.UpdateAboutRequest true "About text"
// @Success 200 {object} map[string]string
// @Router /auth/about [put]
func (uc *UserController) UpdateAbout(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}

	var req models.UpdateAboutRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := uc.userService.UpdateAbout(c.Request.Context(), id, &req); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "About section updated successfully"})
}
