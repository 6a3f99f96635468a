package controllers

import (
	"net/http"

	"blogapi/middleware"
	"blogapi/models"
	"blogapi/services"
	"blogapi/utils"

	"github.com/gin-gonic/gin"
)

type AuthController struct {
	userService  *services.UserService
	tokens       *utils.TokenIssuer
	secureCookie bool
}

func NewAuthController(userService *services.UserService, tokens *utils.TokenIssuer, secureCookie bool) *AuthController {
	return &AuthController{
		userService:  userService,
		tokens:       tokens,
		secureCookie: secureCookie,
	}
}

// Signup godoc
// @Summary Register a new account
// @Tags auth
// @Accept json
// @Produce json
// @Param body body models.SignupRequest true "Account details"
// @Success 201 {object} map[string]models.UserResponse
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /auth/signup [post]
func (ac *AuthController) Signup(c *gin.Context) {
	var req models.SignupRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := ac.userService.Signup(c.Request.Context(), &req)
	if err != nil {
		respondWithError(c, err)
		return
	}

	if !ac.startSession(c, user.ID) {
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": user.ToResponse()})
}

// Login godoc
// @Summary Log in with email and password
// @Tags auth
// @Accept json
// @Produce json
// @Param body body models.LoginRequest true "Credentials"
// @Success 200 {object} map[string]models.UserResponse
// @Failure 401 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /auth/login [post]
func (ac *AuthController) Login(c *gin.Context) {
	var req models.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := ac.userService.Login(c.Request.Context(), &req)
	if err != nil {
		respondWithError(c, err)
		return
	}

	if !ac.startSession(c, user.ID) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user.ToResponse()})
}

// Logout godoc
// @Summary Clear the session cookie
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]string
// @Router /auth/logout [post]
func (ac *AuthController) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookie, "", -1, "/", "", ac.secureCookie, true)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

func (ac *AuthController) startSession(c *gin.Context, userID uint) bool {
	token, err := ac.tokens.GenerateJWT(userID)
	if err != nil {
		respondWithError(c, models.NewInternalError(err))
		return false
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookie, token, int(ac.tokens.TTL().Seconds()), "/", "", ac.secureCookie, true)
	return true
}
