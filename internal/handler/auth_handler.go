package handler

import (
	"github.com/gin-gonic/gin"

	"quickcart/internal/middleware"
	"quickcart/internal/service/auth"
	"quickcart/pkg/utils"
)

// AuthHandler exposes signup, login and the token endpoints.
type AuthHandler struct {
	auth auth.Service
}

func NewAuthHandler(authService auth.Service) *AuthHandler {
	return &AuthHandler{auth: authService}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req auth.RegisterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.AppErrorResponse(c, utils.NewErrorWithErr(utils.CodeInvalidParam, "invalid registration payload", err))
		return
	}

	user, err := h.auth.Register(c.Request.Context(), req)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	utils.CreatedResponse(c, user)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.AppErrorResponse(c, utils.NewErrorWithErr(utils.CodeInvalidParam, "invalid login payload", err))
		return
	}

	user, pair, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, gin.H{
		"user":          user,
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	})
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.AppErrorResponse(c, utils.NewErrorWithErr(utils.CodeInvalidParam, "invalid refresh payload", err))
		return
	}

	pair, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, pair)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	var req logoutRequest
	_ = c.ShouldBindJSON(&req)

	if err := h.auth.Logout(c.Request.Context(), middleware.UserID(c), req.RefreshToken); err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, gin.H{"message": "logged out"})
}
