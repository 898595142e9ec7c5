package handlers

import (
	"net/http"

	"podnest/internal/middleware"
	"podnest/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	identity *services.IdentityService
}

func NewAuthHandler(identity *services.IdentityService) *AuthHandler {
	return &AuthHandler{identity: identity}
}

// Logout 清除会话
func (h *AuthHandler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	if err := session.Save(); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AuthHandler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user": middleware.CurrentUser(c)})
}

type onboardingRequest struct {
	Username string `json:"username" binding:"required"`
}

// CompleteOnboarding 首次登录后设置用户名
func (h *AuthHandler) CompleteOnboarding(c *gin.Context) {
	var req onboardingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "username is required")
		return
	}

	user, err := h.identity.CompleteOnboarding(c.Request.Context(), middleware.CurrentUser(c).ID, req.Username)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Set(middleware.CheckUserKey, user)
	c.JSON(http.StatusOK, gin.H{"user": user})
}
