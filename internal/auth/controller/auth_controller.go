// Package controller exposes registration and login over HTTP.
package controller

import (
	"github.com/gin-gonic/gin"

	"nanoj/internal/auth"
	"nanoj/pkg/utils/response"
)

// AuthController handles auth HTTP endpoints.
type AuthController struct {
	svc *auth.Service
}

// NewAuthController creates a new AuthController.
func NewAuthController(svc *auth.Service) *AuthController {
	return &AuthController{svc: svc}
}

// CredentialsRequest defines the register/login payload.
type CredentialsRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Register creates a user account.
func (h *AuthController) Register(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}
	user, err := h.svc.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"username": user.Username, "role": user.Role})
}

// Login verifies credentials and returns a session token.
func (h *AuthController) Login(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}
	sess, err := h.svc.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{
		"token":      sess.Token,
		"expires_at": sess.ExpiresAt.UTC(),
		"username":   sess.User.Username,
		"role":       sess.User.Role,
	})
}

// Me returns the authenticated caller identity.
func (h *AuthController) Me(c *gin.Context) {
	caller := auth.CallerFrom(c)
	response.Success(c, gin.H{"username": caller.Username, "role": caller.Role})
}
