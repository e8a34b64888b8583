package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/harentsoaR/hospital-api/internal/middleware"
	"github.com/harentsoaR/hospital-api/internal/models"
	"github.com/harentsoaR/hospital-api/internal/services"
)

// RegisterPatient creates a Patient account and signs it in.
func (h *Handler) RegisterPatient(c *gin.Context) {
	var in services.AccountInput
	if !h.bind(c, &in) {
		return
	}

	sess, err := h.Auth.Register(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.setSessionCookie(c, sess)
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Patient registered successfully",
		"user":    sess.User,
	})
}

// Login returns a login handler. A non-empty role pins the route to that
// role and overrides whatever the body claims.
func (h *Handler) Login(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in services.LoginInput
		if !h.bind(c, &in) {
			return
		}
		if role != "" {
			in.Role = string(role)
		}

		sess, err := h.Auth.Login(c.Request.Context(), in)
		if err != nil {
			h.fail(c, err)
			return
		}

		h.setSessionCookie(c, sess)
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "Login successful",
			"user":    sess.User,
		})
	}
}

// Me returns the account behind the session cookie.
func (h *Handler) Me(c *gin.Context) {
	u, err := middleware.MustUser(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": u})
}

// Logout clears the cookie. The token itself stays valid until it expires.
func (h *Handler) Logout(c *gin.Context) {
	h.clearSessionCookie(c)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Logged out successfully"})
}

func (h *Handler) AddAdmin(c *gin.Context) {
	var in services.AccountInput
	if !h.bind(c, &in) {
		return
	}

	admin, err := h.Auth.CreateAdmin(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "New admin created successfully",
		"admin":   admin,
	})
}
