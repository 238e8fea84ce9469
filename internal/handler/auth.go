package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"fieldreport/internal/auth"
	"fieldreport/internal/middleware"
	"fieldreport/internal/prefs"
	"fieldreport/internal/session"
)

type AuthHandler struct {
	Sessions     *session.Manager
	TokenConfig  auth.TokenConfig
	LoginLimiter *middleware.RateLimiter
}

type loginBody struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	if h.LoginLimiter != nil && !h.LoginLimiter.Allow(c.ClientIP()) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
		return
	}

	var body loginBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	sess, err := h.Sessions.Login(body.Username, body.Password)
	if err != nil {
		if errors.Is(err, session.ErrInvalidCredentials) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Username and password are required"})
			return
		}
		if errors.Is(err, prefs.ErrUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Local storage unavailable"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
		return
	}

	token, err := auth.CreateToken(sess.Username, h.TokenConfig)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":     token,
		"username":  sess.Username,
		"isPrimary": sess.IsPrimary,
	})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	h.Sessions.Logout()
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *AuthHandler) ResetPrimary(c *gin.Context) {
	if err := h.Sessions.ResetPrimaryAccount(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Local storage unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Session reports the caller's session state; handy for the viewer UI.
func (h *AuthHandler) Session(c *gin.Context) {
	username, _ := middleware.UsernameFromContext(c)
	sess, ok := h.Sessions.Current()
	if !ok {
		c.JSON(http.StatusOK, gin.H{"active": false, "tokenUser": username})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"active":    true,
		"username":  sess.Username,
		"isPrimary": sess.IsPrimary,
		"tokenUser": username,
	})
}
