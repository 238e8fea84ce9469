package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fieldreport/internal/identity"
)

type DeviceHandler struct {
	Identity *identity.Store
}

func (h *DeviceHandler) Get(c *gin.Context) {
	ident, err := h.Identity.Ensure()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Local storage unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":          ident.ID,
		"installedAt": ident.InstalledAt,
	})
}
